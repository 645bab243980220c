// Copyright (C) 2025 Thinline Dynamic Solutions
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>

package main

import (
	"context"
	"strings"
)

// TranscriptionProvider defines the interface for speech-to-text services
type TranscriptionProvider interface {
	Transcribe(ctx context.Context, audio []byte, filename string, options TranscriptionOptions) (*TranscriptionResult, error)
	IsAvailable() bool
	GetName() string
}

// TranscriptionOptions contains options for a single transcription request
type TranscriptionOptions struct {
	Language               string   // "en", "he", "auto", etc.
	Temperature            float64  // Temperature for sampling (0.0-1.0)
	Prompt                 string   // Initial prompt/context
	ResponseFormat         string   // "json", "text", "verbose_json", "vtt", "srt"
	TimestampGranularities []string // "word" and/or "segment"
}

// TranscriptionResult contains the provider response for one audio unit
type TranscriptionResult struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"` // Audio duration in seconds
	Segments []Segment `json:"segments"` // Timestamped segments (optional)
}

// Segment represents one timestamped span of transcribed speech.
// Times are seconds relative to the start of the audio unit that
// produced it. Providers occasionally return End <= Start; such
// segments are kept and only matter for rendering.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ExtractSegments returns the timestamped segments of a provider result.
// Responses without segment timestamps synthesize a single segment
// spanning the whole duration.
func ExtractSegments(result *TranscriptionResult) []Segment {
	if result == nil {
		return nil
	}

	if len(result.Segments) > 0 {
		segments := make([]Segment, 0, len(result.Segments))
		for _, segment := range result.Segments {
			segments = append(segments, Segment{
				Start: segment.Start,
				End:   segment.End,
				Text:  strings.TrimSpace(segment.Text),
			})
		}
		return segments
	}

	return []Segment{{
		Start: 0,
		End:   result.Duration,
		Text:  strings.TrimSpace(result.Text),
	}}
}
