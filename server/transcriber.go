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
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// audioBackend is the slice of AudioProcessor the transcriber depends on
type audioBackend interface {
	ProbeFile(ctx context.Context, filePath string) (*AudioInfo, error)
	ExceedsLimit(info *AudioInfo) bool
	Transcode(ctx context.Context, inputPath string, outputPath string) error
	CreateChunks(ctx context.Context, inputPath string, outputDir string, windows []ChunkWindow) ([]string, error)
	Cleanup(filePaths []string)
}

// TranscribeMeta carries aggregate metadata about one completed job
type TranscribeMeta struct {
	Duration   float64 `json:"duration"`
	Language   string  `json:"language"`
	Chunked    bool    `json:"chunked"`
	ChunkCount int     `json:"chunkCount,omitempty"`
	Transcoded bool    `json:"transcoded"`
	LatencyMs  int64   `json:"latencyMs"`
}

// TranscribeFileResult is the immutable outcome of one file job or one
// finalized live session
type TranscribeFileResult struct {
	Text     string         `json:"text"`
	VTT      string         `json:"vtt"`
	Segments []Segment      `json:"segments"`
	Meta     TranscribeMeta `json:"meta"`
}

// Transcriber orchestrates file transcription: probe, transcode or
// chunk when the file exceeds the provider limit, transcribe, merge
type Transcriber struct {
	provider      TranscriptionProvider
	audio         audioBackend
	chunkDuration float64
	overlap       float64
	chunkWorkers  int
	tempDir       string
}

// NewTranscriber creates a transcriber around a provider and an audio backend
func NewTranscriber(provider TranscriptionProvider, audio audioBackend, config *Config) *Transcriber {
	return &Transcriber{
		provider:      provider,
		audio:         audio,
		chunkDuration: config.ChunkDuration,
		overlap:       config.ChunkOverlap,
		chunkWorkers:  config.ChunkWorkers,
		tempDir:       os.TempDir(),
	}
}

// TranscribeFile transcribes an audio file with automatic handling of
// the provider size limit. Transcoding is tried first since it costs a
// single round trip; chunking is the fallback when the transcoded file
// is still too large. All temporary artifacts are removed on success
// and failure paths.
func (t *Transcriber) TranscribeFile(ctx context.Context, filePath string, options TranscriptionOptions) (*TranscribeFileResult, error) {
	started := time.Now()

	info, err := t.audio.ProbeFile(ctx, filePath)
	if err != nil {
		return nil, err
	}
	LogDebug("audio info for %s: duration=%.1fs size=%d codec=%s", filePath, info.Duration, info.Size, info.Codec)

	processedPath := filePath
	transcoded := false
	var chunkPaths []string
	var windows []ChunkWindow

	defer func() {
		if transcoded {
			t.audio.Cleanup([]string{processedPath})
		}
		if len(chunkPaths) > 0 {
			t.audio.Cleanup(chunkPaths)
		}
	}()

	if t.audio.ExceedsLimit(info) {
		log.Printf("%s exceeds the provider size limit, transcoding", filepath.Base(filePath))

		transcodePath := filepath.Join(t.tempDir, fmt.Sprintf("transcoded_%d.ogg", time.Now().UnixNano()))
		if err := t.audio.Transcode(ctx, filePath, transcodePath); err != nil {
			// Chunking can still produce a valid job.
			log.Printf("transcode failed, falling back to chunking: %v", err)
		} else if transcodedInfo, err := t.audio.ProbeFile(ctx, transcodePath); err == nil && !t.audio.ExceedsLimit(transcodedInfo) {
			LogDebug("transcode reduced size to %d bytes", transcodedInfo.Size)
			processedPath = transcodePath
			transcoded = true
		} else {
			t.audio.Cleanup([]string{transcodePath})
		}

		if !transcoded {
			log.Printf("chunking %s into %gs windows with %gs overlap", filepath.Base(filePath), t.chunkDuration, t.overlap)

			windows, err = PlanChunks(info.Duration, t.chunkDuration, t.overlap)
			if err != nil {
				return nil, err
			}

			chunkDir := filepath.Join(t.tempDir, fmt.Sprintf("chunks_%d", time.Now().UnixNano()))
			chunkPaths, err = t.audio.CreateChunks(ctx, filePath, chunkDir, windows)
			if err != nil {
				return nil, err
			}
		}
	}

	if len(chunkPaths) > 0 {
		segments, language, err := t.transcribeChunks(ctx, chunkPaths, options)
		if err != nil {
			return nil, err
		}

		return &TranscribeFileResult{
			Text:     ToText(segments),
			VTT:      ToVTT(segments),
			Segments: segments,
			Meta: TranscribeMeta{
				Duration:   info.Duration,
				Language:   language,
				Chunked:    true,
				ChunkCount: len(chunkPaths),
				Transcoded: false,
				LatencyMs:  time.Since(started).Milliseconds(),
			},
		}, nil
	}

	audio, err := os.ReadFile(processedPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrProviderRequest, processedPath, err)
	}

	response, err := t.provider.Transcribe(ctx, audio, filepath.Base(processedPath), options)
	if err != nil {
		return nil, err
	}

	segments := ExtractSegments(response)

	return &TranscribeFileResult{
		Text:     response.Text,
		VTT:      ToVTT(segments),
		Segments: segments,
		Meta: TranscribeMeta{
			Duration:   response.Duration,
			Language:   response.Language,
			Chunked:    false,
			Transcoded: transcoded,
			LatencyMs:  time.Since(started).Milliseconds(),
		},
	}, nil
}

// transcribeChunks runs chunk requests through a bounded worker pool.
// Results are collected by chunk index so the merge never depends on
// completion order. Any chunk failure fails the whole job and cancels
// the remaining requests.
func (t *Transcriber) transcribeChunks(ctx context.Context, chunkPaths []string, options TranscriptionOptions) ([]Segment, string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunkOptions := options
	chunkOptions.ResponseFormat = "verbose_json"
	chunkOptions.TimestampGranularities = []string{"segment"}

	workers := t.chunkWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(chunkPaths) {
		workers = len(chunkPaths)
	}

	results := make([]*TranscriptionResult, len(chunkPaths))
	errs := make([]error, len(chunkPaths))
	jobs := make(chan int, len(chunkPaths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				if ctx.Err() != nil {
					errs[index] = ctx.Err()
					continue
				}

				audio, err := os.ReadFile(chunkPaths[index])
				if err != nil {
					errs[index] = fmt.Errorf("%w: failed to read chunk %d: %v", ErrProviderRequest, index, err)
					cancel()
					continue
				}

				result, err := t.provider.Transcribe(ctx, audio, filepath.Base(chunkPaths[index]), chunkOptions)
				if err != nil {
					errs[index] = err
					cancel()
					continue
				}

				results[index] = result
			}
		}()
	}

	for index := range chunkPaths {
		jobs <- index
	}
	close(jobs)
	wg.Wait()

	for index, err := range errs {
		if err != nil {
			return nil, "", fmt.Errorf("chunk %d/%d: %w", index+1, len(chunkPaths), err)
		}
	}

	language := ""
	if len(results) > 0 {
		language = results[0].Language
	}

	return MergeChunks(results, t.chunkDuration, t.overlap), language, nil
}
