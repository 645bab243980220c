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

import "fmt"

// ChunkWindow is one entry of a chunk plan: a time window of the source
// audio to be extracted and transcribed independently.
type ChunkWindow struct {
	Index    int     // Zero-based chunk index, merge order follows it
	Start    float64 // Start offset in the source audio, seconds
	Duration float64 // Window length, seconds (last window may be shorter)
}

// NeedsSplitting reports whether a file exceeds the provider size limit
// and therefore needs transcoding or chunking before upload.
func NeedsSplitting(info *AudioInfo, sizeLimitBytes int64) bool {
	return info.Size > sizeLimitBytes
}

// PlanChunks computes the sequence of overlapping windows covering
// [0, totalDuration). Windows start at multiples of chunkDuration-overlap
// and last chunkDuration seconds each, the final one truncated to the end
// of the audio. Consecutive windows share overlap seconds so speech at a
// cut boundary lands in at least one chunk.
func PlanChunks(totalDuration float64, chunkDuration float64, overlap float64) ([]ChunkWindow, error) {
	if totalDuration <= 0 {
		return nil, fmt.Errorf("%w: total duration %g must be positive", ErrInvalidChunkConfig, totalDuration)
	}
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("%w: chunk duration %g must be positive", ErrInvalidChunkConfig, chunkDuration)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap %g must not be negative", ErrInvalidChunkConfig, overlap)
	}

	// Infinite loop guard: a step of zero or less never advances.
	if overlap >= chunkDuration {
		return nil, fmt.Errorf("%w: overlap %g must be less than chunk duration %g", ErrInvalidChunkConfig, overlap, chunkDuration)
	}

	step := chunkDuration - overlap
	windows := []ChunkWindow{}

	for index := 0; ; index++ {
		start := float64(index) * step
		if start >= totalDuration {
			break
		}

		duration := chunkDuration
		if start+duration > totalDuration {
			duration = totalDuration - start
		}

		windows = append(windows, ChunkWindow{
			Index:    index,
			Start:    start,
			Duration: duration,
		})
	}

	return windows, nil
}
