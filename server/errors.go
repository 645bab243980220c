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

import "errors"

// Sentinel errors for the transcription pipeline. Callers match them
// with errors.Is after unwrapping.
var (
	// ErrInvalidChunkConfig indicates an unusable chunk plan request,
	// e.g. overlap >= chunk duration or a non-positive duration.
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

	// ErrProbeFailed indicates audio metadata could not be read.
	// Fatal to a file job.
	ErrProbeFailed = errors.New("audio probe failed")

	// ErrTranscodeFailed indicates ffmpeg transcoding failed. Non-fatal
	// when chunking remains a valid fallback.
	ErrTranscodeFailed = errors.New("audio transcode failed")

	// ErrChunkFailed indicates chunk files could not be produced.
	ErrChunkFailed = errors.New("audio chunking failed")

	// ErrProviderRequest indicates the transcription provider request
	// failed. Retry policy belongs to the caller.
	ErrProviderRequest = errors.New("transcription provider request failed")

	// ErrSessionNotFound fails any operation referencing an unknown or
	// already finalized live session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrDuplicateSession fails starting a live session whose id is
	// already active.
	ErrDuplicateSession = errors.New("session already active")
)
