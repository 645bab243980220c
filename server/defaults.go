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

const Version = "1.2.0"

// Pipeline defaults. The size limit leaves headroom under the
// provider's 20 MB upload cap accounting for multipart overhead.
const (
	defaultMaxFileSizeMB  = 19.5
	defaultChunkDuration  = 90.0 // seconds
	defaultChunkOverlap   = 0.5  // seconds
	defaultChunkWorkers   = 4
	defaultSessionIdleSec = 300
	defaultDataDir        = "data"

	defaultApiBaseUrl = "https://openrouter.ai/api/v1"
	defaultApiModel   = "openai/whisper-large-v3"

	defaultUploadLimitBytes = 100 * 1024 * 1024
)
