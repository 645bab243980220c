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
	"fmt"
	"regexp"
	"strings"
)

const maxSessionIdLength = 128

var sessionIdRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

var languageRegex = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})?$`)

// Extensions accepted for file uploads
var allowedAudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".wav":  true,
	".ogg":  true,
	".webm": true,
	".flac": true,
}

// ValidateSessionId checks a client-supplied session identifier.
// Session ids become file names of the JSONL log, so path separators
// and control characters are rejected outright.
func ValidateSessionId(sessionId string) error {
	if sessionId == "" {
		return fmt.Errorf("session id is required")
	}

	if len(sessionId) > maxSessionIdLength {
		return fmt.Errorf("session id must be %d characters or less", maxSessionIdLength)
	}

	if !sessionIdRegex.MatchString(sessionId) {
		return fmt.Errorf("session id may only contain letters, digits, '_', '.' and '-'")
	}

	return nil
}

// ValidateLanguage checks a language option. "auto" and empty are
// accepted and mean provider-side detection.
func ValidateLanguage(language string) error {
	if language == "" || language == "auto" {
		return nil
	}

	if !languageRegex.MatchString(language) {
		return fmt.Errorf("invalid language code %q", language)
	}

	return nil
}

// ValidateAudioExtension checks an upload filename against the allowed
// audio formats
func ValidateAudioExtension(filename string) error {
	ext := strings.ToLower(extOf(filename))
	if !allowedAudioExtensions[ext] {
		return fmt.Errorf("invalid file type %q. Allowed: .mp3, .m4a, .wav, .ogg, .webm, .flac", ext)
	}
	return nil
}
