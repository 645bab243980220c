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
	"log"
	"sync/atomic"
)

var debugLogEnabled atomic.Bool

// SetDebugLog toggles debug logging at runtime
func SetDebugLog(enabled bool) {
	debugLogEnabled.Store(enabled)
}

// LogDebug writes a log line only when debug logging is enabled
func LogDebug(format string, v ...any) {
	if debugLogEnabled.Load() {
		log.Printf("DEBUG: "+format, v...)
	}
}

// LogError writes an error-tagged log line
func LogError(format string, v ...any) {
	log.Printf("ERROR: "+format, v...)
}
