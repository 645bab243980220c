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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SessionLogger appends live session events as newline-delimited JSON,
// one file per session. The log is an audit artifact for external
// tooling, never read back by the server.
type SessionLogger struct {
	dir   string
	mutex sync.Mutex
}

// sessionLogRecord is the on-disk shape of one event
type sessionLogRecord struct {
	Type      string  `json:"type"`
	SessionId string  `json:"sessionId"`
	Text      string  `json:"text"`
	TsStart   float64 `json:"tsStart"`
	TsEnd     float64 `json:"tsEnd"`
	Timestamp string  `json:"timestamp"` // ISO-8601
}

// NewSessionLogger creates a logger writing under dir, creating it as
// needed
func NewSessionLogger(dir string) (*SessionLogger, error) {
	if err := os.MkdirAll(dir, 0770); err != nil {
		return nil, fmt.Errorf("cannot create session log directory %s: %v", dir, err)
	}
	return &SessionLogger{dir: dir}, nil
}

// Append writes one event record to the session's log file
func (logger *SessionLogger) Append(sessionId string, event SessionEvent) error {
	record := sessionLogRecord{
		Type:      event.Type,
		SessionId: sessionId,
		Text:      event.Text,
		TsStart:   event.TsStart,
		TsEnd:     event.TsEnd,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	line, err := json.Marshal(record)
	if err != nil {
		return err
	}

	logger.mutex.Lock()
	defer logger.mutex.Unlock()

	file, err := os.OpenFile(logger.LogPath(sessionId), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0660)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return err
	}

	return nil
}

// LogPath returns the log file path for one session
func (logger *SessionLogger) LogPath(sessionId string) string {
	return filepath.Join(logger.dir, sessionId+".jsonl")
}
