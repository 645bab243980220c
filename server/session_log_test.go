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
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestSessionLoggerAppend(t *testing.T) {
	logger, err := NewSessionLogger(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	events := []SessionEvent{
		{Type: "partial", Text: "hello", TsStart: 0.0, TsEnd: 1.0},
		{Type: "partial", Text: "hello there", TsStart: 1.0, TsEnd: 2.0},
		{Type: "final", Text: "hello there friend", TsStart: 0.0, TsEnd: 3.0},
	}
	for _, event := range events {
		if err := logger.Append("meeting-42", event); err != nil {
			t.Fatal(err)
		}
	}

	file, err := os.Open(logger.LogPath("meeting-42"))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	var records []sessionLogRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record sessionLogRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("line %d is not valid json: %v", len(records)+1, err)
		}
		records = append(records, record)
	}

	if len(records) != len(events) {
		t.Fatalf("got %d records, want %d", len(records), len(events))
	}
	for i, record := range records {
		if record.Type != events[i].Type || record.Text != events[i].Text ||
			record.TsStart != events[i].TsStart || record.TsEnd != events[i].TsEnd {
			t.Errorf("record %d: got %+v, want %+v", i, record, events[i])
		}
		if record.SessionId != "meeting-42" {
			t.Errorf("record %d: got session id %q", i, record.SessionId)
		}
		if _, err := time.Parse(time.RFC3339Nano, record.Timestamp); err != nil {
			t.Errorf("record %d: bad timestamp %q: %v", i, record.Timestamp, err)
		}
	}
}

func TestSessionLoggerSeparateFiles(t *testing.T) {
	logger, err := NewSessionLogger(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	logger.Append("a", SessionEvent{Type: "partial", Text: "one"})
	logger.Append("b", SessionEvent{Type: "partial", Text: "two"})

	if logger.LogPath("a") == logger.LogPath("b") {
		t.Fatal("sessions must not share a log file")
	}
	for _, id := range []string{"a", "b"} {
		if _, err := os.Stat(logger.LogPath(id)); err != nil {
			t.Errorf("missing log file for %s: %v", id, err)
		}
	}
}
