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
	"errors"
	"fmt"
	"testing"
	"time"
)

type stubWav struct{}

func (stubWav) BufferToWAV(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	return pcm, nil
}

// liveTestRegistry returns a registry whose provider yields one fixed
// text per transcribed window, in order.
func liveTestRegistry(texts []string, providerErr error) (*SessionRegistry, *stubProvider) {
	index := 0
	provider := &stubProvider{
		respond: func(filename string) (*TranscriptionResult, error) {
			if providerErr != nil {
				return nil, providerErr
			}
			text := ""
			if index < len(texts) {
				text = texts[index]
				index++
			}
			return &TranscriptionResult{Text: text, Language: "en"}, nil
		},
	}
	return NewSessionRegistry(provider, stubWav{}, nil, nil, nil, 0), provider
}

func fullWindow() []byte {
	return make([]byte, liveWindowBytes)
}

func collectEvents(events *[]SessionEvent) SessionNotifier {
	return func(event SessionEvent) {
		*events = append(*events, event)
	}
}

func TestStartSessionDuplicate(t *testing.T) {
	registry, _ := liveTestRegistry(nil, nil)

	if _, err := registry.StartSession("meeting-1", "en"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := registry.StartSession("meeting-1", "en"); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("got %v, want ErrDuplicateSession", err)
	}

	// The id frees up again after finalize.
	if _, err := registry.Finalize("meeting-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := registry.StartSession("meeting-1", "en"); err != nil {
		t.Errorf("restart after finalize failed: %v", err)
	}
}

func TestStartSessionValidation(t *testing.T) {
	registry, _ := liveTestRegistry(nil, nil)

	if _, err := registry.StartSession("", "en"); err == nil {
		t.Error("empty session id must be rejected")
	}
	if _, err := registry.StartSession("bad/id", "en"); err == nil {
		t.Error("session id with a path separator must be rejected")
	}

	session, err := registry.StartSession("ok-id", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Language != "auto" {
		t.Errorf("got language %q, want auto default", session.Language)
	}
}

func TestIngestBuffersUntilWindowFull(t *testing.T) {
	registry, provider := liveTestRegistry([]string{"hello"}, nil)
	registry.StartSession("s1", "en")

	var events []SessionEvent
	half := make([]byte, liveWindowBytes/2)

	if err := registry.Ingest(context.Background(), "s1", half, collectEvents(&events)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.callCount() != 0 {
		t.Fatal("provider called before a full window accumulated")
	}

	if err := registry.Ingest(context.Background(), "s1", half, collectEvents(&events)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.callCount() != 1 {
		t.Fatalf("got %d provider calls, want 1", provider.callCount())
	}
	if len(events) == 0 || events[0].Type != "partial" || events[0].Text != "hello" {
		t.Errorf("got events %+v, want a hello partial", events)
	}
}

func TestIngestCommitsAfterThreePartials(t *testing.T) {
	registry, _ := liveTestRegistry([]string{"one", "two", "three"}, nil)
	registry.StartSession("s1", "en")

	// Pin lastCommit to now so the interval heuristic stays quiet and
	// only the partial count can trigger the commit.
	var events []SessionEvent
	for i := 0; i < 3; i++ {
		registry.GetSession("s1").lastCommit = time.Now()
		if err := registry.Ingest(context.Background(), "s1", fullWindow(), collectEvents(&events)); err != nil {
			t.Fatalf("window %d: %v", i, err)
		}
	}

	var finals []SessionEvent
	for _, event := range events {
		if event.Type == "final" {
			finals = append(finals, event)
		}
	}
	if len(finals) != 1 {
		t.Fatalf("got %d final events, want 1: %+v", len(finals), events)
	}
	if finals[0].Text != "one two three" {
		t.Errorf("got committed text %q", finals[0].Text)
	}

	session := registry.GetSession("s1")
	session.mutex.Lock()
	pending := len(session.pendingPartials)
	committed := len(session.committed)
	session.mutex.Unlock()
	if pending != 0 || committed != 1 {
		t.Errorf("got %d pending and %d committed, want 0 and 1", pending, committed)
	}
}

func TestIngestCommitsAfterInterval(t *testing.T) {
	registry, _ := liveTestRegistry([]string{"first", "second"}, nil)
	registry.StartSession("s1", "en")

	var events []SessionEvent
	registry.GetSession("s1").lastCommit = time.Now()
	if err := registry.Ingest(context.Background(), "s1", fullWindow(), collectEvents(&events)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Age the last commit past the interval instead of sleeping.
	registry.GetSession("s1").lastCommit = time.Now().Add(-liveCommitInterval - 50*time.Millisecond)
	if err := registry.Ingest(context.Background(), "s1", fullWindow(), collectEvents(&events)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := events[len(events)-1]
	if last.Type != "final" || last.Text != "first second" {
		t.Errorf("got %+v, want a final committing both partials", last)
	}
}

func TestIngestProviderFailureKeepsSession(t *testing.T) {
	registry, _ := liveTestRegistry(nil, fmt.Errorf("%w: upstream down", ErrProviderRequest))
	registry.StartSession("s1", "en")

	var events []SessionEvent
	if err := registry.Ingest(context.Background(), "s1", fullWindow(), collectEvents(&events)); err != nil {
		t.Fatalf("provider failure must not fail ingest: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got events %+v, want none", events)
	}
	if registry.GetSession("s1") == nil {
		t.Error("session was torn down by a provider failure")
	}
}

func TestIngestSkipsEmptyTranscripts(t *testing.T) {
	registry, _ := liveTestRegistry([]string{""}, nil)
	registry.StartSession("s1", "en")

	var events []SessionEvent
	if err := registry.Ingest(context.Background(), "s1", fullWindow(), collectEvents(&events)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got events %+v for an empty transcript", events)
	}
}

func TestFinalizeDiscardsPendingPartials(t *testing.T) {
	registry, _ := liveTestRegistry([]string{"one", "two", "three", "stray"}, nil)
	registry.StartSession("s1", "en")

	for i := 0; i < 4; i++ {
		registry.GetSession("s1").lastCommit = time.Now()
		if err := registry.Ingest(context.Background(), "s1", fullWindow(), nil); err != nil {
			t.Fatalf("window %d: %v", i, err)
		}
	}

	result, err := registry.Finalize("s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Three partials committed, the fourth was still pending.
	if result.Text != "one two three" {
		t.Errorf("got text %q, want the committed segment only", result.Text)
	}
	if len(result.Segments) != 1 {
		t.Errorf("got %d segments, want 1", len(result.Segments))
	}
}

func TestFinalizeUnknownSession(t *testing.T) {
	registry, _ := liveTestRegistry(nil, nil)

	if _, err := registry.Finalize("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}

func TestIngestAfterFinalize(t *testing.T) {
	registry, _ := liveTestRegistry(nil, nil)
	registry.StartSession("s1", "en")
	registry.Finalize("s1")

	err := registry.Ingest(context.Background(), "s1", fullWindow(), nil)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("got %v, want ErrSessionNotFound", err)
	}
}
