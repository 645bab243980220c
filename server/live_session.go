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
	"sync"
	"time"
)

// Live session tuning. Windows are ~1s of 16kHz mono 16-bit PCM;
// partials promote to a committed segment after three windows or a
// 700ms commit gap.
const (
	liveSampleRate     = 16000
	liveChannels       = 1
	liveWindowBytes    = liveSampleRate * 2 // ~1s of samples
	liveCommitPartials = 3
	liveCommitInterval = 700 * time.Millisecond
)

// SessionEvent is one notification emitted by a live session, either a
// provisional partial or a committed final segment
type SessionEvent struct {
	Type    string  `json:"type"` // "partial" or "final"
	Text    string  `json:"text"`
	TsStart float64 `json:"tsStart"`
	TsEnd   float64 `json:"tsEnd"`
}

// SessionNotifier receives partial/final events for delivery to the
// transport layer
type SessionNotifier func(event SessionEvent)

// LiveSession is the mutable state of one streaming connection. It is
// owned exclusively by the registry; the per-session mutex serializes
// every ingest and finalize touching it.
type LiveSession struct {
	SessionId string
	Language  string
	Token     string

	mutex           sync.Mutex
	audioBuffer     []byte
	pendingPartials []string
	pendingStart    float64 // Window start of the oldest pending partial
	committed       []Segment
	lastCommit      time.Time
	startedAt       time.Time
	finalized       bool
	expiry          *time.Timer
}

// wavConverter wraps raw PCM windows for provider upload
type wavConverter interface {
	BufferToWAV(pcm []byte, sampleRate int, channels int) ([]byte, error)
}

// SessionRegistry owns all active live sessions and runs the
// ingest/commit/finalize state machine over them
type SessionRegistry struct {
	sessions    map[string]*LiveSession
	mutex       sync.RWMutex
	provider    TranscriptionProvider
	wav         wavConverter
	detector    *VoiceDetector // nil disables the speech gate
	logger      *SessionLogger // nil disables the event log
	database    *Database      // nil disables archiving
	idleTimeout time.Duration  // zero disables idle expiry
}

// NewSessionRegistry creates an empty live session registry
func NewSessionRegistry(provider TranscriptionProvider, wav wavConverter, detector *VoiceDetector, logger *SessionLogger, database *Database, idleTimeout time.Duration) *SessionRegistry {
	return &SessionRegistry{
		sessions:    map[string]*LiveSession{},
		provider:    provider,
		wav:         wav,
		detector:    detector,
		logger:      logger,
		database:    database,
		idleTimeout: idleTimeout,
	}
}

// StartSession creates a new live session. Starting a session whose id
// is already active fails rather than overwriting, so a reconnecting
// client cannot silently discard another connection's state.
func (registry *SessionRegistry) StartSession(sessionId string, language string) (*LiveSession, error) {
	if err := ValidateSessionId(sessionId); err != nil {
		return nil, err
	}
	if language == "" {
		language = "auto"
	}

	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if _, exists := registry.sessions[sessionId]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSession, sessionId)
	}

	now := time.Now()
	session := &LiveSession{
		SessionId:  sessionId,
		Language:   language,
		startedAt:  now,
		lastCommit: now,
	}

	if registry.idleTimeout > 0 {
		session.expiry = time.AfterFunc(registry.idleTimeout, func() {
			log.Printf("live session %s idle for %s, finalizing", sessionId, registry.idleTimeout)
			if _, err := registry.Finalize(sessionId); err != nil {
				LogDebug("idle finalize of %s: %v", sessionId, err)
			}
		})
	}

	registry.sessions[sessionId] = session

	log.Printf("live session started: %s (language %s)", sessionId, language)

	return session, nil
}

// GetSession returns an active session, or nil when unknown
func (registry *SessionRegistry) GetSession(sessionId string) *LiveSession {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	return registry.sessions[sessionId]
}

// SessionCount returns the number of active sessions
func (registry *SessionRegistry) SessionCount() int {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()
	return len(registry.sessions)
}

// Ingest accumulates a raw PCM frame into a session. Once a full ~1s
// window is buffered it is transcribed on its own; non-empty text is
// appended to the pending partials and the commit heuristic promotes
// pending partials to a committed segment after 3 partials or a 700ms
// gap since the last commit. Provider failures skip the window and keep
// the session alive.
func (registry *SessionRegistry) Ingest(ctx context.Context, sessionId string, frame []byte, notify SessionNotifier) error {
	session := registry.GetSession(sessionId)
	if session == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}

	session.mutex.Lock()
	defer session.mutex.Unlock()

	if session.finalized {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}

	if session.expiry != nil {
		session.expiry.Reset(registry.idleTimeout)
	}

	session.audioBuffer = append(session.audioBuffer, frame...)
	if len(session.audioBuffer) < liveWindowBytes {
		return nil
	}

	window := session.audioBuffer
	session.audioBuffer = nil

	elapsed := time.Since(session.startedAt).Seconds()
	windowSeconds := float64(len(window)) / float64(liveSampleRate*2*liveChannels)

	if registry.detector != nil && !registry.detector.HasSpeech(window) {
		LogDebug("session %s: window at %.1fs has no speech energy, skipped", sessionId, elapsed)
		return nil
	}

	wavAudio, err := registry.wav.BufferToWAV(window, liveSampleRate, liveChannels)
	if err != nil {
		LogError("session %s: wav conversion failed, window skipped: %v", sessionId, err)
		return nil
	}

	language := session.Language
	if language == "auto" {
		language = ""
	}

	result, err := registry.provider.Transcribe(ctx, wavAudio, fmt.Sprintf("live_%s_%d.wav", sessionId, time.Now().UnixMilli()), TranscriptionOptions{
		Language:               language,
		ResponseFormat:         "verbose_json",
		TimestampGranularities: []string{"segment"},
	})
	if err != nil {
		// Transient provider errors never tear the session down.
		LogError("session %s: window transcription failed, skipped: %v", sessionId, err)
		return nil
	}

	text := result.Text
	if text == "" {
		return nil
	}

	if len(session.pendingPartials) == 0 {
		session.pendingStart = elapsed - windowSeconds
	}
	session.pendingPartials = append(session.pendingPartials, text)

	partial := SessionEvent{
		Type:    "partial",
		Text:    text,
		TsStart: elapsed - windowSeconds,
		TsEnd:   elapsed,
	}
	registry.emit(session, partial, notify)

	if len(session.pendingPartials) >= liveCommitPartials || time.Since(session.lastCommit) > liveCommitInterval {
		registry.commit(session, elapsed, notify)
	}

	return nil
}

// commit promotes all pending partials into one committed segment
// spanning from the oldest partial's window start to the current window
// end. Caller holds the session mutex.
func (registry *SessionRegistry) commit(session *LiveSession, elapsed float64, notify SessionNotifier) {
	segment := Segment{
		Start: session.pendingStart,
		End:   elapsed,
		Text:  joinPartials(session.pendingPartials),
	}

	session.committed = append(session.committed, segment)
	session.pendingPartials = nil
	session.lastCommit = time.Now()

	registry.emit(session, SessionEvent{
		Type:    "final",
		Text:    segment.Text,
		TsStart: segment.Start,
		TsEnd:   segment.End,
	}, notify)
}

func (registry *SessionRegistry) emit(session *LiveSession, event SessionEvent, notify SessionNotifier) {
	if notify != nil {
		notify(event)
	}
	if registry.logger != nil {
		if err := registry.logger.Append(session.SessionId, event); err != nil {
			LogError("session %s: failed to log %s event: %v", session.SessionId, event.Type, err)
		}
	}
}

// Finalize returns the committed transcript of a session and destroys
// it. Pending partials that never met the commit heuristic are
// discarded, never auto-promoted.
func (registry *SessionRegistry) Finalize(sessionId string) (*TranscribeFileResult, error) {
	registry.mutex.Lock()
	session := registry.sessions[sessionId]
	delete(registry.sessions, sessionId)
	registry.mutex.Unlock()

	if session == nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}

	session.mutex.Lock()
	defer session.mutex.Unlock()

	session.finalized = true
	if session.expiry != nil {
		session.expiry.Stop()
	}

	if dropped := len(session.pendingPartials); dropped > 0 {
		LogDebug("session %s: discarding %d uncommitted partials on finalize", sessionId, dropped)
	}

	elapsed := time.Since(session.startedAt)

	result := &TranscribeFileResult{
		Text:     ToText(session.committed),
		VTT:      ToVTT(session.committed),
		Segments: session.committed,
		Meta: TranscribeMeta{
			Duration:  elapsed.Seconds(),
			Language:  session.Language,
			LatencyMs: elapsed.Milliseconds(),
		},
	}

	if registry.database != nil {
		if err := registry.database.SaveTranscript(sessionId, "live", result); err != nil {
			LogError("session %s: failed to archive transcript: %v", sessionId, err)
		}
	}

	log.Printf("live session finalized: %s (%d segments)", sessionId, len(result.Segments))

	return result, nil
}

func joinPartials(partials []string) string {
	joined := ""
	for i, partial := range partials {
		if i > 0 {
			joined += " "
		}
		joined += partial
	}
	return joined
}
