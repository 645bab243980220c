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
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Server is the thin HTTP/WebSocket transport around the transcription
// core
type Server struct {
	config      *Config
	auth        *Auth
	transcriber *Transcriber
	registry    *SessionRegistry
	database    *Database
	httpServer  *http.Server
	upgrader    websocket.Upgrader
}

// NewServer wires the transport around the core components
func NewServer(config *Config, auth *Auth, transcriber *Transcriber, registry *SessionRegistry, database *Database) *Server {
	server := &Server{
		config:      config,
		auth:        auth,
		transcriber: transcriber,
		registry:    registry,
		database:    database,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", server.handleHealth)
	mux.HandleFunc("/api/transcribe", server.handleTranscribe)
	mux.HandleFunc("/api/sessions/start", server.handleSessionStart)
	mux.HandleFunc("/ws", server.handleWebSocket)

	server.httpServer = &http.Server{
		Addr:    config.Listen,
		Handler: logRequests(mux),
	}

	return server
}

// Start runs the HTTP server until Shutdown
func (server *Server) Start() error {
	log.Printf("listening on %s", server.config.Listen)
	if err := server.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully
func (server *Server) Shutdown(ctx context.Context) error {
	return server.httpServer.Shutdown(ctx)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		LogDebug("%s %s %dms", r.Method, r.URL.Path, time.Since(started).Milliseconds())
	})
}

func writeJson(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, map[string]any{"success": false, "error": message})
}

func (server *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   Version,
		"sessions":  server.registry.SessionCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTranscribe accepts a multipart audio upload and returns the
// full transcription result
func (server *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !server.auth.CheckPassword(r.Header.Get("X-Api-Password")) {
		writeError(w, http.StatusUnauthorized, "invalid api password")
		return
	}

	started := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, defaultUploadLimitBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	upload, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no audio file provided")
		return
	}
	defer upload.Close()

	if err := ValidateAudioExtension(header.Filename); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	language := r.FormValue("language")
	if err := ValidateLanguage(language); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	timestamps := r.FormValue("timestamps")
	if timestamps == "" {
		timestamps = "segments"
	}

	tempFile, err := os.CreateTemp("", "upload_*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := io.Copy(tempFile, upload); err != nil {
		tempFile.Close()
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	tempFile.Close()

	mimeType := DetectMimeType(tempPath)
	log.Printf("transcribe request: %s (%s, %d bytes, language %s)", header.Filename, mimeType, header.Size, language)

	options := TranscriptionOptions{
		Language:               language,
		ResponseFormat:         "verbose_json",
		TimestampGranularities: []string{"segment"},
	}
	if timestamps == "word" {
		options.TimestampGranularities = []string{"word", "segment"}
	}

	result, err := server.transcriber.TranscribeFile(r.Context(), tempPath, options)
	if err != nil {
		LogError("transcription of %s failed: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if server.database != nil {
		if err := server.database.SaveTranscript(header.Filename, "file", result); err != nil {
			LogError("failed to archive transcript of %s: %v", header.Filename, err)
		}
	}

	writeJson(w, http.StatusOK, map[string]any{
		"success":  true,
		"text":     result.Text,
		"vtt":      result.VTT,
		"segments": result.Segments,
		"meta": map[string]any{
			"duration":         result.Meta.Duration,
			"language":         result.Meta.Language,
			"chunked":          result.Meta.Chunked,
			"chunkCount":       result.Meta.ChunkCount,
			"transcoded":       result.Meta.Transcoded,
			"latencyMs":        result.Meta.LatencyMs,
			"filename":         header.Filename,
			"mimeType":         mimeType,
			"originalSize":     header.Size,
			"processingTimeMs": time.Since(started).Milliseconds(),
		},
	})
}

// handleSessionStart creates a live session ahead of the WebSocket
// connection and returns its access token
func (server *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !server.auth.CheckPassword(r.Header.Get("X-Api-Password")) {
		writeError(w, http.StatusUnauthorized, "invalid api password")
		return
	}

	var request struct {
		SessionId string `json:"sessionId"`
		Language  string `json:"language"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&request)
	}

	if request.SessionId == "" {
		request.SessionId = uuid.NewString()
	}

	session, err := server.registry.StartSession(request.SessionId, request.Language)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrDuplicateSession) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	token, err := server.auth.GenerateSessionToken(session.SessionId)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate session token")
		return
	}
	session.Token = token

	writeJson(w, http.StatusOK, map[string]any{
		"sessionId": session.SessionId,
		"language":  session.Language,
		"token":     token,
		"wsUrl":     fmt.Sprintf("/ws?session=%s&token=%s", session.SessionId, token),
	})
}

// Client to server WebSocket message
type wsClientMessage struct {
	Type      string `json:"type"` // "start", "audio", "stop"
	SessionId string `json:"sessionId,omitempty"`
	Language  string `json:"language,omitempty"`
	Token     string `json:"token,omitempty"`
	Chunk     string `json:"chunk,omitempty"` // Base64 PCM frame
}

// handleWebSocket runs one live transcription connection. Messages of
// one connection are processed sequentially off the read loop, which
// is what serializes all ingestion for the session.
func (server *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.upgrader.Upgrade(w, r, nil)
	if err != nil {
		LogError("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	LogDebug("websocket client connected from %s", r.RemoteAddr)

	sessionId := ""
	notify := func(event SessionEvent) {
		if err := conn.WriteJSON(event); err != nil {
			LogDebug("websocket write failed: %v", err)
		}
	}

	sendError := func(message string) {
		conn.WriteJSON(map[string]string{"type": "error", "error": message})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var message wsClientMessage
		if err := json.Unmarshal(data, &message); err != nil {
			sendError("invalid message")
			continue
		}

		switch message.Type {
		case "start":
			if sessionId != "" {
				sendError("session already started")
				continue
			}

			if message.SessionId != "" && server.registry.GetSession(message.SessionId) != nil {
				// Attaching to a pre-created session requires its token.
				if err := server.auth.VerifySessionToken(message.Token, message.SessionId); err != nil {
					sendError(err.Error())
					continue
				}
				sessionId = message.SessionId
			} else {
				id := message.SessionId
				if id == "" {
					id = uuid.NewString()
				}
				session, err := server.registry.StartSession(id, message.Language)
				if err != nil {
					sendError(err.Error())
					continue
				}
				sessionId = session.SessionId
			}

			conn.WriteJSON(map[string]string{
				"type":      "started",
				"sessionId": sessionId,
				"language":  message.Language,
			})

		case "audio":
			if sessionId == "" {
				sendError("session not started")
				continue
			}

			frame, err := base64.StdEncoding.DecodeString(message.Chunk)
			if err != nil {
				sendError("invalid audio chunk encoding")
				continue
			}

			if err := server.registry.Ingest(r.Context(), sessionId, frame, notify); err != nil {
				sendError(err.Error())
			}

		case "stop":
			if sessionId == "" {
				sendError("session not started")
				continue
			}

			result, err := server.registry.Finalize(sessionId)
			if err != nil {
				sendError(err.Error())
				continue
			}

			conn.WriteJSON(map[string]any{
				"type":            "stopped",
				"sessionId":       sessionId,
				"finalTranscript": result.Text,
				"vtt":             result.VTT,
				"segments":        result.Segments,
			})
			sessionId = ""

		default:
			sendError("unknown message type")
		}
	}

	// Abandoned sessions are reclaimed by the registry's idle expiry.
	if sessionId != "" {
		LogDebug("websocket closed with session %s still active", sessionId)
	}
}
