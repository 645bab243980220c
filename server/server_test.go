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
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testServer(t *testing.T, config *Config) *Server {
	t.Helper()

	provider := &stubProvider{
		respond: func(filename string) (*TranscriptionResult, error) {
			return &TranscriptionResult{Text: "ok", Language: "en", Duration: 1.0}, nil
		},
	}
	audio := &stubAudio{info: &AudioInfo{Duration: 1.0, Size: 100}, limit: 20000000}
	transcriber := testTranscriber(t, provider, audio)
	registry := NewSessionRegistry(provider, stubWav{}, nil, nil, nil, 0)
	auth := NewAuth(config)

	return NewServer(config, auth, transcriber, registry, nil)
}

func multipartUpload(t *testing.T, fieldFilename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("audio", fieldFilename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("audio bytes"))
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	server := testServer(t, &Config{Listen: ":0"})

	recorder := httptest.NewRecorder()
	server.handleHealth(recorder, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d", recorder.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response["status"] != "ok" {
		t.Errorf("got %+v", response)
	}
}

func TestHandleTranscribeRejectsBadExtension(t *testing.T) {
	server := testServer(t, &Config{Listen: ":0"})

	body, contentType := multipartUpload(t, "notes.txt")
	request := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	request.Header.Set("Content-Type", contentType)

	recorder := httptest.NewRecorder()
	server.handleTranscribe(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", recorder.Code)
	}
}

func TestHandleTranscribeRejectsMissingFile(t *testing.T) {
	server := testServer(t, &Config{Listen: ":0"})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	writer.WriteField("language", "en")
	writer.Close()

	request := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	request.Header.Set("Content-Type", writer.FormDataContentType())

	recorder := httptest.NewRecorder()
	server.handleTranscribe(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", recorder.Code)
	}
}

func TestHandleTranscribeRequiresPassword(t *testing.T) {
	hash, err := HashPassword("sesame open")
	if err != nil {
		t.Fatal(err)
	}
	server := testServer(t, &Config{Listen: ":0", PasswordHash: hash})

	body, contentType := multipartUpload(t, "speech.mp3")
	request := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	request.Header.Set("Content-Type", contentType)

	recorder := httptest.NewRecorder()
	server.handleTranscribe(recorder, request)
	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("got status %d without password, want 401", recorder.Code)
	}
}

func TestHandleTranscribeAcceptsUpload(t *testing.T) {
	server := testServer(t, &Config{Listen: ":0"})

	body, contentType := multipartUpload(t, "speech.mp3")
	request := httptest.NewRequest(http.MethodPost, "/api/transcribe", body)
	request.Header.Set("Content-Type", contentType)

	recorder := httptest.NewRecorder()
	server.handleTranscribe(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		Success bool   `json:"success"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if !response.Success || response.Text != "ok" {
		t.Errorf("got %+v", response)
	}
}

func TestHandleSessionStart(t *testing.T) {
	server := testServer(t, &Config{Listen: ":0"})

	request := httptest.NewRequest(http.MethodPost, "/api/sessions/start", strings.NewReader(`{"language":"en"}`))
	recorder := httptest.NewRecorder()
	server.handleSessionStart(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", recorder.Code, recorder.Body.String())
	}

	var response struct {
		SessionId string `json:"sessionId"`
		Token     string `json:"token"`
		WsUrl     string `json:"wsUrl"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatal(err)
	}
	if response.SessionId == "" || response.Token == "" || response.WsUrl == "" {
		t.Errorf("got %+v", response)
	}

	if err := server.auth.VerifySessionToken(response.Token, response.SessionId); err != nil {
		t.Errorf("issued token does not verify: %v", err)
	}

	// The same explicit id cannot be started twice.
	again := httptest.NewRequest(http.MethodPost, "/api/sessions/start",
		strings.NewReader(`{"sessionId":"`+response.SessionId+`"}`))
	recorder = httptest.NewRecorder()
	server.handleSessionStart(recorder, again)
	if recorder.Code != http.StatusConflict {
		t.Errorf("got status %d for duplicate session, want 409", recorder.Code)
	}
}

func TestHandleTranscribeMethodNotAllowed(t *testing.T) {
	server := testServer(t, &Config{Listen: ":0"})

	recorder := httptest.NewRecorder()
	server.handleTranscribe(recorder, httptest.NewRequest(http.MethodGet, "/api/transcribe", nil))

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("got status %d, want 405", recorder.Code)
	}
}
