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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// OpenRouterTranscription implements TranscriptionProvider for
// OpenAI-compatible Whisper endpoints (OpenRouter, Groq)
type OpenRouterTranscription struct {
	available  bool
	apiKey     string
	baseUrl    string
	model      string
	httpClient *http.Client
}

// OpenRouterConfig contains configuration for the OpenRouter provider
type OpenRouterConfig struct {
	APIKey  string
	BaseUrl string // Defaults to the OpenRouter API
	Model   string // Defaults to whisper-large-v3
}

// NewOpenRouterTranscription creates a new OpenRouter transcription provider
func NewOpenRouterTranscription(config *OpenRouterConfig) *OpenRouterTranscription {
	openrouter := &OpenRouterTranscription{
		apiKey:  config.APIKey,
		baseUrl: config.BaseUrl,
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}

	if openrouter.baseUrl == "" {
		openrouter.baseUrl = "https://openrouter.ai/api/v1"
	}
	if openrouter.model == "" {
		openrouter.model = "openai/whisper-large-v3"
	}

	openrouter.available = openrouter.apiKey != ""

	return openrouter
}

// Transcribe uploads an audio buffer as multipart form data and decodes
// the verbose_json Whisper response
func (openrouter *OpenRouterTranscription) Transcribe(ctx context.Context, audio []byte, filename string, options TranscriptionOptions) (*TranscriptionResult, error) {
	if !openrouter.available {
		return nil, errors.New("OpenRouter not configured. Please provide API key")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", mimeTypeForExtension(extOf(filename)))

	filePart, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create file part: %v", ErrProviderRequest, err)
	}
	if _, err := filePart.Write(audio); err != nil {
		return nil, fmt.Errorf("%w: failed to write audio data: %v", ErrProviderRequest, err)
	}

	writer.WriteField("model", openrouter.model)

	if options.Language != "" && options.Language != "auto" {
		writer.WriteField("language", options.Language)
	}
	if options.Temperature > 0 {
		writer.WriteField("temperature", strconv.FormatFloat(options.Temperature, 'g', -1, 64))
	}
	if options.Prompt != "" {
		writer.WriteField("prompt", options.Prompt)
	}
	if options.ResponseFormat != "" {
		writer.WriteField("response_format", options.ResponseFormat)
	}
	if len(options.TimestampGranularities) > 0 {
		writer.WriteField("timestamp_granularities[]", strings.Join(options.TimestampGranularities, ","))
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("%w: failed to finish multipart form: %v", ErrProviderRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openrouter.baseUrl+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrProviderRequest, err)
	}

	req.Header.Set("Authorization", "Bearer "+openrouter.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	started := time.Now()

	resp, err := openrouter.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrProviderRequest, resp.StatusCode, string(bodyBytes))
	}

	var whisper struct {
		Text     string  `json:"text"`
		Language string  `json:"language"`
		Duration float64 `json:"duration"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&whisper); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrProviderRequest, err)
	}

	result := &TranscriptionResult{
		Text:     strings.TrimSpace(whisper.Text),
		Language: whisper.Language,
		Duration: whisper.Duration,
	}
	for _, segment := range whisper.Segments {
		result.Segments = append(result.Segments, Segment{
			Start: segment.Start,
			End:   segment.End,
			Text:  strings.TrimSpace(segment.Text),
		})
	}

	LogDebug("transcription completed in %dms, %d bytes", time.Since(started).Milliseconds(), len(audio))

	return result, nil
}

// IsAvailable checks if the provider is configured
func (openrouter *OpenRouterTranscription) IsAvailable() bool {
	return openrouter.available
}

// GetName returns the name of this transcription provider
func (openrouter *OpenRouterTranscription) GetName() string {
	return "OpenRouter"
}

func extOf(filename string) string {
	if idx := strings.LastIndexByte(filename, '.'); idx >= 0 {
		return filename[idx:]
	}
	return ""
}
