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
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

func main() {
	log.Printf("transcription agent server v%s", Version)

	config := NewConfig()
	if config == nil {
		os.Exit(-1)
	}
	RunSetupTasks(config)
	SetDebugLog(config.EnableDebugLog)

	if err := CheckFFmpeg(); err != nil {
		log.Fatalf("startup check failed: %v", err)
	}

	if config.ApiKey == "" {
		log.Fatal("no transcription api key configured (-api_key or the ini file)")
	}

	database, err := NewDatabase(config)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if database == nil {
		log.Print("no database configured, transcript archiving disabled")
	} else {
		defer database.Close()
	}

	provider := NewOpenRouterTranscription(&OpenRouterConfig{
		APIKey:  config.ApiKey,
		BaseUrl: config.ApiBaseUrl,
		Model:   config.ApiModel,
	})

	audio := NewAudioProcessor(config.MaxFileSizeBytes())
	transcriber := NewTranscriber(provider, audio, config)

	var detector *VoiceDetector
	if config.EnableVoiceDetection {
		detector = NewVoiceDetector(liveSampleRate)
	}

	sessionLogger, err := NewSessionLogger(filepath.Join(config.GetDataDirPath(), "sessions"))
	if err != nil {
		log.Fatalf("session log setup failed: %v", err)
	}

	idleTimeout := time.Duration(config.SessionIdleSec) * time.Second
	registry := NewSessionRegistry(provider, audio, detector, sessionLogger, database, idleTimeout)

	auth := NewAuth(config)
	server := NewServer(config, auth, transcriber, registry, database)

	watcher, err := WatchConfigFile(config)
	if err != nil {
		log.Printf("config file watch unavailable: %v", err)
	} else {
		defer watcher.Close()
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("server failed: %v", err)
		}
	case sig := <-shutdown:
		log.Printf("received %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}
}
