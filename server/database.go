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
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// Database archives finalized transcripts to PostgreSQL. The archive
// is optional; a nil *Database disables it everywhere.
type Database struct {
	Sql    *sql.DB
	Config *Config
}

// NewDatabase opens the PostgreSQL connection and ensures the schema.
// Returns nil without error when no database name is configured.
func NewDatabase(config *Config) (*Database, error) {
	if config.DbName == "" {
		return nil, nil
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		config.DbHost, config.DbPort, config.DbName, config.DbUsername, config.DbPassword)

	sqlDb, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := sqlDb.Ping(); err != nil {
		sqlDb.Close()
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	db := &Database{Sql: sqlDb, Config: config}

	if err := db.seed(); err != nil {
		sqlDb.Close()
		return nil, err
	}

	log.Printf("transcript archive enabled on %s:%d/%s", config.DbHost, config.DbPort, config.DbName)

	return db, nil
}

func (db *Database) seed() error {
	_, err := db.Sql.Exec(`CREATE TABLE IF NOT EXISTS "transcripts" (
		"transcriptId" serial PRIMARY KEY,
		"source" varchar(16) NOT NULL,
		"reference" varchar(256) NOT NULL,
		"text" text NOT NULL,
		"vtt" text NOT NULL,
		"segments" jsonb NOT NULL,
		"meta" jsonb NOT NULL,
		"createdAt" timestamptz NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create transcripts table: %v", err)
	}

	return nil
}

// SaveTranscript archives one finalized result. reference is the
// session id for live sessions or the upload filename for file jobs.
func (db *Database) SaveTranscript(reference string, source string, result *TranscribeFileResult) error {
	segments, err := json.Marshal(result.Segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %v", err)
	}

	meta, err := json.Marshal(result.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %v", err)
	}

	_, err = db.Sql.Exec(
		`INSERT INTO "transcripts" ("source", "reference", "text", "vtt", "segments", "meta", "createdAt") VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		source, reference, result.Text, result.VTT, segments, meta, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transcript: %v", err)
	}

	return nil
}

// Close shuts the database connection down
func (db *Database) Close() error {
	if db == nil || db.Sql == nil {
		return nil
	}
	return db.Sql.Close()
}
