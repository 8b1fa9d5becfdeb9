// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package database is the DuckDB-backed store for items, users,
// ratings, similarity edges and the inverted search index.
//
// The store exposes exactly the query shapes the service needs:
// keyed upserts and lookups, a user's ratings by recency, an item's
// outbound similarity edges by descending score, full-corpus
// iteration for batch jobs, and transactional bulk replacement of the
// similarity edge set and the inverted index.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/logging"
)

// ErrNotFound indicates a referenced item, user or rating does not
// exist. It is never silently defaulted; callers decide how to
// surface it.
var ErrNotFound = errors.New("not found")

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?threads=%d&max_memory=%s", cfg.Path, numThreads, cfg.MaxMemory)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	if err := db.initSchema(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Msg("database ready")
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
