// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// ReplaceIndex atomically swaps the inverted search index. Stale
// terms from a previous build disappear; per-term doc weight maps are
// stored JSON-encoded. The commitBatch parameter only sizes the
// multi-row insert statements, the whole replace is one transaction.
func (db *DB) ReplaceIndex(ctx context.Context, index map[string]map[string]float64, commitBatch int) error {
	if commitBatch < 1 {
		commitBatch = 500
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace index: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM search_index`); err != nil {
		return fmt.Errorf("clear search index: %w", err)
	}

	args := make([]any, 0, commitBatch*2)
	flush := func() error {
		if len(args) == 0 {
			return nil
		}
		stmt := `INSERT INTO search_index (term, doc_weights) VALUES (?, ?)` +
			strings.Repeat(", (?, ?)", len(args)/2-1)
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert index batch: %w", err)
		}
		args = args[:0]
		return nil
	}

	for term, docWeights := range index {
		encoded, err := json.Marshal(docWeights)
		if err != nil {
			return fmt.Errorf("encode index entry %q: %w", term, err)
		}
		args = append(args, term, string(encoded))
		if len(args)/2 >= commitBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	return tx.Commit()
}

// IndexEntry returns the doc weight map for one term. Terms absent
// from every document have no entry; callers treat that as a zero
// contribution, not an error.
func (db *DB) IndexEntry(ctx context.Context, term string) (map[string]float64, error) {
	var encoded string
	err := db.conn.QueryRowContext(ctx,
		`SELECT doc_weights FROM search_index WHERE term = ?`, term).Scan(&encoded)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index entry %q: %w", term, err)
	}

	weights := make(map[string]float64)
	if err := json.Unmarshal([]byte(encoded), &weights); err != nil {
		return nil, fmt.Errorf("decode index entry %q: %w", term, err)
	}
	return weights, nil
}

// CountIndexTerms returns the number of indexed terms.
func (db *DB) CountIndexTerms(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM search_index`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count index terms: %w", err)
	}
	return n, nil
}
