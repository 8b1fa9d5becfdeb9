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
	"time"

	"github.com/tomtom215/papermap/internal/models"
)

const itemColumns = `item_id, title, description, text, publisher, authors, pub_date, keywords, item_url, x, y`

// scanItem reads one item row.
func scanItem(row interface{ Scan(...any) error }) (*models.Item, error) {
	var it models.Item
	err := row.Scan(&it.ID, &it.Title, &it.Description, &it.Text, &it.Publisher,
		&it.Authors, &it.PubDate, &it.Keywords, &it.URL, &it.X, &it.Y)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// UpsertItem creates the item or updates its mutable fields. The
// keyword is the one exception to overwrite semantics: an existing
// item keeps its keyword list and the new keyword is comma-appended
// when not already present.
func (db *DB) UpsertItem(ctx context.Context, item *models.Item) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert item: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingKeywords string
	err = tx.QueryRowContext(ctx,
		`SELECT keywords FROM items WHERE item_id = ?`, item.ID).Scan(&existingKeywords)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Title, item.Description, item.Text, item.Publisher,
			item.Authors, item.PubDate, item.Keywords, item.URL, item.X, item.Y)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", item.ID, err)
		}
	case err != nil:
		return fmt.Errorf("lookup item %s: %w", item.ID, err)
	default:
		merged := models.MergeKeyword(existingKeywords, item.Keywords)
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET title = ?, description = ?, text = ?, publisher = ?,
				authors = ?, pub_date = ?, keywords = ?, item_url = ?
			WHERE item_id = ?`,
			item.Title, item.Description, item.Text, item.Publisher,
			item.Authors, item.PubDate, merged, item.URL, item.ID)
		if err != nil {
			return fmt.Errorf("update item %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// GetItem returns the item or ErrNotFound.
func (db *DB) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE item_id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

// ItemExists reports whether the item id is known.
func (db *DB) ItemExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM items WHERE item_id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("item exists %s: %w", id, err)
	}
	return true, nil
}

// RecentItems returns items published after the cutoff, newest first.
// This is the default listing recommendations fall back to.
func (db *DB) RecentItems(ctx context.Context, cutoff time.Time, limit int) ([]models.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE pub_date > ? ORDER BY pub_date DESC LIMIT ?`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("recent items: %w", err)
	}
	return collectItems(rows)
}

// RandomItems returns a random selection of items published after the
// cutoff, so the discovery listing only surfaces reasonably fresh
// articles. A zero cutoff disables the recency filter.
func (db *DB) RandomItems(ctx context.Context, cutoff time.Time, limit int) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY random() LIMIT ?`
	args := []any{limit}
	if !cutoff.IsZero() {
		query = `SELECT ` + itemColumns + ` FROM items WHERE pub_date > ? ORDER BY random() LIMIT ?`
		args = []any{cutoff, limit}
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("random items: %w", err)
	}
	return collectItems(rows)
}

// SearchTitle returns items whose title contains the query,
// case-insensitively, newest first.
func (db *DB) SearchTitle(ctx context.Context, q string, limit int) ([]models.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		WHERE title ILIKE '%' || ? || '%'
		ORDER BY pub_date DESC LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search title: %w", err)
	}
	return collectItems(rows)
}

// SearchAuthors returns items whose author list contains the query,
// case-insensitively, newest first.
func (db *DB) SearchAuthors(ctx context.Context, q string, limit int) ([]models.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		WHERE authors ILIKE '%' || ? || '%'
		ORDER BY pub_date DESC LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("search authors: %w", err)
	}
	return collectItems(rows)
}

// SearchTextAll returns items whose padded full text contains every
// token, whitespace-bounded. Tokens must already be normalized the
// same way the text was at ingestion.
func (db *DB) SearchTextAll(ctx context.Context, tokens []string, limit int) ([]models.Item, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + itemColumns + ` FROM items WHERE `)
	args := make([]any, 0, len(tokens)+1)
	for i, tok := range tokens {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(`text LIKE '% ' || ? || ' %'`)
		args = append(args, tok)
	}
	sb.WriteString(` LIMIT ?`)
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}
	return collectItems(rows)
}

// AllItemTexts returns the full normalized text of every item, the
// input to the batch feature extraction jobs.
func (db *DB) AllItemTexts(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT item_id, text FROM items`)
	if err != nil {
		return nil, fmt.Errorf("all item texts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	texts := make(map[string]string)
	for rows.Next() {
		var id, text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scan item text: %w", err)
		}
		texts[id] = text
	}
	return texts, rows.Err()
}

// AllItems returns every item, for export jobs.
func (db *DB) AllItems(ctx context.Context) ([]models.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("all items: %w", err)
	}
	return collectItems(rows)
}

// CountItems returns the corpus size.
func (db *DB) CountItems(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

// collectItems drains an item result set.
func collectItems(rows *sql.Rows) ([]models.Item, error) {
	defer func() { _ = rows.Close() }()

	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}
