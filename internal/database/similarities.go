// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package database

import (
	"context"
	"fmt"

	"github.com/tomtom215/papermap/internal/models"
	"github.com/tomtom215/papermap/internal/similarity"
)

// SimilarItem pairs an item with its precomputed similarity score to
// some source item.
type SimilarItem struct {
	Item  models.Item
	Score float64
}

// SimilarItems returns the items most similar to the given one,
// ordered by descending score. The source item must exist.
func (db *DB) SimilarItems(ctx context.Context, itemID string, limit int) ([]SimilarItem, error) {
	exists, err := db.ItemExists(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("similar items for %s: %w", itemID, ErrNotFound)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+prefixedItemColumns("i")+`, s.simscore
		FROM similarities s JOIN items i ON i.item_id = s.item_id2
		WHERE s.item_id1 = ?
		ORDER BY s.simscore DESC
		LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("similar items %s: %w", itemID, err)
	}
	defer func() { _ = rows.Close() }()

	var similar []SimilarItem
	for rows.Next() {
		var si SimilarItem
		err := rows.Scan(&si.Item.ID, &si.Item.Title, &si.Item.Description, &si.Item.Text,
			&si.Item.Publisher, &si.Item.Authors, &si.Item.PubDate, &si.Item.Keywords,
			&si.Item.URL, &si.Item.X, &si.Item.Y, &si.Score)
		if err != nil {
			return nil, fmt.Errorf("scan similar item: %w", err)
		}
		similar = append(similar, si)
	}
	return similar, rows.Err()
}

// ReplaceSimilarities atomically swaps the entire similarity edge set
// and updates every item's embedding coordinates. Readers never
// observe a half-updated edge set: the delete, the inserts and the
// coordinate updates commit together or not at all.
func (db *DB) ReplaceSimilarities(ctx context.Context, res *similarity.Result) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace similarities: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM similarities`); err != nil {
		return fmt.Errorf("clear similarities: %w", err)
	}

	insert, err := tx.PrepareContext(ctx,
		`INSERT INTO similarities (item_id1, item_id2, simscore) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	for _, e := range res.Edges {
		if _, err := insert.ExecContext(ctx, e.SourceID, e.TargetID, e.Score); err != nil {
			return fmt.Errorf("insert edge %s->%s: %w", e.SourceID, e.TargetID, err)
		}
	}

	coords, err := tx.PrepareContext(ctx,
		`UPDATE items SET x = ?, y = ? WHERE item_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare coordinate update: %w", err)
	}
	defer func() { _ = coords.Close() }()

	for id, c := range res.Coords {
		if _, err := coords.ExecContext(ctx, c.X, c.Y, id); err != nil {
			return fmt.Errorf("update coordinates %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// CountSimilarities returns the number of stored edges.
func (db *DB) CountSimilarities(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM similarities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count similarities: %w", err)
	}
	return n, nil
}
