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
	"time"

	"github.com/tomtom215/papermap/internal/models"
)

// RatedItem pairs an item with the rating a user gave it.
type RatedItem struct {
	Item   models.Item
	Rating models.Rating
}

// UpsertRating records a user's rating for an item. The user is
// created lazily; the item must already exist (ErrNotFound
// otherwise). A second rating for the same (user, item) pair
// overwrites value and timestamp, so concurrent writes for the same
// pair serialize to exactly one surviving value.
func (db *DB) UpsertRating(ctx context.Context, userID, itemID string, rating float64) error {
	exists, err := db.ItemExists(ctx, itemID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("rate item %s: %w", itemID, ErrNotFound)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert rating: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (user_id) VALUES (?) ON CONFLICT DO NOTHING`, userID); err != nil {
		return fmt.Errorf("ensure user %s: %w", userID, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO ratings (user_id, item_id, rating, ts) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, item_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			ts = EXCLUDED.ts`,
		userID, itemID, rating, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert rating (%s, %s): %w", userID, itemID, err)
	}

	return tx.Commit()
}

// UserExists reports whether the user id is known.
func (db *DB) UserExists(ctx context.Context, userID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("user exists %s: %w", userID, err)
	}
	return true, nil
}

// UserRatings returns the user's rated items, most recent rating
// first. The ordering is part of the store contract, not a storage
// default.
func (db *DB) UserRatings(ctx context.Context, userID string) ([]RatedItem, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+prefixedItemColumns("i")+`, r.user_id, r.item_id, r.rating, r.ts
		FROM ratings r JOIN items i ON i.item_id = r.item_id
		WHERE r.user_id = ?
		ORDER BY r.ts DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("user ratings %s: %w", userID, err)
	}
	defer func() { _ = rows.Close() }()

	var rated []RatedItem
	for rows.Next() {
		var ri RatedItem
		err := rows.Scan(&ri.Item.ID, &ri.Item.Title, &ri.Item.Description, &ri.Item.Text,
			&ri.Item.Publisher, &ri.Item.Authors, &ri.Item.PubDate, &ri.Item.Keywords,
			&ri.Item.URL, &ri.Item.X, &ri.Item.Y,
			&ri.Rating.UserID, &ri.Rating.ItemID, &ri.Rating.Rating, &ri.Rating.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan rated item: %w", err)
		}
		rated = append(rated, ri)
	}
	return rated, rows.Err()
}

// prefixedItemColumns qualifies the item column list with a table
// alias for joins.
func prefixedItemColumns(alias string) string {
	return alias + ".item_id, " + alias + ".title, " + alias + ".description, " +
		alias + ".text, " + alias + ".publisher, " + alias + ".authors, " +
		alias + ".pub_date, " + alias + ".keywords, " + alias + ".item_url, " +
		alias + ".x, " + alias + ".y"
}
