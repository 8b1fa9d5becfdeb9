// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package database

// schemaStatements creates all tables. Display-only string fields
// default to '' so scanning stays free of NULL handling; pub_date and
// rating timestamps are real TIMESTAMP columns because recency
// ordering is a tested contract, not a storage accident.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS items (
		item_id     VARCHAR PRIMARY KEY,
		title       VARCHAR NOT NULL,
		description VARCHAR NOT NULL,
		text        VARCHAR NOT NULL,
		publisher   VARCHAR NOT NULL DEFAULT '',
		authors     VARCHAR NOT NULL DEFAULT '',
		pub_date    TIMESTAMP NOT NULL,
		keywords    VARCHAR NOT NULL DEFAULT '',
		item_url    VARCHAR NOT NULL DEFAULT '',
		x           DOUBLE NOT NULL DEFAULT 0,
		y           DOUBLE NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id VARCHAR PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		user_id VARCHAR NOT NULL,
		item_id VARCHAR NOT NULL,
		rating  DOUBLE NOT NULL,
		ts      TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS similarities (
		item_id1 VARCHAR NOT NULL,
		item_id2 VARCHAR NOT NULL,
		simscore DOUBLE NOT NULL,
		PRIMARY KEY (item_id1, item_id2)
	)`,
	`CREATE TABLE IF NOT EXISTS search_index (
		term        VARCHAR PRIMARY KEY,
		doc_weights VARCHAR NOT NULL
	)`,
}

// initSchema applies the schema statements.
func (db *DB) initSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
