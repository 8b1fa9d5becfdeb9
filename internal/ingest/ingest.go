// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package ingest normalizes fetched article metadata into stored
// items and pulls new articles from the upstream PubMed and arXiv
// APIs.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/features"
	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/models"
)

// Store is the subset of the database ingestion needs.
type Store interface {
	UpsertItem(ctx context.Context, item *models.Item) error
}

// RawItem is one fetched article before normalization.
type RawItem struct {
	ID          string
	Title       string
	Description string
	// Extra is additional text indexed but never displayed (MeSH
	// terms, category labels).
	Extra     string
	Publisher string
	Authors   string
	PubDate   time.Time
	// Keyword is the search term the article was fetched under.
	Keyword string
	URL     string
}

// Processor turns raw fetched articles into stored items.
type Processor struct {
	store Store
	log   zerolog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(store Store) *Processor {
	return &Processor{
		store: store,
		log:   logging.With().Str("component", "ingest").Logger(),
	}
}

// ProcessItem normalizes and upserts one article. The searchable text
// is the normalized concatenation of title, description and extra
// text, padded with a space on both ends so whitespace-bounded token
// matches work at the edges.
func (p *Processor) ProcessItem(ctx context.Context, raw RawItem) error {
	if raw.ID == "" {
		return errors.New("item without id")
	}
	if raw.Title == "" {
		return fmt.Errorf("item %s without title", raw.ID)
	}

	title := features.NormWhitespace(raw.Title)
	description := features.NormWhitespace(raw.Description)
	text := " " + features.Normalize(title+"\n"+description+"\n"+raw.Extra) + " "

	item := &models.Item{
		ID:          raw.ID,
		Title:       title,
		Description: description,
		Text:        text,
		Publisher:   features.NormWhitespace(raw.Publisher),
		Authors:     features.NormWhitespace(raw.Authors),
		PubDate:     raw.PubDate,
		Keywords:    raw.Keyword,
		URL:         raw.URL,
	}
	if err := p.store.UpsertItem(ctx, item); err != nil {
		return fmt.Errorf("store item %s: %w", raw.ID, err)
	}
	return nil
}
