// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package search implements the two query paths over the article
// corpus: staged keyword search against the live item table and
// relevance-ranked search against the precomputed inverted index.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/database"
	"github.com/tomtom215/papermap/internal/features"
	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/models"
)

// scoreThreshold is the minimum relevance score for an item to be
// returned. Filters out floating point dust from near-zero index
// weights.
const scoreThreshold = 1e-5

// Store is the subset of the database the searcher needs.
type Store interface {
	SearchTitle(ctx context.Context, q string, limit int) ([]models.Item, error)
	SearchAuthors(ctx context.Context, q string, limit int) ([]models.Item, error)
	SearchTextAll(ctx context.Context, tokens []string, limit int) ([]models.Item, error)
	IndexEntry(ctx context.Context, term string) (map[string]float64, error)
	GetItem(ctx context.Context, id string) (*models.Item, error)
}

// Mode identifies which keyword search stage produced the results.
type Mode int

const (
	// MatchTitle means the query matched item titles.
	MatchTitle Mode = iota + 1
	// MatchAuthors means no title matched and the query matched
	// author lists.
	MatchAuthors
	// MatchText means neither titles nor authors matched and every
	// query token was found in item full texts.
	MatchText
)

// Result pairs an item with its relevance score.
type Result struct {
	Item  models.Item
	Score float64
}

// Searcher answers keyword and relevance queries.
type Searcher struct {
	store         Store
	maxQueryTerms int
	log           zerolog.Logger
}

// New creates a Searcher. maxQueryTerms caps how many query tokens
// the relevance path considers.
func New(store Store, maxQueryTerms int) *Searcher {
	return &Searcher{
		store:         store,
		maxQueryTerms: maxQueryTerms,
		log:           logging.With().Str("component", "search").Logger(),
	}
}

// Keyword runs the staged keyword search: titles first, then author
// lists, then a conjunctive full-text match on the normalized query
// tokens. The first stage with any hits wins; title and author
// matches use the query string literally, only the full-text stage
// normalizes it. Results come back newest first.
func (s *Searcher) Keyword(ctx context.Context, query string, limit int) ([]models.Item, Mode, error) {
	items, err := s.store.SearchTitle(ctx, query, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("title search: %w", err)
	}
	if len(items) > 0 {
		return items, MatchTitle, nil
	}

	items, err = s.store.SearchAuthors(ctx, query, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("author search: %w", err)
	}
	if len(items) > 0 {
		return items, MatchAuthors, nil
	}

	tokens := features.Tokenize(features.Normalize(query))
	if len(tokens) == 0 {
		return nil, MatchText, nil
	}
	items, err = s.store.SearchTextAll(ctx, tokens, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("text search: %w", err)
	}
	return items, MatchText, nil
}

// Relevance scores items against the query via the inverted index.
// Each distinct token contributes its indexed weight once per
// document; document scores are the accumulated sum divided by the
// square root of the distinct token count, so longer queries are not
// rewarded for breadth alone and repeating a term changes nothing.
func (s *Searcher) Relevance(ctx context.Context, query string, limit int) ([]Result, error) {
	tokens := features.Tokenize(features.Normalize(query))
	if len(tokens) > s.maxQueryTerms {
		tokens = tokens[:s.maxQueryTerms]
	}
	// Dedupe after the cap so a repeated early term cannot push a
	// distinct later one past it.
	terms := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		terms[tok] = struct{}{}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	scores := make(map[string]float64)
	for tok := range terms {
		weights, err := s.store.IndexEntry(ctx, tok)
		if err != nil {
			return nil, fmt.Errorf("index lookup %q: %w", tok, err)
		}
		for docID, w := range weights {
			scores[docID] += w
		}
	}

	// The threshold applies to the raw accumulated sum, before the
	// query-length normalization.
	norm := math.Sqrt(float64(len(terms)))
	type scored struct {
		id    string
		score float64
	}
	ranked := make([]scored, 0, len(scores))
	for docID, sum := range scores {
		if sum > scoreThreshold {
			ranked = append(ranked, scored{id: docID, score: sum / norm})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]Result, 0, len(ranked))
	for _, r := range ranked {
		item, err := s.store.GetItem(ctx, r.id)
		if errors.Is(err, database.ErrNotFound) {
			// The index can briefly reference items removed since the
			// last rebuild.
			s.log.Warn().Str("item_id", r.id).Msg("indexed item missing, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load item %s: %w", r.id, err)
		}
		results = append(results, Result{Item: *item, Score: r.score})
	}
	return results, nil
}
