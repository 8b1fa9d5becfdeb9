// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package recommend builds personalized article lists from a user's
// rating history and the precomputed item similarity graph.
package recommend

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/database"
	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/models"
)

// Store is the subset of the database the engine needs.
type Store interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	UserRatings(ctx context.Context, userID string) ([]database.RatedItem, error)
	SimilarItems(ctx context.Context, itemID string, limit int) ([]database.SimilarItem, error)
	RecentItems(ctx context.Context, cutoff time.Time, limit int) ([]models.Item, error)
}

// Recommendation pairs a candidate item with its aggregate score.
// Score is 0 for fallback recommendations, which are recency-driven
// rather than similarity-driven.
type Recommendation struct {
	Item  models.Item
	Score float64
}

// Engine computes recommendation lists.
type Engine struct {
	store Store
	cfg   config.RecommendConfig
	rng   *rand.Rand
	now   func() time.Time
	log   zerolog.Logger
}

// Fallback values for zero or negative tuning knobs, so a partially
// filled config never silently disables the similarity path.
const (
	defaultMaxRatedItems  = 50
	defaultSimilarPerItem = 10
)

// New creates an Engine. A zero cfg.Seed seeds the shuffle from the
// clock; a fixed seed makes the candidate shuffle reproducible.
// Non-positive MaxRatedItems and SimilarPerItem are clamped to their
// defaults.
func New(store Store, cfg config.RecommendConfig) *Engine {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.MaxRatedItems <= 0 {
		cfg.MaxRatedItems = defaultMaxRatedItems
	}
	if cfg.SimilarPerItem <= 0 {
		cfg.SimilarPerItem = defaultSimilarPerItem
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(seed)),
		now:   time.Now,
		log:   logging.With().Str("component", "recommend").Logger(),
	}
}

// Recommend returns up to n items for the user. Users with no
// positive rating history (including unknown users) fall back to the
// most recent publications. n <= 0 selects the configured default.
func (e *Engine) Recommend(ctx context.Context, userID string, n int) ([]Recommendation, error) {
	if n <= 0 {
		n = e.cfg.DefaultN
	}

	exists, err := e.store.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user %s: %w", userID, err)
	}

	var ratings []database.RatedItem
	if exists {
		ratings, err = e.store.UserRatings(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("ratings for %s: %w", userID, err)
		}
	}

	positive := make([]database.RatedItem, 0, len(ratings))
	rated := make(map[string]struct{}, len(ratings))
	for _, r := range ratings {
		rated[r.Item.ID] = struct{}{}
		if r.Rating.Rating > 0 {
			positive = append(positive, r)
		}
	}

	if len(positive) == 0 {
		return e.fallback(ctx, userID, n)
	}

	// UserRatings is ordered most recent first; only the latest
	// positive ratings seed the candidate pool.
	if len(positive) > e.cfg.MaxRatedItems {
		positive = positive[:e.cfg.MaxRatedItems]
	}

	var cutoff time.Time
	if e.cfg.MaxAge > 0 {
		cutoff = e.now().Add(-e.cfg.MaxAge)
	}

	// MAX-merge: a candidate reachable from several rated items keeps
	// its single best similarity score, so one strong signal is not
	// outvoted by many weak ones.
	scores := make(map[string]float64)
	candidates := make(map[string]models.Item)
	for _, seed := range positive {
		similar, err := e.store.SimilarItems(ctx, seed.Item.ID, e.cfg.SimilarPerItem)
		if err != nil {
			return nil, fmt.Errorf("similar items for %s: %w", seed.Item.ID, err)
		}
		for _, s := range similar {
			if _, isRated := rated[s.Item.ID]; isRated {
				continue
			}
			if !cutoff.IsZero() && s.Item.PubDate.Before(cutoff) {
				continue
			}
			if s.Score > scores[s.Item.ID] {
				scores[s.Item.ID] = s.Score
				candidates[s.Item.ID] = s.Item
			}
		}
	}

	if len(candidates) == 0 {
		return e.fallback(ctx, userID, n)
	}

	ranked := make([]Recommendation, 0, len(candidates))
	for id, item := range candidates {
		ranked = append(ranked, Recommendation{Item: item, Score: scores[id]})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	// Shuffle the top slice of the pool so repeat visits see variety
	// without surfacing weak candidates.
	pool := e.cfg.ShufflePool * n
	if pool < n {
		pool = n
	}
	if len(ranked) > pool {
		ranked = ranked[:pool]
	}
	e.rng.Shuffle(len(ranked), func(i, j int) { ranked[i], ranked[j] = ranked[j], ranked[i] })
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	e.log.Debug().
		Str("user_id", userID).
		Int("seeds", len(positive)).
		Int("returned", len(ranked)).
		Msg("similarity recommendations")
	return ranked, nil
}

// fallback serves the newest publications when no rating signal is
// available.
func (e *Engine) fallback(ctx context.Context, userID string, n int) ([]Recommendation, error) {
	var cutoff time.Time
	if e.cfg.MaxAge > 0 {
		cutoff = e.now().Add(-e.cfg.MaxAge)
	}
	items, err := e.store.RecentItems(ctx, cutoff, n)
	if err != nil {
		return nil, fmt.Errorf("recent items: %w", err)
	}

	recs := make([]Recommendation, len(items))
	for i, it := range items {
		recs[i] = Recommendation{Item: it}
	}
	e.log.Debug().
		Str("user_id", userID).
		Int("returned", len(recs)).
		Msg("fallback recommendations")
	return recs, nil
}
