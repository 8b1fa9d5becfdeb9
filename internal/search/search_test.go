// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package search

import (
	"context"
	"math"
	"testing"

	"github.com/tomtom215/papermap/internal/database"
	"github.com/tomtom215/papermap/internal/models"
)

// fakeStore serves canned query results and records which stages ran.
type fakeStore struct {
	titleHits   []models.Item
	authorHits  []models.Item
	textHits    []models.Item
	index       map[string]map[string]float64
	items       map[string]models.Item
	textQueries [][]string
}

func (f *fakeStore) SearchTitle(_ context.Context, _ string, _ int) ([]models.Item, error) {
	return f.titleHits, nil
}

func (f *fakeStore) SearchAuthors(_ context.Context, _ string, _ int) ([]models.Item, error) {
	return f.authorHits, nil
}

func (f *fakeStore) SearchTextAll(_ context.Context, tokens []string, _ int) ([]models.Item, error) {
	f.textQueries = append(f.textQueries, tokens)
	return f.textHits, nil
}

func (f *fakeStore) IndexEntry(_ context.Context, term string) (map[string]float64, error) {
	return f.index[term], nil
}

func (f *fakeStore) GetItem(_ context.Context, id string) (*models.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &it, nil
}

func item(id string) models.Item { return models.Item{ID: id, Title: "Paper " + id} }

func TestKeywordStages(t *testing.T) {
	tests := []struct {
		name     string
		store    *fakeStore
		wantIDs  []string
		wantMode Mode
	}{
		{
			name:     "title hit short-circuits",
			store:    &fakeStore{titleHits: []models.Item{item("t")}, authorHits: []models.Item{item("a")}},
			wantIDs:  []string{"t"},
			wantMode: MatchTitle,
		},
		{
			name:     "author fallback",
			store:    &fakeStore{authorHits: []models.Item{item("a")}},
			wantIDs:  []string{"a"},
			wantMode: MatchAuthors,
		},
		{
			name:     "full text fallback",
			store:    &fakeStore{textHits: []models.Item{item("x")}},
			wantIDs:  []string{"x"},
			wantMode: MatchText,
		},
		{
			name:     "no hits anywhere",
			store:    &fakeStore{},
			wantIDs:  nil,
			wantMode: MatchText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.store, 500)
			got, mode, err := s.Keyword(context.Background(), "climate model", 10)
			if err != nil {
				t.Fatalf("Keyword() error = %v", err)
			}
			if mode != tt.wantMode {
				t.Errorf("mode = %d, want %d", mode, tt.wantMode)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d items, want %d", len(got), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if got[i].ID != id {
					t.Errorf("item[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestKeywordNormalizesTextStageTokens(t *testing.T) {
	store := &fakeStore{}
	s := New(store, 500)

	if _, _, err := s.Keyword(context.Background(), "  Thérèse's   Model! ", 10); err != nil {
		t.Fatalf("Keyword() error = %v", err)
	}
	if len(store.textQueries) != 1 {
		t.Fatalf("text stage ran %d times, want 1", len(store.textQueries))
	}
	got := store.textQueries[0]
	want := []string{"therese's", "model"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRelevanceScoring(t *testing.T) {
	store := &fakeStore{
		index: map[string]map[string]float64{
			"climate": {"a": 0.8, "b": 0.2},
			"ocean":   {"a": 0.4, "c": 0.9},
		},
		items: map[string]models.Item{
			"a": item("a"), "b": item("b"), "c": item("c"),
		},
	}
	s := New(store, 500)

	got, err := s.Relevance(context.Background(), "climate ocean", 10)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}

	// a sums both terms, then everything is divided by sqrt(2).
	norm := math.Sqrt(2)
	if got[0].Item.ID != "a" {
		t.Errorf("top result = %s, want a", got[0].Item.ID)
	}
	if want := 1.2 / norm; math.Abs(got[0].Score-want) > 1e-12 {
		t.Errorf("score(a) = %v, want %v", got[0].Score, want)
	}
	if got[1].Item.ID != "c" {
		t.Errorf("second result = %s, want c", got[1].Item.ID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("results not in descending order at %d", i)
		}
	}
}

func TestRelevanceIgnoresRepeatedTokens(t *testing.T) {
	store := &fakeStore{
		index: map[string]map[string]float64{
			"brexit": {"1": 0.5},
		},
		items: map[string]models.Item{"1": item("1")},
	}
	s := New(store, 500)

	single, err := s.Relevance(context.Background(), "brexit", 10)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	doubled, err := s.Relevance(context.Background(), "brexit brexit", 10)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	if len(single) != 1 || len(doubled) != 1 {
		t.Fatalf("got %d and %d results, want 1 and 1", len(single), len(doubled))
	}
	if single[0].Score != 0.5 {
		t.Errorf("score = %v, want 0.5", single[0].Score)
	}
	if doubled[0].Score != single[0].Score {
		t.Errorf("repeated token changed score: %v vs %v", doubled[0].Score, single[0].Score)
	}
}

func TestRelevanceFiltersTinyScores(t *testing.T) {
	store := &fakeStore{
		index: map[string]map[string]float64{
			"rare": {"a": 1e-9},
		},
		items: map[string]models.Item{"a": item("a")},
	}
	s := New(store, 500)

	got, err := s.Relevance(context.Background(), "rare", 10)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results, want 0 below threshold", len(got))
	}
}

func TestRelevanceThresholdUsesRawSum(t *testing.T) {
	// The raw sum clears the threshold; only the normalized score
	// falls below it. The item must survive.
	store := &fakeStore{
		index: map[string]map[string]float64{
			"alpha": {"a": 6e-6},
			"beta":  {"a": 6e-6},
		},
		items: map[string]models.Item{"a": item("a")},
	}
	s := New(store, 500)

	got, err := s.Relevance(context.Background(), "alpha beta", 10)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if want := 1.2e-5 / math.Sqrt(2); math.Abs(got[0].Score-want) > 1e-18 {
		t.Errorf("score = %v, want %v", got[0].Score, want)
	}
}

func TestRelevanceSkipsMissingItems(t *testing.T) {
	store := &fakeStore{
		index: map[string]map[string]float64{
			"climate": {"gone": 0.9, "a": 0.5},
		},
		items: map[string]models.Item{"a": item("a")},
	}
	s := New(store, 500)

	got, err := s.Relevance(context.Background(), "climate", 10)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	if len(got) != 1 || got[0].Item.ID != "a" {
		t.Errorf("got %v, want only item a", got)
	}
}

func TestRelevanceCapsQueryTerms(t *testing.T) {
	store := &fakeStore{
		index: map[string]map[string]float64{
			"alpha": {"a": 1.0},
			"beta":  {"b": 1.0},
		},
		items: map[string]models.Item{"a": item("a"), "b": item("b")},
	}
	s := New(store, 1)

	got, err := s.Relevance(context.Background(), "alpha beta", 10)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	// Only the first token survives the cap, and the norm uses the
	// capped count.
	if len(got) != 1 || got[0].Item.ID != "a" {
		t.Fatalf("got %v, want only item a", got)
	}
	if math.Abs(got[0].Score-1.0) > 1e-12 {
		t.Errorf("score = %v, want 1.0", got[0].Score)
	}
}

func TestRelevanceEmptyQuery(t *testing.T) {
	s := New(&fakeStore{}, 500)

	got, err := s.Relevance(context.Background(), "   !!! ", 10)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil for empty query", got)
	}
}

func TestRelevanceLimit(t *testing.T) {
	store := &fakeStore{
		index: map[string]map[string]float64{
			"x": {"a": 0.9, "b": 0.8, "c": 0.7},
		},
		items: map[string]models.Item{"a": item("a"), "b": item("b"), "c": item("c")},
	}
	s := New(store, 500)

	got, err := s.Relevance(context.Background(), "x", 2)
	if err != nil {
		t.Fatalf("Relevance() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Item.ID != "a" || got[1].Item.ID != "b" {
		t.Errorf("order = [%s %s], want [a b]", got[0].Item.ID, got[1].Item.ID)
	}
}
