// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/similarity"
)

type fakeStore struct {
	texts map[string]string

	replacedIndex  map[string]map[string]float64
	replacedResult *similarity.Result
	indexErr       error
}

func (f *fakeStore) AllItemTexts(_ context.Context) (map[string]string, error) {
	return f.texts, nil
}

func (f *fakeStore) ReplaceIndex(_ context.Context, index map[string]map[string]float64, _ int) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.replacedIndex = index
	return nil
}

func (f *fakeStore) ReplaceSimilarities(_ context.Context, res *similarity.Result) error {
	f.replacedResult = res
	return nil
}

var testTexts = map[string]string{
	"a": " protein folding structure prediction ",
	"b": " protein structure crystallography ",
	"c": " climate ocean temperature model ",
	"d": " ocean circulation climate warming ",
}

func TestRebuildIndex(t *testing.T) {
	store := &fakeStore{texts: testTexts}
	r := NewRunner(store, nil, nil, nil, nil, config.Default())

	if err := r.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("RebuildIndex() error = %v", err)
	}
	if store.replacedIndex == nil {
		t.Fatal("index was not replaced")
	}

	weights, ok := store.replacedIndex["protein"]
	if !ok {
		t.Fatal("index misses the term protein")
	}
	if _, ok := weights["a"]; !ok {
		t.Error("protein entry misses document a")
	}
	if _, ok := weights["c"]; ok {
		t.Error("protein entry contains unrelated document c")
	}
}

func TestRebuildIndexEmptyCorpus(t *testing.T) {
	store := &fakeStore{texts: map[string]string{}}
	r := NewRunner(store, nil, nil, nil, nil, config.Default())

	if err := r.RebuildIndex(context.Background()); err != nil {
		t.Fatalf("RebuildIndex() error = %v", err)
	}
	if store.replacedIndex != nil {
		t.Error("empty corpus must not replace the index")
	}
}

func TestRebuildIndexSurfacesStoreError(t *testing.T) {
	store := &fakeStore{texts: testTexts, indexErr: errors.New("disk full")}
	r := NewRunner(store, nil, nil, nil, nil, config.Default())

	if err := r.RebuildIndex(context.Background()); err == nil {
		t.Error("RebuildIndex() expected an error")
	}
}

func TestRebuildSimilarities(t *testing.T) {
	store := &fakeStore{texts: testTexts}
	r := NewRunner(store, nil, nil, nil, nil, config.Default())

	if err := r.RebuildSimilarities(context.Background()); err != nil {
		t.Fatalf("RebuildSimilarities() error = %v", err)
	}
	if store.replacedResult == nil {
		t.Fatal("similarities were not replaced")
	}
	if len(store.replacedResult.Edges) == 0 {
		t.Error("rebuild produced no similarity edges")
	}
	if len(store.replacedResult.Coords) != len(testTexts) {
		t.Errorf("coords for %d items, want %d", len(store.replacedResult.Coords), len(testTexts))
	}
}

func TestRebuildSimilaritiesTinyCorpus(t *testing.T) {
	store := &fakeStore{texts: map[string]string{"only": " one document "}}
	r := NewRunner(store, nil, nil, nil, nil, config.Default())

	if err := r.RebuildSimilarities(context.Background()); err != nil {
		t.Fatalf("RebuildSimilarities() error = %v", err)
	}
	if store.replacedResult != nil {
		t.Error("single-document corpus must not replace similarities")
	}
}

func TestFetchJobsUnconfigured(t *testing.T) {
	r := NewRunner(&fakeStore{}, nil, nil, nil, nil, config.Default())

	if err := r.FetchPubMed(context.Background()); err == nil {
		t.Error("FetchPubMed() without a fetcher expected an error")
	}
	if err := r.FetchArxiv(context.Background()); err == nil {
		t.Error("FetchArxiv() without a fetcher expected an error")
	}
	if err := r.Export(context.Background()); err == nil {
		t.Error("Export() without an exporter expected an error")
	}
}
