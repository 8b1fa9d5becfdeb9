// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package neighbors is the nearest-neighbor structure behind the
// free-text "find similar abstracts" query. A fitted TF-IDF
// vectorizer plus a chromem-go vector collection are persisted as an
// artifact set keyed by corpus source; queries against a source with
// no built artifacts fail with ErrUnavailable instead of guessing.
package neighbors

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/goccy/go-json"
	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/features"
	"github.com/tomtom215/papermap/internal/logging"
)

const (
	vectorizerFile = "vectorizer.json"
	collectionFile = "neighbors.gob.gz"
	collectionName = "abstracts"
)

// ErrUnavailable indicates no artifact set exists for the configured
// source. The caller decides whether that is a 503 or a reason to run
// the build job.
var ErrUnavailable = errors.New("neighbor index unavailable")

// Match is one nearest-neighbor hit. Score is the cosine similarity
// scaled to 0-100, the same scale the precomputed similarity edges
// use.
type Match struct {
	ID    string
	Score float64
}

// Index answers nearest-neighbor queries over the article corpus.
// Artifacts load lazily on first query and atomically swap on Build.
type Index struct {
	dir    string
	source string
	log    zerolog.Logger

	mu     sync.RWMutex
	loaded bool
	vec    *features.Vectorizer
	col    *chromem.Collection
}

// New creates an Index over the artifact set for cfg.Source. Nothing
// is read from disk until the first query.
func New(cfg config.ArtifactsConfig) *Index {
	return &Index{
		dir:    filepath.Join(cfg.Dir, cfg.Source),
		source: cfg.Source,
		log:    logging.With().Str("component", "neighbors").Str("source", cfg.Source).Logger(),
	}
}

// embedFunc vectorizes text with the fitted TF-IDF model, densified
// over the learned vocabulary.
func embedFunc(vec *features.Vectorizer) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		weights, err := vec.Transform(text)
		if err != nil {
			return nil, err
		}
		dense := make([]float32, vec.VocabSize())
		for term, w := range weights {
			dense[vec.Vocabulary[term]] = float32(w)
		}
		return dense, nil
	}
}

// Build fits a fresh vectorizer on the full corpus, rebuilds the
// vector collection and persists both, then swaps them in for
// queries. The input maps item id to normalized full text.
func (ix *Index) Build(ctx context.Context, texts map[string]string) error {
	if len(texts) == 0 {
		return errors.New("empty corpus")
	}
	if err := os.MkdirAll(ix.dir, 0o750); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}

	vec := features.NewVectorizer(features.NormL2)
	feats := vec.FitTransform(texts)

	ef := embedFunc(vec)
	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(texts))
	for id, text := range texts {
		dense := make([]float32, vec.VocabSize())
		for term, w := range feats[id] {
			dense[vec.Vocabulary[term]] = float32(w)
		}
		docs = append(docs, chromem.Document{ID: id, Content: text, Embedding: dense})
	}
	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}

	encoded, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("encode vectorizer: %w", err)
	}
	vecPath := filepath.Join(ix.dir, vectorizerFile)
	if err := os.WriteFile(vecPath+".tmp", encoded, 0o640); err != nil {
		return fmt.Errorf("write vectorizer: %w", err)
	}
	if err := os.Rename(vecPath+".tmp", vecPath); err != nil {
		return fmt.Errorf("install vectorizer: %w", err)
	}
	if err := db.ExportToFile(filepath.Join(ix.dir, collectionFile), true, ""); err != nil {
		return fmt.Errorf("export collection: %w", err)
	}

	ix.mu.Lock()
	ix.vec = vec
	ix.col = col
	ix.loaded = true
	ix.mu.Unlock()

	ix.log.Info().
		Int("documents", len(docs)).
		Int("vocabulary", vec.VocabSize()).
		Msg("neighbor index built")
	return nil
}

// load reads the persisted artifact set. Called with ix.mu held.
func (ix *Index) load() error {
	encoded, err := os.ReadFile(filepath.Join(ix.dir, vectorizerFile))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: no artifacts for source %q", ErrUnavailable, ix.source)
	}
	if err != nil {
		return fmt.Errorf("read vectorizer: %w", err)
	}

	vec := features.NewVectorizer(features.NormL2)
	if err := json.Unmarshal(encoded, vec); err != nil {
		return fmt.Errorf("decode vectorizer: %w", err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(filepath.Join(ix.dir, collectionFile), ""); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: no artifacts for source %q", ErrUnavailable, ix.source)
		}
		return fmt.Errorf("import collection: %w", err)
	}
	col := db.GetCollection(collectionName, embedFunc(vec))
	if col == nil {
		return fmt.Errorf("collection %q missing from artifact set", collectionName)
	}

	ix.vec = vec
	ix.col = col
	ix.loaded = true
	ix.log.Info().Int("documents", col.Count()).Msg("neighbor index loaded")
	return nil
}

// Query returns the up-to-n items most similar to the free-form text.
// Text sharing no vocabulary with the corpus yields no matches.
func (ix *Index) Query(ctx context.Context, text string, n int) ([]Match, error) {
	ix.mu.RLock()
	loaded := ix.loaded
	ix.mu.RUnlock()
	if !loaded {
		ix.mu.Lock()
		if !ix.loaded {
			if err := ix.load(); err != nil {
				ix.mu.Unlock()
				return nil, err
			}
		}
		ix.mu.Unlock()
	}

	ix.mu.RLock()
	vec, col := ix.vec, ix.col
	ix.mu.RUnlock()

	weights, err := vec.Transform(text)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	if len(weights) == 0 {
		// A zero query vector has no cosine direction.
		return nil, nil
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if n > count {
		n = count
	}
	results, err := col.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("neighbor query: %w", err)
	}

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{ID: r.ID, Score: float64(r.Similarity) * 100}
	}
	return matches, nil
}

// Available reports whether an artifact set can serve queries,
// loading it if needed.
func (ix *Index) Available() bool {
	ix.mu.RLock()
	loaded := ix.loaded
	ix.mu.RUnlock()
	if loaded {
		return true
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.loaded {
		return true
	}
	return ix.load() == nil
}
