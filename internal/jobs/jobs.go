// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package jobs holds the batch maintenance work: index and similarity
// rebuilds, upstream article fetches and the frontend JSON export.
// Every job is runnable one-shot from the CLI or on the cron
// schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/export"
	"github.com/tomtom215/papermap/internal/features"
	"github.com/tomtom215/papermap/internal/ingest"
	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/metrics"
	"github.com/tomtom215/papermap/internal/neighbors"
	"github.com/tomtom215/papermap/internal/similarity"
)

// Store is the subset of the database the batch jobs need.
type Store interface {
	AllItemTexts(ctx context.Context) (map[string]string, error)
	ReplaceIndex(ctx context.Context, index map[string]map[string]float64, commitBatch int) error
	ReplaceSimilarities(ctx context.Context, res *similarity.Result) error
}

// Runner wires the batch jobs to their dependencies.
type Runner struct {
	store    Store
	nn       *neighbors.Index
	exporter *export.Exporter
	pubmed   *ingest.PubMedFetcher
	arxiv    *ingest.ArxivFetcher
	cfg      *config.Config
	log      zerolog.Logger
}

// NewRunner creates a Runner. nn, exporter and the fetchers may be
// nil when the corresponding job is never invoked (tests, partial
// deployments).
func NewRunner(store Store, nn *neighbors.Index, exporter *export.Exporter,
	pubmed *ingest.PubMedFetcher, arxiv *ingest.ArxivFetcher, cfg *config.Config) *Runner {
	return &Runner{
		store:    store,
		nn:       nn,
		exporter: exporter,
		pubmed:   pubmed,
		arxiv:    arxiv,
		cfg:      cfg,
		log:      logging.With().Str("component", "jobs").Logger(),
	}
}

// RebuildIndex refits the TF-IDF model over the whole corpus,
// replaces the inverted search index and rebuilds the
// nearest-neighbor artifacts. The fit is corpus-wide and never
// incremental, so query weights stay comparable across documents.
func (r *Runner) RebuildIndex(ctx context.Context) error {
	start := time.Now()
	texts, err := r.store.AllItemTexts(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	if len(texts) == 0 {
		r.log.Warn().Msg("empty corpus, skipping index rebuild")
		return nil
	}

	vec := features.NewVectorizer(features.NormL2)
	docFeats := vec.FitTransform(texts)
	index := features.Invert(docFeats)
	if err := r.store.ReplaceIndex(ctx, index, r.cfg.Index.CommitBatch); err != nil {
		return fmt.Errorf("replace index: %w", err)
	}

	if r.nn != nil {
		if err := r.nn.Build(ctx, texts); err != nil {
			return fmt.Errorf("rebuild neighbor index: %w", err)
		}
	}

	metrics.RebuildDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	metrics.CorpusSize.Set(float64(len(texts)))
	r.log.Info().
		Int("documents", len(texts)).
		Int("terms", len(index)).
		Dur("took", time.Since(start)).
		Msg("search index rebuilt")
	return nil
}

// RebuildSimilarities recomputes the similarity edge set and 2D map
// coordinates from scratch and swaps them in atomically. On any error
// the previous edge set stays live.
func (r *Runner) RebuildSimilarities(ctx context.Context) error {
	start := time.Now()
	texts, err := r.store.AllItemTexts(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	if len(texts) < 2 {
		r.log.Warn().Int("documents", len(texts)).Msg("corpus too small, skipping similarity rebuild")
		return nil
	}

	vec := features.NewVectorizer(features.NormMax)
	docFeats := vec.FitTransform(texts)

	simCfg := similarity.Config{
		TopK:           r.cfg.Similar.TopK,
		SVDComponents:  r.cfg.Similar.SVDComponents,
		TSNEPerplexity: r.cfg.Similar.TSNEPerplexity,
		TSNEIterations: r.cfg.Similar.TSNEIterations,
	}
	result, err := similarity.Build(simCfg, docFeats, r.log)
	if err != nil {
		return fmt.Errorf("build similarities: %w", err)
	}
	if err := r.store.ReplaceSimilarities(ctx, result); err != nil {
		return fmt.Errorf("replace similarities: %w", err)
	}

	metrics.RebuildDuration.WithLabelValues("similarities").Observe(time.Since(start).Seconds())
	r.log.Info().
		Int("documents", len(texts)).
		Int("edges", len(result.Edges)).
		Dur("took", time.Since(start)).
		Msg("similarities rebuilt")
	return nil
}

// FetchPubMed runs one fetch pass over every configured PubMed
// keyword. A failing keyword is logged and the remaining keywords
// still run.
func (r *Runner) FetchPubMed(ctx context.Context) error {
	if r.pubmed == nil {
		return fmt.Errorf("pubmed fetcher not configured")
	}

	var lastErr error
	total := 0
	for _, keyword := range r.cfg.Ingest.PubMedKeywords {
		n, err := r.pubmed.Fetch(ctx, keyword, r.cfg.Ingest.PubMedMaxResults)
		if err != nil {
			r.log.Error().Err(err).Str("keyword", keyword).Msg("pubmed keyword fetch failed")
			lastErr = err
			continue
		}
		total += n
	}
	r.log.Info().Int("ingested", total).Msg("pubmed fetch pass complete")
	return lastErr
}

// FetchArxiv runs one fetch pass for the configured arXiv query.
func (r *Runner) FetchArxiv(ctx context.Context) error {
	if r.arxiv == nil {
		return fmt.Errorf("arxiv fetcher not configured")
	}
	_, err := r.arxiv.Fetch(ctx)
	return err
}

// Export regenerates the frontend JSON artifacts.
func (r *Runner) Export(ctx context.Context) error {
	if r.exporter == nil {
		return fmt.Errorf("exporter not configured")
	}
	return r.exporter.Run(ctx)
}

// Rebuild runs the full nightly maintenance pass: index, similarities
// and export, in that order. Failures abort the pass so a broken
// intermediate state is never exported.
func (r *Runner) Rebuild(ctx context.Context) error {
	if err := r.RebuildIndex(ctx); err != nil {
		return err
	}
	if err := r.RebuildSimilarities(ctx); err != nil {
		return err
	}
	if r.exporter != nil {
		return r.Export(ctx)
	}
	return nil
}
