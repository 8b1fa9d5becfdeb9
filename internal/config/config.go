// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package config loads and validates the Papermap configuration from
// defaults, an optional YAML file and PAPERMAP_ environment variables,
// in that order of precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Papermap server.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
	Index     IndexConfig     `koanf:"index"`
	Similar   SimilarConfig   `koanf:"similarity"`
	Recommend RecommendConfig `koanf:"recommend"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Jobs      JobsConfig      `koanf:"jobs"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// SharedSecret, when set, is required as the secret_key query
	// parameter on mutating endpoints. Authentication proper lives in
	// front of this service.
	SharedSecret string `koanf:"shared_secret"`

	// ReadTimeout and WriteTimeout bound request processing.
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// ShutdownTimeout bounds graceful connection draining.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimit is the per-IP request budget per minute. 0 disables
	// rate limiting.
	RateLimit int `koanf:"rate_limit"`

	// RandomWindow restricts the random discovery listing to items
	// published within this window. 0 disables the filter.
	RandomWindow time.Duration `koanf:"random_window"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	// Path is the database file. ":memory:" gives an ephemeral store.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "1GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// ArtifactsConfig locates the persisted vectorizer and neighbour
// structure.
type ArtifactsConfig struct {
	// Dir is the directory holding per-source artifact sets.
	Dir string `koanf:"dir"`

	// Source names the corpus (e.g. "arxiv", "pubmed"). Artifacts are
	// keyed by it; queries fail explicitly when the keyed set is
	// missing.
	Source string `koanf:"source"`
}

// IndexConfig configures the inverted index rebuild.
type IndexConfig struct {
	// CommitBatch is the number of index entries written per
	// transaction batch during a rebuild. Purely an I/O tuning knob;
	// the rebuild is still all-or-nothing.
	CommitBatch int `koanf:"commit_batch"`

	// MaxQueryTerms caps the number of query tokens considered by the
	// relevance search.
	MaxQueryTerms int `koanf:"max_query_terms"`
}

// SimilarConfig configures the similarity matrix build.
type SimilarConfig struct {
	// TopK is the number of similar items stored per item.
	TopK int `koanf:"top_k"`

	// SVDComponents caps the rank of the truncated SVD. The effective
	// rank is min(SVDComponents, vocabulary/2).
	SVDComponents int `koanf:"svd_components"`

	// TSNEPerplexity tunes the 2D embedding.
	TSNEPerplexity float64 `koanf:"tsne_perplexity"`

	// TSNEIterations bounds the embedding optimization.
	TSNEIterations int `koanf:"tsne_iterations"`
}

// RecommendConfig configures the recommendation engine.
type RecommendConfig struct {
	// DefaultN is the number of recommendations when the caller gives
	// none.
	DefaultN int `koanf:"default_n"`

	// MaxRatedItems is how many of the user's most recent positive
	// ratings contribute similar-item lists.
	MaxRatedItems int `koanf:"max_rated_items"`

	// SimilarPerItem is how many similar items each positively rated
	// item contributes.
	SimilarPerItem int `koanf:"similar_per_item"`

	// MaxAge excludes candidates published longer ago than this. 0
	// disables the recency filter.
	MaxAge time.Duration `koanf:"max_age"`

	// ShufflePool is the over-selection factor: the top ShufflePool*N
	// candidates are shuffled before truncating to N.
	ShufflePool int `koanf:"shuffle_pool"`

	// Seed seeds the shuffle randomness source. 0 selects a
	// time-based seed.
	Seed int64 `koanf:"seed"`
}

// IngestConfig configures the external article fetchers.
type IngestConfig struct {
	// PubMedBaseURL is the NCBI eutils endpoint.
	PubMedBaseURL string `koanf:"pubmed_base_url"`

	// PubMedKeywords are the search terms fetched from PubMed.
	PubMedKeywords []string `koanf:"pubmed_keywords"`

	// PubMedMaxResults caps how many articles one keyword fetch
	// retrieves.
	PubMedMaxResults int `koanf:"pubmed_max_results"`

	// ArxivBaseURL is the arXiv Atom API endpoint.
	ArxivBaseURL string `koanf:"arxiv_base_url"`

	// ArxivQuery is the arXiv category query.
	ArxivQuery string `koanf:"arxiv_query"`

	// ArxivMaxResults caps how many articles one arXiv run fetches.
	ArxivMaxResults int `koanf:"arxiv_max_results"`

	// ArxivPageSize is the per-request result count.
	ArxivPageSize int `koanf:"arxiv_page_size"`

	// RequestsPerSecond rate-limits calls against the upstream APIs.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// JobsConfig configures the maintenance scheduler.
type JobsConfig struct {
	// Enabled starts the cron scheduler with the server.
	Enabled bool `koanf:"enabled"`

	// RebuildSchedule is the cron expression for the nightly index and
	// similarity rebuild.
	RebuildSchedule string `koanf:"rebuild_schedule"`

	// FetchSchedule is the cron expression for the article fetch.
	FetchSchedule string `koanf:"fetch_schedule"`

	// ExportDir receives the JSON artifacts for the frontend.
	ExportDir string `koanf:"export_dir"`
}

// LoggingConfig mirrors logging.Config for file/env configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Default returns a Config with all built-in defaults, no file or
// environment overrides applied.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       300,
			RandomWindow:    365 * 24 * time.Hour,
		},
		Database: DatabaseConfig{
			Path:      "/data/papermap.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Artifacts: ArtifactsConfig{
			Dir:    "/data/artifacts",
			Source: "arxiv",
		},
		Index: IndexConfig{
			CommitBatch:   500,
			MaxQueryTerms: 500,
		},
		Similar: SimilarConfig{
			TopK:           50,
			SVDComponents:  150,
			TSNEPerplexity: 15,
			TSNEIterations: 300,
		},
		Recommend: RecommendConfig{
			DefaultN:       20,
			MaxRatedItems:  50,
			SimilarPerItem: 10,
			MaxAge:         730 * 24 * time.Hour,
			ShufflePool:    5,
		},
		Ingest: IngestConfig{
			PubMedBaseURL: "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/",
			PubMedKeywords: []string{
				"brain cancer", "breast cancer", "colorectal cancer",
				"kidney cancer", "leukemia", "lung cancer",
			},
			PubMedMaxResults:  500,
			ArxivBaseURL:      "https://export.arxiv.org/api/query",
			ArxivQuery:        "cat:cs.CV OR cat:cs.AI OR cat:cs.LG OR cat:cs.CL OR cat:stat.ML",
			ArxivMaxResults:   10000,
			ArxivPageSize:     1000,
			RequestsPerSecond: 1,
		},
		Jobs: JobsConfig{
			Enabled:         false,
			RebuildSchedule: "0 3 * * *",
			FetchSchedule:   "0 1 * * *",
			ExportDir:       "/data/export",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for values the server cannot run
// with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Artifacts.Source == "" {
		return fmt.Errorf("artifacts.source must not be empty")
	}
	if c.Similar.TopK < 1 {
		return fmt.Errorf("similarity.top_k must be positive, got %d", c.Similar.TopK)
	}
	if c.Similar.SVDComponents < 2 {
		return fmt.Errorf("similarity.svd_components must be at least 2, got %d", c.Similar.SVDComponents)
	}
	if c.Index.CommitBatch < 1 {
		return fmt.Errorf("index.commit_batch must be positive, got %d", c.Index.CommitBatch)
	}
	if c.Recommend.DefaultN < 1 {
		return fmt.Errorf("recommend.default_n must be positive, got %d", c.Recommend.DefaultN)
	}
	if c.Recommend.ShufflePool < 1 {
		return fmt.Errorf("recommend.shuffle_pool must be positive, got %d", c.Recommend.ShufflePool)
	}
	if c.Jobs.Enabled {
		if c.Jobs.RebuildSchedule == "" || c.Jobs.FetchSchedule == "" {
			return fmt.Errorf("jobs schedules must be set when jobs.enabled is true")
		}
	}
	return nil
}
