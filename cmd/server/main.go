// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package main is the entry point for the Papermap server.
//
// Papermap serves search, similarity and personalized recommendations
// over a corpus of scientific article abstracts fetched from PubMed
// and arXiv. The same binary runs the HTTP API and, via -job, the
// batch maintenance work one-shot:
//
//	papermap                          # serve the API (plus cron jobs if enabled)
//	papermap -job fetch-pubmed        # fetch configured PubMed keywords and exit
//	papermap -job fetch-arxiv         # fetch the arXiv query and exit
//	papermap -job rebuild-index       # refit TF-IDF, rebuild inverted index + neighbor artifacts
//	papermap -job rebuild-similarities# rebuild the similarity graph and map coordinates
//	papermap -job export-json         # write the frontend JSON artifacts
//	papermap -job rebuild             # rebuild-index + rebuild-similarities + export-json
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): PAPERMAP_ environment variables, a config file, and
// built-in defaults.
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the
// supervisor tree stops the cron scheduler and drains in-flight HTTP
// requests within the configured shutdown timeout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/papermap/internal/api"
	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/database"
	"github.com/tomtom215/papermap/internal/export"
	"github.com/tomtom215/papermap/internal/ingest"
	"github.com/tomtom215/papermap/internal/jobs"
	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/neighbors"
	"github.com/tomtom215/papermap/internal/recommend"
	"github.com/tomtom215/papermap/internal/search"
	"github.com/tomtom215/papermap/internal/supervisor"
)

func main() {
	jobName := flag.String("job", "", "run one batch job and exit: "+
		"fetch-pubmed, fetch-arxiv, rebuild-index, rebuild-similarities, export-json, rebuild")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("artifacts_source", cfg.Artifacts.Source).
		Bool("jobs_enabled", cfg.Jobs.Enabled).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	nn := neighbors.New(cfg.Artifacts)
	runner := newRunner(db, nn, cfg)

	if *jobName != "" {
		runJob(runner, *jobName)
		return
	}

	serve(db, nn, runner, cfg)
}

// newRunner wires the batch job runner: fetchers share one
// rate-limited upstream client, the exporter writes to the configured
// export directory.
func newRunner(db *database.DB, nn *neighbors.Index, cfg *config.Config) *jobs.Runner {
	proc := ingest.NewProcessor(db)
	client := ingest.NewClient(cfg.Ingest.RequestsPerSecond)
	pubmed := ingest.NewPubMedFetcher(client, proc, cfg.Ingest.PubMedBaseURL)
	arxiv := ingest.NewArxivFetcher(client, proc, cfg.Ingest)
	exporter := export.New(db, cfg.Jobs.ExportDir)
	return jobs.NewRunner(db, nn, exporter, pubmed, arxiv, cfg)
}

// runJob executes one batch job, canceled on SIGINT/SIGTERM.
func runJob(runner *jobs.Runner, name string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch name {
	case "fetch-pubmed":
		err = runner.FetchPubMed(ctx)
	case "fetch-arxiv":
		err = runner.FetchArxiv(ctx)
	case "rebuild-index":
		err = runner.RebuildIndex(ctx)
	case "rebuild-similarities":
		err = runner.RebuildSimilarities(ctx)
	case "export-json":
		err = runner.Export(ctx)
	case "rebuild":
		err = runner.Rebuild(ctx)
	default:
		logging.Error().Str("job", name).Msg("Unknown job")
		os.Exit(2)
	}
	if err != nil {
		logging.Fatal().Err(err).Str("job", name).Msg("Job failed")
	}
	logging.Info().Str("job", name).Msg("Job finished")
}

// serve runs the HTTP API and, when enabled, the cron scheduler under
// one supervisor tree.
func serve(db *database.DB, nn *neighbors.Index, runner *jobs.Runner, cfg *config.Config) {
	searcher := search.New(db, cfg.Index.MaxQueryTerms)
	engine := recommend.New(db, cfg.Recommend)
	proc := ingest.NewProcessor(db)
	handler := api.NewHandler(db, searcher, engine, nn, proc, cfg)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.NewRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	tree.AddAPIService(supervisor.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	if cfg.Jobs.Enabled {
		tree.AddJobService(jobs.NewScheduler(runner, cfg.Jobs))
		logging.Info().
			Str("rebuild", cfg.Jobs.RebuildSchedule).
			Str("fetch", cfg.Jobs.FetchSchedule).
			Msg("Job scheduler added")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped gracefully")
}
