// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/logging"
)

// Scheduler runs the maintenance jobs on their cron schedules. It
// implements suture.Service so the supervisor restarts it on failure.
type Scheduler struct {
	runner *Runner
	cfg    config.JobsConfig
	log    zerolog.Logger
}

// NewScheduler creates a Scheduler. Empty schedule expressions
// disable the corresponding job.
func NewScheduler(runner *Runner, cfg config.JobsConfig) *Scheduler {
	return &Scheduler{
		runner: runner,
		cfg:    cfg,
		log:    logging.With().Str("component", "scheduler").Logger(),
	}
}

// Serve starts the cron loop and blocks until the context is
// canceled. Schedule expressions are standard 5-field cron.
func (s *Scheduler) Serve(ctx context.Context) error {
	c := cron.New()

	if s.cfg.RebuildSchedule != "" {
		_, err := c.AddFunc(s.cfg.RebuildSchedule, func() {
			if err := s.runner.Rebuild(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled rebuild failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid rebuild schedule %q: %w", s.cfg.RebuildSchedule, err)
		}
		s.log.Info().Str("schedule", s.cfg.RebuildSchedule).Msg("rebuild job scheduled")
	}

	if s.cfg.FetchSchedule != "" {
		_, err := c.AddFunc(s.cfg.FetchSchedule, func() {
			if err := s.runner.FetchPubMed(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled pubmed fetch failed")
			}
			if err := s.runner.FetchArxiv(ctx); err != nil {
				s.log.Error().Err(err).Msg("scheduled arxiv fetch failed")
			}
		})
		if err != nil {
			return fmt.Errorf("invalid fetch schedule %q: %w", s.cfg.FetchSchedule, err)
		}
		s.log.Info().Str("schedule", s.cfg.FetchSchedule).Msg("fetch job scheduled")
	}

	c.Start()
	<-ctx.Done()

	// Let an in-flight job finish before reporting shutdown.
	<-c.Stop().Done()
	return ctx.Err()
}

// String names the service in supervisor logs.
func (s *Scheduler) String() string {
	return "job-scheduler"
}
