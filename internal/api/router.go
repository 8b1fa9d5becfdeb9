// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/papermap/internal/middleware"
)

// NewRouter assembles the route tree. Mutating endpoints sit behind
// the shared-secret check; everything else is public read access.
func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	if h.cfg.Server.RateLimit > 0 {
		r.Use(httprate.LimitByIP(h.cfg.Server.RateLimit, time.Minute))
	}

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.With(middleware.SharedSecret(h.cfg.Server.SharedSecret)).Post("/", h.CreateItem)
			r.Get("/random", h.RandomItems)
			r.Get("/search", h.SearchItems)
			r.Post("/similar", h.SimilarByText)
			r.Get("/{id}", h.GetItem)
			r.Get("/{id}/similar", h.SimilarItems)
		})

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/recommendations", h.Recommendations)
			r.Get("/ratings", h.UserRatings)
		})

		r.With(middleware.SharedSecret(h.cfg.Server.SharedSecret)).Post("/ratings", h.UpsertRating)
	})

	return r
}
