// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package metrics holds the Prometheus instrumentation: API latency
// and status counts, search and recommendation throughput, and batch
// rebuild durations. Everything registers on the default registry and
// is exposed at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "papermap_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papermap_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papermap_search_requests_total",
			Help: "Total number of search requests by kind",
		},
		[]string{"kind"}, // "keyword", "relevance", "neighbors"
	)

	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papermap_recommendation_requests_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"}, // "personalized", "fallback", "error"
	)

	ItemsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papermap_items_ingested_total",
			Help: "Total number of articles ingested by source",
		},
		[]string{"source"}, // "pubmed", "arxiv", "api"
	)

	RebuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "papermap_rebuild_duration_seconds",
			Help:    "Duration of batch rebuild jobs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"job"}, // "index", "similarities"
	)

	CorpusSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "papermap_corpus_items",
			Help: "Number of items currently in the corpus",
		},
	)
)

// ObserveRequest records one finished API request.
func ObserveRequest(method, route string, status int, took time.Duration) {
	code := strconv.Itoa(status)
	APIRequestDuration.WithLabelValues(method, route, code).Observe(took.Seconds())
	APIRequestsTotal.WithLabelValues(method, route, code).Inc()
}
