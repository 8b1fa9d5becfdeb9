// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package middleware holds the chi-compatible HTTP middleware:
// request IDs, Prometheus instrumentation and the shared-secret check
// on mutating endpoints.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/metrics"
)

// RequestID assigns each request a unique ID, honoring one set by an
// upstream proxy, and exposes it in the X-Request-ID response header
// and the request context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Prometheus records per-route request counts and latencies. Routes
// are labeled by chi pattern, not raw path, to keep cardinality
// bounded.
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}

// SharedSecret rejects requests whose secret_key query parameter does
// not match the configured secret. An empty configured secret
// disables the check. Real authentication lives in front of this
// service; this only keeps casual writes off an exposed instance.
func SharedSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" && r.URL.Query().Get("secret_key") != secret {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNAUTHORIZED","message":"invalid or missing secret_key"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
