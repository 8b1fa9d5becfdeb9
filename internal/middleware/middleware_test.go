// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/papermap/internal/logging"
)

func TestRequestIDGenerated(t *testing.T) {
	var ctxID string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logging.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	headerID := rec.Header().Get("X-Request-ID")
	if headerID == "" {
		t.Fatal("no X-Request-ID header set")
	}
	if ctxID != headerID {
		t.Errorf("context id %q != header id %q", ctxID, headerID)
	}
}

func TestRequestIDHonorsUpstream(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "upstream-id" {
		t.Errorf("X-Request-ID = %q, want upstream-id", got)
	}
}

func TestSharedSecret(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		secret string
		target string
		want   int
	}{
		{"disabled check", "", "/items", http.StatusNoContent},
		{"missing key", "s3cret", "/items", http.StatusUnauthorized},
		{"wrong key", "s3cret", "/items?secret_key=nope", http.StatusUnauthorized},
		{"correct key", "s3cret", "/items?secret_key=s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := SharedSecret(tt.secret)(ok)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, nil))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
