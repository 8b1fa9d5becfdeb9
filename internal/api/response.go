// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package api is the HTTP surface of the service: item ingestion and
// lookup, the three search paths, ratings and recommendations. All
// endpoints share one response envelope.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/papermap/internal/logging"
)

// APIResponse is the envelope every endpoint answers with.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError carries a machine-readable code plus a human-readable
// message.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta is per-response metadata.
type APIMeta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count,omitempty"`
}

// Error codes used across the API.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any, count int) {
	resp := APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			RequestID: logging.RequestIDFromContext(r.Context()),
			Timestamp: time.Now().UTC(),
			Count:     count,
		},
	}
	writeJSON(w, status, &resp)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := logging.RequestIDFromContext(r.Context())
	resp := APIResponse{
		Success: false,
		Error: &APIError{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
		Meta: &APIMeta{
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	}
	writeJSON(w, status, &resp)
}

func writeJSON(w http.ResponseWriter, status int, resp *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("encode response")
	}
}
