// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/config"
	"github.com/tomtom215/papermap/internal/database"
	"github.com/tomtom215/papermap/internal/ingest"
	"github.com/tomtom215/papermap/internal/logging"
	"github.com/tomtom215/papermap/internal/metrics"
	"github.com/tomtom215/papermap/internal/models"
	"github.com/tomtom215/papermap/internal/neighbors"
	"github.com/tomtom215/papermap/internal/recommend"
	"github.com/tomtom215/papermap/internal/search"
	"github.com/tomtom215/papermap/internal/validation"
)

// Default result counts per endpoint, matching the query parameter
// defaults the frontend relies on.
const (
	defaultListN      = 20
	defaultSearchN    = 5
	defaultRelevanceN = 20
)

// Handler serves all API endpoints.
type Handler struct {
	db       *database.DB
	searcher *search.Searcher
	engine   *recommend.Engine
	nn       *neighbors.Index
	proc     *ingest.Processor
	cfg      *config.Config
	log      zerolog.Logger
}

// NewHandler wires the handler to its collaborators. nn may be nil
// when no neighbor artifacts are deployed.
func NewHandler(db *database.DB, searcher *search.Searcher, engine *recommend.Engine,
	nn *neighbors.Index, proc *ingest.Processor, cfg *config.Config) *Handler {
	return &Handler{
		db:       db,
		searcher: searcher,
		engine:   engine,
		nn:       nn,
		proc:     proc,
		cfg:      cfg,
		log:      logging.With().Str("component", "api").Logger(),
	}
}

// Health reports liveness: the database must answer a ping. The
// neighbor index being absent degrades the response body but not the
// status, queries fall back to the inverted index.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"database unavailable", nil)
		return
	}

	respondJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"neighbors": h.nn != nil && h.nn.Available(),
	}, 0)
}

// itemRequest is the POST /items payload.
type itemRequest struct {
	ID          string `json:"item_id" validate:"required,max=128"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Text        string `json:"text"`
	Publisher   string `json:"publisher"`
	Authors     string `json:"authors"`
	PubDate     string `json:"pub_date" validate:"omitempty,datetime=2006-01-02"`
	Keyword     string `json:"keywords"`
	URL         string `json:"item_url" validate:"omitempty,url"`
}

// CreateItem ingests one article through the API, same normalization
// path as the batch fetchers.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields())
		return
	}

	var pubDate time.Time
	if req.PubDate != "" {
		pubDate, _ = time.Parse("2006-01-02", req.PubDate)
	}

	raw := ingest.RawItem{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Extra:       req.Text,
		Publisher:   req.Publisher,
		Authors:     req.Authors,
		PubDate:     pubDate,
		Keyword:     req.Keyword,
		URL:         req.URL,
	}
	if err := h.proc.ProcessItem(r.Context(), raw); err != nil {
		h.log.Error().Err(err).Str("item_id", req.ID).Msg("ingest via api failed")
		respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "could not store item", nil)
		return
	}

	metrics.ItemsIngested.WithLabelValues("api").Inc()
	respondJSON(w, r, http.StatusCreated, map[string]string{"item_id": req.ID}, 1)
}

// GetItem returns the full view of one article.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.db.GetItem(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "item not found", nil)
		return
	}
	if err != nil {
		h.internalError(w, r, err, "load item")
		return
	}
	respondJSON(w, r, http.StatusOK, item.FullView(), 1)
}

// RandomItems returns a random article sample, the discovery listing
// for users without history. Only items inside the configured
// publication window are sampled.
func (h *Handler) RandomItems(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", defaultListN)
	var cutoff time.Time
	if window := h.cfg.Server.RandomWindow; window > 0 {
		cutoff = time.Now().UTC().Add(-window)
	}
	items, err := h.db.RandomItems(r.Context(), cutoff, n)
	if err != nil {
		h.internalError(w, r, err, "random items")
		return
	}
	respondJSON(w, r, http.StatusOK, previews(items), len(items))
}

// SearchItems is the staged keyword search.
func (h *Handler) SearchItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "missing query parameter q", nil)
		return
	}
	n := queryInt(r, "n", defaultSearchN)

	items, mode, err := h.searcher.Keyword(r.Context(), q, n)
	if err != nil {
		h.internalError(w, r, err, "keyword search")
		return
	}

	metrics.SearchRequests.WithLabelValues("keyword").Inc()
	respondJSON(w, r, http.StatusOK, map[string]any{
		"items": previews(items),
		"mode":  int(mode),
	}, len(items))
}

// similarRequest is the POST /items/similar payload.
type similarRequest struct {
	Query  string `json:"q" validate:"required"`
	N      int    `json:"n" validate:"gte=0,lte=500"`
	Method string `json:"method" validate:"omitempty,oneof=auto index nn"`
}

// SimilarByText scores articles against free-form query text. The
// nearest-neighbor artifacts answer when available; otherwise the
// inverted index does.
func (h *Handler) SimilarByText(w http.ResponseWriter, r *http.Request) {
	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields())
		return
	}
	if req.N <= 0 {
		req.N = defaultRelevanceN
	}
	if req.Method == "" {
		req.Method = "auto"
	}

	useNN := false
	switch req.Method {
	case "nn":
		if h.nn == nil || !h.nn.Available() {
			respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
				"neighbor index not built", nil)
			return
		}
		useNN = true
	case "auto":
		useNN = h.nn != nil && h.nn.Available()
	}

	if useNN {
		h.similarByNeighbors(w, r, req.Query, req.N)
		return
	}

	results, err := h.searcher.Relevance(r.Context(), req.Query, req.N)
	if err != nil {
		h.internalError(w, r, err, "relevance search")
		return
	}
	views := make([]models.ItemView, len(results))
	for i, res := range results {
		// Index scores share the 0-100 scale of similarity edges.
		views[i] = res.Item.View().WithScore(res.Score * 100)
	}
	metrics.SearchRequests.WithLabelValues("relevance").Inc()
	respondJSON(w, r, http.StatusOK, views, len(views))
}

func (h *Handler) similarByNeighbors(w http.ResponseWriter, r *http.Request, query string, n int) {
	matches, err := h.nn.Query(r.Context(), query, n)
	if errors.Is(err, neighbors.ErrUnavailable) {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"neighbor index not built", nil)
		return
	}
	if err != nil {
		h.internalError(w, r, err, "neighbor search")
		return
	}

	views := make([]models.ItemView, 0, len(matches))
	for _, m := range matches {
		item, err := h.db.GetItem(r.Context(), m.ID)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			h.internalError(w, r, err, "load neighbor item")
			return
		}
		views = append(views, item.View().WithScore(m.Score))
	}
	metrics.SearchRequests.WithLabelValues("neighbors").Inc()
	respondJSON(w, r, http.StatusOK, views, len(views))
}

// SimilarItems lists the precomputed most similar articles for one
// item.
func (h *Handler) SimilarItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n := queryInt(r, "n", defaultListN)

	similar, err := h.db.SimilarItems(r.Context(), id, n)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "item not found", nil)
		return
	}
	if err != nil {
		h.internalError(w, r, err, "similar items")
		return
	}

	views := make([]models.ItemView, len(similar))
	for i, s := range similar {
		views[i] = s.Item.View().WithScore(s.Score)
	}
	respondJSON(w, r, http.StatusOK, views, len(views))
}

// ratingRequest is the POST /ratings payload. Rating defaults to 1
// (thumbs up) when the field is absent.
type ratingRequest struct {
	UserID string   `json:"user_id" validate:"required,max=128"`
	ItemID string   `json:"item_id" validate:"required,max=128"`
	Rating *float64 `json:"rating"`
}

// UpsertRating records a rating. The item must exist; the user is
// created on first rating. Re-rating the same item overwrites.
func (h *Handler) UpsertRating(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body", nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, verr.Error(), verr.Fields())
		return
	}

	rating := 1.0
	if req.Rating != nil {
		rating = *req.Rating
	}

	err := h.db.UpsertRating(r.Context(), req.UserID, req.ItemID, rating)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "item not found", nil)
		return
	}
	if err != nil {
		h.internalError(w, r, err, "upsert rating")
		return
	}
	respondJSON(w, r, http.StatusOK, map[string]any{
		"user_id": req.UserID,
		"item_id": req.ItemID,
		"rating":  rating,
	}, 1)
}

// UserRatings lists a user's ratings, most recent first.
func (h *Handler) UserRatings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	exists, err := h.db.UserExists(r.Context(), userID)
	if err != nil {
		h.internalError(w, r, err, "check user")
		return
	}
	if !exists {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "user not found", nil)
		return
	}

	ratings, err := h.db.UserRatings(r.Context(), userID)
	if err != nil {
		h.internalError(w, r, err, "user ratings")
		return
	}

	views := make([]models.ItemView, len(ratings))
	for i, rr := range ratings {
		views[i] = rr.Item.View().WithRating(rr.Rating.Rating)
	}
	respondJSON(w, r, http.StatusOK, views, len(views))
}

// Recommendations returns the personalized article list for a user.
// Unknown users get the fallback listing rather than a 404, new
// visitors should see content immediately.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	n := queryInt(r, "n", h.cfg.Recommend.DefaultN)

	recs, err := h.engine.Recommend(r.Context(), userID, n)
	if err != nil {
		metrics.RecommendationRequests.WithLabelValues("error").Inc()
		h.internalError(w, r, err, "recommend")
		return
	}

	outcome := "fallback"
	views := make([]models.ItemView, len(recs))
	for i, rec := range recs {
		views[i] = rec.Item.View()
		if rec.Score > 0 {
			views[i] = views[i].WithScore(rec.Score)
			outcome = "personalized"
		}
	}
	metrics.RecommendationRequests.WithLabelValues(outcome).Inc()
	respondJSON(w, r, http.StatusOK, views, len(views))
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error, op string) {
	h.log.Error().Err(err).Str("op", op).Str("path", r.URL.Path).Msg("request failed")
	respondError(w, r, http.StatusInternalServerError, ErrCodeInternalError, "internal error", nil)
}

// previews maps items to their preview views.
func previews(items []models.Item) []models.ItemView {
	views := make([]models.ItemView, len(items))
	for i := range items {
		views[i] = items[i].View()
	}
	return views
}

// queryInt reads a positive integer query parameter, falling back to
// def on absence or garbage.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
