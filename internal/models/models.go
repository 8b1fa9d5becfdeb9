// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package models defines the domain entities shared across Papermap:
// items (article abstracts), users, ratings, similarity edges and
// inverted index entries.
package models

import (
	"strings"
	"time"
)

// Item is an indexed article with its text, metadata and map coordinates.
type Item struct {
	// ID is the unique item identifier (PubMed ID, arXiv ID, ...).
	ID string `json:"item_id"`

	// Title is the whitespace-normalized article title.
	Title string `json:"title"`

	// Description is the article abstract.
	Description string `json:"description"`

	// Text is the normalized full text used for indexing and search.
	// It is the concatenation of title, description and any extra text,
	// padded with a leading and trailing space so whitespace-bounded
	// matches work at the text edges.
	Text string `json:"-"`

	// Publisher is the journal or preprint server name.
	Publisher string `json:"publisher,omitempty"`

	// Authors is the comma-separated author list.
	Authors string `json:"authors,omitempty"`

	// PubDate is the publication date.
	PubDate time.Time `json:"pub_date"`

	// Keywords holds the search keyword(s) the item was found under,
	// comma-joined when the item was ingested under several.
	Keywords string `json:"keywords,omitempty"`

	// URL points at the article's source page.
	URL string `json:"item_url,omitempty"`

	// X and Y are the 2D embedding coordinates for the article map.
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rating records a user's preference for an item. At most one rating
// exists per (user, item) pair; re-rating overwrites value and
// timestamp.
type Rating struct {
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	Rating    float64   `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// User owns a rating history, most recent first. Users are created
// lazily on their first rating.
type User struct {
	ID string `json:"user_id"`
}

// SimilarityEdge is a directed precomputed similarity between two
// items. The underlying cosine measure is symmetric and scaled to
// 0-100, so where both directions are stored the scores are equal;
// membership in an item's top-K list may still be asymmetric.
type SimilarityEdge struct {
	SourceID string  `json:"item_id1"`
	TargetID string  `json:"item_id2"`
	Score    float64 `json:"simscore"`
}

// IndexEntry maps one term to the items containing it and their
// relevance weights. Entries are fully replaced on every index
// rebuild.
type IndexEntry struct {
	Term       string             `json:"term"`
	DocWeights map[string]float64 `json:"doc_weights"`
}

// maxDisplayAuthors is the number of authors shown before "et al.".
const maxDisplayAuthors = 5

// ItemView is the serializable item shape exposed at the API and in
// exported JSON artifacts.
type ItemView struct {
	ID          string   `json:"item_id"`
	Title       string   `json:"title"`
	PubYear     int      `json:"pub_year"`
	Publisher   string   `json:"publisher,omitempty"`
	Authors     string   `json:"authors,omitempty"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"item_url,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
}

// View returns the preview shape of the item: id, title, publication
// year, publisher and the author list truncated to five names with an
// "et al." suffix.
func (i *Item) View() ItemView {
	v := ItemView{
		ID:        i.ID,
		Title:     i.Title,
		PubYear:   i.PubDate.Year(),
		Publisher: i.Publisher,
		Authors:   truncateAuthors(i.Authors),
	}
	return v
}

// FullView returns the preview shape plus description and source URL.
func (i *Item) FullView() ItemView {
	v := i.View()
	v.Description = i.Description
	v.URL = i.URL
	return v
}

// WithScore attaches a similarity or relevance score, rounded to one
// decimal, to the view.
func (v ItemView) WithScore(score float64) ItemView {
	r := Round1(score)
	v.Score = &r
	return v
}

// WithRating attaches a rating value to the view.
func (v ItemView) WithRating(rating float64) ItemView {
	v.Rating = &rating
	return v
}

// truncateAuthors limits the comma-separated author list to
// maxDisplayAuthors names, appending "et al." when more were given.
func truncateAuthors(authors string) string {
	if authors == "" {
		return ""
	}
	parts := strings.Split(authors, ", ")
	if len(parts) <= maxDisplayAuthors {
		return authors
	}
	return strings.Join(parts[:maxDisplayAuthors], ", ") + " et al."
}

// Round1 rounds to one decimal place, the precision used for scores
// at the API boundary.
func Round1(f float64) float64 {
	if f < 0 {
		return float64(int(f*10-0.5)) / 10
	}
	return float64(int(f*10+0.5)) / 10
}

// MergeKeyword appends a new keyword to a comma-joined keyword list,
// leaving the list unchanged when the keyword is already present.
func MergeKeyword(existing, keyword string) string {
	if keyword == "" {
		return existing
	}
	if existing == "" {
		return keyword
	}
	for _, k := range strings.Split(existing, ",") {
		if k == keyword {
			return existing
		}
	}
	return existing + "," + keyword
}
