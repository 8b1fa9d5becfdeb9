// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package features

import (
	"fmt"
	"math"
	"sort"
)

// Norm selects the final renormalization applied to a document's
// term-weight vector.
type Norm string

const (
	// NormL2 scales each vector to unit Euclidean length. Used for the
	// inverted index so summed query-term weights are comparable
	// across documents.
	NormL2 Norm = "l2"

	// NormMax scales each vector so its largest weight is 1. Used for
	// the similarity matrix build, matching the weighting the
	// similarity scores were historically computed with.
	NormMax Norm = "max"
)

// Vectorizer computes corpus-consistent TF-IDF vectors. Fit learns
// the vocabulary and document frequencies from the whole corpus; after
// that the vectorizer is immutable and Transform never retrains it.
//
// All fields are exported so a fitted vectorizer can be persisted as
// a JSON artifact and reloaded for query-time vectorization.
type Vectorizer struct {
	// Vocabulary maps each learned term to its column position. The
	// assignment is deterministic (sorted term order) so matrix
	// layouts are reproducible across runs.
	Vocabulary map[string]int `json:"vocabulary"`

	// IDF holds the smoothed inverse document frequency per term:
	// log((1+N)/(1+df)) + 1.
	IDF map[string]float64 `json:"idf"`

	// Docs is the number of documents the vectorizer was fitted on.
	Docs int `json:"docs"`

	// Norm is the renormalization scheme.
	Norm Norm `json:"norm"`
}

// NewVectorizer returns an unfitted vectorizer with the given
// renormalization scheme.
func NewVectorizer(n Norm) *Vectorizer {
	if n == "" {
		n = NormL2
	}
	return &Vectorizer{
		Vocabulary: make(map[string]int),
		IDF:        make(map[string]float64),
		Norm:       n,
	}
}

// FitTransform learns vocabulary and IDF weights from the corpus and
// returns the per-document sparse feature vectors. The input maps
// document id to raw (already concatenated) text.
func (v *Vectorizer) FitTransform(texts map[string]string) map[string]map[string]float64 {
	tokens := make(map[string][]string, len(texts))
	df := make(map[string]int)
	for id, text := range texts {
		toks := Tokenize(text)
		tokens[id] = toks
		seen := make(map[string]struct{}, len(toks))
		for _, t := range toks {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}

	v.Docs = len(texts)
	v.IDF = make(map[string]float64, len(df))
	terms := make([]string, 0, len(df))
	for term, n := range df {
		v.IDF[term] = math.Log(float64(1+v.Docs)/float64(1+n)) + 1
		terms = append(terms, term)
	}
	sort.Strings(terms)
	v.Vocabulary = make(map[string]int, len(terms))
	for i, term := range terms {
		v.Vocabulary[term] = i
	}

	feats := make(map[string]map[string]float64, len(texts))
	for id := range texts {
		feats[id] = v.weigh(tokens[id])
	}
	return feats
}

// Transform vectorizes a single text with the fitted state. Terms
// outside the learned vocabulary are dropped. Returns an error when
// the vectorizer has not been fitted.
func (v *Vectorizer) Transform(text string) (map[string]float64, error) {
	if v.Docs == 0 {
		return nil, fmt.Errorf("vectorizer is not fitted")
	}
	toks := Tokenize(text)
	known := toks[:0]
	for _, t := range toks {
		if _, ok := v.Vocabulary[t]; ok {
			known = append(known, t)
		}
	}
	return v.weigh(known), nil
}

// weigh computes the renormalized tf*idf weights for one token list.
func (v *Vectorizer) weigh(tokens []string) map[string]float64 {
	w := make(map[string]float64)
	if len(tokens) == 0 {
		return w
	}

	counts := make(map[string]float64, len(tokens))
	var maxCount float64
	for _, t := range tokens {
		counts[t]++
		if counts[t] > maxCount {
			maxCount = counts[t]
		}
	}

	for term, c := range counts {
		idf, ok := v.IDF[term]
		if !ok {
			continue
		}
		w[term] = (c / maxCount) * idf
	}

	switch v.Norm {
	case NormMax:
		var maxW float64
		for _, x := range w {
			if x > maxW {
				maxW = x
			}
		}
		if maxW > 0 {
			for term := range w {
				w[term] /= maxW
			}
		}
	default: // NormL2
		var sq float64
		for _, x := range w {
			sq += x * x
		}
		if sq > 0 {
			l := math.Sqrt(sq)
			for term := range w {
				w[term] /= l
			}
		}
	}
	return w
}

// VocabSize returns the number of learned terms.
func (v *Vectorizer) VocabSize() int {
	return len(v.Vocabulary)
}
