// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package features

// Invert transposes per-document feature vectors into the inverted
// index mapping: term -> (document id -> weight). Weights are carried
// over unchanged. Terms occurring in no document are simply absent.
func Invert(docFeats map[string]map[string]float64) map[string]map[string]float64 {
	index := make(map[string]map[string]float64)
	for docID, feats := range docFeats {
		for term, weight := range feats {
			entry, ok := index[term]
			if !ok {
				entry = make(map[string]float64)
				index[term] = entry
			}
			entry[docID] = weight
		}
	}
	return index
}
