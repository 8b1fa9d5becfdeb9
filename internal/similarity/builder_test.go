// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

package similarity

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/papermap/internal/features"
)

// corpusFeatures builds feature vectors for a small test corpus with
// two clear topical clusters.
func corpusFeatures(t *testing.T) map[string]map[string]float64 {
	t.Helper()
	v := features.NewVectorizer(features.NormMax)
	return v.FitTransform(map[string]string{
		"1": "london brexit uk city politics europe",
		"2": "brexit uk europe politics referendum london",
		"3": "cancer cells tumor biology treatment",
		"4": "tumor cancer therapy cells clinical",
	})
}

func TestBuildShape(t *testing.T) {
	res, err := Build(DefaultConfig(), corpusFeatures(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	// 4 documents, each has 3 others: TopK caps above that.
	if len(res.Edges) != 4*3 {
		t.Errorf("got %d edges, want 12", len(res.Edges))
	}
	if len(res.Coords) != 4 {
		t.Errorf("got %d coords, want 4", len(res.Coords))
	}

	perSource := make(map[string]int)
	for _, e := range res.Edges {
		if e.SourceID == e.TargetID {
			t.Errorf("self edge for %s", e.SourceID)
		}
		if e.Score < -100-1e-6 || e.Score > 100+1e-6 {
			t.Errorf("edge %s->%s score %f outside scaled range", e.SourceID, e.TargetID, e.Score)
		}
		perSource[e.SourceID]++
	}
	for id, n := range perSource {
		if n != 3 {
			t.Errorf("document %s has %d edges, want 3", id, n)
		}
	}
}

func TestBuildScoresSymmetric(t *testing.T) {
	res, err := Build(DefaultConfig(), corpusFeatures(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	score := make(map[[2]string]float64)
	for _, e := range res.Edges {
		score[[2]string{e.SourceID, e.TargetID}] = e.Score
	}
	for pair, s := range score {
		back, ok := score[[2]string{pair[1], pair[0]}]
		if !ok {
			continue // membership may be asymmetric under a small TopK
		}
		if math.Abs(s-back) > 1e-9 {
			t.Errorf("asymmetric score %s<->%s: %f vs %f", pair[0], pair[1], s, back)
		}
	}
}

func TestBuildEdgesSortedDescending(t *testing.T) {
	res, err := Build(DefaultConfig(), corpusFeatures(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	last := make(map[string]float64)
	for _, e := range res.Edges {
		if prev, ok := last[e.SourceID]; ok && e.Score > prev+1e-9 {
			t.Errorf("edges for %s not sorted descending: %f after %f", e.SourceID, e.Score, prev)
		}
		last[e.SourceID] = e.Score
	}
}

func TestBuildClustersTogether(t *testing.T) {
	res, err := Build(DefaultConfig(), corpusFeatures(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	// The nearest neighbour of each politics document must be the
	// other politics document, same for the biology pair.
	best := make(map[string]string)
	bestScore := make(map[string]float64)
	for _, e := range res.Edges {
		if _, ok := best[e.SourceID]; !ok || e.Score > bestScore[e.SourceID] {
			best[e.SourceID] = e.TargetID
			bestScore[e.SourceID] = e.Score
		}
	}
	if best["1"] != "2" || best["2"] != "1" {
		t.Errorf("politics pair not mutual nearest: best[1]=%s best[2]=%s", best["1"], best["2"])
	}
	if best["3"] != "4" || best["4"] != "3" {
		t.Errorf("biology pair not mutual nearest: best[3]=%s best[4]=%s", best["3"], best["4"])
	}
}

func TestBuildTopKTruncates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TopK = 1
	res, err := Build(cfg, corpusFeatures(t), zerolog.Nop())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(res.Edges) != 4 {
		t.Errorf("got %d edges with TopK=1, want 4", len(res.Edges))
	}
}

func TestBuildTooFewDocuments(t *testing.T) {
	_, err := Build(DefaultConfig(), map[string]map[string]float64{
		"only": {"term": 1},
	}, zerolog.Nop())
	if err == nil {
		t.Error("expected error for single-document corpus")
	}
}

func TestBuildLargerCorpusWithTSNE(t *testing.T) {
	if testing.Short() {
		t.Skip("t-SNE embedding is slow")
	}

	texts := make(map[string]string, 12)
	topics := []string{
		"cancer cells tumor biology treatment clinical",
		"brexit uk london politics europe referendum",
		"neural networks deep learning gradient training",
	}
	for i := 0; i < 12; i++ {
		id := string(rune('a' + i))
		texts[id] = topics[i%3]
	}
	v := features.NewVectorizer(features.NormMax)
	feats := v.FitTransform(texts)

	cfg := DefaultConfig()
	cfg.TSNEIterations = 50
	res, err := Build(cfg, feats, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(res.Coords) != 12 {
		t.Errorf("got %d coords, want 12", len(res.Coords))
	}
	for id, c := range res.Coords {
		if math.IsNaN(c.X) || math.IsNaN(c.Y) {
			t.Errorf("NaN coordinates for %s", id)
		}
	}
}
