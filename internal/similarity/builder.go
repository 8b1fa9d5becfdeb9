// Papermap - Scientific Article Search and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/papermap

// Package similarity computes the pairwise item similarity structure
// and the 2D article map embedding from corpus-wide feature vectors.
//
// The pipeline is: assemble the documents-by-terms matrix in a fixed
// document ordering, reduce it with a truncated SVD, L2-normalize the
// rows, take the pairwise dot products as cosine similarities, embed
// the reduced vectors in 2D with t-SNE, and keep the top-K most
// similar other documents per document with scores scaled to 0-100.
//
// A build either completes fully or fails; callers must not apply a
// partial result.
package similarity

import (
	"fmt"
	"math"
	"sort"

	"github.com/danaugrs/go-tsne/tsne"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/papermap/internal/models"
)

// Config tunes the similarity build.
type Config struct {
	// TopK is the number of similar items kept per item.
	TopK int

	// SVDComponents caps the truncated SVD rank. The effective rank is
	// min(SVDComponents, vocabulary/2, matrix rank).
	SVDComponents int

	// TSNEPerplexity and TSNEIterations tune the 2D embedding.
	TSNEPerplexity float64
	TSNEIterations int
}

// DefaultConfig mirrors the production build parameters.
func DefaultConfig() Config {
	return Config{
		TopK:           50,
		SVDComponents:  150,
		TSNEPerplexity: 15,
		TSNEIterations: 300,
	}
}

// Coord is a 2D embedding position.
type Coord struct {
	X float64
	Y float64
}

// Result is a complete similarity build: every item's outbound top-K
// edges and its map coordinates. It replaces all previous similarity
// state.
type Result struct {
	Edges  []models.SimilarityEdge
	Coords map[string]Coord
}

// tsneLearningRate is the gradient step size for the embedding. The
// embedding is for visualization only and never feeds rankings, so
// the exact value is uncritical.
const tsneLearningRate = 100

// Build runs the full similarity pipeline over the corpus features.
// docFeats maps document id to its sparse term-weight vector.
func Build(cfg Config, docFeats map[string]map[string]float64, logger zerolog.Logger) (*Result, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = 50
	}
	if cfg.SVDComponents <= 0 {
		cfg.SVDComponents = 150
	}
	if cfg.TSNEPerplexity <= 0 {
		cfg.TSNEPerplexity = 15
	}
	if cfg.TSNEIterations <= 0 {
		cfg.TSNEIterations = 300
	}

	if len(docFeats) < 2 {
		return nil, fmt.Errorf("similarity build needs at least 2 documents, got %d", len(docFeats))
	}

	docIDs, X, vocab := assembleMatrix(docFeats)
	logger.Info().
		Int("documents", len(docIDs)).
		Int("vocabulary", vocab).
		Msg("assembled feature matrix")

	reduced, rank, err := reduce(X, cfg.SVDComponents, vocab)
	if err != nil {
		return nil, fmt.Errorf("dimensionality reduction: %w", err)
	}
	logger.Info().Int("rank", rank).Msg("reduced feature matrix")

	normalizeRows(reduced)

	n, _ := reduced.Dims()
	var sim mat.Dense
	sim.Mul(reduced, reduced.T())

	coords, err := embed2D(reduced, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("2d embedding: %w", err)
	}

	res := &Result{
		Edges:  topKEdges(&sim, docIDs, cfg.TopK),
		Coords: make(map[string]Coord, n),
	}
	for i, id := range docIDs {
		res.Coords[id] = Coord{X: coords.At(i, 0), Y: coords.At(i, 1)}
	}

	logger.Info().
		Int("edges", len(res.Edges)).
		Msg("similarity build complete")
	return res, nil
}

// assembleMatrix lays the sparse vectors out as a dense documents by
// terms matrix. Documents and terms are both sorted so the layout is
// reproducible; the returned id slice gives the row order used by
// everything downstream.
func assembleMatrix(docFeats map[string]map[string]float64) ([]string, *mat.Dense, int) {
	docIDs := make([]string, 0, len(docFeats))
	for id := range docFeats {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)

	termSet := make(map[string]struct{})
	for _, feats := range docFeats {
		for term := range feats {
			termSet[term] = struct{}{}
		}
	}
	terms := make([]string, 0, len(termSet))
	for term := range termSet {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	cols := make(map[string]int, len(terms))
	for j, term := range terms {
		cols[term] = j
	}

	X := mat.NewDense(len(docIDs), len(terms), nil)
	for i, id := range docIDs {
		for term, w := range docFeats[id] {
			X.Set(i, cols[term], w)
		}
	}
	return docIDs, X, len(terms)
}

// reduce projects X to a lower-rank space via truncated SVD, scaling
// the left singular vectors by the singular values so cosine geometry
// is preserved. Returns the reduced matrix and the rank used.
func reduce(X *mat.Dense, maxComponents, vocab int) (*mat.Dense, int, error) {
	rows, cols := X.Dims()

	rank := maxComponents
	if half := vocab / 2; half < rank {
		rank = half
	}
	if rows < rank {
		rank = rows
	}
	if cols < rank {
		rank = cols
	}
	if rank < 2 {
		// Corpus too small to meaningfully reduce; keep the raw space.
		out := mat.DenseCopyOf(X)
		return out, cols, nil
	}

	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, 0, fmt.Errorf("SVD factorization did not converge")
	}

	var u mat.Dense
	svd.UTo(&u)
	values := svd.Values(nil)

	reduced := mat.NewDense(rows, rank, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < rank; j++ {
			reduced.Set(i, j, u.At(i, j)*values[j])
		}
	}
	return reduced, rank, nil
}

// normalizeRows scales every row to unit L2 length in place. All-zero
// rows (documents with no known terms) are left untouched.
func normalizeRows(X *mat.Dense) {
	rows, cols := X.Dims()
	for i := 0; i < rows; i++ {
		var sq float64
		for j := 0; j < cols; j++ {
			v := X.At(i, j)
			sq += v * v
		}
		if sq == 0 {
			continue
		}
		l := math.Sqrt(sq)
		for j := 0; j < cols; j++ {
			X.Set(i, j, X.At(i, j)/l)
		}
	}
}

// topKEdges selects, for each document, the k most similar other
// documents sorted by descending score, scaled to 0-100.
func topKEdges(sim *mat.Dense, docIDs []string, k int) []models.SimilarityEdge {
	n := len(docIDs)

	type scored struct {
		idx   int
		score float64
	}

	edges := make([]models.SimilarityEdge, 0, n*k)
	for i := 0; i < n; i++ {
		others := make([]scored, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			others = append(others, scored{idx: j, score: sim.At(i, j)})
		}
		sort.SliceStable(others, func(a, b int) bool {
			return others[a].score > others[b].score
		})
		if len(others) > k {
			others = others[:k]
		}
		for _, o := range others {
			edges = append(edges, models.SimilarityEdge{
				SourceID: docIDs[i],
				TargetID: docIDs[o.idx],
				Score:    100 * o.score,
			})
		}
	}
	return edges
}

// minDocsForTSNE is the smallest corpus t-SNE is attempted on; below
// it the first two reduced dimensions serve as coordinates.
const minDocsForTSNE = 5

// embed2D computes the 2D visualization coordinates for the reduced
// vectors. The embedding never influences similarity rankings.
func embed2D(reduced *mat.Dense, cfg Config, logger zerolog.Logger) (*mat.Dense, error) {
	rows, cols := reduced.Dims()

	if rows < minDocsForTSNE {
		logger.Debug().Int("documents", rows).Msg("corpus too small for t-SNE, using first two components")
		return firstTwoColumns(reduced, rows, cols), nil
	}

	// Perplexity must stay well below the neighbourhood size.
	perplexity := cfg.TSNEPerplexity
	if limit := float64(rows-1) / 3; perplexity > limit {
		perplexity = limit
	}

	t := tsne.NewTSNE(2, perplexity, tsneLearningRate, cfg.TSNEIterations, false)
	embedded := t.EmbedData(reduced, nil)

	out := mat.DenseCopyOf(embedded)
	r, c := out.Dims()
	if r != rows || c != 2 {
		return nil, fmt.Errorf("unexpected embedding shape %dx%d", r, c)
	}
	for i := 0; i < r; i++ {
		if math.IsNaN(out.At(i, 0)) || math.IsNaN(out.At(i, 1)) {
			return nil, fmt.Errorf("embedding produced NaN coordinates at row %d", i)
		}
	}
	return out, nil
}

// firstTwoColumns copies up to the first two columns of X, zero
// padding when the reduced space has fewer.
func firstTwoColumns(X *mat.Dense, rows, cols int) *mat.Dense {
	out := mat.NewDense(rows, 2, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < 2 && j < cols; j++ {
			out.Set(i, j, X.At(i, j))
		}
	}
	return out
}
