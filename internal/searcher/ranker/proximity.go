package ranker

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// MissingPairPenalty is the distance charged for a term pair when either term
// is absent from the document.
const MissingPairPenalty = 1000.0

// PositionSource returns the token positions of every term in a document.
type PositionSource interface {
	Positions(docID string) (map[string][]int, bool)
}

// ProximityReranker re-orders a cosine-ranked list by cosine / proximity,
// where proximity is the mean pairwise distance between query terms scaled
// by 1/1000.
type ProximityReranker struct {
	positions PositionSource
}

func NewProximityReranker(positions PositionSource) *ProximityReranker {
	return &ProximityReranker{positions: positions}
}

// Rerank computes proximity for every retrieval and re-sorts them. The input
// scores must be plain cosine scores. The returned slice is a new slice.
func (p *ProximityReranker) Rerank(query vector.TermVector, results []index.Retrieval) ([]index.Retrieval, error) {
	terms := query.Terms()
	out := make([]index.Retrieval, len(results))
	for i, r := range results {
		positions, ok := p.positions.Positions(r.ID)
		if !ok {
			return nil, fmt.Errorf("positions for %q: %w", r.ID, apperrors.ErrUnknownDocument)
		}
		prox := Proximity(terms, positions)
		r.Cosine = r.Score
		r.Proximity = prox
		if prox != 0 {
			r.Score = r.Cosine / prox
		}
		out[i] = r
	}
	index.SortRetrievals(out)
	return out, nil
}

// Proximity returns the scaled mean distance between occurrences of every
// unordered pair of distinct terms. A pair where either term is missing adds
// one comparison of MissingPairPenalty. It is 0 when fewer than two distinct
// terms are given.
func Proximity(terms []string, positions map[string][]int) float64 {
	var (
		total float64
		count int
	)
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			a, b := positions[terms[i]], positions[terms[j]]
			if len(a) == 0 || len(b) == 0 {
				total += MissingPairPenalty
				count++
				continue
			}
			for _, pa := range a {
				for _, pb := range b {
					d := pa - pb
					if d < 0 {
						d = -d
					}
					total += float64(d)
					count++
				}
			}
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count) / MissingPairPenalty
}
