package ranker

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// HybridFuser mixes a dense ranking with a sparse cosine ranking.
type HybridFuser struct {
	Lambda float64
	// Resolve, when set, maps a dense-only candidate to its sparse index
	// entry so its reported length is the tf-idf norm.
	Resolve func(id string) (index.DocRef, bool)
}

func NewHybridFuser(lambda float64) (*HybridFuser, error) {
	if !(lambda >= 0 && lambda <= 1) {
		return nil, fmt.Errorf("lambda %v outside [0,1]: %w", lambda, apperrors.ErrInvalidInput)
	}
	return &HybridFuser{Lambda: lambda}, nil
}

// Fuse scores every dense candidate as lambda*dense + (1-lambda)*sparse, with
// a missing sparse score counting as 0. The dense list defines the candidate
// set; documents only present in the sparse list are dropped. Results carry
// the sparse document reference whenever one is known.
func (h *HybridFuser) Fuse(dense, sparse []index.Retrieval) []index.Retrieval {
	hits := make(map[string]index.Retrieval, len(sparse))
	for _, r := range sparse {
		if _, seen := hits[r.ID]; !seen {
			hits[r.ID] = r
		}
	}
	out := make([]index.Retrieval, len(dense))
	for i, d := range dense {
		fused := index.Retrieval{DocRef: d.DocRef, Score: h.Lambda * d.Score}
		if s, ok := hits[d.ID]; ok {
			fused.DocRef = s.DocRef
			fused.Cosine = s.Score
			fused.Score += (1 - h.Lambda) * s.Score
		} else if h.Resolve != nil {
			if ref, ok := h.Resolve(d.ID); ok {
				fused.DocRef = ref
			}
		}
		out[i] = fused
	}
	index.SortRetrievals(out)
	return out
}
