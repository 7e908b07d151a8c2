package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
)

// DocRef identifies one indexed document. Length is the Euclidean norm of the
// document's tf-idf vector, fixed when the index is built. Two DocRefs are the
// same document iff their IDs match.
type DocRef struct {
	ID     string  `json:"doc_id"`
	Length float64 `json:"length"`
	slot   int
}

// Slot is the document's position in the index arena, dense from 0.
func (d DocRef) Slot() int { return d.slot }

// Posting records the raw frequency of a term in the document held at an
// arena slot of the owning index.
type Posting struct {
	Slot      int
	Frequency float64
}

type PostingList []Posting

// Source is one document handed to Build: its identifier and raw term
// frequencies.
type Source struct {
	ID     string
	Vector vector.TermVector
}

// Retrieval is one ranked result. Score is the key the list is ordered by;
// Cosine and Proximity keep the components a re-ranking strategy used.
type Retrieval struct {
	DocRef
	Score     float64 `json:"score"`
	Cosine    float64 `json:"cosine,omitempty"`
	Proximity float64 `json:"proximity,omitempty"`
}

// SortRetrievals orders rs by descending Score. The sort is stable, so equal
// scores keep their incoming order.
func SortRetrievals(rs []Retrieval) {
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Score > rs[j].Score
	})
}

// IDs returns the document identifiers of rs in rank order.
func IDs(rs []Retrieval) []string {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return ids
}
