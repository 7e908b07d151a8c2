package index

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// Scorer turns the accumulated dot product between a query and one candidate
// document into that document's final score. queryLength is the Euclidean
// norm of the query vector.
type Scorer interface {
	Finalize(dot, queryLength float64, doc DocRef) (float64, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(dot, queryLength float64, doc DocRef) (float64, error)

func (f ScorerFunc) Finalize(dot, queryLength float64, doc DocRef) (float64, error) {
	return f(dot, queryLength, doc)
}

// InvertedIndex maps terms to posting lists over a fixed document arena. It is
// built once and read-only afterwards, so Retrieve may run concurrently.
type InvertedIndex struct {
	mu       sync.RWMutex
	postings map[string]PostingList
	idf      map[string]float64
	docs     []DocRef
	vectors  []vector.TermVector
	slots    map[string]int
	built    bool
	logger   *slog.Logger
}

func New() *InvertedIndex {
	return &InvertedIndex{
		postings: make(map[string]PostingList),
		idf:      make(map[string]float64),
		slots:    make(map[string]int),
		logger:   slog.Default().With("component", "inverted-index"),
	}
}

// Build indexes sources, computes IDF weights and document lengths. It may be
// called only once per index; later calls fail with ErrRebuild. Duplicate
// document IDs are rejected.
func (x *InvertedIndex) Build(sources []Source) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.built {
		return fmt.Errorf("building index with %d documents: %w", len(sources), apperrors.ErrRebuild)
	}

	for _, src := range sources {
		if _, dup := x.slots[src.ID]; dup {
			x.reset()
			return fmt.Errorf("document %q indexed twice: %w", src.ID, apperrors.ErrInvalidInput)
		}
		slot := len(x.docs)
		x.slots[src.ID] = slot
		x.docs = append(x.docs, DocRef{ID: src.ID, slot: slot})
		x.vectors = append(x.vectors, src.Vector.Copy())
		for term, tf := range src.Vector {
			if tf == 0 {
				continue
			}
			x.postings[term] = append(x.postings[term], Posting{Slot: slot, Frequency: tf})
		}
	}
	x.computeIDFAndLengths()
	x.built = true

	x.logger.Info("index built",
		"documents", len(x.docs),
		"terms", len(x.postings),
	)
	return nil
}

func (x *InvertedIndex) computeIDFAndLengths() {
	n := float64(len(x.docs))
	sumSquares := make([]float64, len(x.docs))
	for term, list := range x.postings {
		idf := math.Log(n / float64(len(list)))
		x.idf[term] = idf
		for _, p := range list {
			w := p.Frequency * idf
			sumSquares[p.Slot] += w * w
		}
	}
	for i := range x.docs {
		x.docs[i].Length = math.Sqrt(sumSquares[i])
	}
}

func (x *InvertedIndex) reset() {
	x.postings = make(map[string]PostingList)
	x.idf = make(map[string]float64)
	x.slots = make(map[string]int)
	x.docs = nil
	x.vectors = nil
}

// Retrieve ranks every document sharing at least one term with query. The
// dot product is accumulated over the query terms' posting lists only; the
// scorer then converts it into the final score. Documents with a zero dot
// product are not returned.
func (x *InvertedIndex) Retrieve(query vector.TermVector, scorer Scorer) ([]Retrieval, error) {
	if len(query) == 0 {
		return nil, apperrors.ErrEmptyQuery
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	if !x.built {
		return nil, apperrors.ErrNotBuilt
	}

	dots := make(map[int]float64)
	var queryLenSq float64
	for term, qw := range query {
		queryLenSq += qw * qw
		list, ok := x.postings[term]
		if !ok {
			continue
		}
		idf := x.idf[term]
		for _, p := range list {
			dots[p.Slot] += qw * p.Frequency * idf
		}
	}
	if queryLenSq == 0 {
		return nil, apperrors.ErrEmptyQuery
	}
	queryLength := math.Sqrt(queryLenSq)

	slots := make([]int, 0, len(dots))
	for slot, dot := range dots {
		if dot != 0 {
			slots = append(slots, slot)
		}
	}
	sort.Ints(slots)

	results := make([]Retrieval, 0, len(slots))
	for _, slot := range slots {
		doc := x.docs[slot]
		score, err := scorer.Finalize(dots[slot], queryLength, doc)
		if err != nil {
			return nil, fmt.Errorf("scoring document %q: %w", doc.ID, err)
		}
		results = append(results, Retrieval{DocRef: doc, Score: score})
	}
	SortRetrievals(results)
	return results, nil
}

// Document returns the reference for id.
func (x *InvertedIndex) Document(id string) (DocRef, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	slot, ok := x.slots[id]
	if !ok {
		return DocRef{}, false
	}
	return x.docs[slot], true
}

// Documents returns every indexed document in build order.
func (x *InvertedIndex) Documents() []DocRef {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]DocRef, len(x.docs))
	copy(out, x.docs)
	return out
}

// DocVector returns a copy of the raw term-frequency vector of id.
func (x *InvertedIndex) DocVector(id string) (vector.TermVector, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	slot, ok := x.slots[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, apperrors.ErrUnknownDocument)
	}
	return x.vectors[slot].Copy(), nil
}

// WeightedVector returns the tf-idf vector of id.
func (x *InvertedIndex) WeightedVector(id string) (vector.TermVector, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	slot, ok := x.slots[id]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", id, apperrors.ErrUnknownDocument)
	}
	out := make(vector.TermVector, len(x.vectors[slot]))
	for term, tf := range x.vectors[slot] {
		if w := tf * x.idf[term]; w != 0 {
			out[term] = w
		}
	}
	return out, nil
}

// IDF returns the inverse document frequency of term, or false when the term
// is not indexed.
func (x *InvertedIndex) IDF(term string) (float64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	idf, ok := x.idf[term]
	return idf, ok
}

// DocFreq returns the number of documents containing term.
func (x *InvertedIndex) DocFreq(term string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.postings[term])
}

func (x *InvertedIndex) DocCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

func (x *InvertedIndex) TermCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.postings)
}

func (x *InvertedIndex) Built() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.built
}
