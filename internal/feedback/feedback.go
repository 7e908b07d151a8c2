// Package feedback rewrites a query vector from rated documents using the
// Ide-regular form of Rocchio relevance feedback.
package feedback

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// VectorSource returns the term vector of a document. Implementations must
// return a vector the caller may modify.
type VectorSource interface {
	DocVector(id string) (vector.TermVector, error)
}

// Set holds user ratings. Relevant ratings are used as positive weights;
// the absolute value of an irrelevant rating is the negative weight. A
// document present in both maps contributes to both.
type Set struct {
	Relevant   map[string]float64
	Irrelevant map[string]float64
}

func NewSet() *Set {
	return &Set{
		Relevant:   make(map[string]float64),
		Irrelevant: make(map[string]float64),
	}
}

// Rate files a rating: ratings >= 0 are relevant, negative ones irrelevant.
func (s *Set) Rate(docID string, rating float64) {
	if rating >= 0 {
		s.Relevant[docID] = rating
		return
	}
	s.Irrelevant[docID] = rating
}

func (s *Set) Empty() bool {
	return len(s.Relevant) == 0 && len(s.Irrelevant) == 0
}

// Judged reports whether docID has been rated.
func (s *Set) Judged(docID string) bool {
	_, good := s.Relevant[docID]
	_, bad := s.Irrelevant[docID]
	return good || bad
}

// Reformulator holds the feedback weights.
type Reformulator struct {
	Alpha  float64
	Beta   float64
	Gamma  float64
	logger *slog.Logger
}

func NewReformulator(alpha, beta, gamma float64) *Reformulator {
	return &Reformulator{
		Alpha:  alpha,
		Beta:   beta,
		Gamma:  gamma,
		logger: slog.Default().With("component", "feedback"),
	}
}

// Revision is a rewritten query plus the documents whose vectors had no
// positive weight and were left out.
type Revision struct {
	Query   vector.TermVector
	Skipped []string
}

// Revise returns a new query: the original normalised by its peak weight and
// scaled by Alpha, plus each relevant document normalised and scaled by
// rating*Beta, minus each irrelevant document normalised and scaled by
// |rating|*Gamma. Neither query nor the source's vectors are modified.
//
// A vector whose largest weight is zero or negative cannot be normalised
// without flipping or losing its signs, so it counts as degenerate: the query
// fails with ErrDegenerateVector and such a document is skipped and listed
// in Revision.Skipped.
func (r *Reformulator) Revise(query vector.TermVector, set *Set, docs VectorSource) (Revision, error) {
	if len(query) == 0 {
		return Revision{}, apperrors.ErrEmptyQuery
	}
	max := query.MaxWeight()
	if max <= 0 {
		return Revision{}, fmt.Errorf("original query: %w", apperrors.ErrDegenerateVector)
	}
	rev := Revision{Query: query.Copy()}
	rev.Query.Multiply(r.Alpha / max)
	if set == nil {
		return rev, nil
	}

	for _, id := range sortedKeys(set.Relevant) {
		v, ok, err := r.normalized(id, docs)
		if err != nil {
			return Revision{}, err
		}
		if !ok {
			rev.Skipped = append(rev.Skipped, id)
			continue
		}
		v.Multiply(set.Relevant[id] * r.Beta)
		rev.Query.Add(v)
	}
	for _, id := range sortedKeys(set.Irrelevant) {
		v, ok, err := r.normalized(id, docs)
		if err != nil {
			return Revision{}, err
		}
		if !ok {
			rev.Skipped = append(rev.Skipped, id)
			continue
		}
		v.Multiply(math.Abs(set.Irrelevant[id]) * r.Gamma)
		rev.Query.Subtract(v)
	}
	return rev, nil
}

// normalized fetches a copy of the document vector divided by its maximum
// weight. ok is false when that maximum is zero or negative.
func (r *Reformulator) normalized(id string, docs VectorSource) (vector.TermVector, bool, error) {
	v, err := docs.DocVector(id)
	if err != nil {
		return nil, false, fmt.Errorf("fetching vector for %q: %w", id, err)
	}
	v = v.Copy()
	max := v.MaxWeight()
	if max <= 0 {
		r.log().Warn("skipping degenerate feedback document",
			"doc_id", id,
			"error", apperrors.ErrDegenerateVector,
		)
		return nil, false, nil
	}
	v.Multiply(1 / max)
	return v, true, nil
}

func (r *Reformulator) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
