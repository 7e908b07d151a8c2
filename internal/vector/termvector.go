// Package vector implements the sparse term-weight vector shared by the
// index, the scorers and the feedback reformulator.
package vector

import (
	"math"
	"sort"
)

// TermVector maps a term to its weight. An absent term has weight zero;
// operations never store explicit zero entries.
type TermVector map[string]float64

// New builds a TermVector from raw integer term counts.
func New(counts map[string]int) TermVector {
	v := make(TermVector, len(counts))
	for term, c := range counts {
		if c != 0 {
			v[term] = float64(c)
		}
	}
	return v
}

// Copy returns a deep copy of v.
func (v TermVector) Copy() TermVector {
	out := make(TermVector, len(v))
	for term, w := range v {
		out[term] = w
	}
	return out
}

// Add adds other into v in place.
func (v TermVector) Add(other TermVector) {
	for term, w := range other {
		v.set(term, v[term]+w)
	}
}

// Subtract subtracts other from v in place.
func (v TermVector) Subtract(other TermVector) {
	for term, w := range other {
		v.set(term, v[term]-w)
	}
}

// Multiply scales every weight of v in place.
func (v TermVector) Multiply(factor float64) {
	if factor == 0 {
		for term := range v {
			delete(v, term)
		}
		return
	}
	for term, w := range v {
		v[term] = w * factor
	}
}

// MaxWeight returns the largest weight in v, or 0 for an empty vector.
func (v TermVector) MaxWeight() float64 {
	var (
		max   float64
		first = true
	)
	for _, w := range v {
		if first || w > max {
			max = w
			first = false
		}
	}
	return max
}

// Length returns the Euclidean norm of v.
func (v TermVector) Length() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Terms returns the keys of v in lexical order.
func (v TermVector) Terms() []string {
	terms := make([]string, 0, len(v))
	for term := range v {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Equal reports whether v and other hold the same weights.
func (v TermVector) Equal(other TermVector) bool {
	if len(v) != len(other) {
		return false
	}
	for term, w := range v {
		ow, ok := other[term]
		if !ok || ow != w {
			return false
		}
	}
	return true
}

func (v TermVector) set(term string, w float64) {
	if w == 0 {
		delete(v, term)
		return
	}
	v[term] = w
}
