// Package parser turns free-text queries into query vectors.
package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// QueryPlan is a parsed query.
type QueryPlan struct {
	RawQuery string
	// Terms are the distinct normalised terms, sorted.
	Terms  []string
	Vector vector.TermVector
}

// Parse extracts a raw term-frequency vector from query with the same
// normalisation used for documents. A query with no indexable terms fails
// with ErrEmptyQuery.
func Parse(tok *tokenizer.Tokenizer, query string) (*QueryPlan, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("blank query: %w", apperrors.ErrEmptyQuery)
	}
	v := tok.Vector(query)
	if len(v) == 0 {
		return nil, fmt.Errorf("query %q has no indexable terms: %w", query, apperrors.ErrEmptyQuery)
	}
	return &QueryPlan{
		RawQuery: query,
		Terms:    v.Terms(),
		Vector:   v,
	}, nil
}

// FromVector wraps an already-built vector, such as a revised feedback
// query, in a plan.
func FromVector(label string, v vector.TermVector) (*QueryPlan, error) {
	if len(v) == 0 {
		return nil, apperrors.ErrEmptyQuery
	}
	return &QueryPlan{RawQuery: label, Terms: v.Terms(), Vector: v.Copy()}, nil
}
