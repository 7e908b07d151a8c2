package executor

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// FeedbackRequest rates documents for a query. Ratings >= 0 mark a document
// relevant, negative ratings irrelevant.
type FeedbackRequest struct {
	Query    string             `json:"query"`
	Ratings  map[string]float64 `json:"ratings"`
	Strategy ranker.Strategy    `json:"strategy,omitempty"`
	Limit    int                `json:"limit,omitempty"`
	QueryID  string             `json:"query_id,omitempty"`
}

// FeedbackResult is the revised query and the ranking it produces.
type FeedbackResult struct {
	SearchResult
	RevisedQuery vector.TermVector `json:"revised_query"`
	Skipped      []string          `json:"skipped,omitempty"`
}

// Feedback revises the query from the ratings and retrieves again with the
// revised vector. Rated documents are left out of the new ranking.
func (e *Executor) Feedback(ctx context.Context, req FeedbackRequest) (*FeedbackResult, error) {
	if len(req.Ratings) == 0 {
		return nil, fmt.Errorf("feedback needs at least one rating: %w", apperrors.ErrInvalidInput)
	}
	plan, err := parser.Parse(e.engine.Tokenizer(), req.Query)
	if err != nil {
		return nil, err
	}
	set := feedback.NewSet()
	for id, rating := range req.Ratings {
		if _, ok := e.engine.Index().Document(id); !ok {
			return nil, fmt.Errorf("rated document %q: %w", id, apperrors.ErrUnknownDocument)
		}
		set.Rate(id, rating)
	}

	rev, err := e.Revise(plan.Vector, set)
	if err != nil {
		return nil, err
	}

	revised, err := parser.FromVector(req.Query, rev.Query)
	if err != nil {
		return nil, err
	}
	res, err := e.executePlan(ctx, revised, SearchRequest{
		Query:    req.Query,
		Strategy: req.Strategy,
		Limit:    req.Limit,
		QueryID:  req.QueryID,
	}, set.Judged)
	if err != nil {
		return nil, err
	}
	return &FeedbackResult{
		SearchResult: *res,
		RevisedQuery: rev.Query,
		Skipped:      rev.Skipped,
	}, nil
}

// Revise applies the reformulator with the engine's document vectors and
// records the outcome.
func (e *Executor) Revise(query vector.TermVector, set *feedback.Set) (feedback.Revision, error) {
	rev, err := e.reformulator.Revise(query, set, e.engine)
	if e.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		e.metrics.FeedbackRevisions.WithLabelValues(outcome).Inc()
		e.metrics.FeedbackSkippedDocs.Add(float64(len(rev.Skipped)))
	}
	return rev, err
}
