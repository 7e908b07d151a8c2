// Package ranker holds the scoring strategies applied on top of the inverted
// index's dot-product accumulation: plain cosine, popularity-biased cosine,
// proximity re-ranking, and dense/sparse hybrid fusion.
package ranker

import (
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// Strategy names the scoring variant a query runs under.
type Strategy string

const (
	StrategyCosine     Strategy = "cosine"
	StrategyProximity  Strategy = "proximity"
	StrategyPopularity Strategy = "popularity"
	StrategyHybrid     Strategy = "hybrid"
)

// ParseStrategy validates a strategy name. The empty string selects cosine.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyCosine:
		return StrategyCosine, nil
	case StrategyProximity, StrategyPopularity, StrategyHybrid:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q: %w", s, apperrors.ErrInvalidInput)
	}
}

// Cosine is the plain cosine-similarity scorer.
type Cosine struct{}

func (Cosine) Finalize(dot, queryLength float64, doc index.DocRef) (float64, error) {
	if queryLength == 0 {
		return 0, apperrors.ErrEmptyQuery
	}
	if doc.Length == 0 {
		return 0, nil
	}
	return dot / (queryLength * doc.Length), nil
}

// MissingPolicy decides what PopularityBiased does for a document without a
// popularity score.
type MissingPolicy string

const (
	MissingFail MissingPolicy = "fail"
	MissingZero MissingPolicy = "zero"
)

// PopularityBiased adds Weight times the document's popularity to its cosine
// score.
type PopularityBiased struct {
	Popularity map[string]float64
	Weight     float64
	Missing    MissingPolicy
	logger     *slog.Logger
}

func NewPopularityBiased(popularity map[string]float64, weight float64, missing MissingPolicy) *PopularityBiased {
	if missing == "" {
		missing = MissingFail
	}
	return &PopularityBiased{
		Popularity: popularity,
		Weight:     weight,
		Missing:    missing,
		logger:     slog.Default().With("component", "popularity-scorer"),
	}
}

func (p *PopularityBiased) Finalize(dot, queryLength float64, doc index.DocRef) (float64, error) {
	score, err := Cosine{}.Finalize(dot, queryLength, doc)
	if err != nil {
		return 0, err
	}
	rank, ok := p.Popularity[doc.ID]
	if !ok {
		if p.Missing != MissingZero {
			return 0, fmt.Errorf("document %q: %w", doc.ID, apperrors.ErrMissingPopularity)
		}
		if p.logger != nil {
			p.logger.Warn("popularity score missing, using zero", "doc_id", doc.ID)
		}
	}
	return score + rank*p.Weight, nil
}
