// Package ndcg accumulates normalized discounted cumulative gain over a run
// of queries.
//
// Each rank's value is the cumulative DCG at that rank divided by the
// cumulative ideal DCG at the same rank. The ideal gains are every gold
// relevance value sorted in descending order and padded with zeros.
package ndcg

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

const DefaultLimit = 10

// RankNDCG is the average NDCG at a 1-based rank.
type RankNDCG struct {
	Rank int     `json:"rank"`
	NDCG float64 `json:"ndcg"`
}

// Accumulator sums per-query NDCG at ranks 1..Limit. It is not safe for
// concurrent use.
type Accumulator struct {
	limit   int
	totals  []float64
	queries int
}

func NewAccumulator(limit int) (*Accumulator, error) {
	if limit < 1 {
		return nil, fmt.Errorf("ndcg limit %d: %w", limit, apperrors.ErrInvalidInput)
	}
	return &Accumulator{limit: limit, totals: make([]float64, limit)}, nil
}

func (a *Accumulator) Limit() int { return a.limit }

func (a *Accumulator) Queries() int { return a.queries }

// Update scores one ranked list of document ids against gold relevance and
// adds the result into the running totals. The per-rank values for this
// query are returned.
func (a *Accumulator) Update(ranked []string, gold map[string]float64) []float64 {
	values := Compute(ranked, gold, a.limit)
	for i, v := range values {
		a.totals[i] += v
	}
	a.queries++
	return values
}

// UpdateRetrievals is Update over a retrieval list.
func (a *Accumulator) UpdateRetrievals(results []index.Retrieval, gold map[string]float64) []float64 {
	return a.Update(index.IDs(results), gold)
}

// Finalize returns the average NDCG per rank. It fails with ErrNoQueries
// when Update was never called.
func (a *Accumulator) Finalize() ([]RankNDCG, error) {
	if a.queries == 0 {
		return nil, apperrors.ErrNoQueries
	}
	out := make([]RankNDCG, a.limit)
	for i, total := range a.totals {
		out[i] = RankNDCG{Rank: i + 1, NDCG: total / float64(a.queries)}
	}
	return out, nil
}

// Compute returns NDCG at ranks 1..limit for one query. A rank whose ideal
// DCG is zero gets 0.
func Compute(ranked []string, gold map[string]float64, limit int) []float64 {
	gains := make([]float64, limit)
	for i := 0; i < limit && i < len(ranked); i++ {
		gains[i] = gold[ranked[i]]
	}
	cumulate(gains)

	all := make([]float64, 0, len(gold))
	for _, g := range gold {
		all = append(all, g)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(all)))
	ideal := make([]float64, limit)
	copy(ideal, all)
	cumulate(ideal)

	for i := range gains {
		if ideal[i] == 0 {
			gains[i] = 0
			continue
		}
		gains[i] /= ideal[i]
	}
	return gains
}

// cumulate rewrites gains in place as discounted cumulative gain. Rank 0 is
// undiscounted and rank i >= 1 is discounted by log2(i+1).
func cumulate(gains []float64) {
	if len(gains) == 0 {
		return
	}
	dcg := gains[0]
	for i := 1; i < len(gains); i++ {
		dcg += gains[i] / math.Log2(float64(i+1))
		gains[i] = dcg
	}
}

// WriteReport writes one "<rank> <average>" line per rank.
func WriteReport(w io.Writer, report []RankNDCG) error {
	bw := bufio.NewWriter(w)
	for _, r := range report {
		line := strconv.Itoa(r.Rank) + " " + strconv.FormatFloat(r.NDCG, 'g', -1, 64) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			return fmt.Errorf("writing ndcg report: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing ndcg report: %w", err)
	}
	return nil
}
