// Package experiment runs judged query files through the retrieval engine
// and reports average NDCG per rank.
//
// Three experiments are supported. Ranking scores the plain ranking of a
// strategy. Feedback simulates a user judging the top documents, revises the
// query and scores the residual ranking with judged documents removed.
// Hybrid fuses a dense ranking keyed by per-query embedding ids with the
// sparse ranking.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/ndcg"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/queryfile"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
)

const (
	KindRanking  = "ranking"
	KindFeedback = "feedback"
	KindHybrid   = "hybrid"
)

// Searcher is the part of the executor an experiment drives.
type Searcher interface {
	QueryVector(text string) (vector.TermVector, error)
	RetrieveVector(ctx context.Context, q vector.TermVector, strategy ranker.Strategy, queryID string) ([]index.Retrieval, error)
	Revise(query vector.TermVector, set *feedback.Set) (feedback.Revision, error)
	Document(id string) (index.DocRef, bool)
}

// Options configures a run. Fields not used by an experiment are ignored.
type Options struct {
	Limit    int
	Strategy ranker.Strategy
	// TopK is how many top-ranked documents the simulated user judges.
	TopK int
	// Binary rates judged gold documents 1.0 instead of their gold rating.
	Binary bool
	// Control skips the revision and scores the original ranking.
	Control bool
	// QueryIDs name the dense query embedding of each query, in query order.
	QueryIDs []string
	// OnQuery, when set, receives every per-query result as it is computed.
	OnQuery func(QueryResult)
}

// QueryResult is the outcome for one query.
type QueryResult struct {
	Line       int       `json:"line"`
	Query      string    `json:"query"`
	QueryID    string    `json:"query_id,omitempty"`
	Returned   int       `json:"returned"`
	Relevant   int       `json:"relevant,omitempty"`
	Irrelevant int       `json:"irrelevant,omitempty"`
	Skipped    []string  `json:"skipped,omitempty"`
	NDCG       []float64 `json:"ndcg"`
}

// Result is a finished run.
type Result struct {
	Experiment string          `json:"experiment"`
	Limit      int             `json:"limit"`
	Queries    int             `json:"queries"`
	Report     []ndcg.RankNDCG `json:"report"`
	PerQuery   []QueryResult   `json:"per_query"`
	Params     map[string]any  `json:"params"`
}

type Runner struct {
	searcher Searcher
	logger   *slog.Logger
}

func NewRunner(s Searcher) *Runner {
	return &Runner{
		searcher: s,
		logger:   slog.Default().With("component", "experiment"),
	}
}

// Run dispatches to the experiment named by kind.
func (r *Runner) Run(ctx context.Context, kind string, queries []queryfile.Query, opts Options) (*Result, error) {
	switch kind {
	case KindRanking:
		return r.Ranking(ctx, queries, opts)
	case KindFeedback:
		return r.Feedback(ctx, queries, opts)
	case KindHybrid:
		return r.Hybrid(ctx, queries, opts)
	}
	return nil, fmt.Errorf("experiment %q: %w", kind, apperrors.ErrInvalidInput)
}

// Ranking scores each query's ranking under opts.Strategy.
func (r *Runner) Ranking(ctx context.Context, queries []queryfile.Query, opts Options) (*Result, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = ranker.StrategyCosine
	}
	return r.run(ctx, KindRanking, queries, opts, map[string]any{"strategy": string(strategy)},
		func(ctx context.Context, i int, q queryfile.Query, acc *ndcg.Accumulator) (QueryResult, error) {
			vec, err := r.searcher.QueryVector(q.Text)
			if err != nil {
				return QueryResult{}, err
			}
			results, err := r.searcher.RetrieveVector(ctx, vec, strategy, "")
			if err != nil {
				return QueryResult{}, err
			}
			return QueryResult{
				Returned: len(results),
				NDCG:     acc.UpdateRetrievals(results, q.Gold),
			}, nil
		})
}

// Feedback runs the simulated relevance-feedback experiment. The top TopK
// documents are judged: gold documents are relevant, the rest irrelevant
// with rating -1. Relevant judged documents leave the gold set, and every
// judged document is removed from the ranking before it is scored.
func (r *Runner) Feedback(ctx context.Context, queries []queryfile.Query, opts Options) (*Result, error) {
	if opts.TopK < 0 {
		return nil, fmt.Errorf("simulated feedback %d: %w", opts.TopK, apperrors.ErrInvalidInput)
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = ranker.StrategyCosine
	}
	params := map[string]any{
		"strategy": string(strategy),
		"top_k":    opts.TopK,
		"binary":   opts.Binary,
		"control":  opts.Control,
	}
	return r.run(ctx, KindFeedback, queries, opts, params,
		func(ctx context.Context, i int, q queryfile.Query, acc *ndcg.Accumulator) (QueryResult, error) {
			vec, err := r.searcher.QueryVector(q.Text)
			if err != nil {
				return QueryResult{}, err
			}
			results, err := r.searcher.RetrieveVector(ctx, vec, strategy, "")
			if err != nil {
				return QueryResult{}, err
			}

			set := feedback.NewSet()
			judged := roaring.New()
			gold := make(map[string]float64, len(q.Gold))
			for id, g := range q.Gold {
				gold[id] = g
			}
			for _, res := range results[:min(opts.TopK, len(results))] {
				if err := r.judge(judged, res.ID); err != nil {
					return QueryResult{}, err
				}
				rating, ok := q.Gold[res.ID]
				if !ok {
					set.Rate(res.ID, -1)
					continue
				}
				if opts.Binary {
					rating = 1
				}
				set.Rate(res.ID, rating)
				delete(gold, res.ID)
			}

			out := QueryResult{Relevant: len(set.Relevant), Irrelevant: len(set.Irrelevant)}
			if !opts.Control && !set.Empty() {
				rev, err := r.searcher.Revise(vec, set)
				if err != nil {
					return QueryResult{}, err
				}
				out.Skipped = rev.Skipped
				results, err = r.searcher.RetrieveVector(ctx, rev.Query, strategy, "")
				if err != nil {
					return QueryResult{}, err
				}
			}

			residual := make([]index.Retrieval, 0, len(results))
			for _, res := range results {
				ref, ok := r.searcher.Document(res.ID)
				if ok && judged.Contains(uint32(ref.Slot())) {
					continue
				}
				residual = append(residual, res)
			}
			out.Returned = len(residual)
			out.NDCG = acc.UpdateRetrievals(residual, gold)
			return out, nil
		})
}

func (r *Runner) judge(judged *roaring.Bitmap, id string) error {
	ref, ok := r.searcher.Document(id)
	if !ok {
		return fmt.Errorf("judged document %q: %w", id, apperrors.ErrUnknownDocument)
	}
	judged.Add(uint32(ref.Slot()))
	return nil
}

// Hybrid fuses the dense ranking of opts.QueryIDs[i] with the sparse
// ranking of query i.
func (r *Runner) Hybrid(ctx context.Context, queries []queryfile.Query, opts Options) (*Result, error) {
	if len(opts.QueryIDs) < len(queries) {
		return nil, fmt.Errorf("%d query embeddings for %d queries: %w",
			len(opts.QueryIDs), len(queries), apperrors.ErrInvalidInput)
	}
	return r.run(ctx, KindHybrid, queries, opts, map[string]any{"query_embeddings": len(opts.QueryIDs)},
		func(ctx context.Context, i int, q queryfile.Query, acc *ndcg.Accumulator) (QueryResult, error) {
			vec, err := r.searcher.QueryVector(q.Text)
			if err != nil {
				return QueryResult{}, err
			}
			results, err := r.searcher.RetrieveVector(ctx, vec, ranker.StrategyHybrid, opts.QueryIDs[i])
			if err != nil {
				return QueryResult{}, err
			}
			return QueryResult{
				QueryID:  opts.QueryIDs[i],
				Returned: len(results),
				NDCG:     acc.UpdateRetrievals(results, q.Gold),
			}, nil
		})
}

type stepFunc func(ctx context.Context, i int, q queryfile.Query, acc *ndcg.Accumulator) (QueryResult, error)

func (r *Runner) run(ctx context.Context, kind string, queries []queryfile.Query, opts Options, params map[string]any, step stepFunc) (*Result, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = ndcg.DefaultLimit
	}
	acc, err := ndcg.NewAccumulator(limit)
	if err != nil {
		return nil, err
	}

	res := &Result{Experiment: kind, Limit: limit, Params: params}
	params["ndcg_limit"] = limit
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		qr, err := step(ctx, i, q, acc)
		if err != nil {
			return nil, fmt.Errorf("query at line %d (%q): %w", q.Line, q.Text, err)
		}
		qr.Line = q.Line
		qr.Query = q.Text
		r.logger.Debug("query evaluated",
			"experiment", kind,
			"line", q.Line,
			"returned", qr.Returned,
			"ndcg@1", qr.NDCG[0],
		)
		res.PerQuery = append(res.PerQuery, qr)
		if opts.OnQuery != nil {
			opts.OnQuery(qr)
		}
	}

	report, err := acc.Finalize()
	if err != nil {
		return nil, err
	}
	res.Report = report
	res.Queries = acc.Queries()
	r.logger.Info("experiment finished",
		"experiment", kind,
		"queries", res.Queries,
		"ndcg@"+strconv.Itoa(limit), report[limit-1].NDCG,
	)
	return res, nil
}

// Observe publishes the report as NDCG gauges labelled by experiment and
// rank.
func Observe(m *metrics.Metrics, res *Result) {
	if m == nil {
		return
	}
	for _, r := range res.Report {
		m.NDCGAtRank.WithLabelValues(res.Experiment, strconv.Itoa(r.Rank)).Set(r.NDCG)
	}
}
