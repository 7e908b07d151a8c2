// Package executor runs retrievals against a built engine with the
// configured scoring strategy, and applies relevance feedback.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/dense"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/vector"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/tracing"
)

// SearchRequest is one retrieval. QueryID names the dense query embedding
// used by the hybrid strategy.
type SearchRequest struct {
	Query    string
	Strategy ranker.Strategy
	Limit    int
	QueryID  string
}

type SearchResult struct {
	Query     string            `json:"query"`
	Strategy  ranker.Strategy   `json:"strategy"`
	Terms     []string          `json:"terms"`
	TotalHits int               `json:"total_hits"`
	Results   []index.Retrieval `json:"results"`
}

// Options configures the optional strategies. Zero values leave a strategy
// unavailable: popularity needs Popularity, hybrid needs Dense.
type Options struct {
	Popularity       map[string]float64
	PopularityWeight float64
	MissingPolicy    ranker.MissingPolicy
	Lambda           float64
	Dense            dense.Retriever
	DenseTimeout     time.Duration
	Reformulator     *feedback.Reformulator
	Metrics          *metrics.Metrics
}

type Executor struct {
	engine       *indexer.Engine
	popularity   *ranker.PopularityBiased
	proximity    *ranker.ProximityReranker
	hybrid       *ranker.HybridFuser
	dense        dense.Retriever
	denseTimeout time.Duration
	reformulator *feedback.Reformulator
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

func New(engine *indexer.Engine, opts Options) (*Executor, error) {
	hybrid, err := ranker.NewHybridFuser(opts.Lambda)
	if err != nil {
		return nil, err
	}
	hybrid.Resolve = engine.Index().Document
	e := &Executor{
		engine:       engine,
		proximity:    ranker.NewProximityReranker(engine),
		hybrid:       hybrid,
		dense:        opts.Dense,
		denseTimeout: opts.DenseTimeout,
		reformulator: opts.Reformulator,
		metrics:      opts.Metrics,
		logger:       slog.Default().With("component", "query-executor"),
	}
	if opts.Popularity != nil {
		e.popularity = ranker.NewPopularityBiased(opts.Popularity, opts.PopularityWeight, opts.MissingPolicy)
	}
	if e.reformulator == nil {
		e.reformulator = feedback.NewReformulator(8, 16, 4)
	}
	return e, nil
}

// Execute parses req.Query and retrieves with req.Strategy.
func (e *Executor) Execute(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	plan, err := parser.Parse(e.engine.Tokenizer(), req.Query)
	if err != nil {
		e.observe(req.Strategy, "error", 0)
		return nil, err
	}
	return e.executePlan(ctx, plan, req, nil)
}

// executePlan ranks plan and keeps the top req.Limit. Documents for which
// skip reports true are dropped before the cut and do not count as hits.
func (e *Executor) executePlan(ctx context.Context, plan *parser.QueryPlan, req SearchRequest, skip func(id string) bool) (*SearchResult, error) {
	strategy := req.Strategy
	if strategy == "" {
		strategy = ranker.StrategyCosine
	}
	all, err := e.RetrieveVector(ctx, plan.Vector, strategy, req.QueryID)
	if err != nil {
		e.observe(strategy, "error", 0)
		return nil, err
	}
	if skip != nil {
		all = slices.DeleteFunc(all, func(r index.Retrieval) bool { return skip(r.ID) })
	}
	results := merger.TopK(all, req.Limit)
	outcome := "ok"
	if len(results) == 0 {
		outcome = "empty"
	}
	e.observe(strategy, outcome, len(results))
	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"strategy", strategy,
		"terms", plan.Terms,
		"candidates", len(all),
		"results", len(results),
	)
	return &SearchResult{
		Query:     plan.RawQuery,
		Strategy:  strategy,
		Terms:     plan.Terms,
		TotalHits: len(all),
		Results:   results,
	}, nil
}

// RetrieveVector returns the full ranking of q under strategy. queryID is
// only consulted by the hybrid strategy.
func (e *Executor) RetrieveVector(ctx context.Context, q vector.TermVector, strategy ranker.Strategy, queryID string) ([]index.Retrieval, error) {
	x := e.engine.Index()
	switch strategy {
	case ranker.StrategyCosine, "":
		var out []index.Retrieval
		err := tracing.Trace(ctx, "sparse-retrieve", func(context.Context) error {
			var err error
			out, err = x.Retrieve(q, ranker.Cosine{})
			return err
		})
		return out, err

	case ranker.StrategyPopularity:
		if e.popularity == nil {
			return nil, fmt.Errorf("popularity scores not loaded: %w", apperrors.ErrInvalidInput)
		}
		var out []index.Retrieval
		err := tracing.Trace(ctx, "sparse-retrieve", func(context.Context) error {
			var err error
			out, err = x.Retrieve(q, e.popularity)
			return err
		})
		return out, err

	case ranker.StrategyProximity:
		var base, out []index.Retrieval
		err := tracing.Trace(ctx, "sparse-retrieve", func(context.Context) error {
			var err error
			base, err = x.Retrieve(q, ranker.Cosine{})
			return err
		})
		if err != nil {
			return nil, err
		}
		err = tracing.Trace(ctx, "proximity-rerank", func(context.Context) error {
			var err error
			out, err = e.proximity.Rerank(q, base)
			return err
		})
		return out, err

	case ranker.StrategyHybrid:
		return e.retrieveHybrid(ctx, q, queryID)
	}
	return nil, fmt.Errorf("strategy %q: %w", strategy, apperrors.ErrInvalidInput)
}

// retrieveHybrid runs the dense and sparse retrievals concurrently and
// fuses them.
func (e *Executor) retrieveHybrid(ctx context.Context, q vector.TermVector, queryID string) ([]index.Retrieval, error) {
	if e.dense == nil {
		return nil, fmt.Errorf("no dense retriever configured: %w", apperrors.ErrInvalidInput)
	}
	if queryID == "" {
		return nil, fmt.Errorf("hybrid retrieval needs a query id: %w", apperrors.ErrInvalidInput)
	}

	var denseResults, sparseResults []index.Retrieval
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tracing.Trace(gctx, "dense-retrieve", func(ctx context.Context) error {
			return resilience.WithTimeout(ctx, e.denseTimeout, "dense-retrieve", func(ctx context.Context) error {
				var err error
				denseResults, err = e.dense.Retrieve(ctx, dense.Query{ID: queryID}, 0)
				return err
			})
		})
	})
	g.Go(func() error {
		return tracing.Trace(gctx, "sparse-retrieve", func(context.Context) error {
			var err error
			sparseResults, err = e.engine.Index().Retrieve(q, ranker.Cosine{})
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var fused []index.Retrieval
	tracing.Trace(ctx, "hybrid-fuse", func(context.Context) error {
		fused = e.hybrid.Fuse(denseResults, sparseResults)
		return nil
	})
	return fused, nil
}

func (e *Executor) observe(strategy ranker.Strategy, outcome string, n int) {
	if e.metrics == nil {
		return
	}
	if strategy == "" {
		strategy = ranker.StrategyCosine
	}
	e.metrics.RetrievalsTotal.WithLabelValues(string(strategy), outcome).Inc()
	if outcome != "error" {
		e.metrics.RetrievalResults.WithLabelValues(string(strategy)).Observe(float64(n))
	}
}

// QueryVector extracts the raw term-frequency vector of a query text.
func (e *Executor) QueryVector(text string) (vector.TermVector, error) {
	return e.engine.QueryVector(text)
}

func (e *Executor) Document(id string) (index.DocRef, bool) {
	return e.engine.Index().Document(id)
}

// Stats reports index size.
func (e *Executor) Stats() indexer.Stats {
	return e.engine.Stats()
}
