package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/dense"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/feedback"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/popularity"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/resilience"
)

// FromConfig builds the index over cfg.Corpus.Dir, loads the optional
// popularity scores and dense retriever, and returns a ready executor. The
// returned cleanup releases the dense RPC connection, if any, and is never
// nil. m may be nil.
func FromConfig(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Executor, func(), error) {
	noop := func() {}
	if cfg.Corpus.Dir == "" {
		return nil, noop, fmt.Errorf("corpus dir not set: %w", apperrors.ErrInvalidInput)
	}

	engine := indexer.NewEngine(cfg.Corpus)
	if err := engine.LoadDir(ctx, cfg.Corpus.Dir); err != nil {
		return nil, noop, fmt.Errorf("building index: %w", err)
	}
	if m != nil {
		stats := engine.Stats()
		m.IndexedDocuments.Set(float64(stats.Documents))
		m.IndexedTerms.Set(float64(stats.Terms))
	}

	opts := Options{
		PopularityWeight: cfg.Engine.PopularityWeight,
		MissingPolicy:    ranker.MissingPolicy(cfg.Engine.MissingPopularity),
		Lambda:           cfg.Engine.Lambda,
		DenseTimeout:     cfg.Dense.Timeout,
		Reformulator:     feedback.NewReformulator(cfg.Feedback.Alpha, cfg.Feedback.Beta, cfg.Feedback.Gamma),
		Metrics:          m,
	}
	if cfg.Engine.PopularityFile != "" {
		scores, err := popularity.Load(cfg.Engine.PopularityFile)
		if err != nil {
			return nil, noop, err
		}
		if opts.MissingPolicy != ranker.MissingZero {
			docs := engine.Index().Documents()
			ids := make([]string, len(docs))
			for i, d := range docs {
				ids[i] = d.ID
			}
			if missing := scores.Missing(ids); len(missing) > 0 {
				return nil, noop, fmt.Errorf("%d indexed documents lack a popularity score (first: %s): %w",
					len(missing), strings.Join(missing[:min(len(missing), 5)], ", "), apperrors.ErrMissingPopularity)
			}
		}
		opts.Popularity = scores
	}

	cleanup := noop
	switch {
	case cfg.Dense.Mode == "rpc" && cfg.Dense.RPCAddr != "":
		rpc := dense.NewRPCRetriever(cfg.Dense, func(name string, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		})
		opts.Dense = rpc
		cleanup = func() {
			if err := rpc.Close(); err != nil {
				slog.Warn("closing dense rpc client", "error", err)
			}
		}
		slog.Info("dense retriever configured", "mode", "rpc", "addr", cfg.Dense.RPCAddr)
	case cfg.Dense.EmbeddingsDir != "":
		docs, err := dense.LoadDir(cfg.Dense.EmbeddingsDir)
		if err != nil {
			return nil, noop, err
		}
		var queries *dense.Store
		if cfg.Eval.QueryVectorDir != "" {
			if queries, err = dense.LoadDir(cfg.Eval.QueryVectorDir); err != nil {
				return nil, noop, err
			}
		}
		opts.Dense = dense.NewMemoryRetriever(docs, queries)
		slog.Info("dense retriever configured", "mode", "memory", "documents", docs.Len(), "dim", docs.Dim())
	}

	ex, err := New(engine, opts)
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return ex, cleanup, nil
}
