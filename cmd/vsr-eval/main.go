package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/analytics/collector"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/dense"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/experiment"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/ndcg"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/queryfile"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/store"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
)

func main() {
	var (
		configPath  = flag.String("config", "configs/development.yaml", "path to config file")
		kind        = flag.String("experiment", experiment.KindRanking, "experiment to run: ranking, feedback or hybrid")
		queriesPath = flag.String("queries", "", "query file (overrides eval.queryFile)")
		strategy    = flag.String("strategy", "", "scoring strategy for ranking and feedback runs (overrides engine.strategy)")
		out         = flag.String("out", "", "write the NDCG report here instead of stdout")
		detailPath  = flag.String("detail", "", "write per-query results as JSON to this file")
		metricsFile = flag.String("metrics-file", "", "write NDCG gauges in Prometheus text format to this file")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg, *kind, *queriesPath, *strategy, *out, *detailPath, *metricsFile); err != nil {
		slog.Error("evaluation failed", "experiment", *kind, "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, kind, queriesPath, strategyName, out, detailPath, metricsFile string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if queriesPath == "" {
		queriesPath = cfg.Eval.QueryFile
	}
	if queriesPath == "" {
		return fmt.Errorf("no query file: set eval.queryFile or pass -queries")
	}
	queries, err := queryfile.Load(queriesPath)
	if err != nil {
		return err
	}
	slog.Info("queries loaded", "file", queriesPath, "queries", len(queries))

	if strategyName == "" {
		strategyName = cfg.Engine.Strategy
	}
	strategy, err := ranker.ParseStrategy(strategyName)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	exec, closeDense, err := executor.FromConfig(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer closeDense()

	opts := experiment.Options{
		Limit:    cfg.Eval.NDCGLimit,
		Strategy: strategy,
		TopK:     cfg.Eval.SimulatedFeedback,
		Binary:   cfg.Eval.Binary,
		Control:  cfg.Eval.Control,
	}
	if kind == experiment.KindHybrid {
		if cfg.Eval.QueryVectorDir == "" {
			return fmt.Errorf("hybrid experiment needs eval.queryVectorDir")
		}
		qv, err := dense.LoadDir(cfg.Eval.QueryVectorDir)
		if err != nil {
			return err
		}
		opts.QueryIDs = qv.IDs()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.EvalEvents)
		defer producer.Close()
		bc := collector.NewBatchCollector(producer, 100, time.Second)
		collectCtx, cancelCollect := context.WithCancel(ctx)
		bc.Start(collectCtx)
		defer func() {
			cancelCollect()
			bc.Close()
		}()
		opts.OnQuery = func(q experiment.QueryResult) {
			bc.Track(kind, analytics.EvalEvent{
				Type:       analytics.EventEvaluated,
				Experiment: kind,
				Line:       q.Line,
				Query:      q.Query,
				NDCG:       q.NDCG,
				Timestamp:  time.Now().UTC(),
			})
		}
		slog.Info("eval events publishing enabled", "topic", cfg.Kafka.Topics.EvalEvents)
	}

	res, err := experiment.NewRunner(exec).Run(ctx, kind, queries, opts)
	if err != nil {
		return err
	}

	if err := writeReport(out, res.Report); err != nil {
		return err
	}
	if detailPath != "" {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding per-query results: %w", err)
		}
		if err := os.WriteFile(detailPath, data, 0o644); err != nil {
			return fmt.Errorf("writing per-query results: %w", err)
		}
	}

	experiment.Observe(m, res)
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			return fmt.Errorf("writing metrics file: %w", err)
		}
	}

	reports, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer reports.Close()
	id, err := reports.Save(ctx, store.Run{
		Experiment: res.Experiment,
		Params:     res.Params,
		Queries:    res.Queries,
		Limit:      res.Limit,
		CreatedAt:  time.Now().UTC(),
		Report:     res.Report,
	})
	if err != nil {
		return err
	}
	slog.Info("evaluation saved", "run_id", id, "driver", cfg.Store.Driver)
	return nil
}

func writeReport(path string, report []ndcg.RankNDCG) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating report file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return ndcg.WriteReport(w, report)
}
