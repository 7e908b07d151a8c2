package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/dense"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/logger"
)

// vsr-dense serves precomputed embeddings as DenseService.Retrieve for
// retrieval services running with dense.mode=rpc.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	addr := flag.String("addr", ":9092", "listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if cfg.Dense.EmbeddingsDir == "" {
		slog.Error("dense.embeddingsDir is not set")
		os.Exit(1)
	}
	docs, err := dense.LoadDir(cfg.Dense.EmbeddingsDir)
	if err != nil {
		slog.Error("failed to load document embeddings", "error", err)
		os.Exit(1)
	}
	var queries *dense.Store
	if cfg.Eval.QueryVectorDir != "" {
		if queries, err = dense.LoadDir(cfg.Eval.QueryVectorDir); err != nil {
			slog.Error("failed to load query embeddings", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("embeddings loaded", "documents", docs.Len(), "dim", docs.Dim())

	srv := grpc.NewServer()
	dense.Register(srv, dense.NewMemoryRetriever(docs, queries))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		srv.Stop()
	}()

	if err := srv.Serve(*addr); err != nil {
		slog.Error("dense server error", "error", err)
		os.Exit(1)
	}
	slog.Info("dense service stopped")
}
