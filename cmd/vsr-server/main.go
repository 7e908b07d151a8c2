package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting retrieval service", "port", cfg.Server.Port, "rpc_port", cfg.Server.RPCPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics, err := metrics.StartServer(cfg.Metrics.Port, nil)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer shutdownMetrics(context.Background())
	}

	exec, closeDense, err := executor.FromConfig(ctx, cfg, m)
	if err != nil {
		slog.Error("failed to build retrieval engine", "error", err)
		os.Exit(1)
	}
	defer closeDense()

	strategy, err := ranker.ParseStrategy(cfg.Engine.Strategy)
	if err != nil {
		slog.Error("invalid default strategy", "error", err)
		os.Exit(1)
	}

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m)
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	aggregator := analytics.NewAggregator()
	var publisher kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		searchProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer searchProducer.Close()
		feedbackProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FeedbackEvents)
		defer feedbackProducer.Close()
		publisher = analytics.Router{Search: searchProducer, Feedback: feedbackProducer}
		slog.Info("analytics publishing enabled",
			"search_topic", cfg.Kafka.Topics.SearchEvents,
			"feedback_topic", cfg.Kafka.Topics.FeedbackEvents,
		)
	}
	collector := analytics.NewCollector(publisher, aggregator, 10000)
	collector.Start(ctx)
	defer collector.Close()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		stats := exec.Stats()
		if stats.Documents > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d documents, %d terms", stats.Documents, stats.Terms)}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "empty index"}
	})
	if redisClient != nil {
		checker.Register("redis", health.Ping(redisClient.Ping, true))
	} else {
		checker.Register("redis", func(context.Context) health.ComponentHealth {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		})
	}

	h := handler.New(exec, queryCache, collector, m, handler.Options{
		DefaultStrategy: strategy,
		DefaultLimit:    cfg.Engine.DefaultLimit,
		MaxResults:      cfg.Engine.MaxResults,
	})
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	h.Routes(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		defer limiter.Close()
		chain = middleware.RateLimit(limiter)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	rpcServer := grpc.NewServer()
	h.RegisterRPC(rpcServer)
	if cfg.Server.RPCPort > 0 {
		go func() {
			if err := rpcServer.Serve(fmt.Sprintf(":%d", cfg.Server.RPCPort)); err != nil {
				slog.Error("rpc server error", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		rpcServer.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("retrieval service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("retrieval service stopped")
}
