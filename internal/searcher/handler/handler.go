// Package handler exposes the executor over HTTP and over the RPC server.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/tracing"
)

// maxFeedbackBody caps POST /api/v1/feedback bodies.
const maxFeedbackBody = 1 << 20

type SearchExecutor interface {
	Execute(ctx context.Context, req executor.SearchRequest) (*executor.SearchResult, error)
	Feedback(ctx context.Context, req executor.FeedbackRequest) (*executor.FeedbackResult, error)
	Stats() indexer.Stats
}

// Options holds the request defaults. Zero values fall back to cosine, 10
// and 100.
type Options struct {
	DefaultStrategy ranker.Strategy
	DefaultLimit    int
	MaxResults      int
}

type Handler struct {
	executor  SearchExecutor
	cache     *cache.QueryCache
	collector *analytics.Collector
	metrics   *metrics.Metrics
	opts      Options
	logger    *slog.Logger
}

// New returns a handler. queryCache, collector and m may be nil.
func New(exec SearchExecutor, queryCache *cache.QueryCache, collector *analytics.Collector, m *metrics.Metrics, opts Options) *Handler {
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = ranker.StrategyCosine
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 100
	}
	return &Handler{
		executor:  exec,
		cache:     queryCache,
		collector: collector,
		metrics:   m,
		opts:      opts,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/feedback", h.Feedback)
	mux.HandleFunc("GET /api/v1/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search serves GET /api/v1/search?q=&strategy=&limit=&query_id=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	query := params.Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	strategy, err := h.strategy(params.Get("strategy"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	limit, err := h.limit(params.Get("limit"))
	if err != nil {
		h.writeErr(w, err)
		return
	}

	result, err := h.search(r.Context(), executor.SearchRequest{
		Query:    query,
		Strategy: strategy,
		Limit:    limit,
		QueryID:  params.Get("query_id"),
	})
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// search runs req through the cache, records latency and tracks the event.
func (h *Handler) search(ctx context.Context, req executor.SearchRequest) (*executor.SearchResult, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
	span.SetAttr("strategy", string(req.Strategy))
	defer span.Finish()
	log := logger.FromContext(ctx)

	var (
		result   *executor.SearchResult
		err      error
		cacheHit bool
	)
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(ctx, req, func() (*executor.SearchResult, error) {
			return h.executor.Execute(ctx, req)
		})
	} else {
		result, err = h.executor.Execute(ctx, req)
	}
	if err != nil {
		span.SetAttr("error", err.Error())
		log.Warn("search failed", "query", req.Query, "strategy", req.Strategy, "error", err)
		return nil, err
	}

	elapsed := time.Since(start)
	if h.metrics != nil {
		status := "miss"
		if cacheHit {
			status = "hit"
		} else if h.cache == nil {
			status = "disabled"
		}
		h.metrics.RetrievalLatency.WithLabelValues(string(req.Strategy), status).Observe(elapsed.Seconds())
	}
	log.Info("search completed",
		"query", req.Query,
		"strategy", req.Strategy,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_ms", elapsed.Milliseconds(),
	)
	if h.collector != nil {
		eventType := analytics.EventSearch
		if result.TotalHits == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Query:     req.Query,
			Strategy:  string(req.Strategy),
			Terms:     result.Terms,
			TotalHits: result.TotalHits,
			Returned:  len(result.Results),
			LatencyMs: elapsed.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}
	return result, nil
}

// Feedback serves POST /api/v1/feedback with a JSON FeedbackRequest body.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req executor.FeedbackRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFeedbackBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid feedback body: %v", err))
		return
	}
	strategy, err := h.strategy(string(req.Strategy))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	req.Strategy = strategy
	if req.Limit <= 0 {
		req.Limit = h.opts.DefaultLimit
	} else if req.Limit > h.opts.MaxResults {
		req.Limit = h.opts.MaxResults
	}

	ctx, span := tracing.StartSpan(ctx, "feedback", middleware.GetRequestID(ctx))
	defer span.Finish()
	result, err := h.executor.Feedback(ctx, req)
	if err != nil {
		span.SetAttr("error", err.Error())
		logger.FromContext(ctx).Warn("feedback failed", "query", req.Query, "error", err)
		h.writeErr(w, err)
		return
	}

	if h.collector != nil {
		var relevant, irrelevant int
		for _, rating := range req.Ratings {
			if rating >= 0 {
				relevant++
			} else {
				irrelevant++
			}
		}
		h.collector.Track(analytics.FeedbackEvent{
			Type:       analytics.EventFeedback,
			Query:      req.Query,
			Strategy:   string(req.Strategy),
			Relevant:   relevant,
			Irrelevant: irrelevant,
			Skipped:    result.Skipped,
			Returned:   len(result.Results),
			LatencyMs:  time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
			RequestID:  middleware.GetRequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	s := h.executor.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":     s.Documents,
		"terms":         s.Terms,
		"tokens":        s.Tokens,
		"build_time_ms": s.BuildTime.Milliseconds(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

// RegisterRPC exposes retrieval and index stats on srv.
func (h *Handler) RegisterRPC(srv *grpc.Server) {
	srv.Register(proto.MethodRetrieve, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.RetrieveRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding retrieve request: %v: %w", err, apperrors.ErrMalformedInput)
		}
		strategy, err := h.strategy(req.Strategy)
		if err != nil {
			return nil, err
		}
		limit := int(req.Limit)
		if limit <= 0 {
			limit = h.opts.DefaultLimit
		} else if limit > h.opts.MaxResults {
			limit = h.opts.MaxResults
		}

		start := time.Now()
		result, err := h.search(ctx, executor.SearchRequest{
			Query:    req.Query,
			Strategy: strategy,
			Limit:    limit,
			QueryID:  req.QueryID,
		})
		if err != nil {
			return nil, err
		}
		resp := proto.RetrieveResponse{
			Query:     result.Query,
			Strategy:  string(result.Strategy),
			TotalHits: int32(result.TotalHits),
			Results:   make([]proto.ScoredDocument, len(result.Results)),
			LatencyMs: time.Since(start).Milliseconds(),
		}
		for i, r := range result.Results {
			resp.Results[i] = proto.ScoredDocument{
				DocID:     r.ID,
				Score:     r.Score,
				Cosine:    r.Cosine,
				Proximity: r.Proximity,
			}
		}
		return resp, nil
	})
	srv.Register(proto.MethodStats, func(ctx context.Context, _ json.RawMessage) (any, error) {
		s := h.executor.Stats()
		return proto.StatsResponse{Documents: s.Documents, Terms: s.Terms}, nil
	})
}

func (h *Handler) strategy(raw string) (ranker.Strategy, error) {
	if raw == "" {
		return h.opts.DefaultStrategy, nil
	}
	return ranker.ParseStrategy(raw)
}

func (h *Handler) limit(raw string) (int, error) {
	if raw == "" {
		return h.opts.DefaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer: %w", apperrors.ErrInvalidInput)
	}
	return min(n, h.opts.MaxResults), nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeErr maps err to a status code. Internal failures are not echoed to
// the client.
func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError && !errors.Is(err, apperrors.ErrMissingPopularity) {
		msg = "search failed"
	}
	h.writeError(w, status, msg)
}
