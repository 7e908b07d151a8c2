package dense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/resilience"
)

// RPCRetriever calls DenseService.Retrieve on a remote server. Calls are
// bounded by the configured timeout, retried with backoff and guarded by a
// circuit breaker. A broken connection is redialled on the next attempt.
type RPCRetriever struct {
	addr    string
	timeout time.Duration
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger

	mu     sync.Mutex
	client *grpc.Client
}

// NewRPCRetriever prepares a client for cfg.RPCAddr. No connection is made
// until the first Retrieve. onState, if non-nil, observes breaker
// transitions.
func NewRPCRetriever(cfg config.DenseConfig, onState func(name string, to resilience.State)) *RPCRetriever {
	r := &RPCRetriever{
		addr:    cfg.RPCAddr,
		timeout: cfg.Timeout,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 50 * time.Millisecond,
			MaxDelay:     time.Second,
			Retryable:    retryable,
		},
		breaker: resilience.NewCircuitBreaker("dense-rpc", resilience.CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     15 * time.Second,
			OnStateChange:    onState,
		}),
		logger: slog.Default().With("component", "dense-rpc", "addr", cfg.RPCAddr),
	}
	r.breaker.IsFailure = retryable
	return r
}

func (r *RPCRetriever) Retrieve(ctx context.Context, q Query, limit int) ([]index.Retrieval, error) {
	req := proto.DenseRetrieveRequest{QueryID: q.ID, Embedding: q.Embedding, Limit: int32(limit)}
	var resp proto.DenseRetrieveResponse
	err := resilience.Retry(ctx, "dense-retrieve", r.retry, func() error {
		return r.breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, r.timeout, "dense-retrieve", func(ctx context.Context) error {
				return r.call(ctx, &req, &resp)
			})
		})
	})
	if err != nil {
		return nil, fmt.Errorf("dense retrieval: %w", err)
	}
	out := make([]index.Retrieval, len(resp.Results))
	for i, d := range resp.Results {
		out[i] = index.Retrieval{DocRef: index.DocRef{ID: d.DocID}, Score: d.Score}
	}
	return out, nil
}

func (r *RPCRetriever) call(ctx context.Context, req *proto.DenseRetrieveRequest, resp *proto.DenseRetrieveResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		c, err := grpc.DialTimeout(r.addr, r.timeout)
		if err != nil {
			return err
		}
		r.client = c
	}
	err := r.client.Call(ctx, proto.MethodDenseRetrieve, req, resp)
	var remote *grpc.RemoteError
	if err != nil && !errors.As(err, &remote) {
		r.logger.Warn("dense rpc transport error, dropping connection", "error", err)
		r.client.Close()
		r.client = nil
	}
	return err
}

// State reports the circuit breaker state.
func (r *RPCRetriever) State() resilience.State {
	return r.breaker.GetState()
}

func (r *RPCRetriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// retryable reports whether err is worth retrying: transport failures and
// server-side faults are, rejected requests and an open circuit are not.
func retryable(err error) bool {
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var remote *grpc.RemoteError
	if errors.As(err, &remote) {
		return remote.Temporary()
	}
	return true
}

// Register exposes retriever as DenseService.Retrieve on srv.
func Register(srv *grpc.Server, retriever Retriever) {
	srv.Register(proto.MethodDenseRetrieve, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var req proto.DenseRetrieveRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding dense request: %v: %w", err, apperrors.ErrMalformedInput)
		}
		results, err := retriever.Retrieve(ctx, Query{ID: req.QueryID, Embedding: req.Embedding}, int(req.Limit))
		if err != nil {
			return nil, err
		}
		resp := proto.DenseRetrieveResponse{Results: make([]proto.ScoredDocument, len(results))}
		for i, r := range results {
			resp.Results[i] = proto.ScoredDocument{DocID: r.ID, Score: r.Score}
		}
		return resp, nil
	})
}
