package dense

import (
	"context"
	"errors"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/resilience"
)

func fixtureStores(t *testing.T) (*Store, *Store) {
	t.Helper()
	docs := NewStore()
	require.NoError(t, docs.Add(NewEmbedding("d1", []float64{1, 0})))
	require.NoError(t, docs.Add(NewEmbedding("d2", []float64{1, 1})))
	require.NoError(t, docs.Add(NewEmbedding("d3", []float64{0, 1})))
	queries := NewStore()
	require.NoError(t, queries.Add(NewEmbedding("Q001", []float64{2, 0})))
	return docs, queries
}

func TestMemoryRetrieverRanksByCosine(t *testing.T) {
	docs, queries := fixtureStores(t)
	r := NewMemoryRetriever(docs, queries)

	out, err := r.Retrieve(context.Background(), Query{ID: "Q001"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2", "d3"}, index.IDs(out))
	assert.InDelta(t, 1, out[0].Score, 1e-12)
	assert.InDelta(t, 1/math.Sqrt2, out[1].Score, 1e-12)
	assert.Equal(t, 0.0, out[2].Score)

	top, err := r.Retrieve(context.Background(), Query{Embedding: []float64{0, 3}}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"d3"}, index.IDs(top))
}

func TestMemoryRetrieverErrors(t *testing.T) {
	docs, queries := fixtureStores(t)
	r := NewMemoryRetriever(docs, queries)

	_, err := r.Retrieve(context.Background(), Query{ID: "Q404"}, 0)
	assert.ErrorIs(t, err, apperrors.ErrUnknownDocument)

	_, err = r.Retrieve(context.Background(), Query{}, 0)
	assert.ErrorIs(t, err, apperrors.ErrEmptyQuery)

	_, err = r.Retrieve(context.Background(), Query{Embedding: []float64{1, 2, 3}}, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestStoreRejectsMismatchedDimension(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Add(NewEmbedding("a", []float64{1, 2})))
	assert.ErrorIs(t, s.Add(NewEmbedding("b", []float64{1})), apperrors.ErrMalformedInput)
	assert.ErrorIs(t, s.Add(NewEmbedding("a", []float64{3, 4})), apperrors.ErrMalformedInput)
	assert.ErrorIs(t, s.Add(NewEmbedding("c", nil)), apperrors.ErrMalformedInput)
	assert.Equal(t, []string{"a"}, s.IDs())
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "RN-00002"), []byte("0.5 0.25\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "RN-00001"), []byte("1.000000 -2.000000"), 0o644))

	s, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"RN-00001", "RN-00002"}, s.IDs())
	assert.Equal(t, 2, s.Dim())
	e, ok := s.Get("RN-00001")
	require.True(t, ok)
	assert.Equal(t, []float64{1, -2}, e.Vector)
	assert.InDelta(t, math.Sqrt(5), e.Norm, 1e-12)
}

func TestParseVectorRejectsGarbage(t *testing.T) {
	_, err := ParseVector(strings.NewReader("1.0 abc"))
	assert.ErrorIs(t, err, apperrors.ErrMalformedInput)
}

func TestRPCRetrieverRoundTrip(t *testing.T) {
	docs, queries := fixtureStores(t)
	srv := grpc.NewServer()
	Register(srv, NewMemoryRetriever(docs, queries))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.ServeListener(ln)
	t.Cleanup(srv.Stop)

	r := NewRPCRetriever(config.DenseConfig{RPCAddr: ln.Addr().String(), Timeout: 2 * time.Second}, nil)
	defer r.Close()

	out, err := r.Retrieve(context.Background(), Query{ID: "Q001"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1", "d2"}, index.IDs(out))

	_, err = r.Retrieve(context.Background(), Query{ID: "Q404"}, 2)
	var remote *grpc.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 404, remote.Code)
	assert.Equal(t, resilience.StateClosed, r.State(), "client faults do not trip the breaker")
}

func TestRPCRetrieverUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	r := NewRPCRetriever(config.DenseConfig{RPCAddr: addr, Timeout: 200 * time.Millisecond}, nil)
	_, err = r.Retrieve(context.Background(), Query{ID: "Q001"}, 1)
	assert.Error(t, err)
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(resilience.ErrCircuitOpen))
	assert.False(t, retryable(&grpc.RemoteError{Code: 400}))
	assert.True(t, retryable(&grpc.RemoteError{Code: 503}))
	assert.True(t, retryable(errors.New("connection reset")))
}
