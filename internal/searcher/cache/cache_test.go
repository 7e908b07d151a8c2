package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/redis"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

func sampleResult() *executor.SearchResult {
	return &executor.SearchResult{
		Query:     "cat dog",
		Strategy:  ranker.StrategyCosine,
		Terms:     []string{"cat", "dog"},
		TotalHits: 1,
		Results:   []index.Retrieval{{DocRef: index.DocRef{ID: "d1", Length: 2}, Score: 0.5}},
	}
}

func TestBuildKey(t *testing.T) {
	a := BuildKey(executor.SearchRequest{Query: "Dog  cat"})
	b := BuildKey(executor.SearchRequest{Query: "cat dog", Strategy: ranker.StrategyCosine})
	assert.Equal(t, a, b)
	assert.Contains(t, a, keyPrefix)

	assert.NotEqual(t, a, BuildKey(executor.SearchRequest{Query: "cat dog dog"}))
	assert.NotEqual(t, a, BuildKey(executor.SearchRequest{Query: "cat dog", Limit: 5}))
	assert.NotEqual(t, a, BuildKey(executor.SearchRequest{Query: "cat dog", Strategy: ranker.StrategyProximity}))
	assert.NotEqual(t, a, BuildKey(executor.SearchRequest{Query: "cat dog", QueryID: "Q1"}))
}

func TestGetOrCompute(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	c := New(newMemStore(), time.Minute, m)
	req := executor.SearchRequest{Query: "cat dog"}

	var calls atomic.Int32
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		return sampleResult(), nil
	}

	res, hit, err := c.GetOrCompute(context.Background(), req, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "d1", res.Results[0].ID)

	res, hit, err = c.GetOrCompute(context.Background(), req, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, sampleResult(), res)
	assert.Equal(t, int32(1), calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), executor.SearchRequest{Query: "x"}, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	_, ok := c.Get(context.Background(), executor.SearchRequest{Query: "x"})
	assert.False(t, ok)
}

func TestStoreFailureIsMiss(t *testing.T) {
	store := newMemStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute, nil)
	_, ok := c.Get(context.Background(), executor.SearchRequest{Query: "cat"})
	assert.False(t, ok)
	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	c := New(store, time.Minute, nil)
	c.Set(context.Background(), executor.SearchRequest{Query: "a"}, sampleResult())
	c.Set(context.Background(), executor.SearchRequest{Query: "b"}, sampleResult())
	store.data["other:key"] = "x"

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, store.data, 1)
}
