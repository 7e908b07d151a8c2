package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/proto"
)

func newTestHandler(t *testing.T) (*Handler, *analytics.Aggregator) {
	t.Helper()
	eng := indexer.NewEngine(config.CorpusConfig{})
	require.NoError(t, eng.Build(context.Background(), []indexer.Document{
		{ID: "a.txt", Text: "cat cat dog"},
		{ID: "b.txt", Text: "dog dog dog"},
		{ID: "c.txt", Text: "fish"},
	}))
	ex, err := executor.New(eng, executor.Options{Lambda: 0.5})
	require.NoError(t, err)

	agg := analytics.NewAggregator()
	return New(ex, nil, analytics.NewCollector(nil, agg, 8), nil, Options{DefaultLimit: 5, MaxResults: 2}), agg
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.Routes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSearch(t *testing.T) {
	h, agg := newTestHandler(t)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, "a.txt", res.Results[0].ID)
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
}

func TestSearchLimitClamped(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=cat+dog+fish&limit=50", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var res executor.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Results, 2)
	assert.Equal(t, 3, res.TotalHits)
}

func TestSearchErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	tests := []struct {
		name   string
		url    string
		status int
	}{
		{"missing q", "/api/v1/search", http.StatusBadRequest},
		{"bad limit", "/api/v1/search?q=cat&limit=-1", http.StatusBadRequest},
		{"bad strategy", "/api/v1/search?q=cat&strategy=bm25", http.StatusBadRequest},
		{"stopwords only", "/api/v1/search?q=the", http.StatusBadRequest},
		{"popularity not loaded", "/api/v1/search?q=cat&strategy=popularity", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, httptest.NewRequest(http.MethodGet, tt.url, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
		})
	}
}

func TestFeedback(t *testing.T) {
	h, agg := newTestHandler(t)
	body := `{"query":"dog","ratings":{"a.txt":1,"b.txt":-1}}`
	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res executor.FeedbackResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Greater(t, res.RevisedQuery["cat"], 0.0)
	assert.Empty(t, res.Results, "rated documents are not ranked again")
	assert.Equal(t, int64(1), agg.Stats().TotalFeedback)
}

func TestFeedbackErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	for body, status := range map[string]int{
		`not json`:                                  http.StatusBadRequest,
		`{"query":"dog"}`:                           http.StatusBadRequest,
		`{"query":"dog","ratings":{"zzz":1}}`:       http.StatusNotFound,
		`{"query":"dog","ratings":{},"extra":true}`: http.StatusBadRequest,
	} {
		rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/feedback", strings.NewReader(body)))
		assert.Equal(t, status, rec.Code, body)
	}
}

func TestCacheEndpointsDisabled(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexStats(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3.0, got["documents"])
	assert.Equal(t, 3.0, got["terms"])
}

func TestRPCRetrieve(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := grpc.NewServer()
	h.RegisterRPC(srv)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.ServeListener(ln)
	defer srv.Stop()

	client, err := grpc.DialTimeout(ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer client.Close()

	var resp proto.RetrieveResponse
	require.NoError(t, client.Call(context.Background(), proto.MethodRetrieve, proto.RetrieveRequest{Query: "dog"}, &resp))
	assert.Equal(t, "cosine", resp.Strategy)
	assert.Equal(t, int32(2), resp.TotalHits)
	assert.Equal(t, "b.txt", resp.Results[0].DocID)

	var stats proto.StatsResponse
	require.NoError(t, client.Call(context.Background(), proto.MethodStats, struct{}{}, &stats))
	assert.Equal(t, 3, stats.Documents)

	err = client.Call(context.Background(), proto.MethodRetrieve, proto.RetrieveRequest{Query: "the"}, &resp)
	var remote *grpc.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusBadRequest, remote.Code)
}
