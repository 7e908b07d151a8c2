package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/kafka"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []kafka.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) PublishBatch(ctx context.Context, events []kafka.Event) error {
	for _, e := range events {
		_ = p.Publish(ctx, e)
	}
	return nil
}

func TestAggregatorStats(t *testing.T) {
	a := NewAggregator()
	a.Record(SearchEvent{Query: "cat", Strategy: "cosine", TotalHits: 3, LatencyMs: 10})
	a.Record(SearchEvent{Query: "cat", Strategy: "cosine", TotalHits: 3, LatencyMs: 20, CacheHit: true})
	a.Record(SearchEvent{Query: "zebra", Strategy: "proximity", TotalHits: 0, LatencyMs: 30})
	a.Record(FeedbackEvent{Query: "cat", Skipped: []string{"d9"}, LatencyMs: 40})
	a.Record("ignored")

	s := a.Stats()
	assert.Equal(t, int64(3), s.TotalSearches)
	assert.Equal(t, int64(1), s.TotalFeedback)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.CacheMisses)
	assert.Equal(t, int64(1), s.ZeroResultCount)
	assert.Equal(t, int64(1), s.SkippedFeedback)
	assert.Equal(t, map[string]int64{"cosine": 2, "proximity": 1}, s.ByStrategy)
	assert.InDelta(t, 25.0, s.AvgLatencyMs, 1e-9)
	assert.Equal(t, int64(30), s.P50LatencyMs)
	assert.Equal(t, []QueryCount{{Query: "cat", Count: 2}, {Query: "zebra", Count: 1}}, s.TopQueries)
	assert.Equal(t, []QueryCount{{Query: "zebra", Count: 1}}, s.ZeroResultQueries)
}

func TestCollectorPublishesAndAggregates(t *testing.T) {
	pub := &recordingPublisher{}
	agg := NewAggregator()
	c := NewCollector(pub, agg, 16)
	c.Start(context.Background())

	c.Track(SearchEvent{Type: EventSearch, Query: "cat", TotalHits: 1, Timestamp: time.Now()})
	c.Track(FeedbackEvent{Type: EventFeedback, Query: "cat"})
	c.Close()

	require.Len(t, pub.events, 2)
	assert.Equal(t, "cat", pub.events[0].Key)
	assert.Equal(t, int64(1), agg.Stats().TotalSearches)
	assert.Equal(t, int64(1), agg.Stats().TotalFeedback)
}

func TestCollectorWithoutPublisher(t *testing.T) {
	agg := NewAggregator()
	c := NewCollector(nil, agg, 1)
	c.Start(context.Background())
	c.Track(SearchEvent{Query: "a"})
	c.Track(SearchEvent{Query: "b"})
	c.Close()
	assert.Equal(t, int64(2), agg.Stats().TotalSearches)
}

func TestHandlerStats(t *testing.T) {
	agg := NewAggregator()
	agg.Record(SearchEvent{Query: "cat", Strategy: "cosine", TotalHits: 1})
	rec := httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got AggregatedStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(1), got.TotalSearches)

	agg.Record(SearchEvent{Query: "dog", Strategy: "cosine", TotalHits: 1})
	rec = httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=1", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.TopQueries, 1)

	rec = httptest.NewRecorder()
	NewHandler(agg).Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics?top=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter(t *testing.T) {
	search, feedback := &recordingPublisher{}, &recordingPublisher{}
	r := Router{Search: search, Feedback: feedback}

	require.NoError(t, r.Publish(context.Background(), kafka.Event{Key: "q", Value: FeedbackEvent{Query: "q"}}))
	require.NoError(t, r.PublishBatch(context.Background(), []kafka.Event{
		{Key: "a", Value: SearchEvent{Query: "a"}},
		{Key: "b", Value: FeedbackEvent{Query: "b"}},
		{Key: "c", Value: SearchEvent{Query: "c"}},
	}))
	assert.Len(t, search.events, 2)
	assert.Len(t, feedback.events, 2)

	only := Router{Search: search}
	require.NoError(t, only.Publish(context.Background(), kafka.Event{Value: FeedbackEvent{}}))
	assert.Len(t, search.events, 3)
}
