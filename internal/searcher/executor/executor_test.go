package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/dense"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/metrics"
)

func testEngine(t *testing.T) *indexer.Engine {
	t.Helper()
	e := indexer.NewEngine(config.CorpusConfig{})
	require.NoError(t, e.Build(context.Background(), []indexer.Document{
		{ID: "near", Text: "cat dog fish"},
		{ID: "far", Text: "cat bird bird bird bird dog"},
		{ID: "other", Text: "fish bird"},
	}))
	return e
}

type staticDense []index.Retrieval

func (s staticDense) Retrieve(ctx context.Context, q dense.Query, limit int) ([]index.Retrieval, error) {
	if q.ID != "Q1" {
		return nil, apperrors.ErrUnknownDocument
	}
	return s, nil
}

func TestExecuteCosine(t *testing.T) {
	ex, err := New(testEngine(t), Options{Lambda: 0.5})
	require.NoError(t, err)

	res, err := ex.Execute(context.Background(), SearchRequest{Query: "cat"})
	require.NoError(t, err)
	assert.Equal(t, ranker.StrategyCosine, res.Strategy)
	assert.Equal(t, []string{"cat"}, res.Terms)
	assert.Equal(t, 2, res.TotalHits)
	assert.ElementsMatch(t, []string{"near", "far"}, index.IDs(res.Results))
	assert.Equal(t, "near", res.Results[0].ID)
}

func TestExecuteLimit(t *testing.T) {
	ex, err := New(testEngine(t), Options{})
	require.NoError(t, err)
	res, err := ex.Execute(context.Background(), SearchRequest{Query: "cat fish bird", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Results, 1)
	assert.Equal(t, 3, res.TotalHits)
}

func TestExecuteProximity(t *testing.T) {
	ex, err := New(testEngine(t), Options{})
	require.NoError(t, err)
	res, err := ex.Execute(context.Background(), SearchRequest{Query: "cat dog", Strategy: ranker.StrategyProximity})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "near", res.Results[0].ID)
	assert.InDelta(t, 0.001, res.Results[0].Proximity, 1e-12)
	assert.InDelta(t, 0.005, res.Results[1].Proximity, 1e-12)
	assert.Greater(t, res.Results[0].Score, res.Results[1].Score)
}

func TestExecutePopularity(t *testing.T) {
	eng := testEngine(t)
	ex, err := New(eng, Options{
		Popularity:       map[string]float64{"near": 0, "far": 1, "other": 0},
		PopularityWeight: 10,
	})
	require.NoError(t, err)
	res, err := ex.Execute(context.Background(), SearchRequest{Query: "cat", Strategy: ranker.StrategyPopularity})
	require.NoError(t, err)
	assert.Equal(t, "far", res.Results[0].ID)

	noPop, err := New(eng, Options{})
	require.NoError(t, err)
	_, err = noPop.Execute(context.Background(), SearchRequest{Query: "cat", Strategy: ranker.StrategyPopularity})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestExecuteHybrid(t *testing.T) {
	ex, err := New(testEngine(t), Options{
		Lambda: 0.5,
		Dense: staticDense{
			{DocRef: index.DocRef{ID: "other"}, Score: 0.9},
			{DocRef: index.DocRef{ID: "far"}, Score: 0.1},
		},
	})
	require.NoError(t, err)

	res, err := ex.Execute(context.Background(), SearchRequest{Query: "bird", Strategy: ranker.StrategyHybrid, QueryID: "Q1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"other", "far"}, index.IDs(res.Results))
	for _, r := range res.Results {
		ref, ok := ex.engine.Index().Document(r.ID)
		require.True(t, ok)
		assert.Equal(t, ref.Length, r.Length, "length of %s is the tf-idf norm", r.ID)
	}

	_, err = ex.Execute(context.Background(), SearchRequest{Query: "bird", Strategy: ranker.StrategyHybrid})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = ex.Execute(context.Background(), SearchRequest{Query: "bird", Strategy: ranker.StrategyHybrid, QueryID: "nope"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownDocument)
}

func TestNewRejectsBadLambda(t *testing.T) {
	_, err := New(testEngine(t), Options{Lambda: 2})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestExecuteEmptyQuery(t *testing.T) {
	ex, err := New(testEngine(t), Options{})
	require.NoError(t, err)
	_, err = ex.Execute(context.Background(), SearchRequest{Query: "the"})
	assert.ErrorIs(t, err, apperrors.ErrEmptyQuery)

	res, err := ex.Execute(context.Background(), SearchRequest{Query: "zebra"})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestFeedbackRevisesAndRecordsMetrics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	ex, err := New(testEngine(t), Options{Metrics: m})
	require.NoError(t, err)

	res, err := ex.Feedback(context.Background(), FeedbackRequest{
		Query:   "cat",
		Ratings: map[string]float64{"near": 1, "far": -1},
	})
	require.NoError(t, err)
	assert.Greater(t, res.RevisedQuery["fish"], 0.0)
	assert.Less(t, res.RevisedQuery["bird"], 0.0)
	assert.NotContains(t, index.IDs(res.Results), "near")
	assert.NotContains(t, index.IDs(res.Results), "far")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackRevisions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetrievalsTotal.WithLabelValues("cosine", "ok")))
}

func TestFeedbackDropsRatedDocuments(t *testing.T) {
	ex, err := New(testEngine(t), Options{})
	require.NoError(t, err)

	res, err := ex.Feedback(context.Background(), FeedbackRequest{
		Query:   "cat",
		Ratings: map[string]float64{"near": 1},
		Limit:   1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalHits)
	require.Len(t, res.Results, 1)
	assert.NotEqual(t, "near", res.Results[0].ID)
}

func TestFeedbackValidation(t *testing.T) {
	ex, err := New(testEngine(t), Options{})
	require.NoError(t, err)

	_, err = ex.Feedback(context.Background(), FeedbackRequest{Query: "cat"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = ex.Feedback(context.Background(), FeedbackRequest{Query: "cat", Ratings: map[string]float64{"ghost": 1}})
	assert.True(t, errors.Is(err, apperrors.ErrUnknownDocument))
}
