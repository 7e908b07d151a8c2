package ndcg

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

func TestIdealOrderScoresOne(t *testing.T) {
	gold := map[string]float64{"A": 1.0, "B": 0.5}
	values := Compute([]string{"A", "B"}, gold, 2)
	assert.Equal(t, []float64{1, 1}, values)
}

func TestSwappedOrder(t *testing.T) {
	gold := map[string]float64{"A": 1.0, "B": 0.5}
	values := Compute([]string{"B", "A"}, gold, 3)
	require.Len(t, values, 3)
	assert.InDelta(t, 0.5, values[0], 1e-12)
	assert.InDelta(t, 1.0, values[1], 1e-12)
	assert.InDelta(t, 1.0, values[2], 1e-12)
}

func TestUnjudgedDocumentsGainNothing(t *testing.T) {
	gold := map[string]float64{"A": 1}
	values := Compute([]string{"x", "A"}, gold, 2)
	assert.Equal(t, 0.0, values[0])
	assert.InDelta(t, 1/math.Log2(2), values[1], 1e-12)
}

func TestCutoffIndependence(t *testing.T) {
	gold := map[string]float64{"a": 0.9, "b": 0.3, "c": 0.7, "d": 0.1}
	ranked := []string{"c", "x", "a", "d", "y", "b"}

	short := Compute(ranked, gold, 3)
	long := Compute(ranked, gold, 8)
	require.Len(t, long, 8)
	for i := range short {
		assert.InDelta(t, short[i], long[i], 1e-12, "rank %d", i+1)
	}
}

func TestZeroIdealGivesZero(t *testing.T) {
	values := Compute([]string{"a", "b"}, map[string]float64{}, 4)
	for _, v := range values {
		assert.False(t, math.IsNaN(v))
		assert.Equal(t, 0.0, v)
	}
}

func TestShortRankingIsPadded(t *testing.T) {
	values := Compute(nil, map[string]float64{"a": 1}, 3)
	assert.Equal(t, []float64{0, 0, 0}, values)
}

func TestAccumulatorAverages(t *testing.T) {
	acc, err := NewAccumulator(2)
	require.NoError(t, err)

	gold := map[string]float64{"A": 1.0, "B": 0.5}
	acc.Update([]string{"A", "B"}, gold)
	acc.UpdateRetrievals([]index.Retrieval{
		{DocRef: index.DocRef{ID: "B"}},
		{DocRef: index.DocRef{ID: "A"}},
	}, gold)
	assert.Equal(t, 2, acc.Queries())

	report, err := acc.Finalize()
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, 1, report[0].Rank)
	assert.InDelta(t, 0.75, report[0].NDCG, 1e-12)
	assert.Equal(t, 2, report[1].Rank)
	assert.InDelta(t, 1.0, report[1].NDCG, 1e-12)
}

func TestFinalizeWithoutQueries(t *testing.T) {
	acc, err := NewAccumulator(DefaultLimit)
	require.NoError(t, err)
	_, err = acc.Finalize()
	assert.ErrorIs(t, err, apperrors.ErrNoQueries)
}

func TestNewAccumulatorRejectsBadLimit(t *testing.T) {
	_, err := NewAccumulator(0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, []RankNDCG{{Rank: 1, NDCG: 0.5}, {Rank: 2, NDCG: 1}}))
	assert.Equal(t, "1 0.5\n2 1\n", buf.String())
}
