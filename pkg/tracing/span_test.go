package tracing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChildSpansJoinParentTrace(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "search", "req-1")
	err := Trace(ctx, "sparse-retrieve", func(ctx context.Context) error {
		assert.Equal(t, "sparse-retrieve", SpanFromContext(ctx).Name)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	assert.ErrorIs(t, Trace(ctx, "dense-retrieve", func(context.Context) error { return boom }), boom)
	root.Finish()

	require.Len(t, root.Children, 2)
	assert.Equal(t, "req-1", root.Children[0].TraceID)
	assert.Equal(t, "boom", root.Children[1].Attrs["error"])
	assert.False(t, root.EndTime.IsZero())
}

func TestTraceWithoutParent(t *testing.T) {
	assert.Nil(t, SpanFromContext(context.Background()))
	assert.NoError(t, Trace(context.Background(), "orphan", func(context.Context) error { return nil }))
}

func TestFinishLogsTree(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	ctx, root := StartSpan(context.Background(), "search", "req-2")
	root.SetAttr("strategy", "hybrid")
	Trace(ctx, "sparse-retrieve", func(context.Context) error { return nil })
	Trace(ctx, "sparse-retrieve", func(context.Context) error { return nil })
	root.Finish()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "req-2", rec["trace_id"])
	tree := rec["tree"].(map[string]any)
	assert.Equal(t, "hybrid", tree["strategy"])
	assert.Contains(t, tree, "sparse-retrieve")
	assert.Contains(t, tree, "sparse-retrieve#1")
	assert.GreaterOrEqual(t, root.Duration(), time.Duration(0))
}
