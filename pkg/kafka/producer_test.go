package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

type searched struct {
	Query string `json:"query"`
}

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "search-events")
	require.NoError(t, p.Publish(context.Background(), Event{Key: "cat", Value: &searched{Query: "cat"}}))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "cat", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"query":"cat"}`, string(w.msgs[0].Value))
	assert.Equal(t, "searched", string(w.msgs[0].Headers[1].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishBatchAllOrNothing(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "t")
	err := p.PublishBatch(context.Background(), []Event{
		{Key: "a", Value: 1},
		{Key: "b", Value: make(chan int)},
	})
	require.Error(t, err)
	assert.Empty(t, w.msgs)

	require.NoError(t, p.PublishBatch(context.Background(), nil))
}

func TestPublishWriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newProducer(&fakeWriter{err: boom}, "t")
	err := p.Publish(context.Background(), Event{Key: "k", Value: "v"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "t")
}
