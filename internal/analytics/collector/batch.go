// Package collector buffers evaluation events and publishes them to Kafka
// in batches.
package collector

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/kafka"
)

// maxBacklogBatches caps how many failed batches are kept for retry.
const maxBacklogBatches = 3

// BatchCollector publishes when batchSize events are buffered or every
// flushInterval, whichever comes first. All publishing happens on the loop
// started by Start, or on explicit Flush calls.
type BatchCollector struct {
	publisher     kafka.Publisher
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	buffer []kafka.Event

	full    chan struct{}
	done    chan struct{}
	dropped atomic.Int64
}

func NewBatchCollector(publisher kafka.Publisher, batchSize int, flushInterval time.Duration) *BatchCollector {
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchCollector{
		publisher:     publisher,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "batch-collector"),
		buffer:        make([]kafka.Event, 0, batchSize),
		full:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// Start runs the flush loop until ctx ends, then flushes once more with a
// fresh five second deadline.
func (bc *BatchCollector) Start(ctx context.Context) {
	bc.logger.Info("batch collector started", "batch_size", bc.batchSize, "flush_interval", bc.flushInterval)
	go func() {
		defer close(bc.done)
		ticker := time.NewTicker(bc.flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bc.Flush(ctx)
			case <-bc.full:
				bc.Flush(ctx)
			case <-ctx.Done():
				final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				bc.Flush(final)
				cancel()
				return
			}
		}
	}()
}

// Track buffers one event and wakes the loop once a batch is full.
func (bc *BatchCollector) Track(key string, value any) {
	bc.mu.Lock()
	bc.buffer = append(bc.buffer, kafka.Event{Key: key, Value: value})
	full := len(bc.buffer) >= bc.batchSize
	bc.mu.Unlock()
	if full {
		select {
		case bc.full <- struct{}{}:
		default:
		}
	}
}

// Close blocks until the loop has made its final flush. Cancel the Start
// context first.
func (bc *BatchCollector) Close() {
	<-bc.done
	if n := bc.dropped.Load(); n > 0 {
		bc.logger.Warn("events dropped while the broker was failing", "dropped", n)
	}
}

func (bc *BatchCollector) BufferLen() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return len(bc.buffer)
}

// Dropped counts events discarded because the retry backlog was full.
func (bc *BatchCollector) Dropped() int64 { return bc.dropped.Load() }

// Flush publishes the buffer as one batch. A failed batch goes back to the
// front of the buffer; beyond maxBacklogBatches batches the newest events
// are discarded.
func (bc *BatchCollector) Flush(ctx context.Context) {
	bc.mu.Lock()
	batch := bc.buffer
	if len(batch) == 0 {
		bc.mu.Unlock()
		return
	}
	bc.buffer = make([]kafka.Event, 0, bc.batchSize)
	bc.mu.Unlock()

	err := bc.publisher.PublishBatch(ctx, batch)
	if err == nil {
		bc.logger.Debug("batch flushed", "events", len(batch))
		return
	}
	bc.logger.Error("batch flush failed", "events", len(batch), "error", err)

	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.buffer = append(batch, bc.buffer...)
	if limit := bc.batchSize * maxBacklogBatches; len(bc.buffer) > limit {
		bc.dropped.Add(int64(len(bc.buffer) - limit))
		bc.buffer = bc.buffer[:limit]
	}
}
