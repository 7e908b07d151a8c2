// Package analytics tracks search and feedback traffic: events are
// aggregated in process for the stats endpoint and published to Kafka
// when a broker is configured.
package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/kafka"
)

// Collector hands events to a background publisher through a bounded
// buffer. Track never blocks; events are dropped when the buffer is full.
type Collector struct {
	publisher  kafka.Publisher
	aggregator *Aggregator
	eventCh    chan any
	logger     *slog.Logger
	done       chan struct{}
}

// NewCollector returns a collector. publisher and aggregator may each be nil.
func NewCollector(publisher kafka.Publisher, aggregator *Aggregator, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher:  publisher,
		aggregator: aggregator,
		eventCh:    make(chan any, bufferSize),
		logger:     slog.Default().With("component", "analytics-collector"),
		done:       make(chan struct{}),
	}
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				c.publish(ctx, event)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"publishing", c.publisher != nil,
	)
}

// Track records event in the aggregator and queues it for publishing.
func (c *Collector) Track(event any) {
	if c.aggregator != nil {
		c.aggregator.Record(event)
	}
	if c.publisher == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

// Close stops the publisher loop after the queued events are sent. Start
// must have been called.
func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) publish(ctx context.Context, event any) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, kafka.Event{Key: eventKey(event), Value: event}); err != nil {
		c.logger.Error("failed to publish analytics event", "error", err)
	}
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			c.publish(context.Background(), event)
		default:
			return
		}
	}
}

// eventKey partitions events by query so one query's traffic stays ordered.
func eventKey(event any) string {
	switch e := event.(type) {
	case SearchEvent:
		return e.Query
	case FeedbackEvent:
		return e.Query
	case EvalEvent:
		return e.Experiment
	}
	return "analytics"
}
