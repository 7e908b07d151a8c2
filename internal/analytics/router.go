package analytics

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/kafka"
)

// Router publishes feedback events to Feedback and every other event to
// Search, so each topic carries one event shape.
type Router struct {
	Search   kafka.Publisher
	Feedback kafka.Publisher
}

func (r Router) Publish(ctx context.Context, event kafka.Event) error {
	return r.route(event).Publish(ctx, event)
}

func (r Router) PublishBatch(ctx context.Context, events []kafka.Event) error {
	var search, feedback []kafka.Event
	for _, e := range events {
		if r.toFeedback(e) {
			feedback = append(feedback, e)
		} else {
			search = append(search, e)
		}
	}
	if len(search) > 0 {
		if err := r.Search.PublishBatch(ctx, search); err != nil {
			return err
		}
	}
	if len(feedback) > 0 {
		return r.Feedback.PublishBatch(ctx, feedback)
	}
	return nil
}

func (r Router) route(event kafka.Event) kafka.Publisher {
	if r.toFeedback(event) {
		return r.Feedback
	}
	return r.Search
}

func (r Router) toFeedback(event kafka.Event) bool {
	_, ok := event.Value.(FeedbackEvent)
	return ok && r.Feedback != nil
}
