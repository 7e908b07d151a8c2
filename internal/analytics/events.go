package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventFeedback   EventType = "feedback"
	EventEvaluated  EventType = "query_evaluated"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Strategy  string    `json:"strategy"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// FeedbackEvent records one relevance-feedback round.
type FeedbackEvent struct {
	Type       EventType `json:"type"`
	Query      string    `json:"query"`
	Strategy   string    `json:"strategy"`
	Relevant   int       `json:"relevant"`
	Irrelevant int       `json:"irrelevant"`
	Skipped    []string  `json:"skipped,omitempty"`
	Returned   int       `json:"returned"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// EvalEvent carries the per-rank NDCG of one evaluated query.
type EvalEvent struct {
	Type       EventType `json:"type"`
	Experiment string    `json:"experiment"`
	Line       int       `json:"line"`
	Query      string    `json:"query"`
	NDCG       []float64 `json:"ndcg"`
	Timestamp  time.Time `json:"timestamp"`
}
