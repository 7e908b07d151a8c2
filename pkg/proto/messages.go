// Package proto defines the message types exchanged over the JSON-over-TCP
// RPC layer (see pkg/grpc) between the retrieval service, the evaluation
// runner and an out-of-process dense retriever.
package proto

// Method names registered on the RPC server.
const (
	MethodRetrieve      = "RetrievalService.Retrieve"
	MethodStats         = "RetrievalService.Stats"
	MethodDenseRetrieve = "DenseService.Retrieve"
)

// ScoredDocument is one ranked document.
type ScoredDocument struct {
	DocID     string  `json:"doc_id"`
	Score     float64 `json:"score"`
	Cosine    float64 `json:"cosine,omitempty"`
	Proximity float64 `json:"proximity,omitempty"`
}

// ---------- Retrieval ----------

// RetrieveRequest is the input to RetrievalService.Retrieve.
type RetrieveRequest struct {
	Query    string `json:"query"`
	Strategy string `json:"strategy,omitempty"`
	Limit    int32  `json:"limit"`
	// QueryID names the precomputed query embedding for the hybrid strategy.
	QueryID string `json:"query_id,omitempty"`
}

// RetrieveResponse is the output of RetrievalService.Retrieve.
type RetrieveResponse struct {
	Query     string           `json:"query"`
	Strategy  string           `json:"strategy"`
	TotalHits int32            `json:"total_hits"`
	Results   []ScoredDocument `json:"results"`
	LatencyMs int64            `json:"latency_ms"`
}

// StatsResponse contains index-level statistics.
type StatsResponse struct {
	Documents int `json:"documents"`
	Terms     int `json:"terms"`
}

// ---------- Dense ----------

// DenseRetrieveRequest asks a dense retriever to rank the corpus against a
// query embedding, identified by QueryID or given inline.
type DenseRetrieveRequest struct {
	QueryID   string    `json:"query_id,omitempty"`
	Embedding []float64 `json:"embedding,omitempty"`
	Limit     int32     `json:"limit,omitempty"`
}

// DenseRetrieveResponse is the dense ranking, best first.
type DenseRetrieveResponse struct {
	Results []ScoredDocument `json:"results"`
}
