// Package dense ranks documents by embedding similarity. The dense ranking
// is consumed as an opaque list by the hybrid fuser; this package provides
// an in-process retriever over precomputed embeddings and an RPC client for
// an out-of-process one.
package dense

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/searcher/merger"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// Query identifies a query embedding by id, or carries one inline.
type Query struct {
	ID        string
	Embedding []float64
}

// Retriever produces a dense ranking, best first.
type Retriever interface {
	Retrieve(ctx context.Context, q Query, limit int) ([]index.Retrieval, error)
}

// MemoryRetriever scores every document embedding against the query by
// cosine similarity.
type MemoryRetriever struct {
	docs    *Store
	queries *Store
	logger  *slog.Logger
}

// NewMemoryRetriever serves docs. queries may be nil when every query
// carries its embedding inline.
func NewMemoryRetriever(docs, queries *Store) *MemoryRetriever {
	return &MemoryRetriever{
		docs:    docs,
		queries: queries,
		logger:  slog.Default().With("component", "dense-retriever"),
	}
}

// Retrieve ranks all documents. A limit <= 0 returns the full ranking.
func (m *MemoryRetriever) Retrieve(ctx context.Context, q Query, limit int) ([]index.Retrieval, error) {
	qe, err := m.resolve(q)
	if err != nil {
		return nil, err
	}
	if len(qe.Vector) != m.docs.Dim() {
		return nil, fmt.Errorf("query dimension %d, documents %d: %w", len(qe.Vector), m.docs.Dim(), apperrors.ErrInvalidInput)
	}
	results := make([]index.Retrieval, 0, m.docs.Len())
	for i, doc := range m.docs.items {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		results = append(results, index.Retrieval{
			DocRef: index.DocRef{ID: doc.ID, Length: doc.Norm},
			Score:  cosine(qe, doc),
		})
	}
	out := merger.TopK(results, limit)
	m.logger.Debug("dense retrieval", "query_id", q.ID, "returned", len(out))
	return out, nil
}

func (m *MemoryRetriever) resolve(q Query) (Embedding, error) {
	if len(q.Embedding) > 0 {
		return NewEmbedding(q.ID, q.Embedding), nil
	}
	if q.ID == "" {
		return Embedding{}, fmt.Errorf("dense query needs an id or an embedding: %w", apperrors.ErrEmptyQuery)
	}
	if m.queries == nil {
		return Embedding{}, fmt.Errorf("no query embeddings loaded for %q: %w", q.ID, apperrors.ErrUnknownDocument)
	}
	qe, ok := m.queries.Get(q.ID)
	if !ok {
		return Embedding{}, fmt.Errorf("query embedding %q: %w", q.ID, apperrors.ErrUnknownDocument)
	}
	return qe, nil
}
