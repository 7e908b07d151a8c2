package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/indexer/index"
)

// TopK returns the k best retrievals of results in descending score order.
// Ties are resolved by input position, matching a stable sort. A k <= 0
// returns every result.
func TopK(results []index.Retrieval, k int) []index.Retrieval {
	if k <= 0 || k >= len(results) {
		out := make([]index.Retrieval, len(results))
		copy(out, results)
		index.SortRetrievals(out)
		return out
	}
	h := &retrievalHeap{}
	heap.Init(h)
	for i, r := range results {
		heap.Push(h, ranked{Retrieval: r, seq: i})
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	out := make([]index.Retrieval, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(ranked).Retrieval
	}
	return out
}

type ranked struct {
	index.Retrieval
	seq int
}

// retrievalHeap is a min-heap: the worst retrieval sits on top.
type retrievalHeap []ranked

func (h retrievalHeap) Len() int { return len(h) }

func (h retrievalHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].seq > h[j].seq
}

func (h retrievalHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *retrievalHeap) Push(x interface{}) {
	*h = append(*h, x.(ranked))
}

func (h *retrievalHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
