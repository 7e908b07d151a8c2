package analytics

import (
	"sort"
	"sync"
	"time"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSearches     int64            `json:"total_searches"`
	TotalFeedback     int64            `json:"total_feedback"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	SkippedFeedback   int64            `json:"skipped_feedback_docs"`
	ByStrategy        map[string]int64 `json:"by_strategy"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps running totals over search and feedback events.
type Aggregator struct {
	mu                sync.Mutex
	totalSearches     int64
	totalFeedback     int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	skippedFeedback   int64
	byStrategy        map[string]int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		byStrategy:        make(map[string]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
	}
}

// Record folds a SearchEvent or FeedbackEvent into the totals. Other values
// are ignored.
func (a *Aggregator) Record(event any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch e := event.(type) {
	case SearchEvent:
		a.totalSearches++
		if e.CacheHit {
			a.cacheHits++
		} else {
			a.cacheMisses++
		}
		a.byStrategy[e.Strategy]++
		a.queryCounts[e.Query]++
		if e.TotalHits == 0 {
			a.zeroResults++
			a.zeroResultQueries[e.Query]++
		}
		a.addLatency(e.LatencyMs)
	case FeedbackEvent:
		a.totalFeedback++
		a.skippedFeedback += int64(len(e.Skipped))
		a.addLatency(e.LatencyMs)
	}
}

func (a *Aggregator) addLatency(ms int64) {
	if len(a.latencies) == maxLatencySamples {
		a.latencies = append(a.latencies[:0], a.latencies[1:]...)
	}
	a.latencies = append(a.latencies, ms)
}

// DefaultTopQueries is how many queries Stats lists per ranking.
const DefaultTopQueries = 10

func (a *Aggregator) Stats() AggregatedStats { return a.Snapshot(DefaultTopQueries) }

// Snapshot is Stats with the query rankings cut at top.
func (a *Aggregator) Snapshot(top int) AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := AggregatedStats{
		TotalSearches:   a.totalSearches,
		TotalFeedback:   a.totalFeedback,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		SkippedFeedback: a.skippedFeedback,
		ByStrategy:      make(map[string]int64, len(a.byStrategy)),
	}
	for k, v := range a.byStrategy {
		stats.ByStrategy[k] = v
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, top)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, top)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so ties are stable across calls.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
