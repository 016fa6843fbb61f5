// Package observability tracks which fields queries select and how queries fail.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats counts selected fields, failure codes and query texts over a
// sliding window.
type QueryStats struct {
	mu          sync.RWMutex
	fieldFreq   map[string]*UsageStats
	failureFreq map[string]*UsageStats
	queryFreq   map[string]*UsageStats
	window      time.Duration
	now         func() time.Time

	totalQueries  int64
	totalFailures int64
	totalElapsed  time.Duration
}

// UsageStats holds statistics for one field, failure code or query text.
type UsageStats struct {
	Key       string         `json:"key"`
	Frequency int64          `json:"frequency"`
	LastSeen  time.Time      `json:"last_seen"`
	Kinds     map[string]int `json:"kinds,omitempty"` // table or category → count
}

// Snapshot is a point-in-time copy of the statistics.
type Snapshot struct {
	TotalQueries   int64        `json:"total_queries"`
	TotalFailures  int64        `json:"total_failures"`
	AvgExecutionMs float64      `json:"avg_execution_ms"`
	TopFields      []UsageStats `json:"top_fields"`
	TopFailures    []UsageStats `json:"top_failures"`
	TopQueries     []UsageStats `json:"top_queries"`
}

// NewQueryStats creates a new query statistics tracker.
// window: time duration for pruning old entries (e.g., 1 hour)
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		fieldFreq:   make(map[string]*UsageStats),
		failureFreq: make(map[string]*UsageStats),
		queryFreq:   make(map[string]*UsageStats),
		window:      window,
		now:         time.Now,
	}
}

// RecordQuery records a successful query: its text, the fields it selected
// from table and how long it took.
func (q *QueryStats) RecordQuery(query, table string, fields []string, elapsed time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.totalQueries++
	q.totalElapsed += elapsed
	touch(q.queryFreq, query, "", now)
	for _, f := range fields {
		touch(q.fieldFreq, f, table, now)
	}
}

// RecordFailure records a failed query by error code and category.
func (q *QueryStats) RecordFailure(query, code, category string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.totalQueries++
	q.totalFailures++
	touch(q.failureFreq, code, category, now)
	if query != "" {
		touch(q.queryFreq, query, "", now)
	}
}

func touch(m map[string]*UsageStats, key, kind string, now time.Time) {
	stats, exists := m[key]
	if !exists {
		stats = &UsageStats{
			Key:   key,
			Kinds: make(map[string]int),
		}
		m[key] = stats
	}
	stats.Frequency++
	stats.LastSeen = now
	if kind != "" {
		stats.Kinds[kind]++
	}
}

// GetTopFields returns the top N selected fields by frequency.
func (q *QueryStats) GetTopFields(n int) []UsageStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return top(q.fieldFreq, n)
}

// GetTopFailures returns the top N failure codes by frequency.
func (q *QueryStats) GetTopFailures(n int) []UsageStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return top(q.failureFreq, n)
}

// GetTopQueries returns the top N query texts by frequency.
func (q *QueryStats) GetTopQueries(n int) []UsageStats {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return top(q.queryFreq, n)
}

// top returns copies sorted by frequency descending, ties by key.
func top(m map[string]*UsageStats, n int) []UsageStats {
	if n <= 0 || len(m) == 0 {
		return []UsageStats{}
	}

	stats := make([]UsageStats, 0, len(m))
	for _, s := range m {
		statsCopy := UsageStats{
			Key:       s.Key,
			Frequency: s.Frequency,
			LastSeen:  s.LastSeen,
			Kinds:     make(map[string]int, len(s.Kinds)),
		}
		for k, count := range s.Kinds {
			statsCopy.Kinds[k] = count
		}
		stats = append(stats, statsCopy)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].Key < stats[j].Key
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Snapshot returns the totals and the top n entries of each table.
func (q *QueryStats) Snapshot(n int) Snapshot {
	q.mu.RLock()
	defer q.mu.RUnlock()

	s := Snapshot{
		TotalQueries:  q.totalQueries,
		TotalFailures: q.totalFailures,
		TopFields:     top(q.fieldFreq, n),
		TopFailures:   top(q.failureFreq, n),
		TopQueries:    top(q.queryFreq, n),
	}
	if ok := q.totalQueries - q.totalFailures; ok > 0 {
		s.AvgExecutionMs = float64(q.totalElapsed.Microseconds()) / 1000 / float64(ok)
	}
	return s
}

// Prune removes entries not seen within the window.
// This should be called periodically (e.g., every 5 minutes).
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := q.now().Add(-q.window)
	for _, m := range []map[string]*UsageStats{q.fieldFreq, q.failureFreq, q.queryFreq} {
		for key, stats := range m {
			if stats.LastSeen.Before(threshold) {
				delete(m, key)
			}
		}
	}
}
