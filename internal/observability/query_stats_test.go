package observability

import (
	"sync"
	"testing"
	"time"
)

// TestRecordQueryConcurrent tests concurrent RecordQuery calls for race conditions.
func TestRecordQueryConcurrent(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)
	var wg sync.WaitGroup
	numGoroutines := 10
	recordsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerGoroutine; j++ {
				qs.RecordQuery("select City, Age from students;", "students", []string{"City", "Age"}, time.Millisecond)
				qs.RecordFailure("select Z from students;", "UNKNOWN_FIELD", "QUERY")
			}
		}()
	}
	wg.Wait()

	expectedFreq := int64(numGoroutines * recordsPerGoroutine)
	fields := qs.GetTopFields(10)
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	for _, stat := range fields {
		if stat.Frequency != expectedFreq {
			t.Errorf("expected frequency %d for %s, got %d", expectedFreq, stat.Key, stat.Frequency)
		}
		if stat.Kinds["students"] != int(expectedFreq) {
			t.Errorf("expected table count %d for %s, got %d", expectedFreq, stat.Key, stat.Kinds["students"])
		}
	}

	snap := qs.Snapshot(10)
	if snap.TotalQueries != 2*expectedFreq {
		t.Errorf("total queries = %d, want %d", snap.TotalQueries, 2*expectedFreq)
	}
	if snap.TotalFailures != expectedFreq {
		t.Errorf("total failures = %d, want %d", snap.TotalFailures, expectedFreq)
	}
}

// TestGetTopFieldsOrdering tests that GetTopFields returns results sorted by frequency.
func TestGetTopFieldsOrdering(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)

	for i := 0; i < 10; i++ {
		qs.RecordQuery("q", "students", []string{"LastName"}, 0)
	}
	for i := 0; i < 5; i++ {
		qs.RecordQuery("q", "students", []string{"City"}, 0)
	}
	for i := 0; i < 20; i++ {
		qs.RecordQuery("q", "students", []string{"*"}, 0)
	}

	top := qs.GetTopFields(3)
	if len(top) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(top))
	}
	if top[0].Key != "*" || top[0].Frequency != 20 {
		t.Errorf("expected * with frequency 20, got %s with %d", top[0].Key, top[0].Frequency)
	}
	if top[1].Key != "LastName" || top[1].Frequency != 10 {
		t.Errorf("expected LastName with frequency 10, got %s with %d", top[1].Key, top[1].Frequency)
	}
	if top[2].Key != "City" || top[2].Frequency != 5 {
		t.Errorf("expected City with frequency 5, got %s with %d", top[2].Key, top[2].Frequency)
	}
}

func TestGetTopFailures(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)
	qs.RecordFailure("select Z from students;", "UNKNOWN_FIELD", "QUERY")
	qs.RecordFailure("select * from teachers;", "UNKNOWN_TABLE", "QUERY")
	qs.RecordFailure("select * from students;", "BAD_STATUS", "FETCH")
	qs.RecordFailure("", "BAD_STATUS", "FETCH")

	top := qs.GetTopFailures(1)
	if len(top) != 1 || top[0].Key != "BAD_STATUS" || top[0].Frequency != 2 {
		t.Fatalf("unexpected top failure %+v", top)
	}
	if top[0].Kinds["FETCH"] != 2 {
		t.Errorf("expected FETCH category count 2, got %d", top[0].Kinds["FETCH"])
	}

	// Blank queries are not counted as query texts.
	if got := len(qs.GetTopQueries(10)); got != 3 {
		t.Errorf("expected 3 distinct queries, got %d", got)
	}
}

func TestTopReturnsCopies(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)
	qs.RecordQuery("q", "students", []string{"City"}, 0)

	top := qs.GetTopFields(1)
	top[0].Kinds["students"] = 100
	top[0].Frequency = 100

	again := qs.GetTopFields(1)
	if again[0].Frequency != 1 || again[0].Kinds["students"] != 1 {
		t.Error("modifying returned stats should not affect the tracker")
	}
}

func TestTopNonPositive(t *testing.T) {
	qs := NewQueryStats(1 * time.Hour)
	qs.RecordQuery("q", "students", []string{"City"}, 0)
	if got := qs.GetTopFields(0); len(got) != 0 {
		t.Errorf("expected empty result for n=0, got %d", len(got))
	}
	if got := NewQueryStats(time.Hour).GetTopQueries(5); got == nil || len(got) != 0 {
		t.Error("expected empty non-nil result for empty tracker")
	}
}

// TestPruneRemovesOldEntries tests that Prune removes entries older than the window.
func TestPruneRemovesOldEntries(t *testing.T) {
	qs := NewQueryStats(time.Hour)
	now := time.Unix(1700000000, 0)
	qs.now = func() time.Time { return now }

	qs.RecordQuery("old", "students", []string{"City"}, 0)
	qs.RecordFailure("old failure", "UNKNOWN_FIELD", "QUERY")

	now = now.Add(2 * time.Hour)
	qs.RecordQuery("new", "students", []string{"Age"}, 0)
	qs.Prune()

	fields := qs.GetTopFields(10)
	if len(fields) != 1 || fields[0].Key != "Age" {
		t.Errorf("expected only Age after prune, got %+v", fields)
	}
	if got := len(qs.GetTopFailures(10)); got != 0 {
		t.Errorf("expected failures pruned, got %d", got)
	}
	queries := qs.GetTopQueries(10)
	if len(queries) != 1 || queries[0].Key != "new" {
		t.Errorf("expected only new query after prune, got %+v", queries)
	}
}

func TestSnapshotAverage(t *testing.T) {
	qs := NewQueryStats(time.Hour)
	qs.RecordQuery("a", "students", []string{"*"}, 10*time.Millisecond)
	qs.RecordQuery("b", "students", []string{"*"}, 30*time.Millisecond)
	qs.RecordFailure("c", "EMPTY_QUERY", "QUERY")

	snap := qs.Snapshot(5)
	if snap.AvgExecutionMs != 20 {
		t.Errorf("avg = %v, want 20", snap.AvgExecutionMs)
	}
	if snap.TotalQueries != 3 || snap.TotalFailures != 1 {
		t.Errorf("totals = %d/%d", snap.TotalQueries, snap.TotalFailures)
	}
}
