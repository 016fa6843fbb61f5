package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sqlobserver/sqlobserver/internal/notify"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingFetcher returns datasets[i] on call i, repeating the last one.
type countingFetcher struct {
	mu       sync.Mutex
	calls    int
	datasets []types.Dataset
	err      error
}

func (f *countingFetcher) Fetch(ctx context.Context) (types.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	i := f.calls - 1
	if i >= len(f.datasets) {
		i = len(f.datasets) - 1
	}
	return f.datasets[i], nil
}

func (f *countingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func cityDataset(cities ...string) types.Dataset {
	ds := make(types.Dataset, len(cities))
	for i, c := range cities {
		ds[i] = types.NewRecord(types.Field{Name: "City", Value: c})
	}
	return ds
}

func newTestCache(inner Fetcher, ttl time.Duration) (*CachedFetcher, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	c := NewCachedFetcher(inner, ttl)
	c.now = clock.Now
	return c, clock
}

func TestCachedFetcher_TTL(t *testing.T) {
	inner := &countingFetcher{datasets: []types.Dataset{cityDataset("London")}}
	c, clock := newTestCache(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Fetch(ctx); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
	}
	if inner.Calls() != 1 {
		t.Errorf("expected 1 inner call within TTL, got %d", inner.Calls())
	}

	clock.Advance(2 * time.Minute)
	if _, err := c.Fetch(ctx); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if inner.Calls() != 2 {
		t.Errorf("expected refetch after TTL, got %d calls", inner.Calls())
	}

	stats := c.Stats()
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("hits=%d misses=%d, want 2/2", stats.Hits, stats.Misses)
	}
	if stats.Fingerprint != Fingerprint(cityDataset("London")) {
		t.Errorf("unexpected fingerprint %x", stats.Fingerprint)
	}
}

func TestCachedFetcher_Disabled(t *testing.T) {
	inner := &countingFetcher{datasets: []types.Dataset{cityDataset("London")}}
	c, _ := newTestCache(inner, 0)

	c.Fetch(context.Background())
	c.Fetch(context.Background())
	if inner.Calls() != 2 {
		t.Errorf("expected every fetch to pass through, got %d calls", inner.Calls())
	}
}

func TestCachedFetcher_ErrorsNotCached(t *testing.T) {
	inner := &countingFetcher{err: errors.New("down")}
	c, _ := newTestCache(inner, time.Minute)

	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if inner.Calls() != 2 {
		t.Errorf("failures should not be cached, got %d calls", inner.Calls())
	}
}

func TestCachedFetcher_RefreshKeepsPreviousOnFailure(t *testing.T) {
	inner := &countingFetcher{datasets: []types.Dataset{cityDataset("London")}}
	c, _ := newTestCache(inner, time.Hour)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	inner.mu.Lock()
	inner.err = errors.New("down")
	inner.mu.Unlock()

	if err := c.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	ds, err := c.Fetch(ctx)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !ds.Equal(cityDataset("London")) {
		t.Error("previous dataset should stay cached after a failed refresh")
	}
}

func TestCachedFetcher_DetectsChange(t *testing.T) {
	inner := &countingFetcher{datasets: []types.Dataset{
		cityDataset("London"),
		cityDataset("London"),
		cityDataset("Paris"),
	}}
	c, _ := newTestCache(inner, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.Refresh(ctx); err != nil {
			t.Fatalf("Refresh failed: %v", err)
		}
	}
	stats := c.Stats()
	if stats.Refreshes != 3 {
		t.Errorf("refreshes = %d, want 3", stats.Refreshes)
	}
	if stats.Changes != 1 {
		t.Errorf("changes = %d, want 1", stats.Changes)
	}
}

func TestCachedFetcher_Invalidate(t *testing.T) {
	inner := &countingFetcher{datasets: []types.Dataset{cityDataset("London")}}
	c, _ := newTestCache(inner, time.Hour)
	ctx := context.Background()

	c.Fetch(ctx)
	c.Invalidate()
	c.Fetch(ctx)
	if inner.Calls() != 2 {
		t.Errorf("expected refetch after Invalidate, got %d calls", inner.Calls())
	}
}

func TestFingerprint_FieldOrder(t *testing.T) {
	a := types.Dataset{types.NewRecord(
		types.Field{Name: "A", Value: 1.0},
		types.Field{Name: "B", Value: 2.0},
	)}
	b := types.Dataset{types.NewRecord(
		types.Field{Name: "B", Value: 2.0},
		types.Field{Name: "A", Value: 1.0},
	)}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("field order should change the fingerprint")
	}
	if Fingerprint(nil) != Fingerprint(types.Dataset{}) {
		t.Error("nil and empty datasets should share a fingerprint")
	}
}

func TestCachedFetcher_PublishesEvents(t *testing.T) {
	inner := &countingFetcher{datasets: []types.Dataset{
		cityDataset("London"),
		cityDataset("London"),
		cityDataset("Paris", "Rome"),
	}}
	c, clock := newTestCache(inner, time.Hour)
	n := notify.NewNotifier(10)
	c.SetNotifier(n, "students")
	sub := n.Subscribe()
	ctx := context.Background()

	c.Fetch(ctx)
	c.Refresh(ctx)
	c.Refresh(ctx)
	c.Invalidate()

	var got []notify.Notification
	for len(sub.Ch) > 0 {
		got = append(got, <-sub.Ch)
	}
	if len(got) != 3 {
		t.Fatalf("got %d notifications, want 3: %+v", len(got), got)
	}

	want := []notify.NotificationType{notify.DatasetLoaded, notify.DatasetChanged, notify.DatasetInvalidated}
	for i, typ := range want {
		if got[i].Type != typ {
			t.Errorf("notification %d type = %s, want %s", i, got[i].Type, typ)
		}
		if got[i].Table != "students" {
			t.Errorf("notification %d table = %q", i, got[i].Table)
		}
		if got[i].Timestamp != clock.Now().UnixNano() {
			t.Errorf("notification %d timestamp not from cache clock", i)
		}
	}
	if got[1].Records != 2 || got[1].Previous != got[0].Fingerprint {
		t.Errorf("changed notification = %+v", got[1])
	}
	if got[2].Fingerprint != got[1].Fingerprint {
		t.Errorf("invalidated notification should carry the last fingerprint")
	}
}

// gatedFetcher blocks every call until release is closed.
type gatedFetcher struct {
	started chan struct{}
	release chan struct{}
	ds      types.Dataset
	err     error

	mu    sync.Mutex
	calls int
}

func newGatedFetcher(ds types.Dataset, err error) *gatedFetcher {
	return &gatedFetcher{
		started: make(chan struct{}, 16),
		release: make(chan struct{}),
		ds:      ds,
		err:     err,
	}
}

func (f *gatedFetcher) Fetch(ctx context.Context) (types.Dataset, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	f.started <- struct{}{}
	<-f.release
	if f.err != nil {
		return nil, f.err
	}
	return f.ds, nil
}

func (f *gatedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitStarted(t *testing.T, f *gatedFetcher) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream fetch never started")
	}
}

// within fails the test if fn does not return in time.
func within(t *testing.T, d time.Duration, name string, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s blocked behind the upstream fetch", name)
	}
}

func TestCachedFetcher_ConcurrentMissesShareFailure(t *testing.T) {
	inner := newGatedFetcher(nil, errors.New("upstream down"))
	c, _ := newTestCache(inner, time.Minute)

	const callers = 5
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := c.Fetch(context.Background())
			errs <- err
		}()
	}
	waitStarted(t, inner)

	deadline := time.Now().Add(2 * time.Second)
	for {
		var stats CacheStats
		within(t, 100*time.Millisecond, "Stats", func() { stats = c.Stats() })
		if stats.Misses == callers {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("misses = %d, want %d", stats.Misses, callers)
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(inner.release)

	for i := 0; i < callers; i++ {
		if err := <-errs; err == nil {
			t.Error("expected the shared failure")
		}
	}
	if inner.Calls() != 1 {
		t.Errorf("upstream calls = %d, want 1", inner.Calls())
	}
}

func TestCachedFetcher_InvalidateDuringFetch(t *testing.T) {
	inner := newGatedFetcher(cityDataset("London"), nil)
	c, _ := newTestCache(inner, time.Hour)

	result := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background())
		result <- err
	}()
	waitStarted(t, inner)

	within(t, 100*time.Millisecond, "Invalidate", c.Invalidate)
	close(inner.release)
	if err := <-result; err != nil {
		t.Fatalf("in-flight Fetch failed: %v", err)
	}

	if _, err := c.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if inner.Calls() != 2 {
		t.Errorf("upstream calls = %d, want 2 (invalidated result must not be cached)", inner.Calls())
	}
}

func TestCachedFetcher_CallerCancelDoesNotFailOthers(t *testing.T) {
	inner := newGatedFetcher(cityDataset("London"), nil)
	c, _ := newTestCache(inner, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Fetch(ctx)
		first <- err
	}()
	waitStarted(t, inner)

	second := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background())
		second <- err
	}()

	cancel()
	select {
	case err := <-first:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(inner.release)
	if err := <-second; err != nil {
		t.Errorf("second caller failed: %v", err)
	}
}
