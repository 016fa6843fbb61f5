package source

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/singleflight"

	oerrors "github.com/sqlobserver/sqlobserver/internal/errors"
	"github.com/sqlobserver/sqlobserver/internal/notify"
	"github.com/sqlobserver/sqlobserver/pkg/types"
)

// CacheStats holds cache counters.
type CacheStats struct {
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Refreshes   int64  `json:"refreshes"`
	Changes     int64  `json:"changes"`
	Fingerprint uint64 `json:"fingerprint"`
}

// CachedFetcher keeps the last fetched dataset for a TTL.
// Concurrent misses share one upstream fetch and its result, success or
// failure. The mutex is never held while fetching.
// Cached datasets are shared between callers and must not be modified.
type CachedFetcher struct {
	inner    Fetcher
	ttl      time.Duration
	now      func() time.Time
	notifier *notify.Notifier
	table    string
	group    singleflight.Group

	mu          sync.Mutex
	dataset     types.Dataset
	valid       bool
	fetchedAt   time.Time
	fingerprint uint64
	generation  uint64
	stats       CacheStats
}

const fetchKey = "dataset"

// NewCachedFetcher wraps inner. A ttl of zero or less disables caching.
func NewCachedFetcher(inner Fetcher, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetNotifier publishes dataset events for table on n. Call it before the
// cache is shared.
func (c *CachedFetcher) SetNotifier(n *notify.Notifier, table string) {
	c.notifier = n
	c.table = table
}

// Fetch returns the cached dataset while it is fresh, fetching otherwise.
func (c *CachedFetcher) Fetch(ctx context.Context) (types.Dataset, error) {
	if c.ttl <= 0 {
		return c.inner.Fetch(ctx)
	}

	c.mu.Lock()
	if c.valid && c.now().Sub(c.fetchedAt) < c.ttl {
		c.stats.Hits++
		ds := c.dataset
		c.mu.Unlock()
		return ds, nil
	}
	c.stats.Misses++
	c.mu.Unlock()

	return c.load(ctx)
}

// Refresh fetches unconditionally, joining a fetch already in flight. On
// failure the previous dataset stays cached.
func (c *CachedFetcher) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.stats.Refreshes++
	c.mu.Unlock()

	_, err := c.load(ctx)
	return err
}

// Invalidate drops the cached dataset. A fetch in flight when Invalidate
// runs still answers its callers but is not cached.
func (c *CachedFetcher) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
	c.dataset = nil
	c.generation++
	c.group.Forget(fetchKey)
	c.publish(notify.DatasetInvalidated, c.fingerprint, 0, 0)
}

// Stats returns a copy of the cache counters.
func (c *CachedFetcher) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Fingerprint = c.fingerprint
	return s
}

// load waits for the shared fetch or for ctx, whichever ends first. The
// shared fetch keeps the first caller's values but not its cancellation,
// so one caller giving up does not fail the others.
func (c *CachedFetcher) load(ctx context.Context) (types.Dataset, error) {
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(fetchKey, func() (interface{}, error) {
		return c.fetchAndStore(fetchCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(types.Dataset), nil
	case <-ctx.Done():
		return nil, oerrors.FetchFailure("wait for dataset", ctx.Err())
	}
}

func (c *CachedFetcher) fetchAndStore(ctx context.Context) (types.Dataset, error) {
	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	ds, err := c.inner.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	fp := Fingerprint(ds)

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.fingerprint == 0:
		c.publish(notify.DatasetLoaded, fp, 0, len(ds))
	case fp != c.fingerprint:
		c.stats.Changes++
		log.Printf("Dataset changed: records=%d fingerprint=%016x", len(ds), fp)
		c.publish(notify.DatasetChanged, fp, c.fingerprint, len(ds))
	}
	c.fingerprint = fp
	if gen == c.generation {
		c.dataset = ds
		c.valid = true
		c.fetchedAt = c.now()
	}
	return ds, nil
}

func (c *CachedFetcher) publish(t notify.NotificationType, fp, previous uint64, records int) {
	if c.notifier == nil {
		return
	}
	c.notifier.Publish(notify.Notification{
		Type:        t,
		Table:       c.table,
		Fingerprint: fp,
		Previous:    previous,
		Records:     records,
		Timestamp:   c.now().UnixNano(),
	})
}

// Fingerprint returns a murmur3 hash of the dataset's JSON encoding.
// Equal datasets, including field order, have equal fingerprints.
func Fingerprint(ds types.Dataset) uint64 {
	if ds == nil {
		ds = types.Dataset{}
	}
	data, err := json.Marshal(ds)
	if err != nil {
		return 0
	}
	return murmur3.Sum64(data)
}
