package source

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher refreshes a CachedFetcher on a cron schedule.
type Refresher struct {
	cron    *cron.Cron
	cache   *CachedFetcher
	timeout time.Duration
}

// NewRefresher schedules cache refreshes. schedule accepts standard
// five-field cron expressions and descriptors such as "@every 5m".
func NewRefresher(cache *CachedFetcher, schedule string, timeout time.Duration) (*Refresher, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	r := &Refresher{
		cron:    cron.New(),
		cache:   cache,
		timeout: timeout,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start starts the scheduler in the background.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Close stops the scheduler and waits for a running refresh to finish.
func (r *Refresher) Close() error {
	<-r.cron.Stop().Done()
	return nil
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.cache.Refresh(ctx); err != nil {
		log.Printf("Dataset refresh failed: %v", err)
		return
	}
	stats := r.cache.Stats()
	log.Printf("Dataset refreshed: fingerprint=%016x", stats.Fingerprint)
}
