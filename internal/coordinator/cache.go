package coordinator

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Freshness tracks when each sub-resource was last fetched, so that expensive
// remote calls can be skipped while a cached value is still within its TTL.
// A resource that was never fetched is always stale.
type Freshness struct {
	clock clock.Clock

	mu      sync.Mutex
	fetched map[string]time.Time
}

// NewFreshness creates an empty tracker.
func NewFreshness(clk clock.Clock) *Freshness {
	return &Freshness{
		clock:   clk,
		fetched: make(map[string]time.Time),
	}
}

// Fresh reports whether resource was fetched less than ttl ago.
func (f *Freshness) Fresh(resource string, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	last, ok := f.fetched[resource]
	if !ok {
		return false
	}
	return f.clock.Since(last) < ttl
}

// MarkFetched records a successful fetch of resource at the current time.
func (f *Freshness) MarkFetched(resource string) {
	f.mu.Lock()
	f.fetched[resource] = f.clock.Now()
	f.mu.Unlock()
}

// Invalidate forgets the fetch timestamp so the next check reports stale.
func (f *Freshness) Invalidate(resource string) {
	f.mu.Lock()
	delete(f.fetched, resource)
	f.mu.Unlock()
}
