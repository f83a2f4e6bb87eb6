package search

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/Clark-Hu/reelview/internal/metrics"
)

// Registry keeps one Coordinator per browsing session. Idle coordinators expire
// after the TTL and the least recently used is evicted when the registry is full;
// eviction closes the coordinator.
type Registry struct {
	src  MovieSource
	opts Options

	mu    sync.Mutex
	cache *expirable.LRU[string, *Coordinator]
}

// NewRegistry builds a registry holding at most size coordinators.
func NewRegistry(src MovieSource, opts Options, size int, ttl time.Duration) *Registry {
	if size <= 0 {
		size = 1024
	}
	r := &Registry{src: src, opts: opts}
	r.cache = expirable.NewLRU[string, *Coordinator](size, func(_ string, c *Coordinator) {
		c.Close()
		metrics.SearchActiveSessions.Dec()
	}, ttl)
	return r
}

// Get returns the session's coordinator, creating and starting it on first use.
// Fetches run under ctx's values but not its cancellation, so the coordinator
// outlives the request that created it.
func (r *Registry) Get(ctx context.Context, key string) *Coordinator {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.cache.Get(key); ok {
		// Re-adding renews the idle deadline.
		r.cache.Add(key, c)
		c.Start()
		return c
	}
	c := NewCoordinator(context.WithoutCancel(ctx), r.src, r.opts)
	r.cache.Add(key, c)
	metrics.SearchActiveSessions.Inc()
	c.Start()
	return c
}

// Remove drops and closes the session's coordinator, if any.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(key)
}

// Len reports how many coordinators are held.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close drops every coordinator.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Purge()
}
