// Package ratelimit keeps one token bucket per key (client address, sending
// participant) on top of golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultIdleTTL = 5 * time.Minute
	DefaultMaxKeys = 1024
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed is safe for concurrent use. A nil *Keyed allows everything.
type Keyed[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
	limit   rate.Limit
	burst   int

	idleTTL time.Duration
	maxKeys int
	now     func() time.Time
}

// New returns nil when limiting is disabled (limit <= 0).
func New[K comparable](limit rate.Limit, burst int) *Keyed[K] {
	if limit <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Keyed[K]{
		entries: make(map[K]*entry),
		limit:   limit,
		burst:   burst,
		idleTTL: DefaultIdleTTL,
		maxKeys: DefaultMaxKeys,
		now:     time.Now,
	}
}

// Allow consumes one token from key's bucket.
func (k *Keyed[K]) Allow(key K) bool {
	if k == nil {
		return true
	}

	now := k.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		if len(k.entries) >= k.maxKeys {
			k.evictIdle(now)
		}
		e = &entry{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Len reports the number of tracked keys.
func (k *Keyed[K]) Len() int {
	if k == nil {
		return 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

func (k *Keyed[K]) evictIdle(now time.Time) {
	for key, e := range k.entries {
		if now.Sub(e.lastSeen) > k.idleTTL {
			delete(k.entries, key)
		}
	}
}
