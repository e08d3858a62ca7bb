// Package ratelimit provides token-bucket limiters for the WebSocket
// message path and the credential endpoints.
package ratelimit

import (
	"sync"
	"time"
)

type Limiter struct {
	rate       float64
	burst      int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		lastUpdate: time.Now(),
	}
}

func (l *Limiter) Allow() bool {
	return l.AllowN(1)
}

func (l *Limiter) AllowN(n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastUpdate).Seconds()
	l.lastUpdate = now

	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}

	if l.tokens >= float64(n) {
		l.tokens -= float64(n)
		return true
	}

	return false
}

// Keyed holds one Limiter per key, for per-IP throttling of the
// register and login endpoints.
type Keyed struct {
	limiters map[string]*Limiter
	rate     float64
	burst    int
	mu       sync.RWMutex
}

func NewKeyed(rate float64, burst int) *Keyed {
	return &Keyed{
		limiters: make(map[string]*Limiter),
		rate:     rate,
		burst:    burst,
	}
}

// Allow reports whether the caller behind key may proceed. Buckets are
// created on first use; the map is reset wholesale once it grows past
// 10k keys, which only refills buckets and never blocks anyone.
func (k *Keyed) Allow(key string) bool {
	k.mu.RLock()
	limiter, ok := k.limiters[key]
	k.mu.RUnlock()

	if ok {
		return limiter.Allow()
	}

	k.mu.Lock()
	if len(k.limiters) > 10000 {
		k.limiters = make(map[string]*Limiter)
	}
	limiter, ok = k.limiters[key]
	if !ok {
		limiter = NewLimiter(k.rate, k.burst)
		k.limiters[key] = limiter
	}
	k.mu.Unlock()

	return limiter.Allow()
}
