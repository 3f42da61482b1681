package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key inside the process.
// Buckets idle for longer than the idle TTL are dropped.
type MemoryLimiter struct {
	cfg     Config
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	cfg = cfg.normalized()
	idle := 5 * cfg.Window
	if idle < 5*time.Minute {
		idle = 5 * time.Minute
	}
	return &MemoryLimiter{
		cfg:     cfg,
		idleTTL: idle,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	b, ok := l.buckets[l.cfg.key(key)]
	if !ok {
		every := l.cfg.Window / time.Duration(l.cfg.Requests)
		b = &bucket{lim: rate.NewLimiter(rate.Every(every), l.cfg.Requests)}
		l.buckets[l.cfg.key(key)] = b
	}
	b.lastSeen = now

	decision := Decision{Limit: l.cfg.Requests}

	r := b.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		decision.RetryAfter = delay
		return decision, nil
	}

	decision.Allowed = true
	decision.Remaining = max(int(b.lim.TokensAt(now)), 0)
	return decision, nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < time.Minute {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.idleTTL {
			delete(l.buckets, k)
		}
	}
}

// Len reports how many keys are currently tracked
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
