package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate limit check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts calls per key. Implementations are safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Config bounds calls to Requests per Window for each key
type Config struct {
	Requests  int
	Window    time.Duration
	KeyPrefix string
}

func (c Config) normalized() Config {
	if c.Requests <= 0 {
		c.Requests = 1
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	return c
}

func (c Config) key(k string) string {
	if c.KeyPrefix == "" {
		return k
	}
	return c.KeyPrefix + ":" + k
}
