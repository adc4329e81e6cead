package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterStore hands out one token bucket per key, e.g. per data provider.
type LimiterStore struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	r        rate.Limit
	burst    int
}

func NewLimiterStore(r rate.Limit, burst int) *LimiterStore {
	return &LimiterStore{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		burst:    burst,
	}
}

// PerMinute builds a store allowing n requests per minute per key.
func PerMinute(n int) *LimiterStore {
	if n <= 0 {
		return NewLimiterStore(rate.Inf, 1)
	}
	return NewLimiterStore(rate.Every(time.Minute/time.Duration(n)), n)
}

func (s *LimiterStore) GetLimiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limiter, exists := s.limiters[key]; exists {
		return limiter
	}
	limiter := rate.NewLimiter(s.r, s.burst)
	s.limiters[key] = limiter
	return limiter
}

// Wait blocks until key has a token or ctx is done.
func (s *LimiterStore) Wait(ctx context.Context, key string) error {
	return s.GetLimiter(key).Wait(ctx)
}
