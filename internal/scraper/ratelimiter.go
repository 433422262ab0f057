package scraper

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/openct/openct-cms/internal/metrics"
)

// RateLimiter keeps one token bucket per portal host so a slow campus
// server is not hammered while other institutions sync in parallel.
type RateLimiter struct {
	limit   rate.Limit
	burst   int
	metrics *metrics.Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a limiter allowing rps requests per second per host.
// rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int, m *metrics.Metrics) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		metrics:  m,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, host string) error {
	if r.limit == rate.Inf {
		return nil
	}

	start := time.Now()
	err := r.limiter(host).Wait(ctx)
	r.metrics.RecordRateLimiterWait(time.Since(start).Seconds())
	return err
}

func (r *RateLimiter) limiter(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[host]
	if !ok {
		l = rate.NewLimiter(r.limit, r.burst)
		r.limiters[host] = l
	}
	return l
}
