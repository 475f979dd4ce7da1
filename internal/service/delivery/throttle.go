package delivery

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/ignite/outreach-pipeline/internal/pkg/metrics"
)

// Limiter blocks until one more send is allowed or ctx is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// RateLimitedError is returned by a Limiter that will not wait as long as
// its window needs. Nothing was sent; retry after RetryAfter.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("send rate limit reached, retry in %s", e.RetryAfter)
}

// NewRateLimiter returns an in-process token bucket admitting perSecond
// sends per second with a burst of the same size.
func NewRateLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}

// Throttled wraps an Adapter so every send first waits on each limiter in
// order. It also records provider latency.
type Throttled struct {
	next     Adapter
	provider string
	limiters []Limiter
}

// NewThrottled wraps next. Nil limiters are ignored.
func NewThrottled(next Adapter, provider string, limiters ...Limiter) *Throttled {
	t := &Throttled{next: next, provider: provider}
	for _, l := range limiters {
		if l != nil {
			t.limiters = append(t.limiters, l)
		}
	}
	return t
}

// Send implements Adapter.
func (t *Throttled) Send(ctx context.Context, msg Message) (string, error) {
	for _, l := range t.limiters {
		if err := l.Wait(ctx); err != nil {
			return "", err
		}
	}
	start := time.Now()
	id, err := t.next.Send(ctx, msg)
	metrics.ProviderSendDuration.WithLabelValues(t.provider).Observe(time.Since(start).Seconds())
	return id, err
}
