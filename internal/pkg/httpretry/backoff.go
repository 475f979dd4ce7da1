package httpretry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays: base * 2^(attempt-1), capped at Max.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter bool
}

// Delay returns the wait before the given retry attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if b.Max > 0 && exp > float64(b.Max) {
		exp = float64(b.Max)
	}
	if !b.Jitter {
		return time.Duration(exp)
	}

	// Full jitter with a 100ms floor to avoid busy-looping.
	jittered := time.Duration(rand.Float64() * exp)
	if jittered < 100*time.Millisecond {
		jittered = 100 * time.Millisecond
	}
	return jittered
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
