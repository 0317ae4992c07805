// Package ratelimit provides a token bucket limiter for upstream API calls.
// file: internal/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// MaxWait is the longest a caller is queued before the request is refused.
const MaxWait = 5 * time.Second

// ErrRateLimited is returned when a token would not be available within MaxWait.
var ErrRateLimited = errors.New("rate limit exceeded: try again later")

// Limiter implements a token bucket. A nil *Limiter or a non-positive rate
// never limits.
type Limiter struct {
	rate       float64 // Tokens added per second.
	burstLimit int
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// New creates a limiter with a full bucket.
func New(rate float64, burstLimit int) *Limiter {
	if burstLimit < 1 {
		burstLimit = 1
	}
	return &Limiter{
		rate:       rate,
		burstLimit: burstLimit,
		tokens:     float64(burstLimit),
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// reserve takes a token and returns how long the caller must wait before
// using it. Tokens may go negative; later callers queue behind earlier ones.
func (l *Limiter) reserve() (time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.tokens += now.Sub(l.lastUpdate).Seconds() * l.rate
	if l.tokens > float64(l.burstLimit) {
		l.tokens = float64(l.burstLimit)
	}
	l.lastUpdate = now

	if l.tokens >= 1 {
		l.tokens--
		return 0, nil
	}
	wait := time.Duration((1 - l.tokens) / l.rate * float64(time.Second))
	if wait > MaxWait {
		return 0, ErrRateLimited
	}
	l.tokens--
	return wait, nil
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.rate <= 0 {
		return ctx.Err()
	}
	wait, err := l.reserve()
	if err != nil {
		return err
	}
	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		l.refund()
		return ctx.Err()
	}
}

func (l *Limiter) refund() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tokens++
}

// SetRateLimit updates the rate and burst limit.
func (l *Limiter) SetRateLimit(rate float64, burstLimit int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if burstLimit < 1 {
		burstLimit = 1
	}
	l.rate = rate
	l.burstLimit = burstLimit
	if l.tokens > float64(burstLimit) {
		l.tokens = float64(burstLimit)
	}
}
