package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/SAM252003/Nehoris/internal/logging"
)

// CallFunc is one attempt at an upstream call.
type CallFunc func(ctx context.Context) (string, error)

// retryable lets providers mark errors as non-retryable (e.g. bad API key).
// Anything that doesn't implement it is treated as retryable.
type retryable interface {
	Retryable() bool
}

// RetryConfig tunes the retry loop around a guarded call.
type RetryConfig struct {
	MaxRetries  int     // attempts beyond the first
	BackoffBase float64 // sleep base^attempt seconds between attempts
}

// DefaultRetryConfig mirrors the defaults used for provider calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 2, BackoffBase: 1.5}
}

// Guard composes a circuit breaker with retry-with-backoff around a call.
// It takes a callable and returns its result through the same guarded path
// every time: consult the breaker, attempt with retries, record each
// outcome against the breaker, surface the final error.
type Guard struct {
	Provider string
	Breaker  *Breaker
	Retry    RetryConfig

	sleep func(ctx context.Context, d time.Duration) error // test hook
}

// NewGuard builds a guard for one provider's breaker.
func NewGuard(provider string, breaker *Breaker, retry RetryConfig) *Guard {
	return &Guard{Provider: provider, Breaker: breaker, Retry: retry, sleep: sleepCtx}
}

// Do runs the call under the breaker with retries. When the breaker is open
// and cooling down the call fails immediately with ErrUnavailable and no
// upstream attempt is made.
func (g *Guard) Do(ctx context.Context, call CallFunc) (string, error) {
	if !g.Breaker.Allow() {
		logging.APIDebug("[%s] breaker open, refusing call", g.Provider)
		return "", fmt.Errorf("%s: %w", g.Provider, ErrUnavailable)
	}

	var lastErr error
	for attempt := 0; attempt <= g.Retry.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(math.Pow(g.Retry.BackoffBase, float64(attempt-1)) * float64(time.Second))
			logging.APIDebug("[%s] attempt %d/%d failed, backing off %v: %v",
				g.Provider, attempt, g.Retry.MaxRetries+1, wait, lastErr)
			if err := g.sleep(ctx, wait); err != nil {
				return "", err
			}
		}

		result, err := call(ctx)
		if err == nil {
			g.Breaker.RecordSuccess()
			return result, nil
		}

		lastErr = err
		g.Breaker.RecordFailure()

		var r retryable
		if asRetryable(err, &r) && !r.Retryable() {
			logging.APIDebug("[%s] non-retryable error: %v", g.Provider, err)
			return "", err
		}
		if ctx.Err() != nil {
			return "", lastErr
		}
	}

	logging.Get(logging.CategoryAPI).Warnf("[%s] all %d attempts failed: %v",
		g.Provider, g.Retry.MaxRetries+1, lastErr)
	return "", lastErr
}

func asRetryable(err error, target *retryable) bool {
	for err != nil {
		if r, ok := err.(retryable); ok {
			*target = r
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
