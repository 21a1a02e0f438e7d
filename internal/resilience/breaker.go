// Package resilience wraps outbound provider calls with a per-provider
// circuit breaker and retry-with-backoff. Breakers are created once per
// provider and shared by every concurrent call to it; all state updates
// are atomic with respect to call outcomes.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrUnavailable is returned when a call is refused because the breaker is
// open and the cooldown has not expired. No upstream call is attempted.
var ErrUnavailable = errors.New("provider unavailable: circuit breaker open")

// State is the breaker's position in its lifecycle.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	Cooldown         time.Duration // open duration before a half-open probe
}

// DefaultBreakerConfig returns the defaults used for every provider.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         60 * time.Second,
	}
}

// Breaker is a per-provider circuit breaker.
//
// Transitions:
//   - Closed -> Open when failureCount reaches FailureThreshold
//   - Open -> HalfOpen once now-lastFailure > Cooldown; exactly one caller
//     wins the probe slot no matter how many ask concurrently
//   - success in Closed or HalfOpen resets the count and closes the breaker
//   - failure in HalfOpen reopens and restarts the cooldown
type Breaker struct {
	mu           sync.Mutex
	state        State
	failureCount int
	lastFailure  time.Time
	config       BreakerConfig
	now          func() time.Time // test hook
}

// NewBreaker creates a breaker in the Closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{state: Closed, config: config, now: time.Now}
}

// Allow reports whether a call may proceed, claiming the half-open probe
// slot when the cooldown has expired. Callers that receive false must fail
// immediately with ErrUnavailable.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.lastFailure) > b.config.Cooldown {
			b.state = HalfOpen
			return true // this caller is the probe
		}
		return false
	default: // HalfOpen: probe already in flight
		return false
	}
}

// Available reports whether a call would currently be admitted, without
// claiming the probe slot.
func (b *Breaker) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true
	case Open:
		return b.now().Sub(b.lastFailure) > b.config.Cooldown
	default:
		return false
	}
}

// RecordSuccess resets the failure count and closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.state = Closed
}

// RecordFailure counts a failure. A failing half-open probe reopens the
// breaker; in Closed, reaching the threshold opens it.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	b.lastFailure = b.now()
	if b.state == HalfOpen || b.failureCount >= b.config.FailureThreshold {
		b.state = Open
	}
}

// Stats is a point-in-time snapshot of breaker state.
type Stats struct {
	State        State     `json:"state"`
	FailureCount int       `json:"failure_count"`
	LastFailure  time.Time `json:"last_failure"`
	Available    bool      `json:"available"`
}

// Snapshot returns the current breaker stats. State and Available are read
// under one lock so they always agree.
func (b *Breaker) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	var available bool
	switch b.state {
	case Closed:
		available = true
	case Open:
		available = b.now().Sub(b.lastFailure) > b.config.Cooldown
	}
	return Stats{
		State:        b.state,
		FailureCount: b.failureCount,
		LastFailure:  b.lastFailure,
		Available:    available,
	}
}

// Reset forces the breaker back to Closed with a clean slate.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failureCount = 0
	b.lastFailure = time.Time{}
}
