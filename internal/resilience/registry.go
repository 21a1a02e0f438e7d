package resilience

import "sync"

// Registry owns one breaker per provider. It is passed explicitly to the
// dispatch pool and orchestrator so independent engine instances never
// share breaker state.
type Registry struct {
	mu       sync.Mutex
	config   BreakerConfig
	breakers map[string]*Breaker
}

// NewRegistry creates an empty registry; breakers are created on first use
// with the given config.
func NewRegistry(config BreakerConfig) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]*Breaker),
	}
}

// Get returns the breaker for a provider, creating it on first call.
// Breakers live for the registry's lifetime and are never removed.
func (r *Registry) Get(provider string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[provider]
	if !ok {
		b = NewBreaker(r.config)
		r.breakers[provider] = b
	}
	return b
}

// StatsAll returns a snapshot of every known breaker, keyed by provider.
func (r *Registry) StatsAll() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.Snapshot()
	}
	return out
}

// Reset manually closes the breaker for a provider. Returns false when the
// provider has never been seen.
func (r *Registry) Reset(provider string) bool {
	r.mu.Lock()
	b, ok := r.breakers[provider]
	r.mu.Unlock()
	if !ok {
		return false
	}
	b.Reset()
	return true
}
