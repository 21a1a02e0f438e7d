// Package provider defines the single capability interface the audit
// engine uses to talk to text-generation backends, plus concrete adapters.
// Provider-specific response shapes stay inside each adapter; calling code
// only ever sees Call(prompt, model, temperature) -> text.
package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider is the uniform capability every backend adapter implements.
type Provider interface {
	// Name identifies the provider ("openai", "ollama", ...).
	Name() string
	// Call sends one prompt and returns the generated text. model may be
	// empty to use the adapter's default.
	Call(ctx context.Context, prompt, model string, temperature float64) (string, error)
}

// Registry holds the configured provider adapters by name. It is built at
// startup and passed by reference to the dispatch pool.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces an adapter under its own name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get looks up an adapter by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

// Names lists the configured providers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
