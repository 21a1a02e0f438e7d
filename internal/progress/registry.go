package progress

import "sync"

// Registry maps campaign IDs to their brokers.
type Registry struct {
	mu      sync.Mutex
	brokers map[string]*Broker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{brokers: make(map[string]*Broker)}
}

// GetOrCreate returns the broker for a campaign, creating it on first use.
func (r *Registry) GetOrCreate(campaignID string) *Broker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.brokers[campaignID]
	if !ok {
		b = NewBroker()
		r.brokers[campaignID] = b
	}
	return b
}

// Get returns the broker for a campaign, or nil if none exists.
func (r *Registry) Get(campaignID string) *Broker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.brokers[campaignID]
}

// Remove closes and forgets a campaign's broker.
func (r *Registry) Remove(campaignID string) {
	r.mu.Lock()
	b := r.brokers[campaignID]
	delete(r.brokers, campaignID)
	r.mu.Unlock()
	if b != nil {
		b.Close()
	}
}
