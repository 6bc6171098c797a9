package pglisten

import (
	"sort"
	"sync"
)

// SubscriptionRegistry is the set of channels the session should be listening on.
// It survives reconnects and is replayed against every new connection.
type SubscriptionRegistry struct {
	mu       sync.Mutex
	channels map[string]struct{}
}

// NewSubscriptionRegistry creates an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{channels: make(map[string]struct{})}
}

// Add records channel. It reports false if it was already recorded.
func (r *SubscriptionRegistry) Add(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[channel]; ok {
		return false
	}
	r.channels[channel] = struct{}{}
	return true
}

// Remove forgets channel. It reports false if it was not recorded.
func (r *SubscriptionRegistry) Remove(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.channels[channel]; !ok {
		return false
	}
	delete(r.channels, channel)
	return true
}

// Clear forgets every channel.
func (r *SubscriptionRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.channels)
}

// Has reports whether channel is recorded.
func (r *SubscriptionRegistry) Has(channel string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.channels[channel]
	return ok
}

// Len returns the number of recorded channels.
func (r *SubscriptionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// Snapshot returns the recorded channels, sorted.
func (r *SubscriptionRegistry) Snapshot() []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.channels))
	for ch := range r.channels {
		out = append(out, ch)
	}
	r.mu.Unlock()

	sort.Strings(out)
	return out
}
