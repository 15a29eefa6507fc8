// Package platform keeps the publisher backends available to the dispatcher.
package platform

import (
	"sort"
	"sync"

	"ContentFactory/internal/ports"
)

// Registry maps platform names to publisher backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]ports.PublisherBackend
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: map[string]ports.PublisherBackend{}}
}

// Register adds or replaces a backend under its platform name.
func (r *Registry) Register(backend ports.PublisherBackend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backends == nil {
		r.backends = map[string]ports.PublisherBackend{}
	}
	r.backends[backend.Platform()] = backend
}

// Backend returns the backend for a platform.
func (r *Registry) Backend(platform string) (ports.PublisherBackend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[platform]
	return b, ok
}

// Platforms lists registered platform names in sorted order.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.backends))
	for name := range r.backends {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AnalyticsSources returns the backends that also report reach feedback.
func (r *Registry) AnalyticsSources() []ports.AnalyticsSource {
	var out []ports.AnalyticsSource
	for _, name := range r.Platforms() {
		b, _ := r.Backend(name)
		if src, ok := b.(ports.AnalyticsSource); ok {
			out = append(out, src)
		}
	}
	return out
}
