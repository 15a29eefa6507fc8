package scanner

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"ContentFactory/internal/ports"
)

// Category describes a concrete trend listing endpoint provided by config.
type Category struct {
	Name string
	URL  string
}

// Request carries all parameters required to execute a scan.
type Request struct {
	SiteName   string
	Categories []Category
	Platforms  []string
	MinViews   int
	MaxAge     time.Duration
	Now        time.Time
	Options    map[string]string
}

// Accepts applies the view floor, age cap and platform filter of the request.
// An unknown platform or publish time passes the corresponding filter.
func (r Request) Accepts(views int, platform string, published time.Time) bool {
	if views < r.MinViews {
		return false
	}
	if r.MaxAge > 0 && !published.IsZero() && !r.Now.IsZero() && r.Now.Sub(published) > r.MaxAge {
		return false
	}
	if len(r.Platforms) > 0 && platform != "" && !slices.Contains(r.Platforms, platform) {
		return false
	}
	return true
}

// Scanner captures a single trend site strategy (HTML listing, JSON feed, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]ports.TrendSignal, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	mu       sync.RWMutex
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(s Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[s.Name()] = s
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.scanners[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists the registered strategies in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
