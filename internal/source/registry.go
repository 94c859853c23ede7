package source

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Registry maps query locators to the adapter able to serve them. Matching is
// by domain pattern: a query is routed to the first adapter whose registered
// pattern is contained in the query URL's host.
type Registry struct {
	mu      sync.RWMutex
	entries []registryEntry
}

type registryEntry struct {
	pattern string
	adapter Adapter
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register associates a domain pattern (e.g. "hh.ru") with an adapter. Later
// registrations do not shadow earlier ones.
func (r *Registry) Register(domainPattern string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registryEntry{
		pattern: strings.ToLower(strings.TrimSpace(domainPattern)),
		adapter: adapter,
	})
}

// Resolve returns the adapter claiming the query locator, or ErrUnroutableQuery.
func (r *Registry) Resolve(query string) (Adapter, error) {
	parsed, err := url.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %v", ErrUnroutableQuery, query, err)
	}

	host := strings.ToLower(parsed.Host)
	if host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrUnroutableQuery, query)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.pattern != "" && strings.Contains(host, entry.pattern) {
			return entry.adapter, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnroutableQuery, query)
}

// Patterns returns the registered domain patterns, in registration order.
func (r *Registry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	patterns := make([]string, 0, len(r.entries))
	for _, entry := range r.entries {
		patterns = append(patterns, entry.pattern)
	}
	return patterns
}
