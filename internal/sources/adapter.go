// Package sources defines the adapter boundary between the aggregation
// pipeline and the individual vehicle marketplaces. Each source implements
// SourceAdapter; the registry maps source IDs to configured adapter
// instances for the dispatcher.
package sources

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/carlookout/server/internal/domain/listings"
)

var (
	// ErrTimeout marks a source call that exceeded its per-source deadline.
	ErrTimeout = errors.New("source timed out")
	// ErrSource marks a non-timeout source failure (HTTP error, bad payload).
	ErrSource = errors.New("source error")
)

// SourceAdapter fetches and normalizes listings from one marketplace.
// Implementations must return fully standardized RawListings and drop
// malformed records before returning. Search respects ctx cancellation.
type SourceAdapter interface {
	// ID returns the source identifier, e.g. "ebay".
	ID() string
	// Search fetches up to limit listings matching the query and filters.
	Search(ctx context.Context, query string, filters listings.FilterSet, limit int) ([]listings.RawListing, error)
}

// Registry maps source IDs to configured adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]SourceAdapter
	configs  map[string]SourceConfig
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]SourceAdapter),
		configs:  make(map[string]SourceConfig),
	}
}

// Register adds an adapter under its config. Registering the same ID twice
// replaces the previous adapter.
func (r *Registry) Register(cfg SourceConfig, adapter SourceAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[cfg.Name] = adapter
	r.configs[cfg.Name] = cfg
}

// Get returns the adapter for a source ID.
func (r *Registry) Get(id string) (SourceAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("source %q not registered", id)
	}
	return a, nil
}

// Config returns the registered config for a source ID.
func (r *Registry) Config(id string) (SourceConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	return cfg, ok
}

// Enabled returns the IDs of all enabled sources sorted by ascending
// priority, then name. This is the default source set for a search.
func (r *Registry) Enabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		if r.configs[id].Enabled {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := r.configs[ids[i]].Priority, r.configs[ids[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// All returns every registered source ID, enabled or not, sorted by name.
func (r *Registry) All() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
