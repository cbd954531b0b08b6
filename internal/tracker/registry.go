package tracker

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a configured Client.
type Factory func(cfg *Config) (Client, error)

// Registry manages registered tracker adapters.
// Adapters register themselves at init time.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

var globalRegistry = NewRegistry()

// Register adds a factory to the global registry.
// The name should be lowercase (e.g., "github", "jira").
func Register(name string, factory Factory) {
	globalRegistry.Register(name, factory)
}

// List returns the names of all globally registered trackers.
func List() []string {
	return globalRegistry.List()
}

// New creates a client for the named tracker from the global registry.
func New(name string, cfg *Config) (Client, error) {
	return globalRegistry.New(name, cfg)
}

// Register adds a factory to this registry.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get retrieves a factory, or nil when none is registered.
func (r *Registry) Get(name string) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[name]
}

// List returns the registered names, sorted alphabetically.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates a client for the named tracker.
func (r *Registry) New(name string, cfg *Config) (Client, error) {
	factory := r.Get(name)
	if factory == nil {
		return nil, fmt.Errorf("unknown tracker %q (available: %v)", name, r.List())
	}
	if cfg == nil {
		cfg = NewConfig(name, nil)
	}
	return factory(cfg)
}
