package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cuecardhq/cuecard/internal/suggest"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	suggestions map[string]func(ProviderEntry) (suggest.Source, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		suggestions: make(map[string]func(ProviderEntry) (suggest.Source, error)),
	}
}

// RegisterSuggestions registers a suggestion source factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSuggestions(name string, factory func(ProviderEntry) (suggest.Source, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggestions[name] = factory
}

// CreateSuggestions instantiates a suggestion source using the factory
// registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateSuggestions(entry ProviderEntry) (suggest.Source, error) {
	r.mu.RLock()
	factory, ok := r.suggestions[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: suggestions/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
