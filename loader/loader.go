// Package loader resolves component references to component instances.
// The Registry is the default implementation: a thread-safe factory
// table components are registered into by name.
package loader

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/berrylands/noflo/component"
	"github.com/berrylands/noflo/errors"
)

// Factory creates a component instance. The metadata is the graph node
// metadata of the node being instantiated.
type Factory func(metadata map[string]any) (component.Component, error)

// Loader is the contract the network coordinator consumes
type Loader interface {
	Load(name string, metadata map[string]any) (component.Component, error)
}

// Registry manages component factories by name
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewRegistry creates an empty component registry
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// Register adds a factory under the given name.
// Returns an error if a factory with the same name is already registered.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("factory name must not be empty"),
			"Registry", "Register", "name validation")
	}
	if factory == nil {
		return errors.WrapInvalid(
			fmt.Errorf("factory for '%s' must not be nil", name),
			"Registry", "Register", "factory validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrFactoryExists, name),
			"Registry", "Register", "duplicate factory check")
	}
	r.factories[name] = factory
	r.logger.Debug("Registered component factory", "component", name)
	return nil
}

// Load instantiates a component by factory name
func (r *Registry) Load(name string, metadata map[string]any) (component.Component, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrComponentUnknown, name),
			"Registry", "Load", "factory lookup")
	}

	instance, err := factory(metadata)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Load", fmt.Sprintf("component %s instantiation", name))
	}
	r.logger.Debug("Loaded component", "component", name)
	return instance, nil
}

// Names lists registered factory names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
