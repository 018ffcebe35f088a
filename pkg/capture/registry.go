package capture

import (
	"fmt"
	"slices"
	"sync"
)

// BackendFactory creates a backend instance
type BackendFactory func() (Backend, error)

// Registry maps backend names to factories
type Registry struct {
	factories map[string]BackendFactory
	mu        sync.RWMutex
}

// NewRegistry creates an empty backend registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]BackendFactory),
	}
}

// Register adds or replaces the factory for name
func (r *Registry) Register(name string, factory BackendFactory) error {
	if name == "" {
		return fmt.Errorf("backend name must not be empty")
	}
	if factory == nil {
		return fmt.Errorf("backend %q: nil factory", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
	return nil
}

// Create builds the backend registered under name
func (r *Registry) Create(name string) (Backend, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, NewCaptureError(ErrCodeUnsupportedBackend, name, "",
			fmt.Sprintf("unsupported capture backend: %s", name), nil)
	}

	backend, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", name, err)
	}
	return backend, nil
}

// Names returns the registered backend names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
