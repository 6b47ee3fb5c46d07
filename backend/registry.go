package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/rendertask"
)

// Entry is a registered backend.
type Entry struct {
	// Name is the unique identifier for this backend.
	Name string

	// Priority determines selection order (higher = preferred).
	Priority int

	// Factory opens a device.
	Factory Factory

	// Available reports if the backend can open a device on this system.
	Available func() bool
}

var globalRegistry = NewRegistry()

// Registry manages registered backends.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewRegistry creates an empty registry. Most code uses the global registry
// through Register and OpenBest.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a backend to the global registry. A nil available means the
// backend is always available. Registering a name again replaces the entry.
func Register(name string, priority int, factory Factory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// Unregister removes a backend from the global registry.
func Unregister(name string) { globalRegistry.Unregister(name) }

// List returns all registered backend names, highest priority first.
func List() []string { return globalRegistry.List() }

// Available returns the names of available backends, highest priority first.
func Available() []string { return globalRegistry.Available() }

// Open opens a device with the named backend.
func Open(name string) (rendertask.Device, error) { return globalRegistry.Open(name) }

// OpenBest opens a device with the highest priority backend that succeeds.
func OpenBest() (rendertask.Device, string, error) { return globalRegistry.OpenBest() }

// Register adds a backend to r.
func (r *Registry) Register(name string, priority int, factory Factory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if available == nil {
		available = func() bool { return true }
	}
	r.entries[name] = &Entry{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a backend from r.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

// List returns all registered backend names sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames(false)
}

// Available returns names of available backends sorted by priority.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedNames(true)
}

// Open opens a device with the named backend.
func (r *Registry) Open(name string) (rendertask.Device, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if !entry.Available() {
		return nil, fmt.Errorf("%w: %q", ErrNotAvailable, name)
	}
	dev, err := entry.Factory()
	if err != nil {
		return nil, fmt.Errorf("backend: open %q: %w", name, err)
	}
	rendertask.Logger().Info("backend opened", "backend", name)
	return dev, nil
}

// OpenBest tries the available backends in priority order and returns the
// first device that opens, with its backend name.
func (r *Registry) OpenBest() (rendertask.Device, string, error) {
	r.mu.RLock()
	available := r.sortedNames(true)
	r.mu.RUnlock()

	if len(available) == 0 {
		return nil, "", ErrNotAvailable
	}
	var lastErr error
	for _, name := range available {
		dev, err := r.Open(name)
		if err == nil {
			return dev, name, nil
		}
		rendertask.Logger().Warn("backend failed, trying next", "backend", name, "err", err)
		lastErr = err
	}
	return nil, "", lastErr
}

// sortedNames returns names sorted by priority, highest first, then by name.
// Caller must hold the read lock.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if onlyAvailable && !e.Available() {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].Name < entries[j].Name
	})
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
