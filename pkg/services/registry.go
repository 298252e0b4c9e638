// Package services provides the capability-indexed service registry that
// results and filters use to resolve collaborators (URL helpers, view
// engines, formatter options) without an ambient container.
package services

import (
	"fmt"
	"sort"
	"sync"
)

// Lifetime describes how a registered capability is produced.
type Lifetime int

const (
	// Singleton capabilities resolve to the same instance every time.
	Singleton Lifetime = iota
	// Transient capabilities are created by their factory on every resolve.
	Transient
)

// String returns the lifetime name.
func (l Lifetime) String() string {
	if l == Transient {
		return "transient"
	}
	return "singleton"
}

// Factory creates a transient service instance.
type Factory func(r *Registry) (any, error)

type entry struct {
	lifetime Lifetime
	instance any
	factory  Factory
}

// Registry maps capability names to services. Registration happens at
// startup; resolution is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string // registration order for deterministic listing
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// RegisterSingleton registers a shared instance. Registering the same
// capability twice replaces the earlier registration.
func (r *Registry) RegisterSingleton(capability string, instance any) {
	r.put(capability, entry{lifetime: Singleton, instance: instance})
}

// RegisterTransient registers a factory called on every resolve.
func (r *Registry) RegisterTransient(capability string, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("services: nil factory for %q", capability))
	}
	r.put(capability, entry{lifetime: Transient, factory: factory})
}

// TryRegisterSingleton registers instance only when capability is unset.
// Returns false if a registration already exists.
func (r *Registry) TryRegisterSingleton(capability string, instance any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[capability]; exists {
		return false
	}
	r.entries[capability] = entry{lifetime: Singleton, instance: instance}
	r.order = append(r.order, capability)
	return true
}

func (r *Registry) put(capability string, e entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[capability]; !exists {
		r.order = append(r.order, capability)
	}
	r.entries[capability] = e
}

// Resolve returns the service for capability. The boolean is false when
// the capability is not registered.
func (r *Registry) Resolve(capability string) (any, bool, error) {
	if r == nil {
		return nil, false, nil
	}
	r.mu.RLock()
	e, ok := r.entries[capability]
	r.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.lifetime == Singleton {
		return e.instance, true, nil
	}
	v, err := e.factory(r)
	if err != nil {
		return nil, true, fmt.Errorf("services: create %q: %w", capability, err)
	}
	return v, true, nil
}

// IsRegistered reports whether capability has a registration.
func (r *Registry) IsRegistered(capability string) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[capability]
	return ok
}

// List returns the registered capabilities sorted by name.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}

// Get resolves capability and asserts it to T. Missing capabilities and
// type mismatches return ok=false.
func Get[T any](r *Registry, capability string) (T, bool) {
	var zero T
	v, ok, err := r.Resolve(capability)
	if !ok || err != nil {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// MustGet is like Get but panics when the capability cannot be resolved.
func MustGet[T any](r *Registry, capability string) T {
	v, ok, err := r.Resolve(capability)
	if err != nil {
		panic(err)
	}
	if !ok {
		panic(fmt.Sprintf("services: %q not registered", capability))
	}
	typed, ok := v.(T)
	if !ok {
		panic(fmt.Sprintf("services: %q has type %T", capability, v))
	}
	return typed
}
