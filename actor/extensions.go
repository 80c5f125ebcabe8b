package actor

import (
	"reflect"
	"sync"
)

// ExtensionFactory lazily constructs an extension's singleton instance
// the first time it is looked up on a given system.
type ExtensionFactory func(system *ActorSystem) (any, error)

// ExtensionRegistry is a typed singleton registry keyed by the extension
// value's static type, with double-checked-locking construction so two
// concurrent first-lookups never construct two instances.
type ExtensionRegistry struct {
	mu         sync.Mutex
	factories  map[reflect.Type]ExtensionFactory
	instances  map[reflect.Type]any
}

// NewExtensionRegistry constructs an empty registry.
func NewExtensionRegistry() *ExtensionRegistry {
	return &ExtensionRegistry{
		factories: make(map[reflect.Type]ExtensionFactory),
		instances: make(map[reflect.Type]any),
	}
}

// RegisterExtension installs factory under T's static type. Registering
// the same type twice replaces the factory only if no instance has been
// constructed yet; once constructed, an extension is immutable for the
// lifetime of the system.
func RegisterExtension[T any](r *ExtensionRegistry, factory func(system *ActorSystem) (T, error)) {
	key := reflect.TypeOf((*T)(nil)).Elem()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, built := r.instances[key]; built {
		return
	}
	r.factories[key] = func(system *ActorSystem) (any, error) {
		return factory(system)
	}
}

// Extension looks up (constructing on first use) the singleton of type T.
// It returns ErrExtensionNotRegistered if no factory was ever installed.
func Extension[T any](r *ExtensionRegistry, system *ActorSystem) (T, error) {
	key := reflect.TypeOf((*T)(nil)).Elem()

	var zero T

	r.mu.Lock()
	if inst, ok := r.instances[key]; ok {
		r.mu.Unlock()
		return inst.(T), nil
	}
	factory, ok := r.factories[key]
	if !ok {
		r.mu.Unlock()
		return zero, ErrExtensionNotRegistered
	}
	r.mu.Unlock()

	inst, err := factory(system)
	if err != nil {
		return zero, err
	}

	r.mu.Lock()
	if existing, ok := r.instances[key]; ok {
		r.mu.Unlock()
		return existing.(T), nil
	}
	r.instances[key] = inst
	r.mu.Unlock()

	return inst.(T), nil
}
