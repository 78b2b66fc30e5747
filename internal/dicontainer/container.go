// Package dicontainer is a small type-keyed dependency container with
// cycle detection, a Go port of the original CardinalContext
// (original_source/src/crates/base/src/context.rs). It is used only at
// startup to wire the destination index and plugin container; it is off
// the request hot path.
package dicontainer

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cardinal-rs/cardinal/internal/cardinalerrors"
)

// Scope controls whether a provider's value is memoized.
type Scope int

const (
	Singleton Scope = iota
	Transient
)

// Provider builds a value of some registered type. The container passes
// itself so providers can pull their own dependencies via Get.
type Provider func(c *Container) (interface{}, error)

// Container is a type-keyed singleton/transient cache with cycle
// detection, mirroring CardinalContext::get.
type Container struct {
	mu           sync.RWMutex
	providers    map[reflect.Type]Provider
	scopes       map[reflect.Type]Scope
	singletons   map[reflect.Type]interface{}
	constructing map[reflect.Type]bool
	cmu          sync.Mutex
}

// New creates an empty container.
func New() *Container {
	return &Container{
		providers:    map[reflect.Type]Provider{},
		scopes:       map[reflect.Type]Scope{},
		singletons:   map[reflect.Type]interface{}{},
		constructing: map[reflect.Type]bool{},
	}
}

// Register associates a provider and scope with type T, keyed by T's
// reflect.Type (e.g. Register[*Foo] or Register[Foo]).
func Register[T any](c *Container, scope Scope, provider func(c *Container) (T, error)) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes[t] = scope
	c.providers[t] = func(c *Container) (interface{}, error) {
		return provider(c)
	}
}

// Get lazily constructs (or returns the cached) value for type T.
func Get[T any](c *Container) (T, error) {
	var zero T
	t := reflect.TypeOf((*T)(nil)).Elem()

	c.mu.RLock()
	scope, scoped := c.scopes[t]
	provider, registered := c.providers[t]
	c.mu.RUnlock()

	if !scoped || !registered {
		return zero, fmt.Errorf("%w: %s", cardinalerrors.ErrProviderNotRegistered, t)
	}

	if scope == Singleton {
		c.mu.RLock()
		if v, ok := c.singletons[t]; ok {
			c.mu.RUnlock()
			typed, ok := v.(T)
			if !ok {
				return zero, cardinalerrors.ErrTypeMismatch
			}
			return typed, nil
		}
		c.mu.RUnlock()
	}

	if err := c.markConstructing(t); err != nil {
		return zero, err
	}
	defer c.unmarkConstructing(t)

	value, err := provider(c)
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %v", cardinalerrors.ErrProviderFailed, t, err)
	}

	typed, ok := value.(T)
	if !ok {
		return zero, cardinalerrors.ErrTypeMismatch
	}

	if scope == Singleton {
		c.mu.Lock()
		if existing, ok := c.singletons[t]; ok {
			c.mu.Unlock()
			return existing.(T), nil
		}
		c.singletons[t] = typed
		c.mu.Unlock()
	}

	return typed, nil
}

func (c *Container) markConstructing(t reflect.Type) error {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	if c.constructing[t] {
		return fmt.Errorf("%w: %s", cardinalerrors.ErrDependencyCycle, t)
	}
	c.constructing[t] = true
	return nil
}

func (c *Container) unmarkConstructing(t reflect.Type) {
	c.cmu.Lock()
	defer c.cmu.Unlock()
	delete(c.constructing, t)
}
