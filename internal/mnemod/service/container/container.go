// Package container implements the dependency-injection container that
// backs the dispatch runtime. Capabilities are registered under string
// keys with an explicit lifetime scope and resolved lazily through
// factories.
package container

import (
	"sync"

	"github.com/mnemora/mnemora/internal/mnemod/service/errno"
	"github.com/mnemora/mnemora/pkg/logger"
)

// Scope controls the lifetime of constructed instances.
type Scope string

const (
	// ScopeSingleton builds one instance per container, reused forever.
	ScopeSingleton Scope = "singleton"
	// ScopeRequest builds one instance per request window, discarded on
	// ClearRequestScope.
	ScopeRequest Scope = "request"
	// ScopeTransient builds a fresh instance on every resolution.
	ScopeTransient Scope = "transient"
)

// Factory constructs an instance. Dependencies are pulled through the
// supplied Resolver so the container can track the resolution chain.
type Factory func(r Resolver) (interface{}, error)

// Resolver resolves capabilities. Factories receive a Resolver scoped to
// the active resolution chain so circular dependencies are detected per
// chain rather than globally.
type Resolver interface {
	// Resolve returns the instance for the capability's most recent
	// registration.
	Resolve(capability string) (interface{}, error)
	// ResolveNamed returns the instance registered under the given name.
	ResolveNamed(capability, name string) (interface{}, error)
	// ResolveAll returns one instance per registration, in registration
	// order.
	ResolveAll(capability string) ([]interface{}, error)
}

type provider struct {
	name    string
	scope   Scope
	factory Factory

	mu        sync.Mutex
	built     bool
	singleton interface{}
}

// Container is a hierarchical dependency-injection container. Children
// fall back to their parent for capabilities they do not register locally.
type Container struct {
	mu        sync.RWMutex
	providers map[string][]*provider
	requests  map[string]map[string]interface{}
	parent    *Container
}

// New creates an empty root container.
func New() *Container {
	return &Container{
		providers: make(map[string][]*provider),
		requests:  make(map[string]map[string]interface{}),
	}
}

// CreateChild creates a container that overlays this one. Registrations on
// the child shadow the parent's; resolution falls back to the parent when
// the child has no local registration.
func (c *Container) CreateChild() *Container {
	child := New()
	child.parent = c
	return child
}

// Register adds a factory-backed registration for the capability. An empty
// name is allowed; the most recent registration wins unnamed resolution.
func (c *Container) Register(capability, name string, scope Scope, factory Factory) error {
	if capability == "" {
		return errno.New(errno.KindConstructionFailed, "capability key must not be empty")
	}
	if factory == nil {
		return errno.New(errno.KindConstructionFailed, "capability %s: factory must not be nil", capability)
	}

	switch scope {
	case ScopeSingleton, ScopeRequest, ScopeTransient:
	default:
		return errno.New(errno.KindConstructionFailed, "capability %s: unknown scope %q", capability, scope)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.providers[capability] = append(c.providers[capability], &provider{
		name:    name,
		scope:   scope,
		factory: factory,
	})

	logger.Debug("[Container] registered capability %s (name=%q, scope=%s)", capability, name, scope)
	return nil
}

// RegisterInstance registers an already-built instance as a singleton.
func (c *Container) RegisterInstance(capability, name string, instance interface{}) error {
	if capability == "" {
		return errno.New(errno.KindConstructionFailed, "capability key must not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.providers[capability] = append(c.providers[capability], &provider{
		name:      name,
		scope:     ScopeSingleton,
		built:     true,
		singleton: instance,
	})

	return nil
}

// Has reports whether the capability is registered here or in an ancestor.
func (c *Container) Has(capability string) bool {
	c.mu.RLock()
	local := len(c.providers[capability]) > 0
	c.mu.RUnlock()

	if local {
		return true
	}
	if c.parent != nil {
		return c.parent.Has(capability)
	}
	return false
}

// HasNamed reports whether the capability has a registration under the
// given name, here or in an ancestor.
func (c *Container) HasNamed(capability, name string) bool {
	c.mu.RLock()
	found := false
	for _, p := range c.providers[capability] {
		if p.name == name {
			found = true
			break
		}
	}
	c.mu.RUnlock()

	if found {
		return true
	}
	if c.parent != nil {
		return c.parent.HasNamed(capability, name)
	}
	return false
}

// Unregister removes every local registration for the capability. Parent
// registrations are untouched. It reports whether anything was removed.
func (c *Container) Unregister(capability string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.providers[capability]
	delete(c.providers, capability)
	delete(c.requests, capability)
	return ok
}

// UnregisterNamed removes the local registrations carrying the given name,
// leaving the capability's other registrations in place. It reports whether
// anything was removed.
func (c *Container) UnregisterNamed(capability, name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Readers iterate the providers slice after dropping the lock, so
	// filter into a fresh slice instead of compacting in place.
	providers := c.providers[capability]
	kept := make([]*provider, 0, len(providers))
	removed := false
	for _, p := range providers {
		if p.name == name {
			removed = true
			continue
		}
		kept = append(kept, p)
	}

	if !removed {
		return false
	}

	if len(kept) == 0 {
		delete(c.providers, capability)
		delete(c.requests, capability)
	} else {
		c.providers[capability] = kept
		if cached := c.requests[capability]; cached != nil {
			delete(cached, name)
		}
	}
	return true
}

// ClearRequestScope discards every request-scoped instance held by this
// container. Singletons survive.
func (c *Container) ClearRequestScope() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = make(map[string]map[string]interface{})
}

// Resolve returns the instance for the capability's most recent
// registration, constructing it if needed.
func (c *Container) Resolve(capability string) (interface{}, error) {
	return c.newChain().Resolve(capability)
}

// ResolveNamed returns the instance registered under the given name.
func (c *Container) ResolveNamed(capability, name string) (interface{}, error) {
	return c.newChain().ResolveNamed(capability, name)
}

// ResolveAll returns one instance per registration, in registration order.
func (c *Container) ResolveAll(capability string) ([]interface{}, error) {
	return c.newChain().ResolveAll(capability)
}

func (c *Container) newChain() *chain {
	return &chain{container: c, resolving: make(map[string]bool)}
}

// chain is a single resolution walk. It carries the set of capabilities
// currently being constructed so cycles are caught per walk, not across
// concurrent resolutions of the same capability.
type chain struct {
	container *Container
	resolving map[string]bool
	path      []string
}

var _ Resolver = (*chain)(nil)

func (ch *chain) Resolve(capability string) (interface{}, error) {
	return ch.resolve(capability, "", false)
}

func (ch *chain) ResolveNamed(capability, name string) (interface{}, error) {
	return ch.resolve(capability, name, true)
}

func (ch *chain) ResolveAll(capability string) ([]interface{}, error) {
	c := ch.container
	for c != nil {
		c.mu.RLock()
		providers := c.providers[capability]
		c.mu.RUnlock()

		if len(providers) > 0 {
			out := make([]interface{}, 0, len(providers))
			for _, p := range providers {
				inst, err := ch.instantiate(c, capability, p)
				if err != nil {
					return nil, err
				}
				out = append(out, inst)
			}
			return out, nil
		}
		c = c.parent
	}

	return nil, errno.New(errno.KindDependencyNotRegistered, "capability %s is not registered", capability)
}

func (ch *chain) resolve(capability, name string, named bool) (interface{}, error) {
	c := ch.container
	for c != nil {
		c.mu.RLock()
		providers := c.providers[capability]
		c.mu.RUnlock()

		if named {
			for _, p := range providers {
				if p.name == name {
					return ch.instantiate(c, capability, p)
				}
			}
		} else if len(providers) > 0 {
			return ch.instantiate(c, capability, providers[len(providers)-1])
		}
		c = c.parent
	}

	if named {
		return nil, errno.New(errno.KindDependencyNotRegistered,
			"capability %s has no registration named %q", capability, name)
	}
	return nil, errno.New(errno.KindDependencyNotRegistered, "capability %s is not registered", capability)
}

func (ch *chain) instantiate(owner *Container, capability string, p *provider) (interface{}, error) {
	key := capability + "\x00" + p.name
	if ch.resolving[key] {
		return nil, errno.New(errno.KindCircularDependency,
			"circular dependency: %s", cyclePath(ch.path, capability))
	}

	switch p.scope {
	case ScopeSingleton:
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.built {
			return p.singleton, nil
		}
		inst, err := ch.build(capability, key, p)
		if err != nil {
			return nil, err
		}
		p.built = true
		p.singleton = inst
		return inst, nil

	case ScopeRequest:
		owner.mu.Lock()
		if cached, ok := owner.requests[capability][p.name]; ok {
			owner.mu.Unlock()
			return cached, nil
		}
		owner.mu.Unlock()

		inst, err := ch.build(capability, key, p)
		if err != nil {
			return nil, err
		}

		owner.mu.Lock()
		if owner.requests[capability] == nil {
			owner.requests[capability] = make(map[string]interface{})
		}
		owner.requests[capability][p.name] = inst
		owner.mu.Unlock()
		return inst, nil

	default:
		return ch.build(capability, key, p)
	}
}

func (ch *chain) build(capability, key string, p *provider) (interface{}, error) {
	ch.resolving[key] = true
	ch.path = append(ch.path, capability)
	defer func() {
		delete(ch.resolving, key)
		ch.path = ch.path[:len(ch.path)-1]
	}()

	inst, err := p.factory(ch)
	if err != nil {
		if errno.IsKind(err, errno.KindCircularDependency) ||
			errno.IsKind(err, errno.KindDependencyNotRegistered) {
			return nil, err
		}
		return nil, errno.Wrap(errno.KindConstructionFailed, err,
			"capability %s could not be constructed", capability)
	}
	return inst, nil
}

func cyclePath(path []string, last string) string {
	out := ""
	for _, p := range path {
		out += p + " -> "
	}
	return out + last
}
