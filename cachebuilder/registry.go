package cachebuilder

import (
	"sort"
	"sync"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/cache/decorators"
	"github.com/goliatone/go-statement-cache/internal/cacheinfra"
)

// ImplementationFactory creates a base store for the cache namespace id.
type ImplementationFactory func(id string, props map[string]string) (cache.Cache, error)

// DecoratorFactory wraps delegate with one behaviour.
type DecoratorFactory func(delegate cache.Cache, props map[string]string) (cache.Cache, error)

// Registry maps implementation and decorator names used in a cache.Spec to factories.
type Registry struct {
	mu              sync.RWMutex
	implementations map[string]ImplementationFactory
	decorators      map[string]DecoratorFactory
}

// NewRegistry returns a registry preloaded with the built-in names.
func NewRegistry() *Registry {
	r := &Registry{
		implementations: make(map[string]ImplementationFactory),
		decorators:      make(map[string]DecoratorFactory),
	}

	r.RegisterImplementation(cache.ImplementationPerpetual, func(id string, _ map[string]string) (cache.Cache, error) {
		return cache.NewPerpetualCache(id), nil
	})
	r.RegisterImplementation(cache.ImplementationSturdyc, func(id string, props map[string]string) (cache.Cache, error) {
		cfg, err := cacheinfra.ConfigFromProperties(props)
		if err != nil {
			return nil, err
		}
		return cacheinfra.NewSturdycStore(id, cfg)
	})

	r.RegisterDecorator(cache.DecoratorLRU, func(delegate cache.Cache, _ map[string]string) (cache.Cache, error) {
		return decorators.NewLRU(delegate, 0), nil
	})
	r.RegisterDecorator(cache.DecoratorFIFO, func(delegate cache.Cache, _ map[string]string) (cache.Cache, error) {
		return decorators.NewFIFO(delegate, 0), nil
	})
	r.RegisterDecorator(cache.DecoratorSoft, func(delegate cache.Cache, _ map[string]string) (cache.Cache, error) {
		return decorators.NewSoft(delegate, 0), nil
	})

	return r
}

// RegisterImplementation adds or replaces the base store factory for name.
func (r *Registry) RegisterImplementation(name string, factory ImplementationFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.implementations[name] = factory
}

// RegisterDecorator adds or replaces the decorator factory for name.
func (r *Registry) RegisterDecorator(name string, factory DecoratorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decorators[name] = factory
}

func (r *Registry) implementation(name string) (ImplementationFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.implementations[name]
	return f, ok
}

func (r *Registry) decorator(name string) (DecoratorFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.decorators[name]
	return f, ok
}

// Decorators lists the registered decorator names in sorted order.
func (r *Registry) Decorators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.decorators))
	for name := range r.decorators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

// RegisterImplementation adds a base store factory to the package registry.
func RegisterImplementation(name string, factory ImplementationFactory) {
	defaultRegistry.RegisterImplementation(name, factory)
}

// RegisterDecorator adds a decorator factory to the package registry.
func RegisterDecorator(name string, factory DecoratorFactory) {
	defaultRegistry.RegisterDecorator(name, factory)
}
