package cachebuilder

import (
	"fmt"
	"maps"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/cache/decorators"
)

// Builder assembles a second-level cache. Custom decorators are applied first, in the order
// they were added, then the standard ones in a fixed order: Scheduled, Serialized, Logging,
// Synchronized and finally Blocking, so the coarse mutex always sits closer to the store
// than the per-key locks.
type Builder struct {
	spec     cache.Spec
	registry *Registry
	logger   *zap.Logger
	clock    clockwork.Clock
}

// New starts a builder for the cache namespace id.
func New(id string) *Builder {
	return &Builder{
		spec:     cache.Spec{ID: id},
		registry: defaultRegistry,
		logger:   zap.NewNop(),
	}
}

// FromSpec starts a builder preloaded with spec.
func FromSpec(spec cache.Spec) *Builder {
	b := New(spec.ID)
	b.spec = spec
	b.spec.Decorators = append([]string(nil), spec.Decorators...)
	b.spec.Properties = maps.Clone(spec.Properties)
	return b
}

// Build is shorthand for FromSpec(spec).WithLogger(logger).Build().
func Build(spec cache.Spec, logger *zap.Logger) (cache.Cache, error) {
	return FromSpec(spec).WithLogger(logger).Build()
}

func (b *Builder) Implementation(name string) *Builder {
	b.spec.Implementation = name
	return b
}

func (b *Builder) AddDecorator(name string) *Builder {
	if name != "" {
		b.spec.Decorators = append(b.spec.Decorators, name)
	}
	return b
}

func (b *Builder) Size(size int) *Builder {
	b.spec.Size = size
	return b
}

func (b *Builder) ClearInterval(interval time.Duration) *Builder {
	b.spec.ClearInterval = interval
	return b
}

func (b *Builder) ReadWrite(readWrite bool) *Builder {
	b.spec.ReadWrite = readWrite
	return b
}

func (b *Builder) Blocking(blocking bool) *Builder {
	b.spec.Blocking = blocking
	return b
}

func (b *Builder) BlockingTimeout(timeout time.Duration) *Builder {
	b.spec.BlockingTimeout = timeout
	return b
}

func (b *Builder) Property(name, value string) *Builder {
	if b.spec.Properties == nil {
		b.spec.Properties = make(map[string]string)
	}
	b.spec.Properties[name] = value
	return b
}

// WithRegistry resolves names against r instead of the package registry.
func (b *Builder) WithRegistry(r *Registry) *Builder {
	if r != nil {
		b.registry = r
	}
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithClock sets the clock used by the Scheduled decorator.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// Spec returns a copy of the accumulated spec.
func (b *Builder) Spec() cache.Spec {
	spec := b.spec
	spec.Decorators = append([]string(nil), b.spec.Decorators...)
	spec.Properties = maps.Clone(b.spec.Properties)
	return spec
}

// Build validates the spec and assembles the decorator stack.
func (b *Builder) Build() (cache.Cache, error) {
	if err := b.spec.Validate(); err != nil {
		return nil, errors.Wrapf(err, "cache %q", b.spec.ID)
	}

	implementation := b.spec.Implementation
	custom := b.spec.Decorators
	if implementation == "" {
		implementation = cache.ImplementationPerpetual
		if len(custom) == 0 {
			custom = []string{cache.DecoratorLRU}
		}
	}

	newBase, ok := b.registry.implementation(implementation)
	if !ok {
		return nil, &cache.ConfigError{
			Field:   "Implementation",
			Message: fmt.Sprintf("unknown cache implementation %q", implementation),
		}
	}

	c, err := newBase(b.spec.ID, b.spec.Properties)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s cache %q", implementation, b.spec.ID)
	}

	if implementation != cache.ImplementationPerpetual {
		if len(custom) > 0 || b.spec.Blocking || b.spec.ReadWrite || b.spec.ClearInterval > 0 {
			b.logger.Warn("standard decorators are only applied to the perpetual store",
				zap.String("cache", b.spec.ID),
				zap.String("implementation", implementation),
			)
		}
		return decorators.NewLogging(c, b.logger), nil
	}

	for _, name := range custom {
		wrap, ok := b.registry.decorator(name)
		if !ok {
			return nil, &cache.ConfigError{
				Field:   "Decorators",
				Message: fmt.Sprintf("unknown cache decorator %q", name),
			}
		}
		if c, err = wrap(c, b.spec.Properties); err != nil {
			return nil, errors.Wrapf(err, "decorate cache %q with %s", b.spec.ID, name)
		}
	}

	return b.standardDecorators(c), nil
}

func (b *Builder) standardDecorators(c cache.Cache) cache.Cache {
	if b.spec.Size > 0 {
		if sizer, ok := c.(cache.Sizer); ok {
			sizer.SetSize(b.spec.Size)
		}
	}
	if b.spec.ClearInterval > 0 {
		c = decorators.NewScheduled(c, b.spec.ClearInterval, b.clock)
	}
	if b.spec.ReadWrite {
		c = decorators.NewSerialized(c)
	}
	c = decorators.NewLogging(c, b.logger)
	c = decorators.NewSynchronized(c)
	if b.spec.Blocking {
		c = decorators.NewBlocking(c, b.spec.BlockingTimeout)
	}
	return c
}
