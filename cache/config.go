package cache

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Built-in implementation and decorator names understood by the cache builder.
const (
	ImplementationPerpetual = "perpetual"
	ImplementationSturdyc   = "sturdyc"

	DecoratorLRU  = "lru"
	DecoratorFIFO = "fifo"
	DecoratorSoft = "soft"
)

// Spec is the declarative description of one second-level cache: a base implementation,
// an ordered list of custom decorators and the flags that enable the standard decorators.
type Spec struct {
	// ID names the cache, usually the mapping namespace it serves.
	ID string `mapstructure:"id"`

	// Implementation selects the base store. Empty means perpetual.
	Implementation string `mapstructure:"implementation"`

	// Decorators are applied in order, innermost first, before the standard decorators.
	// An empty list with an empty Implementation defaults to LRU eviction.
	Decorators []string `mapstructure:"decorators"`

	// Size, when set, is applied to the outermost custom decorator that accepts a capacity.
	Size int `mapstructure:"size"`

	// ClearInterval enables periodic clearing when greater than zero.
	ClearInterval time.Duration `mapstructure:"clear_interval"`

	// ReadWrite stores serialized copies so callers never share mutable values.
	ReadWrite bool `mapstructure:"read_write"`

	// Blocking enables single-writer-per-key blocking on misses.
	Blocking bool `mapstructure:"blocking"`

	// BlockingTimeout bounds the wait for a per-key lock. Zero waits indefinitely.
	BlockingTimeout time.Duration `mapstructure:"blocking_timeout"`

	// Properties are passed to implementation and decorator factories.
	Properties map[string]string `mapstructure:"properties"`
}

// Validate checks whether the spec values are valid.
func (s Spec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required),
		validation.Field(&s.Size, validation.Min(0)),
		validation.Field(&s.ClearInterval, validation.Min(time.Duration(0))),
		validation.Field(&s.BlockingTimeout,
			validation.Min(time.Duration(0)),
			validation.When(!s.Blocking, validation.Empty.Error("requires blocking to be enabled")),
		),
		validation.Field(&s.Decorators, validation.Each(validation.Required)),
	)
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
