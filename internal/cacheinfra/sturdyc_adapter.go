package cacheinfra

import (
	"context"
	"time"

	"github.com/spf13/cast"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-statement-cache/cache"
)

// Config holds the options for a sturdyc backed base store.
type Config struct {
	// Capacity is the maximum number of entries held by the store.
	// Must be greater than 0.
	Capacity int

	// NumShards splits the store for concurrent access. Must be greater than 0.
	NumShards int

	// TTL bounds how long an entry survives even if nothing clears it.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage is the share of entries evicted once Capacity is reached (1-100).
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept. Zero keeps the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config sized for a statement namespace.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
}

// ConfigFromProperties overlays the cache properties "capacity", "shards", "ttl",
// "eviction-percentage" and "eviction-interval" on DefaultConfig.
func ConfigFromProperties(props map[string]string) (Config, error) {
	cfg := DefaultConfig()
	var err error
	if cfg.Capacity, err = intProperty(props, "capacity", cfg.Capacity); err != nil {
		return cfg, err
	}
	if cfg.NumShards, err = intProperty(props, "shards", cfg.NumShards); err != nil {
		return cfg, err
	}
	if cfg.EvictionPercentage, err = intProperty(props, "eviction-percentage", cfg.EvictionPercentage); err != nil {
		return cfg, err
	}
	if cfg.TTL, err = durationProperty(props, "ttl", cfg.TTL); err != nil {
		return cfg, err
	}
	if cfg.EvictionInterval, err = durationProperty(props, "eviction-interval", cfg.EvictionInterval); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ToSturdycOptions converts the optional settings to sturdyc options. Capacity, NumShards,
// TTL and EvictionPercentage go straight to sturdyc.New.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}

	return nil
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

// SturdycStore is a base cache.Cache backed by a sharded sturdyc client. Entries are
// addressed by the key identity; entries older than TTL disappear on their own.
type SturdycStore struct {
	id     string
	client *sturdyc.Client[any]
}

// NewSturdycStore validates cfg and builds a store for the namespace id.
func NewSturdycStore(id string, cfg Config) (*SturdycStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[any](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &SturdycStore{id: id, client: client}, nil
}

func (s *SturdycStore) ID() string { return s.id }

func (s *SturdycStore) Size() int { return s.client.Size() }

func (s *SturdycStore) Put(_ context.Context, key *cache.Key, value any) error {
	s.client.Set(key.Identity(), value)
	return nil
}

func (s *SturdycStore) Get(_ context.Context, key *cache.Key) (any, error) {
	value, ok := s.client.Get(key.Identity())
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (s *SturdycStore) Remove(_ context.Context, key *cache.Key) (any, error) {
	id := key.Identity()
	value, ok := s.client.Get(id)
	if !ok {
		return nil, nil
	}
	s.client.Delete(id)
	return value, nil
}

// Clear deletes every key currently held by the client.
func (s *SturdycStore) Clear(_ context.Context) error {
	for _, id := range s.client.ScanKeys() {
		s.client.Delete(id)
	}
	return nil
}

func intProperty(props map[string]string, name string, fallback int) (int, error) {
	raw, ok := props[name]
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return fallback, &ConfigError{Field: name, Message: err.Error()}
	}
	return v, nil
}

func durationProperty(props map[string]string, name string, fallback time.Duration) (time.Duration, error) {
	raw, ok := props[name]
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := cast.ToDurationE(raw)
	if err != nil {
		return fallback, &ConfigError{Field: name, Message: err.Error()}
	}
	return v, nil
}
