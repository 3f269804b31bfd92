package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-statement-cache/cache"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Capacity != 10000 {
		t.Errorf("expected Capacity to be 10000, got %d", cfg.Capacity)
	}

	if cfg.NumShards != 256 {
		t.Errorf("expected NumShards to be 256, got %d", cfg.NumShards)
	}

	if cfg.TTL != time.Hour {
		t.Errorf("expected TTL to be 1 hour, got %v", cfg.TTL)
	}

	if cfg.EvictionPercentage != 10 {
		t.Errorf("expected EvictionPercentage to be 10, got %d", cfg.EvictionPercentage)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := DefaultConfig()

	tests := []struct {
		name     string
		mutate   func(*Config)
		field    string
		errorMsg string
	}{
		{
			name:     "zero capacity",
			mutate:   func(c *Config) { c.Capacity = 0 },
			field:    "Capacity",
			errorMsg: "must be greater than 0",
		},
		{
			name:     "negative shards",
			mutate:   func(c *Config) { c.NumShards = -1 },
			field:    "NumShards",
			errorMsg: "must be greater than 0",
		},
		{
			name:     "zero ttl",
			mutate:   func(c *Config) { c.TTL = 0 },
			field:    "TTL",
			errorMsg: "must be greater than 0",
		},
		{
			name:     "eviction percentage over 100",
			mutate:   func(c *Config) { c.EvictionPercentage = 101 },
			field:    "EvictionPercentage",
			errorMsg: "must be between 1 and 100",
		},
		{
			name:     "negative eviction interval",
			mutate:   func(c *Config) { c.EvictionInterval = -time.Second },
			field:    "EvictionInterval",
			errorMsg: "must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, cfgErr.Field)
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %q", tt.errorMsg, err.Error())
			}
		})
	}
}

func TestConfigFromProperties(t *testing.T) {
	cfg, err := ConfigFromProperties(map[string]string{
		"capacity":          "50",
		"ttl":               "30s",
		"eviction-interval": "5s",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capacity != 50 || cfg.TTL != 30*time.Second || cfg.EvictionInterval != 5*time.Second {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.NumShards != 256 {
		t.Errorf("expected unset properties to keep defaults, got NumShards=%d", cfg.NumShards)
	}

	if _, err := ConfigFromProperties(map[string]string{"capacity": "lots"}); err == nil {
		t.Error("expected error for non numeric capacity")
	}
	if _, err := ConfigFromProperties(map[string]string{"eviction-percentage": "0"}); err == nil {
		t.Error("expected validation error for eviction-percentage 0")
	}
}

func TestNewSturdycStore_InvalidConfig(t *testing.T) {
	store, err := NewSturdycStore("bad", Config{})
	if err == nil {
		t.Fatal("expected error for empty config")
	}
	if store != nil {
		t.Error("expected nil store on error")
	}
}

func TestSturdycStore_CacheContract(t *testing.T) {
	ctx := context.Background()
	store, err := NewSturdycStore("users", DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var _ cache.Cache = store
	if store.ID() != "users" {
		t.Errorf("expected ID users, got %s", store.ID())
	}

	key := cache.NewKey("selectUser", 0, 10, "SELECT * FROM users WHERE id = ?", 7)
	if err := store.Put(ctx, key, []any{"alice"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, key.Clone())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	rows, ok := got.([]any)
	if !ok || len(rows) != 1 || rows[0] != "alice" {
		t.Errorf("expected cached rows, got %#v", got)
	}

	if miss, _ := store.Get(ctx, cache.NewKey("selectUser", 0, 10, "SELECT * FROM users WHERE id = ?", 8)); miss != nil {
		t.Errorf("expected miss for different parameter, got %v", miss)
	}

	removed, err := store.Remove(ctx, key)
	if err != nil || removed == nil {
		t.Errorf("expected Remove to return the value, got %v, %v", removed, err)
	}
	if removed, _ := store.Remove(ctx, key); removed != nil {
		t.Errorf("expected second Remove to return nil, got %v", removed)
	}
}

func TestSturdycStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, err := NewSturdycStore("clear", DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 20; i++ {
		_ = store.Put(ctx, cache.NewKey("stmt", i), i)
	}
	if store.Size() != 20 {
		t.Fatalf("expected 20 entries, got %d", store.Size())
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if store.Size() != 0 {
		t.Errorf("expected empty store after Clear, got %d", store.Size())
	}
}
