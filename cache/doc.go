// Package cache provides the cache SPI, the composite cache key and the base store used by
// both cache tiers of the statement executor.
//
// # Overview
//
// This package exports the pieces every other package builds on:
//
//   - Cache: the minimal key/value interface (ID, Size, Put, Get, Remove, Clear)
//   - Key: the order-sensitive composite identity of a repeatable query
//   - PerpetualCache: the unsynchronized, non-evicting base store
//   - Spec: the declarative description consumed by the cache builder
//
// Eviction, locking, serialization and logging are layered on top of a base store by the
// decorators in cache/decorators. The cachebuilder package assembles them in a fixed order.
//
// # Basic Usage
//
// Keys are built by folding values in order:
//
//	key := cache.NewKey("users.selectByID", 0, math.MaxInt32, "SELECT * FROM users WHERE id = ?", 42)
//	store := cache.NewPerpetualCache("users")
//	_ = store.Put(ctx, key, rows)
//
// A read-through helper covers the common "get, else fetch and put" flow:
//
//	rows, err := cache.GetOrFetch(ctx, store, key, func(ctx context.Context) ([]User, error) {
//		return loadUsers(ctx)
//	})
//
// # Key Identity
//
// Every contributed value is rendered to a canonical string using reflection:
//
//   - Pointers are dereferenced, so identity never leaks into the key
//   - Basic types carry their type name (int 1 and string "1" differ)
//   - Slices and arrays are compared by content
//   - Maps render their entries sorted for deterministic output
//   - Structs render exported fields; TextMarshaler values use their text form
//
// The canonical form feeds the per-value base hash (xxhash) and Key.Identity, which caches
// use to index their maps. Key.Equal compares hash, checksum, count and each value by deep
// equality.
//
// # Null Key
//
// NullKey returns a shared sentinel that marks "do not cache". Any attempt to update it fails
// with ErrNullKeyMutation.
package cache
