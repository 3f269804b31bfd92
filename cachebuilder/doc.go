// Package cachebuilder assembles namespace caches from a cache.Spec.
//
// Implementations and decorators are resolved by name through a Registry, so custom entries
// can be registered next to the built-in ones. A perpetual base cache gets the standard stack:
// the configured eviction decorators, then scheduled clearing, serialization, logging,
// synchronization and, when requested, blocking.
package cachebuilder
