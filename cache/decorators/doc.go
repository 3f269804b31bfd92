// Package decorators layers one concern at a time on top of a cache.Cache.
//
// Every decorator holds a reference to the next layer and can be combined with any other:
//
//   - LRU and FIFO bound the number of keys, evicting by recency or insertion order
//   - Soft keeps a bounded tier of recently used values and lazily purges reclaimed ones
//   - Synchronized serializes every operation behind one mutex
//   - Blocking allows a single populate-on-miss per key, other callers wait
//   - Scheduled clears the delegate once per interval
//   - Serialized stores msgpack copies so callers never share mutable values
//   - Logging reports the hit ratio through zap
//
// The cachebuilder package applies them in a fixed order; Synchronized always sits closer to
// the base store than Blocking so a blocked caller never also holds the coarse lock.
package decorators

import "github.com/goliatone/go-statement-cache/cache"

// Decorator is a cache wrapping another cache.
type Decorator interface {
	cache.Cache
	Delegate() cache.Cache
}
