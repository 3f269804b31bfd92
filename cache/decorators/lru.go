package decorators

import (
	"context"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/goliatone/go-statement-cache/cache"
)

// DefaultEvictionSize is the capacity used by LRU and FIFO when none is configured.
const DefaultEvictionSize = 1024

// LRU evicts the least recently used key once the number of tracked keys exceeds its size.
// A Get counts as a use.
type LRU struct {
	delegate cache.Cache
	keys     *simplelru.LRU[string, *cache.Key]
	eldest   *cache.Key
}

// NewLRU wraps delegate with recency based eviction. A size <= 0 uses DefaultEvictionSize.
func NewLRU(delegate cache.Cache, size int) *LRU {
	l := &LRU{delegate: delegate}
	l.SetSize(size)
	return l
}

// SetSize resets the tracked keys and applies a new capacity.
func (l *LRU) SetSize(size int) {
	if size <= 0 {
		size = DefaultEvictionSize
	}
	// NewLRU only fails for non-positive sizes
	keys, _ := simplelru.NewLRU[string, *cache.Key](size, func(_ string, key *cache.Key) {
		l.eldest = key
	})
	l.keys = keys
	l.eldest = nil
}

func (l *LRU) Delegate() cache.Cache { return l.delegate }

func (l *LRU) ID() string { return l.delegate.ID() }

func (l *LRU) Size() int { return l.delegate.Size() }

func (l *LRU) Put(ctx context.Context, key *cache.Key, value any) error {
	if err := l.delegate.Put(ctx, key, value); err != nil {
		return err
	}
	return l.cycleKeyList(ctx, key)
}

func (l *LRU) Get(ctx context.Context, key *cache.Key) (any, error) {
	l.keys.Get(key.Identity()) // touch
	return l.delegate.Get(ctx, key)
}

func (l *LRU) Remove(ctx context.Context, key *cache.Key) (any, error) {
	l.keys.Remove(key.Identity())
	l.eldest = nil
	return l.delegate.Remove(ctx, key)
}

func (l *LRU) Clear(ctx context.Context) error {
	l.keys.Purge()
	l.eldest = nil
	return l.delegate.Clear(ctx)
}

func (l *LRU) cycleKeyList(ctx context.Context, key *cache.Key) error {
	l.keys.Add(key.Identity(), key)
	if l.eldest == nil {
		return nil
	}
	eldest := l.eldest
	l.eldest = nil
	_, err := l.delegate.Remove(ctx, eldest)
	return err
}
