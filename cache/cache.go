package cache

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNullKeyMutation is returned when Update is called on the null key sentinel.
	ErrNullKeyMutation = errors.New("cache: not allowed to update a null cache key instance")

	// ErrInvalidResultType is returned by GetOrFetch when a cached value does not match the requested type.
	ErrInvalidResultType = errors.New("cache: cached value has unexpected type")
)

// Cache is the minimal key/value store every second-level cache and decorator implements.
//
// Get returns a nil value and a nil error on a miss. Decorators may repurpose the value
// returned by Remove (the Blocking decorator uses Remove purely as a lock release).
// Implementations are not required to be safe for concurrent use; the Synchronized and
// Blocking decorators add that.
type Cache interface {
	ID() string
	Size() int
	Put(ctx context.Context, key *Key, value any) error
	Get(ctx context.Context, key *Key) (any, error)
	Remove(ctx context.Context, key *Key) (any, error)
	Clear(ctx context.Context) error
}

// Sizer is implemented by caches with a configurable capacity.
type Sizer interface {
	SetSize(size int)
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// GetOrFetch reads key from c and falls back to fetchFn on a miss, storing the fetched value.
// A failed fetch removes the key so decorators holding a lock for it release it.
func GetOrFetch[T any](ctx context.Context, c Cache, key *Key, fetchFn FetchFn[T]) (T, error) {
	var zero T

	cached, err := c.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	if cached != nil {
		value, ok := cached.(T)
		if !ok {
			return zero, errors.Wrapf(ErrInvalidResultType, "key %s holds %T", key, cached)
		}
		return value, nil
	}

	value, err := fetchFn(ctx)
	if err != nil {
		if _, rmErr := c.Remove(ctx, key); rmErr != nil {
			return zero, errors.Wrapf(err, "release key after failed fetch: %v", rmErr)
		}
		return zero, err
	}

	if err := c.Put(ctx, key, value); err != nil {
		return zero, err
	}

	return value, nil
}
