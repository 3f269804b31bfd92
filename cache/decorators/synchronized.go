package decorators

import (
	"context"
	"sync"

	"github.com/goliatone/go-statement-cache/cache"
)

// Synchronized guards every operation of its delegate with a single mutex.
type Synchronized struct {
	mu       sync.Mutex
	delegate cache.Cache
}

// NewSynchronized wraps delegate with mutual exclusion.
func NewSynchronized(delegate cache.Cache) *Synchronized {
	return &Synchronized{delegate: delegate}
}

func (s *Synchronized) Delegate() cache.Cache { return s.delegate }

func (s *Synchronized) ID() string { return s.delegate.ID() }

func (s *Synchronized) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegate.Size()
}

func (s *Synchronized) Put(ctx context.Context, key *cache.Key, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegate.Put(ctx, key, value)
}

func (s *Synchronized) Get(ctx context.Context, key *cache.Key) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegate.Get(ctx, key)
}

func (s *Synchronized) Remove(ctx context.Context, key *cache.Key) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegate.Remove(ctx, key)
}

func (s *Synchronized) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.delegate.Clear(ctx)
}
