package decorators

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/goliatone/go-statement-cache/cache"
)

// DefaultClearInterval is used by Scheduled when no interval is configured.
const DefaultClearInterval = time.Hour

// Scheduled clears its delegate when more than the clear interval elapsed since the last
// clear. The check runs lazily at the start of every operation.
type Scheduled struct {
	delegate      cache.Cache
	clock         clockwork.Clock
	clearInterval time.Duration
	lastClear     time.Time
}

// NewScheduled wraps delegate. A nil clock uses the real clock.
func NewScheduled(delegate cache.Cache, interval time.Duration, clock clockwork.Clock) *Scheduled {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultClearInterval
	}
	return &Scheduled{
		delegate:      delegate,
		clock:         clock,
		clearInterval: interval,
		lastClear:     clock.Now(),
	}
}

func (s *Scheduled) Delegate() cache.Cache { return s.delegate }

func (s *Scheduled) ID() string { return s.delegate.ID() }

// ClearInterval returns the configured interval.
func (s *Scheduled) ClearInterval() time.Duration { return s.clearInterval }

func (s *Scheduled) Size() int {
	s.clearWhenStale(context.Background())
	return s.delegate.Size()
}

func (s *Scheduled) Put(ctx context.Context, key *cache.Key, value any) error {
	if _, err := s.clearWhenStale(ctx); err != nil {
		return err
	}
	return s.delegate.Put(ctx, key, value)
}

func (s *Scheduled) Get(ctx context.Context, key *cache.Key) (any, error) {
	cleared, err := s.clearWhenStale(ctx)
	if err != nil || cleared {
		return nil, err
	}
	return s.delegate.Get(ctx, key)
}

func (s *Scheduled) Remove(ctx context.Context, key *cache.Key) (any, error) {
	if _, err := s.clearWhenStale(ctx); err != nil {
		return nil, err
	}
	return s.delegate.Remove(ctx, key)
}

func (s *Scheduled) Clear(ctx context.Context) error {
	s.lastClear = s.clock.Now()
	return s.delegate.Clear(ctx)
}

func (s *Scheduled) clearWhenStale(ctx context.Context) (bool, error) {
	if s.clock.Since(s.lastClear) <= s.clearInterval {
		return false, nil
	}
	return true, s.Clear(ctx)
}
