package decorators

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/cache"
)

// Logging counts lookups and hits and logs the running hit ratio at debug level.
// The counters are safe for concurrent use; the delegate's own safety is unchanged.
type Logging struct {
	delegate cache.Cache
	logger   *zap.Logger
	requests atomic.Int64
	hits     atomic.Int64
}

// NewLogging wraps delegate. A nil logger disables output but keeps the counters.
func NewLogging(delegate cache.Cache, logger *zap.Logger) *Logging {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logging{
		delegate: delegate,
		logger:   logger.With(zap.String("cache", delegate.ID())),
	}
}

func (l *Logging) Delegate() cache.Cache { return l.delegate }

func (l *Logging) ID() string { return l.delegate.ID() }

func (l *Logging) Size() int { return l.delegate.Size() }

func (l *Logging) Put(ctx context.Context, key *cache.Key, value any) error {
	return l.delegate.Put(ctx, key, value)
}

func (l *Logging) Get(ctx context.Context, key *cache.Key) (any, error) {
	l.requests.Add(1)
	value, err := l.delegate.Get(ctx, key)
	if err != nil {
		l.logger.Warn("cache lookup failed", zap.Stringer("key", key), zap.Error(err))
		return nil, err
	}
	if value != nil {
		l.hits.Add(1)
	}
	if ce := l.logger.Check(zap.DebugLevel, "cache hit ratio"); ce != nil {
		ce.Write(zap.Float64("ratio", l.HitRatio()))
	}
	return value, nil
}

func (l *Logging) Remove(ctx context.Context, key *cache.Key) (any, error) {
	return l.delegate.Remove(ctx, key)
}

func (l *Logging) Clear(ctx context.Context) error {
	return l.delegate.Clear(ctx)
}

// HitRatio returns hits divided by lookups, or 0 before the first lookup.
func (l *Logging) HitRatio() float64 {
	requests := l.requests.Load()
	if requests == 0 {
		return 0
	}
	return float64(l.hits.Load()) / float64(requests)
}
