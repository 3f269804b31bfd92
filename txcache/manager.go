package txcache

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/cache"
)

// Manager keeps one TransactionalCache per shared cache touched by a session and commits or
// rolls them back together.
type Manager struct {
	owner  string
	logger *zap.Logger
	caches map[cache.Cache]*TransactionalCache
	order  []cache.Cache
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger handed to every buffer.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithOwner sets the lock owner used by every buffer, usually the session id.
func WithOwner(owner string) Option {
	return func(m *Manager) {
		if owner != "" {
			m.owner = owner
		}
	}
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		owner:  uuid.NewString(),
		logger: zap.NewNop(),
		caches: make(map[cache.Cache]*TransactionalCache),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Owner returns the lock owner shared by the buffers.
func (m *Manager) Owner() string { return m.owner }

func (m *Manager) Clear(ctx context.Context, c cache.Cache) error {
	return m.For(c).Clear(ctx)
}

func (m *Manager) Get(ctx context.Context, c cache.Cache, key *cache.Key) (any, error) {
	return m.For(c).Get(ctx, key)
}

func (m *Manager) Put(ctx context.Context, c cache.Cache, key *cache.Key, value any) error {
	return m.For(c).Put(ctx, key, value)
}

// Commit commits every buffer, even when an earlier one fails.
func (m *Manager) Commit(ctx context.Context) error {
	var errs error
	for _, c := range m.order {
		errs = multierr.Append(errs, m.caches[c].Commit(ctx))
	}
	return errs
}

func (m *Manager) Rollback(ctx context.Context) {
	for _, c := range m.order {
		m.caches[c].Rollback(ctx)
	}
}

// For returns the buffer in front of c, creating it on first use.
func (m *Manager) For(c cache.Cache) *TransactionalCache {
	if tc, ok := m.caches[c]; ok {
		return tc
	}
	tc := New(c, m.owner, m.logger)
	m.caches[c] = tc
	m.order = append(m.order, c)
	return tc
}
