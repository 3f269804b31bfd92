package executor

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/mapping"
	"github.com/goliatone/go-statement-cache/transaction"
	"github.com/goliatone/go-statement-cache/txcache"
)

// wrappable is implemented by executors that hand a wrapper to their result mappers.
type wrappable interface {
	SetExecutorWrapper(wrapper Executor)
}

var _ Executor = (*Caching)(nil)

// Caching decorates an executor with the namespace (second level) caches. Reads of statements
// with UseCache go through a transactional buffer per cache; writes become visible to other
// sessions on commit.
type Caching struct {
	delegate Executor
	tcm      *txcache.Manager
	logger   *zap.Logger
}

// NewCaching wraps delegate. The delegate session id is used as lock owner of the buffers.
func NewCaching(delegate Executor, logger *zap.Logger) *Caching {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Caching{
		delegate: delegate,
		logger:   logger.With(zap.String("session", delegate.SessionID())),
	}
	c.tcm = txcache.NewManager(
		txcache.WithOwner(delegate.SessionID()),
		txcache.WithLogger(c.logger),
	)
	if w, ok := delegate.(wrappable); ok {
		w.SetExecutorWrapper(c)
	}
	return c
}

// Delegate returns the wrapped executor.
func (c *Caching) Delegate() Executor { return c.delegate }

func (c *Caching) SessionID() string { return c.delegate.SessionID() }

func (c *Caching) IsClosed() bool { return c.delegate.IsClosed() }

func (c *Caching) Transaction() (transaction.Transaction, error) {
	return c.delegate.Transaction()
}

func (c *Caching) Update(ctx context.Context, stmt *mapping.Statement, param any) (int64, error) {
	if err := c.flushCacheIfRequired(ctx, stmt); err != nil {
		return 0, err
	}
	return c.delegate.Update(ctx, stmt, param)
}

func (c *Caching) Query(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler) ([]any, error) {
	bound, err := stmt.BoundSQL(param)
	if err != nil {
		return nil, errors.Wrapf(err, "bind statement %s", stmt.ID)
	}
	key, err := c.CreateCacheKey(stmt, param, bounds, bound)
	if err != nil {
		return nil, err
	}
	return c.QueryWithKey(ctx, stmt, param, bounds, handler, key, bound)
}

func (c *Caching) QueryWithKey(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, key *cache.Key, bound *mapping.BoundSQL) ([]any, error) {
	if stmt.Cache == nil {
		return c.delegate.QueryWithKey(ctx, stmt, param, bounds, handler, key, bound)
	}
	if err := c.flushCacheIfRequired(ctx, stmt); err != nil {
		return nil, err
	}
	if !stmt.UseCache || handler != nil {
		return c.delegate.QueryWithKey(ctx, stmt, param, bounds, handler, key, bound)
	}
	if err := ensureNoOutParams(stmt, bound); err != nil {
		return nil, err
	}

	return cache.GetOrFetch(ctx, c.tcm.For(stmt.Cache), key, func(ctx context.Context) ([]any, error) {
		return c.delegate.QueryWithKey(ctx, stmt, param, bounds, nil, key, bound)
	})
}

func (c *Caching) QueryCursor(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) (*Cursor, error) {
	if err := c.flushCacheIfRequired(ctx, stmt); err != nil {
		return nil, err
	}
	return c.delegate.QueryCursor(ctx, stmt, param, bounds)
}

func (c *Caching) FlushStatements(ctx context.Context) ([]BatchResult, error) {
	return c.delegate.FlushStatements(ctx)
}

// Commit commits the delegate, then publishes the buffered writes.
func (c *Caching) Commit(ctx context.Context, required bool) error {
	if err := c.delegate.Commit(ctx, required); err != nil {
		return err
	}
	return c.tcm.Commit(ctx)
}

// Rollback rolls back the delegate. Buffered writes are discarded only when required is set.
func (c *Caching) Rollback(ctx context.Context, required bool) error {
	err := c.delegate.Rollback(ctx, required)
	if required {
		c.tcm.Rollback(ctx)
	}
	return err
}

func (c *Caching) CreateCacheKey(stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*cache.Key, error) {
	return c.delegate.CreateCacheKey(stmt, param, bounds, bound)
}

func (c *Caching) IsCached(ctx context.Context, stmt *mapping.Statement, key *cache.Key) bool {
	return c.delegate.IsCached(ctx, stmt, key)
}

func (c *Caching) ClearLocalCache(ctx context.Context) {
	c.delegate.ClearLocalCache(ctx)
}

func (c *Caching) DeferLoad(ctx context.Context, stmt *mapping.Statement, resultObject any, property string, key *cache.Key, targetType reflect.Type) error {
	return c.delegate.DeferLoad(ctx, stmt, resultObject, property, key, targetType)
}

// Close publishes buffered writes unless forceRollback is set, then closes the delegate.
func (c *Caching) Close(ctx context.Context, forceRollback bool) error {
	if c.delegate.IsClosed() {
		return nil
	}

	if forceRollback {
		c.tcm.Rollback(ctx)
	} else if err := c.tcm.Commit(ctx); err != nil {
		c.logger.Warn("publishing cached results on close failed", zap.Error(err))
	}
	return c.delegate.Close(ctx, forceRollback)
}

func (c *Caching) flushCacheIfRequired(ctx context.Context, stmt *mapping.Statement) error {
	if stmt.Cache == nil || !stmt.FlushCacheRequired {
		return nil
	}
	return c.tcm.Clear(ctx, stmt.Cache)
}

func ensureNoOutParams(stmt *mapping.Statement, bound *mapping.BoundSQL) error {
	if stmt.Kind != mapping.KindCallable {
		return nil
	}
	for _, m := range bound.ParameterMappings {
		if m.IsOutput() {
			return errors.Wrapf(ErrOutParamsNotCacheable, "statement %s", stmt.ID)
		}
	}
	return nil
}
