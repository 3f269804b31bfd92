package executor

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/mapping"
	"github.com/goliatone/go-statement-cache/transaction"
)

// executionPlaceholder marks a key whose query is still running.
type executionPlaceholder struct{}

// strategy issues statements against the connection. Base handles caching and lifecycle.
type strategy interface {
	doUpdate(ctx context.Context, stmt *mapping.Statement, param any, bound *mapping.BoundSQL) (int64, error)
	doQuery(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, bound *mapping.BoundSQL) ([]any, error)
	doQueryCursor(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*Cursor, error)
	doFlushStatements(ctx context.Context, isRollback bool) ([]BatchResult, error)
}

// Base implements the session state shared by every strategy: the local cache, the output
// parameter cache of callable statements, the query nesting counter and deferred loads.
// A Base belongs to one session and is not safe for concurrent use.
type Base struct {
	strategy    strategy
	tx          transaction.Transaction
	mapper      ResultMapper
	wrapper     Executor
	localCache  *cache.PerpetualCache
	outputCache *cache.PerpetualCache
	deferred    []*deferredLoad
	queryStack  int
	closed      bool
	opts        options
	logger      *zap.Logger
}

func newBase(s strategy, tx transaction.Transaction, mapper ResultMapper, opts []Option) *Base {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	b := &Base{
		strategy:    s,
		tx:          tx,
		mapper:      mapper,
		localCache:  cache.NewPerpetualCache("LocalCache"),
		outputCache: cache.NewPerpetualCache("LocalOutputParameterCache"),
		opts:        o,
		logger:      o.logger.With(zap.String("session", o.sessionID)),
	}
	return b
}

func (b *Base) SessionID() string { return b.opts.sessionID }

func (b *Base) IsClosed() bool { return b.closed }

// SetExecutorWrapper records the executor wrapping b; result mappers receive it so nested
// queries go through the wrapper.
func (b *Base) SetExecutorWrapper(wrapper Executor) {
	b.wrapper = wrapper
}

func (b *Base) self() Executor {
	if b.wrapper != nil {
		return b.wrapper
	}
	return b
}

func (b *Base) Transaction() (transaction.Transaction, error) {
	if b.closed {
		return nil, ErrExecutorClosed
	}
	return b.tx, nil
}

func (b *Base) Update(ctx context.Context, stmt *mapping.Statement, param any) (int64, error) {
	if b.closed {
		return 0, ErrExecutorClosed
	}
	b.ClearLocalCache(ctx)

	bound, err := stmt.BoundSQL(param)
	if err != nil {
		return 0, errors.Wrapf(err, "bind statement %s", stmt.ID)
	}
	return b.strategy.doUpdate(ctx, stmt, param, bound)
}

func (b *Base) Query(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler) ([]any, error) {
	bound, err := stmt.BoundSQL(param)
	if err != nil {
		return nil, errors.Wrapf(err, "bind statement %s", stmt.ID)
	}
	key, err := b.CreateCacheKey(stmt, param, bounds, bound)
	if err != nil {
		return nil, err
	}
	return b.QueryWithKey(ctx, stmt, param, bounds, handler, key, bound)
}

func (b *Base) QueryWithKey(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, key *cache.Key, bound *mapping.BoundSQL) ([]any, error) {
	if b.closed {
		return nil, ErrExecutorClosed
	}
	if b.queryStack == 0 && stmt.FlushCacheRequired {
		b.ClearLocalCache(ctx)
	}

	list, err := b.queryNested(ctx, stmt, param, bounds, handler, key, bound)
	if err != nil {
		return nil, err
	}

	if b.queryStack == 0 {
		pending := b.deferred
		b.deferred = nil
		for _, dl := range pending {
			if err := dl.load(ctx); err != nil {
				return nil, err
			}
		}
		if b.opts.scope == mapping.ScopeStatement {
			b.ClearLocalCache(ctx)
		}
	}
	return list, nil
}

func (b *Base) queryNested(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, key *cache.Key, bound *mapping.BoundSQL) ([]any, error) {
	b.queryStack++
	defer func() { b.queryStack-- }()

	if handler == nil {
		cached, _ := b.localCache.Get(ctx, key)
		switch v := cached.(type) {
		case nil:
		case executionPlaceholder:
			return nil, errors.Wrapf(ErrCircularQuery, "statement %s", stmt.ID)
		case []any:
			if err := b.handleLocallyCachedOutputParameters(ctx, stmt, key, param, bound); err != nil {
				return nil, err
			}
			return v, nil
		}
	}
	return b.queryFromDatabase(ctx, stmt, param, bounds, handler, key, bound)
}

func (b *Base) queryFromDatabase(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, key *cache.Key, bound *mapping.BoundSQL) ([]any, error) {
	_ = b.localCache.Put(ctx, key, executionPlaceholder{})
	list, err := b.strategy.doQuery(ctx, stmt, param, bounds, handler, bound)
	_, _ = b.localCache.Remove(ctx, key)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []any{}
	}

	// rows delivered to a handler are not collected, so there is nothing to reuse
	if handler == nil {
		_ = b.localCache.Put(ctx, key, list)
	}
	if stmt.Kind == mapping.KindCallable {
		_ = b.outputCache.Put(ctx, key, param)
	}
	return list, nil
}

// handleLocallyCachedOutputParameters copies the OUT values of a cached callable statement onto
// the caller's parameter object.
func (b *Base) handleLocallyCachedOutputParameters(ctx context.Context, stmt *mapping.Statement, key *cache.Key, param any, bound *mapping.BoundSQL) error {
	if stmt.Kind != mapping.KindCallable || param == nil {
		return nil
	}
	cachedParam, _ := b.outputCache.Get(ctx, key)
	if cachedParam == nil {
		return nil
	}
	for _, m := range bound.ParameterMappings {
		if !m.IsOutput() {
			continue
		}
		value, err := mapping.GetProperty(cachedParam, m.Property)
		if err != nil {
			return err
		}
		if err := mapping.SetProperty(param, m.Property, value); err != nil {
			return err
		}
	}
	return nil
}

func (b *Base) QueryCursor(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) (*Cursor, error) {
	if b.closed {
		return nil, ErrExecutorClosed
	}
	bound, err := stmt.BoundSQL(param)
	if err != nil {
		return nil, errors.Wrapf(err, "bind statement %s", stmt.ID)
	}
	return b.strategy.doQueryCursor(ctx, stmt, param, bounds, bound)
}

func (b *Base) FlushStatements(ctx context.Context) ([]BatchResult, error) {
	return b.flushStatements(ctx, false)
}

func (b *Base) flushStatements(ctx context.Context, isRollback bool) ([]BatchResult, error) {
	if b.closed {
		return nil, ErrExecutorClosed
	}
	return b.strategy.doFlushStatements(ctx, isRollback)
}

// CreateCacheKey builds the key of a query from the statement id, the row bounds, the SQL, every
// non OUT parameter value in order and the environment id.
func (b *Base) CreateCacheKey(stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*cache.Key, error) {
	if b.closed {
		return nil, ErrExecutorClosed
	}

	key := cache.NewKey()
	if err := key.UpdateAll(stmt.ID, bounds.Offset, bounds.Limit, bound.SQL); err != nil {
		return nil, err
	}
	for _, m := range bound.ParameterMappings {
		if m.Mode == mapping.ModeOut {
			continue
		}
		value, err := bound.ParameterValue(m)
		if err != nil {
			return nil, errors.Wrapf(err, "statement %s", stmt.ID)
		}
		if err := key.Update(value); err != nil {
			return nil, err
		}
	}
	if b.opts.environmentID != "" {
		if err := key.Update(b.opts.environmentID); err != nil {
			return nil, err
		}
	}
	return key, nil
}

// IsCached reports whether key has a local cache entry, including one still being loaded.
func (b *Base) IsCached(ctx context.Context, _ *mapping.Statement, key *cache.Key) bool {
	if b.closed {
		return false
	}
	v, _ := b.localCache.Get(ctx, key)
	return v != nil
}

func (b *Base) DeferLoad(ctx context.Context, stmt *mapping.Statement, resultObject any, property string, key *cache.Key, targetType reflect.Type) error {
	if b.closed {
		return ErrExecutorClosed
	}
	dl := &deferredLoad{
		resultObject: resultObject,
		property:     property,
		key:          key,
		targetType:   targetType,
		localCache:   b.localCache,
	}
	if dl.canLoad(ctx) {
		return dl.load(ctx)
	}
	b.deferred = append(b.deferred, dl)
	return nil
}

func (b *Base) ClearLocalCache(ctx context.Context) {
	if b.closed {
		return
	}
	_ = b.localCache.Clear(ctx)
	_ = b.outputCache.Clear(ctx)
}

func (b *Base) Commit(ctx context.Context, required bool) error {
	if b.closed {
		return errors.Wrap(ErrExecutorClosed, "cannot commit")
	}
	b.ClearLocalCache(ctx)
	if _, err := b.flushStatements(ctx, false); err != nil {
		return err
	}
	if required {
		return b.tx.Commit(ctx)
	}
	return nil
}

func (b *Base) Rollback(ctx context.Context, required bool) error {
	if b.closed {
		return errors.Wrap(ErrExecutorClosed, "cannot rollback")
	}
	b.ClearLocalCache(ctx)
	_, errs := b.flushStatements(ctx, true)
	if required && b.tx != nil {
		errs = multierr.Append(errs, b.tx.Rollback(ctx))
	}
	return errs
}

// Close rolls back when forceRollback is set, closes the transaction and drops the session
// state. Failures are logged, not returned. Closing twice is a no-op.
func (b *Base) Close(ctx context.Context, forceRollback bool) error {
	if b.closed {
		return nil
	}

	if err := b.Rollback(ctx, forceRollback); err != nil {
		b.logger.Warn("unexpected error on rollback while closing executor", zap.Error(err))
	}
	if b.tx != nil {
		if err := b.tx.Close(ctx); err != nil {
			b.logger.Warn("unexpected error on closing transaction", zap.Error(err))
		}
	}

	b.ClearLocalCache(ctx)
	b.deferred = nil
	b.queryStack = 0
	b.closed = true
	return nil
}
