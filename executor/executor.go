package executor

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/cache"
	"github.com/goliatone/go-statement-cache/mapping"
	"github.com/goliatone/go-statement-cache/transaction"
)

// BatchUpdateReturnValue is returned by Update on a batch executor; real counts are only known
// after FlushStatements.
const BatchUpdateReturnValue int64 = math.MinInt32 + 1002

var (
	// ErrExecutorClosed is returned by every operation on a closed executor.
	ErrExecutorClosed = errors.New("executor: executor was closed")
	// ErrCircularQuery is returned when a query re-enters itself before producing a result.
	ErrCircularQuery = errors.New("executor: query re-entered while its result is being loaded")
	// ErrStopRows can be returned by a RowHandler to stop reading rows without failing.
	ErrStopRows = errors.New("executor: stop reading rows")
	// ErrOutParamsNotCacheable rejects second level caching of callable statements with OUT parameters.
	ErrOutParamsNotCacheable = errors.New("executor: caching stored procedures with OUT params is not supported")
)

// RowHandler receives rows one by one instead of having them collected into a list.
type RowHandler func(ctx context.Context, row any) error

// Executor runs mapped statements for one session and owns its local cache.
type Executor interface {
	Update(ctx context.Context, stmt *mapping.Statement, param any) (int64, error)
	Query(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler) ([]any, error)
	// QueryWithKey runs a query whose key and bound SQL were already computed.
	QueryWithKey(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, key *cache.Key, bound *mapping.BoundSQL) ([]any, error)
	// QueryCursor streams rows; the local cache is not consulted nor filled.
	QueryCursor(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds) (*Cursor, error)
	FlushStatements(ctx context.Context) ([]BatchResult, error)
	Commit(ctx context.Context, required bool) error
	Rollback(ctx context.Context, required bool) error
	CreateCacheKey(stmt *mapping.Statement, param any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*cache.Key, error)
	IsCached(ctx context.Context, stmt *mapping.Statement, key *cache.Key) bool
	ClearLocalCache(ctx context.Context)
	// DeferLoad assigns the result cached under key to property of resultObject, now when the
	// result is complete or once the outermost query returns otherwise.
	DeferLoad(ctx context.Context, stmt *mapping.Statement, resultObject any, property string, key *cache.Key, targetType reflect.Type) error
	Transaction() (transaction.Transaction, error)
	Close(ctx context.Context, forceRollback bool) error
	IsClosed() bool
	SessionID() string
}

// BatchResult reports the update counts of one prepared statement of a flushed batch.
type BatchResult struct {
	Statement    *mapping.Statement
	SQL          string
	Parameters   []any
	UpdateCounts []int64
}

// BatchExecutorError reports a batch that failed part way through a flush. Results holds the
// batches that ran before the failing one; the transaction should be rolled back.
type BatchExecutorError struct {
	StatementID string
	BatchIndex  int
	Results     []BatchResult
	Err         error
}

func (e *BatchExecutorError) Error() string {
	return fmt.Sprintf("%s (batch index #%d) failed. %d prior sub executor(s) completed successfully, but will be rolled back. Cause: %v",
		e.StatementID, e.BatchIndex+1, e.BatchIndex, e.Err)
}

func (e *BatchExecutorError) Unwrap() error { return e.Err }

// Kind names an executor strategy.
type Kind string

const (
	KindSimple Kind = "simple"
	KindReuse  Kind = "reuse"
	KindBatch  Kind = "batch"
)

// Option configures an executor.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	scope         mapping.LocalCacheScope
	environmentID string
	sessionID     string
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		scope:     mapping.ScopeSession,
		sessionID: uuid.NewString(),
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLocalCacheScope sets how long the local cache keeps results.
func WithLocalCacheScope(scope mapping.LocalCacheScope) Option {
	return func(o *options) {
		if scope != "" {
			o.scope = scope
		}
	}
}

// WithEnvironmentID adds id to every cache key so environments never share entries.
func WithEnvironmentID(id string) Option {
	return func(o *options) { o.environmentID = id }
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.sessionID = id
		}
	}
}

// New creates an executor of the given kind. An empty kind is simple.
func New(kind Kind, tx transaction.Transaction, mapper ResultMapper, opts ...Option) (Executor, error) {
	switch kind {
	case KindSimple, "":
		return NewSimple(tx, mapper, opts...), nil
	case KindReuse:
		return NewReuse(tx, mapper, opts...), nil
	case KindBatch:
		return NewBatch(tx, mapper, opts...), nil
	default:
		return nil, errors.Errorf("executor: unknown executor kind %q", kind)
	}
}
