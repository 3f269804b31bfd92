package mapping

import (
	"math"
	"reflect"
	"time"

	"github.com/goliatone/go-statement-cache/cache"
)

// CommandType is the kind of SQL command a statement runs.
type CommandType int

const (
	CommandUnknown CommandType = iota
	CommandInsert
	CommandUpdate
	CommandDelete
	CommandSelect
	CommandFlush
)

func (c CommandType) String() string {
	switch c {
	case CommandInsert:
		return "INSERT"
	case CommandUpdate:
		return "UPDATE"
	case CommandDelete:
		return "DELETE"
	case CommandSelect:
		return "SELECT"
	case CommandFlush:
		return "FLUSH"
	default:
		return "UNKNOWN"
	}
}

// StatementKind selects how the driver statement is issued.
type StatementKind int

const (
	// KindPrepared prepares the SQL before executing it. This is the default.
	KindPrepared StatementKind = iota
	// KindDirect sends the SQL and its arguments without an explicit prepare.
	KindDirect
	// KindCallable calls a stored procedure; OUT and INOUT parameters are bound with sql.Out.
	KindCallable
)

func (k StatementKind) String() string {
	switch k {
	case KindDirect:
		return "DIRECT"
	case KindCallable:
		return "CALLABLE"
	default:
		return "PREPARED"
	}
}

// LocalCacheScope controls how long an executor keeps query results in its local cache.
type LocalCacheScope string

const (
	// ScopeSession keeps results until the next update, commit, rollback or close.
	ScopeSession LocalCacheScope = "session"
	// ScopeStatement drops results as soon as the outermost query returns.
	ScopeStatement LocalCacheScope = "statement"
)

// NoRowLimit is the limit of RowBounds that do not restrict the result.
const NoRowLimit = math.MaxInt32

// RowBounds restricts a query to a window of its rows.
type RowBounds struct {
	Offset int
	Limit  int
}

// DefaultRowBounds returns bounds that do not skip or cap rows.
func DefaultRowBounds() RowBounds {
	return RowBounds{Offset: 0, Limit: NoRowLimit}
}

// IsDefault reports whether b leaves the result untouched.
func (b RowBounds) IsDefault() bool {
	return b.Offset == 0 && b.Limit == NoRowLimit
}

// Statement is a mapped statement: an id, the source that compiles its SQL and the flags the
// executors and caches act on.
type Statement struct {
	ID          string
	Source      SQLSource
	CommandType CommandType
	Kind        StatementKind

	// FlushCacheRequired clears the local cache and the namespace cache before running.
	FlushCacheRequired bool

	// UseCache allows results to be stored in the namespace cache.
	UseCache bool

	// Cache is the namespace second-level cache, nil when the namespace has none.
	Cache cache.Cache

	// ResultType is the row type produced by the result mapper. Nil yields map[string]any rows.
	ResultType reflect.Type

	// Timeout bounds each execution. Zero leaves it to the transaction.
	Timeout time.Duration

	// KeyProperty receives the generated id of an insert when set.
	KeyProperty string
}

// BoundSQL compiles the statement for param.
func (s *Statement) BoundSQL(param any) (*BoundSQL, error) {
	return s.Source.BoundSQL(param)
}

// IsSelect reports whether the statement reads rows.
func (s *Statement) IsSelect() bool {
	return s.CommandType == CommandSelect
}
