package testsupport

import (
	"context"
	"database/sql"
	"sync/atomic"

	"github.com/goliatone/go-statement-cache/executor"
	"github.com/goliatone/go-statement-cache/mapping"
)

// CountingMapper records how many result sets reach the database mapper. A query answered from
// a cache never calls MapRows, so the count tells hits from misses.
type CountingMapper struct {
	executor.ResultMapper
	calls atomic.Int64

	// AfterMap, when set, runs after each result set is mapped, with the executor that ran it.
	AfterMap func(ctx context.Context, exec executor.Executor, stmt *mapping.Statement, list []any) error
}

func NewCountingMapper(delegate executor.ResultMapper) *CountingMapper {
	return &CountingMapper{ResultMapper: delegate}
}

func (m *CountingMapper) MapRows(ctx context.Context, exec executor.Executor, stmt *mapping.Statement, rows *sql.Rows, bounds mapping.RowBounds, handler executor.RowHandler) ([]any, error) {
	m.calls.Add(1)
	list, err := m.ResultMapper.MapRows(ctx, exec, stmt, rows, bounds, handler)
	if err != nil || m.AfterMap == nil {
		return list, err
	}
	if err := m.AfterMap(ctx, exec, stmt, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Calls returns the number of MapRows calls so far.
func (m *CountingMapper) Calls() int {
	return int(m.calls.Load())
}
