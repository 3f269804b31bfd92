package executor

import (
	"context"

	"github.com/goliatone/go-statement-cache/mapping"
	"github.com/goliatone/go-statement-cache/transaction"
)

// Simple prepares, runs and closes a driver statement for every call.
type Simple struct {
	*Base
	run runner
}

func NewSimple(tx transaction.Transaction, mapper ResultMapper, opts ...Option) *Simple {
	s := &Simple{}
	s.Base = newBase(s, tx, mapper, opts)
	s.run = runner{base: s.Base, provide: prepareEach}
	return s
}

func (s *Simple) doUpdate(ctx context.Context, stmt *mapping.Statement, param any, bound *mapping.BoundSQL) (int64, error) {
	return s.run.update(ctx, stmt, param, bound)
}

func (s *Simple) doQuery(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, bound *mapping.BoundSQL) ([]any, error) {
	return s.run.query(ctx, stmt, param, bounds, handler, bound)
}

func (s *Simple) doQueryCursor(ctx context.Context, stmt *mapping.Statement, _ any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*Cursor, error) {
	return s.run.cursor(ctx, stmt, bounds, bound)
}

func (s *Simple) doFlushStatements(context.Context, bool) ([]BatchResult, error) {
	return nil, nil
}
