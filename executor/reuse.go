package executor

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-statement-cache/mapping"
	"github.com/goliatone/go-statement-cache/transaction"
)

// Reuse keeps one prepared statement per SQL text until the next flush, commit or rollback.
type Reuse struct {
	*Base
	run        runner
	statements map[string]*sql.Stmt
}

func NewReuse(tx transaction.Transaction, mapper ResultMapper, opts ...Option) *Reuse {
	r := &Reuse{statements: make(map[string]*sql.Stmt)}
	r.Base = newBase(r, tx, mapper, opts)
	r.run = runner{base: r.Base, provide: r.prepareOnce}
	return r
}

// PreparedCount returns the number of statements currently kept.
func (r *Reuse) PreparedCount() int { return len(r.statements) }

func (r *Reuse) prepareOnce(ctx context.Context, conn transaction.Conn, query string) (*sql.Stmt, func(), error) {
	if ps, ok := r.statements[query]; ok {
		return ps, func() {}, nil
	}
	ps, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	r.statements[query] = ps
	return ps, func() {}, nil
}

func (r *Reuse) doUpdate(ctx context.Context, stmt *mapping.Statement, param any, bound *mapping.BoundSQL) (int64, error) {
	return r.run.update(ctx, stmt, param, bound)
}

func (r *Reuse) doQuery(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, bound *mapping.BoundSQL) ([]any, error) {
	return r.run.query(ctx, stmt, param, bounds, handler, bound)
}

// doQueryCursor prepares a dedicated statement so the cursor outliving a flush stays valid.
func (r *Reuse) doQueryCursor(ctx context.Context, stmt *mapping.Statement, _ any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*Cursor, error) {
	return runner{base: r.Base, provide: prepareEach}.cursor(ctx, stmt, bounds, bound)
}

func (r *Reuse) doFlushStatements(context.Context, bool) ([]BatchResult, error) {
	for query, ps := range r.statements {
		_ = ps.Close()
		delete(r.statements, query)
	}
	return nil, nil
}
