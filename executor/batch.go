package executor

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/mapping"
	"github.com/goliatone/go-statement-cache/transaction"
)

type pendingBatch struct {
	stmt   *mapping.Statement
	sql    string
	ps     *sql.Stmt
	conn   transaction.Conn
	args   [][]any
	params []any
}

// Batch queues updates and runs them on FlushStatements, commit or before the next query.
// Consecutive updates of the same statement and SQL share one prepared statement.
type Batch struct {
	*Base
	run        runner
	batches    []*pendingBatch
	currentSQL string
	current    *mapping.Statement
}

func NewBatch(tx transaction.Transaction, mapper ResultMapper, opts ...Option) *Batch {
	b := &Batch{}
	b.Base = newBase(b, tx, mapper, opts)
	b.run = runner{base: b.Base, provide: prepareEach}
	return b
}

// doUpdate queues the statement and returns BatchUpdateReturnValue.
func (b *Batch) doUpdate(ctx context.Context, stmt *mapping.Statement, param any, bound *mapping.BoundSQL) (int64, error) {
	if stmt.Kind == mapping.KindCallable {
		for _, m := range bound.ParameterMappings {
			if m.IsOutput() {
				return 0, errors.Errorf("executor: statement %s has OUT parameters and cannot be batched", stmt.ID)
			}
		}
	}

	args, _, err := bindArgs(stmt, bound)
	if err != nil {
		return 0, err
	}

	if n := len(b.batches); n > 0 && b.currentSQL == bound.SQL && b.current == stmt {
		last := b.batches[n-1]
		last.args = append(last.args, args)
		last.params = append(last.params, param)
		return BatchUpdateReturnValue, nil
	}

	conn, err := b.tx.Conn(ctx)
	if err != nil {
		return 0, err
	}
	pending := &pendingBatch{stmt: stmt, sql: bound.SQL, conn: conn, args: [][]any{args}, params: []any{param}}
	if stmt.Kind != mapping.KindDirect {
		if pending.ps, err = conn.PrepareContext(ctx, bound.SQL); err != nil {
			return 0, errors.Wrapf(err, "prepare statement %s", stmt.ID)
		}
	}
	b.batches = append(b.batches, pending)
	b.currentSQL = bound.SQL
	b.current = stmt
	return BatchUpdateReturnValue, nil
}

func (b *Batch) doQuery(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, bound *mapping.BoundSQL) ([]any, error) {
	if _, err := b.doFlushStatements(ctx, false); err != nil {
		return nil, err
	}
	return b.run.query(ctx, stmt, param, bounds, handler, bound)
}

func (b *Batch) doQueryCursor(ctx context.Context, stmt *mapping.Statement, _ any, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*Cursor, error) {
	if _, err := b.doFlushStatements(ctx, false); err != nil {
		return nil, err
	}
	return b.run.cursor(ctx, stmt, bounds, bound)
}

// doFlushStatements runs the queued batches in order. On rollback they are discarded.
func (b *Batch) doFlushStatements(ctx context.Context, isRollback bool) ([]BatchResult, error) {
	defer b.reset()
	if isRollback {
		return nil, nil
	}

	results := make([]BatchResult, 0, len(b.batches))
	for i, pending := range b.batches {
		result := BatchResult{Statement: pending.stmt, SQL: pending.sql, Parameters: pending.params}
		for j, args := range pending.args {
			n, err := b.exec(ctx, pending, j, args)
			if err != nil {
				return nil, &BatchExecutorError{
					StatementID: pending.stmt.ID,
					BatchIndex:  i,
					Results:     results,
					Err:         err,
				}
			}
			result.UpdateCounts = append(result.UpdateCounts, n)
		}
		results = append(results, result)
	}
	return results, nil
}

func (b *Batch) exec(ctx context.Context, pending *pendingBatch, j int, args []any) (int64, error) {
	ctx, cancel := transaction.StatementContext(ctx, pending.stmt.Timeout, b.tx.Timeout())
	defer cancel()

	b.logger.Debug("executing batched statement",
		zap.String("statement", pending.stmt.ID),
		zap.String("sql", pending.sql),
		zap.Int("entry", j),
	)

	var (
		result sql.Result
		err    error
	)
	if pending.ps != nil {
		result, err = pending.ps.ExecContext(ctx, args...)
	} else {
		result, err = pending.conn.ExecContext(ctx, pending.sql, args...)
	}
	if err != nil {
		return 0, err
	}
	if err := applyGeneratedKey(pending.stmt, pending.params[j], result, b.logger); err != nil {
		return 0, err
	}
	return rowsAffected(result), nil
}

func (b *Batch) reset() {
	for _, pending := range b.batches {
		if pending.ps != nil {
			_ = pending.ps.Close()
		}
	}
	b.batches = nil
	b.currentSQL = ""
	b.current = nil
}
