package executor

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/mapping"
	"github.com/goliatone/go-statement-cache/transaction"
)

type outBinding struct {
	property string
	dest     reflect.Value
}

// bindArgs resolves the driver arguments of bound. OUT and INOUT mappings of callable statements
// are bound with sql.Out; other statement kinds bind INOUT as IN and skip OUT.
func bindArgs(stmt *mapping.Statement, bound *mapping.BoundSQL) ([]any, []outBinding, error) {
	args := make([]any, 0, len(bound.ParameterMappings))
	var outs []outBinding

	for _, m := range bound.ParameterMappings {
		callableOut := stmt.Kind == mapping.KindCallable && m.IsOutput()
		if m.Mode == mapping.ModeOut && !callableOut {
			continue
		}

		var value any
		if m.Mode != mapping.ModeOut {
			v, err := bound.ParameterValue(m)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "statement %s", stmt.ID)
			}
			value = v
		}
		if !callableOut {
			args = append(args, value)
			continue
		}

		dest := newOutDest(m.Type, value)
		outs = append(outs, outBinding{property: m.Property, dest: dest})
		args = append(args, sql.Out{Dest: dest.Interface(), In: m.Mode == mapping.ModeInOut})
	}
	return args, outs, nil
}

func newOutDest(t reflect.Type, initial any) reflect.Value {
	if t == nil {
		t = reflect.TypeOf((*any)(nil)).Elem()
	}
	dest := reflect.New(t)
	if initial != nil {
		if v := reflect.ValueOf(initial); v.Type().AssignableTo(t) {
			dest.Elem().Set(v)
		}
	}
	return dest
}

// writeOutParams copies OUT values back onto the parameter object.
func writeOutParams(param any, outs []outBinding) error {
	if len(outs) == 0 {
		return nil
	}
	if param == nil {
		return errors.New("executor: callable statement with OUT parameters needs a parameter object")
	}
	for _, out := range outs {
		if err := mapping.SetProperty(param, out.property, out.dest.Elem().Interface()); err != nil {
			return err
		}
	}
	return nil
}

// applyGeneratedKey stores the insert id on the parameter object when the statement names a
// key property and the driver reports one.
func applyGeneratedKey(stmt *mapping.Statement, param any, result sql.Result, logger *zap.Logger) error {
	if stmt.KeyProperty == "" || param == nil || result == nil {
		return nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		logger.Debug("driver does not report generated keys", zap.String("statement", stmt.ID), zap.Error(err))
		return nil
	}
	return mapping.SetProperty(param, stmt.KeyProperty, id)
}

func rowsAffected(result sql.Result) int64 {
	n, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}

// statementProvider returns a prepared statement for query and the func releasing it.
type statementProvider func(ctx context.Context, conn transaction.Conn, query string) (*sql.Stmt, func(), error)

// prepareEach prepares a fresh statement per call.
func prepareEach(ctx context.Context, conn transaction.Conn, query string) (*sql.Stmt, func(), error) {
	ps, err := conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	return ps, func() { _ = ps.Close() }, nil
}

// runner issues one statement with a given provider. Direct statements skip the provider.
type runner struct {
	base    *Base
	provide statementProvider
}

func (r runner) logStatement(stmt *mapping.Statement, bound *mapping.BoundSQL) {
	r.base.logger.Debug("executing statement",
		zap.String("statement", stmt.ID),
		zap.String("sql", bound.SQL),
		zap.Stringer("kind", stmt.Kind),
	)
}

func (r runner) update(ctx context.Context, stmt *mapping.Statement, param any, bound *mapping.BoundSQL) (int64, error) {
	conn, err := r.base.tx.Conn(ctx)
	if err != nil {
		return 0, err
	}
	args, outs, err := bindArgs(stmt, bound)
	if err != nil {
		return 0, err
	}

	ctx, cancel := transaction.StatementContext(ctx, stmt.Timeout, r.base.tx.Timeout())
	defer cancel()
	r.logStatement(stmt, bound)

	var result sql.Result
	if stmt.Kind == mapping.KindDirect {
		result, err = conn.ExecContext(ctx, bound.SQL, args...)
	} else {
		ps, release, perr := r.provide(ctx, conn, bound.SQL)
		if perr != nil {
			return 0, errors.Wrapf(perr, "prepare statement %s", stmt.ID)
		}
		defer release()
		result, err = ps.ExecContext(ctx, args...)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "execute statement %s", stmt.ID)
	}

	if err := writeOutParams(param, outs); err != nil {
		return 0, err
	}
	if err := applyGeneratedKey(stmt, param, result, r.base.logger); err != nil {
		return 0, err
	}
	return rowsAffected(result), nil
}

func (r runner) query(ctx context.Context, stmt *mapping.Statement, param any, bounds mapping.RowBounds, handler RowHandler, bound *mapping.BoundSQL) ([]any, error) {
	rows, outs, done, err := r.open(ctx, stmt, bound)
	if err != nil {
		return nil, err
	}

	list, err := r.base.mapper.MapRows(ctx, r.base.self(), stmt, rows, bounds, handler)
	closeErr := rows.Close()
	done()
	if err != nil {
		return nil, errors.Wrapf(err, "map rows of statement %s", stmt.ID)
	}
	if closeErr != nil {
		return nil, errors.Wrapf(closeErr, "close rows of statement %s", stmt.ID)
	}

	if err := writeOutParams(param, outs); err != nil {
		return nil, err
	}
	return list, nil
}

func (r runner) cursor(ctx context.Context, stmt *mapping.Statement, bounds mapping.RowBounds, bound *mapping.BoundSQL) (*Cursor, error) {
	rows, _, done, err := r.open(ctx, stmt, bound)
	if err != nil {
		return nil, err
	}
	return newCursor(ctx, stmt, rows, bounds, r.base.mapper, done), nil
}

// open runs a query and returns its rows together with the func releasing the statement and
// the statement context. The caller closes the rows before calling it.
func (r runner) open(ctx context.Context, stmt *mapping.Statement, bound *mapping.BoundSQL) (*sql.Rows, []outBinding, func(), error) {
	conn, err := r.base.tx.Conn(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	args, outs, err := bindArgs(stmt, bound)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := transaction.StatementContext(ctx, stmt.Timeout, r.base.tx.Timeout())
	r.logStatement(stmt, bound)

	if stmt.Kind == mapping.KindDirect {
		rows, err := conn.QueryContext(ctx, bound.SQL, args...)
		if err != nil {
			cancel()
			return nil, nil, nil, errors.Wrapf(err, "query statement %s", stmt.ID)
		}
		return rows, outs, cancel, nil
	}

	ps, release, err := r.provide(ctx, conn, bound.SQL)
	if err != nil {
		cancel()
		return nil, nil, nil, errors.Wrapf(err, "prepare statement %s", stmt.ID)
	}
	rows, err := ps.QueryContext(ctx, args...)
	if err != nil {
		release()
		cancel()
		return nil, nil, nil, errors.Wrapf(err, "query statement %s", stmt.ID)
	}
	return rows, outs, func() {
		release()
		cancel()
	}, nil
}
