// Package session exposes statement execution by id on top of an executor.
package session

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/goliatone/go-statement-cache/executor"
	"github.com/goliatone/go-statement-cache/mapping"
)

var (
	// ErrNullPrimitiveResult is returned by SelectScalar when a numeric or boolean result is null.
	ErrNullPrimitiveResult = errors.New("session: statement returned null for a primitive result type")
	// ErrTooManyResults is returned by SelectOne when more than one row matches.
	ErrTooManyResults = errors.New("session: expected one result (or null) but found more")
)

// Session runs registered statements through an executor and decides when commits and
// rollbacks reach the database. A Session is not safe for concurrent use.
type Session struct {
	registry   *mapping.Registry
	exec       executor.Executor
	autoCommit bool
	dirty      bool
	cursors    []*executor.Cursor
	logger     *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithAutoCommit marks the session as running on an auto-commit transaction; commits and
// rollbacks are then only issued when forced.
func WithAutoCommit(autoCommit bool) Option {
	return func(s *Session) { s.autoCommit = autoCommit }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(registry *mapping.Registry, exec executor.Executor, opts ...Option) *Session {
	s := &Session{
		registry: registry,
		exec:     exec,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", exec.SessionID()))
	return s
}

// Executor returns the executor backing the session.
func (s *Session) Executor() executor.Executor { return s.exec }

// IsDirty reports whether updates ran since the last commit or rollback.
func (s *Session) IsDirty() bool { return s.dirty }

// SelectOne returns the single row of statement id, nil when there is none.
func (s *Session) SelectOne(ctx context.Context, id string, param any) (any, error) {
	list, err := s.SelectList(ctx, id, param)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, nil
	case 1:
		return list[0], nil
	default:
		return nil, errors.Wrapf(ErrTooManyResults, "statement %s returned %d rows", id, len(list))
	}
}

func (s *Session) SelectList(ctx context.Context, id string, param any) ([]any, error) {
	return s.SelectPage(ctx, id, param, mapping.DefaultRowBounds())
}

// SelectPage returns the rows of statement id within bounds.
func (s *Session) SelectPage(ctx context.Context, id string, param any, bounds mapping.RowBounds) ([]any, error) {
	stmt, err := s.statement(id)
	if err != nil {
		return nil, err
	}
	return s.exec.Query(ctx, stmt, param, bounds, nil)
}

// Select streams the rows of statement id to handler.
func (s *Session) Select(ctx context.Context, id string, param any, bounds mapping.RowBounds, handler executor.RowHandler) error {
	if handler == nil {
		return errors.New("session: Select requires a row handler")
	}
	stmt, err := s.statement(id)
	if err != nil {
		return err
	}
	_, err = s.exec.Query(ctx, stmt, param, bounds, handler)
	return err
}

// SelectCursor opens a cursor over statement id. Cursors left open are closed with the session.
func (s *Session) SelectCursor(ctx context.Context, id string, param any, bounds mapping.RowBounds) (*executor.Cursor, error) {
	stmt, err := s.statement(id)
	if err != nil {
		return nil, err
	}
	cur, err := s.exec.QueryCursor(ctx, stmt, param, bounds)
	if err != nil {
		return nil, err
	}
	s.cursors = append(s.cursors, cur)
	return cur, nil
}

func (s *Session) Insert(ctx context.Context, id string, param any) (int64, error) {
	return s.Update(ctx, id, param)
}

func (s *Session) Delete(ctx context.Context, id string, param any) (int64, error) {
	return s.Update(ctx, id, param)
}

// Update runs statement id and returns the affected row count. Batch executors return
// executor.BatchUpdateReturnValue until FlushStatements.
func (s *Session) Update(ctx context.Context, id string, param any) (int64, error) {
	stmt, err := s.statement(id)
	if err != nil {
		return 0, err
	}
	s.dirty = true
	return s.exec.Update(ctx, stmt, param)
}

func (s *Session) FlushStatements(ctx context.Context) ([]executor.BatchResult, error) {
	return s.exec.FlushStatements(ctx)
}

// Commit commits when updates ran since the last commit, or always when force is set.
func (s *Session) Commit(ctx context.Context, force bool) error {
	if err := s.exec.Commit(ctx, s.commitOrRollbackRequired(force)); err != nil {
		return errors.Wrap(err, "commit session")
	}
	s.dirty = false
	return nil
}

// Rollback rolls back when updates ran since the last commit, or always when force is set.
func (s *Session) Rollback(ctx context.Context, force bool) error {
	if err := s.exec.Rollback(ctx, s.commitOrRollbackRequired(force)); err != nil {
		return errors.Wrap(err, "rollback session")
	}
	s.dirty = false
	return nil
}

func (s *Session) ClearCache(ctx context.Context) {
	s.exec.ClearLocalCache(ctx)
}

// Close closes open cursors and the executor, rolling back uncommitted updates.
func (s *Session) Close(ctx context.Context) error {
	var errs error
	for _, cur := range s.cursors {
		errs = multierr.Append(errs, cur.Close())
	}
	s.cursors = nil
	if errs != nil {
		s.logger.Warn("closing cursors failed", zap.Error(errs))
	}

	err := s.exec.Close(ctx, s.commitOrRollbackRequired(false))
	s.dirty = false
	return err
}

func (s *Session) commitOrRollbackRequired(force bool) bool {
	return (!s.autoCommit && s.dirty) || force
}

func (s *Session) statement(id string) (*mapping.Statement, error) {
	return s.registry.Statement(id)
}

// SelectScalar runs statement id and converts its single value to T. A single column map row
// yields its only value. Numeric and boolean targets reject null results with
// ErrNullPrimitiveResult; other targets get their zero value.
func SelectScalar[T any](ctx context.Context, s *Session, id string, param any) (T, error) {
	var zero T
	target := reflect.TypeOf((*T)(nil)).Elem()

	v, err := s.SelectOne(ctx, id, param)
	if err != nil {
		return zero, err
	}
	if row, ok := v.(map[string]any); ok && len(row) == 1 {
		for _, col := range row {
			v = col
		}
	}
	if v == nil {
		if isPrimitive(target) {
			return zero, errors.Wrapf(ErrNullPrimitiveResult, "statement %s into %s", id, target)
		}
		return zero, nil
	}

	if out, ok := v.(T); ok {
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().ConvertibleTo(target) && isPrimitive(rv.Type()) == isPrimitive(target) {
		return rv.Convert(target).Interface().(T), nil
	}
	return zero, errors.Errorf("session: statement %s returned %T, not convertible to %s", id, v, target)
}

// RowCount converts an affected row count to int, int64 or bool (true when rows changed).
func RowCount[T int | int64 | bool](n int64) T {
	var out T
	switch p := any(&out).(type) {
	case *int:
		*p = int(n)
	case *int64:
		*p = n
	case *bool:
		*p = n > 0
	}
	return out
}

func isPrimitive(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
