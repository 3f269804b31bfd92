package executor

import (
	"context"
	"database/sql"
	"reflect"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-statement-cache/mapping"
)

// ResultMapper materializes rows. MapRows receives the session executor so mappers that resolve
// nested queries can run them and defer their loads through it.
type ResultMapper interface {
	MapRows(ctx context.Context, exec Executor, stmt *mapping.Statement, rows *sql.Rows, bounds mapping.RowBounds, handler RowHandler) ([]any, error)
	ScanRow(ctx context.Context, stmt *mapping.Statement, rows *sql.Rows) (any, error)
}

// CollectRows walks rows within bounds, scanning each with scan. Rows go to handler when one is
// given and are collected into the returned list otherwise.
func CollectRows(ctx context.Context, rows *sql.Rows, bounds mapping.RowBounds, handler RowHandler, scan func() (any, error)) ([]any, error) {
	for skipped := 0; skipped < bounds.Offset; skipped++ {
		if !rows.Next() {
			return []any{}, rows.Err()
		}
	}

	limit := bounds.Limit
	if limit <= 0 {
		limit = mapping.NoRowLimit
	}

	list := []any{}
	for count := 0; count < limit && rows.Next(); count++ {
		row, err := scan()
		if err != nil {
			return nil, err
		}
		if handler == nil {
			list = append(list, row)
			continue
		}
		if err := handler(ctx, row); err != nil {
			if errors.Is(err, ErrStopRows) {
				break
			}
			return nil, err
		}
	}
	return list, rows.Err()
}

// BunResultMapper scans rows with bun. Statements without a ResultType produce map[string]any
// rows; pointer result types produce pointers.
type BunResultMapper struct {
	db *bun.DB
}

func NewBunResultMapper(db *bun.DB) *BunResultMapper {
	return &BunResultMapper{db: db}
}

func (m *BunResultMapper) MapRows(ctx context.Context, _ Executor, stmt *mapping.Statement, rows *sql.Rows, bounds mapping.RowBounds, handler RowHandler) ([]any, error) {
	return CollectRows(ctx, rows, bounds, handler, func() (any, error) {
		return m.ScanRow(ctx, stmt, rows)
	})
}

func (m *BunResultMapper) ScanRow(ctx context.Context, stmt *mapping.Statement, rows *sql.Rows) (any, error) {
	if stmt.ResultType == nil {
		row := map[string]any{}
		if err := m.db.ScanRow(ctx, rows, &row); err != nil {
			return nil, errors.Wrapf(err, "scan row of %s", stmt.ID)
		}
		return row, nil
	}

	t := stmt.ResultType
	pointer := t.Kind() == reflect.Pointer
	if pointer {
		t = t.Elem()
	}
	dest := reflect.New(t)
	if err := m.db.ScanRow(ctx, rows, dest.Interface()); err != nil {
		return nil, errors.Wrapf(err, "scan row of %s into %s", stmt.ID, stmt.ResultType)
	}
	if pointer {
		return dest.Interface(), nil
	}
	return dest.Elem().Interface(), nil
}
