package executor

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-statement-cache/mapping"
)

// Cursor streams the rows of a query one at a time. Rows are scanned on demand and never kept,
// and the local cache is neither consulted nor filled. A cursor must be closed.
type Cursor struct {
	ctx      context.Context
	stmt     *mapping.Statement
	rows     *sql.Rows
	bounds   mapping.RowBounds
	mapper   ResultMapper
	release  func()
	current  any
	index    int
	skipped  bool
	consumed bool
	closed   bool
	err      error
}

func newCursor(ctx context.Context, stmt *mapping.Statement, rows *sql.Rows, bounds mapping.RowBounds, mapper ResultMapper, release func()) *Cursor {
	if bounds.Limit <= 0 {
		bounds.Limit = mapping.NoRowLimit
	}
	return &Cursor{
		ctx:     ctx,
		stmt:    stmt,
		rows:    rows,
		bounds:  bounds,
		mapper:  mapper,
		release: release,
		index:   -1,
	}
}

// Next advances to the next row within the bounds. It returns false at the end of the window,
// on error, or once the cursor is closed. The cursor closes itself when exhausted.
func (c *Cursor) Next() bool {
	if c.closed || c.consumed {
		return false
	}

	if !c.skipped {
		c.skipped = true
		for i := 0; i < c.bounds.Offset; i++ {
			if !c.rows.Next() {
				return c.finish()
			}
		}
	}

	if c.index+1 >= c.bounds.Limit || !c.rows.Next() {
		return c.finish()
	}

	row, err := c.mapper.ScanRow(c.ctx, c.stmt, c.rows)
	if err != nil {
		c.err = err
		c.finish()
		return false
	}
	c.current = row
	c.index++
	return true
}

// Row returns the current row.
func (c *Cursor) Row() any { return c.current }

// Index returns the position of the current row within the window, -1 before the first row.
func (c *Cursor) Index() int { return c.index }

func (c *Cursor) Err() error { return c.err }

func (c *Cursor) IsOpen() bool { return !c.closed }

func (c *Cursor) IsConsumed() bool { return c.consumed }

// Close releases the rows and the statement. Closing twice is a no-op.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	if c.release != nil {
		c.release()
	}
	return err
}

func (c *Cursor) finish() bool {
	c.consumed = true
	if c.err == nil {
		c.err = c.rows.Err()
	}
	if err := c.Close(); err != nil && c.err == nil {
		c.err = err
	}
	c.current = nil
	return false
}
