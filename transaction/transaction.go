package transaction

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Conn is the subset of a database handle the executors issue statements on, satisfied by
// *sql.DB and *sql.Tx.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Transaction wraps a database connection and its lifecycle.
type Transaction interface {
	// Conn returns the connection, starting the transaction on first use.
	Conn(ctx context.Context) (Conn, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
	// Timeout is the transaction wide statement timeout, zero when unset.
	Timeout() time.Duration
}

// ErrClosed is returned by a transaction used after Close.
var ErrClosed = errors.New("transaction: already closed")

// Config configures a BunTransaction.
type Config struct {
	// AutoCommit runs statements on the pool without a transaction.
	AutoCommit bool
	// Isolation is the isolation level of the transaction.
	Isolation sql.IsolationLevel
	// ReadOnly starts read only transactions.
	ReadOnly bool
	// Timeout bounds every statement of the transaction.
	Timeout time.Duration
}

// BunTransaction starts a bun transaction lazily, on the first statement.
type BunTransaction struct {
	db     *bun.DB
	cfg    Config
	logger *zap.Logger
	tx     *bun.Tx
	closed bool
}

// NewBunTransaction creates a transaction over db.
func NewBunTransaction(db *bun.DB, cfg Config, logger *zap.Logger) *BunTransaction {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BunTransaction{db: db, cfg: cfg, logger: logger}
}

func (t *BunTransaction) Conn(ctx context.Context) (Conn, error) {
	if t.closed {
		return nil, ErrClosed
	}
	if t.cfg.AutoCommit {
		return t.db.DB, nil
	}
	if t.tx == nil {
		if err := t.begin(ctx); err != nil {
			return nil, err
		}
	}
	return t.tx.Tx, nil
}

func (t *BunTransaction) begin(ctx context.Context) error {
	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: t.cfg.Isolation, ReadOnly: t.cfg.ReadOnly})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	t.logger.Debug("opened transaction", zap.Stringer("isolation", t.cfg.Isolation))
	t.tx = &tx
	return nil
}

// Commit commits the open transaction, if any. The next statement starts a new one.
func (t *BunTransaction) Commit(ctx context.Context) error {
	if t.closed {
		return ErrClosed
	}
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	t.logger.Debug("committing transaction")
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// Rollback rolls back the open transaction, if any.
func (t *BunTransaction) Rollback(ctx context.Context) error {
	if t.closed {
		return ErrClosed
	}
	if t.tx == nil {
		return nil
	}
	tx := t.tx
	t.tx = nil
	t.logger.Debug("rolling back transaction")
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return errors.Wrap(err, "rollback transaction")
	}
	return nil
}

// Close rolls back a transaction left open and marks t closed. Closing twice is a no-op.
func (t *BunTransaction) Close(ctx context.Context) error {
	if t.closed {
		return nil
	}
	err := t.Rollback(ctx)
	t.closed = true
	return err
}

func (t *BunTransaction) Timeout() time.Duration {
	return t.cfg.Timeout
}

// StatementContext bounds ctx by the smaller non-zero value of the statement and transaction
// timeouts. The returned cancel func is always non-nil.
func StatementContext(ctx context.Context, statementTimeout, transactionTimeout time.Duration) (context.Context, context.CancelFunc) {
	timeout := statementTimeout
	if transactionTimeout > 0 && (timeout <= 0 || transactionTimeout < timeout) {
		timeout = transactionTimeout
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
