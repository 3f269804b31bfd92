package testsupport

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var dbSeq atomic.Int64

// OpenSQLite opens a private in-memory sqlite database wrapped in bun. The pool holds a single
// connection so every statement sees the same database. It is closed when the test ends.
func OpenSQLite(t testing.TB) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// ExecSQL runs each statement in order, failing the test on the first error.
func ExecSQL(t testing.TB, db *bun.DB, statements ...string) {
	t.Helper()

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to execute %q: %v", stmt, err)
		}
	}
}

// AuthorsSchema creates and fills the authors table used across the test suites.
func AuthorsSchema(t testing.TB, db *bun.DB) {
	t.Helper()

	ExecSQL(t, db,
		`CREATE TABLE authors (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`,
		`INSERT INTO authors (name) VALUES ('ada'), ('grace'), ('linus')`,
	)
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, db *bun.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("failed to count rows of %s: %v", table, err)
	}
	return n
}
