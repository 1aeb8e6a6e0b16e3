// Package dicttest provides a throwaway in-memory SQL backend for dict
// package tests, grounded on the sqlite3def backend's use of
// modernc.org/sqlite rather than a hand-rolled fake Execer.
package dicttest

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sqldef/dictsql/dict"
)

// OpenSQLite opens a fresh in-memory SQLite database, applies schema, and
// registers cleanup on t.
func OpenSQLite(t testing.TB, schema string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FixedClock returns a dict.Clock that always reports at.
func FixedClock(at time.Time) dict.Clock {
	return func() time.Time { return at }
}
