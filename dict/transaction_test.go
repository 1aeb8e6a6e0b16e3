package dict_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/dictsql/dict"
	"github.com/sqldef/dictsql/dict/dicttest"
)

// TestTransactionS4 reproduces scenario S4: a plain set is visible after
// commit.
func TestTransactionS4(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, bytes INT);`)
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	txn := dict.NewTransaction(context.Background(), tx, []*dict.Map{childQuotaMap()}, "", "", dict.UpsertPlain, dicttest.FixedClock(time.Now()))
	require.NoError(t, txn.Set("shared/quota/alice", "7", 0))
	status, err := txn.Commit()
	require.NoError(t, err)
	assert.Equal(t, dict.CommitOK, status)

	var bytes int
	require.NoError(t, db.QueryRow(`SELECT bytes FROM q WHERE user = 'alice'`).Scan(&bytes))
	assert.Equal(t, 7, bytes)
}

// TestTransactionSetMergesToLastValue: two consecutive Set calls on the
// same key coalesce into one INSERT carrying the most recent value
// (invariant around §4.6's mergeability test).
func TestTransactionSetMergesToLastValue(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, bytes INT);`)
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	txn := dict.NewTransaction(context.Background(), tx, []*dict.Map{childQuotaMap()}, "", "", dict.UpsertPlain, dicttest.FixedClock(time.Now()))
	require.NoError(t, txn.Set("shared/quota/alice", "1", 0))
	require.NoError(t, txn.Set("shared/quota/alice", "2", 0))
	status, err := txn.Commit()
	require.NoError(t, err)
	assert.Equal(t, dict.CommitOK, status)

	var count, bytes int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*), MAX(bytes) FROM q WHERE user = 'alice'`).Scan(&count, &bytes))
	assert.Equal(t, 1, count, "expected a single coalesced row")
	assert.Equal(t, 2, bytes, "last value should win")
}

// TestTransactionSetLeavesSecondaryValueColumnsUntouched: a map whose
// value_field names more than one column ("sent,received") only ever
// writes the first segment on Set — dict-sql.c's t_strcut(map->value_field,
// ',') only ever references the first comma-segment, leaving any other
// value columns completely alone rather than zeroing them.
func TestTransactionSetLeavesSecondaryValueColumnsUntouched(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE traffic (user TEXT UNIQUE, sent INT, received INT);`)
	_, err := db.Exec(`INSERT INTO traffic (user, sent, received) VALUES ('alice', 0, 42)`)
	require.NoError(t, err)

	m := &dict.Map{
		Pattern:       "shared/traffic/$",
		Table:         "traffic",
		PatternFields: []dict.Field{{Name: "user", Type: dict.TypeString}},
		ValueField:    "sent,received",
		ValueTypes:    []dict.Type{dict.TypeInt, dict.TypeInt},
	}

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	txn := dict.NewTransaction(context.Background(), tx, []*dict.Map{m}, "", "", dict.UpsertOnConflictDo, dicttest.FixedClock(time.Now()))
	require.NoError(t, txn.Set("shared/traffic/alice", "7", 0))
	status, err := txn.Commit()
	require.NoError(t, err)
	assert.Equal(t, dict.CommitOK, status)

	var sent, received int
	require.NoError(t, db.QueryRow(`SELECT sent, received FROM traffic WHERE user = 'alice'`).Scan(&sent, &received))
	assert.Equal(t, 7, sent, "first value_field segment is overwritten")
	assert.Equal(t, 42, received, "second value_field segment must survive untouched")
}

// TestTransactionIncMergesToSum: two consecutive AtomicInc calls on the
// same key coalesce into one UPDATE carrying the sum of deltas.
func TestTransactionIncMergesToSum(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, bytes INT);`)
	_, err := db.Exec(`INSERT INTO q (user, bytes) VALUES ('alice', 10)`)
	require.NoError(t, err)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	txn := dict.NewTransaction(context.Background(), tx, []*dict.Map{childQuotaMap()}, "", "", dict.UpsertPlain, dicttest.FixedClock(time.Now()))
	require.NoError(t, txn.AtomicInc("shared/quota/alice", 5))
	require.NoError(t, txn.AtomicInc("shared/quota/alice", 3))
	status, err := txn.Commit()
	require.NoError(t, err)
	assert.Equal(t, dict.CommitOK, status)

	var bytes int
	require.NoError(t, db.QueryRow(`SELECT bytes FROM q WHERE user = 'alice'`).Scan(&bytes))
	assert.Equal(t, 18, bytes, "10 + 5 + 3")
}

// TestTransactionIncMissingRowReportsNotFound reproduces scenario S6: an
// atomic_inc against a row that does not exist commits (it changed
// nothing, which is not an error) but reports CommitNotFound.
func TestTransactionIncMissingRowReportsNotFound(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, bytes INT);`)
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	txn := dict.NewTransaction(context.Background(), tx, []*dict.Map{childQuotaMap()}, "", "", dict.UpsertPlain, dicttest.FixedClock(time.Now()))
	require.NoError(t, txn.AtomicInc("shared/quota/nobody", 1))
	status, err := txn.Commit()
	require.NoError(t, err)
	assert.Equal(t, dict.CommitNotFound, status)
}

// TestTransactionUnset reproduces an unset: the row is gone after commit.
func TestTransactionUnset(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, bytes INT);`)
	_, err := db.Exec(`INSERT INTO q (user, bytes) VALUES ('alice', 10)`)
	require.NoError(t, err)

	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	txn := dict.NewTransaction(context.Background(), tx, []*dict.Map{childQuotaMap()}, "", "", dict.UpsertPlain, dicttest.FixedClock(time.Now()))
	require.NoError(t, txn.Unset("shared/quota/alice"))
	status, err := txn.Commit()
	require.NoError(t, err)
	assert.Equal(t, dict.CommitOK, status)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM q`).Scan(&count))
	assert.Equal(t, 0, count)
}

// TestTransactionRollbackDiscardsStagedWrites checks that an explicit
// Rollback throws away buffered-but-unflushed operations.
func TestTransactionRollbackDiscardsStagedWrites(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, bytes INT);`)
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	txn := dict.NewTransaction(context.Background(), tx, []*dict.Map{childQuotaMap()}, "", "", dict.UpsertPlain, dicttest.FixedClock(time.Now()))
	require.NoError(t, txn.Set("shared/quota/alice", "1", 0))
	require.NoError(t, txn.Rollback())

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM q`).Scan(&count))
	assert.Equal(t, 0, count, "rollback should discard staged writes")
}
