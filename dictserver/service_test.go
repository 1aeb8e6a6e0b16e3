package dictserver_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldef/dictsql/dict"
	"github.com/sqldef/dictsql/dictserver"
)

// fakeDriver opens an in-memory SQLite database with a fixed schema,
// standing in for a real sqldriver.Driver in a Service-level test.
type fakeDriver struct {
	schema string
}

func (f *fakeDriver) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, f.schema); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (f *fakeDriver) Upsert() dict.UpsertMode { return dict.UpsertOnConflictDo }
func (f *fakeDriver) TablePrefix() string     { return "" }

func quotaMaps() []*dict.Map {
	return []*dict.Map{{
		Pattern:       "shared/quota/$",
		Table:         "q",
		PatternFields: []dict.Field{{Name: "user", Type: dict.TypeString}},
		ValueField:    "bytes",
		ValueTypes:    []dict.Type{dict.TypeInt},
	}}
}

func TestServiceSetThenLookup(t *testing.T) {
	svc := dictserver.New(&fakeDriver{schema: "CREATE TABLE q (user TEXT UNIQUE, bytes INT);"}, quotaMaps(), 4, nil, nil)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))
	defer svc.Deinit()

	tx, err := svc.TransactionInit(ctx, "")
	require.NoError(t, err)
	require.NoError(t, tx.Set("shared/quota/alice", "5", 0))
	status, err := tx.Commit()
	require.NoError(t, err)
	assert.Equal(t, dict.CommitOK, status)

	row, err := svc.Lookup(ctx, "", "shared/quota/alice")
	require.NoError(t, err)
	require.True(t, row.Found)
	assert.Equal(t, "5", row.Values[0])
}

func TestServiceLookupAsyncTrackedByWait(t *testing.T) {
	svc := dictserver.New(&fakeDriver{schema: "CREATE TABLE q (user TEXT, bytes INT);"}, quotaMaps(), 4, nil, nil)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))
	defer svc.Deinit()

	var got dict.LookupRow
	svc.LookupAsync(ctx, "", "shared/quota/ghost", func(row dict.LookupRow, err error) {
		assert.NoError(t, err)
		got = row
	})
	svc.Wait()

	assert.False(t, got.Found, "no row staged for this key")
}

func TestServiceIterateInit(t *testing.T) {
	svc := dictserver.New(&fakeDriver{schema: "CREATE TABLE q (user TEXT UNIQUE, bytes INT);"}, quotaMaps(), 4, dict.NullLogger{}, time.Now)
	ctx := context.Background()
	require.NoError(t, svc.Init(ctx))
	defer svc.Deinit()

	tx, err := svc.TransactionInit(ctx, "")
	require.NoError(t, err)
	require.NoError(t, tx.Set("shared/quota/alice", "1", 0))
	_, err = tx.Commit()
	require.NoError(t, err)

	it := svc.IterateInit(ctx, "", "shared/quota/", dict.IterFlags{}, -1)
	defer it.Close()
	row, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "shared/quota/alice", row.Key)
}
