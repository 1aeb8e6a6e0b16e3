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

func quotaMap() *dict.Map {
	return &dict.Map{
		Pattern:       "shared/quota/$",
		Table:         "q",
		PatternFields: []dict.Field{{Name: "user", Type: dict.TypeString}},
		ValueField:    "bytes",
		ValueTypes:    []dict.Type{dict.TypeInt},
		UsernameField: "u",
	}
}

// privQuotaMap is the private-path counterpart of quotaMap: same table,
// pattern rewritten under priv/ (§4.3's add_username applies only once the
// map itself is registered under the private prefix).
func privQuotaMap() *dict.Map {
	m := quotaMap()
	m.Pattern = "priv/quota/$"
	return m
}

func expiringMap() *dict.Map {
	return &dict.Map{
		Pattern:       "shared/session/$",
		Table:         "s",
		PatternFields: []dict.Field{{Name: "user", Type: dict.TypeString}},
		ValueField:    "val",
		ValueTypes:    []dict.Type{dict.TypeString},
		ExpireField:   "exp",
	}
}

// TestLookupS1 reproduces scenario S1: exact get, no username.
func TestLookupS1(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, u TEXT, bytes INT);`)
	_, err := db.Exec(`INSERT INTO q (user, bytes) VALUES ('alice', 42)`)
	require.NoError(t, err)

	row, err := dict.Lookup(context.Background(), db, []*dict.Map{quotaMap()}, "", "", "shared/quota/alice", time.Now)
	require.NoError(t, err)
	assert.True(t, row.Found)
	assert.Equal(t, []string{"42"}, row.Values)
}

// TestLookupS2 reproduces scenario S2: private get with username.
func TestLookupS2(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, u TEXT, bytes INT);`)
	_, err := db.Exec(`INSERT INTO q (user, u, bytes) VALUES ('alice', 'bob', 99)`)
	require.NoError(t, err)

	row, err := dict.Lookup(context.Background(), db, []*dict.Map{privQuotaMap()}, "", "bob", "priv/quota/alice", time.Now)
	require.NoError(t, err)
	require.True(t, row.Found)
	assert.Equal(t, "99", row.Values[0])

	// Wrong username finds nothing.
	row, err = dict.Lookup(context.Background(), db, []*dict.Map{privQuotaMap()}, "", "eve", "priv/quota/alice", time.Now)
	require.NoError(t, err)
	assert.False(t, row.Found)
}

func TestLookupUnmappedKey(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, bytes INT);`)
	_, err := dict.Lookup(context.Background(), db, []*dict.Map{quotaMap()}, "", "", "shared/other/alice", time.Now)
	require.Error(t, err)

	var derr *dict.Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, dict.KindUnmappedKey, derr.Kind)
}

// TestLookupS7 reproduces scenario S7: expired row skipped.
func TestLookupS7(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE s (user TEXT, val TEXT, exp INT);`)
	now := time.Now()
	_, err := db.Exec(`INSERT INTO s (user, val, exp) VALUES ('alice', 'v', ?)`, now.Unix()-1)
	require.NoError(t, err)

	row, err := dict.Lookup(context.Background(), db, []*dict.Map{expiringMap()}, "", "", "shared/session/alice", dicttest.FixedClock(now))
	require.NoError(t, err)
	assert.False(t, row.Found, "expired row should be treated as missing")
}

func TestLookupAsyncNullPrimaryCoercesToMissing(t *testing.T) {
	db := dicttest.OpenSQLite(t, `CREATE TABLE q (user TEXT, bytes INT);`)
	_, err := db.Exec(`INSERT INTO q (user, bytes) VALUES ('alice', NULL)`)
	require.NoError(t, err)

	m := &dict.Map{
		Pattern:       "shared/quota/$",
		Table:         "q",
		PatternFields: []dict.Field{{Name: "user", Type: dict.TypeString}},
		ValueField:    "bytes",
		ValueTypes:    []dict.Type{dict.TypeInt},
	}

	// Sync path returns found=true, value="".
	row, err := dict.Lookup(context.Background(), db, []*dict.Map{m}, "", "", "shared/quota/alice", time.Now)
	require.NoError(t, err)
	require.True(t, row.Found)
	assert.Equal(t, "", row.Values[0])

	done := make(chan dict.LookupRow, 1)
	dict.LookupAsync(context.Background(), db, []*dict.Map{m}, "", "", "shared/quota/alice", time.Now, func(r dict.LookupRow, err error) {
		assert.NoError(t, err)
		done <- r
	})
	select {
	case r := <-done:
		assert.False(t, r.Found, "async NULL primary value should coerce to not-found")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for LookupAsync callback")
	}
}
