package sqldriver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqldef/dictsql/dict"
)

func TestMySQLDSNTCP(t *testing.T) {
	m := NewMySQL(Config{Host: "db.local", Port: 3306, User: "root", Password: "secret", DbName: "app", TablePrefix: "p_"})
	dsn := m.dsn()
	assert.Contains(t, dsn, "db.local:3306")
	assert.Contains(t, dsn, "app")
	assert.Equal(t, dict.UpsertOnDuplicateKey, m.Upsert())
	assert.Equal(t, "p_", m.TablePrefix())
}

func TestMySQLDSNSocket(t *testing.T) {
	m := NewMySQL(Config{Socket: "/tmp/mysql.sock", DbName: "app"})
	assert.Contains(t, m.dsn(), "unix(/tmp/mysql.sock)")
}

func TestPostgresDSN(t *testing.T) {
	p := NewPostgres(Config{Host: "pg.local", Port: 5432, User: "postgres", Password: "s3cr3t", DbName: "app", SslMode: "require"})
	dsn := p.dsn()
	for _, want := range []string{"host=pg.local", "port=5432", "user=postgres", "dbname=app", "password=s3cr3t", "sslmode=require"} {
		assert.Contains(t, dsn, want)
	}
	assert.Equal(t, dict.UpsertOnConflictDo, p.Upsert())
}

func TestPostgresDSNDefaultsSslModeDisable(t *testing.T) {
	p := NewPostgres(Config{Host: "pg.local", Port: 5432, User: "postgres", DbName: "app"})
	dsn := p.dsn()
	assert.Contains(t, dsn, "sslmode=disable")
	assert.NotContains(t, dsn, "password=")
}

func TestSQLiteUpsertAndPrefix(t *testing.T) {
	s := NewSQLite(Config{TablePrefix: "t_"})
	assert.Equal(t, dict.UpsertOnConflictDo, s.Upsert())
	assert.Equal(t, "t_", s.TablePrefix())
}

func TestMSSQLDSN(t *testing.T) {
	m := NewMSSQL(Config{Host: "mssql.local", Port: 1433, User: "sa", Password: "s3cr3t", DbName: "app"})
	dsn := m.dsn()
	assert.True(t, strings.HasPrefix(dsn, "sqlserver://"))
	assert.Contains(t, dsn, "mssql.local:1433")
	assert.Contains(t, dsn, "database=app")
	assert.Equal(t, dict.UpsertPlain, m.Upsert())
}

func TestMSSQLDSNNoPort(t *testing.T) {
	m := NewMSSQL(Config{Host: "mssql.local"})
	assert.NotContains(t, m.dsn(), ":0")
}
