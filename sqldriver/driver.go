// Package sqldriver supplies the per-backend connection and capability
// layer named but deliberately left abstract by §6 ("driver abstraction,
// backend selection ... is a thin layer outside this package's scope").
package sqldriver

import (
	"context"
	"database/sql"

	"github.com/sqldef/dictsql/dict"
)

// Config is the connection configuration shared by every backend,
// mirroring the flag layout the teacher's cmd/*def entrypoints parse.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DbName   string
	Socket   string
	SslMode  string
	SslCa    string

	// TablePrefix is prepended to every Map.Table at query-build time
	// (§6 TablePrefix).
	TablePrefix string
}

// Driver opens a connection and reports the capability flags the query
// builders in dict/transaction.go gate upsert-clause emission on (§6).
type Driver interface {
	Open(ctx context.Context) (*sql.DB, error)
	Upsert() dict.UpsertMode
	TablePrefix() string
}
