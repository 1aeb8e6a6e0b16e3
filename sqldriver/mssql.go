package sqldriver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/sqldef/dictsql/dict"
)

// MSSQL implements Driver for denisenkom/go-mssqldb. SQL Server has no
// single-statement upsert grammar this package targets, so it advertises
// plain INSERT — conflicts are left to the backend (§6).
type MSSQL struct {
	cfg Config
}

func NewMSSQL(cfg Config) *MSSQL {
	return &MSSQL{cfg: cfg}
}

func (m *MSSQL) dsn() string {
	u := &url.URL{
		Scheme: "sqlserver",
		Host:   m.cfg.Host,
	}
	if m.cfg.Port != 0 {
		u.Host = fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	}
	if m.cfg.User != "" {
		u.User = url.UserPassword(m.cfg.User, m.cfg.Password)
	}
	q := url.Values{}
	if m.cfg.DbName != "" {
		q.Set("database", m.cfg.DbName)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (m *MSSQL) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", m.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (m *MSSQL) Upsert() dict.UpsertMode { return dict.UpsertPlain }

func (m *MSSQL) TablePrefix() string { return m.cfg.TablePrefix }
