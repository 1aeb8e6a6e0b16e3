package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/sqldef/dictsql/dict"
)

// MySQL implements Driver for go-sql-driver/mysql. It advertises
// ON DUPLICATE KEY UPDATE, the upsert clause Transaction's flushSet uses
// for this backend (§6).
type MySQL struct {
	cfg Config
}

func NewMySQL(cfg Config) *MySQL {
	return &MySQL{cfg: cfg}
}

func (m *MySQL) dsn() string {
	c := mysqldriver.NewConfig()
	c.User = m.cfg.User
	c.Passwd = m.cfg.Password
	c.DBName = m.cfg.DbName
	c.ParseTime = false
	if m.cfg.Socket != "" {
		c.Net = "unix"
		c.Addr = m.cfg.Socket
	} else {
		c.Net = "tcp"
		c.Addr = fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	}
	if m.cfg.SslMode != "" {
		c.TLSConfig = m.cfg.SslMode
	}
	return c.FormatDSN()
}

func (m *MySQL) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("mysql", m.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (m *MySQL) Upsert() dict.UpsertMode { return dict.UpsertOnDuplicateKey }

func (m *MySQL) TablePrefix() string { return m.cfg.TablePrefix }
