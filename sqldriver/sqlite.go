package sqldriver

import (
	"context"
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/sqldef/dictsql/dict"
)

// SQLite implements Driver for modernc.org/sqlite. It advertises
// ON CONFLICT ... DO UPDATE — SQLite understands the Postgres upsert
// grammar — the same as Postgres (§6).
type SQLite struct {
	cfg Config
}

func NewSQLite(cfg Config) *SQLite {
	return &SQLite{cfg: cfg}
}

func (s *SQLite) Open(ctx context.Context) (*sql.DB, error) {
	path := s.cfg.DbName
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (s *SQLite) Upsert() dict.UpsertMode { return dict.UpsertOnConflictDo }

func (s *SQLite) TablePrefix() string { return s.cfg.TablePrefix }
