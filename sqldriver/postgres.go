package sqldriver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/sqldef/dictsql/dict"
)

// Postgres implements Driver for lib/pq. It advertises
// ON CONFLICT ... DO UPDATE (§6).
type Postgres struct {
	cfg Config
}

func NewPostgres(cfg Config) *Postgres {
	return &Postgres{cfg: cfg}
}

func (p *Postgres) dsn() string {
	parts := []string{
		fmt.Sprintf("host=%s", p.cfg.Host),
		fmt.Sprintf("port=%d", p.cfg.Port),
		fmt.Sprintf("user=%s", p.cfg.User),
		fmt.Sprintf("dbname=%s", p.cfg.DbName),
	}
	if p.cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", p.cfg.Password))
	}
	sslMode := p.cfg.SslMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts = append(parts, fmt.Sprintf("sslmode=%s", sslMode))
	return strings.Join(parts, " ")
}

func (p *Postgres) Open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", p.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (p *Postgres) Upsert() dict.UpsertMode { return dict.UpsertOnConflictDo }

func (p *Postgres) TablePrefix() string { return p.cfg.TablePrefix }
