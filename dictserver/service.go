// Package dictserver implements the Driver Surface (C8, §4.8): the thin
// glue layer binding the dict engine (C1-C7) to a concrete sqldriver.Driver
// and exposing init/deinit/wait/lookup/iterate/transaction to a host.
//
// Grounded on the teacher's own glue layer shape (sqldef.Run wiring a
// generator to a database.Database and a parser); here the wiring is a
// sqldriver.Driver plus a dict.Map list instead.
package dictserver

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/sqldef/dictsql/dict"
	"github.com/sqldef/dictsql/sqldriver"
)

// Service is the host-facing handle: one per opened dictionary.
type Service struct {
	driver      sqldriver.Driver
	maps        []*dict.Map
	concurrency int
	logger      dict.Logger
	now         dict.Clock

	db *sql.DB
	wg sync.WaitGroup
}

// New constructs a Service. logger and now may be nil; they default to
// dict.NullLogger{} and time.Now respectively.
func New(driver sqldriver.Driver, maps []*dict.Map, concurrency int, logger dict.Logger, now dict.Clock) *Service {
	if logger == nil {
		logger = dict.NullLogger{}
	}
	if now == nil {
		now = time.Now
	}
	return &Service{driver: driver, maps: maps, concurrency: concurrency, logger: logger, now: now}
}

// Init opens the backend connection (driver `init`).
func (s *Service) Init(ctx context.Context) error {
	db, err := s.driver.Open(ctx)
	if err != nil {
		return err
	}
	s.db = db
	s.logger.Printf("dictserver: connected, table prefix %q\n", s.driver.TablePrefix())
	return nil
}

// Deinit closes the backend connection (driver `deinit`). Any outstanding
// async call should be awaited via Wait first.
func (s *Service) Deinit() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Wait blocks until every LookupAsync/CommitAsync call issued through this
// Service has invoked its callback (driver `wait`) — the explicit-handle
// rendition of §4.5's "this engine makes no thread assumptions; the host
// event source decides scheduling."
func (s *Service) Wait() {
	s.wg.Wait()
}

// ExpireScan runs the expiry reaper (C7) across every configured map.
func (s *Service) ExpireScan(ctx context.Context, nowMicros int64) (int, error) {
	return dict.ExpireScan(ctx, s.db, s.maps, s.driver.TablePrefix(), nowMicros, s.concurrency)
}

// Lookup performs a synchronous single-key read (C4).
func (s *Service) Lookup(ctx context.Context, username, key string) (dict.LookupRow, error) {
	return dict.Lookup(ctx, s.db, s.maps, s.driver.TablePrefix(), username, key, s.now)
}

// LookupAsync performs an asynchronous single-key read (C4), tracked by
// Wait.
func (s *Service) LookupAsync(ctx context.Context, username, key string, cb func(dict.LookupRow, error)) {
	s.wg.Add(1)
	dict.LookupAsync(ctx, s.db, s.maps, s.driver.TablePrefix(), username, key, s.now, func(row dict.LookupRow, err error) {
		defer s.wg.Done()
		cb(row, err)
	})
}

// IterateInit constructs an iteration cursor over path (C5's iterate_init).
// The host drives it by calling Next until ok is false.
func (s *Service) IterateInit(ctx context.Context, username, path string, flags dict.IterFlags, maxRows int) *dict.Iterator {
	return dict.NewIterator(ctx, s.db, s.maps, s.driver.TablePrefix(), username, path, flags, maxRows, s.now)
}

// TransactionInit begins a SQL transaction and wraps it in a staging
// buffer (C6's transaction_init). set/unset/atomic_inc from the driver
// contract are satisfied directly by the returned Transaction's own
// methods — there is no separate Service-level wrapper for them.
func (s *Service) TransactionInit(ctx context.Context, username string) (*dict.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return dict.NewTransaction(ctx, tx, s.maps, s.driver.TablePrefix(), username, s.driver.Upsert(), s.now), nil
}

// CommitAsync commits t asynchronously, tracked by Wait.
func (s *Service) CommitAsync(t *dict.Transaction, cb func(dict.CommitStatus, error)) {
	s.wg.Add(1)
	t.CommitAsync(func(status dict.CommitStatus, err error) {
		defer s.wg.Done()
		cb(status, err)
	})
}
