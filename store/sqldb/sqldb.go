/*
Package sqldb implements every finance store interface on database/sql.

PURPOSE:
  One implementation of finance.Store shared by the SQLite and PostgreSQL
  backends. Queries are written with "?" placeholders and rebound by the
  Dialect. Everything dialect-specific (schema, placeholder style, unique
  violation detection, series locking) lives behind Dialect.

STORAGE FORMAT:
  Money:      decimal TEXT, summed in Go with shopspring/decimal
  Dates:      TEXT "YYYY-MM-DD" (lexicographic order == date order)
  Timestamps: TEXT, UTC, fixed-width microseconds (see timeLayout)
  Booleans:   INTEGER 0/1

COMMIT SEQUENCE:
  transactions.seq is assigned by the database (AUTOINCREMENT / BIGSERIAL)
  inside an explicit transaction that first calls Dialect.LockSeries. On
  PostgreSQL that is an advisory lock scoped to the transaction, so two
  inserts into the same (company, category) series commit in seq order.
  SQLite runs with one connection and a single writer, which gives the
  same guarantee for free.

ALERT UNIQUENESS:
  UNIQUE(company_id, goal_id, epoch) plus INSERT ... ON CONFLICT DO NOTHING.
  RowsAffected tells the caller whether it created the row. Deleting an
  alert sets deleted_at instead of removing the row, so the key stays
  taken.

CONCURRENCY:
  Dialects with SingleWriter() take a sync.RWMutex around every call, as
  SQLite cannot interleave writers anyway. Other dialects rely on the
  database.
*/
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smartgestao/smart-gestao/finance"
)

// Dialect isolates the SQL differences between backends.
type Dialect interface {
	Name() string

	// Schema returns idempotent DDL (CREATE ... IF NOT EXISTS).
	Schema() string

	// Rebind rewrites "?" placeholders into the driver's style.
	Rebind(query string) string

	IsUniqueViolation(err error) bool

	// LockSeries serializes inserts for one series until tx ends.
	LockSeries(ctx context.Context, tx *sql.Tx, seriesKey string) error

	// SingleWriter reports whether the store must serialize calls itself.
	SingleWriter() bool
}

// Store implements finance.Store on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

var _ finance.Store = (*Store)(nil)

// Open wraps an already opened db and applies the dialect schema.
func Open(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate %s database: %w", dialect.Name(), err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, s.dialect.Schema())
	return err
}

// Reset deletes every row. Test helper.
func (s *Store) Reset(ctx context.Context) error {
	defer s.writeLock()()

	tables := []string{"alerts", "audit_log", "transactions", "goals", "clients", "users", "companies"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func formatDate(d finance.Date) string { return d.String() }

func parseDate(s string) finance.Date {
	d, _ := finance.ParseDate(s)
	return d
}

func parseMoney(s string) finance.Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) q(query string) string { return s.dialect.Rebind(query) }

func (s *Store) writeLock() func() {
	if !s.dialect.SingleWriter() {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) readLock() func() {
	if !s.dialect.SingleWriter() {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// exec runs a write and maps a unique violation to finance.ErrDuplicate.
func (s *Store) exec(ctx context.Context, db execer, what, query string, args ...any) (sql.Result, error) {
	res, err := db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", what, finance.ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to %s: %w", what, err)
	}
	return res, nil
}

// mustAffect turns "0 rows affected" into finance.ErrNotFound.
func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return finance.ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if err == sql.ErrNoRows {
		return finance.ErrNotFound
	}
	return err
}

// where accumulates AND-ed conditions and their arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) window(column string, win finance.Window) {
	if !win.Start.IsZero() {
		w.add(column+" >= ?", formatDate(win.Start))
	}
	if !win.End.IsZero() {
		w.add(column+" <= ?", formatDate(win.End))
	}
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// RebindDollar rewrites "?" into "$1", "$2", ... Shared by dialects that
// number their parameters.
func RebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var timeNow = func() time.Time { return time.Now().UTC() }
