/*
Package sqlite provides the SQLite-backed finance store.

PURPOSE:
  Opens a SQLite database with mattn/go-sqlite3, applies the schema and
  hands it to store/sqldb, which holds the actual queries. This file only
  owns what differs from PostgreSQL: DDL, error codes and the connection
  setup.

KEY TABLES:
  transactions: seq INTEGER PRIMARY KEY AUTOINCREMENT is the commit sequence
  goals:        epoch numbers crossing events
  alerts:       UNIQUE(company_id, goal_id, epoch), soft-deleted
  companies, users, clients, audit_log

INDEXES:
  - idx_transactions_series: (company_id, category, date), the alert
    evaluator's aggregate (hot path)
  - idx_goals_lookup:        (company_id, category, type, start_date)
  - idx_alerts_epoch:        alert uniqueness

CONCURRENCY:
  One open connection, WAL and an in-process RWMutex (sqldb SingleWriter).
  writers never interleave, so seq order is commit order. ":memory:" also
  needs the single connection: every new connection would see a fresh,
  empty database.

USAGE:
  store, err := sqlite.New("./data/smartgestao.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/sqldb:    shared database/sql implementation
  - store/postgres: PostgreSQL dialect
  - finance/store:  in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/smartgestao/smart-gestao/store/sqldb"
)

// Store is the sqldb store on a SQLite database.
type Store = sqldb.Store

// New opens (or creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store, err := sqldb.Open(context.Background(), db, Dialect{})
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Dialect is the sqldb.Dialect for SQLite.
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Rebind(query string) string { return query }

func (Dialect) SingleWriter() bool { return true }

// LockSeries is a no-op: the single writer already orders every insert.
func (Dialect) LockSeries(context.Context, *sql.Tx, string) error { return nil }

func (Dialect) IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func (Dialect) Schema() string { return schema }

const schema = `
	-- Tenants
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id),
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		email_key TEXT NOT NULL UNIQUE, -- lowercased email, unique across companies
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id);

	-- Transactions. seq is the commit sequence used by alert evaluation.
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		client_id TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('revenue', 'expense')),
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		attachment TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_series
		ON transactions(company_id, category, date);
	CREATE INDEX IF NOT EXISTS idx_transactions_company_date
		ON transactions(company_id, date DESC, seq DESC);

	-- Spending goals
	CREATE TABLE IF NOT EXISTS goals (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		category TEXT NOT NULL,
		type TEXT NOT NULL,
		target_amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		deadline TEXT NOT NULL,
		epoch INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_goals_lookup
		ON goals(company_id, category, type, start_date);
	CREATE INDEX IF NOT EXISTS idx_goals_due
		ON goals(status, deadline);

	-- Alerts: one per goal crossing. Deleted rows keep their key.
	CREATE TABLE IF NOT EXISTS alerts (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		company_id TEXT NOT NULL,
		goal_id TEXT NOT NULL,
		epoch INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_epoch
		ON alerts(company_id, goal_id, epoch);

	-- Customers
	CREATE TABLE IF NOT EXISTS clients (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clients_company ON clients(company_id, name);

	-- Audit log
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_company ON audit_log(company_id, seq DESC);
`
