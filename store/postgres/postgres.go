// Package postgres provides the PostgreSQL-backed finance store.
//
// Queries come from store/sqldb. This package owns the DDL, the "$n"
// placeholder rebinding, unique-violation detection (SQLSTATE 23505) and
// the per-series advisory lock that keeps seq order equal to commit order
// across connections.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/smartgestao/smart-gestao/store/sqldb"
)

type Store = sqldb.Store

// New connects to dsn (e.g. DATABASE_URL) and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	store, err := sqldb.Open(ctx, db, Dialect{})
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

const uniqueViolation = "23505"

func (Dialect) Name() string { return "postgres" }

func (Dialect) Rebind(query string) string { return sqldb.RebindDollar(query) }

func (Dialect) SingleWriter() bool { return false }

func (Dialect) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// LockSeries holds a transaction-scoped advisory lock on the series key.
// A second insert into the same series waits until the first commits, so
// its seq is both larger and visible later.
func (Dialect) LockSeries(ctx context.Context, tx *sql.Tx, seriesKey string) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, seriesKey)
	return err
}

func (Dialect) Schema() string { return schema }

const schema = `
	CREATE TABLE IF NOT EXISTS companies (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL REFERENCES companies(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		email TEXT NOT NULL,
		email_key TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_company ON users(company_id);

	CREATE TABLE IF NOT EXISTS transactions (
		seq BIGSERIAL PRIMARY KEY,
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

	CREATE TABLE IF NOT EXISTS alerts (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		company_id TEXT NOT NULL,
		goal_id TEXT NOT NULL,
		epoch INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		message TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		deleted_at TEXT,
		UNIQUE (company_id, goal_id, epoch)
	);

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

	CREATE TABLE IF NOT EXISTS audit_log (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		company_id TEXT NOT NULL,
		user_id TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_company ON audit_log(company_id, seq DESC);
`
