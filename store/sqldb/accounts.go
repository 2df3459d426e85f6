package sqldb

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// COMPANIES AND USERS (finance.AccountStore interface)
// =============================================================================

// CreateCompany inserts the company and its owner in one transaction.
// A taken email rolls both back and returns finance.ErrDuplicate.
func (s *Store) CreateCompany(ctx context.Context, c finance.Company, owner finance.User) error {
	defer s.writeLock()()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if _, err := s.exec(ctx, sqlTx, "create company",
		`INSERT INTO companies (id, name, document, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, c.Document, formatTime(c.CreatedAt),
	); err != nil {
		return err
	}
	if _, err := s.exec(ctx, sqlTx, "create user", `
		INSERT INTO users (id, company_id, name, email, email_key, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		owner.ID, c.ID, owner.Name, owner.Email, strings.ToLower(owner.Email),
		owner.PasswordHash, string(owner.Role), formatTime(owner.CreatedAt),
	); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) GetCompany(ctx context.Context, id string) (finance.Company, error) {
	defer s.readLock()()

	var (
		c         finance.Company
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT id, name, document, created_at FROM companies WHERE id = ?`), id,
	).Scan(&c.ID, &c.Name, &c.Document, &createdAt)
	if err != nil {
		return finance.Company{}, notFound(err)
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

const userColumns = `id, company_id, name, email, password_hash, role, created_at`

func (s *Store) GetUser(ctx context.Context, id string) (finance.User, error) {
	defer s.readLock()()
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail matches case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (finance.User, error) {
	defer s.readLock()()
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM users WHERE email_key = ?`, strings.ToLower(email))
}

func (s *Store) queryUser(ctx context.Context, query string, args ...any) (finance.User, error) {
	var (
		u         finance.User
		role      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, s.q(query), args...).Scan(
		&u.ID, &u.CompanyID, &u.Name, &u.Email, &u.PasswordHash, &role, &createdAt,
	)
	if err != nil {
		return finance.User{}, notFound(err)
	}
	u.Role = finance.Role(role)
	u.CreatedAt = parseTime(createdAt)
	return u, nil
}

// =============================================================================
// CLIENTS (finance.ClientStore interface)
// =============================================================================

const clientColumns = `id, company_id, name, email, phone, document, notes, created_at, updated_at`

func (s *Store) CreateClient(ctx context.Context, c finance.Client) error {
	defer s.writeLock()()

	_, err := s.exec(ctx, s.db, "create client", `
		INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.CompanyID, c.Name, c.Email, c.Phone, c.Document, c.Notes,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	return err
}

func (s *Store) GetClient(ctx context.Context, companyID, id string) (finance.Client, error) {
	defer s.readLock()()

	clients, err := s.queryClients(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE company_id = ? AND id = ?`, companyID, id)
	if err != nil {
		return finance.Client{}, err
	}
	if len(clients) == 0 {
		return finance.Client{}, finance.ErrNotFound
	}
	return clients[0], nil
}

func (s *Store) ListClients(ctx context.Context, companyID string) ([]finance.Client, error) {
	defer s.readLock()()

	return s.queryClients(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE company_id = ? ORDER BY name ASC`, companyID)
}

func (s *Store) UpdateClient(ctx context.Context, c finance.Client) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "update client", `
		UPDATE clients SET name = ?, email = ?, phone = ?, document = ?, notes = ?, updated_at = ?
		WHERE company_id = ? AND id = ?
	`, c.Name, c.Email, c.Phone, c.Document, c.Notes, formatTime(c.UpdatedAt), c.CompanyID, c.ID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *Store) DeleteClient(ctx context.Context, companyID, id string) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "delete client",
		`DELETE FROM clients WHERE company_id = ? AND id = ?`, companyID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *Store) queryClients(ctx context.Context, query string, args ...any) ([]finance.Client, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var result []finance.Client
	for rows.Next() {
		var (
			c                    finance.Client
			createdAt, updatedAt string
		)
		if err := rows.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.Document,
			&c.Notes, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		result = append(result, c)
	}
	return result, rows.Err()
}

// =============================================================================
// AUDIT LOG (finance.AuditLog interface)
// =============================================================================

func (s *Store) Record(ctx context.Context, e finance.AuditEntry) error {
	defer s.writeLock()()

	_, err := s.exec(ctx, s.db, "record audit entry", `
		INSERT INTO audit_log (id, company_id, user_id, action, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.CompanyID, e.UserID, string(e.Action), e.Description, formatTime(e.CreatedAt))
	return err
}

// QueryAudit returns entries newest first.
func (s *Store) QueryAudit(ctx context.Context, f finance.AuditFilter) ([]finance.AuditEntry, error) {
	defer s.readLock()()

	var w where
	w.add("company_id = ?", f.CompanyID)
	if len(f.Actions) > 0 {
		args := make([]any, len(f.Actions))
		for i, a := range f.Actions {
			args[i] = string(a)
		}
		w.add("action IN ("+placeholders(len(args))+")", args...)
	}
	query := `SELECT id, company_id, user_id, action, description, created_at FROM audit_log` +
		w.String() + ` ORDER BY seq DESC`
	args := w.args
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var result []finance.AuditEntry
	for rows.Next() {
		var (
			e         finance.AuditEntry
			action    string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.UserID, &action, &e.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = finance.AuditAction(action)
		e.CreatedAt = parseTime(createdAt)
		result = append(result, e)
	}
	return result, rows.Err()
}
