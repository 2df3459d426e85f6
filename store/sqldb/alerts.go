package sqldb

import (
	"context"
	"fmt"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// ALERT STORE (finance.AlertStore interface)
// =============================================================================

const alertColumns = `id, company_id, goal_id, epoch, user_id, type, message, is_read, created_at`

// InsertAlertIfAbsent is atomic on (company_id, goal_id, epoch): the
// database decides which concurrent insert wins.
func (s *Store) InsertAlertIfAbsent(ctx context.Context, a finance.Alert) (bool, error) {
	defer s.writeLock()()

	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_id, goal_id, epoch) DO NOTHING
	`),
		a.ID, a.CompanyID, a.GoalID, a.Epoch, a.UserID, string(a.Type), a.Message,
		boolInt(a.Read), formatTime(a.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n == 1, nil
}

// ListAlerts returns non-deleted alerts, newest first.
func (s *Store) ListAlerts(ctx context.Context, f finance.AlertFilter) ([]finance.Alert, error) {
	defer s.readLock()()

	var w where
	w.add("company_id = ?", f.CompanyID)
	w.add("deleted_at IS NULL")
	if f.GoalID != "" {
		w.add("goal_id = ?", f.GoalID)
	}
	if f.Epoch != nil {
		w.add("epoch = ?", *f.Epoch)
	}
	if f.UnreadOnly {
		w.add("is_read = ?", 0)
	}

	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+alertColumns+" FROM alerts"+w.String()+" ORDER BY seq DESC"), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var result []finance.Alert
	for rows.Next() {
		var (
			a         finance.Alert
			typ       string
			read      int
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.CompanyID, &a.GoalID, &a.Epoch, &a.UserID, &typ,
			&a.Message, &read, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Type = finance.AlertType(typ)
		a.Read = read != 0
		a.CreatedAt = parseTime(createdAt)
		result = append(result, a)
	}
	return result, rows.Err()
}

func (s *Store) MarkAlertRead(ctx context.Context, companyID, id string) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "mark alert read", `
		UPDATE alerts SET is_read = 1
		WHERE company_id = ? AND id = ? AND deleted_at IS NULL
	`, companyID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// DeleteAlert hides the alert. The row stays so its epoch key is kept.
func (s *Store) DeleteAlert(ctx context.Context, companyID, id string) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "delete alert", `
		UPDATE alerts SET deleted_at = ?
		WHERE company_id = ? AND id = ? AND deleted_at IS NULL
	`, formatTime(timeNow()), companyID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}
