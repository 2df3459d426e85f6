package sqldb

import (
	"context"
	"fmt"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// GOAL STORE (finance.GoalStore interface)
// =============================================================================

const goalColumns = `id, company_id, category, type, target_amount, start_date, deadline,
	epoch, status, description, created_at, updated_at`

func (s *Store) CreateGoal(ctx context.Context, g finance.Goal) error {
	defer s.writeLock()()

	_, err := s.exec(ctx, s.db, "create goal", `
		INSERT INTO goals (`+goalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		g.ID, g.CompanyID, g.Category, string(g.Type), g.TargetAmount.String(),
		formatDate(g.StartDate), formatDate(g.Deadline), g.Epoch, string(g.Status),
		g.Description, formatTime(g.CreatedAt), formatTime(g.UpdatedAt),
	)
	return err
}

func (s *Store) GetGoal(ctx context.Context, companyID, id string) (finance.Goal, error) {
	defer s.readLock()()

	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+goalColumns+` FROM goals WHERE company_id = ? AND id = ?
	`), companyID, id)
	g, err := scanGoal(row)
	if err != nil {
		return finance.Goal{}, notFound(err)
	}
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, companyID string) ([]finance.Goal, error) {
	defer s.readLock()()

	return s.queryGoals(ctx, `
		SELECT `+goalColumns+` FROM goals WHERE company_id = ?
		ORDER BY start_date DESC, id ASC
	`, companyID)
}

// UpdateGoal overwrites every mutable column. CreatedAt is kept.
func (s *Store) UpdateGoal(ctx context.Context, g finance.Goal) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "update goal", `
		UPDATE goals SET
			category = ?, type = ?, target_amount = ?, start_date = ?, deadline = ?,
			epoch = ?, status = ?, description = ?, updated_at = ?
		WHERE company_id = ? AND id = ?
	`,
		g.Category, string(g.Type), g.TargetAmount.String(), formatDate(g.StartDate),
		formatDate(g.Deadline), g.Epoch, string(g.Status), g.Description,
		formatTime(g.UpdatedAt), g.CompanyID, g.ID,
	)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *Store) DeleteGoal(ctx context.Context, companyID, id string) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "delete goal",
		`DELETE FROM goals WHERE company_id = ? AND id = ?`, companyID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *Store) SetGoalStatus(ctx context.Context, companyID, id string, status finance.GoalStatus) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "set goal status",
		`UPDATE goals SET status = ? WHERE company_id = ? AND id = ?`,
		string(status), companyID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// ActiveGoals returns the goals whose window contains on. Status is not
// filtered: a goal applies to every date of its window.
func (s *Store) ActiveGoals(ctx context.Context, companyID, category string, typ finance.TransactionType, on finance.Date) ([]finance.Goal, error) {
	defer s.readLock()()

	day := formatDate(on)
	return s.queryGoals(ctx, `
		SELECT `+goalColumns+` FROM goals
		WHERE company_id = ? AND category = ? AND type = ?
		  AND start_date <= ? AND deadline >= ?
	`, companyID, category, string(typ), day, day)
}

// DueGoals lists active goals of every company whose deadline is before
// the given date.
func (s *Store) DueGoals(ctx context.Context, before finance.Date) ([]finance.Goal, error) {
	defer s.readLock()()

	return s.queryGoals(ctx, `
		SELECT `+goalColumns+` FROM goals
		WHERE status = ? AND deadline < ?
		ORDER BY id ASC
	`, string(finance.GoalActive), formatDate(before))
}

func (s *Store) queryGoals(ctx context.Context, query string, args ...any) ([]finance.Goal, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goals []finance.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

func scanGoal(row scanner) (finance.Goal, error) {
	var (
		g                    finance.Goal
		typ, status          string
		target               string
		start, deadline      string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&g.ID, &g.CompanyID, &g.Category, &typ, &target, &start, &deadline,
		&g.Epoch, &status, &g.Description, &createdAt, &updatedAt,
	)
	if err != nil {
		return g, err
	}
	g.Type = finance.TransactionType(typ)
	g.Status = finance.GoalStatus(status)
	g.TargetAmount = parseMoney(target)
	g.StartDate = parseDate(start)
	g.Deadline = parseDate(deadline)
	g.CreatedAt = parseTime(createdAt)
	g.UpdatedAt = parseTime(updatedAt)
	return g, nil
}
