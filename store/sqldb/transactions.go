package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// TRANSACTION STORE (finance.TransactionStore interface)
// =============================================================================

const transactionColumns = `seq, id, company_id, user_id, client_id, category, type,
	amount, date, description, attachment, created_at`

// CreateTransaction inserts tx and sets tx.Seq. The insert and the series
// lock share one database transaction.
func (s *Store) CreateTransaction(ctx context.Context, tx *finance.Transaction) error {
	defer s.writeLock()()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := s.dialect.LockSeries(ctx, sqlTx, tx.SeriesKey()); err != nil {
		return fmt.Errorf("failed to lock series %s: %w", tx.SeriesKey(), err)
	}

	query := s.q(`
		INSERT INTO transactions
		(id, company_id, user_id, client_id, category, type, amount, date, description, attachment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING seq
	`)
	err = sqlTx.QueryRowContext(ctx, query,
		tx.ID,
		tx.CompanyID,
		tx.UserID,
		tx.ClientID,
		tx.Category,
		string(tx.Type),
		tx.Amount.String(),
		formatDate(tx.Date),
		tx.Description,
		tx.Attachment,
		formatTime(tx.CreatedAt),
	).Scan(&tx.Seq)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("transaction %s: %w", tx.ID, finance.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return sqlTx.Commit()
}

func (s *Store) GetTransaction(ctx context.Context, companyID, id string) (finance.Transaction, error) {
	defer s.readLock()()

	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT `+transactionColumns+`
		FROM transactions WHERE company_id = ? AND id = ?
	`), companyID, id)
	tx, err := scanTransaction(row)
	if err != nil {
		return finance.Transaction{}, notFound(err)
	}
	return tx, nil
}

func (s *Store) ListTransactions(ctx context.Context, f finance.TransactionFilter) ([]finance.Transaction, error) {
	defer s.readLock()()

	var w where
	w.add("company_id = ?", f.CompanyID)
	if f.Type != "" {
		w.add("type = ?", string(f.Type))
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	if f.ClientID != "" {
		w.add("client_id = ?", f.ClientID)
	}
	w.window("date", f.Window)

	query := "SELECT " + transactionColumns + " FROM transactions" + w.String() +
		" ORDER BY date DESC, seq DESC"
	args := w.args
	if f.Limit > 0 || f.Offset > 0 {
		limit := f.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var result []finance.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

// UpdateTransaction writes the editable fields only.
func (s *Store) UpdateTransaction(ctx context.Context, tx finance.Transaction) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "update transaction", `
		UPDATE transactions SET description = ?, client_id = ?, attachment = ?
		WHERE company_id = ? AND id = ?
	`, tx.Description, tx.ClientID, tx.Attachment, tx.CompanyID, tx.ID)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

func (s *Store) DeleteTransaction(ctx context.Context, companyID, id string) error {
	defer s.writeLock()()

	res, err := s.exec(ctx, s.db, "delete transaction",
		`DELETE FROM transactions WHERE company_id = ? AND id = ?`, companyID, id)
	if err != nil {
		return err
	}
	return mustAffect(res)
}

// SumExpenses reads the matching amounts and adds them as decimals, so
// no precision is lost to the database's numeric types.
func (s *Store) SumExpenses(ctx context.Context, q finance.ExpenseQuery) (finance.Money, error) {
	defer s.readLock()()

	var w where
	w.add("company_id = ?", q.CompanyID)
	w.add("category = ?", q.Category)
	w.add("type = ?", string(finance.TxExpense))
	w.window("date", q.Window)
	if q.ExcludeID != "" {
		w.add("id <> ?", q.ExcludeID)
	}
	if q.BeforeSeq > 0 {
		w.add("seq < ?", q.BeforeSeq)
	}

	rows, err := s.db.QueryContext(ctx, s.q("SELECT amount FROM transactions"+w.String()), w.args...)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum expenses: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		total = total.Add(parseMoney(amount))
	}
	return total, rows.Err()
}

func scanTransaction(row scanner) (finance.Transaction, error) {
	var (
		tx        finance.Transaction
		typ       string
		amount    string
		date      string
		createdAt string
	)
	err := row.Scan(
		&tx.Seq, &tx.ID, &tx.CompanyID, &tx.UserID, &tx.ClientID, &tx.Category, &typ,
		&amount, &date, &tx.Description, &tx.Attachment, &createdAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return tx, err
		}
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}
	tx.Type = finance.TransactionType(typ)
	tx.Amount = parseMoney(amount)
	tx.Date = parseDate(date)
	tx.CreatedAt = parseTime(createdAt)
	return tx, nil
}
