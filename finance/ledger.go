/*
ledger.go - Transaction creation with post-commit hooks

PURPOSE:
  The Ledger is the single write path for transactions. It validates,
  assigns identity, persists, audits, and then tells every registered
  CommitHook about the committed record.

POST-COMMIT HOOKS:
  Hooks run after the store has committed. They receive the full record
  (including Seq) and cannot fail the call: a hook that errors or panics
  is logged and the transaction stays committed. Alert evaluation is
  registered here (alerts.Evaluator, or alerts.Dispatcher for async).

IMMUTABILITY:
  Amount, Type, Category and Date never change after Record. Update only
  touches the soft fields in TransactionPatch.

EXAMPLE:
  ledger := finance.NewLedger(store, store, log)
  ledger.OnCommit(evaluator)
  tx, err := ledger.Record(ctx, finance.Transaction{...})
*/
package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CommitHook is notified once per committed transaction.
type CommitHook interface {
	AfterCommit(ctx context.Context, tx Transaction)
}

// CommitHookFunc adapts a function to CommitHook.
type CommitHookFunc func(ctx context.Context, tx Transaction)

func (f CommitHookFunc) AfterCommit(ctx context.Context, tx Transaction) { f(ctx, tx) }

// TransactionPatch lists the editable fields. Nil means unchanged.
type TransactionPatch struct {
	Description *string
	ClientID    *string
	Attachment  *string
}

type Ledger struct {
	Store TransactionStore
	Audit AuditLog
	Log   zerolog.Logger

	hooks []CommitHook
	now   func() time.Time
}

func NewLedger(store TransactionStore, audit AuditLog, log zerolog.Logger) *Ledger {
	return &Ledger{
		Store: store,
		Audit: audit,
		Log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// OnCommit registers a hook. Not safe to call concurrently with Record.
func (l *Ledger) OnCommit(h CommitHook) {
	l.hooks = append(l.hooks, h)
}

// Record validates and persists tx, then runs the commit hooks.
// The returned transaction carries the assigned ID, Seq and CreatedAt.
func (l *Ledger) Record(ctx context.Context, tx Transaction) (Transaction, error) {
	if err := tx.Validate(); err != nil {
		return Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	tx.CreatedAt = l.now()

	if err := l.Store.CreateTransaction(ctx, &tx); err != nil {
		return Transaction{}, fmt.Errorf("failed to record transaction: %w", err)
	}

	l.audit(ctx, tx.CompanyID, tx.UserID, AuditCreateTransaction,
		fmt.Sprintf("%s %s in %q on %s", tx.Type, tx.Amount.StringFixed(2), tx.Category, tx.Date))

	l.runHooks(ctx, tx)
	return tx, nil
}

// Update applies patch to the transaction and returns the stored result.
func (l *Ledger) Update(ctx context.Context, companyID, userID, id string, patch TransactionPatch) (Transaction, error) {
	tx, err := l.Store.GetTransaction(ctx, companyID, id)
	if err != nil {
		return Transaction{}, err
	}
	if patch.Description != nil {
		tx.Description = *patch.Description
	}
	if patch.ClientID != nil {
		tx.ClientID = *patch.ClientID
	}
	if patch.Attachment != nil {
		tx.Attachment = *patch.Attachment
	}
	if err := l.Store.UpdateTransaction(ctx, tx); err != nil {
		return Transaction{}, err
	}
	l.audit(ctx, companyID, userID, AuditUpdateTransaction, "updated transaction "+id)
	return tx, nil
}

// Delete removes a transaction. Alerts already produced are kept.
func (l *Ledger) Delete(ctx context.Context, companyID, userID, id string) error {
	if err := l.Store.DeleteTransaction(ctx, companyID, id); err != nil {
		return err
	}
	l.audit(ctx, companyID, userID, AuditDeleteTransaction, "deleted transaction "+id)
	return nil
}

func (l *Ledger) runHooks(ctx context.Context, tx Transaction) {
	for _, h := range l.hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.Log.Error().
						Interface("panic", r).
						Str("transaction_id", tx.ID).
						Str("company_id", tx.CompanyID).
						Msg("commit hook panicked")
				}
			}()
			h.AfterCommit(ctx, tx)
		}()
	}
}

func (l *Ledger) audit(ctx context.Context, companyID, userID string, action AuditAction, desc string) {
	if l.Audit == nil {
		return
	}
	entry := AuditEntry{
		ID:          uuid.New().String(),
		CompanyID:   companyID,
		UserID:      userID,
		Action:      action,
		Description: desc,
		CreatedAt:   l.now(),
	}
	if err := l.Audit.Record(ctx, entry); err != nil {
		l.Log.Warn().Err(err).Str("action", string(action)).Str("company_id", companyID).Msg("audit write failed")
	}
}
