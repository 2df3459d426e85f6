/*
Package alerts detects when an expense pushes a spending goal over its
target and records exactly one alert for that crossing.

INVARIANT:
  At most one limit_reached alert per (CompanyID, GoalID, Epoch), no
  matter how many expenses are committed concurrently. At least one if
  the committed expenses of the window reach the target and every
  evaluation ran.

ALGORITHM (per committed expense tx):
  1. Revenue: stop.
  2. Goal := the active expense goal for (company, category, tx.Date).
     None: stop.
  3. prior := sum of expenses of the same company and category inside the
     goal window, committed before tx (Seq < tx.Seq), excluding tx.
  4. next  := prior + tx.Amount
  5. Crossed iff next >= target AND prior < target.
  6. Crossed: InsertAlertIfAbsent keyed by (company, goal, epoch). Only
     the insert that reports created=true audits and notifies.

WHY SEQ AND NOT "ALL OTHERS":
  Summing every other committed expense lets two large concurrent
  expenses each see the other as prior, both above target, and neither
  alert. Ordering by commit sequence gives the series a total order, so
  exactly one expense is the first to reach the target. The unique key
  in step 6 still absorbs any duplicate evaluation of that expense
  (async redelivery, a second process).

FAILURE:
  Any store error aborts the evaluation with no alert. AfterCommit logs
  it and returns; the transaction is already committed. No retries.
*/
package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/smartgestao/smart-gestao/finance"
)

// Stores is what the evaluator reads and writes.
type Stores interface {
	finance.GoalStore
	finance.TransactionStore
	finance.AlertStore
	finance.AuditLog
}

// Notifier is told about every alert right after it is stored.
type Notifier interface {
	AlertCreated(a finance.Alert)
}

type Evaluator struct {
	Goals        finance.GoalStore
	Transactions finance.TransactionStore
	Alerts       finance.AlertStore
	Audit        finance.AuditLog
	Notifier     Notifier // optional
	Log          zerolog.Logger

	now func() time.Time
}

func NewEvaluator(s Stores, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		Goals:        s,
		Transactions: s,
		Alerts:       s,
		Audit:        s,
		Log:          log.With().Str("component", "alerts").Logger(),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

var _ finance.CommitHook = (*Evaluator)(nil)

// AfterCommit evaluates tx and swallows any error after logging it. The
// transaction is already committed, so a cancelled request does not stop
// the evaluation.
func (e *Evaluator) AfterCommit(ctx context.Context, tx finance.Transaction) {
	if _, err := e.Evaluate(context.WithoutCancel(ctx), tx); err != nil {
		e.Log.Error().
			Err(err).
			Str("transaction_id", tx.ID).
			Str("company_id", tx.CompanyID).
			Str("category", tx.Category).
			Msg("alert evaluation failed, no alert written")
	}
}

// Evaluate returns the alert created by tx, or nil if tx crossed nothing
// (or its crossing was already recorded).
func (e *Evaluator) Evaluate(ctx context.Context, tx finance.Transaction) (*finance.Alert, error) {
	if tx.Type != finance.TxExpense {
		return nil, nil
	}

	goal, err := e.findActiveGoal(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("find active goal: %w", err)
	}
	if goal == nil {
		return nil, nil
	}

	prior, err := e.Transactions.SumExpenses(ctx, finance.ExpenseQuery{
		CompanyID: tx.CompanyID,
		Category:  tx.Category,
		Window:    goal.Window(),
		ExcludeID: tx.ID,
		BeforeSeq: tx.Seq,
	})
	if err != nil {
		return nil, fmt.Errorf("sum expenses for goal %s: %w", goal.ID, err)
	}
	next := prior.Add(tx.Amount)

	log := e.Log.With().
		Str("transaction_id", tx.ID).
		Str("goal_id", goal.ID).
		Str("prior", prior.String()).
		Str("total", next.String()).
		Str("target", goal.TargetAmount.String()).
		Logger()

	if !Crossed(prior, next, goal.TargetAmount) {
		log.Debug().Msg("goal not crossed")
		return nil, nil
	}

	alert := finance.Alert{
		ID:        uuid.New().String(),
		CompanyID: tx.CompanyID,
		GoalID:    goal.ID,
		Epoch:     goal.Epoch,
		UserID:    tx.UserID,
		Type:      finance.AlertLimitReached,
		Message:   Message(*goal, next),
		CreatedAt: e.now(),
	}
	created, err := e.Alerts.InsertAlertIfAbsent(ctx, alert)
	if err != nil {
		return nil, fmt.Errorf("insert alert for goal %s: %w", goal.ID, err)
	}
	if !created {
		log.Debug().Msg("crossing already alerted")
		return nil, nil
	}

	log.Info().Str("alert_id", alert.ID).Msg("goal crossed, alert created")
	e.audit(ctx, tx, *goal)
	if e.Notifier != nil {
		e.Notifier.AlertCreated(alert)
	}
	return &alert, nil
}

// Crossed reports whether moving from prior to next reaches target for the
// first time.
func Crossed(prior, next, target finance.Money) bool {
	return next.GreaterThanOrEqual(target) && prior.LessThan(target)
}

// Message is the human-readable alert text. It always names the category.
func Message(g finance.Goal, total finance.Money) string {
	return fmt.Sprintf("Spending goal for %q reached: %s of %s (%s to %s)",
		g.Category, total.StringFixed(2), g.TargetAmount.StringFixed(2), g.StartDate, g.Deadline)
}

// findActiveGoal picks at most one goal for tx. Insane goals are skipped.
// Several matches: latest StartDate, then latest CreatedAt, then highest ID.
func (e *Evaluator) findActiveGoal(ctx context.Context, tx finance.Transaction) (*finance.Goal, error) {
	candidates, err := e.Goals.ActiveGoals(ctx, tx.CompanyID, tx.Category, finance.TxExpense, tx.Date)
	if err != nil {
		return nil, err
	}

	usable := candidates[:0]
	for _, g := range candidates {
		if !g.Sane() {
			e.Log.Warn().
				Str("goal_id", g.ID).
				Str("company_id", g.CompanyID).
				Str("target", g.TargetAmount.String()).
				Str("window", g.Window().String()).
				Msg("skipping malformed goal")
			continue
		}
		if g.CompanyID != tx.CompanyID || !g.ActiveOn(tx.Date) {
			continue
		}
		usable = append(usable, g)
	}
	if len(usable) == 0 {
		return nil, nil
	}

	sort.Slice(usable, func(i, j int) bool {
		a, b := usable[i], usable[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.After(b.StartDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	if len(usable) > 1 {
		e.Log.Debug().
			Str("goal_id", usable[0].ID).
			Int("candidates", len(usable)).
			Msg("several goals match, using newest")
	}
	return &usable[0], nil
}

func (e *Evaluator) audit(ctx context.Context, tx finance.Transaction, g finance.Goal) {
	if e.Audit == nil {
		return
	}
	entry := finance.AuditEntry{
		ID:          uuid.New().String(),
		CompanyID:   tx.CompanyID,
		UserID:      tx.UserID,
		Action:      finance.AuditAutoCreateAlert,
		Description: fmt.Sprintf("alert created automatically for goal %s (category %q)", g.ID, g.Category),
		CreatedAt:   e.now(),
	}
	if err := e.Audit.Record(ctx, entry); err != nil {
		e.Log.Warn().Err(err).Str("goal_id", g.ID).Msg("audit write failed")
	}
}
