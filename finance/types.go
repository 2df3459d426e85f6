/*
Package finance provides the core domain of the expense tracker.

PURPOSE:
  Types, validation and store contracts shared by every other package:
  transactions, spending goals, alerts, clients, tenants and the audit log.
  Storage backends (store/sqlite, store/postgres, finance/store) implement
  the interfaces in store.go; the alert evaluator (alerts/) consumes them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money:       decimal.Decimal, never float
  - Transaction: an immutable revenue or expense record
  - Goal:        a spending target over an inclusive date window
  - Alert:       the single notification produced when a goal is crossed
  - Company/User/Client: tenant, login and customer records

MULTI-TENANCY:
  Every record carries a CompanyID. Every store query takes one. There is
  no method that reads across companies except the goal sweeper's
  DueGoals listing, which returns records that are then processed one
  company at a time.

SEE ALSO:
  - time.go:   Date and Window
  - store.go:  persistence interfaces
  - ledger.go: transaction creation with post-commit hooks
*/
package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// Money is a monetary amount. The currency is implied by the company.
type Money = decimal.Decimal

// ParseMoney parses a decimal string such as "120.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// MustMoney is ParseMoney for constants and tests. Invalid input yields zero.
func MustMoney(s string) Money {
	d, err := ParseMoney(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionType string

const (
	TxRevenue TransactionType = "revenue"
	TxExpense TransactionType = "expense"
)

func (t TransactionType) Valid() bool { return t == TxRevenue || t == TxExpense }

// Transaction is a single revenue or expense entry.
//
// Amount, Category, Type and Date are fixed once the record is committed.
// Description, ClientID and Attachment may be edited later.
type Transaction struct {
	ID        string
	Seq       int64 // commit sequence, assigned by the store
	CompanyID string
	UserID    string
	ClientID  string
	Category  string
	Type      TransactionType
	Amount    Money
	Date      Date // economic date, not creation time

	Description string
	Attachment  string // reference to an uploaded file, opaque here

	CreatedAt time.Time
}

// Validate checks the fields a transaction must have before it is stored.
func (tx Transaction) Validate() error {
	switch {
	case tx.CompanyID == "":
		return &FieldError{Field: "company_id", Reason: "required"}
	case tx.UserID == "":
		return &FieldError{Field: "user_id", Reason: "required"}
	case strings.TrimSpace(tx.Category) == "":
		return &FieldError{Field: "category", Reason: "required"}
	case !tx.Type.Valid():
		return &FieldError{Field: "type", Reason: "must be revenue or expense"}
	case tx.Amount.IsNegative():
		return &FieldError{Field: "amount", Reason: "must not be negative"}
	case tx.Date.IsZero():
		return &FieldError{Field: "date", Reason: "required"}
	}
	return nil
}

// SeriesKey identifies the transactions that share a commit order for
// goal evaluation: same company, same category.
func (tx Transaction) SeriesKey() string {
	return tx.CompanyID + "/" + tx.Category
}

// =============================================================================
// GOALS
// =============================================================================

type GoalStatus string

const (
	GoalActive   GoalStatus = "active"
	GoalMet      GoalStatus = "met"      // closed with spending below target
	GoalExceeded GoalStatus = "exceeded" // closed with spending at or above target
)

// Goal is a spending target for one category over [StartDate, Deadline].
//
// Epoch numbers the crossing events of the goal. An alert is unique per
// (CompanyID, ID, Epoch); resetting the goal moves to the next epoch so
// that a new crossing can alert again.
type Goal struct {
	ID           string
	CompanyID    string
	Category     string
	Type         TransactionType
	TargetAmount Money
	StartDate    Date
	Deadline     Date
	Epoch        int
	Status       GoalStatus
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Window returns the inclusive active window of the goal.
func (g Goal) Window() Window { return Window{Start: g.StartDate, End: g.Deadline} }

// ActiveOn reports whether d falls inside the goal window.
func (g Goal) ActiveOn(d Date) bool { return g.Window().Contains(d) }

// Validate checks the invariants a goal must satisfy to be stored.
func (g Goal) Validate() error {
	switch {
	case g.CompanyID == "":
		return &FieldError{Field: "company_id", Reason: "required"}
	case strings.TrimSpace(g.Category) == "":
		return &FieldError{Field: "category", Reason: "required"}
	case !g.Type.Valid():
		return &FieldError{Field: "type", Reason: "must be revenue or expense"}
	case !g.TargetAmount.IsPositive():
		return &FieldError{Field: "target_amount", Reason: "must be positive"}
	case g.StartDate.IsZero() || g.Deadline.IsZero():
		return &FieldError{Field: "start_date", Reason: "start_date and deadline are required"}
	case g.Deadline.Before(g.StartDate):
		return fmt.Errorf("%w: deadline %s before start_date %s", ErrInvalidWindow, g.Deadline, g.StartDate)
	}
	return nil
}

// Sane reports whether a stored goal can take part in alert evaluation.
// Stored goals should always be sane; rows written by older code or by
// hand may not be.
func (g Goal) Sane() bool {
	return g.TargetAmount.IsPositive() && !g.Deadline.Before(g.StartDate)
}

// CrossingChanged reports whether next moves the target, the window or
// the series of g. Such a change starts a new epoch.
func (g Goal) CrossingChanged(next Goal) bool {
	return g.Category != next.Category ||
		g.Type != next.Type ||
		!g.TargetAmount.Equal(next.TargetAmount) ||
		!g.StartDate.Equal(next.StartDate) ||
		!g.Deadline.Equal(next.Deadline)
}

// Reset starts the next epoch and reopens the goal.
func (g Goal) Reset(now time.Time) Goal {
	g.Epoch++
	g.Status = GoalActive
	g.UpdatedAt = now
	return g
}

// Close returns the final status for a window total.
func (g Goal) Close(total Money) GoalStatus {
	if total.GreaterThanOrEqual(g.TargetAmount) {
		return GoalExceeded
	}
	return GoalMet
}

// =============================================================================
// ALERTS
// =============================================================================

type AlertType string

const AlertLimitReached AlertType = "limit_reached"

// Alert is produced exactly once per goal crossing.
type Alert struct {
	ID        string
	CompanyID string
	GoalID    string
	Epoch     int
	UserID    string // creator of the transaction that crossed the goal
	Type      AlertType
	Message   string
	Read      bool
	CreatedAt time.Time
}

// =============================================================================
// TENANTS, USERS, CLIENTS
// =============================================================================

type Company struct {
	ID        string
	Name      string
	Document  string // CNPJ/CPF
	CreatedAt time.Time
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

type User struct {
	ID           string
	CompanyID    string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

type Client struct {
	ID        string
	CompanyID string
	Name      string
	Email     string
	Phone     string
	Document  string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c Client) Validate() error {
	if c.CompanyID == "" {
		return &FieldError{Field: "company_id", Reason: "required"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &FieldError{Field: "name", Reason: "required"}
	}
	return nil
}
