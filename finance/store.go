/*
store.go - Persistence interfaces for the finance domain

PURPOSE:
  Defines the boundary between domain logic and the database. Backends:
  - store/sqlite:   SQLite (default, single process)
  - store/postgres: PostgreSQL
  - finance/store:  in-memory, for tests and throwaway dev runs

COMMIT SEQUENCE CONTRACT:
  CreateTransaction assigns Transaction.Seq. Within one series (same
  company and category, see Transaction.SeriesKey) Seq order MUST equal
  commit order: once a transaction with Seq n is visible to a reader,
  every transaction of the same series with Seq < n is visible too.
  The alert evaluator relies on this to give every expense exactly one
  set of predecessors.

ALERT UNIQUENESS:
  InsertAlertIfAbsent is the only alert write path used by the evaluator.
  It MUST be atomic on (CompanyID, GoalID, Epoch): of any number of
  concurrent inserts for the same key, exactly one reports created=true.

IMMUTABILITY:
  UpdateTransaction only writes Description, ClientID and Attachment.
*/
package finance

import (
	"context"
	"time"
)

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionStore interface {
	// CreateTransaction persists tx and sets tx.Seq.
	CreateTransaction(ctx context.Context, tx *Transaction) error

	GetTransaction(ctx context.Context, companyID, id string) (Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)

	// UpdateTransaction writes the soft fields of tx. Other fields are ignored.
	UpdateTransaction(ctx context.Context, tx Transaction) error
	DeleteTransaction(ctx context.Context, companyID, id string) error

	// SumExpenses totals expense amounts matching q.
	SumExpenses(ctx context.Context, q ExpenseQuery) (Money, error)
}

// TransactionFilter selects transactions of one company. Zero fields match all.
type TransactionFilter struct {
	CompanyID string
	Type      TransactionType
	Category  string
	ClientID  string
	Window    Window
	Limit     int
	Offset    int
}

// ExpenseQuery scopes an expense aggregate.
type ExpenseQuery struct {
	CompanyID string
	Category  string
	Window    Window

	// ExcludeID drops one transaction from the sum (the trigger itself).
	ExcludeID string

	// BeforeSeq, when positive, only counts transactions with Seq < BeforeSeq.
	BeforeSeq int64
}

// =============================================================================
// GOALS
// =============================================================================

type GoalStore interface {
	CreateGoal(ctx context.Context, g Goal) error
	GetGoal(ctx context.Context, companyID, id string) (Goal, error)
	ListGoals(ctx context.Context, companyID string) ([]Goal, error)
	UpdateGoal(ctx context.Context, g Goal) error
	DeleteGoal(ctx context.Context, companyID, id string) error
	SetGoalStatus(ctx context.Context, companyID, id string, status GoalStatus) error

	// ActiveGoals returns the goals whose window contains on, for the given
	// company, category and type. Order is unspecified.
	ActiveGoals(ctx context.Context, companyID, category string, typ TransactionType, on Date) ([]Goal, error)

	// DueGoals returns goals of every company that are still active and
	// whose deadline is before the given date.
	DueGoals(ctx context.Context, before Date) ([]Goal, error)
}

// =============================================================================
// ALERTS
// =============================================================================

type AlertStore interface {
	// InsertAlertIfAbsent stores a unless an alert with the same
	// (CompanyID, GoalID, Epoch) exists. created reports which happened.
	InsertAlertIfAbsent(ctx context.Context, a Alert) (created bool, err error)

	ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error)
	MarkAlertRead(ctx context.Context, companyID, id string) error
	DeleteAlert(ctx context.Context, companyID, id string) error
}

type AlertFilter struct {
	CompanyID  string
	GoalID     string
	Epoch      *int
	UnreadOnly bool
}

// =============================================================================
// CLIENTS, COMPANIES, USERS
// =============================================================================

type ClientStore interface {
	CreateClient(ctx context.Context, c Client) error
	GetClient(ctx context.Context, companyID, id string) (Client, error)
	ListClients(ctx context.Context, companyID string) ([]Client, error)
	UpdateClient(ctx context.Context, c Client) error
	DeleteClient(ctx context.Context, companyID, id string) error
}

type AccountStore interface {
	// CreateCompany stores the company and its first user atomically.
	// Returns ErrDuplicate if the owner's email is taken.
	CreateCompany(ctx context.Context, c Company, owner User) error
	GetCompany(ctx context.Context, id string) (Company, error)

	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// =============================================================================
// AUDIT LOG - who did what when
// =============================================================================

type AuditAction string

const (
	AuditRegister          AuditAction = "REGISTER"
	AuditLogin             AuditAction = "LOGIN"
	AuditCreateTransaction AuditAction = "CREATE_TRANSACTION"
	AuditUpdateTransaction AuditAction = "UPDATE_TRANSACTION"
	AuditDeleteTransaction AuditAction = "DELETE_TRANSACTION"
	AuditCreateGoal        AuditAction = "CREATE_GOAL"
	AuditUpdateGoal        AuditAction = "UPDATE_GOAL"
	AuditDeleteGoal        AuditAction = "DELETE_GOAL"
	AuditResetGoal         AuditAction = "RESET_GOAL"
	AuditCloseGoal         AuditAction = "CLOSE_GOAL"
	AuditAutoCreateAlert   AuditAction = "AUTO_CREATE_ALERT"
	AuditReadAlert         AuditAction = "READ_ALERT"
	AuditDeleteAlert       AuditAction = "DELETE_ALERT"
	AuditCreateClient      AuditAction = "CREATE_CLIENT"
	AuditUpdateClient      AuditAction = "UPDATE_CLIENT"
	AuditDeleteClient      AuditAction = "DELETE_CLIENT"
)

// AuditEntry records who did what when. Also append-only.
type AuditEntry struct {
	ID          string
	CompanyID   string
	UserID      string // empty for system actions
	Action      AuditAction
	Description string
	CreatedAt   time.Time
}

type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	CompanyID string
	Actions   []AuditAction
	Limit     int
}

// =============================================================================
// COMBINED
// =============================================================================

// Store is everything the application needs from a backend.
type Store interface {
	TransactionStore
	GoalStore
	AlertStore
	ClientStore
	AccountStore
	AuditLog
}
