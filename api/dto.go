/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in finance/ from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts travel as decimal strings ("120.50"), never JSON numbers, so
  clients cannot lose cents to float rounding. Requests accept either.

VALIDATION:
  Validation is done in handlers and on the domain types, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Shared helpers and error mapping
  - finance/types.go: Domain types
*/
package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// MONEY INPUT
// =============================================================================

// Amount decodes a JSON string or number into money.
type Amount struct {
	Value finance.Money
	Set   bool
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if raw == "null" {
		*a = Amount{}
		return nil
	}
	m, err := finance.ParseMoney(raw)
	if err != nil {
		return err
	}
	*a = Amount{Value: m, Set: true}
	return nil
}

func money(m finance.Money) string { return m.StringFixed(2) }

// =============================================================================
// AUTH
// =============================================================================

type RegisterRequest struct {
	CompanyName string `json:"company_name"`
	Document    string `json:"document"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      UserDTO    `json:"user"`
	Company   CompanyDTO `json:"company"`
}

type UserDTO struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type CompanyDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Document  string    `json:"document,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u finance.User) UserDTO {
	return UserDTO{
		ID:        u.ID,
		CompanyID: u.CompanyID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

func toCompanyDTO(c finance.Company) CompanyDTO {
	return CompanyDTO{ID: c.ID, Name: c.Name, Document: c.Document, CreatedAt: c.CreatedAt}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO represents a revenue or expense in API responses.
type TransactionDTO struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	ClientID    string       `json:"client_id,omitempty"`
	Category    string       `json:"category"`
	Type        string       `json:"type"`
	Amount      string       `json:"amount"`
	Date        finance.Date `json:"date"`
	Description string       `json:"description,omitempty"`
	Attachment  string       `json:"attachment,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// CreateTransactionRequest is the request to record a transaction.
type CreateTransactionRequest struct {
	ClientID    string       `json:"client_id"`
	Category    string       `json:"category"`
	Type        string       `json:"type"`
	Amount      Amount       `json:"amount"`
	Date        finance.Date `json:"date"`
	Description string       `json:"description"`
	Attachment  string       `json:"attachment"`
}

// UpdateTransactionRequest carries the editable fields. The remaining
// fields are decoded only so that an attempt to change them is rejected.
type UpdateTransactionRequest struct {
	Description *string `json:"description"`
	ClientID    *string `json:"client_id"`
	Attachment  *string `json:"attachment"`

	Amount   json.RawMessage `json:"amount"`
	Type     json.RawMessage `json:"type"`
	Category json.RawMessage `json:"category"`
	Date     json.RawMessage `json:"date"`
}

func (r UpdateTransactionRequest) immutableField() string {
	switch {
	case r.Amount != nil:
		return "amount"
	case r.Type != nil:
		return "type"
	case r.Category != nil:
		return "category"
	case r.Date != nil:
		return "date"
	}
	return ""
}

func toTransactionDTO(tx finance.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:          tx.ID,
		UserID:      tx.UserID,
		ClientID:    tx.ClientID,
		Category:    tx.Category,
		Type:        string(tx.Type),
		Amount:      money(tx.Amount),
		Date:        tx.Date,
		Description: tx.Description,
		Attachment:  tx.Attachment,
		CreatedAt:   tx.CreatedAt,
	}
}

func toTransactionDTOs(txs []finance.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	return dtos
}

// =============================================================================
// GOALS
// =============================================================================

type GoalDTO struct {
	ID           string       `json:"id"`
	Category     string       `json:"category"`
	Type         string       `json:"type"`
	TargetAmount string       `json:"target_amount"`
	StartDate    finance.Date `json:"start_date"`
	Deadline     finance.Date `json:"deadline"`
	Epoch        int          `json:"epoch"`
	Status       string       `json:"status"`
	Description  string       `json:"description,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// GoalRequest is used for both create and update. Type defaults to
// expense. On update, omitted fields keep their stored value.
type GoalRequest struct {
	Category     string       `json:"category"`
	Type         string       `json:"type"`
	TargetAmount Amount       `json:"target_amount"`
	StartDate    finance.Date `json:"start_date"`
	Deadline     finance.Date `json:"deadline"`
	Description  *string      `json:"description"`
}

// apply copies the fields present in r onto g.
func (r GoalRequest) apply(g finance.Goal) finance.Goal {
	if c := strings.TrimSpace(r.Category); c != "" {
		g.Category = c
	}
	if r.Type != "" {
		g.Type = finance.TransactionType(r.Type)
	}
	if r.TargetAmount.Set {
		g.TargetAmount = r.TargetAmount.Value
	}
	if !r.StartDate.IsZero() {
		g.StartDate = r.StartDate
	}
	if !r.Deadline.IsZero() {
		g.Deadline = r.Deadline
	}
	if r.Description != nil {
		g.Description = *r.Description
	}
	return g
}

// GoalProgressDTO reports how far the current window total is from the target.
type GoalProgressDTO struct {
	Goal      GoalDTO `json:"goal"`
	Spent     string  `json:"spent"`
	Remaining string  `json:"remaining"`
	Percent   string  `json:"percent"`
	Reached   bool    `json:"reached"`
	Alerted   bool    `json:"alerted"` // an alert exists for the current epoch
}

func toGoalDTO(g finance.Goal) GoalDTO {
	return GoalDTO{
		ID:           g.ID,
		Category:     g.Category,
		Type:         string(g.Type),
		TargetAmount: money(g.TargetAmount),
		StartDate:    g.StartDate,
		Deadline:     g.Deadline,
		Epoch:        g.Epoch,
		Status:       string(g.Status),
		Description:  g.Description,
		CreatedAt:    g.CreatedAt,
		UpdatedAt:    g.UpdatedAt,
	}
}

// =============================================================================
// ALERTS
// =============================================================================

type AlertDTO struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	Epoch     int       `json:"epoch"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

func toAlertDTO(a finance.Alert) AlertDTO {
	return AlertDTO{
		ID:        a.ID,
		GoalID:    a.GoalID,
		Epoch:     a.Epoch,
		UserID:    a.UserID,
		Type:      string(a.Type),
		Message:   a.Message,
		Read:      a.Read,
		CreatedAt: a.CreatedAt,
	}
}

// =============================================================================
// CLIENTS
// =============================================================================

type ClientDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Document  string    `json:"document,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ClientRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
	Notes    string `json:"notes"`
}

func toClientDTO(c finance.Client) ClientDTO {
	return ClientDTO{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Document:  c.Document,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// =============================================================================
// AUDIT AND REPORTS
// =============================================================================

type AuditEntryDTO struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func toAuditEntryDTO(e finance.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:          e.ID,
		UserID:      e.UserID,
		Action:      string(e.Action),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

// SummaryDTO is the revenue/expense report for a date range.
type SummaryDTO struct {
	From       finance.Date         `json:"from"`
	To         finance.Date         `json:"to"`
	Revenue    string               `json:"revenue"`
	Expenses   string               `json:"expenses"`
	Balance    string               `json:"balance"`
	Count      int                  `json:"count"`
	Categories []CategorySummaryDTO `json:"categories"`
}

type CategorySummaryDTO struct {
	Category string `json:"category"`
	Revenue  string `json:"revenue"`
	Expenses string `json:"expenses"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
