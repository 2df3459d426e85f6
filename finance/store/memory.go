// Package store provides an in-memory finance.Store.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/smartgestao/smart-gestao/finance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory holds everything behind one lock. Writes are serialized, so Seq
// order is commit order for every series.
type Memory struct {
	mu sync.RWMutex

	seq          int64
	transactions []finance.Transaction // ascending Seq
	goals        map[string]finance.Goal
	alerts       []finance.Alert
	alertKeys    map[alertKey]bool
	clients      map[string]finance.Client
	companies    map[string]finance.Company
	users        map[string]finance.User
	emails       map[string]string // lowercased email -> user id
	audit        []finance.AuditEntry
}

type alertKey struct {
	CompanyID string
	GoalID    string
	Epoch     int
}

func NewMemory() *Memory {
	return &Memory{
		goals:     make(map[string]finance.Goal),
		alertKeys: make(map[alertKey]bool),
		clients:   make(map[string]finance.Client),
		companies: make(map[string]finance.Company),
		users:     make(map[string]finance.User),
		emails:    make(map[string]string),
	}
}

var _ finance.Store = (*Memory)(nil)

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (m *Memory) CreateTransaction(_ context.Context, tx *finance.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.transactions {
		if existing.ID == tx.ID {
			return finance.ErrDuplicate
		}
	}
	m.seq++
	tx.Seq = m.seq
	m.transactions = append(m.transactions, *tx)
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, companyID, id string) (finance.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := m.findTransaction(companyID, id)
	if i < 0 {
		return finance.Transaction{}, finance.ErrNotFound
	}
	return m.transactions[i], nil
}

func (m *Memory) ListTransactions(_ context.Context, f finance.TransactionFilter) ([]finance.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.Transaction
	for _, tx := range m.transactions {
		if tx.CompanyID != f.CompanyID ||
			(f.Type != "" && tx.Type != f.Type) ||
			(f.Category != "" && tx.Category != f.Category) ||
			(f.ClientID != "" && tx.ClientID != f.ClientID) ||
			!f.Window.Contains(tx.Date) {
			continue
		}
		result = append(result, tx)
	}

	// Newest economic date first, then newest commit.
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].Seq > result[j].Seq
	})
	return paginate(result, f.Offset, f.Limit), nil
}

func (m *Memory) UpdateTransaction(_ context.Context, tx finance.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.findTransaction(tx.CompanyID, tx.ID)
	if i < 0 {
		return finance.ErrNotFound
	}
	stored := &m.transactions[i]
	stored.Description = tx.Description
	stored.ClientID = tx.ClientID
	stored.Attachment = tx.Attachment
	return nil
}

func (m *Memory) DeleteTransaction(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.findTransaction(companyID, id)
	if i < 0 {
		return finance.ErrNotFound
	}
	m.transactions = append(m.transactions[:i], m.transactions[i+1:]...)
	return nil
}

func (m *Memory) SumExpenses(_ context.Context, q finance.ExpenseQuery) (finance.Money, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range m.transactions {
		if q.BeforeSeq > 0 && tx.Seq >= q.BeforeSeq {
			break // ascending Seq
		}
		if tx.CompanyID != q.CompanyID ||
			tx.Type != finance.TxExpense ||
			tx.Category != q.Category ||
			tx.ID == q.ExcludeID ||
			!q.Window.Contains(tx.Date) {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total, nil
}

func (m *Memory) findTransaction(companyID, id string) int {
	for i, tx := range m.transactions {
		if tx.ID == id && tx.CompanyID == companyID {
			return i
		}
	}
	return -1
}

// =============================================================================
// GOALS
// =============================================================================

func (m *Memory) CreateGoal(_ context.Context, g finance.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.goals[g.ID]; ok {
		return finance.ErrDuplicate
	}
	m.goals[g.ID] = g
	return nil
}

func (m *Memory) GetGoal(_ context.Context, companyID, id string) (finance.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.goals[id]
	if !ok || g.CompanyID != companyID {
		return finance.Goal{}, finance.ErrNotFound
	}
	return g, nil
}

func (m *Memory) ListGoals(_ context.Context, companyID string) ([]finance.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.Goal
	for _, g := range m.goals {
		if g.CompanyID == companyID {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.After(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) UpdateGoal(_ context.Context, g finance.Goal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.goals[g.ID]
	if !ok || existing.CompanyID != g.CompanyID {
		return finance.ErrNotFound
	}
	g.CreatedAt = existing.CreatedAt
	m.goals[g.ID] = g
	return nil
}

func (m *Memory) DeleteGoal(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[id]
	if !ok || g.CompanyID != companyID {
		return finance.ErrNotFound
	}
	delete(m.goals, id)
	return nil
}

func (m *Memory) SetGoalStatus(_ context.Context, companyID, id string, status finance.GoalStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[id]
	if !ok || g.CompanyID != companyID {
		return finance.ErrNotFound
	}
	g.Status = status
	m.goals[id] = g
	return nil
}

func (m *Memory) ActiveGoals(_ context.Context, companyID, category string, typ finance.TransactionType, on finance.Date) ([]finance.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.Goal
	for _, g := range m.goals {
		if g.CompanyID == companyID && g.Category == category && g.Type == typ &&
			!on.Before(g.StartDate) && !on.After(g.Deadline) {
			result = append(result, g)
		}
	}
	return result, nil
}

func (m *Memory) DueGoals(_ context.Context, before finance.Date) ([]finance.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.Goal
	for _, g := range m.goals {
		if g.Status == finance.GoalActive && g.Deadline.Before(before) {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// ALERTS
// =============================================================================

func (m *Memory) InsertAlertIfAbsent(_ context.Context, a finance.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := alertKey{CompanyID: a.CompanyID, GoalID: a.GoalID, Epoch: a.Epoch}
	if m.alertKeys[k] {
		return false, nil
	}
	m.alertKeys[k] = true
	m.alerts = append(m.alerts, a)
	return true, nil
}

func (m *Memory) ListAlerts(_ context.Context, f finance.AlertFilter) ([]finance.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.Alert
	for i := len(m.alerts) - 1; i >= 0; i-- { // newest first
		a := m.alerts[i]
		if a.CompanyID != f.CompanyID ||
			(f.GoalID != "" && a.GoalID != f.GoalID) ||
			(f.Epoch != nil && a.Epoch != *f.Epoch) ||
			(f.UnreadOnly && a.Read) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *Memory) MarkAlertRead(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id && m.alerts[i].CompanyID == companyID {
			m.alerts[i].Read = true
			return nil
		}
	}
	return finance.ErrNotFound
}

// DeleteAlert removes the alert record. The uniqueness key is kept, so a
// deleted alert is not re-created for the same epoch.
func (m *Memory) DeleteAlert(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.alerts {
		if m.alerts[i].ID == id && m.alerts[i].CompanyID == companyID {
			m.alerts = append(m.alerts[:i], m.alerts[i+1:]...)
			return nil
		}
	}
	return finance.ErrNotFound
}

// =============================================================================
// CLIENTS
// =============================================================================

func (m *Memory) CreateClient(_ context.Context, c finance.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.clients[c.ID]; ok {
		return finance.ErrDuplicate
	}
	m.clients[c.ID] = c
	return nil
}

func (m *Memory) GetClient(_ context.Context, companyID, id string) (finance.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.clients[id]
	if !ok || c.CompanyID != companyID {
		return finance.Client{}, finance.ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListClients(_ context.Context, companyID string) ([]finance.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.Client
	for _, c := range m.clients {
		if c.CompanyID == companyID {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) UpdateClient(_ context.Context, c finance.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.clients[c.ID]
	if !ok || existing.CompanyID != c.CompanyID {
		return finance.ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	m.clients[c.ID] = c
	return nil
}

func (m *Memory) DeleteClient(_ context.Context, companyID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.clients[id]
	if !ok || c.CompanyID != companyID {
		return finance.ErrNotFound
	}
	delete(m.clients, id)
	return nil
}

// =============================================================================
// COMPANIES AND USERS
// =============================================================================

func (m *Memory) CreateCompany(_ context.Context, c finance.Company, owner finance.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(owner.Email)
	if _, taken := m.emails[email]; taken {
		return finance.ErrDuplicate
	}
	if _, exists := m.companies[c.ID]; exists {
		return finance.ErrDuplicate
	}
	m.companies[c.ID] = c
	m.users[owner.ID] = owner
	m.emails[email] = owner.ID
	return nil
}

func (m *Memory) GetCompany(_ context.Context, id string) (finance.Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.companies[id]
	if !ok {
		return finance.Company{}, finance.ErrNotFound
	}
	return c, nil
}

func (m *Memory) GetUser(_ context.Context, id string) (finance.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return finance.User{}, finance.ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (finance.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return finance.User{}, finance.ErrNotFound
	}
	return m.users[id], nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) Record(_ context.Context, e finance.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, f finance.AuditFilter) ([]finance.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []finance.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if e.CompanyID != f.CompanyID || !actionMatches(e.Action, f.Actions) {
			continue
		}
		result = append(result, e)
		if f.Limit > 0 && len(result) == f.Limit {
			break
		}
	}
	return result, nil
}

func actionMatches(a finance.AuditAction, want []finance.AuditAction) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		if a == w {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
