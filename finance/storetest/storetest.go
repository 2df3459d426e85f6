// Package storetest is a behavioral suite every finance.Store backend must
// pass. Backends call Run from their own tests with a constructor that
// returns an empty store.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgestao/smart-gestao/finance"
)

// Factory returns an empty store. Cleanup is the factory's job (t.Cleanup).
type Factory func(t *testing.T) finance.Store

// Run executes every contract test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := map[string]func(*testing.T, finance.Store){
		"TransactionSeqIncreases":        testTransactionSeq,
		"TransactionTenantScoped":        testTransactionTenantScoped,
		"TransactionDuplicateID":         testTransactionDuplicateID,
		"ListTransactionsFilters":        testListTransactions,
		"UpdateTransactionSoftFields":    testUpdateTransaction,
		"DeleteTransaction":              testDeleteTransaction,
		"SumExpenses":                    testSumExpenses,
		"GoalCRUD":                       testGoalCRUD,
		"ActiveAndDueGoals":              testActiveAndDueGoals,
		"InsertAlertIfAbsent":            testInsertAlertIfAbsent,
		"InsertAlertIfAbsentConcurrent":  testInsertAlertConcurrent,
		"AlertReadAndDelete":             testAlertReadAndDelete,
		"ClientCRUD":                     testClientCRUD,
		"CompanyAndUsers":                testCompanyAndUsers,
		"AuditNewestFirst":               testAudit,
		"CreateTransactionConcurrentSeq": testConcurrentSeq,
	}
	for name, fn := range tests {
		fn := fn
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

var (
	Oct1  = finance.NewDate(2026, time.October, 1)
	Oct10 = finance.NewDate(2026, time.October, 10)
	Oct20 = finance.NewDate(2026, time.October, 20)
	Oct31 = finance.NewDate(2026, time.October, 31)
	Nov1  = finance.NewDate(2026, time.November, 1)
)

var fixtureCount int64
var fixtureMu sync.Mutex

func nextID(prefix string) string {
	fixtureMu.Lock()
	defer fixtureMu.Unlock()
	fixtureCount++
	return fmt.Sprintf("%s-%d", prefix, fixtureCount)
}

// Expense builds a valid expense with a fresh id.
func Expense(companyID, category, amount string, date finance.Date) finance.Transaction {
	return finance.Transaction{
		ID:        nextID("tx"),
		CompanyID: companyID,
		UserID:    "user-" + companyID,
		Category:  category,
		Type:      finance.TxExpense,
		Amount:    finance.MustMoney(amount),
		Date:      date,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// Goal builds an active expense goal on [start, end].
func Goal(companyID, category, target string, start, end finance.Date) finance.Goal {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return finance.Goal{
		ID:           nextID("goal"),
		CompanyID:    companyID,
		Category:     category,
		Type:         finance.TxExpense,
		TargetAmount: finance.MustMoney(target),
		StartDate:    start,
		Deadline:     end,
		Status:       finance.GoalActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func create(t *testing.T, s finance.Store, tx finance.Transaction) finance.Transaction {
	t.Helper()
	require.NoError(t, s.CreateTransaction(context.Background(), &tx))
	return tx
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func testTransactionSeq(t *testing.T, s finance.Store) {
	a := create(t, s, Expense("acme", "Food", "1", Oct10))
	b := create(t, s, Expense("acme", "Food", "1", Oct10))
	c := create(t, s, Expense("acme", "Rent", "1", Oct10))

	assert.Positive(t, a.Seq)
	assert.Greater(t, b.Seq, a.Seq)
	assert.Greater(t, c.Seq, b.Seq)
}

func testTransactionTenantScoped(t *testing.T, s finance.Store) {
	ctx := context.Background()
	tx := Expense("acme", "Food", "12.34", Oct10)
	tx.Description = "lunch"
	tx.ClientID = "client-1"
	tx = create(t, s, tx)

	got, err := s.GetTransaction(ctx, "acme", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)
	assert.Equal(t, tx.Seq, got.Seq)
	assert.True(t, tx.Amount.Equal(got.Amount))
	assert.Equal(t, tx.Date, got.Date)
	assert.Equal(t, "lunch", got.Description)
	assert.Equal(t, "client-1", got.ClientID)
	assert.Equal(t, finance.TxExpense, got.Type)

	_, err = s.GetTransaction(ctx, "globex", tx.ID)
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

func testTransactionDuplicateID(t *testing.T, s finance.Store) {
	tx := create(t, s, Expense("acme", "Food", "1", Oct10))
	dup := tx
	err := s.CreateTransaction(context.Background(), &dup)
	assert.ErrorIs(t, err, finance.ErrDuplicate)
}

func testListTransactions(t *testing.T, s finance.Store) {
	ctx := context.Background()
	early := create(t, s, Expense("acme", "Food", "1", Oct1))
	late := create(t, s, Expense("acme", "Food", "2", Oct20))
	rent := create(t, s, Expense("acme", "Rent", "3", Oct10))
	rev := Expense("acme", "Sales", "4", Oct10)
	rev.Type = finance.TxRevenue
	rev = create(t, s, rev)
	create(t, s, Expense("globex", "Food", "5", Oct10))

	all, err := s.ListTransactions(ctx, finance.TransactionFilter{CompanyID: "acme"})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, late.ID, all[0].ID, "newest date first")
	assert.Equal(t, rev.ID, all[1].ID, "same date: newest commit first")
	assert.Equal(t, rent.ID, all[2].ID)
	assert.Equal(t, early.ID, all[3].ID)

	food, err := s.ListTransactions(ctx, finance.TransactionFilter{CompanyID: "acme", Category: "Food"})
	require.NoError(t, err)
	assert.Len(t, food, 2)

	revenue, err := s.ListTransactions(ctx, finance.TransactionFilter{CompanyID: "acme", Type: finance.TxRevenue})
	require.NoError(t, err)
	require.Len(t, revenue, 1)
	assert.Equal(t, rev.ID, revenue[0].ID)

	windowed, err := s.ListTransactions(ctx, finance.TransactionFilter{
		CompanyID: "acme",
		Window:    finance.Window{Start: Oct10, End: Oct20},
	})
	require.NoError(t, err)
	assert.Len(t, windowed, 3)

	page, err := s.ListTransactions(ctx, finance.TransactionFilter{CompanyID: "acme", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, rev.ID, page[0].ID)
	assert.Equal(t, rent.ID, page[1].ID)
}

func testUpdateTransaction(t *testing.T, s finance.Store) {
	ctx := context.Background()
	tx := create(t, s, Expense("acme", "Food", "10", Oct10))

	changed := tx
	changed.Description = "team dinner"
	changed.Attachment = "receipts/123.pdf"
	changed.Amount = finance.MustMoney("9999")
	changed.Category = "Rent"
	require.NoError(t, s.UpdateTransaction(ctx, changed))

	got, err := s.GetTransaction(ctx, "acme", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "team dinner", got.Description)
	assert.Equal(t, "receipts/123.pdf", got.Attachment)
	assert.True(t, got.Amount.Equal(tx.Amount), "amount is immutable")
	assert.Equal(t, "Food", got.Category, "category is immutable")

	changed.CompanyID = "globex"
	assert.ErrorIs(t, s.UpdateTransaction(ctx, changed), finance.ErrNotFound)
}

func testDeleteTransaction(t *testing.T, s finance.Store) {
	ctx := context.Background()
	tx := create(t, s, Expense("acme", "Food", "10", Oct10))

	assert.ErrorIs(t, s.DeleteTransaction(ctx, "globex", tx.ID), finance.ErrNotFound)
	require.NoError(t, s.DeleteTransaction(ctx, "acme", tx.ID))
	_, err := s.GetTransaction(ctx, "acme", tx.ID)
	assert.ErrorIs(t, err, finance.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "acme", tx.ID), finance.ErrNotFound)
}

func testSumExpenses(t *testing.T, s finance.Store) {
	ctx := context.Background()
	window := finance.Window{Start: Oct1, End: Oct31}

	a := create(t, s, Expense("acme", "Food", "10.10", Oct1))
	b := create(t, s, Expense("acme", "Food", "20.20", Oct31))
	create(t, s, Expense("acme", "Food", "1000", Nov1))  // outside window
	create(t, s, Expense("acme", "Rent", "1000", Oct10)) // other category
	create(t, s, Expense("globex", "Food", "1000", Oct10))
	rev := Expense("acme", "Food", "1000", Oct10)
	rev.Type = finance.TxRevenue
	create(t, s, rev)
	c := create(t, s, Expense("acme", "Food", "30.30", Oct20))

	sum := func(q finance.ExpenseQuery) string {
		t.Helper()
		q.CompanyID, q.Category, q.Window = "acme", "Food", window
		total, err := s.SumExpenses(ctx, q)
		require.NoError(t, err)
		return total.StringFixed(2)
	}

	assert.Equal(t, "60.60", sum(finance.ExpenseQuery{}))
	assert.Equal(t, "40.40", sum(finance.ExpenseQuery{ExcludeID: b.ID}))
	assert.Equal(t, "10.10", sum(finance.ExpenseQuery{BeforeSeq: b.Seq}))
	assert.Equal(t, "30.30", sum(finance.ExpenseQuery{BeforeSeq: c.Seq, ExcludeID: c.ID}))
	assert.Equal(t, "0.00", sum(finance.ExpenseQuery{BeforeSeq: a.Seq}))

	empty, err := s.SumExpenses(ctx, finance.ExpenseQuery{CompanyID: "nobody", Category: "Food", Window: window})
	require.NoError(t, err)
	assert.True(t, empty.IsZero())
}

func testConcurrentSeq(t *testing.T, s finance.Store) {
	const n = 40
	var wg sync.WaitGroup
	seqs := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx := Expense("acme", "Food", "1", Oct10)
			if assert.NoError(t, s.CreateTransaction(context.Background(), &tx)) {
				seqs <- tx.Seq
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := map[int64]bool{}
	for seq := range seqs {
		assert.False(t, seen[seq], "seq %d assigned twice", seq)
		seen[seq] = true
	}
	assert.Len(t, seen, n)
}

// =============================================================================
// GOALS
// =============================================================================

func testGoalCRUD(t *testing.T, s finance.Store) {
	ctx := context.Background()
	g := Goal("acme", "Food", "100.50", Oct1, Oct31)
	g.Description = "October food"
	require.NoError(t, s.CreateGoal(ctx, g))
	assert.ErrorIs(t, s.CreateGoal(ctx, g), finance.ErrDuplicate)

	got, err := s.GetGoal(ctx, "acme", g.ID)
	require.NoError(t, err)
	assert.True(t, got.TargetAmount.Equal(g.TargetAmount))
	assert.Equal(t, g.StartDate, got.StartDate)
	assert.Equal(t, g.Deadline, got.Deadline)
	assert.Equal(t, "October food", got.Description)
	assert.Equal(t, finance.GoalActive, got.Status)
	assert.Equal(t, 0, got.Epoch)

	_, err = s.GetGoal(ctx, "globex", g.ID)
	assert.ErrorIs(t, err, finance.ErrNotFound)

	got.TargetAmount = finance.MustMoney("200")
	got.Epoch = 1
	require.NoError(t, s.UpdateGoal(ctx, got))
	updated, err := s.GetGoal(ctx, "acme", g.ID)
	require.NoError(t, err)
	assert.Equal(t, "200", updated.TargetAmount.String())
	assert.Equal(t, 1, updated.Epoch)

	require.NoError(t, s.SetGoalStatus(ctx, "acme", g.ID, finance.GoalExceeded))
	closed, err := s.GetGoal(ctx, "acme", g.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.GoalExceeded, closed.Status)

	other := Goal("acme", "Rent", "50", Oct1, Oct31)
	require.NoError(t, s.CreateGoal(ctx, other))
	list, err := s.ListGoals(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	assert.ErrorIs(t, s.DeleteGoal(ctx, "globex", g.ID), finance.ErrNotFound)
	require.NoError(t, s.DeleteGoal(ctx, "acme", g.ID))
	_, err = s.GetGoal(ctx, "acme", g.ID)
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

func testActiveAndDueGoals(t *testing.T, s finance.Store) {
	ctx := context.Background()
	october := Goal("acme", "Food", "100", Oct1, Oct31)
	mid := Goal("acme", "Food", "100", Oct10, Oct20)
	rent := Goal("acme", "Rent", "100", Oct1, Oct31)
	foreign := Goal("globex", "Food", "100", Oct1, Oct31)
	september := Goal("acme", "Food", "100", finance.NewDate(2026, time.September, 1), finance.NewDate(2026, time.September, 30))
	for _, g := range []finance.Goal{october, mid, rent, foreign, september} {
		require.NoError(t, s.CreateGoal(ctx, g))
	}

	ids := func(goals []finance.Goal) []string {
		var out []string
		for _, g := range goals {
			out = append(out, g.ID)
		}
		return out
	}

	active, err := s.ActiveGoals(ctx, "acme", "Food", finance.TxExpense, Oct10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{october.ID, mid.ID}, ids(active))

	active, err = s.ActiveGoals(ctx, "acme", "Food", finance.TxExpense, Oct31)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{october.ID}, ids(active), "deadline is inclusive")

	active, err = s.ActiveGoals(ctx, "acme", "Food", finance.TxRevenue, Oct10)
	require.NoError(t, err)
	assert.Empty(t, active)

	due, err := s.DueGoals(ctx, Oct1)
	require.NoError(t, err)
	assert.Equal(t, []string{september.ID}, ids(due))

	require.NoError(t, s.SetGoalStatus(ctx, "acme", september.ID, finance.GoalMet))
	due, err = s.DueGoals(ctx, Nov1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{october.ID, mid.ID, rent.ID, foreign.ID}, ids(due))
}

// =============================================================================
// ALERTS
// =============================================================================

func alertFor(g finance.Goal, epoch int) finance.Alert {
	return finance.Alert{
		ID:        nextID("alert"),
		CompanyID: g.CompanyID,
		GoalID:    g.ID,
		Epoch:     epoch,
		UserID:    "user-" + g.CompanyID,
		Type:      finance.AlertLimitReached,
		Message:   "Spending goal for \"" + g.Category + "\" reached",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func testInsertAlertIfAbsent(t *testing.T, s finance.Store) {
	ctx := context.Background()
	g := Goal("acme", "Food", "100", Oct1, Oct31)
	require.NoError(t, s.CreateGoal(ctx, g))

	created, err := s.InsertAlertIfAbsent(ctx, alertFor(g, 0))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.InsertAlertIfAbsent(ctx, alertFor(g, 0))
	require.NoError(t, err)
	assert.False(t, created, "same (company, goal, epoch)")

	created, err = s.InsertAlertIfAbsent(ctx, alertFor(g, 1))
	require.NoError(t, err)
	assert.True(t, created, "next epoch")

	list, err := s.ListAlerts(ctx, finance.AlertFilter{CompanyID: "acme"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Epoch, "newest first")
	assert.Equal(t, finance.AlertLimitReached, list[0].Type)
	assert.False(t, list[0].Read)

	epoch := 0
	list, err = s.ListAlerts(ctx, finance.AlertFilter{CompanyID: "acme", GoalID: g.ID, Epoch: &epoch})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListAlerts(ctx, finance.AlertFilter{CompanyID: "globex"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func testInsertAlertConcurrent(t *testing.T, s finance.Store) {
	ctx := context.Background()
	g := Goal("acme", "Food", "100", Oct1, Oct31)
	require.NoError(t, s.CreateGoal(ctx, g))

	const n = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.InsertAlertIfAbsent(ctx, alertFor(g, 0))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
}

func testAlertReadAndDelete(t *testing.T, s finance.Store) {
	ctx := context.Background()
	g := Goal("acme", "Food", "100", Oct1, Oct31)
	require.NoError(t, s.CreateGoal(ctx, g))
	a := alertFor(g, 0)
	_, err := s.InsertAlertIfAbsent(ctx, a)
	require.NoError(t, err)

	assert.ErrorIs(t, s.MarkAlertRead(ctx, "globex", a.ID), finance.ErrNotFound)
	require.NoError(t, s.MarkAlertRead(ctx, "acme", a.ID))

	unread, err := s.ListAlerts(ctx, finance.AlertFilter{CompanyID: "acme", UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread)

	assert.ErrorIs(t, s.DeleteAlert(ctx, "globex", a.ID), finance.ErrNotFound)
	require.NoError(t, s.DeleteAlert(ctx, "acme", a.ID))
	list, err := s.ListAlerts(ctx, finance.AlertFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Empty(t, list)

	created, err := s.InsertAlertIfAbsent(ctx, alertFor(g, 0))
	require.NoError(t, err)
	assert.False(t, created, "a deleted alert keeps its epoch")
}

// =============================================================================
// CLIENTS, COMPANIES, AUDIT
// =============================================================================

func testClientCRUD(t *testing.T, s finance.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	c := finance.Client{ID: nextID("client"), CompanyID: "acme", Name: "Padaria Central", Email: "contato@padaria.test", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateClient(ctx, c))
	require.NoError(t, s.CreateClient(ctx, finance.Client{ID: nextID("client"), CompanyID: "acme", Name: "Açougue Boi", CreatedAt: now, UpdatedAt: now}))

	got, err := s.GetClient(ctx, "acme", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Padaria Central", got.Name)
	_, err = s.GetClient(ctx, "globex", c.ID)
	assert.ErrorIs(t, err, finance.ErrNotFound)

	got.Phone = "+55 11 5555-0000"
	require.NoError(t, s.UpdateClient(ctx, got))
	got, err = s.GetClient(ctx, "acme", c.ID)
	require.NoError(t, err)
	assert.Equal(t, "+55 11 5555-0000", got.Phone)

	list, err := s.ListClients(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, s.DeleteClient(ctx, "acme", c.ID))
	assert.ErrorIs(t, s.DeleteClient(ctx, "acme", c.ID), finance.ErrNotFound)
}

func testCompanyAndUsers(t *testing.T, s finance.Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	company := finance.Company{ID: nextID("company"), Name: "Acme Ltda", Document: "12.345.678/0001-90", CreatedAt: now}
	owner := finance.User{ID: nextID("user"), CompanyID: company.ID, Name: "Ana", Email: "Ana@Acme.test", PasswordHash: "hash", Role: finance.RoleOwner, CreatedAt: now}
	require.NoError(t, s.CreateCompany(ctx, company, owner))

	gotCompany, err := s.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltda", gotCompany.Name)

	gotUser, err := s.GetUserByEmail(ctx, "ana@acme.TEST")
	require.NoError(t, err)
	assert.Equal(t, owner.ID, gotUser.ID)
	assert.Equal(t, company.ID, gotUser.CompanyID)
	assert.Equal(t, finance.RoleOwner, gotUser.Role)
	assert.Equal(t, "hash", gotUser.PasswordHash)

	gotUser, err = s.GetUser(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", gotUser.Name)

	second := finance.Company{ID: nextID("company"), Name: "Other", CreatedAt: now}
	dupOwner := finance.User{ID: nextID("user"), CompanyID: second.ID, Name: "Ana 2", Email: "ana@acme.test", PasswordHash: "hash", Role: finance.RoleOwner, CreatedAt: now}
	assert.ErrorIs(t, s.CreateCompany(ctx, second, dupOwner), finance.ErrDuplicate)
	_, err = s.GetCompany(ctx, second.ID)
	assert.ErrorIs(t, err, finance.ErrNotFound, "failed registration leaves no company behind")

	_, err = s.GetUserByEmail(ctx, "nobody@acme.test")
	assert.ErrorIs(t, err, finance.ErrNotFound)
}

func testAudit(t *testing.T, s finance.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	entries := []finance.AuditEntry{
		{ID: nextID("audit"), CompanyID: "acme", UserID: "u1", Action: finance.AuditCreateTransaction, Description: "first", CreatedAt: base},
		{ID: nextID("audit"), CompanyID: "acme", UserID: "u1", Action: finance.AuditAutoCreateAlert, Description: "second", CreatedAt: base.Add(time.Second)},
		{ID: nextID("audit"), CompanyID: "globex", UserID: "u2", Action: finance.AuditCreateTransaction, Description: "foreign", CreatedAt: base.Add(2 * time.Second)},
		{ID: nextID("audit"), CompanyID: "acme", UserID: "u1", Action: finance.AuditCreateTransaction, Description: "third", CreatedAt: base.Add(3 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(ctx, e))
	}

	all, err := s.QueryAudit(ctx, finance.AuditFilter{CompanyID: "acme"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Description)
	assert.Equal(t, "first", all[2].Description)

	alertsOnly, err := s.QueryAudit(ctx, finance.AuditFilter{CompanyID: "acme", Actions: []finance.AuditAction{finance.AuditAutoCreateAlert}})
	require.NoError(t, err)
	require.Len(t, alertsOnly, 1)
	assert.Equal(t, "second", alertsOnly[0].Description)

	limited, err := s.QueryAudit(ctx, finance.AuditFilter{CompanyID: "acme", Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "third", limited[0].Description)
}
