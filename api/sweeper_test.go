package api

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgestao/smart-gestao/finance"
	"github.com/smartgestao/smart-gestao/finance/store"
)

func sweeperGoal(id, target string, start, end finance.Date) finance.Goal {
	return finance.Goal{
		ID:           id,
		CompanyID:    "acme",
		Category:     "Food",
		Type:         finance.TxExpense,
		TargetAmount: finance.MustMoney(target),
		StartDate:    start,
		Deadline:     end,
		Status:       finance.GoalActive,
	}
}

func TestGoalSweeper_ClosesDueGoals(t *testing.T) {
	// GIVEN: Two goals that ended in October (one under, one over target)
	//        and one that runs through November
	// WHEN: The sweeper runs on November 5
	// THEN: The October goals close as met and exceeded, November stays active

	ctx := context.Background()
	mem := store.NewMemory()

	oct1 := finance.NewDate(2026, time.October, 1)
	oct31 := finance.NewDate(2026, time.October, 31)
	nov30 := finance.NewDate(2026, time.November, 30)

	require.NoError(t, mem.CreateGoal(ctx, sweeperGoal("g-low", "500", oct1, oct31)))
	require.NoError(t, mem.CreateGoal(ctx, sweeperGoal("g-high", "100", oct1, oct31)))
	require.NoError(t, mem.CreateGoal(ctx, sweeperGoal("g-open", "100", oct1, nov30)))

	tx := finance.Transaction{
		ID: "tx-1", CompanyID: "acme", UserID: "u1", Category: "Food",
		Type: finance.TxExpense, Amount: finance.MustMoney("250"), Date: finance.NewDate(2026, time.October, 10),
	}
	require.NoError(t, mem.CreateTransaction(ctx, &tx))

	sweeper := NewGoalSweeper(mem, "", zerolog.Nop())
	sweeper.now = func() time.Time { return time.Date(2026, time.November, 5, 3, 0, 0, 0, time.UTC) }

	closed, err := sweeper.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)

	status := func(id string) finance.GoalStatus {
		g, err := mem.GetGoal(ctx, "acme", id)
		require.NoError(t, err)
		return g.Status
	}
	assert.Equal(t, finance.GoalMet, status("g-low"))
	assert.Equal(t, finance.GoalExceeded, status("g-high"))
	assert.Equal(t, finance.GoalActive, status("g-open"))

	entries, err := mem.QueryAudit(ctx, finance.AuditFilter{
		CompanyID: "acme",
		Actions:   []finance.AuditAction{finance.AuditCloseGoal},
	})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Closed goals are not due anymore
	closed, err = sweeper.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)

	// The sweeper never alerts
	list, err := mem.ListAlerts(ctx, finance.AlertFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGoalSweeper_DeadlineDayIsStillActive(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	oct31 := finance.NewDate(2026, time.October, 31)
	require.NoError(t, mem.CreateGoal(ctx, sweeperGoal("g", "100", finance.NewDate(2026, time.October, 1), oct31)))

	sweeper := NewGoalSweeper(mem, "", zerolog.Nop())
	sweeper.now = func() time.Time { return time.Date(2026, time.October, 31, 23, 59, 0, 0, time.UTC) }

	closed, err := sweeper.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
}

func TestGoalSweeper_StartAndStop(t *testing.T) {
	sweeper := NewGoalSweeper(store.NewMemory(), "@every 1h", zerolog.Nop())
	require.NoError(t, sweeper.Start(context.Background()))
	require.NoError(t, sweeper.Start(context.Background()), "second start is a no-op")
	sweeper.Stop()
	sweeper.Stop()

	bad := NewGoalSweeper(store.NewMemory(), "every tuesday", zerolog.Nop())
	assert.Error(t, bad.Start(context.Background()))
}
