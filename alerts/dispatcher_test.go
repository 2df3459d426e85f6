package alerts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartgestao/smart-gestao/alerts"
	"github.com/smartgestao/smart-gestao/finance"
	"github.com/smartgestao/smart-gestao/finance/store"
)

func TestDispatcher_EvaluatesAsynchronously(t *testing.T) {
	// GIVEN: Evaluator behind a dispatcher with several workers
	// WHEN: Many expenses are recorded concurrently and the dispatcher drains
	// THEN: Exactly one alert, nothing dropped

	mem := store.NewMemory()
	ev := alerts.NewEvaluator(mem, zerolog.Nop())
	d := alerts.NewDispatcher(ev, 8, 1024, zerolog.Nop())
	d.Start(context.Background())

	ledger := finance.NewLedger(mem, mem, zerolog.Nop())
	ledger.OnCommit(d)
	require.NoError(t, mem.CreateGoal(context.Background(), foodGoal("acme", "100")))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Record(context.Background(), expense("acme", "Food", "9", oct15))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))

	list, err := mem.ListAlerts(context.Background(), finance.AlertFilter{CompanyID: "acme"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Zero(t, d.Dropped())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	blocking := finance.CommitHookFunc(func(context.Context, finance.Transaction) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	d := alerts.NewDispatcher(blocking, 1, 1, zerolog.Nop())
	d.Start(context.Background())

	d.AfterCommit(context.Background(), finance.Transaction{ID: "a"})
	<-started // worker holds "a"
	d.AfterCommit(context.Background(), finance.Transaction{ID: "b"}) // buffered
	d.AfterCommit(context.Background(), finance.Transaction{ID: "c"}) // dropped

	assert.Equal(t, int64(1), d.Dropped())

	close(release)
	require.NoError(t, d.Stop(context.Background()))

	d.AfterCommit(context.Background(), finance.Transaction{ID: "d"})
	assert.Equal(t, int64(2), d.Dropped(), "stopped dispatcher drops")
}

func TestDispatcher_SurvivesPanickingHook(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	hook := finance.CommitHookFunc(func(_ context.Context, tx finance.Transaction) {
		if tx.ID == "boom" {
			panic("hook failure")
		}
		mu.Lock()
		seen = append(seen, tx.ID)
		mu.Unlock()
	})

	d := alerts.NewDispatcher(hook, 1, 8, zerolog.Nop())
	d.Start(context.Background())
	d.AfterCommit(context.Background(), finance.Transaction{ID: "boom"})
	d.AfterCommit(context.Background(), finance.Transaction{ID: "ok"})
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, []string{"ok"}, seen)
}

func TestDispatcher_StopTwice(t *testing.T) {
	d := alerts.NewDispatcher(finance.CommitHookFunc(func(context.Context, finance.Transaction) {}), 0, 0, zerolog.Nop())
	d.Start(context.Background())
	require.NoError(t, d.Stop(context.Background()))
	assert.NoError(t, d.Stop(context.Background()))
}
