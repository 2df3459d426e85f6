/*
sweeper.go - Scheduled closing of expired goals

PURPOSE:
  Periodically finds goals that are still active after their deadline and
  closes them: "met" if the window total stayed below the target,
  "exceeded" otherwise. Each close is audited as CLOSE_GOAL.

DESIGN:
  - robfig/cron drives the schedule (default "@hourly", any cron spec
    or "@every 10m" descriptor works)
  - One sweep runs immediately on Start
  - Overlapping runs are skipped
  - The sweeper never creates alerts; crossing alerts belong to the
    evaluator alone

USAGE:
  sweeper := NewGoalSweeper(store, "@hourly", log)
  if err := sweeper.Start(ctx); err != nil { ... }
  // ... later
  sweeper.Stop()

SEE ALSO:
  - finance/types.go: Goal.Close
  - alerts/evaluator.go: crossing alerts
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/smartgestao/smart-gestao/finance"
)

// SweepStores is what the sweeper reads and writes.
type SweepStores interface {
	finance.GoalStore
	finance.TransactionStore
	finance.AuditLog
}

// GoalSweeper closes goals whose deadline has passed.
type GoalSweeper struct {
	Store    SweepStores
	Schedule string
	Log      zerolog.Logger

	cron *cron.Cron
	mu   sync.Mutex
	now  func() time.Time
}

// NewGoalSweeper creates a sweeper. An empty schedule means "@hourly".
func NewGoalSweeper(store SweepStores, schedule string, log zerolog.Logger) *GoalSweeper {
	if schedule == "" {
		schedule = "@hourly"
	}
	return &GoalSweeper{
		Store:    store,
		Schedule: schedule,
		Log:      log.With().Str("component", "goal-sweeper").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the job and runs a first sweep in the background.
// Sweeps run with ctx.
func (s *GoalSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	job := cron.FuncJob(func() { s.run(ctx) })
	if _, err := c.AddJob(s.Schedule, job); err != nil {
		return fmt.Errorf("invalid goal sweep schedule %q: %w", s.Schedule, err)
	}
	c.Start()
	s.cron = c

	go s.run(ctx)

	s.Log.Info().Str("schedule", s.Schedule).Msg("goal sweeper started")
	return nil
}

// Stop removes the schedule and waits for a running sweep to finish.
func (s *GoalSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.Log.Info().Msg("goal sweeper stopped")
}

func (s *GoalSweeper) run(ctx context.Context) {
	closed, err := s.RunNow(ctx)
	if err != nil {
		s.Log.Error().Err(err).Int("closed", closed).Msg("goal sweep finished with errors")
		return
	}
	if closed > 0 {
		s.Log.Info().Int("closed", closed).Msg("goal sweep completed")
	}
}

// RunNow closes every due goal and returns how many were closed. A goal
// that fails is logged and skipped; its error is part of the result.
func (s *GoalSweeper) RunNow(ctx context.Context) (int, error) {
	today := finance.DateOf(s.now())

	due, err := s.Store.DueGoals(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("failed to list due goals: %w", err)
	}

	var errs []error
	closed := 0
	for _, g := range due {
		if err := s.close(ctx, g); err != nil {
			s.Log.Warn().
				Err(err).
				Str("goal_id", g.ID).
				Str("company_id", g.CompanyID).
				Msg("failed to close goal")
			errs = append(errs, err)
			continue
		}
		closed++
	}
	return closed, errors.Join(errs...)
}

func (s *GoalSweeper) close(ctx context.Context, g finance.Goal) error {
	total, err := s.Store.SumExpenses(ctx, finance.ExpenseQuery{
		CompanyID: g.CompanyID,
		Category:  g.Category,
		Window:    g.Window(),
	})
	if err != nil {
		return fmt.Errorf("goal %s: %w", g.ID, err)
	}

	status := g.Close(total)
	if err := s.Store.SetGoalStatus(ctx, g.CompanyID, g.ID, status); err != nil {
		return fmt.Errorf("goal %s: %w", g.ID, err)
	}

	desc := fmt.Sprintf("goal %s closed as %s: spent %s of %s",
		g.ID, status, money(total), money(g.TargetAmount))
	err = s.Store.Record(ctx, finance.AuditEntry{
		ID:          uuid.New().String(),
		CompanyID:   g.CompanyID,
		Action:      finance.AuditCloseGoal,
		Description: desc,
		CreatedAt:   s.now(),
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("goal_id", g.ID).Msg("failed to audit goal close")
	}
	return nil
}
