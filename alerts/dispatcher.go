package alerts

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/smartgestao/smart-gestao/finance"
)

// Dispatcher runs commit hooks on a worker pool instead of the request
// goroutine. Enqueue never blocks: when the queue is full the transaction
// is dropped and logged, which only costs a missed alert.
type Dispatcher struct {
	next    finance.CommitHook
	workers int
	log     zerolog.Logger

	jobs    chan finance.Transaction
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewDispatcher wraps next. workers and buffer default to 4 and 256.
func NewDispatcher(next finance.CommitHook, workers, buffer int, log zerolog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		next:    next,
		workers: workers,
		log:     log.With().Str("component", "alert-dispatcher").Logger(),
		jobs:    make(chan finance.Transaction, buffer),
	}
}

var _ finance.CommitHook = (*Dispatcher)(nil)

// Start launches the workers. Jobs run with ctx, which should outlive
// any single request.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
	d.log.Info().Int("workers", d.workers).Int("buffer", cap(d.jobs)).Msg("alert dispatcher started")
}

// AfterCommit enqueues tx. The request context is not carried over.
func (d *Dispatcher) AfterCommit(_ context.Context, tx finance.Transaction) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(tx, "dispatcher stopped")
		return
	}
	select {
	case d.jobs <- tx:
	default:
		d.drop(tx, "queue full")
	}
}

// Dropped returns how many transactions were never evaluated.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Stop refuses new work, drains the queue and waits for the workers.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info().Int64("dropped", d.Dropped()).Msg("alert dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for tx := range d.jobs {
		d.handle(ctx, tx)
	}
}

func (d *Dispatcher) handle(ctx context.Context, tx finance.Transaction) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("transaction_id", tx.ID).Msg("alert evaluation panicked")
		}
	}()
	d.next.AfterCommit(ctx, tx)
}

func (d *Dispatcher) drop(tx finance.Transaction, reason string) {
	d.dropped.Add(1)
	d.log.Warn().
		Str("transaction_id", tx.ID).
		Str("company_id", tx.CompanyID).
		Str("reason", reason).
		Msg("alert evaluation dropped")
}
