package batch

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/store"
)

// Scheduler periodically re-runs every record the store has flagged
// for reprocessing.
type Scheduler struct {
	runner      *Runner
	store       store.Store
	clock       clockwork.Clock
	log         *zap.Logger
	interval    time.Duration
	concurrency int
}

// NewScheduler wires a scheduler around an existing runner. A nil
// clock means real time.
func NewScheduler(r *Runner, st store.Store, interval time.Duration, concurrency int, clock clockwork.Clock, log *zap.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		runner:      r,
		store:       st,
		clock:       clock,
		log:         log,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Start blocks until the context is cancelled, running one pending
// sweep per interval. A failed sweep is logged and retried on the next
// tick.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	ids, err := s.store.ListPending(ctx, maxRecordsPerRun)
	if err != nil {
		s.log.Error("pending sweep failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		return
	}

	summary, err := s.runner.Run(ctx, ids, s.concurrency)
	if err != nil {
		s.log.Warn("scheduled run interrupted", zap.Error(err))
		return
	}
	s.log.Info("scheduled run finished",
		zap.String("runId", summary.RunID),
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed))
}
