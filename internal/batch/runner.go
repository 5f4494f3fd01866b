// Package batch runs address validation over sets of installation
// records, writing every outcome through the validation store.
package batch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dea-madrid/address-validation/internal/engine"
	"github.com/dea-madrid/address-validation/internal/store"
)

const (
	// chunkSize is how many records run concurrently before the runner
	// pauses. Chunks execute sequentially.
	chunkSize = 5

	// maxConcurrency caps the caller-requested concurrency limit.
	maxConcurrency = 10

	// maxRecordsPerRun caps a single run regardless of how many ids
	// the caller submits.
	maxRecordsPerRun = 50

	// interChunkPause throttles registry pressure between chunks.
	interChunkPause = time.Second
)

// Validator resolves one address. Satisfied by *engine.Engine.
type Validator interface {
	Validate(q engine.Query) (*engine.Result, error)
}

// RecordSource resolves a record id to the address it submitted.
type RecordSource interface {
	Fetch(ctx context.Context, recordID string) (engine.Query, error)
}

// RecordOutcome is the per-record line of a run summary.
type RecordOutcome struct {
	RecordID      string        `json:"recordId"`
	OverallStatus engine.Status `json:"overallStatus,omitempty"`
	Confidence    float64       `json:"confidence"`
	Error         string        `json:"error,omitempty"`
}

// Summary describes one completed (or cancelled) run.
type Summary struct {
	RunID      string          `json:"runId"`
	Processed  int             `json:"processed"`
	Successful int             `json:"successful"`
	WithIssues int             `json:"withIssues"`
	Failed     int             `json:"failed"`
	Duration   time.Duration   `json:"-"`
	PerRecord  []RecordOutcome `json:"perRecord"`
}

// Runner executes validation runs in sequential chunks of concurrent
// workers. A per-record failure is recorded and never aborts the run.
type Runner struct {
	validator Validator
	source    RecordSource
	store     store.Store
	clock     clockwork.Clock
	log       *zap.Logger
}

// NewRunner wires a runner. A nil clock means real time.
func NewRunner(v Validator, src RecordSource, st store.Store, clock clockwork.Clock, log *zap.Logger) *Runner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{validator: v, source: src, store: st, clock: clock, log: log}
}

// Run validates the given record ids. The concurrency limit is
// clamped to [1, 10] and applies within each chunk; runs are capped at
// 50 records. Cancellation is honored between chunks, never mid-chunk,
// so every started record is persisted.
func (r *Runner) Run(ctx context.Context, recordIDs []string, concurrency int) (*Summary, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	if concurrency > maxConcurrency {
		concurrency = maxConcurrency
	}
	if len(recordIDs) > maxRecordsPerRun {
		r.log.Warn("run truncated to record ceiling",
			zap.Int("submitted", len(recordIDs)),
			zap.Int("ceiling", maxRecordsPerRun))
		recordIDs = recordIDs[:maxRecordsPerRun]
	}

	summary := &Summary{RunID: uuid.NewString()}
	start := r.clock.Now()
	r.log.Info("batch run started",
		zap.String("runId", summary.RunID),
		zap.Int("records", len(recordIDs)),
		zap.Int("concurrency", concurrency))

	for offset := 0; offset < len(recordIDs); offset += chunkSize {
		// Cancellation stops new chunks, never a chunk in flight, so
		// every started record still gets its outcome persisted.
		if offset == 0 {
			if err := ctx.Err(); err != nil {
				summary.Duration = r.clock.Since(start)
				return summary, eris.Wrap(err, "batch run cancelled")
			}
		} else {
			select {
			case <-ctx.Done():
				summary.Duration = r.clock.Since(start)
				return summary, eris.Wrap(ctx.Err(), "batch run cancelled")
			case <-r.clock.After(interChunkPause):
			}
		}

		end := offset + chunkSize
		if end > len(recordIDs) {
			end = len(recordIDs)
		}
		chunk := recordIDs[offset:end]

		outcomes := make([]RecordOutcome, len(chunk))
		g := new(errgroup.Group)
		g.SetLimit(concurrency)
		for i, id := range chunk {
			g.Go(func() error {
				outcomes[i] = r.processRecord(ctx, id)
				return nil
			})
		}
		g.Wait() // workers never return errors

		for _, o := range outcomes {
			summary.Processed++
			summary.PerRecord = append(summary.PerRecord, o)
			switch {
			case o.Error != "":
				summary.Failed++
			case o.OverallStatus == engine.StatusValid:
				summary.Successful++
			default:
				summary.Successful++
				summary.WithIssues++
			}
		}
	}

	summary.Duration = r.clock.Since(start)
	r.log.Info("batch run finished",
		zap.String("runId", summary.RunID),
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
	return summary, nil
}

// processRecord fetches, validates and persists one record. All
// failure modes end up in the store's retry bookkeeping.
func (r *Runner) processRecord(ctx context.Context, recordID string) RecordOutcome {
	outcome := RecordOutcome{RecordID: recordID}

	q, err := r.source.Fetch(ctx, recordID)
	if err == nil {
		var res *engine.Result
		res, err = r.validator.Validate(q)
		if err == nil {
			outcome.OverallStatus = res.OverallStatus
			outcome.Confidence = res.Confidence
			r.persist(ctx, store.Outcome{
				RecordID:       recordID,
				Result:         res,
				DurationMs:     res.Duration.Milliseconds(),
				StrategiesUsed: res.StrategiesUsed,
			})
			return outcome
		}
	}

	outcome.Error = err.Error()
	r.log.Warn("record validation failed",
		zap.String("recordId", recordID),
		zap.Error(err))
	r.persist(ctx, store.Outcome{RecordID: recordID, Err: err.Error()})
	return outcome
}

func (r *Runner) persist(ctx context.Context, o store.Outcome) {
	if err := r.store.Upsert(ctx, o); err != nil {
		r.log.Error("outcome persist failed",
			zap.String("recordId", o.RecordID),
			zap.Error(err))
	}
}
