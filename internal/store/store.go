// Package store persists validation outcomes and their retry
// bookkeeping, keyed by source record id.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dea-madrid/address-validation/internal/engine"
	"github.com/dea-madrid/address-validation/internal/match"
)

var (
	// ErrPersistFailure wraps any write-through failure. The batch
	// runner logs it and relies on the persisted retry fields to pick
	// the record up again; it never propagates past the runner.
	ErrPersistFailure = eris.New("validation store persist failure")

	// ErrNotFound is returned when no state exists for a record id.
	ErrNotFound = eris.New("validation record not found")
)

// Outcome is one validation attempt to be written through. Err is
// empty on success; on failure Result may be nil.
type Outcome struct {
	RecordID       string
	Result         *engine.Result
	DurationMs     int64
	StrategiesUsed []string
	Err            string
}

// RecordState is the persisted per-record bookkeeping. It is created
// on the first attempt and updated in place on every subsequent one.
type RecordState struct {
	RecordID          string          `json:"recordId"`
	Result            *engine.Result  `json:"result,omitempty"`
	OverallStatus     engine.Status   `json:"overallStatus,omitempty"`
	Confidence        float64         `json:"confidence"`
	MatchType         match.MatchType `json:"matchType,omitempty"`
	DurationMs        int64           `json:"durationMs"`
	StrategiesUsed    []string        `json:"strategiesUsed,omitempty"`
	NeedsReprocessing bool            `json:"needsReprocessing"`
	LastError         string          `json:"lastError,omitempty"`
	RetryCount        int             `json:"retryCount"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Stats aggregates the stored outcomes.
type Stats struct {
	Total             int            `json:"total"`
	ByStatus          map[string]int `json:"byStatus"`
	NeedsReprocessing int            `json:"needsReprocessing"`
	AverageConfidence float64        `json:"averageConfidence"`
}

// Store is the persistence contract for validation outcomes.
//
// Upsert must be idempotent per record id: re-running with identical
// inputs yields the same stored state except for timestamps and the
// retry semantics (a failure increments RetryCount and sets
// NeedsReprocessing; a success resets both and clears the error).
// Concurrent upserts are safe; each writer owns a disjoint record id,
// so last-writer-wins is acceptable.
type Store interface {
	Upsert(ctx context.Context, o Outcome) error
	Get(ctx context.Context, recordID string) (*RecordState, error)
	// ListPending returns ids flagged for reprocessing, the sole
	// selection predicate for scheduled runs. A non-positive limit
	// means no limit.
	ListPending(ctx context.Context, limit int) ([]string, error)
	Stats(ctx context.Context) (*Stats, error)
}
