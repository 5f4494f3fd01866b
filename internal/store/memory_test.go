package store

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dea-madrid/address-validation/internal/engine"
	"github.com/dea-madrid/address-validation/internal/match"
)

func validOutcome(recordID string) Outcome {
	return Outcome{
		RecordID: recordID,
		Result: &engine.Result{
			Suggestions: []engine.Suggestion{{
				StreetClass: "PASEO",
				StreetName:  "DE LA CHOPERA",
				Confidence:  0.94,
				MatchType:   match.TypeFuzzy,
			}},
			Confidence:    0.94,
			MatchType:     match.TypeFuzzy,
			OverallStatus: engine.StatusValid,
		},
		DurationMs:     12,
		StrategiesUsed: []string{"exact", "fuzzy"},
	}
}

func failedOutcome(recordID string) Outcome {
	return Outcome{RecordID: recordID, Err: "address registry unavailable"}
}

func TestMemoryUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	st := NewMemory(clock)

	require.NoError(t, st.Upsert(ctx, validOutcome("rec-1")))
	first, err := st.Get(ctx, "rec-1")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	require.NoError(t, st.Upsert(ctx, validOutcome("rec-1")))
	second, err := st.Get(ctx, "rec-1")
	require.NoError(t, err)

	assert.Equal(t, first.OverallStatus, second.OverallStatus)
	assert.Equal(t, first.MatchType, second.MatchType)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Result.Suggestions, second.Result.Suggestions)
	assert.Equal(t, first.RetryCount, second.RetryCount)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestMemoryRetryBookkeeping(t *testing.T) {
	ctx := context.Background()
	st := NewMemory(clockwork.NewFakeClock())

	require.NoError(t, st.Upsert(ctx, failedOutcome("rec-1")))
	require.NoError(t, st.Upsert(ctx, failedOutcome("rec-1")))

	state, err := st.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.RetryCount)
	assert.True(t, state.NeedsReprocessing)
	assert.Equal(t, "address registry unavailable", state.LastError)
	assert.Nil(t, state.Result)

	// A success after failures clears all retry state.
	require.NoError(t, st.Upsert(ctx, validOutcome("rec-1")))
	state, err = st.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, 0, state.RetryCount)
	assert.False(t, state.NeedsReprocessing)
	assert.Empty(t, state.LastError)
	assert.Equal(t, engine.StatusValid, state.OverallStatus)
}

func TestMemoryFailureClearsPreviousResult(t *testing.T) {
	ctx := context.Background()
	st := NewMemory(clockwork.NewFakeClock())

	require.NoError(t, st.Upsert(ctx, validOutcome("rec-1")))
	require.NoError(t, st.Upsert(ctx, failedOutcome("rec-1")))

	state, err := st.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Nil(t, state.Result)
	assert.Empty(t, state.OverallStatus)
	assert.Empty(t, state.MatchType)
	assert.Zero(t, state.Confidence)
	assert.Equal(t, 1, state.RetryCount)
	assert.True(t, state.NeedsReprocessing)
}

func TestMemoryGetUnknownRecord(t *testing.T) {
	st := NewMemory(nil)
	_, err := st.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryListPendingOldestFirst(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClock()
	st := NewMemory(clock)

	require.NoError(t, st.Upsert(ctx, failedOutcome("rec-b")))
	clock.Advance(time.Minute)
	require.NoError(t, st.Upsert(ctx, failedOutcome("rec-a")))
	clock.Advance(time.Minute)
	require.NoError(t, st.Upsert(ctx, validOutcome("rec-c")))

	ids, err := st.ListPending(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec-b", "rec-a"}, ids)

	ids, err = st.ListPending(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec-b"}, ids)
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	st := NewMemory(clockwork.NewFakeClock())

	require.NoError(t, st.Upsert(ctx, validOutcome("rec-1")))
	require.NoError(t, st.Upsert(ctx, validOutcome("rec-2")))
	require.NoError(t, st.Upsert(ctx, failedOutcome("rec-3")))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus["valid"])
	assert.Equal(t, 1, stats.NeedsReprocessing)
	assert.InDelta(t, (0.94+0.94)/3, stats.AverageConfidence, 1e-9)
}
