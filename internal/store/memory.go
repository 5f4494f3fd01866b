package store

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Memory is an in-memory Store used by tests and local development.
// It applies the same upsert semantics as the Postgres store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*RecordState
	clock   clockwork.Clock
}

// NewMemory creates an empty in-memory store. A nil clock means real
// time.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{records: make(map[string]*RecordState), clock: clock}
}

// Upsert applies one outcome. See the Store contract for the retry
// semantics.
func (m *Memory) Upsert(_ context.Context, o Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	st, ok := m.records[o.RecordID]
	if !ok {
		st = &RecordState{RecordID: o.RecordID, CreatedAt: now}
		m.records[o.RecordID] = st
	}

	st.Result = o.Result
	st.DurationMs = o.DurationMs
	st.StrategiesUsed = o.StrategiesUsed
	st.UpdatedAt = now

	// Status fields mirror the outcome exactly; a failed attempt
	// clears them the same way the Postgres upsert overwrites the
	// columns with NULLs.
	if o.Result != nil {
		st.OverallStatus = o.Result.OverallStatus
		st.Confidence = o.Result.Confidence
		st.MatchType = o.Result.MatchType
	} else {
		st.OverallStatus = ""
		st.Confidence = 0
		st.MatchType = ""
	}

	if o.Err != "" {
		st.LastError = o.Err
		st.NeedsReprocessing = true
		st.RetryCount++
	} else {
		st.LastError = ""
		st.NeedsReprocessing = false
		st.RetryCount = 0
	}
	return nil
}

// Get returns a copy of the stored state.
func (m *Memory) Get(_ context.Context, recordID string) (*RecordState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	return &cp, nil
}

// ListPending returns ids flagged for reprocessing, oldest first.
func (m *Memory) ListPending(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*RecordState
	for _, st := range m.records {
		if st.NeedsReprocessing {
			pending = append(pending, st)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].UpdatedAt.Before(pending[j].UpdatedAt)
	})

	ids := make([]string, 0, len(pending))
	for _, st := range pending {
		if limit > 0 && len(ids) >= limit {
			break
		}
		ids = append(ids, st.RecordID)
	}
	return ids, nil
}

// Stats aggregates the stored outcomes.
func (m *Memory) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := &Stats{ByStatus: make(map[string]int)}
	var confidenceSum float64
	for _, st := range m.records {
		s.Total++
		if st.OverallStatus != "" {
			s.ByStatus[string(st.OverallStatus)]++
		}
		if st.NeedsReprocessing {
			s.NeedsReprocessing++
		}
		confidenceSum += st.Confidence
	}
	if s.Total > 0 {
		s.AverageConfidence = confidenceSum / float64(s.Total)
	}
	return s, nil
}
