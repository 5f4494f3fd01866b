package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/rotisserie/eris"

	"github.com/dea-madrid/address-validation/internal/engine"
	"github.com/dea-madrid/address-validation/internal/match"
)

// Postgres persists validation state in the validation_record table.
// Retry arithmetic happens inside the UPDATE clause, so concurrent
// upserts on the same id cannot lose increments.
type Postgres struct {
	db *sql.DB
}

// NewPostgres creates a store over an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Upsert applies one outcome; see the Store contract.
func (p *Postgres) Upsert(ctx context.Context, o Outcome) error {
	var resultJSON []byte
	var status, matchType sql.NullString
	var confidence sql.NullFloat64

	if o.Result != nil {
		b, err := json.Marshal(o.Result)
		if err != nil {
			return eris.Wrap(ErrPersistFailure, err.Error())
		}
		resultJSON = b
		status = sql.NullString{String: string(o.Result.OverallStatus), Valid: true}
		matchType = sql.NullString{String: string(o.Result.MatchType), Valid: true}
		confidence = sql.NullFloat64{Float64: o.Result.Confidence, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO validation_record (
			record_id, result, overall_status, confidence, match_type,
			duration_ms, strategies, needs_reprocessing, last_error,
			retry_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8 <> '', NULLIF($8, ''),
			CASE WHEN $8 = '' THEN 0 ELSE 1 END, now(), now()
		)
		ON CONFLICT (record_id) DO UPDATE SET
			result             = EXCLUDED.result,
			overall_status     = EXCLUDED.overall_status,
			confidence         = EXCLUDED.confidence,
			match_type         = EXCLUDED.match_type,
			duration_ms        = EXCLUDED.duration_ms,
			strategies         = EXCLUDED.strategies,
			needs_reprocessing = EXCLUDED.needs_reprocessing,
			last_error         = EXCLUDED.last_error,
			retry_count        = CASE WHEN $8 = '' THEN 0
			                     ELSE validation_record.retry_count + 1 END,
			updated_at         = now()
	`, o.RecordID, resultJSON, status, confidence, matchType,
		o.DurationMs, pq.Array(o.StrategiesUsed), o.Err)
	if err != nil {
		return eris.Wrap(ErrPersistFailure, err.Error())
	}
	return nil
}

// Get loads the stored state of one record.
func (p *Postgres) Get(ctx context.Context, recordID string) (*RecordState, error) {
	st := &RecordState{RecordID: recordID}
	var resultJSON []byte
	var status, matchType, lastError sql.NullString
	var confidence sql.NullFloat64
	var strategies pq.StringArray

	err := p.db.QueryRowContext(ctx, `
		SELECT result, overall_status, confidence, match_type,
		       duration_ms, strategies, needs_reprocessing, last_error,
		       retry_count, created_at, updated_at
		FROM validation_record
		WHERE record_id = $1
	`, recordID).Scan(&resultJSON, &status, &confidence, &matchType,
		&st.DurationMs, &strategies, &st.NeedsReprocessing, &lastError,
		&st.RetryCount, &st.CreatedAt, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "load validation record")
	}

	if len(resultJSON) > 0 {
		var r engine.Result
		if err := json.Unmarshal(resultJSON, &r); err != nil {
			return nil, eris.Wrap(err, "decode stored result")
		}
		st.Result = &r
	}
	st.OverallStatus = engine.Status(status.String)
	st.MatchType = match.MatchType(matchType.String)
	st.Confidence = confidence.Float64
	st.StrategiesUsed = strategies
	st.LastError = lastError.String
	return st, nil
}

// ListPending returns ids flagged for reprocessing, oldest first. A
// non-positive limit means no limit.
func (p *Postgres) ListPending(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT record_id
		FROM validation_record
		WHERE needs_reprocessing
		ORDER BY updated_at`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = p.db.QueryContext(ctx, query+` LIMIT $1`, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, eris.Wrap(err, "list pending records")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "scan pending record id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats aggregates the stored outcomes.
func (p *Postgres) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{ByStatus: make(map[string]int)}

	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE needs_reprocessing),
		       COALESCE(AVG(confidence), 0)
		FROM validation_record
	`).Scan(&s.Total, &s.NeedsReprocessing, &s.AverageConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate validation stats")
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT overall_status, COUNT(*)
		FROM validation_record
		WHERE overall_status IS NOT NULL
		GROUP BY overall_status
	`)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate status breakdown")
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, eris.Wrap(err, "scan status breakdown")
		}
		s.ByStatus[status] = count
	}
	return s, rows.Err()
}
