package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/dea-madrid/address-validation/internal/engine"
)

// InstallationSource reads the address fields of defibrillator
// installation records, the inputs of batch validation runs.
type InstallationSource struct {
	db *sql.DB
}

// NewInstallationSource creates a source over an open database handle.
func NewInstallationSource(db *sql.DB) *InstallationSource {
	return &InstallationSource{db: db}
}

// Fetch loads the submitted address of one installation record.
func (s *InstallationSource) Fetch(ctx context.Context, recordID string) (engine.Query, error) {
	var q engine.Query
	var number, postal, district sql.NullString
	var lat, lon sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT street_type, street_name, street_number,
		       postal_code, district, latitude, longitude
		FROM dea_installation
		WHERE installation_id = $1
	`, recordID).Scan(&q.StreetType, &q.StreetName, &number,
		&postal, &district, &lat, &lon)
	if err == sql.ErrNoRows {
		return engine.Query{}, eris.Wrapf(ErrNotFound, "installation %s", recordID)
	}
	if err != nil {
		return engine.Query{}, eris.Wrap(err, "load installation record")
	}

	q.StreetNumber = number.String
	q.PostalCode = postal.String
	q.District = district.String
	if lat.Valid && lon.Valid {
		q.Latitude = &lat.Float64
		q.Longitude = &lon.Float64
	}
	return q, nil
}

// ListIDs returns installation record ids for backfill runs, oldest
// first. A non-positive limit means no limit.
func (s *InstallationSource) ListIDs(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT installation_id FROM dea_installation ORDER BY created_at`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, query+` LIMIT $1`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, eris.Wrap(err, "list installation ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "scan installation id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
