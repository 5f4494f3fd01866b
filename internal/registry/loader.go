package registry

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/dea-madrid/address-validation/internal/normalize"
)

// PostgresSource loads the authoritative dataset from the callejero
// tables. Ingestion of those tables is an external concern; this
// source only reads them.
type PostgresSource struct {
	db *sql.DB
}

// NewPostgresSource creates a source over an open database handle.
func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// Fetch bulk-loads streets, street-district crossings and address
// points. Street names are normalized at load time so queries never
// normalize registry-side strings.
func (s *PostgresSource) Fetch(ctx context.Context) (*Dataset, error) {
	ds := &Dataset{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT street_id, street_class, street_name,
		       COALESCE(starts_at, ''), COALESCE(ends_at, '')
		FROM callejero_street
	`)
	if err != nil {
		return nil, eris.Wrap(err, "load streets")
	}
	defer rows.Close()

	for rows.Next() {
		var st StreetRecord
		if err := rows.Scan(&st.ID, &st.Class, &st.Name, &st.StartsAt, &st.EndsAt); err != nil {
			return nil, eris.Wrap(err, "scan street")
		}
		st.Class = normalize.Normalize(st.Class)
		st.NameNormalized = normalize.Normalize(st.Name)
		ds.Streets = append(ds.Streets, st)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate streets")
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT street_id, district_code, district_name,
		       COALESCE(odd_min, 0), COALESCE(odd_max, 0),
		       COALESCE(even_min, 0), COALESCE(even_max, 0)
		FROM callejero_street_district
	`)
	if err != nil {
		return nil, eris.Wrap(err, "load street districts")
	}
	defer rows.Close()

	for rows.Next() {
		var sd StreetDistrictRecord
		if err := rows.Scan(&sd.StreetID, &sd.DistrictCode, &sd.DistrictName,
			&sd.OddMin, &sd.OddMax, &sd.EvenMin, &sd.EvenMax); err != nil {
			return nil, eris.Wrap(err, "scan street district")
		}
		ds.StreetDistricts = append(ds.StreetDistricts, sd)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate street districts")
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT a.address_id, a.street_id, s.street_class, s.street_name,
		       a.house_number, COALESCE(a.postal_code, ''),
		       COALESCE(a.district_code, ''), COALESCE(a.district_name, ''),
		       COALESCE(a.barrio_code, ''),
		       a.latitude, a.longitude, a.utm_x, a.utm_y
		FROM callejero_address a
		JOIN callejero_street s ON s.street_id = a.street_id
	`)
	if err != nil {
		return nil, eris.Wrap(err, "load addresses")
	}
	defer rows.Close()

	for rows.Next() {
		var a AddressRecord
		var lat, lon, utmX, utmY sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.StreetID, &a.StreetClass, &a.StreetName,
			&a.Number, &a.PostalCode, &a.DistrictCode, &a.DistrictName,
			&a.BarrioCode, &lat, &lon, &utmX, &utmY); err != nil {
			return nil, eris.Wrap(err, "scan address")
		}
		a.StreetClass = normalize.Normalize(a.StreetClass)
		a.StreetNameNormalized = normalize.Normalize(a.StreetName)
		if lat.Valid {
			a.Latitude = &lat.Float64
		}
		if lon.Valid {
			a.Longitude = &lon.Float64
		}
		if utmX.Valid {
			a.UTMX = &utmX.Float64
		}
		if utmY.Valid {
			a.UTMY = &utmY.Float64
		}
		ds.Addresses = append(ds.Addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "iterate addresses")
	}

	return ds, nil
}
