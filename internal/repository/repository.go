// Package repository provides catalog persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/openlease/harrier/internal/domain"
)

// geohashPrecision controls how coarse the stored cell is. Precision 6
// cells are roughly 1.2km x 0.6km, fine enough for radius pre-filtering
// without fragmenting the index.
const geohashPrecision = 6

// SQLRepository implements domain.Catalog using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new catalog store based on configuration.
func New(cfg domain.CatalogConfig) (domain.Catalog, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite", "":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}
	if repo.driver == "" {
		repo.driver = "sqlite"
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas(r.driver) {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveProperty inserts or replaces a listing. Geocoded listings get a
// geohash cell so radius searches can pre-filter at the store.
func (r *SQLRepository) SaveProperty(ctx context.Context, p *domain.Property) error {
	if p == nil || p.ID == "" {
		return fmt.Errorf("property id is required")
	}

	buildingTypes, _ := json.Marshal(p.BuildingTypes)
	amenities, _ := json.Marshal(p.Amenities)
	compliance, _ := json.Marshal(p.Compliance)

	var cell sql.NullString
	if p.HasCoordinates() {
		cell = sql.NullString{
			String: geohash.EncodeWithPrecision(*p.Latitude, *p.Longitude, geohashPrecision),
			Valid:  true,
		}
	}

	now := time.Now().UTC()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO properties (
			id, address, city, state, zip_code, latitude, longitude, geohash,
			building_types, tenancy, sqft_min, sqft_max, suite_count,
			rate_text, rate_per_sqft, description, amenities, compliance,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			city = excluded.city,
			state = excluded.state,
			zip_code = excluded.zip_code,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			geohash = excluded.geohash,
			building_types = excluded.building_types,
			tenancy = excluded.tenancy,
			sqft_min = excluded.sqft_min,
			sqft_max = excluded.sqft_max,
			suite_count = excluded.suite_count,
			rate_text = excluded.rate_text,
			rate_per_sqft = excluded.rate_per_sqft,
			description = excluded.description,
			amenities = excluded.amenities,
			compliance = excluded.compliance,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, p.Address, p.City, p.State, p.ZipCode,
		nullFloat(p.Latitude), nullFloat(p.Longitude), cell,
		string(buildingTypes), p.Tenancy,
		p.SquareFeetMin, p.SquareFeetMax, p.SuiteCount,
		p.RateText, p.RatePerSqft, p.Description,
		string(amenities), string(compliance),
		createdAt, now,
	)
	return err
}

const propertyColumns = `id, address, city, state, zip_code, latitude, longitude,
	   building_types, tenancy, sqft_min, sqft_max, suite_count,
	   rate_text, rate_per_sqft, description, amenities, compliance,
	   created_at, updated_at`

// GetProperty fetches one listing by id.
func (r *SQLRepository) GetProperty(ctx context.Context, id string) (*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListProperties returns listings matching the coarse query. The strict
// filtering runs in memory; this only trims the candidate set.
func (r *SQLRepository) ListProperties(ctx context.Context, q domain.CatalogQuery) ([]*domain.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties`

	var conds []string
	var args []any

	if q.State != "" {
		conds = append(conds, "LOWER(state) = LOWER(?)")
		args = append(args, q.State)
	}
	if q.City != "" {
		conds = append(conds, "LOWER(city) = LOWER(?)")
		args = append(args, q.City)
	}
	if len(q.ZipCodes) > 0 {
		placeholders := make([]string, len(q.ZipCodes))
		for i, zip := range q.ZipCodes {
			placeholders[i] = "?"
			args = append(args, zip)
		}
		conds = append(conds, "zip_code IN ("+strings.Join(placeholders, ", ")+")")
	}
	if q.MinSquareFeet > 0 {
		// Range overlap: the listing's upper bound must reach the
		// requested lower bound. Open-ended listings (max = 0) pass.
		conds = append(conds, "(sqft_max = 0 OR sqft_max >= ?)")
		args = append(args, q.MinSquareFeet)
	}
	if q.MaxSquareFeet > 0 {
		conds = append(conds, "sqft_min <= ?")
		args = append(args, q.MaxSquareFeet)
	}
	if q.MaxRatePerSqft > 0 {
		conds = append(conds, "(rate_per_sqft = 0 OR rate_per_sqft <= ?)")
		args = append(args, q.MaxRatePerSqft)
	}
	if len(q.GeohashPrefixes) > 0 {
		likes := make([]string, 0, len(q.GeohashPrefixes)+1)
		for _, prefix := range q.GeohashPrefixes {
			likes = append(likes, "geohash LIKE ?")
			args = append(args, prefix+"%")
		}
		// Listings without coordinates are kept; the radius check in
		// memory cannot reject them either.
		likes = append(likes, "geohash IS NULL")
		conds = append(conds, "("+strings.Join(likes, " OR ")+")")
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY updated_at DESC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var properties []*domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}

	return properties, rows.Err()
}

// DeleteProperty removes a listing and its persisted embedding.
func (r *SQLRepository) DeleteProperty(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.rebind(`DELETE FROM properties WHERE id = ?`), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrPropertyNotFound
	}

	_, err = r.db.ExecContext(ctx, r.rebind(`DELETE FROM property_embeddings WHERE property_id = ?`), id)
	return err
}

// SaveOutcome records a matching run for audit.
func (r *SQLRepository) SaveOutcome(ctx context.Context, outcome *domain.MatchingOutcome) error {
	if outcome == nil || outcome.ID == "" {
		return fmt.Errorf("outcome id is required")
	}

	matches, _ := json.Marshal(outcome.Matches)
	rejected, _ := json.Marshal(outcome.Rejected)
	summary, _ := json.Marshal(outcome.Summary)
	metadata, _ := json.Marshal(outcome.Metadata)

	query := `
		INSERT INTO matching_outcomes (id, timestamp, matches, rejected, summary, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		outcome.ID, outcome.Timestamp,
		string(matches), string(rejected), string(summary), string(metadata),
	)
	return err
}

// GetOutcome fetches one recorded run by id.
func (r *SQLRepository) GetOutcome(ctx context.Context, id string) (*domain.MatchingOutcome, error) {
	query := `
		SELECT id, timestamp, matches, rejected, summary, metadata
		FROM matching_outcomes
		WHERE id = ?
	`

	var outcome domain.MatchingOutcome
	var matches, rejected, summary, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&outcome.ID, &outcome.Timestamp,
		&matches, &rejected, &summary, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPropertyNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(matches), &outcome.Matches)
	json.Unmarshal([]byte(rejected), &outcome.Rejected)
	json.Unmarshal([]byte(summary), &outcome.Summary)
	json.Unmarshal([]byte(metadata), &outcome.Metadata)

	return &outcome, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// PrefixesForRadius returns the geohash cells covering a radius search
// centered on the given coordinates: the center cell plus its eight
// neighbors, at a precision coarse enough that the ring covers the
// radius. Used to populate CatalogQuery.GeohashPrefixes.
func PrefixesForRadius(lat, lng, radiusKm float64) []string {
	var precision uint
	switch {
	case radiusKm > 300:
		return nil // a cell ring cannot cover this; scan the whole set
	case radiusKm > 70:
		precision = 2
	case radiusKm > 10:
		precision = 3
	case radiusKm > 1.5:
		precision = 4
	default:
		precision = 5
	}

	center := geohash.EncodeWithPrecision(lat, lng, precision)
	prefixes := append([]string{center}, geohash.Neighbors(center)...)
	return prefixes
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProperty(row rowScanner) (*domain.Property, error) {
	var p domain.Property
	var lat, lng sql.NullFloat64
	var buildingTypes, compliance string
	var tenancy, rateText, description, amenities sql.NullString

	err := row.Scan(
		&p.ID, &p.Address, &p.City, &p.State, &p.ZipCode,
		&lat, &lng,
		&buildingTypes, &tenancy,
		&p.SquareFeetMin, &p.SquareFeetMax, &p.SuiteCount,
		&rateText, &p.RatePerSqft, &description,
		&amenities, &compliance,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid {
		p.Latitude = &lat.Float64
	}
	if lng.Valid {
		p.Longitude = &lng.Float64
	}
	p.Tenancy = tenancy.String
	p.RateText = rateText.String
	p.Description = description.String

	json.Unmarshal([]byte(buildingTypes), &p.BuildingTypes)
	if amenities.String != "" {
		json.Unmarshal([]byte(amenities.String), &p.Amenities)
	}
	json.Unmarshal([]byte(compliance), &p.Compliance)

	return &p, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
