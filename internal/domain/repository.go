package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCatalogUnavailable marks a catalog-provider failure. The engine
// never retries internally; the caller decides.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// ErrPropertyNotFound is returned when a property id has no row.
var ErrPropertyNotFound = errors.New("property not found")

// CatalogQuery is the coarse pre-filter applied at the store before the
// engine's stricter in-memory filtering runs. Zero values mean no
// constraint on that dimension.
type CatalogQuery struct {
	State    string
	City     string
	ZipCodes []string

	MinSquareFeet int
	MaxSquareFeet int

	MaxRatePerSqft float64

	// Geohash prefix pre-filter for radius searches. Empty means no
	// geographic constraint at the store level.
	GeohashPrefixes []string

	Limit int
}

// QueryFromCriteria derives the coarse store query for a criteria set.
func QueryFromCriteria(c *Criteria) CatalogQuery {
	q := CatalogQuery{}
	if c == nil {
		return q
	}
	if c.Location != nil {
		q.State = c.Location.State
		if c.Location.Strict {
			q.City = c.Location.City
		}
		q.ZipCodes = c.Location.ZipCodes
	}
	if c.MinSquareFeet != nil {
		q.MinSquareFeet = *c.MinSquareFeet
	}
	if c.MaxSquareFeet != nil {
		q.MaxSquareFeet = *c.MaxSquareFeet
	}
	if c.MaxRatePerSqft != nil {
		q.MaxRatePerSqft = *c.MaxRatePerSqft
	}
	return q
}

// Catalog defines the interface for the property store.
type Catalog interface {
	// SaveProperty inserts or replaces a listing.
	SaveProperty(ctx context.Context, p *Property) error

	// GetProperty fetches one listing by id.
	GetProperty(ctx context.Context, id string) (*Property, error)

	// ListProperties returns listings matching the coarse query.
	ListProperties(ctx context.Context, q CatalogQuery) ([]*Property, error)

	// DeleteProperty removes a listing.
	DeleteProperty(ctx context.Context, id string) error

	// SavePropertyEmbedding persists a generated embedding so the
	// cache can be warm-started across restarts. Stores that cannot
	// hold vectors may implement this as a no-op.
	SavePropertyEmbedding(ctx context.Context, propertyID string, vector []float64, createdAt time.Time) error

	// GetPropertyEmbedding fetches a persisted embedding, nil if none.
	GetPropertyEmbedding(ctx context.Context, propertyID string) (*EmbeddingEntry, error)

	// SaveOutcome records a matching run for audit.
	SaveOutcome(ctx context.Context, outcome *MatchingOutcome) error

	// GetOutcome fetches one recorded run by id.
	GetOutcome(ctx context.Context, id string) (*MatchingOutcome, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CatalogConfig holds configuration for catalog store initialization.
type CatalogConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
