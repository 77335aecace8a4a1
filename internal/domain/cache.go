package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations, used primarily
// for property embedding vectors. Supports two-phase caching: local
// LRU (Community) + Redis (Pro). Entries are replaced wholesale on
// refresh, never mutated in place.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, key string) error

	// GetEmbedding retrieves a cached embedding for a property.
	// Returns nil, nil when absent or expired.
	GetEmbedding(ctx context.Context, propertyID string) (*EmbeddingEntry, error)

	// SetEmbedding caches an embedding for a property.
	SetEmbedding(ctx context.Context, propertyID string, entry *EmbeddingEntry, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// EmbeddingEntry is a cached embedding vector with its generation time.
type EmbeddingEntry struct {
	PropertyID string    `json:"propertyId"`
	Vector     []float64 `json:"vector"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Fresh reports whether the entry is within the TTL window.
func (e *EmbeddingEntry) Fresh(ttl time.Duration, now time.Time) bool {
	if e == nil {
		return false
	}
	return now.Sub(e.CreatedAt) < ttl
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
