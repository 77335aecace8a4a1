package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openlease/harrier/internal/domain"
	"github.com/pgvector/pgvector-go"
)

// SavePropertyEmbedding persists a generated embedding. PostgreSQL
// stores it in a pgvector column, SQLite as JSON text.
func (r *SQLRepository) SavePropertyEmbedding(ctx context.Context, propertyID string, vector []float64, createdAt time.Time) error {
	if propertyID == "" {
		return fmt.Errorf("property id is required")
	}

	query := `
		INSERT INTO property_embeddings (property_id, vector, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(property_id) DO UPDATE SET
			vector = excluded.vector,
			created_at = excluded.created_at
	`

	var stored any
	if r.driver == "postgres" {
		stored = pgvector.NewVector(toFloat32(vector))
	} else {
		raw, err := json.Marshal(vector)
		if err != nil {
			return err
		}
		stored = string(raw)
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query), propertyID, stored, createdAt)
	return err
}

// GetPropertyEmbedding fetches a persisted embedding, nil if none.
func (r *SQLRepository) GetPropertyEmbedding(ctx context.Context, propertyID string) (*domain.EmbeddingEntry, error) {
	query := `
		SELECT vector, created_at
		FROM property_embeddings
		WHERE property_id = ?
	`

	entry := &domain.EmbeddingEntry{PropertyID: propertyID}

	if r.driver == "postgres" {
		var vec pgvector.Vector
		err := r.db.QueryRowContext(ctx, r.rebind(query), propertyID).Scan(&vec, &entry.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		entry.Vector = toFloat64(vec.Slice())
		return entry, nil
	}

	var raw string
	err := r.db.QueryRowContext(ctx, r.rebind(query), propertyID).Scan(&raw, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(raw), &entry.Vector); err != nil {
		return nil, fmt.Errorf("failed to parse stored embedding: %w", err)
	}
	return entry, nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
