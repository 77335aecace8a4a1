package repository

// Schema definitions for the Harrier catalog store.
// Compatible with both SQLite and PostgreSQL unless noted.

const schemaProperties = `
CREATE TABLE IF NOT EXISTS properties (
    id TEXT PRIMARY KEY,
    address TEXT NOT NULL,
    city TEXT NOT NULL,
    state TEXT NOT NULL,
    zip_code TEXT NOT NULL,
    latitude REAL,
    longitude REAL,
    geohash TEXT,
    building_types TEXT NOT NULL,
    tenancy TEXT,
    sqft_min INTEGER NOT NULL DEFAULT 0,
    sqft_max INTEGER NOT NULL DEFAULT 0,
    suite_count INTEGER NOT NULL DEFAULT 0,
    rate_text TEXT,
    rate_per_sqft REAL NOT NULL DEFAULT 0,
    description TEXT,
    amenities TEXT,
    compliance TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_properties_state ON properties(state);
CREATE INDEX IF NOT EXISTS idx_properties_state_city ON properties(state, city);
CREATE INDEX IF NOT EXISTS idx_properties_zip ON properties(zip_code);
CREATE INDEX IF NOT EXISTS idx_properties_geohash ON properties(geohash);
CREATE INDEX IF NOT EXISTS idx_properties_rate ON properties(rate_per_sqft);
`

// schemaEmbeddingsSQLite stores vectors as JSON text. The SQLite store
// only warm-starts the in-process cache, so text is enough.
const schemaEmbeddingsSQLite = `
CREATE TABLE IF NOT EXISTS property_embeddings (
    property_id TEXT PRIMARY KEY,
    vector TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

// schemaEmbeddingsPostgres stores vectors in a pgvector column so the
// Pro tier can run ANN queries against the catalog directly.
const schemaEmbeddingsPostgres = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS property_embeddings (
    property_id TEXT PRIMARY KEY,
    vector vector NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

const schemaOutcomes = `
CREATE TABLE IF NOT EXISTS matching_outcomes (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    matches TEXT NOT NULL,
    rejected TEXT,
    summary TEXT NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_timestamp ON matching_outcomes(timestamp);
`

// AllSchemas returns all schema statements for a driver in order.
func AllSchemas(driver string) []string {
	schemas := []string{schemaProperties}
	if driver == "postgres" {
		schemas = append(schemas, schemaEmbeddingsPostgres)
	} else {
		schemas = append(schemas, schemaEmbeddingsSQLite)
	}
	return append(schemas, schemaOutcomes)
}
