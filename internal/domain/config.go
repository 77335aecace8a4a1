package domain

import "time"

// Config holds the complete Harrier configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines feature availability
	Tier Tier `json:"tier"`

	// MatchingMode selects the default scoring regime
	// - "government": strict three-factor weighting, compliance gating
	// - "general": five-factor weighting for commercial searches
	MatchingMode MatchingMode `json:"matchingMode"`

	// Component configurations
	Catalog  CatalogConfig  `json:"catalog"`
	Cache    CacheConfig    `json:"cache"`
	EventBus EventBusConfig `json:"eventBus"`

	// Embedding engine settings
	Embedding EmbeddingConfig `json:"embedding"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// MatchingMode determines the default relevance weighting regime.
type MatchingMode string

const (
	// ModeGovernment uses the strict 50/35/15 weighting and is meant
	// for federal and state leasing searches.
	ModeGovernment MatchingMode = "government"

	// ModeGeneral uses the five-factor weighting for general
	// commercial searches.
	ModeGeneral MatchingMode = "general"
)

// DefaultWeights returns the preset weight vector for the mode.
func (m MatchingMode) DefaultWeights() ScoringWeights {
	if m == ModeGeneral {
		return GeneralWeights()
	}
	return GovernmentWeights()
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// EmbeddingConfig holds embedding engine settings.
type EmbeddingConfig struct {
	// Enabled toggles similarity re-ranking. Matching still works with
	// it off; ordering falls back to the traditional relevance score.
	Enabled bool `json:"enabled"`

	// Dim is the output embedding size.
	Dim int `json:"dim"`

	// CacheTTL is the freshness window for cached vectors.
	CacheTTL time.Duration `json:"cacheTtl"`

	// MaxParallel bounds concurrent vector generation for a batch.
	MaxParallel int `json:"maxParallel"`

	// Seed makes model initialization deterministic across processes.
	Seed int64 `json:"seed"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled"`
	ServiceName  string `json:"serviceName"`
	ExporterType string `json:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint"`
}

// Tier represents the product tier.
type Tier string

const (
	// TierCommunity is the free tier with SQLite + channels
	TierCommunity Tier = "community"

	// TierPro is the paid tier with PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
// Government mode is the default since that is the primary use case.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier:         TierCommunity,
		MatchingMode: ModeGovernment,
		Catalog: CatalogConfig{
			Driver:     "sqlite",
			SQLitePath: "./harrier.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     24 * time.Hour,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Embedding: EmbeddingConfig{
			Enabled:     true,
			Dim:         32,
			CacheTTL:    24 * time.Hour,
			MaxParallel: 16,
			Seed:        1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "harrier",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Catalog = CatalogConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "harrier",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Hour,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
