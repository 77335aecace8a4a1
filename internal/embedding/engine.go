package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/openlease/harrier/internal/domain"
)

// Engine generates, caches and compares property embeddings. The model
// is constructed exactly once per process on first use; the cache is a
// concurrent key-value store keyed by property id whose entries are
// replaced wholesale on refresh.
type Engine struct {
	cfg    domain.EmbeddingConfig
	cache  domain.Cache
	store  domain.Catalog // optional, warm-starts the cache; may be nil
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
	model    *Network

	now func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStore sets a catalog used to persist and warm-start embeddings.
func WithStore(store domain.Catalog) Option {
	return func(e *Engine) { e.store = store }
}

// NewEngine creates an embedding engine. The model itself is built
// lazily on first use behind a one-time initialization barrier.
func NewEngine(cfg domain.EmbeddingConfig, cache domain.Cache, opts ...Option) *Engine {
	if cfg.Dim <= 0 {
		cfg.Dim = 32
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 16
	}

	e := &Engine{
		cfg:    cfg,
		cache:  cache,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// init constructs the model once. Initialization is idempotent and
// cheap to await, so a one-time barrier suffices for concurrent
// first-use requests.
func (e *Engine) init() error {
	e.initOnce.Do(func() {
		model, err := NewNetwork(FeatureDim, e.cfg.Dim, 0.2, e.cfg.Seed)
		if err != nil {
			e.initErr = fmt.Errorf("failed to initialize embedding model: %w", err)
			return
		}
		e.model = model
	})
	return e.initErr
}

// Embed returns the embedding for a property, regenerating stale or
// missing cache entries.
func (e *Engine) Embed(ctx context.Context, p *domain.Property) ([]float64, error) {
	if err := e.init(); err != nil {
		return nil, err
	}

	if entry := e.cachedEntry(ctx, p.ID); entry != nil {
		return entry.Vector, nil
	}

	vector, err := e.model.Forward(Encode(p))
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed for %s: %w", p.ID, err)
	}

	e.storeEntry(ctx, p.ID, vector)
	return vector, nil
}

// cachedEntry returns a fresh cached vector, consulting the persisted
// store on a cache miss. Nil means the vector must be regenerated.
func (e *Engine) cachedEntry(ctx context.Context, propertyID string) *domain.EmbeddingEntry {
	if propertyID == "" {
		return nil
	}

	if e.cache != nil {
		entry, err := e.cache.GetEmbedding(ctx, propertyID)
		if err != nil {
			e.logger.Warn("embedding cache read failed", "property_id", propertyID, "error", err)
		} else if entry.Fresh(e.cfg.CacheTTL, e.now()) && len(entry.Vector) == e.cfg.Dim {
			return entry
		}
	}

	if e.store != nil {
		entry, err := e.store.GetPropertyEmbedding(ctx, propertyID)
		if err == nil && entry.Fresh(e.cfg.CacheTTL, e.now()) && len(entry.Vector) == e.cfg.Dim {
			if e.cache != nil {
				_ = e.cache.SetEmbedding(ctx, propertyID, entry, e.cfg.CacheTTL)
			}
			return entry
		}
	}

	return nil
}

func (e *Engine) storeEntry(ctx context.Context, propertyID string, vector []float64) {
	if propertyID == "" {
		return
	}
	createdAt := e.now()

	if e.cache != nil {
		entry := &domain.EmbeddingEntry{PropertyID: propertyID, Vector: vector, CreatedAt: createdAt}
		if err := e.cache.SetEmbedding(ctx, propertyID, entry, e.cfg.CacheTTL); err != nil {
			e.logger.Warn("embedding cache write failed", "property_id", propertyID, "error", err)
		}
	}
	if e.store != nil {
		if err := e.store.SavePropertyEmbedding(ctx, propertyID, vector, createdAt); err != nil {
			e.logger.Warn("embedding persistence failed", "property_id", propertyID, "error", err)
		}
	}
}

// EmbedBatch generates embeddings for a batch of properties in
// parallel. Each property's vector is independent, so concurrency is
// bounded only by a semaphore.
func (e *Engine) EmbedBatch(ctx context.Context, properties []*domain.Property) (map[string][]float64, error) {
	if err := e.init(); err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(properties))
	errs := make([]error, len(properties))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.cfg.MaxParallel)

	for i, p := range properties {
		wg.Add(1)
		go func(idx int, prop *domain.Property) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			vectors[idx], errs[idx] = e.Embed(ctx, prop)
		}(i, p)
	}

	wg.Wait()

	out := make(map[string][]float64, len(properties))
	for i, p := range properties {
		if errs[i] != nil {
			return nil, errs[i]
		}
		out[p.ID] = vectors[i]
	}
	return out, nil
}

// Similarity returns the cosine similarity of two embeddings.
func (e *Engine) Similarity(a, b []float64) float64 {
	return Cosine(a, b)
}

// Rerank orders candidates by embedding similarity to the criteria's
// ideal property, most similar first. It implements matcher.Reranker.
// Any failure is returned to the caller, who falls back to
// traditional-score order; re-ranking is an enhancement, never a
// required step.
func (e *Engine) Rerank(ctx context.Context, criteria *domain.Criteria, candidates []*domain.Property) (order []string, similarities map[string]float64, err error) {
	// A panic in the numeric path must degrade, not propagate.
	defer func() {
		if r := recover(); r != nil {
			order, similarities = nil, nil
			err = fmt.Errorf("embedding rerank panicked: %v", r)
		}
	}()

	if !e.cfg.Enabled {
		return nil, nil, fmt.Errorf("embedding engine disabled")
	}
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	target, err := e.Embed(ctx, IdealProperty(criteria))
	if err != nil {
		return nil, nil, err
	}

	vectors, err := e.EmbedBatch(ctx, candidates)
	if err != nil {
		return nil, nil, err
	}

	similarities = make(map[string]float64, len(candidates))
	order = make([]string, len(candidates))
	for i, p := range candidates {
		similarities[p.ID] = Cosine(target, vectors[p.ID])
		order[i] = p.ID
	}

	// Stable: candidates arrive in traditional-score order, so equal
	// similarities keep that order.
	sort.SliceStable(order, func(i, j int) bool {
		return similarities[order[i]] > similarities[order[j]]
	})

	return order, similarities, nil
}
