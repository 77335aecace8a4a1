package embedding

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openlease/harrier/internal/domain"
)

func fptr(v float64) *float64 { return &v }

func sample(id string) *domain.Property {
	return &domain.Property{
		ID:            id,
		Address:       "1234 Commerce Pkwy",
		City:          "St. Cloud",
		State:         "FL",
		ZipCode:       "34769",
		Latitude:      fptr(28.2489),
		Longitude:     fptr(-81.2812),
		BuildingTypes: []string{"Office"},
		SquareFeetMin: 1200,
		SquareFeetMax: 6000,
		SuiteCount:    2,
		RatePerSqft:   21.50,
		Description:   "Class A office with parking and fiber",
		Amenities:     []string{"elevator"},
	}
}

// memCache is a minimal in-process cache for exercising engine caching.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*domain.EmbeddingEntry
	sets    int
	gets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*domain.EmbeddingEntry)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) { return nil, nil }
func (c *memCache) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	return nil
}
func (c *memCache) Delete(ctx context.Context, key string) error { return nil }
func (c *memCache) Ping(ctx context.Context) error               { return nil }
func (c *memCache) Close() error                                 { return nil }

func (c *memCache) GetEmbedding(ctx context.Context, propertyID string) (*domain.EmbeddingEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.entries[propertyID], nil
}

func (c *memCache) SetEmbedding(ctx context.Context, propertyID string, entry *domain.EmbeddingEntry, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[propertyID] = entry
	return nil
}

func testConfig() domain.EmbeddingConfig {
	return domain.EmbeddingConfig{
		Enabled:     true,
		Dim:         32,
		CacheTTL:    24 * time.Hour,
		MaxParallel: 4,
		Seed:        1,
	}
}

func TestEncode(t *testing.T) {
	t.Run("FixedDimension", func(t *testing.T) {
		v := Encode(sample("prop-1"))
		if len(v) != FeatureDim {
			t.Fatalf("expected %d features, got %d", FeatureDim, len(v))
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := Encode(sample("prop-1"))
		b := Encode(sample("prop-1"))
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("encoding differs at index %d: %v vs %v", i, a[i], b[i])
			}
		}
	})

	t.Run("StateSensitive", func(t *testing.T) {
		a := Encode(sample("prop-1"))
		other := sample("prop-1")
		other.State = "TX"
		b := Encode(other)
		if a[0] == b[0] {
			t.Error("different states should encode differently")
		}
	})

	t.Run("HandlesEmptyProperty", func(t *testing.T) {
		v := Encode(&domain.Property{ID: "bare"})
		if len(v) != FeatureDim {
			t.Fatalf("expected %d features, got %d", FeatureDim, len(v))
		}
	})
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"Identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"Opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"Orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"ZeroVector", []float64{0, 0}, []float64{1, 1}, 0},
		{"LengthMismatch", []float64{1, 2}, []float64{1, 2, 3}, 0},
		{"Empty", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNetworkForward(t *testing.T) {
	n, err := NewNetwork(FeatureDim, 32, 0.2, 1)
	if err != nil {
		t.Fatalf("NewNetwork failed: %v", err)
	}

	input := Encode(sample("prop-1"))

	t.Run("OutputDimension", func(t *testing.T) {
		out, err := n.Forward(input)
		if err != nil {
			t.Fatalf("forward failed: %v", err)
		}
		if len(out) != 32 {
			t.Errorf("expected 32 outputs, got %d", len(out))
		}
		for i, v := range out {
			if v < -1 || v > 1 {
				t.Errorf("tanh output %d out of range: %v", i, v)
			}
		}
	})

	t.Run("DeterministicInference", func(t *testing.T) {
		a, _ := n.Forward(input)
		b, _ := n.Forward(input)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("inference differs at index %d", i)
			}
		}
	})

	t.Run("SeedReproducible", func(t *testing.T) {
		m, _ := NewNetwork(FeatureDim, 32, 0.2, 1)
		a, _ := n.Forward(input)
		b, _ := m.Forward(input)
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("same seed should produce identical networks, differs at %d", i)
			}
		}
	})

	t.Run("DimensionMismatch", func(t *testing.T) {
		if _, err := n.Forward([]float64{1, 2, 3}); err == nil {
			t.Error("expected error for wrong input dimension")
		}
	})

	t.Run("InvalidDimensions", func(t *testing.T) {
		if _, err := NewNetwork(0, 32, 0.2, 1); err == nil {
			t.Error("expected error for zero input dim")
		}
		if _, err := NewNetwork(10, 32, 1.0, 1); err == nil {
			t.Error("expected error for dropout of 1")
		}
	})
}

func TestEngineEmbed(t *testing.T) {
	ctx := context.Background()

	t.Run("GeneratesAndCaches", func(t *testing.T) {
		cache := newMemCache()
		e := NewEngine(testConfig(), cache)

		v1, err := e.Embed(ctx, sample("prop-1"))
		if err != nil {
			t.Fatalf("embed failed: %v", err)
		}
		if len(v1) != 32 {
			t.Fatalf("expected 32-dim vector, got %d", len(v1))
		}
		if cache.sets != 1 {
			t.Errorf("expected 1 cache write, got %d", cache.sets)
		}

		v2, err := e.Embed(ctx, sample("prop-1"))
		if err != nil {
			t.Fatalf("second embed failed: %v", err)
		}
		if cache.sets != 1 {
			t.Errorf("cached embed should not rewrite, got %d writes", cache.sets)
		}
		for i := range v1 {
			if v1[i] != v2[i] {
				t.Fatalf("cached vector differs at index %d", i)
			}
		}
	})

	t.Run("StaleEntryRegenerated", func(t *testing.T) {
		cache := newMemCache()
		e := NewEngine(testConfig(), cache)

		cache.entries["prop-1"] = &domain.EmbeddingEntry{
			PropertyID: "prop-1",
			Vector:     make([]float64, 32),
			CreatedAt:  time.Now().Add(-48 * time.Hour),
		}

		if _, err := e.Embed(ctx, sample("prop-1")); err != nil {
			t.Fatalf("embed failed: %v", err)
		}
		if cache.sets != 1 {
			t.Errorf("expected stale entry to be regenerated, got %d writes", cache.sets)
		}
	})

	t.Run("SelfSimilarity", func(t *testing.T) {
		e := NewEngine(testConfig(), nil)
		v, err := e.Embed(ctx, sample("prop-1"))
		if err != nil {
			t.Fatalf("embed failed: %v", err)
		}
		if sim := e.Similarity(v, v); math.Abs(sim-1) > 1e-9 {
			t.Errorf("self-similarity should be 1, got %v", sim)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		e := NewEngine(testConfig(), nil)
		props := []*domain.Property{sample("a"), sample("b"), sample("c")}

		vectors, err := e.EmbedBatch(ctx, props)
		if err != nil {
			t.Fatalf("batch failed: %v", err)
		}
		if len(vectors) != 3 {
			t.Fatalf("expected 3 vectors, got %d", len(vectors))
		}
		for id, v := range vectors {
			if len(v) != 32 {
				t.Errorf("vector %s has dimension %d", id, len(v))
			}
		}
	})
}

func TestRerank(t *testing.T) {
	ctx := context.Background()
	criteria := &domain.Criteria{
		Location:      &domain.LocationCriteria{State: "FL", City: "St. Cloud"},
		MinSquareFeet: func() *int { v := 4237; return &v }(),
		MaxSquareFeet: func() *int { v := 4542; return &v }(),
		BuildingTypes: []string{"Office"},
	}

	t.Run("DisabledEngineErrors", func(t *testing.T) {
		cfg := testConfig()
		cfg.Enabled = false
		e := NewEngine(cfg, nil)

		if _, _, err := e.Rerank(ctx, criteria, []*domain.Property{sample("a")}); err == nil {
			t.Error("expected error from disabled engine")
		}
	})

	t.Run("EmptyCandidates", func(t *testing.T) {
		e := NewEngine(testConfig(), nil)
		order, sims, err := e.Rerank(ctx, criteria, nil)
		if err != nil {
			t.Fatalf("rerank failed: %v", err)
		}
		if order != nil || sims != nil {
			t.Error("expected empty result for empty candidates")
		}
	})

	t.Run("OrdersBySimilarity", func(t *testing.T) {
		e := NewEngine(testConfig(), nil)

		near := sample("near")
		far := sample("far")
		far.State = "AK"
		far.City = "Nome"
		far.BuildingTypes = []string{"Warehouse"}
		far.SquareFeetMin = 80000
		far.SquareFeetMax = 100000
		far.RatePerSqft = 95
		far.Description = ""
		far.Amenities = nil

		order, sims, err := e.Rerank(ctx, criteria, []*domain.Property{far, near})
		if err != nil {
			t.Fatalf("rerank failed: %v", err)
		}
		if len(order) != 2 {
			t.Fatalf("expected 2 ids, got %d", len(order))
		}
		if len(sims) != 2 {
			t.Fatalf("expected 2 similarities, got %d", len(sims))
		}
		if sims[order[0]] < sims[order[1]] {
			t.Errorf("order is not descending by similarity: %v", sims)
		}
	})

	t.Run("CriteriaChangeWithSharedCache", func(t *testing.T) {
		cache := newMemCache()
		e := NewEngine(testConfig(), cache)

		office := sample("office-prop")
		warehouse := sample("warehouse-prop")
		warehouse.State = "AK"
		warehouse.City = "Nome"
		warehouse.BuildingTypes = []string{"Warehouse"}
		warehouse.SquareFeetMin = 80000
		warehouse.SquareFeetMax = 100000
		warehouse.RatePerSqft = 95
		warehouse.Description = ""
		warehouse.Amenities = nil
		candidates := []*domain.Property{office, warehouse}

		order1, _, err := e.Rerank(ctx, criteria, candidates)
		if err != nil {
			t.Fatalf("first rerank failed: %v", err)
		}
		if order1[0] != "office-prop" {
			t.Fatalf("expected office listing first for office criteria, got %v", order1)
		}

		akMin, akMax := 80000, 100000
		akBudget := 105.0
		akCriteria := &domain.Criteria{
			Location:       &domain.LocationCriteria{State: "AK", City: "Nome"},
			MinSquareFeet:  &akMin,
			MaxSquareFeet:  &akMax,
			BuildingTypes:  []string{"Warehouse"},
			MaxRatePerSqft: &akBudget,
		}
		order2, _, err := e.Rerank(ctx, akCriteria, candidates)
		if err != nil {
			t.Fatalf("second rerank failed: %v", err)
		}
		if order2[0] != "warehouse-prop" {
			t.Errorf("warm cache leaked the previous criteria target: order %v", order2)
		}

		cache.mu.Lock()
		defer cache.mu.Unlock()
		if len(cache.entries) != 2 {
			t.Errorf("expected only candidate embeddings cached, got %d entries", len(cache.entries))
		}
		for id := range cache.entries {
			if id != "office-prop" && id != "warehouse-prop" {
				t.Errorf("unexpected cached embedding key %q", id)
			}
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		e := NewEngine(testConfig(), nil)
		candidates := []*domain.Property{sample("a"), sample("b")}

		order1, _, err := e.Rerank(ctx, criteria, candidates)
		if err != nil {
			t.Fatal(err)
		}
		order2, _, err := e.Rerank(ctx, criteria, candidates)
		if err != nil {
			t.Fatal(err)
		}
		for i := range order1 {
			if order1[i] != order2[i] {
				t.Fatalf("rerank order differs between runs: %v vs %v", order1, order2)
			}
		}
	})
}

func TestIdealProperty(t *testing.T) {
	min, max := 4237, 4542
	budget := 30.0
	c := &domain.Criteria{
		Location:       &domain.LocationCriteria{State: "FL", City: "St. Cloud", ZipCodes: []string{"34769"}},
		MinSquareFeet:  &min,
		MaxSquareFeet:  &max,
		BuildingTypes:  []string{"Office"},
		MaxRatePerSqft: &budget,
		Compliance:     domain.ComplianceRequirements{FireSafety: true, Accessibility: true},
	}

	p := IdealProperty(c)

	if p.ID != "" {
		t.Errorf("ideal property must not carry an id, got %q", p.ID)
	}
	if p.State != "FL" || p.City != "St. Cloud" || p.ZipCode != "34769" {
		t.Errorf("unexpected location: %s %s %s", p.State, p.City, p.ZipCode)
	}
	if p.SquareFeetMin != min || p.SquareFeetMax != max {
		t.Errorf("unexpected size range: %d-%d", p.SquareFeetMin, p.SquareFeetMax)
	}
	if p.RatePerSqft != budget*0.9 {
		t.Errorf("ideal rate should aim under budget, got %v", p.RatePerSqft)
	}

	text := p.SearchableText()
	for _, want := range []string{"sprinkler", "ada"} {
		if !strings.Contains(text, want) {
			t.Errorf("ideal property should carry %q, got %q", want, text)
		}
	}
}
