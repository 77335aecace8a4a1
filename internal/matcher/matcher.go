// Package matcher wires the filter, compliance, scoring, embedding and
// aggregation stages into the matching pipeline.
package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openlease/harrier/internal/compliance"
	"github.com/openlease/harrier/internal/domain"
	"github.com/openlease/harrier/internal/filter"
	"github.com/openlease/harrier/internal/scoring"
)

// EngineVersion identifies the scoring pipeline in outcome metadata.
const EngineVersion = "harrier-1.0"

// Reranker reorders candidates by learned similarity to the criteria.
// Implemented by embedding.Engine; injected so tests can force
// failures and so matching works with re-ranking disabled entirely.
type Reranker interface {
	Rerank(ctx context.Context, criteria *domain.Criteria, candidates []*domain.Property) (order []string, similarities map[string]float64, err error)
}

// Matcher runs the full candidate matching pipeline. It is safe for
// concurrent use; each invocation is a side-effect-free computation
// over its inputs apart from the shared embedding model and cache.
type Matcher struct {
	evaluator  *compliance.Evaluator
	reranker   Reranker
	bus        domain.EventBus
	logger     *slog.Logger
	mode       domain.MatchingMode
	maxWorkers int
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithReranker sets the embedding re-ranker. Nil disables re-ranking.
func WithReranker(r Reranker) Option {
	return func(m *Matcher) { m.reranker = r }
}

// WithBus sets an event bus for publishing match outcomes.
func WithBus(bus domain.EventBus) Option {
	return func(m *Matcher) { m.bus = bus }
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMode sets the default weighting regime used when the criteria
// carries no explicit weight vector.
func WithMode(mode domain.MatchingMode) Option {
	return func(m *Matcher) { m.mode = mode }
}

// WithMaxWorkers bounds per-candidate scoring concurrency.
func WithMaxWorkers(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.maxWorkers = n
		}
	}
}

// New creates a Matcher.
func New(evaluator *compliance.Evaluator, opts ...Option) *Matcher {
	m := &Matcher{
		evaluator:  evaluator,
		logger:     slog.Default(),
		mode:       domain.ModeGovernment,
		maxWorkers: 16,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// scoredCandidate pairs a candidate with its per-stage results before
// aggregation.
type scoredCandidate struct {
	result domain.MatchResult
	report *domain.ComplianceReport
}

// FindMatches ranks the catalog against the criteria and returns the
// explainable outcome. Malformed criteria fail fast before filtering;
// identical inputs always yield identical ordering and scores.
func (m *Matcher) FindMatches(ctx context.Context, criteria *domain.Criteria, catalog []*domain.Property) (*domain.MatchingOutcome, error) {
	start := time.Now()

	if err := criteria.Validate(); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}

	weights := criteria.Weights
	if len(weights) == 0 {
		weights = m.mode.DefaultWeights()
	}
	scorer, err := scoring.NewScorer(weights)
	if err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}

	outcome := &domain.MatchingOutcome{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
	}

	// 1. Hard filter.
	passed, rejected := filter.Apply(catalog, criteria)
	outcome.Metadata.FilterMs = time.Since(start).Milliseconds()

	// 2. Compliance + scoring, embarrassingly parallel per candidate.
	scoringStart := time.Now()
	scored := m.scoreAll(passed, criteria, scorer)
	outcome.Metadata.ScoringMs = time.Since(scoringStart).Milliseconds()

	// 3. Compliance gate: a failed critical rule disqualifies the
	// candidate regardless of its relevance score.
	results := make([]domain.MatchResult, 0, len(scored))
	for _, sc := range scored {
		if sc.report != nil && sc.report.OverallStatus == domain.ReportNonCompliant {
			rejected = append(rejected, domain.RejectedProperty{
				Property: sc.result.Property,
				Stage:    domain.StageCompliance,
				Reasons:  sc.report.CriticalIssues,
			})
			continue
		}
		results = append(results, sc.result)
	}

	// 4. Traditional order: relevance descending, stable.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})

	// 5. Optional embedding re-rank over the survivors.
	rerankOrder := m.rerank(ctx, criteria, results, outcome)

	// 6. Threshold, reorder, summarize.
	admitted, thresholdRejected, summary := aggregate(results, rerankOrder, criteria.MinRelevance, criteria.EffectiveThresholds())
	rejected = append(rejected, thresholdRejected...)

	summary.TotalEvaluated = len(catalog)
	summary.Rejected = len(rejected)

	outcome.Matches = admitted
	outcome.Rejected = rejected
	outcome.Summary = summary
	outcome.Metadata.TotalMs = time.Since(start).Milliseconds()
	outcome.Metadata.EngineVersion = EngineVersion

	m.publish(ctx, outcome)

	m.logger.Info("matching run completed",
		"outcome_id", outcome.ID,
		"catalog_size", len(catalog),
		"admitted", summary.Admitted,
		"rejected", summary.Rejected,
		"reranked", outcome.Metadata.Reranked,
		"duration_ms", outcome.Metadata.TotalMs,
	)

	return outcome, nil
}

// scoreAll evaluates compliance and relevance for each candidate with
// bounded concurrency. Both stages are pure, so results are assembled
// by index.
func (m *Matcher) scoreAll(passed []*domain.Property, criteria *domain.Criteria, scorer *scoring.Scorer) []scoredCandidate {
	scored := make([]scoredCandidate, len(passed))

	var wg sync.WaitGroup
	sem := make(chan struct{}, m.maxWorkers)

	for i, p := range passed {
		wg.Add(1)
		go func(idx int, prop *domain.Property) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			scored[idx] = m.scoreOne(prop, criteria, scorer)
		}(i, p)
	}

	wg.Wait()
	return scored
}

func (m *Matcher) scoreOne(p *domain.Property, criteria *domain.Criteria, scorer *scoring.Scorer) scoredCandidate {
	var report *domain.ComplianceReport
	if criteria.Compliance.Any() {
		report = m.evaluator.Evaluate(p, criteria)
	}

	breakdown := scorer.Score(p, criteria, report)

	result := domain.MatchResult{
		Property:   p,
		Breakdown:  breakdown,
		Relevance:  breakdown.Total,
		Compliance: report,
	}
	result.Advantages, result.Warnings = annotate(p, criteria, report)

	return scoredCandidate{result: result, report: report}
}

// annotate derives the human-facing advantage and warning lists.
func annotate(p *domain.Property, criteria *domain.Criteria, report *domain.ComplianceReport) (advantages, warnings []string) {
	if criteria.MaxRatePerSqft != nil {
		budget := *criteria.MaxRatePerSqft
		switch {
		case p.RatePerSqft < budget:
			advantages = append(advantages, fmt.Sprintf(
				"rate $%.2f/sqft is %.0f%% under budget", p.RatePerSqft, (budget-p.RatePerSqft)/budget*100))
		case p.RatePerSqft == budget:
			warnings = append(warnings, "rate is exactly at the budget ceiling")
		}
	}

	if criteria.Location != nil && criteria.Location.City != "" &&
		filter.CityMatches(p.City, criteria.Location.City) {
		advantages = append(advantages, "located in the requested city")
	}

	for _, feature := range scoring.PresentFeatures(p) {
		advantages = append(advantages, "offers "+feature)
	}

	if report != nil {
		if report.OverallStatus == domain.ReportRequiresReview {
			warnings = append(warnings, "compliance requires review")
		}
		warnings = append(warnings, report.Recommendations...)
	}

	return advantages, warnings
}

// rerank applies the embedding re-ranker to the surviving candidates.
// Failures are logged and swallowed: the traditional relevance order
// stands when the similarity engine is unavailable.
func (m *Matcher) rerank(ctx context.Context, criteria *domain.Criteria, results []domain.MatchResult, outcome *domain.MatchingOutcome) []string {
	if m.reranker == nil || len(results) == 0 {
		return nil
	}

	rerankStart := time.Now()

	candidates := make([]*domain.Property, len(results))
	for i, res := range results {
		candidates[i] = res.Property
	}

	order, similarities, err := m.reranker.Rerank(ctx, criteria, candidates)
	outcome.Metadata.RerankMs = time.Since(rerankStart).Milliseconds()
	if err != nil {
		m.logger.Warn("embedding rerank failed, keeping relevance order", "error", err)
		return nil
	}
	if len(order) == 0 {
		return nil
	}

	for i := range results {
		if sim, ok := similarities[results[i].Property.ID]; ok {
			s := sim
			results[i].Similarity = &s
		}
	}
	outcome.Metadata.Reranked = true

	return order
}

// publish emits the outcome for the audit/persistence collaborator,
// plus an alert event when compliance disqualified candidates.
func (m *Matcher) publish(ctx context.Context, outcome *domain.MatchingOutcome) {
	if m.bus == nil {
		return
	}

	payload, err := json.Marshal(outcome)
	if err != nil {
		m.logger.Error("failed to marshal outcome", "outcome_id", outcome.ID, "error", err)
		return
	}

	if err := m.bus.Publish(ctx, domain.TopicMatchCompleted, payload); err != nil {
		m.logger.Error("failed to publish outcome", "outcome_id", outcome.ID, "error", err)
	}

	for _, rej := range outcome.Rejected {
		if rej.Stage == domain.StageCompliance {
			if err := m.bus.Publish(ctx, domain.TopicMatchAlert, payload); err != nil {
				m.logger.Error("failed to publish alert", "outcome_id", outcome.ID, "error", err)
			}
			break
		}
	}
}
