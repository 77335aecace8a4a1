package compliance

import (
	"math"
	"sync"

	"github.com/openlease/harrier/internal/domain"
)

// Evaluator runs the rule catalog against individual properties.
// Custom CEL rules loaded at runtime are evaluated alongside the
// builtin catalog.
type Evaluator struct {
	mu      sync.RWMutex
	builtin []domain.ComplianceRule
	custom  map[string]*CompiledCustomRule
	engine  *CustomRuleEngine
}

// NewEvaluator creates an evaluator with the builtin rule catalog.
func NewEvaluator() (*Evaluator, error) {
	engine, err := NewCustomRuleEngine()
	if err != nil {
		return nil, err
	}
	return &Evaluator{
		builtin: BuiltinRules(),
		custom:  make(map[string]*CompiledCustomRule),
		engine:  engine,
	}, nil
}

// Rules returns the builtin rule catalog.
func (e *Evaluator) Rules() []domain.ComplianceRule {
	out := make([]domain.ComplianceRule, len(e.builtin))
	copy(out, e.builtin)
	return out
}

// ValidateCustomRule compiles a custom rule without loading it.
func (e *Evaluator) ValidateCustomRule(cfg *CustomRuleConfig) error {
	_, err := e.engine.Compile(cfg)
	return err
}

// LoadCustomRule compiles and loads a custom rule into the evaluator.
func (e *Evaluator) LoadCustomRule(cfg *CustomRuleConfig) error {
	compiled, err := e.engine.Compile(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.custom[cfg.ID] = compiled
	e.mu.Unlock()

	return nil
}

// CustomRuleCount returns the number of loaded custom rules.
func (e *Evaluator) CustomRuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.custom)
}

// ReloadCustomRules clears all custom rules and loads new ones.
func (e *Evaluator) ReloadCustomRules(configs []*CustomRuleConfig) error {
	next := make(map[string]*CompiledCustomRule, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		compiled, err := e.engine.Compile(cfg)
		if err != nil {
			return err
		}
		next[cfg.ID] = compiled
	}

	e.mu.Lock()
	e.custom = next
	e.mu.Unlock()

	return nil
}

// Evaluate runs every rule against the property and aggregates the
// results into a report. The severity weight of each rule determines
// its share of the 0-100 score; not_applicable rules are excluded from
// the weighting entirely.
func (e *Evaluator) Evaluate(p *domain.Property, c *domain.Criteria) *domain.ComplianceReport {
	report := &domain.ComplianceReport{
		PropertyID:    p.ID,
		OverallStatus: domain.ReportCompliant,
	}

	results := e.runAll(p, c)

	var totalWeight, passedWeight int
	criticalFailure := false
	uncertain := false
	seen := make(map[string]bool)

	for _, res := range results {
		if res.Status == domain.StatusNotApplicable {
			continue
		}

		weight := res.Severity.Weight()
		totalWeight += weight

		switch res.Status {
		case domain.StatusCompliant:
			passedWeight += weight
			report.Passed = append(report.Passed, res)

		case domain.StatusNonCompliant:
			report.Failed = append(report.Failed, res)
			if res.Severity == domain.SeverityCritical {
				criticalFailure = true
				report.CriticalIssues = append(report.CriticalIssues,
					"CRITICAL: "+res.RuleName+": "+res.Detail)
			}
			uncertain = true
			appendRecommendations(report, res, seen)

		case domain.StatusRequiresVerification:
			report.NeedsVerification = append(report.NeedsVerification, res)
			uncertain = true
			appendRecommendations(report, res, seen)
			report.Recommendations = dedupAppend(report.Recommendations,
				"VERIFY: "+res.RuleName+": "+res.Detail, seen)
		}
	}

	switch {
	case criticalFailure:
		report.OverallStatus = domain.ReportNonCompliant
	case uncertain:
		report.OverallStatus = domain.ReportRequiresReview
	}

	if totalWeight > 0 {
		report.Score = int(math.Round(float64(passedWeight) / float64(totalWeight) * 100))
	} else {
		// Nothing applicable to this tenancy.
		report.Score = 100
	}

	return report
}

// runAll evaluates builtin then custom rules, stamping rule metadata
// onto each result.
func (e *Evaluator) runAll(p *domain.Property, c *domain.Criteria) []domain.ComplianceResult {
	e.mu.RLock()
	custom := make([]*CompiledCustomRule, 0, len(e.custom))
	for _, r := range e.custom {
		custom = append(custom, r)
	}
	e.mu.RUnlock()

	results := make([]domain.ComplianceResult, 0, len(e.builtin)+len(custom))

	for _, rule := range e.builtin {
		res := rule.Check(p, c)
		res.RuleID = rule.ID
		res.RuleName = rule.Name
		res.Category = rule.Category
		res.Severity = rule.Severity
		results = append(results, res)
	}

	for _, rule := range custom {
		results = append(results, e.engine.Evaluate(rule, p))
	}

	return results
}

func appendRecommendations(report *domain.ComplianceReport, res domain.ComplianceResult, seen map[string]bool) {
	for _, r := range res.Remediation {
		report.Recommendations = dedupAppend(report.Recommendations, r, seen)
	}
}

func dedupAppend(list []string, item string, seen map[string]bool) []string {
	if seen[item] {
		return list
	}
	seen[item] = true
	return append(list, item)
}
