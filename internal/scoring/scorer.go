// Package scoring computes weighted multi-factor relevance scores for
// filter-surviving candidates.
package scoring

import (
	"math"
	"sort"
	"strings"

	"github.com/openlease/harrier/internal/domain"
	"github.com/openlease/harrier/internal/filter"
)

// Internal weighting of the requirement-fit terms.
const (
	fitSizeShare      = 0.4
	fitTypeShare      = 0.3
	fitFinancialShare = 0.3
)

// Financial base credit for a rate exactly at budget; savings scale the
// score from there toward 100.
const atBudgetCredit = 70

// suitabilityVocabulary maps each scored feature to the keywords that
// signal it. Each feature present in the listing text contributes a
// fixed increment, capped at 100.
var suitabilityVocabulary = map[string][]string{
	"parking":      {"parking", "garage"},
	"security":     {"security", "access control", "badge", "guard"},
	"accessible":   {"ada", "accessible", "wheelchair"},
	"conference":   {"conference", "meeting room", "meeting space"},
	"backup-power": {"generator", "backup power", "ups"},
	"connectivity": {"fiber", "high-speed", "broadband", "connectivity"},
	"elevator":     {"elevator", "lift"},
	"cafeteria":    {"cafeteria", "food service", "cafe"},
	"fitness":      {"fitness", "gym"},
	"class-a":      {"class a", "professional"},
}

const suitabilityIncrement = 10

// factorOrder fixes the summation order of the weighted total. Map
// iteration order must not influence float accumulation, or knife-edge
// totals could round differently between identical runs.
var factorOrder = []domain.ScoreFactor{
	domain.FactorLocation,
	domain.FactorFit,
	domain.FactorSpace,
	domain.FactorTechnical,
	domain.FactorCompliance,
	domain.FactorFinancial,
	domain.FactorSuitability,
}

// Scorer computes relevance breakdowns under a fixed weight vector.
type Scorer struct {
	weights domain.ScoringWeights
}

// NewScorer creates a scorer. The weight vector must sum to 1.0.
func NewScorer(weights domain.ScoringWeights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Weights returns the configured weight vector.
func (s *Scorer) Weights() domain.ScoringWeights {
	return s.weights
}

// Score computes the full breakdown for one candidate. The compliance
// report may be nil when the run has no compliance requirements; that
// factor then degrades to full credit. Pure function over its inputs.
func (s *Scorer) Score(p *domain.Property, c *domain.Criteria, report *domain.ComplianceReport) domain.ScoreBreakdown {
	b := domain.ScoreBreakdown{
		Location:    LocationScore(p, c),
		Space:       SpaceScore(p, c),
		Technical:   TechnicalScore(p, c),
		Financial:   FinancialScore(p, c),
		Suitability: SuitabilityScore(p),
		Compliance:  100,
	}
	if report != nil {
		b.Compliance = report.Score
	}

	fit := fitSizeShare*float64(b.Space) +
		fitTypeShare*float64(b.Technical) +
		fitFinancialShare*float64(b.Financial)
	b.Fit = clampScore(fit)

	var total float64
	for _, factor := range factorOrder {
		if weight, ok := s.weights[factor]; ok {
			total += weight * float64(b.Factor(factor))
		}
	}
	b.Total = clampScore(total)

	return b
}

// LocationScore scores geographic fit 0-100. A state mismatch forces
// the whole sub-score to 0, mirroring the hard filter even though this
// scorer may run against a pre-filtered set in non-strict mode.
func LocationScore(p *domain.Property, c *domain.Criteria) int {
	loc := c.Location
	if loc == nil {
		return 100
	}

	if loc.State != "" && !strings.EqualFold(strings.TrimSpace(p.State), strings.TrimSpace(loc.State)) {
		return 0
	}

	// Component shares: state 40, city 30, proximity 30.
	score := 40.0

	switch {
	case loc.City == "":
		score += 30
	case strings.EqualFold(strings.TrimSpace(p.City), strings.TrimSpace(loc.City)):
		score += 30
	case filter.CityMatches(p.City, loc.City):
		score += 15
	}

	switch {
	case !loc.HasCenter():
		score += 30
	case !p.HasCoordinates():
		// Center given but the listing was never geocoded: partial
		// credit, consistent with requires-verification handling.
		score += 15
	default:
		dist := filter.Haversine(*p.Latitude, *p.Longitude, *loc.Latitude, *loc.Longitude)
		radius := *loc.RadiusKm
		switch {
		case dist <= radius/2:
			score += 30
		case dist <= radius:
			score += 15
		}
	}

	return clampScore(score)
}

// SpaceScore scores size fit as overlap-interval size over
// requested-interval size, clamped to [0,1]. No size constraint means
// every candidate receives full credit.
func SpaceScore(p *domain.Property, c *domain.Criteria) int {
	if c.MinSquareFeet == nil && c.MaxSquareFeet == nil {
		return 100
	}

	overlapLow := float64(p.SquareFeetMin)
	overlapHigh := float64(p.SquareFeetMax)
	if c.MinSquareFeet != nil {
		overlapLow = math.Max(overlapLow, float64(*c.MinSquareFeet))
	}
	if c.MaxSquareFeet != nil {
		overlapHigh = math.Min(overlapHigh, float64(*c.MaxSquareFeet))
	}

	if overlapHigh < overlapLow {
		return 0
	}

	// Half-open requirement: any overlap is a full satisfaction.
	if c.MinSquareFeet == nil || c.MaxSquareFeet == nil {
		return 100
	}

	want := float64(*c.MaxSquareFeet - *c.MinSquareFeet)
	if want <= 0 {
		// Point request; overlap already confirmed containment.
		return 100
	}

	ratio := (overlapHigh - overlapLow) / want
	return clampScore(ratio * 100)
}

// TechnicalScore scores the fraction of required building types the
// candidate matches.
func TechnicalScore(p *domain.Property, c *domain.Criteria) int {
	if len(c.BuildingTypes) == 0 {
		return 100
	}

	matched := 0
	for _, want := range c.BuildingTypes {
		if filter.TypesIntersect(p.BuildingTypes, []string{want}) {
			matched++
		}
	}

	return clampScore(float64(matched) / float64(len(c.BuildingTypes)) * 100)
}

// FinancialScore rewards rates strictly under budget. A rate exactly
// at budget earns the base credit; savings scale the score toward 100.
// Over budget earns zero credit.
func FinancialScore(p *domain.Property, c *domain.Criteria) int {
	if c.MaxRatePerSqft == nil {
		return 100
	}

	budget := *c.MaxRatePerSqft
	if p.RatePerSqft > budget {
		return 0
	}
	if budget <= 0 {
		return atBudgetCredit
	}

	savings := (budget - p.RatePerSqft) / budget
	return clampScore(atBudgetCredit + savings*(100-atBudgetCredit))
}

// SuitabilityScore scans the listing text and amenity tags for the
// fixed suitability vocabulary.
func SuitabilityScore(p *domain.Property) int {
	text := p.SearchableText()
	score := 0
	for _, keywords := range suitabilityVocabulary {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				score += suitabilityIncrement
				break
			}
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// PresentFeatures returns the suitability vocabulary features found in
// the listing, for advantage reporting.
func PresentFeatures(p *domain.Property) []string {
	text := p.SearchableText()
	var features []string
	for feature, keywords := range suitabilityVocabulary {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				features = append(features, feature)
				break
			}
		}
	}
	sort.Strings(features)
	return features
}

func clampScore(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
