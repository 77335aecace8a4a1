package domain

import (
	"fmt"
	"math"
)

// ScoreFactor names one dimension of the relevance weighting vector.
type ScoreFactor string

const (
	FactorLocation    ScoreFactor = "location"
	FactorFit         ScoreFactor = "fit" // aggregate requirement fit (space+type+financial)
	FactorSpace       ScoreFactor = "space"
	FactorTechnical   ScoreFactor = "technical"
	FactorCompliance  ScoreFactor = "compliance"
	FactorFinancial   ScoreFactor = "financial"
	FactorSuitability ScoreFactor = "suitability"
)

// ScoringWeights maps score factors to their share of the total relevance
// score. The vector must sum to 1.0 within weightTolerance.
type ScoringWeights map[ScoreFactor]float64

const weightTolerance = 1e-6

// GovernmentWeights is the strict three-factor preset used for federal
// and state leasing searches, where location dominates.
func GovernmentWeights() ScoringWeights {
	return ScoringWeights{
		FactorLocation:    0.50,
		FactorFit:         0.35,
		FactorSuitability: 0.15,
	}
}

// GeneralWeights is the looser five-factor preset used for general
// commercial searches.
func GeneralWeights() ScoringWeights {
	return ScoringWeights{
		FactorLocation:   0.25,
		FactorSpace:      0.30,
		FactorTechnical:  0.20,
		FactorCompliance: 0.15,
		FactorFinancial:  0.10,
	}
}

var knownFactors = map[ScoreFactor]bool{
	FactorLocation:    true,
	FactorFit:         true,
	FactorSpace:       true,
	FactorTechnical:   true,
	FactorCompliance:  true,
	FactorFinancial:   true,
	FactorSuitability: true,
}

// Validate checks that the weight vector is well formed and sums to 1.0.
func (w ScoringWeights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("scoring weights are required")
	}
	var sum float64
	for factor, weight := range w {
		if !knownFactors[factor] {
			return fmt.Errorf("unknown scoring factor %q", factor)
		}
		if weight < 0 {
			return fmt.Errorf("scoring factor %q has negative weight %v", factor, weight)
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// LocationCriteria constrains where a candidate may be located.
// Optional fields are nil/empty when the dimension is unconstrained.
type LocationCriteria struct {
	State    string   `json:"state,omitempty"`
	City     string   `json:"city,omitempty"`
	ZipCodes []string `json:"zipCodes,omitempty"`

	// Center point plus radius, in kilometers.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RadiusKm  *float64 `json:"radiusKm,omitempty"`

	// Strict enables city-level filtering in the hard filter stage.
	Strict bool `json:"strict,omitempty"`
}

// HasCenter reports whether a center point and radius are configured.
func (l *LocationCriteria) HasCenter() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil && l.RadiusKm != nil
}

// ComplianceRequirements flags which regulatory dimensions the tenancy
// requires. A false flag marks the corresponding rules not applicable.
type ComplianceRequirements struct {
	FireSafety           bool `json:"fireSafety,omitempty"`
	Accessibility        bool `json:"accessibility,omitempty"`
	FloodZoneRestricted  bool `json:"floodZoneRestricted,omitempty"`
	TelecomRestricted    bool `json:"telecomRestricted,omitempty"`
	Seismic              bool `json:"seismic,omitempty"`
	Security             bool `json:"security,omitempty"`
	OccupancyCertificate bool `json:"occupancyCertificate,omitempty"`
}

// Any reports whether at least one compliance dimension is required.
func (r ComplianceRequirements) Any() bool {
	return r.FireSafety || r.Accessibility || r.FloodZoneRestricted ||
		r.TelecomRestricted || r.Seismic || r.Security || r.OccupancyCertificate
}

// LevelThresholds are the relevance-score bands behind match levels.
type LevelThresholds struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
}

// DefaultLevelThresholds returns the standard 85/70/55 bands.
func DefaultLevelThresholds() LevelThresholds {
	return LevelThresholds{Excellent: 85, Good: 70, Fair: 55}
}

// Criteria is the structured requirement set driving one matching run.
// It is immutable once constructed; absence of an optional field means
// the dimension is unconstrained and degrades to full credit.
type Criteria struct {
	Location *LocationCriteria `json:"location,omitempty"`

	// Required area range in square feet (ABOA basis for federal searches).
	MinSquareFeet *int `json:"minSquareFeet,omitempty"`
	MaxSquareFeet *int `json:"maxSquareFeet,omitempty"`

	BuildingTypes []string `json:"buildingTypes,omitempty"`

	// MaxRatePerSqft is the budget ceiling, annual rate per square foot.
	MaxRatePerSqft *float64 `json:"maxRatePerSqft,omitempty"`

	Compliance ComplianceRequirements `json:"compliance,omitempty"`

	Weights    ScoringWeights  `json:"weights,omitempty"`
	Thresholds LevelThresholds `json:"thresholds,omitempty"`

	// MinRelevance is the admission floor in percent, 0-100.
	MinRelevance float64 `json:"minRelevance,omitempty"`
}

// Validate checks caller contract violations before filtering begins:
// a malformed Criteria fails fast rather than producing a silently
// wrong ranking.
func (c *Criteria) Validate() error {
	if c == nil {
		return fmt.Errorf("criteria is required")
	}
	if c.MinSquareFeet != nil && *c.MinSquareFeet < 0 {
		return fmt.Errorf("minSquareFeet must not be negative, got %d", *c.MinSquareFeet)
	}
	if c.MinSquareFeet != nil && c.MaxSquareFeet != nil && *c.MinSquareFeet > *c.MaxSquareFeet {
		return fmt.Errorf("minSquareFeet %d exceeds maxSquareFeet %d", *c.MinSquareFeet, *c.MaxSquareFeet)
	}
	if c.MaxRatePerSqft != nil && *c.MaxRatePerSqft < 0 {
		return fmt.Errorf("maxRatePerSqft must not be negative, got %v", *c.MaxRatePerSqft)
	}
	if c.Location != nil {
		loc := c.Location
		if loc.RadiusKm != nil && *loc.RadiusKm <= 0 {
			return fmt.Errorf("radiusKm must be positive, got %v", *loc.RadiusKm)
		}
		if (loc.Latitude == nil) != (loc.Longitude == nil) {
			return fmt.Errorf("latitude and longitude must be set together")
		}
	}
	if c.MinRelevance < 0 || c.MinRelevance > 100 {
		return fmt.Errorf("minRelevance must be within [0,100], got %v", c.MinRelevance)
	}
	if c.Weights != nil {
		if err := c.Weights.Validate(); err != nil {
			return err
		}
	}
	th := c.Thresholds
	if th != (LevelThresholds{}) {
		if th.Excellent < th.Good || th.Good < th.Fair || th.Fair < 0 || th.Excellent > 100 {
			return fmt.Errorf("level thresholds must satisfy 0 <= fair <= good <= excellent <= 100")
		}
	}
	return nil
}

// EffectiveWeights returns the configured weight vector, defaulting to
// the government preset when none is set.
func (c *Criteria) EffectiveWeights() ScoringWeights {
	if len(c.Weights) > 0 {
		return c.Weights
	}
	return GovernmentWeights()
}

// EffectiveThresholds returns the configured level bands, defaulting to
// the standard bands when unset.
func (c *Criteria) EffectiveThresholds() LevelThresholds {
	if c.Thresholds == (LevelThresholds{}) {
		return DefaultLevelThresholds()
	}
	return c.Thresholds
}
