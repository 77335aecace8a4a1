package domain

import "time"

// MatchLevel is the human-facing tier derived from relevance bands.
type MatchLevel string

const (
	LevelExcellent MatchLevel = "excellent"
	LevelGood      MatchLevel = "good"
	LevelFair      MatchLevel = "fair"
	LevelPoor      MatchLevel = "poor"
)

// LevelFor maps a relevance score to a match level using the given bands.
func LevelFor(score int, th LevelThresholds) MatchLevel {
	switch {
	case score >= th.Excellent:
		return LevelExcellent
	case score >= th.Good:
		return LevelGood
	case score >= th.Fair:
		return LevelFair
	default:
		return LevelPoor
	}
}

// ScoreBreakdown holds the per-factor sub-scores, each 0-100, plus the
// weighted total.
type ScoreBreakdown struct {
	Location    int `json:"location"`
	Fit         int `json:"fit"`
	Space       int `json:"space"`
	Technical   int `json:"technical"`
	Financial   int `json:"financial"`
	Compliance  int `json:"compliance"`
	Suitability int `json:"suitability"`

	Total int `json:"total"`
}

// Factor returns the sub-score for a named factor.
func (b ScoreBreakdown) Factor(f ScoreFactor) int {
	switch f {
	case FactorLocation:
		return b.Location
	case FactorFit:
		return b.Fit
	case FactorSpace:
		return b.Space
	case FactorTechnical:
		return b.Technical
	case FactorFinancial:
		return b.Financial
	case FactorCompliance:
		return b.Compliance
	case FactorSuitability:
		return b.Suitability
	default:
		return 0
	}
}

// MatchResult is one admitted candidate with its score breakdown and
// compliance report.
type MatchResult struct {
	Property  *Property      `json:"property"`
	Breakdown ScoreBreakdown `json:"breakdown"`

	// Relevance duplicates Breakdown.Total for callers that only want
	// the headline number.
	Relevance int        `json:"relevance"`
	Level     MatchLevel `json:"level"`

	Compliance *ComplianceReport `json:"compliance,omitempty"`

	// Similarity is the embedding cosine similarity to the search
	// target, set only when re-ranking ran.
	Similarity *float64 `json:"similarity,omitempty"`

	Advantages []string `json:"advantages,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`

	// RejectionReasons is empty for admitted results.
	RejectionReasons []string `json:"rejectionReasons,omitempty"`
}

// Rejection stages.
const (
	StageFilter     = "filter"
	StageCompliance = "compliance"
	StageThreshold  = "threshold"
)

// RejectedProperty records a candidate eliminated before admission.
type RejectedProperty struct {
	Property *Property `json:"property"`
	Stage    string    `json:"stage"`
	Reasons  []string  `json:"reasons"`
}

// MatchSummary holds the headline counts for a matching run.
type MatchSummary struct {
	TotalEvaluated int `json:"totalEvaluated"`
	Admitted       int `json:"admitted"`
	Rejected       int `json:"rejected"`

	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
	Poor      int `json:"poor"`

	// AverageRelevance is 0 when nothing was admitted.
	AverageRelevance float64 `json:"averageRelevance"`
}

// MatchingOutcome is the ordered, explainable result of one matching run.
type MatchingOutcome struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Matches  []MatchResult      `json:"matches"`
	Rejected []RejectedProperty `json:"rejected,omitempty"`
	Summary  MatchSummary       `json:"summary"`

	Metadata OutcomeMetadata `json:"metadata"`
}

// OutcomeMetadata contains processing information for one run.
type OutcomeMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	FilterMs      int64  `json:"filterMs"`
	ScoringMs     int64  `json:"scoringMs"`
	RerankMs      int64  `json:"rerankMs"`
	TotalMs       int64  `json:"totalMs"`
	Reranked      bool   `json:"reranked"`
	EngineVersion string `json:"engineVersion,omitempty"`
}
