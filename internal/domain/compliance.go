package domain

// ComplianceCategory groups rules by regulatory area.
type ComplianceCategory string

const (
	CategoryFireSafety    ComplianceCategory = "fire-safety"
	CategoryAccessibility ComplianceCategory = "accessibility"
	CategorySeismic       ComplianceCategory = "seismic"
	CategoryEnvironmental ComplianceCategory = "environmental"
	CategorySecurity      ComplianceCategory = "security"
	CategoryBuildingCodes ComplianceCategory = "building-codes"
)

// Severity ranks how serious a rule failure is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Weight returns the scoring weight for a severity level.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 1
	}
}

// ComplianceStatus is the outcome of a single rule check. Missing data
// maps to requires_verification so uncertainty stays auditable.
type ComplianceStatus string

const (
	StatusCompliant            ComplianceStatus = "compliant"
	StatusNonCompliant         ComplianceStatus = "non_compliant"
	StatusRequiresVerification ComplianceStatus = "requires_verification"
	StatusNotApplicable        ComplianceStatus = "not_applicable"
)

// ReportStatus is the per-property aggregate compliance outcome.
type ReportStatus string

const (
	ReportCompliant      ReportStatus = "compliant"
	ReportRequiresReview ReportStatus = "requires_review"
	ReportNonCompliant   ReportStatus = "non_compliant"
)

// CheckFunc evaluates one rule against a property. Implementations must
// be pure functions over their inputs.
type CheckFunc func(p *Property, c *Criteria) ComplianceResult

// ComplianceRule is a named regulatory check with severity and
// remediation guidance.
type ComplianceRule struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Category    ComplianceCategory `json:"category"`
	Severity    Severity           `json:"severity"`
	Required    bool               `json:"required"`
	Check       CheckFunc          `json:"-"`
}

// ComplianceResult is the outcome of one rule check.
type ComplianceResult struct {
	RuleID      string           `json:"ruleId"`
	RuleName    string           `json:"ruleName,omitempty"`
	Category    ComplianceCategory `json:"category,omitempty"`
	Severity    Severity         `json:"severity,omitempty"`
	Passed      bool             `json:"passed"`
	Status      ComplianceStatus `json:"status"`
	Detail      string           `json:"detail,omitempty"`
	Remediation []string         `json:"remediation,omitempty"`

	// Optional remediation estimates.
	EstimatedCostUSD *float64 `json:"estimatedCostUsd,omitempty"`
	EstimatedDays    *int     `json:"estimatedDays,omitempty"`
}

// ComplianceReport aggregates rule results for one property.
type ComplianceReport struct {
	PropertyID    string       `json:"propertyId"`
	OverallStatus ReportStatus `json:"overallStatus"`

	// Score is the severity-weighted pass ratio, 0-100.
	Score int `json:"score"`

	CriticalIssues    []string           `json:"criticalIssues,omitempty"`
	Passed            []ComplianceResult `json:"passed,omitempty"`
	Failed            []ComplianceResult `json:"failed,omitempty"`
	NeedsVerification []ComplianceResult `json:"needsVerification,omitempty"`
	Recommendations   []string           `json:"recommendations,omitempty"`
}
