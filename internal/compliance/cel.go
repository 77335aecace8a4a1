package compliance

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/openlease/harrier/internal/domain"
)

// CustomRuleConfig defines an operator-supplied compliance rule. The
// expression is a CEL predicate over the property's attributes; it must
// evaluate to a boolean where true means compliant.
type CustomRuleConfig struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description,omitempty"`
	Category    domain.ComplianceCategory `json:"category"`
	Severity    domain.Severity           `json:"severity"`

	// Expression is a CEL predicate, e.g.
	//   `suite_count >= 2 && "elevator" in amenities`
	// Compliance attributes appear in the `compliance` map only when
	// the catalog actually knows them, so expressions can distinguish
	// unknown from false with `"fire_alarm" in compliance`.
	Expression string `json:"expression"`

	// FailDetail and Remediation populate the result on failure.
	FailDetail  string   `json:"failDetail,omitempty"`
	Remediation []string `json:"remediation,omitempty"`

	Enabled bool `json:"enabled"`
}

// CompiledCustomRule holds a pre-compiled CEL program.
type CompiledCustomRule struct {
	Config  *CustomRuleConfig
	Program cel.Program
}

// CustomRuleEngine compiles and evaluates CEL-based compliance rules.
type CustomRuleEngine struct {
	env *cel.Env
}

// NewCustomRuleEngine creates the CEL environment with property variables.
func NewCustomRuleEngine() (*CustomRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("state", cel.StringType),
		cel.Variable("city", cel.StringType),
		cel.Variable("zip", cel.StringType),
		cel.Variable("tenancy", cel.StringType),
		cel.Variable("rate", cel.DoubleType),
		cel.Variable("sqft_min", cel.IntType),
		cel.Variable("sqft_max", cel.IntType),
		cel.Variable("suite_count", cel.IntType),
		cel.Variable("building_types", cel.ListType(cel.StringType)),
		cel.Variable("amenities", cel.ListType(cel.StringType)),
		cel.Variable("compliance", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CustomRuleEngine{env: env}, nil
}

// Compile validates and compiles a custom rule.
func (e *CustomRuleEngine) Compile(cfg *CustomRuleConfig) (*CompiledCustomRule, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rule config is required")
	}
	if cfg.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: expression must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledCustomRule{Config: cfg, Program: program}, nil
}

// Evaluate runs one compiled rule against a property. An evaluation
// error (typically a lookup of an undocumented attribute) maps to
// requires_verification rather than pass or fail.
func (e *CustomRuleEngine) Evaluate(rule *CompiledCustomRule, p *domain.Property) domain.ComplianceResult {
	result := domain.ComplianceResult{
		RuleID:   rule.Config.ID,
		RuleName: rule.Config.Name,
		Category: rule.Config.Category,
		Severity: rule.Config.Severity,
	}

	out, _, err := rule.Program.Eval(activation(p))
	if err != nil {
		result.Status = domain.StatusRequiresVerification
		result.Detail = fmt.Sprintf("evaluation error: %v", err)
		result.Remediation = []string{"Request documentation from the listing broker"}
		return result
	}

	passed, ok := out.(types.Bool)
	if !ok {
		result.Status = domain.StatusRequiresVerification
		result.Detail = fmt.Sprintf("expression returned %T, expected bool", out)
		return result
	}

	if bool(passed) {
		result.Passed = true
		result.Status = domain.StatusCompliant
		return result
	}

	result.Status = domain.StatusNonCompliant
	result.Detail = rule.Config.FailDetail
	if result.Detail == "" {
		result.Detail = "custom rule failed: " + rule.Config.Name
	}
	result.Remediation = rule.Config.Remediation
	return result
}

// activation builds the CEL variable map for a property. Compliance
// attributes appear only when known so expressions can test presence.
func activation(p *domain.Property) map[string]any {
	comp := map[string]any{}
	attrs := p.Compliance
	if attrs.FireSuppression != nil {
		comp["fire_suppression"] = *attrs.FireSuppression
	}
	if attrs.FireAlarm != nil {
		comp["fire_alarm"] = *attrs.FireAlarm
	}
	if attrs.ADAEntrance != nil {
		comp["ada_entrance"] = *attrs.ADAEntrance
	}
	if attrs.ADARestrooms != nil {
		comp["ada_restrooms"] = int64(*attrs.ADARestrooms)
	}
	if attrs.ADAParkingSpaces != nil {
		comp["ada_parking_spaces"] = int64(*attrs.ADAParkingSpaces)
	}
	if attrs.FloodZone != nil {
		comp["flood_zone"] = *attrs.FloodZone
	}
	if attrs.TelecomCompliant != nil {
		comp["telecom_compliant"] = *attrs.TelecomCompliant
	}
	if attrs.SeismicCompliant != nil {
		comp["seismic_compliant"] = *attrs.SeismicCompliant
	}
	if attrs.StructuralReport != nil {
		comp["structural_report"] = *attrs.StructuralReport
	}
	if attrs.OccupancyCertificate != nil {
		comp["occupancy_certificate"] = *attrs.OccupancyCertificate
	}

	buildingTypes := p.BuildingTypes
	if buildingTypes == nil {
		buildingTypes = []string{}
	}
	amenities := p.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	return map[string]any{
		"state":          p.State,
		"city":           p.City,
		"zip":            p.ZipCode,
		"tenancy":        p.Tenancy,
		"rate":           p.RatePerSqft,
		"sqft_min":       int64(p.SquareFeetMin),
		"sqft_max":       int64(p.SquareFeetMax),
		"suite_count":    int64(p.SuiteCount),
		"building_types": buildingTypes,
		"amenities":      amenities,
		"compliance":     comp,
	}
}
