// Package compliance provides the regulatory rule catalog and the
// per-property compliance evaluator.
package compliance

import (
	"fmt"

	"github.com/openlease/harrier/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// BuiltinRules returns the fixed rule catalog. Rules gate themselves on
// the criteria's requirement flags: a dimension the tenancy does not
// require evaluates to not_applicable.
func BuiltinRules() []domain.ComplianceRule {
	return []domain.ComplianceRule{
		{
			ID:          "fire-sprinkler",
			Name:        "Automatic fire suppression",
			Description: "Building must have an automatic sprinkler system",
			Category:    domain.CategoryFireSafety,
			Severity:    domain.SeverityCritical,
			Required:    true,
			Check:       checkFireSprinkler,
		},
		{
			ID:          "fire-alarm",
			Name:        "Fire alarm system",
			Description: "Building must have a monitored fire alarm system",
			Category:    domain.CategoryFireSafety,
			Severity:    domain.SeverityHigh,
			Required:    true,
			Check:       checkFireAlarm,
		},
		{
			ID:          "ada-entrance",
			Name:        "Accessible entrance",
			Description: "Primary entrance must be wheelchair accessible",
			Category:    domain.CategoryAccessibility,
			Severity:    domain.SeverityCritical,
			Required:    true,
			Check:       checkADAEntrance,
		},
		{
			ID:          "ada-restrooms",
			Name:        "Accessible restrooms",
			Description: "At least one accessible restroom per floor served",
			Category:    domain.CategoryAccessibility,
			Severity:    domain.SeverityMedium,
			Required:    false,
			Check:       checkADARestrooms,
		},
		{
			ID:          "ada-parking",
			Name:        "Accessible parking",
			Description: "Accessible parking spaces on site",
			Category:    domain.CategoryAccessibility,
			Severity:    domain.SeverityMedium,
			Required:    false,
			Check:       checkADAParking,
		},
		{
			ID:          "flood-zone",
			Name:        "Flood hazard area",
			Description: "Property must not sit in a FEMA special flood hazard area",
			Category:    domain.CategoryEnvironmental,
			Severity:    domain.SeverityCritical,
			Required:    true,
			Check:       checkFloodZone,
		},
		{
			ID:          "telecom-restriction",
			Name:        "Telecommunications restriction",
			Description: "Building telecom infrastructure must comply with federal sourcing restrictions",
			Category:    domain.CategorySecurity,
			Severity:    domain.SeverityHigh,
			Required:    true,
			Check:       checkTelecom,
		},
		{
			ID:          "seismic-safety",
			Name:        "Seismic safety",
			Description: "Building must meet seismic safety standards for its zone",
			Category:    domain.CategorySeismic,
			Severity:    domain.SeverityHigh,
			Required:    false,
			Check:       checkSeismic,
		},
		{
			ID:          "structural-report",
			Name:        "Structural assessment",
			Description: "A current structural engineering report is on file",
			Category:    domain.CategorySeismic,
			Severity:    domain.SeverityMedium,
			Required:    false,
			Check:       checkStructuralReport,
		},
		{
			ID:          "occupancy-certificate",
			Name:        "Certificate of occupancy",
			Description: "A valid certificate of occupancy is on file",
			Category:    domain.CategoryBuildingCodes,
			Severity:    domain.SeverityHigh,
			Required:    true,
			Check:       checkOccupancyCert,
		},
	}
}

// boolCheck covers the common pattern: a required boolean attribute
// that may be unknown. Unknown never silently passes or fails.
func boolCheck(ruleID string, required bool, value *bool, failDetail, verifyDetail string, remediation []string, cost *float64, days *int) domain.ComplianceResult {
	if !required {
		return domain.ComplianceResult{
			RuleID: ruleID,
			Passed: true,
			Status: domain.StatusNotApplicable,
			Detail: "not required for this tenancy",
		}
	}
	if value == nil {
		return domain.ComplianceResult{
			RuleID:      ruleID,
			Passed:      false,
			Status:      domain.StatusRequiresVerification,
			Detail:      verifyDetail,
			Remediation: []string{"Request documentation from the listing broker"},
		}
	}
	if !*value {
		return domain.ComplianceResult{
			RuleID:           ruleID,
			Passed:           false,
			Status:           domain.StatusNonCompliant,
			Detail:           failDetail,
			Remediation:      remediation,
			EstimatedCostUSD: cost,
			EstimatedDays:    days,
		}
	}
	return domain.ComplianceResult{
		RuleID: ruleID,
		Passed: true,
		Status: domain.StatusCompliant,
	}
}

func checkFireSprinkler(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	return boolCheck("fire-sprinkler", c.Compliance.FireSafety, p.Compliance.FireSuppression,
		"no automatic sprinkler system",
		"sprinkler coverage not documented",
		[]string{"Install an automatic sprinkler system meeting NFPA 13"},
		floatPtr(4.0), intPtr(120))
}

func checkFireAlarm(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	return boolCheck("fire-alarm", c.Compliance.FireSafety, p.Compliance.FireAlarm,
		"no monitored fire alarm system",
		"fire alarm system not documented",
		[]string{"Install a monitored fire alarm system"},
		floatPtr(1.5), intPtr(45))
}

func checkADAEntrance(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	return boolCheck("ada-entrance", c.Compliance.Accessibility, p.Compliance.ADAEntrance,
		"primary entrance is not wheelchair accessible",
		"entrance accessibility not documented",
		[]string{"Add a compliant ramp or automatic door at the primary entrance"},
		floatPtr(0.35), intPtr(60))
}

func checkADARestrooms(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	if !c.Compliance.Accessibility {
		return domain.ComplianceResult{RuleID: "ada-restrooms", Passed: true, Status: domain.StatusNotApplicable, Detail: "not required for this tenancy"}
	}
	count := p.Compliance.ADARestrooms
	if count == nil {
		return domain.ComplianceResult{
			RuleID:      "ada-restrooms",
			Status:      domain.StatusRequiresVerification,
			Detail:      "accessible restroom count not documented",
			Remediation: []string{"Request documentation from the listing broker"},
		}
	}
	if *count < 1 {
		return domain.ComplianceResult{
			RuleID:           "ada-restrooms",
			Status:           domain.StatusNonCompliant,
			Detail:           "no accessible restrooms on site",
			Remediation:      []string{"Retrofit at least one restroom to accessibility standards"},
			EstimatedCostUSD: floatPtr(0.25),
			EstimatedDays:    intPtr(30),
		}
	}
	return domain.ComplianceResult{RuleID: "ada-restrooms", Passed: true, Status: domain.StatusCompliant,
		Detail: fmt.Sprintf("%d accessible restrooms", *count)}
}

func checkADAParking(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	if !c.Compliance.Accessibility {
		return domain.ComplianceResult{RuleID: "ada-parking", Passed: true, Status: domain.StatusNotApplicable, Detail: "not required for this tenancy"}
	}
	count := p.Compliance.ADAParkingSpaces
	if count == nil {
		return domain.ComplianceResult{
			RuleID:      "ada-parking",
			Status:      domain.StatusRequiresVerification,
			Detail:      "accessible parking count not documented",
			Remediation: []string{"Request documentation from the listing broker"},
		}
	}
	if *count < 1 {
		return domain.ComplianceResult{
			RuleID:      "ada-parking",
			Status:      domain.StatusNonCompliant,
			Detail:      "no accessible parking spaces on site",
			Remediation: []string{"Restripe parking to provide accessible spaces"},
		}
	}
	return domain.ComplianceResult{RuleID: "ada-parking", Passed: true, Status: domain.StatusCompliant,
		Detail: fmt.Sprintf("%d accessible parking spaces", *count)}
}

func checkFloodZone(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	if !c.Compliance.FloodZoneRestricted {
		return domain.ComplianceResult{RuleID: "flood-zone", Passed: true, Status: domain.StatusNotApplicable, Detail: "not required for this tenancy"}
	}
	inZone, known := p.InFloodZone()
	if !known {
		return domain.ComplianceResult{
			RuleID:      "flood-zone",
			Status:      domain.StatusRequiresVerification,
			Detail:      "flood zone designation not documented",
			Remediation: []string{"Obtain the FEMA flood map determination for the parcel"},
		}
	}
	if inZone {
		return domain.ComplianceResult{
			RuleID:      "flood-zone",
			Status:      domain.StatusNonCompliant,
			Detail:      fmt.Sprintf("property sits in flood zone %s", *p.Compliance.FloodZone),
			Remediation: []string{"Location is disqualifying; no remediation available"},
		}
	}
	return domain.ComplianceResult{RuleID: "flood-zone", Passed: true, Status: domain.StatusCompliant}
}

func checkTelecom(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	return boolCheck("telecom-restriction", c.Compliance.TelecomRestricted, p.Compliance.TelecomCompliant,
		"telecom infrastructure does not meet federal sourcing restrictions",
		"telecom equipment provenance not documented",
		[]string{"Replace restricted telecom equipment with compliant hardware"},
		floatPtr(0.5), intPtr(90))
}

func checkSeismic(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	return boolCheck("seismic-safety", c.Compliance.Seismic, p.Compliance.SeismicCompliant,
		"building does not meet seismic safety standards",
		"seismic rating not documented",
		[]string{"Commission a seismic evaluation and retrofit as required"},
		nil, nil)
}

func checkStructuralReport(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	return boolCheck("structural-report", c.Compliance.Seismic, p.Compliance.StructuralReport,
		"no current structural engineering report",
		"structural report status not documented",
		[]string{"Commission a structural engineering assessment"},
		nil, intPtr(21))
}

func checkOccupancyCert(p *domain.Property, c *domain.Criteria) domain.ComplianceResult {
	return boolCheck("occupancy-certificate", c.Compliance.OccupancyCertificate, p.Compliance.OccupancyCertificate,
		"no valid certificate of occupancy",
		"certificate of occupancy not documented",
		[]string{"Obtain a certificate of occupancy from the local authority"},
		nil, intPtr(30))
}
