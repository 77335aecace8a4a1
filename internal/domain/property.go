// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"strconv"
	"strings"
	"time"
)

// Property is a single catalog listing evaluated by the matching engine.
// It mirrors the cre_properties catalog schema and is read-only to the engine.
type Property struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`

	// Coordinates are optional; nil means the listing was never geocoded.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	// BuildingTypes holds the listing categories, e.g. "Office", "Retail".
	BuildingTypes []string `json:"buildingTypes"`
	Tenancy       string   `json:"tenancy,omitempty"`

	// Usable area range in square feet.
	SquareFeetMin int `json:"squareFeetMin"`
	SquareFeetMax int `json:"squareFeetMax"`
	SuiteCount    int `json:"suiteCount,omitempty"`

	// RateText is the raw listing rate, e.g. "$18.50/SF/YR".
	// RatePerSqft is the normalized annual rate per square foot.
	RateText    string  `json:"rateText,omitempty"`
	RatePerSqft float64 `json:"ratePerSqft"`

	Description string   `json:"description,omitempty"`
	Amenities   []string `json:"amenities,omitempty"`

	Compliance ComplianceAttributes `json:"compliance"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// ComplianceAttributes are the regulatory facts known about a listing.
// Pointer fields distinguish "known false" from "never surveyed": a nil
// value must surface as requires_verification, never as a silent pass.
type ComplianceAttributes struct {
	FireSuppression      *bool   `json:"fireSuppression,omitempty"`
	FireAlarm            *bool   `json:"fireAlarm,omitempty"`
	ADAEntrance          *bool   `json:"adaEntrance,omitempty"`
	ADARestrooms         *int    `json:"adaRestrooms,omitempty"`
	ADAParkingSpaces     *int    `json:"adaParkingSpaces,omitempty"`
	FloodZone            *string `json:"floodZone,omitempty"` // FEMA zone designation, e.g. "X", "AE"
	TelecomCompliant     *bool   `json:"telecomCompliant,omitempty"`
	SeismicCompliant     *bool   `json:"seismicCompliant,omitempty"`
	StructuralReport     *bool   `json:"structuralReport,omitempty"`
	OccupancyCertificate *bool   `json:"occupancyCertificate,omitempty"`
}

// HasCoordinates reports whether the listing has been geocoded.
func (p *Property) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// InFloodZone reports whether the listing sits in a FEMA special flood
// hazard area. Zones X, B and C are outside the hazard area.
func (p *Property) InFloodZone() (bool, bool) {
	if p.Compliance.FloodZone == nil {
		return false, false
	}
	zone := strings.ToUpper(strings.TrimSpace(*p.Compliance.FloodZone))
	switch zone {
	case "", "X", "B", "C", "NONE":
		return false, true
	default:
		return true, true
	}
}

// SearchableText returns the description and amenity tags joined for
// keyword scanning, lowercased.
func (p *Property) SearchableText() string {
	parts := make([]string, 0, len(p.Amenities)+2)
	parts = append(parts, p.Description, p.Tenancy)
	parts = append(parts, p.Amenities...)
	return strings.ToLower(strings.Join(parts, " "))
}

// ParseRateText extracts the numeric annual rate per square foot from a
// raw listing string such as "$18.50/SF/YR" or "18.50 SF/Year". Returns
// false when no leading number is present, e.g. "Negotiable".
func ParseRateText(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)

	end := 0
	seenDigit := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			seenDigit = true
			end++
			continue
		}
		if c == ',' || (c == '.' && seenDigit) {
			end++
			continue
		}
		break
	}
	if !seenDigit {
		return 0, false
	}

	num := strings.ReplaceAll(s[:end], ",", "")
	num = strings.TrimSuffix(num, ".")
	rate, err := strconv.ParseFloat(num, 64)
	if err != nil || rate < 0 {
		return 0, false
	}
	return rate, true
}
