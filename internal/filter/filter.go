// Package filter implements the hard admit/reject stage of the
// matching pipeline. Every rule produces a human-readable reason on
// failure; a candidate may accumulate several reasons before rejection.
package filter

import (
	"fmt"
	"math"
	"strings"

	"github.com/openlease/harrier/internal/domain"
)

// earthRadiusKm is the mean Earth radius used for haversine distance.
const earthRadiusKm = 6371.0

// Apply partitions the catalog into candidates that survive every hard
// constraint and candidates rejected with reasons. It is a pure
// function over its inputs.
func Apply(catalog []*domain.Property, criteria *domain.Criteria) (passed []*domain.Property, rejected []domain.RejectedProperty) {
	passed = make([]*domain.Property, 0, len(catalog))

	for _, p := range catalog {
		reasons := Check(p, criteria)
		if len(reasons) == 0 {
			passed = append(passed, p)
			continue
		}
		rejected = append(rejected, domain.RejectedProperty{
			Property: p,
			Stage:    domain.StageFilter,
			Reasons:  reasons,
		})
	}

	return passed, rejected
}

// Check returns the list of hard-constraint violations for one
// candidate. An empty list means the candidate passes the filter.
func Check(p *domain.Property, c *domain.Criteria) []string {
	var reasons []string

	reasons = append(reasons, locationReasons(p, c.Location)...)

	// Size: range overlap, not point containment.
	if c.MinSquareFeet != nil && p.SquareFeetMax < *c.MinSquareFeet {
		reasons = append(reasons, fmt.Sprintf(
			"maximum available space %d sqft is below required minimum %d sqft",
			p.SquareFeetMax, *c.MinSquareFeet))
	}
	if c.MaxSquareFeet != nil && p.SquareFeetMin > *c.MaxSquareFeet {
		reasons = append(reasons, fmt.Sprintf(
			"minimum divisible space %d sqft exceeds required maximum %d sqft",
			p.SquareFeetMin, *c.MaxSquareFeet))
	}

	if len(c.BuildingTypes) > 0 && !TypesIntersect(p.BuildingTypes, c.BuildingTypes) {
		reasons = append(reasons, fmt.Sprintf(
			"building type %q does not match required types %q",
			strings.Join(p.BuildingTypes, ", "), strings.Join(c.BuildingTypes, ", ")))
	}

	if c.MaxRatePerSqft != nil && p.RatePerSqft > *c.MaxRatePerSqft {
		reasons = append(reasons, fmt.Sprintf(
			"rate $%.2f/sqft exceeds budget ceiling $%.2f/sqft",
			p.RatePerSqft, *c.MaxRatePerSqft))
	}

	return reasons
}

func locationReasons(p *domain.Property, loc *domain.LocationCriteria) []string {
	if loc == nil {
		return nil
	}

	var reasons []string

	// State mismatch is always rejecting: it is the dominant
	// discriminator for regional searches and is never relaxed.
	if loc.State != "" && !strings.EqualFold(strings.TrimSpace(p.State), strings.TrimSpace(loc.State)) {
		reasons = append(reasons, fmt.Sprintf(
			"state %q does not match required state %q", p.State, loc.State))
	}

	// City filtering only applies in strict mode.
	if loc.Strict && loc.City != "" && !CityMatches(p.City, loc.City) {
		reasons = append(reasons, fmt.Sprintf(
			"city %q does not match required city %q", p.City, loc.City))
	}

	if len(loc.ZipCodes) > 0 && !zipIn(p.ZipCode, loc.ZipCodes) {
		reasons = append(reasons, fmt.Sprintf(
			"zip code %q is not in the required set %q",
			p.ZipCode, strings.Join(loc.ZipCodes, ", ")))
	}

	// Radius check only runs when both sides have coordinates.
	if loc.HasCenter() && p.HasCoordinates() {
		dist := Haversine(*p.Latitude, *p.Longitude, *loc.Latitude, *loc.Longitude)
		if dist > *loc.RadiusKm {
			reasons = append(reasons, fmt.Sprintf(
				"distance %.1f km exceeds maximum radius %.1f km", dist, *loc.RadiusKm))
		}
	}

	return reasons
}

// CityMatches reports whether either city name contains the other,
// case-insensitively. Listing data commonly carries variants like
// "St. Cloud" vs "Saint Cloud" suffixes, so containment in either
// direction counts.
func CityMatches(candidate, target string) bool {
	a := strings.ToLower(strings.TrimSpace(candidate))
	b := strings.ToLower(strings.TrimSpace(target))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// TypesIntersect reports whether any candidate type matches any
// required type by case-insensitive substring in either direction.
func TypesIntersect(candidate, required []string) bool {
	for _, have := range candidate {
		h := strings.ToLower(strings.TrimSpace(have))
		if h == "" {
			continue
		}
		for _, want := range required {
			w := strings.ToLower(strings.TrimSpace(want))
			if w == "" {
				continue
			}
			if strings.Contains(h, w) || strings.Contains(w, h) {
				return true
			}
		}
	}
	return false
}

func zipIn(zip string, set []string) bool {
	z := strings.TrimSpace(zip)
	for _, s := range set {
		if z == strings.TrimSpace(s) {
			return true
		}
	}
	return false
}

// Haversine returns the great-circle distance in kilometers between
// two coordinate pairs.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180.0

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
