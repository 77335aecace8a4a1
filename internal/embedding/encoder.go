// Package embedding provides feature-vector encoding, a small learned
// similarity model, and cosine-based re-ranking of scored candidates.
package embedding

import (
	"strings"

	"github.com/openlease/harrier/internal/domain"
)

// Closed vocabularies for multi-hot encoding. Order is part of the
// encoding contract; append only.
var (
	stateCodes = []string{
		"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
		"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
		"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
		"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
		"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
		"DC",
	}

	// Fixed-size arrays so len() stays a constant expression.
	buildingTypeVocab = [8]string{
		"office", "retail", "industrial", "warehouse", "medical",
		"flex", "mixed", "land",
	}

	amenityVocab = [10]string{
		"parking", "security", "elevator", "conference", "fitness",
		"cafeteria", "generator", "fiber", "hvac", "loading",
	}

	governmentKeywords = [6]string{
		"ada", "accessible", "sprinkler", "security", "class a", "federal",
	}

	// Size buckets in square feet, upper bounds.
	sizeBuckets = []int{2500, 5000, 10000, 25000}

	// Rate buckets in $/sqft/yr, upper bounds.
	rateBuckets = []float64{15, 25, 40}
)

// FeatureDim is the length of the raw feature vector fed to the model.
// location(4) + size(2+5) + types(8) + amenities(10+1) + financial(1+4)
// + government keywords(6).
const FeatureDim = 4 + 7 + len(buildingTypeVocab) + len(amenityVocab) + 1 + 5 + len(governmentKeywords)

var stateIndex = func() map[string]int {
	m := make(map[string]int, len(stateCodes))
	for i, s := range stateCodes {
		m[s] = i
	}
	return m
}()

// Encode produces the fixed-length feature vector for a property. The
// vector is a concatenation of the location, size, building-type,
// amenity, financial and suitability sub-vectors.
func Encode(p *domain.Property) []float64 {
	v := make([]float64, 0, FeatureDim)
	v = append(v, locationFeatures(p)...)
	v = append(v, sizeFeatures(p)...)
	v = append(v, multiHot(p.BuildingTypes, buildingTypeVocab[:])...)
	v = append(v, amenityFeatures(p)...)
	v = append(v, financialFeatures(p)...)
	v = append(v, keywordFeatures(p)...)
	return v
}

func locationFeatures(p *domain.Property) []float64 {
	f := make([]float64, 4)

	if idx, ok := stateIndex[strings.ToUpper(strings.TrimSpace(p.State))]; ok {
		f[0] = float64(idx+1) / float64(len(stateCodes))
	}
	if p.HasCoordinates() {
		f[1] = *p.Latitude / 90.0
		f[2] = *p.Longitude / 180.0
	}
	if urbanDensity(p) {
		f[3] = 1
	}

	return f
}

// urbanDensity is a coarse signal for dense urban stock: multi-suite
// buildings or listings describing a downtown setting.
func urbanDensity(p *domain.Property) bool {
	if p.SuiteCount >= 4 {
		return true
	}
	text := p.SearchableText()
	for _, kw := range []string{"downtown", "cbd", "urban", "high-rise"} {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

const sizeNormCeiling = 100000.0

func sizeFeatures(p *domain.Property) []float64 {
	f := make([]float64, 2+len(sizeBuckets)+1)

	f[0] = clamp01(float64(p.SquareFeetMin) / sizeNormCeiling)
	f[1] = clamp01(float64(p.SquareFeetMax) / sizeNormCeiling)

	mid := (p.SquareFeetMin + p.SquareFeetMax) / 2
	f[2+bucketIndex(mid)] = 1

	return f
}

func bucketIndex(size int) int {
	for i, upper := range sizeBuckets {
		if size < upper {
			return i
		}
	}
	return len(sizeBuckets)
}

func amenityFeatures(p *domain.Property) []float64 {
	text := p.SearchableText()
	f := make([]float64, len(amenityVocab)+1)

	present := 0
	for i, amenity := range amenityVocab {
		if strings.Contains(text, amenity) {
			f[i] = 1
			present++
		}
	}

	// Richness: fraction of the vocabulary the listing covers.
	f[len(amenityVocab)] = float64(present) / float64(len(amenityVocab))

	return f
}

const rateNormCeiling = 100.0

func financialFeatures(p *domain.Property) []float64 {
	f := make([]float64, 1+len(rateBuckets)+1)

	f[0] = clamp01(p.RatePerSqft / rateNormCeiling)

	idx := len(rateBuckets)
	for i, upper := range rateBuckets {
		if p.RatePerSqft < upper {
			idx = i
			break
		}
	}
	f[1+idx] = 1

	return f
}

func keywordFeatures(p *domain.Property) []float64 {
	text := p.SearchableText()
	f := make([]float64, len(governmentKeywords))
	for i, kw := range governmentKeywords {
		if strings.Contains(text, kw) {
			f[i] = 1
		}
	}
	return f
}

func multiHot(values, vocab []string) []float64 {
	f := make([]float64, len(vocab))
	for _, val := range values {
		v := strings.ToLower(strings.TrimSpace(val))
		for i, entry := range vocab {
			if strings.Contains(v, entry) || strings.Contains(entry, v) {
				f[i] = 1
			}
		}
	}
	return f
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IdealProperty synthesizes a virtual property from a criteria's
// midpoints and preferences, used as the comparison target when ranking
// candidates against requirements rather than a concrete listing. The
// result carries no ID: it is criteria-specific and must never enter the
// per-property embedding cache or store.
func IdealProperty(c *domain.Criteria) *domain.Property {
	p := &domain.Property{}

	if c.Location != nil {
		p.State = c.Location.State
		p.City = c.Location.City
		if len(c.Location.ZipCodes) > 0 {
			p.ZipCode = c.Location.ZipCodes[0]
		}
		if c.Location.Latitude != nil && c.Location.Longitude != nil {
			lat, lon := *c.Location.Latitude, *c.Location.Longitude
			p.Latitude = &lat
			p.Longitude = &lon
		}
	}

	switch {
	case c.MinSquareFeet != nil && c.MaxSquareFeet != nil:
		p.SquareFeetMin = *c.MinSquareFeet
		p.SquareFeetMax = *c.MaxSquareFeet
	case c.MinSquareFeet != nil:
		p.SquareFeetMin = *c.MinSquareFeet
		p.SquareFeetMax = *c.MinSquareFeet
	case c.MaxSquareFeet != nil:
		p.SquareFeetMin = *c.MaxSquareFeet
		p.SquareFeetMax = *c.MaxSquareFeet
	}

	p.BuildingTypes = append([]string(nil), c.BuildingTypes...)

	if c.MaxRatePerSqft != nil {
		// Aim slightly under budget; at-budget listings are acceptable
		// but savings are preferred.
		p.RatePerSqft = *c.MaxRatePerSqft * 0.9
	}

	// The ideal listing carries every amenity and keyword the
	// compliance requirements imply.
	if c.Compliance.Accessibility {
		p.Amenities = append(p.Amenities, "ada accessible")
	}
	if c.Compliance.FireSafety {
		p.Amenities = append(p.Amenities, "sprinkler")
	}
	if c.Compliance.Security {
		p.Amenities = append(p.Amenities, "security")
	}
	p.Amenities = append(p.Amenities, "parking", "fiber", "class a")

	return p
}
