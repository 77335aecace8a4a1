package filter

import (
	"math"
	"strings"
	"testing"

	"github.com/openlease/harrier/internal/domain"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func listing(id string) *domain.Property {
	return &domain.Property{
		ID:            id,
		Address:       "1234 Commerce Pkwy",
		City:          "St. Cloud",
		State:         "FL",
		ZipCode:       "34769",
		Latitude:      fptr(28.2489),
		Longitude:     fptr(-81.2812),
		BuildingTypes: []string{"Office"},
		SquareFeetMin: 1200,
		SquareFeetMax: 6000,
		RatePerSqft:   21.50,
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*domain.Property)
		criteria *domain.Criteria
		want     string // substring of a rejection reason, "" for pass
	}{
		{
			name:     "EmptyCriteriaPasses",
			mutate:   func(p *domain.Property) {},
			criteria: &domain.Criteria{},
			want:     "",
		},
		{
			name:   "StateMismatch",
			mutate: func(p *domain.Property) { p.State = "GA" },
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{State: "FL"},
			},
			want: "does not match required state",
		},
		{
			name:   "StateCaseInsensitive",
			mutate: func(p *domain.Property) { p.State = "fl" },
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{State: "FL"},
			},
			want: "",
		},
		{
			name:   "CityIgnoredWhenNotStrict",
			mutate: func(p *domain.Property) { p.City = "Kissimmee" },
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{City: "St. Cloud"},
			},
			want: "",
		},
		{
			name:   "CityRejectedWhenStrict",
			mutate: func(p *domain.Property) { p.City = "Kissimmee" },
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{City: "St. Cloud", Strict: true},
			},
			want: "does not match required city",
		},
		{
			name:   "CityVariantAcceptedWhenStrict",
			mutate: func(p *domain.Property) { p.City = "Saint Cloud" },
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{City: "Cloud", Strict: true},
			},
			want: "",
		},
		{
			name:   "ZipNotInSet",
			mutate: func(p *domain.Property) { p.ZipCode = "34744" },
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{ZipCodes: []string{"34769", "34771", "34772"}},
			},
			want: "not in the required set",
		},
		{
			name:   "ZipInSet",
			mutate: func(p *domain.Property) { p.ZipCode = "34772" },
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{ZipCodes: []string{"34769", "34771", "34772"}},
			},
			want: "",
		},
		{
			name:   "TooSmall",
			mutate: func(p *domain.Property) { p.SquareFeetMax = 3000 },
			criteria: &domain.Criteria{
				MinSquareFeet: iptr(4237),
			},
			want: "below required minimum",
		},
		{
			name:   "TooLargeToDivide",
			mutate: func(p *domain.Property) { p.SquareFeetMin = 8000 },
			criteria: &domain.Criteria{
				MaxSquareFeet: iptr(4542),
			},
			want: "exceeds required maximum",
		},
		{
			name:   "SizeRangeOverlapPasses",
			mutate: func(p *domain.Property) { p.SquareFeetMin = 4000; p.SquareFeetMax = 4300 },
			criteria: &domain.Criteria{
				MinSquareFeet: iptr(4237),
				MaxSquareFeet: iptr(4542),
			},
			want: "",
		},
		{
			name:   "TypeMismatch",
			mutate: func(p *domain.Property) { p.BuildingTypes = []string{"Industrial"} },
			criteria: &domain.Criteria{
				BuildingTypes: []string{"Office"},
			},
			want: "building type",
		},
		{
			name:   "TypeSubstringMatch",
			mutate: func(p *domain.Property) { p.BuildingTypes = []string{"Office Building"} },
			criteria: &domain.Criteria{
				BuildingTypes: []string{"office"},
			},
			want: "",
		},
		{
			name:   "OverBudget",
			mutate: func(p *domain.Property) { p.RatePerSqft = 35 },
			criteria: &domain.Criteria{
				MaxRatePerSqft: fptr(30),
			},
			want: "exceeds budget ceiling",
		},
		{
			name: "OutsideRadius",
			mutate: func(p *domain.Property) {
				// Roughly Miami, about 250 km from the St. Cloud center.
				p.Latitude = fptr(25.7617)
				p.Longitude = fptr(-80.1918)
			},
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{
					Latitude:  fptr(28.2489),
					Longitude: fptr(-81.2812),
					RadiusKm:  fptr(25),
				},
			},
			want: "exceeds maximum radius",
		},
		{
			name: "NoCoordinatesSkipsRadius",
			mutate: func(p *domain.Property) {
				p.Latitude = nil
				p.Longitude = nil
			},
			criteria: &domain.Criteria{
				Location: &domain.LocationCriteria{
					Latitude:  fptr(28.2489),
					Longitude: fptr(-81.2812),
					RadiusKm:  fptr(25),
				},
			},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := listing("prop-1")
			tt.mutate(p)

			reasons := Check(p, tt.criteria)
			if tt.want == "" {
				if len(reasons) != 0 {
					t.Fatalf("expected pass, got reasons: %v", reasons)
				}
				return
			}
			found := false
			for _, r := range reasons {
				if strings.Contains(r, tt.want) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected a reason containing %q, got %v", tt.want, reasons)
			}
		})
	}
}

func TestCheckAccumulatesReasons(t *testing.T) {
	p := listing("prop-multi")
	p.State = "GA"
	p.RatePerSqft = 50

	c := &domain.Criteria{
		Location:       &domain.LocationCriteria{State: "FL"},
		MaxRatePerSqft: fptr(30),
	}

	reasons := Check(p, c)
	if len(reasons) != 2 {
		t.Fatalf("expected 2 reasons, got %d: %v", len(reasons), reasons)
	}
}

func TestApply(t *testing.T) {
	good := listing("prop-good")
	wrongState := listing("prop-state")
	wrongState.State = "TX"
	tooSmall := listing("prop-small")
	tooSmall.SquareFeetMax = 500

	c := &domain.Criteria{
		Location:      &domain.LocationCriteria{State: "FL"},
		MinSquareFeet: iptr(4000),
	}

	passed, rejected := Apply([]*domain.Property{good, wrongState, tooSmall}, c)

	if len(passed) != 1 || passed[0].ID != "prop-good" {
		t.Fatalf("expected only prop-good to pass, got %d", len(passed))
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejections, got %d", len(rejected))
	}
	for _, r := range rejected {
		if r.Stage != domain.StageFilter {
			t.Errorf("expected stage %q, got %q", domain.StageFilter, r.Stage)
		}
		if len(r.Reasons) == 0 {
			t.Errorf("rejection for %s has no reasons", r.Property.ID)
		}
	}
}

func TestHaversine(t *testing.T) {
	t.Run("ZeroDistance", func(t *testing.T) {
		if d := Haversine(28.2489, -81.2812, 28.2489, -81.2812); d != 0 {
			t.Errorf("expected 0, got %v", d)
		}
	})

	t.Run("KnownDistance", func(t *testing.T) {
		// Orlando to Tampa is roughly 135 km.
		d := Haversine(28.5383, -81.3792, 27.9506, -82.4572)
		if math.Abs(d-135) > 5 {
			t.Errorf("expected about 135 km, got %v", d)
		}
	})

	t.Run("Symmetric", func(t *testing.T) {
		a := Haversine(28.5383, -81.3792, 27.9506, -82.4572)
		b := Haversine(27.9506, -82.4572, 28.5383, -81.3792)
		if math.Abs(a-b) > 1e-9 {
			t.Errorf("distance should be symmetric: %v vs %v", a, b)
		}
	})
}

func TestCityMatches(t *testing.T) {
	tests := []struct {
		candidate, target string
		want              bool
	}{
		{"St. Cloud", "st. cloud", true},
		{"Saint Cloud", "Cloud", true},
		{"Cloud", "Saint Cloud", true},
		{"Kissimmee", "St. Cloud", false},
		{"", "St. Cloud", false},
		{"St. Cloud", "", false},
	}

	for _, tt := range tests {
		if got := CityMatches(tt.candidate, tt.target); got != tt.want {
			t.Errorf("CityMatches(%q, %q) = %v, want %v", tt.candidate, tt.target, got, tt.want)
		}
	}
}

func TestTypesIntersect(t *testing.T) {
	tests := []struct {
		name      string
		candidate []string
		required  []string
		want      bool
	}{
		{"ExactMatch", []string{"Office"}, []string{"Office"}, true},
		{"CaseInsensitive", []string{"OFFICE"}, []string{"office"}, true},
		{"SubstringEitherWay", []string{"Office Building"}, []string{"Office"}, true},
		{"NoOverlap", []string{"Retail"}, []string{"Office"}, false},
		{"EmptyCandidate", nil, []string{"Office"}, false},
		{"SecondTypeMatches", []string{"Retail", "Office"}, []string{"Office"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypesIntersect(tt.candidate, tt.required); got != tt.want {
				t.Errorf("TypesIntersect(%v, %v) = %v, want %v", tt.candidate, tt.required, got, tt.want)
			}
		})
	}
}
