package matcher

import (
	"testing"

	"github.com/openlease/harrier/internal/domain"
)

func result(id string, relevance int) domain.MatchResult {
	return domain.MatchResult{
		Property:  &domain.Property{ID: id},
		Relevance: relevance,
	}
}

func TestAggregate(t *testing.T) {
	th := domain.DefaultLevelThresholds()

	t.Run("ThresholdPartition", func(t *testing.T) {
		scored := []domain.MatchResult{
			result("a", 90),
			result("b", 72),
			result("c", 40),
		}

		admitted, rejected, summary := aggregate(scored, nil, 60, th)

		if len(admitted) != 2 {
			t.Fatalf("expected 2 admitted, got %d", len(admitted))
		}
		if len(rejected) != 1 || rejected[0].Property.ID != "c" {
			t.Fatalf("expected c rejected, got %v", rejected)
		}
		if rejected[0].Stage != domain.StageThreshold {
			t.Errorf("expected threshold stage, got %s", rejected[0].Stage)
		}
		if rejected[0].Reasons[0] != "relevance below threshold: 40% < 60%" {
			t.Errorf("unexpected reason: %s", rejected[0].Reasons[0])
		}
		if summary.Admitted != 2 {
			t.Errorf("expected summary admitted 2, got %d", summary.Admitted)
		}
	})

	t.Run("LevelsAssigned", func(t *testing.T) {
		scored := []domain.MatchResult{
			result("excellent", 92),
			result("good", 75),
			result("fair", 60),
			result("poor", 20),
		}

		admitted, _, summary := aggregate(scored, nil, 0, th)

		levels := make(map[string]domain.MatchLevel)
		for _, res := range admitted {
			levels[res.Property.ID] = res.Level
		}
		if levels["excellent"] != domain.LevelExcellent ||
			levels["good"] != domain.LevelGood ||
			levels["fair"] != domain.LevelFair ||
			levels["poor"] != domain.LevelPoor {
			t.Errorf("unexpected level assignment: %v", levels)
		}

		if summary.Excellent != 1 || summary.Good != 1 || summary.Fair != 1 || summary.Poor != 1 {
			t.Errorf("unexpected level counts: %+v", summary)
		}
	})

	t.Run("AverageRelevance", func(t *testing.T) {
		scored := []domain.MatchResult{
			result("a", 80),
			result("b", 60),
		}

		_, _, summary := aggregate(scored, nil, 0, th)
		if summary.AverageRelevance != 70 {
			t.Errorf("expected average 70, got %v", summary.AverageRelevance)
		}
	})

	t.Run("EmptyAverageIsZero", func(t *testing.T) {
		_, _, summary := aggregate(nil, nil, 0, th)
		if summary.AverageRelevance != 0 {
			t.Errorf("expected zero average for empty input, got %v", summary.AverageRelevance)
		}
	})

	t.Run("RerankOrderWins", func(t *testing.T) {
		scored := []domain.MatchResult{
			result("a", 90),
			result("b", 80),
			result("c", 70),
		}

		admitted, _, _ := aggregate(scored, []string{"c", "a", "b"}, 0, th)

		got := []string{admitted[0].Property.ID, admitted[1].Property.ID, admitted[2].Property.ID}
		want := []string{"c", "a", "b"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, got)
			}
		}
	})

	t.Run("UnrankedSortAfterRanked", func(t *testing.T) {
		scored := []domain.MatchResult{
			result("a", 90),
			result("b", 80),
			result("c", 70),
		}

		// b is missing from the order: it keeps its position after the
		// ranked entries.
		admitted, _, _ := aggregate(scored, []string{"c", "a"}, 0, th)

		got := []string{admitted[0].Property.ID, admitted[1].Property.ID, admitted[2].Property.ID}
		want := []string{"c", "a", "b"}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("expected order %v, got %v", want, got)
			}
		}
	})

	t.Run("ThresholdAppliesBeforeReorder", func(t *testing.T) {
		scored := []domain.MatchResult{
			result("a", 90),
			result("b", 30),
		}

		admitted, rejected, _ := aggregate(scored, []string{"b", "a"}, 50, th)

		if len(admitted) != 1 || admitted[0].Property.ID != "a" {
			t.Fatalf("rerank order must not resurrect thresholded candidates: %v", admitted)
		}
		if len(rejected) != 1 || rejected[0].Property.ID != "b" {
			t.Fatalf("expected b rejected, got %v", rejected)
		}
	})
}
