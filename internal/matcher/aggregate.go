package matcher

import (
	"fmt"
	"sort"

	"github.com/openlease/harrier/internal/domain"
)

// aggregate applies the minimum-relevance threshold, reorders admitted
// matches per the embedding re-rank order when present, and computes
// the summary. The reorder is stable: ties keep the original
// relevance-score order.
func aggregate(scored []domain.MatchResult, rerankOrder []string, minRelevance float64, th domain.LevelThresholds) ([]domain.MatchResult, []domain.RejectedProperty, domain.MatchSummary) {
	admitted := make([]domain.MatchResult, 0, len(scored))
	var rejected []domain.RejectedProperty

	for _, res := range scored {
		if float64(res.Relevance) < minRelevance {
			rejected = append(rejected, domain.RejectedProperty{
				Property: res.Property,
				Stage:    domain.StageThreshold,
				Reasons: []string{fmt.Sprintf(
					"relevance below threshold: %d%% < %g%%", res.Relevance, minRelevance)},
			})
			continue
		}
		res.Level = domain.LevelFor(res.Relevance, th)
		admitted = append(admitted, res)
	}

	if len(rerankOrder) > 0 {
		admitted = reorder(admitted, rerankOrder)
	}

	return admitted, rejected, summarize(admitted, len(scored))
}

// reorder sorts admitted results by their rank in the re-rank order.
// Results missing from the order sort after ranked ones, keeping their
// existing relative order.
func reorder(admitted []domain.MatchResult, order []string) []domain.MatchResult {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i
	}

	sort.SliceStable(admitted, func(i, j int) bool {
		ri, iOK := rank[admitted[i].Property.ID]
		rj, jOK := rank[admitted[j].Property.ID]
		if iOK != jOK {
			return iOK
		}
		if !iOK {
			return false
		}
		return ri < rj
	})

	return admitted
}

func summarize(admitted []domain.MatchResult, totalScored int) domain.MatchSummary {
	summary := domain.MatchSummary{
		TotalEvaluated: totalScored,
		Admitted:       len(admitted),
	}

	var totalRelevance int
	for _, res := range admitted {
		totalRelevance += res.Relevance
		switch res.Level {
		case domain.LevelExcellent:
			summary.Excellent++
		case domain.LevelGood:
			summary.Good++
		case domain.LevelFair:
			summary.Fair++
		default:
			summary.Poor++
		}
	}

	if len(admitted) > 0 {
		summary.AverageRelevance = float64(totalRelevance) / float64(len(admitted))
	}

	return summary
}
