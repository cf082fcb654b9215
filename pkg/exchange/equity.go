package exchange

import (
	"sort"

	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// defaultShiftValue is used when the policy carries no weight for a type.
const defaultShiftValue = 50.0

// Blend weights per distribution mode, in the order
// (satisfaction deficit, demand priority, shift value).
var blendWeights = map[models.DistributionMode][3]float64{
	models.ModeEquity:   {0.60, 0.25, 0.15},
	models.ModePriority: {0.25, 0.60, 0.15},
	models.ModeMixed:    {0.40, 0.40, 0.20},
}

// ScoreCandidates scores every interested candidate for a contested listing
// against the cycle's fairness policy. It mutates nothing and is safe to call
// repeatedly for what-if previews; one SuggestionScore is returned per
// candidate, in candidate order.
func ScoreCandidates(listing models.ShiftExchangeListing, candidateIDs []string, statsByUser map[string]models.UserDemandStats, policy models.EquityPolicy) []models.SuggestionScore {
	weights, ok := blendWeights[policy.DistributionMode]
	if !ok {
		weights = blendWeights[models.ModeMixed]
	}

	out := make([]models.SuggestionScore, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		stats := statsByUser[id] // zero stats for unknown users: no demand yet
		stats.UserID = id

		deficit := satisfactionDeficit(stats, policy)
		demand := demandPriority(stats, policy)
		value := shiftValue(listing.ShiftType, policy)
		score := weights[0]*deficit + weights[1]*demand + weights[2]*value

		s := models.SuggestionScore{
			UserID:              id,
			SatisfactionDeficit: deficit,
			DemandPriority:      demand,
			ShiftValue:          value,
			EquityScore:         score,
			Impact:              allocationImpact(stats, policy),
		}
		s.Recommendation, s.Color = band(score)
		out = append(out, s)
	}
	return out
}

// RankCandidates orders scores for allocation: highest equity score first,
// ties broken by the less-demanding candidate, then by interest insertion
// order (the sort is stable over the input order).
func RankCandidates(scores []models.SuggestionScore, statsByUser map[string]models.UserDemandStats) []models.SuggestionScore {
	ranked := append([]models.SuggestionScore(nil), scores...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].EquityScore != ranked[j].EquityScore {
			return ranked[i].EquityScore > ranked[j].EquityScore
		}
		return statsByUser[ranked[i].UserID].RequestedCount < statsByUser[ranked[j].UserID].RequestedCount
	})
	return ranked
}

// satisfactionDeficit measures how far the candidate sits below the policy's
// target satisfaction rate, on a 0-100 scale.
func satisfactionDeficit(stats models.UserDemandStats, policy models.EquityPolicy) float64 {
	d := policy.TargetSatisfactionRate - stats.SatisfactionRate
	if d < 0 {
		return 0
	}
	return d * 100
}

// demandPriority weights candidates inversely by how much they asked for.
// Users below the small-demand threshold collect a policy-scaled bonus so
// that a member asking for one shift is not drowned out by heavy requesters.
func demandPriority(stats models.UserDemandStats, policy models.EquityPolicy) float64 {
	base := 100.0
	if stats.RequestedCount > 0 {
		base = 100.0 / float64(stats.RequestedCount)
	}
	if base > 100 {
		base = 100
	}

	threshold := policy.SmallDemandThreshold
	if threshold <= 0 {
		threshold = 3
	}
	if stats.RequestedCount < threshold {
		base += policy.SmallDemandBonus * float64(threshold-stats.RequestedCount) / float64(threshold)
	}
	if base > 200 {
		base = 200
	}
	return base
}

func shiftValue(shiftType string, policy models.EquityPolicy) float64 {
	if v, ok := policy.ShiftTypeValues[shiftType]; ok {
		return v
	}
	return defaultShiftValue
}

// allocationImpact previews the candidate's satisfaction rate if this shift
// were granted to them, without touching any state.
func allocationImpact(stats models.UserDemandStats, policy models.EquityPolicy) models.AllocationImpact {
	projected := 1.0
	if stats.RequestedCount > 0 {
		projected = float64(stats.ReceivedCount+1) / float64(stats.RequestedCount)
		if projected > 1 {
			projected = 1
		}
	}
	remaining := (policy.TargetSatisfactionRate - projected) * 100
	if remaining < 0 {
		remaining = 0
	}
	return models.AllocationImpact{
		ProjectedRate:    projected,
		Delta:            projected - stats.SatisfactionRate,
		RemainingDeficit: remaining,
	}
}

// band derives the advisory recommendation from the equity score. The color
// is a display hint only; allocation decisions stay with the admin.
func band(score float64) (string, string) {
	switch {
	case score >= 60:
		return "recommended", "green"
	case score >= 30:
		return "possible", "orange"
	default:
		return "low", "red"
	}
}
