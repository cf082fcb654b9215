package exchange

import (
	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// Matcher score contributions. An exact match is any score of at least
// scoreExactThreshold; the maximum possible score is 13 (10 + 3).
const (
	scoreCanonicalPeriod = 10
	scoreRawPeriod       = 8
	scoreEquivalent      = 6
	scoreShiftType       = 3
	scoreTimeSlot        = 2
	scoreDateOnly        = 5
	scoreExactThreshold  = 10
)

// MatchShifts matches a freeform list of proposed shifts against an indexed
// assignment set. One result is returned per input, in input order.
//
// Malformed records (missing or unparseable date, empty period) yield a
// "none" result without aborting the batch. An assignment key claimed by one
// proposed shift is removed from candidacy for the rest of the batch, so no
// two inputs ever resolve to the same held shift. The index is never mutated.
func MatchShifts(proposed []models.ProposedShift, idx *AssignmentIndex) []models.MatchResult {
	results := make([]models.MatchResult, len(proposed))
	claimed := make(map[string]bool)

	for i, p := range proposed {
		results[i] = matchOne(p, idx, claimed)
		if results[i].MatchedAssignmentKey != "" {
			claimed[results[i].MatchedAssignmentKey] = true
		}
	}
	return results
}

func matchOne(p models.ProposedShift, idx *AssignmentIndex, claimed map[string]bool) models.MatchResult {
	none := models.MatchResult{MatchType: models.MatchNone}

	date, err := NormalizeDate(p.Date)
	if err != nil || p.Period == "" {
		return none
	}

	// Slot lookup hits both the canonical and the raw index; dedupe by key.
	candidates := dedupeByKey(idx.Lookup(date, p.Period))

	var best *IndexedAssignment
	bestScore := 0
	for i := range candidates {
		c := &candidates[i]
		if claimed[c.Key] {
			continue
		}
		score := scoreSlotCandidate(p, c)
		if best == nil || score > bestScore {
			best = c
			bestScore = score
		}
	}
	if best != nil {
		return classify(best.Key, bestScore)
	}

	// No slot hit: date-only scan across the whole index. Any assignment on
	// the same date scores 5, +3 for an equivalent period, +2 for a matching
	// shift type.
	all := idx.All()
	for i := range all {
		c := &all[i]
		if claimed[c.Key] {
			continue
		}
		candDate, err := NormalizeDate(c.Assignment.Date)
		if err != nil || candDate != date {
			continue
		}
		score := scoreDateOnly
		if PeriodsEquivalent(c.RawPeriod, p.Period) {
			score += 3
		}
		if c.Assignment.ShiftType != "" && c.Assignment.ShiftType == p.ShiftType {
			score += 2
		}
		if best == nil || score > bestScore {
			best = c
			bestScore = score
		}
	}
	if best != nil {
		return classify(best.Key, bestScore)
	}
	return none
}

// scoreSlotCandidate applies the weighted scoring of a slot-level candidate:
// +10 canonical period equality, else +8 raw label equality, else +6
// equivalence; +3 matching shift type; +2 matching time slot.
func scoreSlotCandidate(p models.ProposedShift, c *IndexedAssignment) int {
	score := 0
	switch {
	case c.CanonicalPeriod == NormalizePeriod(p.Period):
		score += scoreCanonicalPeriod
	case foldPeriod(c.RawPeriod) == foldPeriod(p.Period):
		score += scoreRawPeriod
	case PeriodsEquivalent(c.RawPeriod, p.Period):
		score += scoreEquivalent
	}
	if c.Assignment.ShiftType != "" && c.Assignment.ShiftType == p.ShiftType {
		score += scoreShiftType
	}
	if c.Assignment.TimeSlot != "" && c.Assignment.TimeSlot == p.TimeSlot {
		score += scoreTimeSlot
	}
	return score
}

func classify(key string, score int) models.MatchResult {
	mt := models.MatchPartial
	if score >= scoreExactThreshold {
		mt = models.MatchExact
	}
	return models.MatchResult{MatchedAssignmentKey: key, Score: score, MatchType: mt}
}

func dedupeByKey(in []IndexedAssignment) []IndexedAssignment {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, c := range in {
		if seen[c.Key] {
			continue
		}
		seen[c.Key] = true
		out = append(out, c)
	}
	return out
}
