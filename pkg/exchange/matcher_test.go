package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosbx/planidocs-exchange/pkg/models"
)

func TestMatchShifts_ExactMatch(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "morning", ShiftType: "NL", TimeSlot: "08:00-20:00"},
	})

	results := MatchShifts([]models.ProposedShift{
		{Date: "2025-03-10", Period: "Matin", ShiftType: "NL", TimeSlot: "20:00-08:00"},
	}, idx)

	require.Len(t, results, 1)
	// 10 for the canonical period, 3 for the shift type; the stored time slot
	// differs so no +2.
	assert.Equal(t, 13, results[0].Score)
	assert.Equal(t, models.MatchExact, results[0].MatchType)
	assert.Equal(t, "a1", results[0].MatchedAssignmentKey)
}

func TestMatchShifts_FullScore(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "Matin", ShiftType: "NL", TimeSlot: "20:00-08:00"},
	})

	results := MatchShifts([]models.ProposedShift{
		{Date: "2025-03-10", Period: "morning", ShiftType: "NL", TimeSlot: "20:00-08:00"},
	}, idx)

	require.Len(t, results, 1)
	assert.Equal(t, 15, results[0].Score)
	assert.Equal(t, models.MatchExact, results[0].MatchType)
}

func TestMatchShifts_DateOnlyFallback(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
	})

	// Evening proposal: no slot hit, but the date-only scan still pairs it
	// with the morning assignment on the same day.
	results := MatchShifts([]models.ProposedShift{
		{Date: "2025-03-10", Period: "soir", ShiftType: "NL"},
	}, idx)

	require.Len(t, results, 1)
	assert.Equal(t, 7, results[0].Score) // 5 date-only + 2 shift type
	assert.Equal(t, models.MatchPartial, results[0].MatchType)
	assert.Equal(t, "a1", results[0].MatchedAssignmentKey)
}

func TestMatchShifts_NoCandidates(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin"},
	})

	results := MatchShifts([]models.ProposedShift{
		{Date: "2025-04-01", Period: "soir"},
	}, idx)

	require.Len(t, results, 1)
	assert.Equal(t, models.MatchNone, results[0].MatchType)
	assert.Empty(t, results[0].MatchedAssignmentKey)
}

func TestMatchShifts_MalformedRecordsSkipped(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
	})

	results := MatchShifts([]models.ProposedShift{
		{Date: "", Period: "matin"},                                 // missing date
		{Date: "garbage", Period: "matin"},                          // unparseable date
		{Date: "2025-03-10", Period: ""},                            // missing period
		{Date: "2025-03-10", Period: "matin", ShiftType: "NL"},      // healthy record
	}, idx)

	require.Len(t, results, 4)
	assert.Equal(t, models.MatchNone, results[0].MatchType)
	assert.Equal(t, models.MatchNone, results[1].MatchType)
	assert.Equal(t, models.MatchNone, results[2].MatchType)
	assert.Equal(t, models.MatchExact, results[3].MatchType)
}

func TestMatchShifts_NoDoubleClaim(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
	})

	results := MatchShifts([]models.ProposedShift{
		{Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
		{Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
	}, idx)

	require.Len(t, results, 2)
	assert.Equal(t, "a1", results[0].MatchedAssignmentKey)
	// The single assignment is already claimed by the first input; the second
	// input must not resolve to it, even through the fallback scan.
	assert.Equal(t, models.MatchNone, results[1].MatchType)
}

func TestMatchShifts_TwoProposalsTwoAssignments(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
		"a2": {Date: "2025-03-10", Period: "matin", ShiftType: "CS"},
	})

	results := MatchShifts([]models.ProposedShift{
		{Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
		{Date: "2025-03-10", Period: "matin", ShiftType: "CS"},
	}, idx)

	require.Len(t, results, 2)
	assert.Equal(t, "a1", results[0].MatchedAssignmentKey)
	assert.Equal(t, "a2", results[1].MatchedAssignmentKey)
	assert.NotEqual(t, results[0].MatchedAssignmentKey, results[1].MatchedAssignmentKey)
}

func TestMatchShifts_Deterministic(t *testing.T) {
	assignments := map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
		"a2": {Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
		"a3": {Date: "2025-03-11", Period: "soir", ShiftType: "CS"},
	}
	proposed := []models.ProposedShift{
		{Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
		{Date: "2025-03-11", Period: "soir", ShiftType: "CS"},
	}

	first := MatchShifts(proposed, BuildIndex(assignments))
	for i := 0; i < 10; i++ {
		idx := BuildIndex(assignments)
		again := MatchShifts(proposed, idx)
		require.Equal(t, first, again)
		// The index itself must come out of a match call untouched.
		assert.Equal(t, 3, idx.Len())
	}

	// Equal-score ties keep the first entry encountered (sorted key order).
	assert.Equal(t, "a1", first[0].MatchedAssignmentKey)
}
