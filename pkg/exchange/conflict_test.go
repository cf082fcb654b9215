package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosbx/planidocs-exchange/pkg/models"
)

func TestDetectConflict(t *testing.T) {
	planning := map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "Matin", ShiftType: "NL"},
	}
	listing := models.ShiftExchangeListing{
		ID: "l1", Date: "2025-03-10", Period: "morning", ShiftType: "CS",
	}

	// Holding any shift at the listing's slot is a conflict, whatever the
	// label spelling on either side.
	info := DetectConflict(listing, BuildIndex(planning))
	require.True(t, info.HasConflict)
	assert.Equal(t, "2025-03-10", info.Date)
	assert.Equal(t, "Matin", info.Period)
	assert.Equal(t, "NL", info.ShiftType)

	// Removing the assignment and re-checking must clear the conflict.
	info = DetectConflict(listing, BuildIndex(map[string]models.ShiftAssignment{}))
	assert.False(t, info.HasConflict)
}

func TestDetectConflict_OtherSlot(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin"},
	})

	assert.False(t, DetectConflict(models.ShiftExchangeListing{
		Date: "2025-03-10", Period: "soir",
	}, idx).HasConflict)
	assert.False(t, DetectConflict(models.ShiftExchangeListing{
		Date: "2025-03-11", Period: "matin",
	}, idx).HasConflict)
}

func TestCheckInterestToggle_WithdrawalAlwaysAllowed(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin"},
	})
	listing := models.ShiftExchangeListing{ID: "l1", Date: "2025-03-10", Period: "matin"}

	// The user is conflicted, but they are withdrawing: removal is always safe.
	d := CheckInterestToggle(listing, "u1", idx, true)
	assert.False(t, d.Adding)
	assert.True(t, d.Allowed)
	assert.False(t, d.RequiresConfirmation)
	assert.Nil(t, d.Conflict)
}

func TestCheckInterestToggle_NewInterest(t *testing.T) {
	idx := BuildIndex(map[string]models.ShiftAssignment{
		"a1": {Date: "2025-03-10", Period: "matin", ShiftType: "NL"},
	})

	// Clean slot: allowed outright.
	d := CheckInterestToggle(models.ShiftExchangeListing{
		ID: "l2", Date: "2025-03-11", Period: "soir",
	}, "u1", idx, false)
	assert.True(t, d.Adding)
	assert.True(t, d.Allowed)

	// Conflicted slot: the engine hands back the decision point instead of
	// allowing or blocking on its own.
	d = CheckInterestToggle(models.ShiftExchangeListing{
		ID: "l3", Date: "2025-03-10", Period: "morning",
	}, "u1", idx, false)
	assert.True(t, d.Adding)
	assert.False(t, d.Allowed)
	assert.True(t, d.RequiresConfirmation)
	require.NotNil(t, d.Conflict)
	assert.Equal(t, "NL", d.Conflict.ShiftType)
}
