package exchange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sosbx/planidocs-exchange/pkg/models"
)

func TestCanPerform_GatingTable(t *testing.T) {
	testCases := []struct {
		phase   models.Phase
		op      Operation
		allowed bool
	}{
		{models.PhaseSubmission, OpCreateListing, true},
		{models.PhaseSubmission, OpWithdrawListing, true},
		{models.PhaseSubmission, OpToggleInterest, true},
		{models.PhaseSubmission, OpAllocate, false},
		{models.PhaseSubmission, OpScoreCandidates, false},

		{models.PhaseDistribution, OpToggleInterest, false},
		{models.PhaseDistribution, OpCreateListing, false},
		{models.PhaseDistribution, OpScoreCandidates, true},
		{models.PhaseDistribution, OpAllocate, true},

		{models.PhaseCompleted, OpToggleInterest, false},
		{models.PhaseCompleted, OpAllocate, false},
		{models.PhaseCompleted, OpQueryHistory, true},
		{models.PhaseCompleted, OpArchive, true},
		{models.PhaseCompleted, OpProposeToReplacement, true},
	}

	for _, tc := range testCases {
		t.Run(string(tc.phase)+"/"+string(tc.op), func(t *testing.T) {
			err := CanPerform(tc.phase, tc.op)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, IsPhaseViolation(err))
			}
		})
	}
}

func TestCanPerform_ToggleDuringDistributionAlwaysFails(t *testing.T) {
	// Regardless of any listing state, the toggle is illegal in distribution.
	for i := 0; i < 3; i++ {
		err := CanPerform(models.PhaseDistribution, OpToggleInterest)
		require.Error(t, err)
		assert.True(t, IsPhaseViolation(err))
	}
}

func TestAdvancePhase_ForwardOnly(t *testing.T) {
	cycle := NewCycle(time.Now().Add(72 * time.Hour))
	require.Equal(t, models.PhaseSubmission, cycle.Phase)
	require.NotEmpty(t, cycle.CycleID)

	cycle, err := AdvancePhase(cycle, models.PhaseDistribution)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseDistribution, cycle.Phase)

	// Backward and skipping moves are rejected.
	_, err = AdvancePhase(cycle, models.PhaseSubmission)
	assert.True(t, IsPhaseViolation(err))

	fresh := NewCycle(time.Time{})
	_, err = AdvancePhase(fresh, models.PhaseCompleted)
	assert.True(t, IsPhaseViolation(err))

	cycle, err = AdvancePhase(cycle, models.PhaseCompleted)
	require.NoError(t, err)
	_, err = AdvancePhase(cycle, models.PhaseCompleted)
	assert.Error(t, err)
}

func TestNewCycle_FreshIDPerCycle(t *testing.T) {
	a := NewCycle(time.Time{})
	b := NewCycle(time.Time{})
	assert.NotEqual(t, a.CycleID, b.CycleID)
}

func TestTransitionListing(t *testing.T) {
	assert.NoError(t, TransitionListing(models.StatusPending, models.StatusValidated))
	assert.NoError(t, TransitionListing(models.StatusPending, models.StatusUnavailable))

	// Validated and unavailable are terminal.
	assert.Error(t, TransitionListing(models.StatusValidated, models.StatusPending))
	assert.Error(t, TransitionListing(models.StatusValidated, models.StatusUnavailable))
	assert.Error(t, TransitionListing(models.StatusUnavailable, models.StatusValidated))

	assert.Error(t, TransitionListing(models.StatusPending, models.StatusPending))
	assert.Error(t, TransitionListing(models.StatusPending, "bogus"))
}
