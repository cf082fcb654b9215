package exchange

import (
	"time"

	"github.com/google/uuid"

	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// Operation names every action the lifecycle controller gates.
type Operation string

const (
	OpCreateListing        Operation = "create_listing"
	OpWithdrawListing      Operation = "withdraw_listing"
	OpToggleInterest       Operation = "toggle_interest"
	OpScoreCandidates      Operation = "score_candidates"
	OpAllocate             Operation = "allocate"
	OpQueryHistory         Operation = "query_history"
	OpArchive              Operation = "archive"
	OpProposeToReplacement Operation = "propose_to_replacement"
)

// legalOps is the phase gating table. Anything not listed for a phase fails
// with a PHASE_VIOLATION, never a silent no-op.
var legalOps = map[models.Phase]map[Operation]bool{
	models.PhaseSubmission: {
		OpCreateListing:   true,
		OpWithdrawListing: true,
		OpToggleInterest:  true,
		OpQueryHistory:    true,
	},
	models.PhaseDistribution: {
		OpScoreCandidates: true,
		OpAllocate:        true,
		OpQueryHistory:    true,
	},
	models.PhaseCompleted: {
		OpQueryHistory:         true,
		OpArchive:              true,
		OpProposeToReplacement: true,
	},
}

// CanPerform checks whether op is legal in the given phase.
func CanPerform(phase models.Phase, op Operation) error {
	if legalOps[phase][op] {
		return nil
	}
	return NewPhaseViolation(op, string(phase))
}

// phaseOrder encodes the forward-only cycle submission -> distribution -> completed.
var phaseOrder = map[models.Phase]int{
	models.PhaseSubmission:   0,
	models.PhaseDistribution: 1,
	models.PhaseCompleted:    2,
}

// AdvancePhase moves the cycle one step forward. Backward or skipping moves
// are rejected; the submission deadline is informational and never advances
// the phase on its own.
func AdvancePhase(current models.BagPhase, next models.Phase) (models.BagPhase, error) {
	ci, ok := phaseOrder[current.Phase]
	ni, ok2 := phaseOrder[next]
	if !ok || !ok2 {
		return current, NewValidationError("unknown phase", "", "")
	}
	if ni != ci+1 {
		return current, &ExchangeError{
			Code:    ErrCodePhaseViolation,
			Message: "phase transitions are forward-only, one step at a time",
			Details: map[string]string{"from": string(current.Phase), "to": string(next)},
		}
	}
	current.Phase = next
	return current, nil
}

// NewCycle starts a fresh allocation cycle in the submission phase.
func NewCycle(deadline time.Time) models.BagPhase {
	return models.BagPhase{
		CycleID:            uuid.NewString(),
		Phase:              models.PhaseSubmission,
		SubmissionDeadline: deadline,
	}
}

// TransitionListing validates a per-listing status change. Pending is the
// only non-terminal status: it may move to validated or unavailable, and
// neither of those ever moves again.
func TransitionListing(current, next models.ListingStatus) error {
	if current == next {
		return NewValidationError("listing already in status "+string(next), "", "")
	}
	if current != models.StatusPending {
		return &ExchangeError{
			Code:    ErrCodeValidation,
			Message: "listing status is terminal",
			Details: map[string]string{"from": string(current), "to": string(next)},
		}
	}
	switch next {
	case models.StatusValidated, models.StatusUnavailable:
		return nil
	default:
		return NewValidationError("unknown listing status "+string(next), "", "")
	}
}
