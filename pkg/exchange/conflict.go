package exchange

import (
	"github.com/sosbx/planidocs-exchange/pkg/models"
)

// DetectConflict reports whether the user behind idx is already committed to
// a shift at the listing's slot. A hit means expressing fresh interest would
// double-book them.
func DetectConflict(listing models.ShiftExchangeListing, idx *AssignmentIndex) models.ConflictInfo {
	hits := idx.Lookup(listing.Date, listing.Period)
	if len(hits) == 0 {
		return models.ConflictInfo{HasConflict: false}
	}
	h := hits[0]
	return models.ConflictInfo{
		HasConflict: true,
		Date:        h.Assignment.Date,
		Period:      h.Assignment.Period,
		ShiftType:   h.Assignment.ShiftType,
	}
}

// ToggleDecision is the engine's answer to an interest toggle. The engine
// never silently allows or blocks a conflicted toggle; it hands the decision
// point back to the caller.
type ToggleDecision struct {
	Adding               bool                `json:"adding"`
	Allowed              bool                `json:"allowed"`
	RequiresConfirmation bool                `json:"requires_confirmation"`
	Conflict             *models.ConflictInfo `json:"conflict,omitempty"`
}

// CheckInterestToggle evaluates an interest toggle for userID on a listing.
// Withdrawing interest is always safe and always allowed, whatever the
// conflict state. Adding interest while conflicted is allowed only through an
// explicit confirmation step.
func CheckInterestToggle(listing models.ShiftExchangeListing, userID string, idx *AssignmentIndex, alreadyInterested bool) ToggleDecision {
	if alreadyInterested {
		return ToggleDecision{Adding: false, Allowed: true}
	}

	info := DetectConflict(listing, idx)
	if !info.HasConflict {
		return ToggleDecision{Adding: true, Allowed: true}
	}
	return ToggleDecision{
		Adding:               true,
		Allowed:              false,
		RequiresConfirmation: true,
		Conflict:             &info,
	}
}
