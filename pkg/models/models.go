package models

import "time"

// Period is one of the three daily shift slots.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodEvening   Period = "evening"
)

// ShiftAssignment is a shift a user currently holds in their planning.
type ShiftAssignment struct {
	Date         string `json:"date"`   // YYYY-MM-DD
	Period       string `json:"period"` // raw label as stored, possibly non-canonical
	ShiftType    string `json:"shift_type"`
	TimeSlot     string `json:"time_slot"`
	TempUniqueID string `json:"temp_unique_id,omitempty"`
}

// ListingStatus tracks a marketplace listing through its lifecycle.
// Transitions are one-way: pending moves to validated or unavailable, never back.
type ListingStatus string

const (
	StatusPending     ListingStatus = "pending"
	StatusUnavailable ListingStatus = "unavailable"
	StatusValidated   ListingStatus = "validated"
)

// OperationKind describes what the owner is willing to do with a listed shift.
type OperationKind string

const (
	OpKindGive        OperationKind = "give"
	OpKindExchange    OperationKind = "exchange"
	OpKindReplacement OperationKind = "replacement"
)

// ShiftExchangeListing is a published marketplace entry.
type ShiftExchangeListing struct {
	ID                     string          `json:"id"`
	OwnerUserID            string          `json:"owner_user_id"`
	Date                   string          `json:"date"`
	Period                 string          `json:"period"`
	ShiftType              string          `json:"shift_type"`
	TimeSlot               string          `json:"time_slot"`
	Comment                string          `json:"comment,omitempty"`
	Status                 ListingStatus   `json:"status"`
	InterestedUserIDs      []string        `json:"interested_user_ids"`
	OperationKinds         []OperationKind `json:"operation_kinds"`
	ProposedToReplacements bool            `json:"proposed_to_replacements"`
}

// ProposedShift is a counter-offered shift in an exchange proposal.
// It is transient matcher input and is never persisted.
type ProposedShift struct {
	Date      string `json:"date"`
	Period    string `json:"period"`
	ShiftType string `json:"shift_type"`
	TimeSlot  string `json:"time_slot"`
}

// MatchType classifies the outcome of matching one proposed shift.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
	MatchNone    MatchType = "none"
)

// MatchResult is the per-input outcome of a matcher call.
type MatchResult struct {
	MatchedAssignmentKey string    `json:"matched_assignment_key,omitempty"`
	Score                int       `json:"score"`
	MatchType            MatchType `json:"match_type"`
}

// ConflictInfo reports whether a slot would double-book a user.
type ConflictInfo struct {
	HasConflict bool   `json:"has_conflict"`
	Date        string `json:"date,omitempty"`
	Period      string `json:"period,omitempty"`
	ShiftType   string `json:"shift_type,omitempty"`
}

// UserDemandStats is a per-user, per-cycle view derived from listings and
// history. It is recomputed on demand and never stored as source of truth.
type UserDemandStats struct {
	UserID           string             `json:"user_id"`
	RequestedCount   int                `json:"requested_count"`
	ReceivedCount    int                `json:"received_count"`
	SatisfactionRate float64            `json:"satisfaction_rate"`
	ValueByShiftType map[string]float64 `json:"value_by_shift_type,omitempty"`
}

// DistributionMode selects the blend weights used by the equity scorer.
type DistributionMode string

const (
	ModeEquity   DistributionMode = "equity"
	ModePriority DistributionMode = "priority"
	ModeMixed    DistributionMode = "mixed"
)

// EquityPolicy is the admin-controlled fairness configuration for a cycle.
// It is loaded once per cycle and passed read-only into every scoring call.
type EquityPolicy struct {
	TargetSatisfactionRate float64            `json:"target_satisfaction_rate"` // 0-1
	SmallDemandBonus       float64            `json:"small_demand_bonus"`       // 0-100
	SmallDemandThreshold   int                `json:"small_demand_threshold"`
	DistributionMode       DistributionMode   `json:"distribution_mode"`
	ShiftTypeValues        map[string]float64 `json:"shift_type_values,omitempty"` // 0-100 per type
}

// AllocationImpact previews the effect of granting a shift to a candidate
// without mutating any state.
type AllocationImpact struct {
	ProjectedRate    float64 `json:"projected_rate"`
	Delta            float64 `json:"delta"`
	RemainingDeficit float64 `json:"remaining_deficit"`
}

// SuggestionScore is the scorer's verdict for one candidate on one listing.
type SuggestionScore struct {
	UserID              string           `json:"user_id"`
	SatisfactionDeficit float64          `json:"satisfaction_deficit"`
	DemandPriority      float64          `json:"demand_priority"`
	ShiftValue          float64          `json:"shift_value"`
	EquityScore         float64          `json:"equity_score"`
	Impact              AllocationImpact `json:"impact"`
	Recommendation      string           `json:"recommendation"`
	Color               string           `json:"color"`
}

// Phase is the process-wide state of the exchange marketplace.
type Phase string

const (
	PhaseSubmission   Phase = "submission"
	PhaseDistribution Phase = "distribution"
	PhaseCompleted    Phase = "completed"
)

// BagPhase describes the current allocation cycle. The deadline is
// informational; transitions are admin-driven, never timer-driven.
type BagPhase struct {
	CycleID            string    `json:"cycle_id"`
	Phase              Phase     `json:"phase"`
	SubmissionDeadline time.Time `json:"submission_deadline"`
}

// ExchangeRecord is the audit record emitted when an exchange completes.
type ExchangeRecord struct {
	ID          string        `json:"id"`
	CycleID     string        `json:"cycle_id"`
	ListingID   string        `json:"listing_id"`
	Kind        OperationKind `json:"kind"`
	FromUserID  string        `json:"from_user_id"`
	ToUserID    string        `json:"to_user_id"`
	Date        string        `json:"date"`
	Period      string        `json:"period"`
	ShiftType   string        `json:"shift_type"`
	TimeSlot    string        `json:"time_slot"`
	CompletedAt time.Time     `json:"completed_at"`
}
