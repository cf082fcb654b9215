package exchange

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed input (bad date, missing period).
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"

	// ErrCodePhaseViolation indicates an operation illegal in the current
	// lifecycle phase. Never retried; it is a caller logic error.
	ErrCodePhaseViolation ErrorCode = "PHASE_VIOLATION"

	// ErrCodeWriteConflict indicates a concurrent mutation detected by a
	// conditional write. Callers retry once with fresh state.
	ErrCodeWriteConflict ErrorCode = "WRITE_CONFLICT"

	// ErrCodeNotFound indicates a listing or assignment missing for a keyed lookup.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// ExchangeError is a structured engine error. It carries enough context
// (listing id, date, period) to render an actionable message without the
// caller re-deriving it.
type ExchangeError struct {
	Code      ErrorCode
	Message   string
	ListingID string
	Date      string
	Period    string
	Details   map[string]string
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.ListingID != "" {
		return fmt.Sprintf("%s: %s (listing=%s)", e.Code, e.Message, e.ListingID)
	}
	if e.Date != "" {
		return fmt.Sprintf("%s: %s (date=%s period=%s)", e.Code, e.Message, e.Date, e.Period)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func is(err error, code ErrorCode) bool {
	var ee *ExchangeError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return is(err, ErrCodeValidation) }

// IsPhaseViolation reports whether err is a phase-gating error.
func IsPhaseViolation(err error) bool { return is(err, ErrCodePhaseViolation) }

// IsWriteConflict reports whether err is a concurrent-write error.
func IsWriteConflict(err error) bool { return is(err, ErrCodeWriteConflict) }

// IsNotFound reports whether err is a missing-record error.
func IsNotFound(err error) bool { return is(err, ErrCodeNotFound) }

// NewValidationError builds a VALIDATION_FAILED error for a malformed record.
func NewValidationError(msg, date, period string) *ExchangeError {
	return &ExchangeError{Code: ErrCodeValidation, Message: msg, Date: date, Period: period}
}

// NewPhaseViolation builds a PHASE_VIOLATION error for an operation that is
// illegal in the given phase.
func NewPhaseViolation(op Operation, phase string) *ExchangeError {
	return &ExchangeError{
		Code:    ErrCodePhaseViolation,
		Message: fmt.Sprintf("operation %q is not allowed during phase %q", op, phase),
		Details: map[string]string{"operation": string(op), "phase": phase},
	}
}

// NewWriteConflict builds a WRITE_CONFLICT error for a listing that changed
// underneath a conditional write.
func NewWriteConflict(listingID string) *ExchangeError {
	return &ExchangeError{
		Code:      ErrCodeWriteConflict,
		Message:   "listing changed concurrently, please retry",
		ListingID: listingID,
	}
}

// NewNotFound builds a NOT_FOUND error for a keyed lookup that missed.
func NewNotFound(what, id string) *ExchangeError {
	return &ExchangeError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", what),
		ListingID: id,
	}
}
