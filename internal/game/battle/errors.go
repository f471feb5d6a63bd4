package battle

import "fmt"

// ReasonCode classifies why an action was rejected.
type ReasonCode string

const (
	ReasonInsufficientAP   ReasonCode = "insufficient_ap"
	ReasonBlockedPath      ReasonCode = "blocked_path"
	ReasonNoLineOfSight    ReasonCode = "no_line_of_sight"
	ReasonMissingItem      ReasonCode = "missing_item"
	ReasonInvalidTarget    ReasonCode = "invalid_target"
	ReasonUnitUnavailable  ReasonCode = "unit_unavailable"
	ReasonActionRestricted ReasonCode = "action_restricted"
	ReasonExhausted        ReasonCode = "exhausted"
)

// ValidationError is a rejected action. Rejection never changes battle state.
type ValidationError struct {
	Reason  ReasonCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func reject(reason ReasonCode, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// InvariantViolation is raised with panic when battle bookkeeping is
// inconsistent. It indicates a bug, never bad input.
type InvariantViolation struct {
	Msg string
}

func (v InvariantViolation) Error() string { return "battle invariant violated: " + v.Msg }

func violate(format string, args ...any) {
	panic(InvariantViolation{Msg: fmt.Sprintf(format, args...)})
}
