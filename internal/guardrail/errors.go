package guardrail

import "modelmgr/pkg/types"

// validationFailureError signals a fatal guardrail stage failure. The request
// is blocked; the caller never sees partial output.
type validationFailureError struct {
	stage  types.ValidationStage
	reason string
}

func (e validationFailureError) Error() string {
	return "validation failed at " + string(e.stage) + " stage: " + e.reason
}

func ErrValidationFailure(stage types.ValidationStage, reason string) error {
	return validationFailureError{stage: stage, reason: reason}
}

// IsValidationFailure reports whether err is a fatal guardrail failure.
func IsValidationFailure(err error) bool {
	_, ok := err.(validationFailureError)
	return ok
}

// FailedStage returns the stage a fatal guardrail failure occurred at.
func FailedStage(err error) (types.ValidationStage, bool) {
	e, ok := err.(validationFailureError)
	if !ok {
		return "", false
	}
	return e.stage, true
}

// roleNotBoundError signals an invocation for a role with no binding.
type roleNotBoundError struct{ role string }

func (e roleNotBoundError) Error() string { return "role not bound: " + e.role }

func ErrRoleNotBound(role string) error { return roleNotBoundError{role: role} }

// IsRoleNotBound reports whether err indicates a missing binding.
func IsRoleNotBound(err error) bool {
	_, ok := err.(roleNotBoundError)
	return ok
}
