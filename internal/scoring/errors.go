package scoring

// incompatibleCandidateError signals a candidate failing a role's hard
// requirements; scoring cannot produce a result for it.
type incompatibleCandidateError struct {
	id     string
	reason string
}

func (e incompatibleCandidateError) Error() string {
	return "incompatible candidate " + e.id + ": " + e.reason
}

// ErrIncompatibleCandidate constructs an incompatibleCandidateError.
func ErrIncompatibleCandidate(id, reason string) error {
	return incompatibleCandidateError{id: id, reason: reason}
}

// IsIncompatibleCandidate reports whether err indicates a hard-requirement miss.
func IsIncompatibleCandidate(err error) bool {
	_, ok := err.(incompatibleCandidateError)
	return ok
}

// noCompatibleCandidateError signals an empty compatible set for a role.
type noCompatibleCandidateError struct{ role string }

func (e noCompatibleCandidateError) Error() string {
	return "no compatible candidate for role: " + e.role
}

func ErrNoCompatibleCandidate(role string) error { return noCompatibleCandidateError{role: role} }

// IsNoCompatibleCandidate reports whether err indicates the role cannot be bound.
func IsNoCompatibleCandidate(err error) bool {
	_, ok := err.(noCompatibleCandidateError)
	return ok
}
