package registry

// incompleteCandidateError signals a registration payload missing required
// benchmark metadata, for 422 mapping.
type incompleteCandidateError struct{ msg string }

func (e incompleteCandidateError) Error() string { return "incomplete candidate: " + e.msg }

// ErrIncompleteCandidate constructs an incompleteCandidateError.
func ErrIncompleteCandidate(msg string) error { return incompleteCandidateError{msg: msg} }

// IsIncompleteCandidate reports whether err indicates missing candidate metadata.
func IsIncompleteCandidate(err error) bool {
	_, ok := err.(incompleteCandidateError)
	return ok
}

// invalidWeightsError signals a role profile whose weights do not sum to 1.0.
type invalidWeightsError struct{ msg string }

func (e invalidWeightsError) Error() string { return "invalid weights: " + e.msg }

func ErrInvalidWeights(msg string) error { return invalidWeightsError{msg: msg} }

// IsInvalidWeights reports whether err indicates a bad weight vector.
func IsInvalidWeights(err error) bool {
	_, ok := err.(invalidWeightsError)
	return ok
}

// roleNotFoundError signals a lookup for an unregistered role.
type roleNotFoundError struct{ name string }

func (e roleNotFoundError) Error() string { return "role not found: " + e.name }

func ErrRoleNotFound(name string) error { return roleNotFoundError{name: name} }

// IsRoleNotFound reports whether err indicates a missing role.
func IsRoleNotFound(err error) bool {
	_, ok := err.(roleNotFoundError)
	return ok
}

// roleInUseError signals an attempt to delete a profile referenced by a binding.
type roleInUseError struct{ name string }

func (e roleInUseError) Error() string { return "role in use: " + e.name }

func ErrRoleInUse(name string) error { return roleInUseError{name: name} }

// IsRoleInUse reports whether err indicates the profile is still bound.
func IsRoleInUse(err error) bool {
	_, ok := err.(roleInUseError)
	return ok
}

// candidateNotFoundError signals a lookup for an unregistered candidate id.
type candidateNotFoundError struct{ id string }

func (e candidateNotFoundError) Error() string { return "candidate not found: " + e.id }

func ErrCandidateNotFound(id string) error { return candidateNotFoundError{id: id} }

// IsCandidateNotFound reports whether err indicates a missing candidate id.
func IsCandidateNotFound(err error) bool {
	_, ok := err.(candidateNotFoundError)
	return ok
}
