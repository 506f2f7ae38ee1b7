package swap

// backupUnavailableError signals a degrading role with no compatible backup.
// The existing binding stays in place; an alert is raised instead.
type backupUnavailableError struct{ role string }

func (e backupUnavailableError) Error() string { return "no backup available for role: " + e.role }

func ErrBackupUnavailable(role string) error { return backupUnavailableError{role: role} }

// IsBackupUnavailable reports whether err indicates a missing backup.
func IsBackupUnavailable(err error) bool {
	_, ok := err.(backupUnavailableError)
	return ok
}

// roleNotBoundError signals a swap request for a role with no binding.
type roleNotBoundError struct{ role string }

func (e roleNotBoundError) Error() string { return "role not bound: " + e.role }

func ErrRoleNotBound(role string) error { return roleNotBoundError{role: role} }

// IsRoleNotBound reports whether err indicates a missing binding.
func IsRoleNotBound(err error) bool {
	_, ok := err.(roleNotBoundError)
	return ok
}

// retriesExhaustedError signals that optimistic commit retries ran out.
type retriesExhaustedError struct{ role string }

func (e retriesExhaustedError) Error() string { return "swap retries exhausted for role: " + e.role }

func ErrRetriesExhausted(role string) error { return retriesExhaustedError{role: role} }

// IsRetriesExhausted reports whether err indicates exhausted commit retries.
func IsRetriesExhausted(err error) bool {
	_, ok := err.(retriesExhaustedError)
	return ok
}
