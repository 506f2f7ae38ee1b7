package health

// healthCheckTimeoutError marks a probe that exceeded its deadline. Treated
// as a fatal health signal by the state machine.
type healthCheckTimeoutError struct{ role string }

func (e healthCheckTimeoutError) Error() string { return "health check timeout: " + e.role }

func ErrHealthCheckTimeout(role string) error { return healthCheckTimeoutError{role: role} }

// IsHealthCheckTimeout reports whether err indicates a probe deadline miss.
func IsHealthCheckTimeout(err error) bool {
	_, ok := err.(healthCheckTimeoutError)
	return ok
}
