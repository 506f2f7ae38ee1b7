package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: weights must sum to 1.0
	Error string `json:"error" example:"weights must sum to 1.0"`
	// HTTP status code.
	// example: 422
	Code int `json:"code" example:"422"`
}

// CandidatesResponse wraps the list returned by GET /candidates.
type CandidatesResponse struct {
	Candidates []ModelCandidate `json:"candidates"`
}

// RolesResponse wraps the list returned by GET /roles.
type RolesResponse struct {
	Roles []RoleProfile `json:"roles"`
}

// RegisterResponse confirms a registration and reports the assigned version.
type RegisterResponse struct {
	// Registered identifier (candidate id or role name).
	// example: summarize-v2-large
	ID string `json:"id" example:"summarize-v2-large"`
	// Version assigned by the store.
	// example: 1
	Version uint64 `json:"version" example:"1"`
}

// ResolveResponse answers "which candidate serves this role right now".
type ResolveResponse struct {
	RoleName    string `json:"role_name" example:"summarizer"`
	CandidateID string `json:"candidate_id" example:"summarize-v2-large"`
	// Network endpoint of the bound candidate.
	// example: http://10.0.0.7:9090
	Endpoint string   `json:"endpoint" example:"http://10.0.0.7:9090"`
	Backups  []string `json:"backups,omitempty"`
	Version  uint64   `json:"version" example:"3"`
	Degraded bool     `json:"degraded,omitempty"`
}

// InvokeRequest is a guardrailed call to the candidate bound to a role.
type InvokeRequest struct {
	// Input payload forwarded to the backend after input validation.
	// example: Summarize the attached quarterly report.
	Input string `json:"input" example:"Summarize the attached quarterly report."`
	// Optional session identifier for stateful backends.
	SessionID string `json:"session_id,omitempty"`
}

// InvokeResponse carries the (possibly substituted) output plus the
// per-stage validation trail.
type InvokeResponse struct {
	Output string `json:"output"`
	// Substituted is true when the safety stage replaced the output.
	Substituted bool `json:"substituted,omitempty"`
	// Flagged is true when the advisory alignment stage failed.
	Flagged     bool               `json:"flagged,omitempty"`
	CandidateID string             `json:"candidate_id"`
	Validations []ValidationResult `json:"validations"`
}

// SwapRequest asks for an immediate hot-swap of a role's binding.
type SwapRequest struct {
	// Optional explicit target; when empty the top-ranked backup is used.
	TargetCandidateID string `json:"target_candidate_id,omitempty"`
}

// SwapResponse reports the outcome of a hot-swap.
type SwapResponse struct {
	RoleName string `json:"role_name"`
	// Outcome is one of: swapped, aborted, kept.
	// example: swapped
	Outcome     string `json:"outcome" example:"swapped"`
	FromID      string `json:"from_id,omitempty"`
	ToID        string `json:"to_id,omitempty"`
	Version     uint64 `json:"version,omitempty"`
	Reason      string `json:"reason,omitempty"`
	OperationID string `json:"operation_id,omitempty"`
}

// HealthSnapshotResponse lists current health for all bound candidates.
type HealthSnapshotResponse struct {
	Statuses []HealthStatus `json:"statuses"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Number of roles currently bound.
	// example: 4
	Bindings int `json:"bindings" example:"4"`
	// Number of registered candidates (latest versions).
	// example: 9
	Candidates int `json:"candidates" example:"9"`
	// Number of registered role profiles.
	// example: 4
	Roles int `json:"roles" example:"4"`
	// Total committed swaps since start.
	// example: 2
	SwapsTotal uint64 `json:"swaps_total" example:"2"`
	// Roles currently marked degraded.
	DegradedRoles []string `json:"degraded_roles,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
