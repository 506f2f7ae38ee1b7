package types

import "time"

// RoleProfile describes a functional role and how candidates are judged for it.
// Profiles are immutable once registered; updates create a new version.
type RoleProfile struct {
	// Role name, unique across the store.
	// example: summarizer
	Name string `json:"name" yaml:"name" toml:"name"`
	// Monotonic profile version, assigned by the store.
	Version uint64 `json:"version,omitempty" yaml:"-" toml:"-"`
	// Hard and soft requirement thresholds for the role.
	Requirements Requirements `json:"requirements" yaml:"requirements" toml:"requirements"`
	// Criterion weights for composite scoring. Must sum to 1.0 (+/- 1e-6).
	Weights map[string]float64 `json:"weights" yaml:"weights" toml:"weights"`
	// Request-time constraint set applied around every invocation.
	Guardrails ConstraintSet `json:"guardrails,omitempty" yaml:"guardrails" toml:"guardrails"`
	// Expected monthly request volume, used by break-even analysis.
	// example: 100000
	ExpectedLoad float64 `json:"expected_load,omitempty" yaml:"expected_load" toml:"expected_load"`
}

// Requirements holds the named thresholds a role imposes on candidates.
type Requirements struct {
	// Hard requirements: candidate is incompatible unless these hold.
	RequiredCapabilities []string `json:"required_capabilities,omitempty" yaml:"required_capabilities" toml:"required_capabilities"`
	HardwareClasses      []string `json:"hardware_classes,omitempty" yaml:"hardware_classes" toml:"hardware_classes"`
	// Soft thresholds mapped into [0,1] sub-scores.
	MinAccuracy    float64 `json:"min_accuracy,omitempty" yaml:"min_accuracy" toml:"min_accuracy"`
	TargetAccuracy float64 `json:"target_accuracy,omitempty" yaml:"target_accuracy" toml:"target_accuracy"`
	MaxLatencyMs   float64 `json:"max_latency_ms,omitempty" yaml:"max_latency_ms" toml:"max_latency_ms"`
	MaxCostPerUnit float64 `json:"max_cost_per_unit,omitempty" yaml:"max_cost_per_unit" toml:"max_cost_per_unit"`
	MinThroughput  float64 `json:"min_throughput,omitempty" yaml:"min_throughput" toml:"min_throughput"`
}

// BenchmarkScore is one named metric value with its provenance.
type BenchmarkScore struct {
	// Metric value as published by the source.
	Value float64 `json:"value" yaml:"value" toml:"value"`
	// Where the number came from (leaderboard, internal eval, vendor).
	Source string `json:"source" yaml:"source" toml:"source"`
	// When the evaluation was run.
	EvaluatedAt time.Time `json:"evaluated_at" yaml:"evaluated_at" toml:"evaluated_at"`
}

// ModelCandidate is an immutable snapshot of a registered backend implementation.
// New benchmark data produces a new version; versions are never mutated in place.
type ModelCandidate struct {
	// Stable candidate identifier.
	// example: summarize-v2-large
	ID string `json:"id" yaml:"id" toml:"id"`
	// Monotonic candidate version, assigned by the registry.
	Version uint64 `json:"version,omitempty" yaml:"-" toml:"-"`
	// Supported operations/modalities.
	Capabilities []string `json:"capabilities" yaml:"capabilities" toml:"capabilities"`
	// Named benchmark metrics with provenance.
	BenchmarkScores map[string]BenchmarkScore `json:"benchmark_scores" yaml:"benchmark_scores" toml:"benchmark_scores"`
	// Cost per unit of work (normalized currency units).
	CostPerUnit float64 `json:"cost_per_unit" yaml:"cost_per_unit" toml:"cost_per_unit"`
	// Hardware class this candidate runs on.
	HardwareClass string `json:"hardware_class" yaml:"hardware_class" toml:"hardware_class"`
	// Hardware classes the candidate can run on with degraded throughput.
	FallbackHardware []string `json:"fallback_hardware,omitempty" yaml:"fallback_hardware" toml:"fallback_hardware"`
	// Months since first release.
	MaturityMonths float64 `json:"maturity_months,omitempty" yaml:"maturity_months" toml:"maturity_months"`
	// Adoption signal in [0,1] (deployment breadth, community uptake).
	AdoptionSignal float64 `json:"adoption_signal,omitempty" yaml:"adoption_signal" toml:"adoption_signal"`
	// Whether the backend carries conversational/session state.
	Stateful bool `json:"stateful,omitempty" yaml:"stateful" toml:"stateful"`
	// Network endpoint serving this candidate.
	// example: http://10.0.0.7:9090
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	// One-off cost of migrating/retraining onto this candidate.
	MigrationCost float64 `json:"migration_cost,omitempty" yaml:"migration_cost" toml:"migration_cost"`
}

// ScoreResult is the outcome of scoring one candidate against one role.
type ScoreResult struct {
	CandidateID string `json:"candidate_id"`
	RoleName    string `json:"role_name"`
	// Weighted sum of the criterion scores, in [0,1].
	CompositeScore float64 `json:"composite_score"`
	// Per-criterion normalized sub-scores, each in [0,1].
	CriterionScores map[string]float64 `json:"criterion_scores"`
	ComputedAt      time.Time          `json:"computed_at"`
}

// Binding assigns a candidate to a role, with ranked backups.
// Version is the optimistic-concurrency token: it increments on every swap
// and a commit only succeeds when the caller's version matches the stored one.
type Binding struct {
	RoleName           string    `json:"role_name"`
	ActiveCandidateID  string    `json:"active_candidate_id"`
	BackupCandidateIDs []string  `json:"backup_candidate_ids,omitempty"`
	BoundAt            time.Time `json:"bound_at"`
	Version            uint64    `json:"version"`
	// Degraded marks a role kept on a known-bad binding because no backup
	// was available. Cleared by the next successful swap.
	Degraded bool `json:"degraded,omitempty"`
	// In-flight gradual shift: ShiftPercent of new requests route to
	// ShiftCandidateID while it proves itself. Cleared on promote or abort.
	ShiftCandidateID string `json:"shift_candidate_id,omitempty"`
	ShiftPercent     int    `json:"shift_percent,omitempty"`
}

// HealthState classifies a bound candidate's health.
type HealthState string

const (
	HealthHealthy    HealthState = "healthy"
	HealthDegraded   HealthState = "degraded"
	HealthFailed     HealthState = "failed"
	HealthRecovering HealthState = "recovering"
)

// HealthStatus is the monitor's current view of one bound candidate.
type HealthStatus struct {
	CandidateID         string      `json:"candidate_id"`
	RoleName            string      `json:"role_name"`
	State               HealthState `json:"state"`
	LastCheckedAt       time.Time   `json:"last_checked_at"`
	ConsecutiveFailures int         `json:"consecutive_failures"`
	ConsecutivePasses   int         `json:"consecutive_passes"`
	Reason              string      `json:"reason,omitempty"`
}

// ValidationStage identifies a guardrail pipeline stage.
type ValidationStage string

const (
	StageInput     ValidationStage = "input"
	StageExecution ValidationStage = "execution"
	StageOutput    ValidationStage = "output"
	StageAlignment ValidationStage = "alignment"
	StageSafety    ValidationStage = "safety"
)

// ValidationResult records the outcome of one guardrail stage.
type ValidationResult struct {
	Passed bool            `json:"passed"`
	Stage  ValidationStage `json:"stage"`
	Reason string          `json:"reason,omitempty"`
	// SafeReplacement carries the substituted output when the safety
	// stage rewrites an unsafe response.
	SafeReplacement string `json:"safe_replacement,omitempty"`
}

// ConstraintSet holds a role's request-time rules. Read-only at request time.
type ConstraintSet struct {
	// Input stage.
	MaxInputBytes  int      `json:"max_input_bytes,omitempty" yaml:"max_input_bytes" toml:"max_input_bytes"`
	ForbiddenInput []string `json:"forbidden_input,omitempty" yaml:"forbidden_input" toml:"forbidden_input"`
	// Execution stage ceiling.
	MaxResponseMs int `json:"max_response_ms,omitempty" yaml:"max_response_ms" toml:"max_response_ms"`
	// Output stage.
	MaxOutputChars int  `json:"max_output_chars,omitempty" yaml:"max_output_chars" toml:"max_output_chars"`
	RequireOutput  bool `json:"require_output,omitempty" yaml:"require_output" toml:"require_output"`
	// Alignment stage (advisory).
	AlignmentDenylist []string `json:"alignment_denylist,omitempty" yaml:"alignment_denylist" toml:"alignment_denylist"`
	// Safety stage (corrective).
	SafetyDenylist  []string `json:"safety_denylist,omitempty" yaml:"safety_denylist" toml:"safety_denylist"`
	SafeReplacement string   `json:"safe_replacement,omitempty" yaml:"safe_replacement" toml:"safe_replacement"`
}

// AuditRecord is one immutable entry in the append-only violation log.
type AuditRecord struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CandidateID   string    `json:"candidateId"`
	RoleName      string    `json:"roleName"`
	ViolationType string    `json:"violationType"`
	Details       string    `json:"details,omitempty"`
}

// KnowledgeRecord is an immutable message published on the knowledge bus.
type KnowledgeRecord struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Producer  string    `json:"producer"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}
