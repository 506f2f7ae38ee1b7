package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by ApplyDefaults.
type Config struct {
	Addr          string `json:"addr" yaml:"addr" toml:"addr"`
	RolesDir      string `json:"roles_dir" yaml:"roles_dir" toml:"roles_dir"`
	CandidatesDir string `json:"candidates_dir" yaml:"candidates_dir" toml:"candidates_dir"`
	StateDir      string `json:"state_dir" yaml:"state_dir" toml:"state_dir"`
	AuditLogPath  string `json:"audit_log_path" yaml:"audit_log_path" toml:"audit_log_path"`

	Scoring   Scoring   `json:"scoring" yaml:"scoring" toml:"scoring"`
	Health    Health    `json:"health" yaml:"health" toml:"health"`
	Swap      Swap      `json:"swap" yaml:"swap" toml:"swap"`
	Log       Log       `json:"log" yaml:"log" toml:"log"`
	CORS      CORS      `json:"cors" yaml:"cors" toml:"cors"`
	MaxBodyKB int       `json:"max_body_kb" yaml:"max_body_kb" toml:"max_body_kb"`
}

// Scoring tunes selection and break-even analysis. The default figures have
// no principled derivation, so they stay configurable.
type Scoring struct {
	// Blend weights for the replacement decision score.
	PerformanceWeight float64 `json:"performance_weight" yaml:"performance_weight" toml:"performance_weight"`
	CostWeight        float64 `json:"cost_weight" yaml:"cost_weight" toml:"cost_weight"`
	RiskWeight        float64 `json:"risk_weight" yaml:"risk_weight" toml:"risk_weight"`
	BreakEvenWeight   float64 `json:"break_even_weight" yaml:"break_even_weight" toml:"break_even_weight"`
	// Adoption is recommended when the blended score exceeds this.
	AdoptThreshold float64 `json:"adopt_threshold" yaml:"adopt_threshold" toml:"adopt_threshold"`
	// Horizon (months) against which break-even favorability is normalized.
	BreakEvenHorizonMonths float64 `json:"break_even_horizon_months" yaml:"break_even_horizon_months" toml:"break_even_horizon_months"`
	// Maturity (months) at which the operational sub-score saturates.
	MaturityCapMonths float64 `json:"maturity_cap_months" yaml:"maturity_cap_months" toml:"maturity_cap_months"`
}

// Health tunes the per-role health pollers and the state machine.
type Health struct {
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval" toml:"poll_interval"`
	ProbeTimeout time.Duration `json:"probe_timeout" yaml:"probe_timeout" toml:"probe_timeout"`
	// Soft thresholds; a single breach moves Healthy to Degraded.
	SoftLatency  time.Duration `json:"soft_latency" yaml:"soft_latency" toml:"soft_latency"`
	SoftErrRate  float64       `json:"soft_err_rate" yaml:"soft_err_rate" toml:"soft_err_rate"`
	// Consecutive breaches before Degraded becomes Failed.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" toml:"failure_threshold"`
	// Consecutive passes required to leave Recovering.
	ProbationPasses int `json:"probation_passes" yaml:"probation_passes" toml:"probation_passes"`
}

// Swap tunes the hot-swap orchestrator.
type Swap struct {
	WarmupTimeout    time.Duration `json:"warmup_timeout" yaml:"warmup_timeout" toml:"warmup_timeout"`
	MigrationTimeout time.Duration `json:"migration_timeout" yaml:"migration_timeout" toml:"migration_timeout"`
	// Optimistic-concurrency retry budget on version conflicts.
	CommitRetries int `json:"commit_retries" yaml:"commit_retries" toml:"commit_retries"`
	// Traffic percentages walked through during a gradual shift.
	ShiftSteps []int `json:"shift_steps" yaml:"shift_steps" toml:"shift_steps"`
}

// Log controls zerolog output.
type Log struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"` // "json" or "console"
}

// CORS configures the opt-in CORS middleware.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.StateDir == "" {
		c.StateDir = "~/.modelmgr"
	}
	if c.AuditLogPath == "" {
		c.AuditLogPath = filepath.Join(c.StateDir, "audit.jsonl")
	}
	if c.MaxBodyKB <= 0 {
		c.MaxBodyKB = 1024
	}

	s := &c.Scoring
	if s.PerformanceWeight == 0 && s.CostWeight == 0 && s.RiskWeight == 0 && s.BreakEvenWeight == 0 {
		s.PerformanceWeight = 0.35
		s.CostWeight = 0.25
		s.RiskWeight = 0.2
		s.BreakEvenWeight = 0.2
	}
	if s.AdoptThreshold <= 0 {
		s.AdoptThreshold = 0.7
	}
	if s.BreakEvenHorizonMonths <= 0 {
		s.BreakEvenHorizonMonths = 12
	}
	if s.MaturityCapMonths <= 0 {
		s.MaturityCapMonths = 24
	}

	h := &c.Health
	if h.PollInterval <= 0 {
		h.PollInterval = 60 * time.Second
	}
	if h.ProbeTimeout <= 0 {
		h.ProbeTimeout = 5 * time.Second
	}
	if h.SoftLatency <= 0 {
		h.SoftLatency = 2 * time.Second
	}
	if h.SoftErrRate <= 0 {
		h.SoftErrRate = 0.1
	}
	if h.FailureThreshold <= 0 {
		h.FailureThreshold = 3
	}
	if h.ProbationPasses <= 0 {
		h.ProbationPasses = 3
	}

	w := &c.Swap
	if w.WarmupTimeout <= 0 {
		w.WarmupTimeout = 30 * time.Second
	}
	if w.MigrationTimeout <= 0 {
		w.MigrationTimeout = 30 * time.Second
	}
	if w.CommitRetries <= 0 {
		w.CommitRetries = 3
	}
	if len(w.ShiftSteps) == 0 {
		w.ShiftSteps = []int{10, 25, 50, 100}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}
