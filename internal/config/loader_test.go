package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\nroles_dir: /r\ncandidates_dir: /c\nhealth:\n  poll_interval: 5s\n  failure_threshold: 5\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.RolesDir != "/r" || cfg.CandidatesDir != "/c" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.Health.PollInterval != 5*time.Second || cfg.Health.FailureThreshold != 5 {
		t.Fatalf("unexpected health cfg: %+v", cfg.Health)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","state_dir":"/s","scoring":{"adopt_threshold":0.8}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.StateDir != "/s" || cfg.Scoring.AdoptThreshold != 0.8 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\naudit_log_path=\"/a.jsonl\"\n[swap]\ncommit_retries=7\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.AuditLogPath != "/a.jsonl" || cfg.Swap.CommitRetries != 7 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Addr != ":8080" {
		t.Fatalf("addr default: %q", cfg.Addr)
	}
	if cfg.Health.PollInterval != 60*time.Second {
		t.Fatalf("poll interval default: %v", cfg.Health.PollInterval)
	}
	if cfg.Health.ProbationPasses != 3 || cfg.Health.FailureThreshold != 3 {
		t.Fatalf("health defaults: %+v", cfg.Health)
	}
	if cfg.Scoring.AdoptThreshold != 0.7 || cfg.Scoring.BreakEvenHorizonMonths != 12 {
		t.Fatalf("scoring defaults: %+v", cfg.Scoring)
	}
	if cfg.Swap.WarmupTimeout != 30*time.Second {
		t.Fatalf("warmup timeout default: %v", cfg.Swap.WarmupTimeout)
	}
	if len(cfg.Swap.ShiftSteps) == 0 || cfg.Swap.ShiftSteps[len(cfg.Swap.ShiftSteps)-1] != 100 {
		t.Fatalf("shift steps default: %v", cfg.Swap.ShiftSteps)
	}
	sum := cfg.Scoring.PerformanceWeight + cfg.Scoring.CostWeight + cfg.Scoring.RiskWeight + cfg.Scoring.BreakEvenWeight
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("blend weights should sum to 1, got %v", sum)
	}
}

func TestApplyDefaultsKeepsExplicit(t *testing.T) {
	cfg := Config{Addr: ":1"}
	cfg.Health.FailureThreshold = 9
	cfg.ApplyDefaults()
	if cfg.Addr != ":1" || cfg.Health.FailureThreshold != 9 {
		t.Fatalf("explicit values overwritten: %+v", cfg)
	}
}
