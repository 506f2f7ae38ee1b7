// Package scoring implements multi-criteria decision scoring of candidates
// against role profiles, best-candidate selection with ranked backups, and
// break-even analysis for replacement decisions.
package scoring

import (
	"time"

	"modelmgr/pkg/types"
)

// Criterion names used in RoleProfile weights and ScoreResult criterion maps.
const (
	CriterionPerformance = "performance"
	CriterionCost        = "cost"
	CriterionResourceFit = "resourceFit"
	CriterionOperational = "operational"
)

// AccuracyMetric is the benchmark metric backing the performance sub-score.
const AccuracyMetric = "accuracy"

// EngineConfig carries the scoring tunables.
type EngineConfig struct {
	// Maturity (months) at which the operational sub-score saturates.
	MaturityCapMonths float64
}

// Engine computes ScoreResults. Pure over its immutable inputs: identical
// (candidate version, role version) pairs always yield identical scores.
type Engine struct {
	cfg EngineConfig
	now func() time.Time
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.MaturityCapMonths <= 0 {
		cfg.MaturityCapMonths = 24
	}
	return &Engine{cfg: cfg, now: time.Now}
}

// Score evaluates one candidate against one role. Candidates failing a hard
// requirement get IncompatibleCandidate rather than a low score.
func (e *Engine) Score(c types.ModelCandidate, role types.RoleProfile) (types.ScoreResult, error) {
	if reason, ok := hardRequirementMiss(c, role); ok {
		return types.ScoreResult{}, ErrIncompatibleCandidate(c.ID, reason)
	}

	crit := map[string]float64{
		CriterionPerformance: performanceScore(c, role.Requirements),
		CriterionCost:        costScore(c.CostPerUnit, role.Requirements.MaxCostPerUnit),
		CriterionResourceFit: resourceFitScore(c, role.Requirements),
		CriterionOperational: e.operationalScore(c),
	}

	var composite float64
	for name, w := range role.Weights {
		composite += crit[name] * w
	}

	return types.ScoreResult{
		CandidateID:     c.ID,
		RoleName:        role.Name,
		CompositeScore:  clamp01(composite),
		CriterionScores: crit,
		ComputedAt:      e.now().UTC(),
	}, nil
}

func hardRequirementMiss(c types.ModelCandidate, role types.RoleProfile) (string, bool) {
	caps := make(map[string]struct{}, len(c.Capabilities))
	for _, cap := range c.Capabilities {
		caps[cap] = struct{}{}
	}
	for _, need := range role.Requirements.RequiredCapabilities {
		if _, ok := caps[need]; !ok {
			return "missing capability " + need, true
		}
	}
	if len(role.Requirements.HardwareClasses) > 0 {
		if hardwareMatch(c, role.Requirements.HardwareClasses) == 0 {
			return "no usable hardware class", true
		}
	}
	return "", false
}

// hardwareMatch returns 1.0 on an exact class match, 0.5 when the candidate
// can only run on one of its fallback classes, 0 when it cannot run at all.
func hardwareMatch(c types.ModelCandidate, classes []string) float64 {
	for _, hc := range classes {
		if hc == c.HardwareClass {
			return 1.0
		}
	}
	for _, hc := range classes {
		for _, fb := range c.FallbackHardware {
			if hc == fb {
				return 0.5
			}
		}
	}
	return 0
}

// performanceScore maps the accuracy benchmark linearly between the role's
// minimum-acceptable and aspirational ceiling, clamped to [0,1].
func performanceScore(c types.ModelCandidate, req types.Requirements) float64 {
	bs, ok := c.BenchmarkScores[AccuracyMetric]
	if !ok {
		return 0
	}
	min, target := req.MinAccuracy, req.TargetAccuracy
	if target <= min {
		// no usable range configured; treat the raw value as the score
		return clamp01(bs.Value)
	}
	return clamp01((bs.Value - min) / (target - min))
}

// costScore is inverse-normalized: free is 1.0, at the role's max cost 0.0.
func costScore(cost, maxCost float64) float64 {
	if maxCost <= 0 {
		// no ceiling configured; decay smoothly with absolute cost
		return clamp01(1 / (1 + cost))
	}
	return clamp01(1 - cost/maxCost)
}

func resourceFitScore(c types.ModelCandidate, req types.Requirements) float64 {
	if len(req.HardwareClasses) == 0 {
		return 1.0
	}
	return hardwareMatch(c, req.HardwareClasses)
}

// operationalScore blends maturity and adoption signal, capped at 1.0.
func (e *Engine) operationalScore(c types.ModelCandidate) float64 {
	maturity := clamp01(c.MaturityMonths / e.cfg.MaturityCapMonths)
	return clamp01(0.5*maturity + 0.5*clamp01(c.AdoptionSignal))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
