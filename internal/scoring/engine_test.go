package scoring

import (
	"math"
	"testing"
	"time"

	"modelmgr/pkg/types"
)

func testRole() types.RoleProfile {
	return types.RoleProfile{
		Name: "summarizer",
		Requirements: types.Requirements{
			RequiredCapabilities: []string{"summarize"},
			HardwareClasses:      []string{"gpu-a"},
			MinAccuracy:          0,
			TargetAccuracy:       1,
			MaxCostPerUnit:       1.0,
		},
		Weights: map[string]float64{
			CriterionPerformance: 0.5,
			CriterionCost:        0.3,
			CriterionResourceFit: 0.2,
		},
		ExpectedLoad: 100000,
	}
}

func testCandidate(id string, accuracy, cost float64) types.ModelCandidate {
	return types.ModelCandidate{
		ID:            id,
		Capabilities:  []string{"summarize"},
		CostPerUnit:   cost,
		HardwareClass: "gpu-a",
		Endpoint:      "http://" + id,
		BenchmarkScores: map[string]types.BenchmarkScore{
			AccuracyMetric: {Value: accuracy, Source: "eval", EvaluatedAt: time.Unix(1700000000, 0)},
		},
	}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreArithmetic(t *testing.T) {
	// Scenario: A has performance 0.9, cost sub-score 0.2, fit 1.0;
	// B has performance 0.6, cost sub-score 0.9, fit 1.0. B must win.
	e := NewEngine(EngineConfig{})
	role := testRole()
	a := testCandidate("a", 0.9, 0.8) // cost sub-score 1-0.8 = 0.2
	b := testCandidate("b", 0.6, 0.1) // cost sub-score 1-0.1 = 0.9

	sa, err := e.Score(a, role)
	if err != nil {
		t.Fatalf("score a: %v", err)
	}
	sb, err := e.Score(b, role)
	if err != nil {
		t.Fatalf("score b: %v", err)
	}
	if !almostEqual(sa.CompositeScore, 0.9*0.5+0.2*0.3+1.0*0.2) {
		t.Fatalf("composite a: got %v want 0.71", sa.CompositeScore)
	}
	if !almostEqual(sb.CompositeScore, 0.6*0.5+0.9*0.3+1.0*0.2) {
		t.Fatalf("composite b: got %v want 0.77", sb.CompositeScore)
	}
	if sb.CompositeScore <= sa.CompositeScore {
		t.Fatalf("expected b to outrank a: %v vs %v", sb.CompositeScore, sa.CompositeScore)
	}
}

func TestScoreCompositeIsWeightedSum(t *testing.T) {
	e := NewEngine(EngineConfig{})
	role := testRole()
	c := testCandidate("a", 0.75, 0.4)
	c.MaturityMonths = 12
	c.AdoptionSignal = 0.8
	role.Weights = map[string]float64{
		CriterionPerformance: 0.4,
		CriterionCost:        0.3,
		CriterionResourceFit: 0.2,
		CriterionOperational: 0.1,
	}
	sr, err := e.Score(c, role)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var sum float64
	for name, w := range role.Weights {
		sub := sr.CriterionScores[name]
		if sub < 0 || sub > 1 {
			t.Fatalf("criterion %s out of [0,1]: %v", name, sub)
		}
		sum += sub * w
	}
	if !almostEqual(sr.CompositeScore, sum) {
		t.Fatalf("composite %v != weighted sum %v", sr.CompositeScore, sum)
	}
}

func TestScoreDeterminism(t *testing.T) {
	e := NewEngine(EngineConfig{})
	role := testRole()
	c := testCandidate("a", 0.8, 0.5)
	s1, err := e.Score(c, role)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	s2, err := e.Score(c, role)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if s1.CompositeScore != s2.CompositeScore {
		t.Fatalf("composite differs: %v vs %v", s1.CompositeScore, s2.CompositeScore)
	}
	for name, v := range s1.CriterionScores {
		if s2.CriterionScores[name] != v {
			t.Fatalf("criterion %s differs: %v vs %v", name, v, s2.CriterionScores[name])
		}
	}
}

func TestScoreHardRequirements(t *testing.T) {
	e := NewEngine(EngineConfig{})
	role := testRole()

	c := testCandidate("a", 0.9, 0.5)
	c.Capabilities = []string{"translate"}
	if _, err := e.Score(c, role); !IsIncompatibleCandidate(err) {
		t.Fatalf("expected IncompatibleCandidate for missing capability, got %v", err)
	}

	c = testCandidate("a", 0.9, 0.5)
	c.HardwareClass = "cpu"
	if _, err := e.Score(c, role); !IsIncompatibleCandidate(err) {
		t.Fatalf("expected IncompatibleCandidate for hardware miss, got %v", err)
	}
}

func TestScoreFallbackHardwareIsGradedDown(t *testing.T) {
	e := NewEngine(EngineConfig{})
	role := testRole()
	c := testCandidate("a", 0.9, 0.5)
	c.HardwareClass = "cpu"
	c.FallbackHardware = []string{"gpu-a"}
	sr, err := e.Score(c, role)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if sr.CriterionScores[CriterionResourceFit] != 0.5 {
		t.Fatalf("expected fit 0.5 on fallback hardware, got %v", sr.CriterionScores[CriterionResourceFit])
	}
}

func TestPerformanceClamping(t *testing.T) {
	e := NewEngine(EngineConfig{})
	role := testRole()
	role.Requirements.MinAccuracy = 0.5
	role.Requirements.TargetAccuracy = 0.9

	over := testCandidate("a", 0.95, 0.5)
	sr, err := e.Score(over, role)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if sr.CriterionScores[CriterionPerformance] != 1.0 {
		t.Fatalf("above-ceiling performance should clamp to 1, got %v", sr.CriterionScores[CriterionPerformance])
	}
	under := testCandidate("b", 0.3, 0.5)
	sr, err = e.Score(under, role)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if sr.CriterionScores[CriterionPerformance] != 0 {
		t.Fatalf("below-minimum performance should clamp to 0, got %v", sr.CriterionScores[CriterionPerformance])
	}
}

func TestOperationalScoreCapped(t *testing.T) {
	e := NewEngine(EngineConfig{MaturityCapMonths: 24})
	role := testRole()
	c := testCandidate("a", 0.9, 0.5)
	c.MaturityMonths = 200
	c.AdoptionSignal = 5 // bogus input beyond [0,1]
	sr, err := e.Score(c, role)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if sr.CriterionScores[CriterionOperational] != 1.0 {
		t.Fatalf("operational should cap at 1, got %v", sr.CriterionScores[CriterionOperational])
	}
}
