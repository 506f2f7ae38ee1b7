package scoring

import (
	"math"
	"testing"

	"modelmgr/internal/registry"
)

func TestSelectBestRanksByComposite(t *testing.T) {
	reg := registry.NewCandidateRegistry()
	mustReg := func(id string, acc, cost float64) {
		t.Helper()
		if _, err := reg.Register(testCandidate(id, acc, cost)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	mustReg("a", 0.9, 0.8)
	mustReg("b", 0.6, 0.1)
	mustReg("c", 0.1, 0.9)

	sel := NewSelector(NewEngine(EngineConfig{}), reg)
	p, err := sel.SelectBest(testRole())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if p.Active.CandidateID != "b" {
		t.Fatalf("expected b to win, got %s", p.Active.CandidateID)
	}
	ids := p.BackupIDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "c" {
		t.Fatalf("unexpected backup order: %v", ids)
	}
}

func TestSelectBestExcludes(t *testing.T) {
	reg := registry.NewCandidateRegistry()
	if _, err := reg.Register(testCandidate("a", 0.9, 0.8)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Register(testCandidate("b", 0.6, 0.1)); err != nil {
		t.Fatalf("register: %v", err)
	}
	sel := NewSelector(NewEngine(EngineConfig{}), reg)
	p, err := sel.SelectBest(testRole(), "b")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if p.Active.CandidateID != "a" || len(p.Backups) != 0 {
		t.Fatalf("exclusion not applied: %+v", p)
	}
}

func TestSelectBestNoCompatible(t *testing.T) {
	reg := registry.NewCandidateRegistry()
	c := testCandidate("a", 0.9, 0.5)
	c.Capabilities = []string{"translate"}
	if _, err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	sel := NewSelector(NewEngine(EngineConfig{}), reg)
	if _, err := sel.SelectBest(testRole()); !IsNoCompatibleCandidate(err) {
		t.Fatalf("expected NoCompatibleCandidate, got %v", err)
	}
}

func TestSelectBestTieBreaks(t *testing.T) {
	reg := registry.NewCandidateRegistry()
	role := testRole()
	role.Weights = map[string]float64{CriterionPerformance: 1}

	// identical composite; x is more mature, so it wins the tie
	x := testCandidate("x", 0.8, 0.5)
	x.MaturityMonths = 24
	x.AdoptionSignal = 1
	y := testCandidate("y", 0.8, 0.5)
	if _, err := reg.Register(x); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg.Register(y); err != nil {
		t.Fatalf("register: %v", err)
	}
	sel := NewSelector(NewEngine(EngineConfig{}), reg)
	p, err := sel.SelectBest(role)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if p.Active.CandidateID != "x" {
		t.Fatalf("operational tie-break failed, got %s", p.Active.CandidateID)
	}

	// identical composite and operational; cheaper candidate wins
	reg2 := registry.NewCandidateRegistry()
	if _, err := reg2.Register(testCandidate("p", 0.8, 0.7)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := reg2.Register(testCandidate("q", 0.8, 0.2)); err != nil {
		t.Fatalf("register: %v", err)
	}
	sel2 := NewSelector(NewEngine(EngineConfig{}), reg2)
	p2, err := sel2.SelectBest(role)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if p2.Active.CandidateID != "q" {
		t.Fatalf("cost tie-break failed, got %s", p2.Active.CandidateID)
	}
}

func TestBreakEvenInfiniteOnNoSavings(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	an := NewAnalyzer(AnalyzerConfig{
		PerformanceWeight: 0.3, CostWeight: 0.3, RiskWeight: 0.2, BreakEvenWeight: 0.2,
	}, engine)
	role := testRole()
	cur := testCandidate("cur", 0.8, 0.2)
	ch := testCandidate("ch", 0.9, 0.5) // more expensive
	be, err := an.Evaluate(cur, ch, role)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !math.IsInf(be.BreakEvenMonths, 1) {
		t.Fatalf("expected infinite break-even, got %v", be.BreakEvenMonths)
	}
	if be.MonthlySavings >= 0 {
		t.Fatalf("expected negative savings, got %v", be.MonthlySavings)
	}
}

func TestBreakEvenAdoption(t *testing.T) {
	engine := NewEngine(EngineConfig{})
	an := NewAnalyzer(AnalyzerConfig{
		PerformanceWeight: 0.3, CostWeight: 0.3, RiskWeight: 0.2, BreakEvenWeight: 0.2,
		AdoptThreshold: 0.7, HorizonMonths: 12,
	}, engine)
	role := testRole() // expected load 100000

	cur := testCandidate("cur", 0.5, 0.8)
	ch := testCandidate("ch", 0.95, 0.1)
	ch.MigrationCost = 70000
	ch.MaturityMonths = 48
	ch.AdoptionSignal = 1

	be, err := an.Evaluate(cur, ch, role)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	wantSavings := 100000 * (0.8 - 0.1)
	if !almostEqual(be.MonthlySavings, wantSavings) {
		t.Fatalf("monthly savings: got %v want %v", be.MonthlySavings, wantSavings)
	}
	if !almostEqual(be.BreakEvenMonths, 70000/wantSavings) {
		t.Fatalf("break-even months: got %v", be.BreakEvenMonths)
	}
	if !be.Adopt {
		t.Fatalf("expected adoption at score %v", be.DecisionScore)
	}

	// raise the bar above what this challenger can reach
	strict := NewAnalyzer(AnalyzerConfig{
		PerformanceWeight: 0.3, CostWeight: 0.3, RiskWeight: 0.2, BreakEvenWeight: 0.2,
		AdoptThreshold: 0.99, HorizonMonths: 12,
	}, engine)
	be, err = strict.Evaluate(cur, ch, role)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if be.Adopt {
		t.Fatalf("threshold not honored: score %v adopted at 0.99", be.DecisionScore)
	}
}
