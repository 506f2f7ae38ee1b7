package scoring

import (
	"math"

	"modelmgr/pkg/types"
)

// AnalyzerConfig carries the replacement-decision tunables. The source
// figures (0.7 threshold, 12-month horizon) are configuration, not constants.
type AnalyzerConfig struct {
	PerformanceWeight float64
	CostWeight        float64
	RiskWeight        float64
	BreakEvenWeight   float64
	AdoptThreshold    float64
	HorizonMonths     float64
}

// BreakEven is the analyzer's report on replacing current with challenger.
type BreakEven struct {
	RoleName        string  `json:"role_name"`
	CurrentID       string  `json:"current_id"`
	ChallengerID    string  `json:"challenger_id"`
	MonthlySavings  float64 `json:"monthly_savings"`
	BreakEvenMonths float64 `json:"break_even_months"`
	DecisionScore   float64 `json:"decision_score"`
	Adopt           bool    `json:"adopt"`
}

// Analyzer decides whether switching an already-bound role to a new
// candidate is economically justified.
type Analyzer struct {
	cfg    AnalyzerConfig
	engine *Engine
}

func NewAnalyzer(cfg AnalyzerConfig, engine *Engine) *Analyzer {
	if cfg.AdoptThreshold <= 0 {
		cfg.AdoptThreshold = 0.7
	}
	if cfg.HorizonMonths <= 0 {
		cfg.HorizonMonths = 12
	}
	return &Analyzer{cfg: cfg, engine: engine}
}

// Evaluate computes the break-even report for replacing current with
// challenger on the given role. Both candidates must be compatible with the
// role; incompatibility surfaces as the engine's IncompatibleCandidate.
func (a *Analyzer) Evaluate(current, challenger types.ModelCandidate, role types.RoleProfile) (BreakEven, error) {
	curScore, err := a.engine.Score(current, role)
	if err != nil {
		return BreakEven{}, err
	}
	chScore, err := a.engine.Score(challenger, role)
	if err != nil {
		return BreakEven{}, err
	}

	be := BreakEven{
		RoleName:     role.Name,
		CurrentID:    current.ID,
		ChallengerID: challenger.ID,
	}
	be.MonthlySavings = role.ExpectedLoad * (current.CostPerUnit - challenger.CostPerUnit)
	switch {
	case be.MonthlySavings <= 0:
		be.BreakEvenMonths = math.Inf(1)
	default:
		be.BreakEvenMonths = challenger.MigrationCost / be.MonthlySavings
	}

	// Performance delta mapped from [-1,1] to [0,1].
	perf := clamp01((chScore.CompositeScore - curScore.CompositeScore + 1) / 2)
	var costSavings float64
	if current.CostPerUnit > 0 {
		costSavings = clamp01((current.CostPerUnit - challenger.CostPerUnit) / current.CostPerUnit)
	}
	inverseRisk := chScore.CriterionScores[CriterionOperational]
	var breakEvenFav float64
	if !math.IsInf(be.BreakEvenMonths, 1) {
		if be.BreakEvenMonths <= 0 {
			breakEvenFav = 1
		} else {
			breakEvenFav = math.Min(1, a.cfg.HorizonMonths/be.BreakEvenMonths)
		}
	}

	be.DecisionScore = a.cfg.PerformanceWeight*perf +
		a.cfg.CostWeight*costSavings +
		a.cfg.RiskWeight*inverseRisk +
		a.cfg.BreakEvenWeight*breakEvenFav
	be.Adopt = be.DecisionScore > a.cfg.AdoptThreshold
	return be, nil
}
