package scoring

import (
	"sort"

	"modelmgr/pkg/types"
)

// CandidateSource yields the candidate set selection draws from.
// Satisfied by registry.CandidateRegistry.
type CandidateSource interface {
	List() []types.ModelCandidate
	Get(id string) (types.ModelCandidate, error)
}

// Proposal is the outcome of SelectBest: the top candidate plus ranked backups.
type Proposal struct {
	RoleName string
	Active   types.ScoreResult
	// Backups are the remaining compatible candidates, best first.
	Backups []types.ScoreResult
}

// BackupIDs returns the ranked backup candidate ids.
func (p Proposal) BackupIDs() []string {
	out := make([]string, len(p.Backups))
	for i, b := range p.Backups {
		out[i] = b.CandidateID
	}
	return out
}

// Selector ranks compatible candidates for a role.
type Selector struct {
	engine     *Engine
	candidates CandidateSource
}

func NewSelector(engine *Engine, candidates CandidateSource) *Selector {
	return &Selector{engine: engine, candidates: candidates}
}

// SelectBest scores every compatible candidate for the role and returns the
// ranked proposal. Candidates whose ids appear in exclude are skipped.
// Fails with NoCompatibleCandidate when the filtered set is empty.
func (s *Selector) SelectBest(role types.RoleProfile, exclude ...string) (Proposal, error) {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	type ranked struct {
		score types.ScoreResult
		cost  float64
	}
	var results []ranked
	for _, c := range s.candidates.List() {
		if _, ok := skip[c.ID]; ok {
			continue
		}
		sr, err := s.engine.Score(c, role)
		if err != nil {
			if IsIncompatibleCandidate(err) {
				continue
			}
			return Proposal{}, err
		}
		results = append(results, ranked{score: sr, cost: c.CostPerUnit})
	}
	if len(results) == 0 {
		return Proposal{}, ErrNoCompatibleCandidate(role.Name)
	}

	// Descending composite; ties broken by higher operational sub-score,
	// then by lower cost, then by id for a stable order.
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.score.CompositeScore != b.score.CompositeScore {
			return a.score.CompositeScore > b.score.CompositeScore
		}
		ao := a.score.CriterionScores[CriterionOperational]
		bo := b.score.CriterionScores[CriterionOperational]
		if ao != bo {
			return ao > bo
		}
		if a.cost != b.cost {
			return a.cost < b.cost
		}
		return a.score.CandidateID < b.score.CandidateID
	})

	p := Proposal{RoleName: role.Name, Active: results[0].score}
	for _, r := range results[1:] {
		p.Backups = append(p.Backups, r.score)
	}
	return p, nil
}
