package registry

import (
	"sort"
	"sync"

	"modelmgr/pkg/types"
)

// CandidateRegistry holds all known backend implementations. Candidates are
// never mutated in place: re-registering an id appends a new immutable
// version and lookups return the latest one.
type CandidateRegistry struct {
	mu       sync.RWMutex
	versions map[string][]types.ModelCandidate
}

func NewCandidateRegistry() *CandidateRegistry {
	return &CandidateRegistry{versions: make(map[string][]types.ModelCandidate)}
}

// Register validates and stores a candidate, returning the assigned version.
func (r *CandidateRegistry) Register(c types.ModelCandidate) (uint64, error) {
	if err := validateCandidate(c); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Version = uint64(len(r.versions[c.ID]) + 1)
	r.versions[c.ID] = append(r.versions[c.ID], c)
	return c.Version, nil
}

// Get returns the latest version of a candidate.
func (r *CandidateRegistry) Get(id string) (types.ModelCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs := r.versions[id]
	if len(vs) == 0 {
		return types.ModelCandidate{}, ErrCandidateNotFound(id)
	}
	return vs[len(vs)-1], nil
}

// GetVersion returns one exact historical version.
func (r *CandidateRegistry) GetVersion(id string, version uint64) (types.ModelCandidate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs := r.versions[id]
	if version == 0 || version > uint64(len(vs)) {
		return types.ModelCandidate{}, ErrCandidateNotFound(id)
	}
	return vs[version-1], nil
}

// List returns the latest version of every candidate, sorted by id.
func (r *CandidateRegistry) List() []types.ModelCandidate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.ModelCandidate, 0, len(r.versions))
	for _, vs := range r.versions {
		out = append(out, vs[len(vs)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// validateCandidate enforces the required benchmark metadata contract.
func validateCandidate(c types.ModelCandidate) error {
	if c.ID == "" {
		return ErrIncompleteCandidate("missing id")
	}
	if c.Endpoint == "" {
		return ErrIncompleteCandidate("missing endpoint")
	}
	if len(c.Capabilities) == 0 {
		return ErrIncompleteCandidate("missing capabilities")
	}
	if c.CostPerUnit <= 0 {
		return ErrIncompleteCandidate("cost_per_unit must be positive")
	}
	if c.HardwareClass == "" {
		return ErrIncompleteCandidate("missing hardware_class")
	}
	if len(c.BenchmarkScores) == 0 {
		return ErrIncompleteCandidate("missing benchmark_scores")
	}
	for name, bs := range c.BenchmarkScores {
		if bs.Source == "" {
			return ErrIncompleteCandidate("benchmark " + name + " missing source")
		}
		if bs.EvaluatedAt.IsZero() {
			return ErrIncompleteCandidate("benchmark " + name + " missing evaluated_at")
		}
	}
	return nil
}
