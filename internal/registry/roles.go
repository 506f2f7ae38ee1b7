package registry

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"modelmgr/pkg/types"
)

const weightsEpsilon = 1e-6

// BindingChecker reports whether a role currently has a live binding.
// Satisfied by the routing table; kept as an interface so the store does not
// depend on routing.
type BindingChecker interface {
	IsBound(role string) bool
}

// RoleStore holds versioned role profiles. Profiles are immutable; an update
// appends a new version, and deletion is refused while a binding references
// the role.
type RoleStore struct {
	mu       sync.RWMutex
	versions map[string][]types.RoleProfile
	bindings BindingChecker
}

func NewRoleStore() *RoleStore {
	return &RoleStore{versions: make(map[string][]types.RoleProfile)}
}

// SetBindingChecker wires the routing table in after construction; the store
// and the table are created in a cycle-free order at startup.
func (s *RoleStore) SetBindingChecker(bc BindingChecker) {
	s.mu.Lock()
	s.bindings = bc
	s.mu.Unlock()
}

// Register validates and stores a profile, returning the assigned version.
func (s *RoleStore) Register(p types.RoleProfile) (uint64, error) {
	if p.Name == "" {
		return 0, ErrInvalidWeights("missing role name")
	}
	if err := validateWeights(p.Weights); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Version = uint64(len(s.versions[p.Name]) + 1)
	s.versions[p.Name] = append(s.versions[p.Name], p)
	return p.Version, nil
}

// Get returns the latest version of a profile.
func (s *RoleStore) Get(name string) (types.RoleProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vs := s.versions[name]
	if len(vs) == 0 {
		return types.RoleProfile{}, ErrRoleNotFound(name)
	}
	return vs[len(vs)-1], nil
}

// Delete removes a profile. Refused with RoleInUse while the routing table
// still holds a binding for it.
func (s *RoleStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.versions[name]) == 0 {
		return ErrRoleNotFound(name)
	}
	if s.bindings != nil && s.bindings.IsBound(name) {
		return ErrRoleInUse(name)
	}
	delete(s.versions, name)
	return nil
}

// List returns the latest version of every profile, sorted by name.
func (s *RoleStore) List() []types.RoleProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RoleProfile, 0, len(s.versions))
	for _, vs := range s.versions {
		out = append(out, vs[len(vs)-1])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func validateWeights(w map[string]float64) error {
	if len(w) == 0 {
		return ErrInvalidWeights("no weights given")
	}
	var sum float64
	for name, v := range w {
		if v < 0 {
			return ErrInvalidWeights(fmt.Sprintf("weight %s is negative", name))
		}
		sum += v
	}
	if math.Abs(sum-1.0) > weightsEpsilon {
		return ErrInvalidWeights(fmt.Sprintf("weights sum to %g, want 1.0", sum))
	}
	return nil
}
