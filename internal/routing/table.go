// Package routing holds the authoritative role→Binding map. Reads are
// lock-free snapshot reads; every write goes through an optimistic version
// check so concurrent swaps cannot race on the same role.
package routing

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"modelmgr/pkg/types"
)

// swapRaceConflictError signals an optimistic version mismatch on commit.
// Callers re-read the binding and retry; it is not surfaced to users unless
// retries are exhausted.
type swapRaceConflictError struct {
	role     string
	expected uint64
	stored   uint64
}

func (e swapRaceConflictError) Error() string {
	return "swap race conflict on role " + e.role
}

func ErrSwapRaceConflict(role string, expected, stored uint64) error {
	return swapRaceConflictError{role: role, expected: expected, stored: stored}
}

// IsSwapRaceConflict reports whether err indicates a lost version race.
func IsSwapRaceConflict(err error) bool {
	_, ok := err.(swapRaceConflictError)
	return ok
}

// Table is the routing table. The zero value is not usable; use New.
type Table struct {
	mu    sync.Mutex // serializes commits
	snap  atomic.Pointer[map[string]types.Binding]
	path  string // optional persistence file
	swaps atomic.Uint64
	picks atomic.Uint64
	now   func() time.Time
}

// New creates a table. When path is non-empty, previously persisted bindings
// are loaded and every commit is written back (best effort).
func New(path string) *Table {
	t := &Table{path: path, now: time.Now}
	m := make(map[string]types.Binding)
	t.snap.Store(&m)
	t.load()
	return t
}

// Resolve returns the current binding for a role. Lock-free.
func (t *Table) Resolve(role string) (types.Binding, bool) {
	m := *t.snap.Load()
	b, ok := m[role]
	return b, ok
}

// IsBound reports whether the role currently has a binding.
func (t *Table) IsBound(role string) bool {
	_, ok := t.Resolve(role)
	return ok
}

// Snapshot returns a copy of all current bindings.
func (t *Table) Snapshot() map[string]types.Binding {
	m := *t.snap.Load()
	out := make(map[string]types.Binding, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Commit installs a binding if the stored version still matches
// expectedVersion (0 for a first bind). On success the committed binding is
// returned with its version incremented and BoundAt stamped.
func (t *Table) Commit(b types.Binding, expectedVersion uint64) (types.Binding, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := *t.snap.Load()
	var stored uint64
	if existing, ok := cur[b.RoleName]; ok {
		stored = existing.Version
	}
	if stored != expectedVersion {
		return types.Binding{}, ErrSwapRaceConflict(b.RoleName, expectedVersion, stored)
	}

	b.Version = expectedVersion + 1
	b.BoundAt = t.now().UTC()

	// copy-then-swap; readers keep seeing the old snapshot until the store
	next := make(map[string]types.Binding, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	next[b.RoleName] = b
	t.snap.Store(&next)
	if expectedVersion > 0 {
		t.swaps.Add(1)
	}
	t.save(next)
	return b, nil
}

// Pick returns the candidate that should serve the next request for the
// role. During a gradual shift, ShiftPercent of picks go to the shift
// candidate; otherwise the active candidate is returned. Lock-free.
func (t *Table) Pick(role string) (string, types.Binding, bool) {
	b, ok := t.Resolve(role)
	if !ok {
		return "", types.Binding{}, false
	}
	if b.ShiftCandidateID != "" && b.ShiftPercent > 0 {
		n := t.picks.Add(1)
		if int(n%100) < b.ShiftPercent {
			return b.ShiftCandidateID, b, true
		}
	}
	return b.ActiveCandidateID, b, true
}

// SwapsTotal counts committed re-bindings (first binds excluded).
func (t *Table) SwapsTotal() uint64 { return t.swaps.Load() }

func (t *Table) load() {
	if t.path == "" {
		return
	}
	f, err := os.Open(t.path)
	if err != nil {
		return
	}
	defer f.Close()
	var data map[string]types.Binding
	if err := json.NewDecoder(f).Decode(&data); err == nil && data != nil {
		t.snap.Store(&data)
	}
}

func (t *Table) save(m map[string]types.Binding) {
	if t.path == "" {
		return
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(t.path, b, 0o644)
}
