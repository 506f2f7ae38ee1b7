package routing

import (
	"path/filepath"
	"sync"
	"testing"

	"modelmgr/pkg/types"
)

func TestCommitFirstBind(t *testing.T) {
	tb := New("")
	b, err := tb.Commit(types.Binding{RoleName: "summarizer", ActiveCandidateID: "a"}, 0)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if b.Version != 1 || b.BoundAt.IsZero() {
		t.Fatalf("unexpected binding: %+v", b)
	}
	got, ok := tb.Resolve("summarizer")
	if !ok || got.ActiveCandidateID != "a" {
		t.Fatalf("resolve: %+v ok=%v", got, ok)
	}
	if tb.SwapsTotal() != 0 {
		t.Fatalf("first bind must not count as swap")
	}
}

func TestCommitVersionMismatch(t *testing.T) {
	tb := New("")
	if _, err := tb.Commit(types.Binding{RoleName: "r", ActiveCandidateID: "a"}, 0); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// stale writer: read version was 0, stored is now 1
	if _, err := tb.Commit(types.Binding{RoleName: "r", ActiveCandidateID: "b"}, 0); !IsSwapRaceConflict(err) {
		t.Fatalf("expected SwapRaceConflict, got %v", err)
	}
	got, _ := tb.Resolve("r")
	if got.ActiveCandidateID != "a" || got.Version != 1 {
		t.Fatalf("losing writer must not overwrite: %+v", got)
	}
	if _, err := tb.Commit(types.Binding{RoleName: "r", ActiveCandidateID: "b"}, 1); err != nil {
		t.Fatalf("commit with fresh version: %v", err)
	}
	if tb.SwapsTotal() != 1 {
		t.Fatalf("expected 1 swap, got %d", tb.SwapsTotal())
	}
}

func TestConcurrentCommitsExactlyOneWins(t *testing.T) {
	tb := New("")
	if _, err := tb.Commit(types.Binding{RoleName: "r", ActiveCandidateID: "a"}, 0); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cur, _ := tb.Resolve("r")

	const writers = 8
	var wg sync.WaitGroup
	wins := make(chan string, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(id byte) {
			defer wg.Done()
			b := types.Binding{RoleName: "r", ActiveCandidateID: string('b' + id)}
			if _, err := tb.Commit(b, cur.Version); err == nil {
				wins <- b.ActiveCandidateID
			}
		}(byte(i))
	}
	wg.Wait()
	close(wins)
	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %v", winners)
	}
	got, _ := tb.Resolve("r")
	if got.ActiveCandidateID != winners[0] || got.Version != cur.Version+1 {
		t.Fatalf("table inconsistent after race: %+v", got)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tb := New("")
	if _, err := tb.Commit(types.Binding{RoleName: "r", ActiveCandidateID: "a"}, 0); err != nil {
		t.Fatalf("commit: %v", err)
	}
	snap := tb.Snapshot()
	snap["r"] = types.Binding{RoleName: "r", ActiveCandidateID: "hacked"}
	got, _ := tb.Resolve("r")
	if got.ActiveCandidateID != "a" {
		t.Fatalf("snapshot mutation leaked into table")
	}
}

func TestPickSplitsDuringShift(t *testing.T) {
	tb := New("")
	if _, err := tb.Commit(types.Binding{
		RoleName:          "r",
		ActiveCandidateID: "a",
		ShiftCandidateID:  "b",
		ShiftPercent:      25,
	}, 0); err != nil {
		t.Fatalf("commit: %v", err)
	}
	counts := map[string]int{}
	for i := 0; i < 400; i++ {
		id, _, ok := tb.Pick("r")
		if !ok {
			t.Fatalf("pick failed")
		}
		counts[id]++
	}
	if counts["b"] != 100 {
		t.Fatalf("expected 100/400 picks for shift candidate, got %d", counts["b"])
	}
}

func TestPickWithoutShiftAlwaysActive(t *testing.T) {
	tb := New("")
	if _, err := tb.Commit(types.Binding{RoleName: "r", ActiveCandidateID: "a"}, 0); err != nil {
		t.Fatalf("commit: %v", err)
	}
	for i := 0; i < 10; i++ {
		id, _, _ := tb.Pick("r")
		if id != "a" {
			t.Fatalf("pick should return active, got %s", id)
		}
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bindings.json")
	tb := New(p)
	if _, err := tb.Commit(types.Binding{
		RoleName:           "r",
		ActiveCandidateID:  "a",
		BackupCandidateIDs: []string{"b", "c"},
	}, 0); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := tb.Commit(types.Binding{RoleName: "r", ActiveCandidateID: "b"}, 1); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reloaded := New(p)
	got, ok := reloaded.Resolve("r")
	if !ok {
		t.Fatalf("binding not persisted")
	}
	if got.ActiveCandidateID != "b" || got.Version != 2 {
		t.Fatalf("unexpected persisted binding: %+v", got)
	}
	// version history survives the restart: a stale commit still loses
	if _, err := reloaded.Commit(types.Binding{RoleName: "r", ActiveCandidateID: "c"}, 1); !IsSwapRaceConflict(err) {
		t.Fatalf("expected SwapRaceConflict after reload, got %v", err)
	}
}
