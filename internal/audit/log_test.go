package audit

import (
	"path/filepath"
	"sync"
	"testing"
)

func TestRecordAndReadAll(t *testing.T) {
	p := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec, err := l.Record("cand-a", "summarizer", "no_backup", "forced swap with empty backup list")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.ID == "" || rec.Timestamp.IsZero() {
		t.Fatalf("record not stamped: %+v", rec)
	}
	if _, err := l.Record("cand-a", "summarizer", "safety_substitution", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	recs, err := ReadAll(p)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ViolationType != "no_backup" || recs[1].ViolationType != "safety_substitution" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestOpenCreatesParentDirs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "state", "audit.jsonl")
	l, err := Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()
	if _, err := l.Record("c", "r", "v", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestConcurrentAppends(t *testing.T) {
	p := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Record("c", "r", "v", ""); err != nil {
				t.Errorf("record: %v", err)
			}
		}()
	}
	wg.Wait()
	l.Close()
	recs, err := ReadAll(p)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(recs) != 20 {
		t.Fatalf("expected 20 intact lines, got %d", len(recs))
	}
}
