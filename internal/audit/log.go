// Package audit appends violation records to a JSONL log, one record per
// line. Records are immutable; the log is append-only.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelmgr/internal/common/fsutil"
	"modelmgr/pkg/types"
)

// Log writes AuditRecords to a file. Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	f    *os.File
	path string
	now  func() time.Time
}

// Open creates (or appends to) the log at path, creating parent directories.
func Open(path string) (*Log, error) {
	abs, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	if _, err := fsutil.EnsureDir(filepath.Dir(abs)); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Log{f: f, path: abs, now: time.Now}, nil
}

// Record appends one entry and returns it with id and timestamp filled in.
func (l *Log) Record(candidateID, roleName, violationType, details string) (types.AuditRecord, error) {
	rec := types.AuditRecord{
		ID:            uuid.NewString(),
		Timestamp:     l.now().UTC(),
		CandidateID:   candidateID,
		RoleName:      roleName,
		ViolationType: violationType,
		Details:       details,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return rec, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(append(b, '\n')); err != nil {
		return rec, fmt.Errorf("append audit record: %w", err)
	}
	return rec, nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// ReadAll parses every record in the log. Intended for tests and admin
// tooling, not the serving path.
func ReadAll(path string) ([]types.AuditRecord, error) {
	abs, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []types.AuditRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.AuditRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parse audit line: %w", err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
