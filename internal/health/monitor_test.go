package health

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelmgr/internal/backend"
	"modelmgr/pkg/types"
)

type fakeBindings map[string]types.Binding

func (f fakeBindings) Resolve(role string) (types.Binding, bool) {
	b, ok := f[role]
	return b, ok
}

type fakeEndpoints map[string]types.ModelCandidate

func (f fakeEndpoints) Get(id string) (types.ModelCandidate, error) {
	c, ok := f[id]
	if !ok {
		return types.ModelCandidate{}, errors.New("not found")
	}
	return c, nil
}

func newTestMonitor(cfg Config) *Monitor {
	stub := backend.NewStub()
	dial := func(string) backend.Backend { return stub }
	return NewMonitor(cfg,
		fakeBindings{"classifier": {RoleName: "classifier", ActiveCandidateID: "a", Version: 1}},
		fakeEndpoints{"a": {ID: "a", Endpoint: "stub://a"}},
		dial, zerolog.Nop())
}

func pass() backend.ProbeResult {
	return backend.ProbeResult{Latency: time.Millisecond}
}

func breach() backend.ProbeResult {
	return backend.ProbeResult{Latency: 10 * time.Second}
}

func fatal() backend.ProbeResult {
	return backend.ProbeResult{Fatal: true, Err: errors.New("connection refused")}
}

func drainEvents(m *Monitor) []Event {
	var out []Event
	for {
		select {
		case ev := <-m.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestLatencyBreachesWalkHealthyDegradedFailed(t *testing.T) {
	m := newTestMonitor(Config{FailureThreshold: 3, ProbationPasses: 3, SoftLatency: time.Second})
	defer m.Close()

	// K=3: first breach degrades, third fails
	m.Observe("classifier", "a", breach())
	st, _ := m.Status("classifier")
	if st.State != types.HealthDegraded || st.ConsecutiveFailures != 1 {
		t.Fatalf("after 1 breach: %+v", st)
	}
	m.Observe("classifier", "a", breach())
	st, _ = m.Status("classifier")
	if st.State != types.HealthDegraded {
		t.Fatalf("after 2 breaches: %+v", st)
	}
	m.Observe("classifier", "a", breach())
	st, _ = m.Status("classifier")
	if st.State != types.HealthFailed || st.ConsecutiveFailures != 3 {
		t.Fatalf("after 3 breaches: %+v", st)
	}

	evs := drainEvents(m)
	if len(evs) != 2 {
		t.Fatalf("expected degraded then failed events, got %+v", evs)
	}
	if evs[0].To != types.HealthDegraded || evs[1].To != types.HealthFailed {
		t.Fatalf("unexpected transition order: %+v", evs)
	}
}

func TestFatalSignalFailsImmediately(t *testing.T) {
	m := newTestMonitor(Config{FailureThreshold: 3, ProbationPasses: 3, SoftLatency: time.Second})
	defer m.Close()
	m.Observe("classifier", "a", fatal())
	st, _ := m.Status("classifier")
	if st.State != types.HealthFailed {
		t.Fatalf("fatal signal should fail immediately: %+v", st)
	}
}

func TestProbeDeadlineMissFailsImmediately(t *testing.T) {
	stub := backend.NewStub()
	stub.SetProbe(func(ctx context.Context) backend.ProbeResult {
		<-ctx.Done()
		return backend.ProbeResult{Err: fmt.Errorf("probe: %w", ctx.Err())}
	})
	m := NewMonitor(Config{FailureThreshold: 3, ProbationPasses: 3, SoftLatency: time.Second, ProbeTimeout: 10 * time.Millisecond},
		fakeBindings{"classifier": {RoleName: "classifier", ActiveCandidateID: "a", Version: 1}},
		fakeEndpoints{"a": {ID: "a", Endpoint: "stub://a"}},
		func(string) backend.Backend { return stub }, zerolog.Nop())
	defer m.Close()

	m.checkOnce(context.Background(), "classifier")
	st, ok := m.Status("classifier")
	if !ok || st.State != types.HealthFailed {
		t.Fatalf("timed-out probe should fail immediately: %+v ok=%v", st, ok)
	}
	if want := ErrHealthCheckTimeout("classifier").Error(); st.Reason != want {
		t.Fatalf("reason %q, want %q", st.Reason, want)
	}
	evs := drainEvents(m)
	if len(evs) != 1 || evs[0].To != types.HealthFailed {
		t.Fatalf("expected a single healthy->failed transition, got %+v", evs)
	}
}

func TestProbationRecovery(t *testing.T) {
	m := newTestMonitor(Config{FailureThreshold: 3, ProbationPasses: 3, SoftLatency: time.Second})
	defer m.Close()
	m.Observe("classifier", "a", breach())

	m.Observe("classifier", "a", pass())
	st, _ := m.Status("classifier")
	if st.State != types.HealthRecovering || st.ConsecutivePasses != 1 {
		t.Fatalf("expected recovering after pass: %+v", st)
	}
	m.Observe("classifier", "a", pass())
	st, _ = m.Status("classifier")
	if st.State != types.HealthRecovering {
		t.Fatalf("still on probation: %+v", st)
	}
	m.Observe("classifier", "a", pass())
	st, _ = m.Status("classifier")
	if st.State != types.HealthHealthy {
		t.Fatalf("expected healthy after N=3 passes: %+v", st)
	}
}

func TestBreachDuringProbationDegradesAgain(t *testing.T) {
	m := newTestMonitor(Config{FailureThreshold: 3, ProbationPasses: 3, SoftLatency: time.Second})
	defer m.Close()
	m.Observe("classifier", "a", breach())
	m.Observe("classifier", "a", pass())
	m.Observe("classifier", "a", breach())
	st, _ := m.Status("classifier")
	if st.State != types.HealthDegraded || st.ConsecutivePasses != 0 {
		t.Fatalf("probation breach should degrade: %+v", st)
	}
}

func TestErrorRateBreach(t *testing.T) {
	m := newTestMonitor(Config{FailureThreshold: 3, ProbationPasses: 3, SoftErrRate: 0.1})
	defer m.Close()
	m.Observe("classifier", "a", backend.ProbeResult{ErrorRate: 0.5})
	st, _ := m.Status("classifier")
	if st.State != types.HealthDegraded {
		t.Fatalf("error-rate breach should degrade: %+v", st)
	}
}

func TestNewCandidateResetsTracking(t *testing.T) {
	m := newTestMonitor(Config{FailureThreshold: 3, ProbationPasses: 3, SoftLatency: time.Second})
	defer m.Close()
	m.Observe("classifier", "a", breach())
	m.Observe("classifier", "b", pass())
	st, _ := m.Status("classifier")
	if st.CandidateID != "b" || st.State != types.HealthHealthy || st.ConsecutiveFailures != 0 {
		t.Fatalf("tracking should reset for new candidate: %+v", st)
	}
}

func TestPollerDrivesObservations(t *testing.T) {
	stub := backend.NewStub()
	probes := make(chan struct{}, 16)
	stub.SetProbe(func(context.Context) backend.ProbeResult {
		probes <- struct{}{}
		return backend.ProbeResult{Latency: 10 * time.Second}
	})
	m := NewMonitor(Config{FailureThreshold: 3, ProbationPasses: 3, SoftLatency: time.Second, PollInterval: time.Hour},
		fakeBindings{"classifier": {RoleName: "classifier", ActiveCandidateID: "a", Version: 1}},
		fakeEndpoints{"a": {ID: "a", Endpoint: "stub://a"}},
		func(string) backend.Backend { return stub }, zerolog.Nop())

	tick := make(chan time.Time)
	m.newTicker = func(time.Duration) (<-chan time.Time, func()) { return tick, func() {} }
	m.Watch("classifier")
	defer m.Close()

	tick <- time.Now()
	select {
	case <-probes:
	case <-time.After(2 * time.Second):
		t.Fatalf("poller did not probe on tick")
	}
	// wait until the observation lands
	deadline := time.After(2 * time.Second)
	for {
		if st, ok := m.Status("classifier"); ok && st.State == types.HealthDegraded {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("observation not applied")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCountersPersistAcrossRestart(t *testing.T) {
	p := filepath.Join(t.TempDir(), "health.json")
	cfg := Config{FailureThreshold: 3, ProbationPasses: 3, SoftLatency: time.Second, StatePath: p}
	m := newTestMonitorWithPath(cfg)
	m.Observe("classifier", "a", breach())
	m.Observe("classifier", "a", breach())
	m.Close()

	m2 := newTestMonitorWithPath(cfg)
	defer m2.Close()
	st, ok := m2.Status("classifier")
	if !ok || st.ConsecutiveFailures != 2 || st.State != types.HealthDegraded {
		t.Fatalf("counters not restored: %+v ok=%v", st, ok)
	}
	// one more breach completes the K=3 window
	m2.Observe("classifier", "a", breach())
	st, _ = m2.Status("classifier")
	if st.State != types.HealthFailed {
		t.Fatalf("expected failed after restored counters: %+v", st)
	}
}

func newTestMonitorWithPath(cfg Config) *Monitor {
	stub := backend.NewStub()
	return NewMonitor(cfg,
		fakeBindings{"classifier": {RoleName: "classifier", ActiveCandidateID: "a", Version: 1}},
		fakeEndpoints{"a": {ID: "a", Endpoint: "stub://a"}},
		func(string) backend.Backend { return stub }, zerolog.Nop())
}
