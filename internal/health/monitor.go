// Package health polls active bindings and classifies each bound candidate
// into Healthy/Degraded/Failed/Recovering. One poller goroutine per bound
// role, each on its own timer, so one role's check never blocks another's.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelmgr/internal/backend"
	"modelmgr/pkg/types"
)

// Event is emitted on every state transition. Degraded/Failed transitions
// drive the hot-swap orchestrator.
type Event struct {
	RoleName    string
	CandidateID string
	From        types.HealthState
	To          types.HealthState
	Reason      string
}

// BindingResolver gives the monitor the current binding per role.
// Satisfied by routing.Table.
type BindingResolver interface {
	Resolve(role string) (types.Binding, bool)
}

// EndpointSource maps candidate ids to endpoints. Satisfied by the
// candidate registry.
type EndpointSource interface {
	Get(id string) (types.ModelCandidate, error)
}

// Config carries the monitor tunables.
type Config struct {
	PollInterval time.Duration
	ProbeTimeout time.Duration
	SoftLatency  time.Duration
	SoftErrRate  float64
	// Consecutive breaches before Degraded becomes Failed.
	FailureThreshold int
	// Consecutive passes required to leave Recovering.
	ProbationPasses int
	// Rolling counter persistence file; empty disables persistence.
	StatePath string
}

// Monitor owns the per-role pollers and the health state machine.
type Monitor struct {
	cfg      Config
	bindings BindingResolver
	registry EndpointSource
	dial     backend.Dialer
	log      zerolog.Logger

	mu       sync.Mutex
	statuses map[string]*types.HealthStatus
	pollers  map[string]context.CancelFunc
	wg       sync.WaitGroup

	events chan Event

	// newTicker is swappable so tests can advance checks manually.
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

func NewMonitor(cfg Config, bindings BindingResolver, registry EndpointSource, dial backend.Dialer, log zerolog.Logger) *Monitor {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.ProbationPasses <= 0 {
		cfg.ProbationPasses = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	m := &Monitor{
		cfg:      cfg,
		bindings: bindings,
		registry: registry,
		dial:     dial,
		log:      log.With().Str("component", "health").Logger(),
		statuses: make(map[string]*types.HealthStatus),
		pollers:  make(map[string]context.CancelFunc),
		events:   make(chan Event, 64),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
	m.loadCounters()
	return m
}

// Events is the transition stream consumed by the orchestrator.
func (m *Monitor) Events() <-chan Event { return m.events }

// Watch starts an independent poller for a role. No-op if already watched.
func (m *Monitor) Watch(role string) {
	m.mu.Lock()
	if _, ok := m.pollers[role]; ok {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.pollers[role] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.poll(ctx, role)
}

// Unwatch stops the role's poller.
func (m *Monitor) Unwatch(role string) {
	m.mu.Lock()
	cancel, ok := m.pollers[role]
	if ok {
		delete(m.pollers, role)
	}
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close stops all pollers and waits for them to exit.
func (m *Monitor) Close() {
	m.mu.Lock()
	for role, cancel := range m.pollers {
		cancel()
		delete(m.pollers, role)
	}
	m.mu.Unlock()
	m.wg.Wait()
	m.saveCounters()
}

func (m *Monitor) poll(ctx context.Context, role string) {
	defer m.wg.Done()
	tick, stop := m.newTicker(m.cfg.PollInterval)
	defer stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			m.checkOnce(ctx, role)
		}
	}
}

// checkOnce resolves the role's current binding, probes the active
// candidate, and feeds the result through the state machine.
func (m *Monitor) checkOnce(ctx context.Context, role string) {
	b, ok := m.bindings.Resolve(role)
	if !ok {
		return
	}
	cand, err := m.registry.Get(b.ActiveCandidateID)
	if err != nil {
		m.log.Warn().Str("role", role).Str("candidate", b.ActiveCandidateID).Err(err).Msg("bound candidate missing from registry")
		return
	}
	be := m.dial(cand.Endpoint)
	defer be.Close()

	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	pr := be.Probe(probeCtx)
	cancel()
	if pr.Err != nil && errors.Is(pr.Err, context.DeadlineExceeded) {
		pr.Fatal = true
		pr.Err = ErrHealthCheckTimeout(role)
	}
	m.Observe(role, b.ActiveCandidateID, pr)
}

// Observe applies one probe result to the role's state machine and emits an
// Event when the state changes. Exported so tests and the orchestrator's
// shift monitoring can drive it without a timer.
func (m *Monitor) Observe(role, candidateID string, pr backend.ProbeResult) {
	m.mu.Lock()
	st, ok := m.statuses[role]
	if !ok || st.CandidateID != candidateID {
		// first observation, or the binding moved to a new candidate
		st = &types.HealthStatus{RoleName: role, CandidateID: candidateID, State: types.HealthHealthy}
		m.statuses[role] = st
	}
	from := st.State
	breach, reason := m.classify(pr)
	st.LastCheckedAt = time.Now().UTC()

	switch {
	case pr.Fatal:
		st.State = types.HealthFailed
		st.ConsecutiveFailures++
		st.ConsecutivePasses = 0
		st.Reason = reason
	case breach:
		st.ConsecutiveFailures++
		st.ConsecutivePasses = 0
		st.Reason = reason
		switch from {
		case types.HealthHealthy, types.HealthRecovering:
			st.State = types.HealthDegraded
		case types.HealthDegraded:
			if st.ConsecutiveFailures >= m.cfg.FailureThreshold {
				st.State = types.HealthFailed
			}
		}
	default:
		st.ConsecutiveFailures = 0
		switch from {
		case types.HealthDegraded, types.HealthFailed:
			st.State = types.HealthRecovering
			st.ConsecutivePasses = 1
			st.Reason = ""
		case types.HealthRecovering:
			st.ConsecutivePasses++
			if st.ConsecutivePasses >= m.cfg.ProbationPasses {
				st.State = types.HealthHealthy
				st.ConsecutivePasses = 0
			}
		}
	}
	to := st.State
	m.mu.Unlock()

	if from != to {
		m.saveCounters()
		m.log.Info().Str("role", role).Str("candidate", candidateID).
			Str("from", string(from)).Str("to", string(to)).Str("reason", reason).
			Msg("health transition")
		ev := Event{RoleName: role, CandidateID: candidateID, From: from, To: to, Reason: reason}
		select {
		case m.events <- ev:
		default:
			m.log.Warn().Str("role", role).Msg("health event dropped: consumer lagging")
		}
	}
}

func (m *Monitor) classify(pr backend.ProbeResult) (breach bool, reason string) {
	switch {
	case pr.Err != nil:
		return true, pr.Err.Error()
	case m.cfg.SoftLatency > 0 && pr.Latency > m.cfg.SoftLatency:
		return true, "latency above soft threshold"
	case m.cfg.SoftErrRate > 0 && pr.ErrorRate > m.cfg.SoftErrRate:
		return true, "error rate above soft threshold"
	}
	return false, ""
}

// Snapshot returns the current status of every tracked role.
func (m *Monitor) Snapshot() []types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.HealthStatus, 0, len(m.statuses))
	for _, st := range m.statuses {
		out = append(out, *st)
	}
	return out
}

// Status returns one role's current status.
func (m *Monitor) Status(role string) (types.HealthStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.statuses[role]
	if !ok {
		return types.HealthStatus{}, false
	}
	return *st, true
}

func (m *Monitor) loadCounters() {
	if m.cfg.StatePath == "" {
		return
	}
	f, err := os.Open(m.cfg.StatePath)
	if err != nil {
		return
	}
	defer f.Close()
	var data map[string]types.HealthStatus
	if err := json.NewDecoder(f).Decode(&data); err == nil {
		for role, st := range data {
			s := st
			m.statuses[role] = &s
		}
	}
}

func (m *Monitor) saveCounters() {
	if m.cfg.StatePath == "" {
		return
	}
	m.mu.Lock()
	snap := make(map[string]types.HealthStatus, len(m.statuses))
	for role, st := range m.statuses {
		snap[role] = *st
	}
	m.mu.Unlock()
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(m.cfg.StatePath, b, 0o644)
}
