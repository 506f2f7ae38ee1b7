// Package swap executes failover: gradual traffic shifts for degraded
// bindings, emergency cutovers for failed ones, and admin-forced swaps.
// Every binding mutation goes through the routing table's optimistic
// version check; a losing writer re-reads and retries, never overwrites.
package swap

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"modelmgr/internal/backend"
	"modelmgr/internal/health"
	"modelmgr/internal/routing"
	"modelmgr/internal/scoring"
	"modelmgr/pkg/types"
)

// RoleSource yields role profiles. Satisfied by registry.RoleStore.
type RoleSource interface {
	Get(name string) (types.RoleProfile, error)
}

// CandidateSource yields candidate metadata. Satisfied by the candidate registry.
type CandidateSource interface {
	Get(id string) (types.ModelCandidate, error)
}

// Selector ranks replacement candidates. Satisfied by scoring.Selector.
type Selector interface {
	SelectBest(role types.RoleProfile, exclude ...string) (scoring.Proposal, error)
}

// Auditor appends violation records. Satisfied by audit.Log.
type Auditor interface {
	Record(candidateID, roleName, violationType, details string) (types.AuditRecord, error)
}

// Alerter publishes alert records. Satisfied by bus.Bus.
type Alerter interface {
	Publish(topic, producer string, payload any) types.KnowledgeRecord
}

// Config carries the orchestrator tunables.
type Config struct {
	WarmupTimeout    time.Duration
	MigrationTimeout time.Duration
	ProbeTimeout     time.Duration
	// Optimistic-commit retry budget.
	CommitRetries int
	// Traffic percentages walked through during a gradual shift.
	ShiftSteps []int
	// Dwell time at each shift step.
	StepInterval time.Duration
	// Consecutive clean probes required before promotion.
	ProbationPasses int
}

// Outcome reports what a swap attempt did.
type Outcome struct {
	RoleName string `json:"role_name"`
	// Kind: gradual, emergency, forced, or none.
	Kind string `json:"kind"`
	// Result: swapped, aborted, or kept.
	Result      string `json:"result"`
	FromID      string `json:"from_id,omitempty"`
	ToID        string `json:"to_id,omitempty"`
	Version     uint64 `json:"version,omitempty"`
	Reason      string `json:"reason,omitempty"`
	OperationID string `json:"operation_id"`
}

// Orchestrator reacts to health events and admin requests by re-binding roles.
type Orchestrator struct {
	cfg        Config
	roles      RoleSource
	candidates CandidateSource
	selector   Selector
	table      *routing.Table
	dial       backend.Dialer
	audit      Auditor
	alerts     Alerter
	log        zerolog.Logger

	mu sync.Mutex
	// last successfully persisted session state per role, used to
	// synchronize stateful backends on emergency cutover (may be stale)
	lastState map[string][]byte
}

func NewOrchestrator(cfg Config, roles RoleSource, candidates CandidateSource, selector Selector,
	table *routing.Table, dial backend.Dialer, auditor Auditor, alerts Alerter, log zerolog.Logger) *Orchestrator {
	if cfg.WarmupTimeout <= 0 {
		cfg.WarmupTimeout = 30 * time.Second
	}
	if cfg.MigrationTimeout <= 0 {
		cfg.MigrationTimeout = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.CommitRetries <= 0 {
		cfg.CommitRetries = 3
	}
	if len(cfg.ShiftSteps) == 0 {
		cfg.ShiftSteps = []int{10, 25, 50, 100}
	}
	if cfg.ProbationPasses <= 0 {
		cfg.ProbationPasses = 3
	}
	return &Orchestrator{
		cfg:        cfg,
		roles:      roles,
		candidates: candidates,
		selector:   selector,
		table:      table,
		dial:       dial,
		audit:      auditor,
		alerts:     alerts,
		log:        log.With().Str("component", "swap").Logger(),
		lastState:  make(map[string][]byte),
	}
}

// Queued events a single role can have pending while its worker is busy.
const laneBuffer = 8

// Run consumes health events until ctx is canceled. Events are handled on
// one worker goroutine per role: in order within a role, in parallel across
// roles, so a long gradual shift never delays another role's cutover. Swap
// failures are recovered locally and never crash the serving path.
func (o *Orchestrator) Run(ctx context.Context, events <-chan health.Event) {
	lanes := make(map[string]chan health.Event)
	var wg sync.WaitGroup
	defer func() {
		for _, lane := range lanes {
			close(lane)
		}
		wg.Wait()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			lane, ok := lanes[ev.RoleName]
			if !ok {
				lane = make(chan health.Event, laneBuffer)
				lanes[ev.RoleName] = lane
				wg.Add(1)
				go func() {
					defer wg.Done()
					for ev := range lane {
						if _, err := o.HandleHealthEvent(ctx, ev); err != nil && !IsBackupUnavailable(err) {
							o.log.Error().Str("role", ev.RoleName).Err(err).Msg("swap failed")
						}
					}
				}()
			}
			if len(lane) == cap(lane) {
				// this loop is the only producer, so the drop is race-free
				<-lane
				o.log.Warn().Str("role", ev.RoleName).Msg("health event lane full, dropped oldest")
			}
			lane <- ev
		}
	}
}

// HandleHealthEvent reacts to one health transition.
func (o *Orchestrator) HandleHealthEvent(ctx context.Context, ev health.Event) (Outcome, error) {
	switch ev.To {
	case types.HealthDegraded:
		return o.gradual(ctx, ev.RoleName, ev.CandidateID)
	case types.HealthFailed:
		return o.emergency(ctx, ev.RoleName, ev.CandidateID, "", "emergency")
	default:
		return Outcome{RoleName: ev.RoleName, Kind: "none", Result: "kept", OperationID: uuid.NewString()}, nil
	}
}

// ForceSwap triggers an immediate swap as if a Failed event occurred.
func (o *Orchestrator) ForceSwap(ctx context.Context, role, target string) (Outcome, error) {
	b, ok := o.table.Resolve(role)
	if !ok {
		return Outcome{}, ErrRoleNotBound(role)
	}
	return o.emergency(ctx, role, b.ActiveCandidateID, target, "forced")
}

// EnsureBinding binds a role if it has no binding yet.
func (o *Orchestrator) EnsureBinding(role string) (types.Binding, error) {
	if b, ok := o.table.Resolve(role); ok {
		return b, nil
	}
	profile, err := o.roles.Get(role)
	if err != nil {
		return types.Binding{}, err
	}
	prop, err := o.selector.SelectBest(profile)
	if err != nil {
		return types.Binding{}, err
	}
	b, err := o.table.Commit(types.Binding{
		RoleName:           role,
		ActiveCandidateID:  prop.Active.CandidateID,
		BackupCandidateIDs: prop.BackupIDs(),
	}, 0)
	if routing.IsSwapRaceConflict(err) {
		// lost a concurrent first bind; whatever won is fine
		cur, _ := o.table.Resolve(role)
		return cur, nil
	}
	return b, err
}

// gradual replaces a degraded binding through a staged traffic shift,
// promoting the backup only after it sustains clean probes, and aborting
// (keeping the original binding) if the backup itself misbehaves.
func (o *Orchestrator) gradual(ctx context.Context, role, degradedID string) (Outcome, error) {
	op := Outcome{RoleName: role, Kind: "gradual", FromID: degradedID, OperationID: uuid.NewString()}
	profile, err := o.roles.Get(role)
	if err != nil {
		return o.finish(op, "aborted", err.Error()), err
	}
	prop, err := o.selector.SelectBest(profile, degradedID)
	if err != nil {
		if scoring.IsNoCompatibleCandidate(err) {
			return o.noBackup(op, degradedID, "degraded binding has no compatible backup")
		}
		return o.finish(op, "aborted", err.Error()), err
	}
	backupID := prop.Active.CandidateID
	op.ToID = backupID
	cand, err := o.candidates.Get(backupID)
	if err != nil {
		return o.finish(op, "aborted", err.Error()), err
	}
	be := o.dial(cand.Endpoint)
	defer be.Close()

	if err := o.warmup(ctx, be); err != nil {
		o.auditSwap(backupID, role, "swap_aborted", "warmup failed: "+err.Error())
		return o.finish(op, "aborted", "warmup: "+err.Error()), nil
	}
	if cand.Stateful {
		if err := o.migrateState(ctx, role, degradedID, be); err != nil {
			o.auditSwap(backupID, role, "swap_aborted", "state migration failed: "+err.Error())
			return o.finish(op, "aborted", "state migration: "+err.Error()), nil
		}
	}

	// staged shift: commit each step, watch the backup, abort on trouble
	for _, pct := range o.cfg.ShiftSteps {
		committed, proceed, err := o.commit(role, func(cur types.Binding, exists bool) (types.Binding, bool) {
			if !exists || cur.ActiveCandidateID != degradedID {
				return cur, false // someone else already swapped; converge
			}
			cur.ShiftCandidateID = backupID
			cur.ShiftPercent = pct
			return cur, true
		})
		if err != nil {
			return o.finish(op, "aborted", err.Error()), err
		}
		if !proceed {
			return o.finish(op, "kept", "binding changed concurrently"), nil
		}
		op.Version = committed.Version

		if err := o.dwell(ctx); err != nil {
			return o.abortShift(op, role, degradedID, backupID, "canceled")
		}
		if pr := o.probe(ctx, be); pr.Err != nil || pr.Fatal {
			return o.abortShift(op, role, degradedID, backupID, probeReason(pr))
		}
	}

	// probation: the backup must sustain clean probes before promotion
	for i := 0; i < o.cfg.ProbationPasses; i++ {
		if pr := o.probe(ctx, be); pr.Err != nil || pr.Fatal {
			return o.abortShift(op, role, degradedID, backupID, probeReason(pr))
		}
		if err := o.dwell(ctx); err != nil {
			return o.abortShift(op, role, degradedID, backupID, "canceled")
		}
	}

	committed, proceed, err := o.commit(role, func(cur types.Binding, exists bool) (types.Binding, bool) {
		if !exists || cur.ActiveCandidateID != degradedID {
			return cur, false
		}
		return types.Binding{
			RoleName:           role,
			ActiveCandidateID:  backupID,
			BackupCandidateIDs: prop.BackupIDs(),
		}, true
	})
	if err != nil {
		return o.finish(op, "aborted", err.Error()), err
	}
	if !proceed {
		return o.finish(op, "kept", "binding changed concurrently"), nil
	}
	op.Version = committed.Version
	return o.finish(op, "swapped", ""), nil
}

// emergency performs an immediate full cutover to the top-ranked backup.
func (o *Orchestrator) emergency(ctx context.Context, role, failedID, target, kind string) (Outcome, error) {
	op := Outcome{RoleName: role, Kind: kind, FromID: failedID, OperationID: uuid.NewString()}
	profile, err := o.roles.Get(role)
	if err != nil {
		return o.finish(op, "aborted", err.Error()), err
	}
	prop, err := o.selector.SelectBest(profile, failedID)
	if err != nil && !scoring.IsNoCompatibleCandidate(err) {
		return o.finish(op, "aborted", err.Error()), err
	}
	if target == "" {
		if scoring.IsNoCompatibleCandidate(err) {
			return o.noBackup(op, failedID, "failed binding has no compatible backup")
		}
		target = prop.Active.CandidateID
	}
	op.ToID = target
	cand, err := o.candidates.Get(target)
	if err != nil {
		return o.finish(op, "aborted", err.Error()), err
	}
	be := o.dial(cand.Endpoint)
	defer be.Close()

	// best effort on an emergency path: a cold backup beats a dead primary
	if err := o.warmup(ctx, be); err != nil {
		o.log.Warn().Str("role", role).Str("candidate", target).Err(err).Msg("emergency warmup failed, cutting over anyway")
	}
	if cand.Stateful {
		// synchronize from the last successfully persisted state; may be stale
		o.mu.Lock()
		state := o.lastState[role]
		o.mu.Unlock()
		if state != nil {
			if err := o.importState(ctx, be, state); err != nil {
				o.log.Warn().Str("role", role).Err(err).Msg("stale state import failed")
			}
		}
	}

	backups := make([]string, 0, len(prop.Backups))
	for _, id := range prop.BackupIDs() {
		if id != target {
			backups = append(backups, id)
		}
	}
	committed, proceed, err := o.commit(role, func(cur types.Binding, exists bool) (types.Binding, bool) {
		if !exists {
			return cur, false
		}
		if cur.ActiveCandidateID != failedID {
			return cur, false // already swapped by a concurrent operation
		}
		return types.Binding{
			RoleName:           role,
			ActiveCandidateID:  target,
			BackupCandidateIDs: backups,
		}, true
	})
	if err != nil {
		return o.finish(op, "aborted", err.Error()), err
	}
	if !proceed {
		return o.finish(op, "kept", "already swapped"), nil
	}
	op.Version = committed.Version
	return o.finish(op, "swapped", ""), nil
}

// noBackup keeps the existing binding, marks the role degraded, audits the
// condition and raises an alert. Never silently dropped.
func (o *Orchestrator) noBackup(op Outcome, candidateID, detail string) (Outcome, error) {
	_, _, err := o.commit(op.RoleName, func(cur types.Binding, exists bool) (types.Binding, bool) {
		if !exists || cur.Degraded {
			return cur, false
		}
		cur.Degraded = true
		return cur, true
	})
	if err != nil {
		o.log.Error().Str("role", op.RoleName).Err(err).Msg("failed to mark role degraded")
	}
	o.auditSwap(candidateID, op.RoleName, "no_backup", detail)
	o.alerts.Publish("alerts", "swap", map[string]string{
		"role":      op.RoleName,
		"candidate": candidateID,
		"alert":     "no_backup",
	})
	return o.finish(op, "kept", "no backup available"), ErrBackupUnavailable(op.RoleName)
}

// abortShift restores the original binding after a failed gradual shift.
func (o *Orchestrator) abortShift(op Outcome, role, degradedID, backupID, reason string) (Outcome, error) {
	_, _, err := o.commit(role, func(cur types.Binding, exists bool) (types.Binding, bool) {
		if !exists || cur.ActiveCandidateID != degradedID {
			return cur, false
		}
		cur.ShiftCandidateID = ""
		cur.ShiftPercent = 0
		return cur, true
	})
	if err != nil {
		o.log.Error().Str("role", role).Err(err).Msg("failed to clear shift state")
	}
	o.auditSwap(backupID, role, "shift_aborted", reason)
	return o.finish(op, "aborted", reason), nil
}

// commit retries a binding mutation against fresh state until it lands,
// the mutation declines to proceed, or the retry budget runs out.
func (o *Orchestrator) commit(role string, mutate func(cur types.Binding, exists bool) (types.Binding, bool)) (types.Binding, bool, error) {
	for attempt := 0; attempt <= o.cfg.CommitRetries; attempt++ {
		cur, exists := o.table.Resolve(role)
		next, proceed := mutate(cur, exists)
		if !proceed {
			return cur, false, nil
		}
		var expected uint64
		if exists {
			expected = cur.Version
		}
		b, err := o.table.Commit(next, expected)
		if routing.IsSwapRaceConflict(err) {
			continue
		}
		return b, true, err
	}
	return types.Binding{}, false, ErrRetriesExhausted(role)
}

func (o *Orchestrator) warmup(ctx context.Context, be backend.Backend) error {
	wctx, cancel := context.WithTimeout(ctx, o.cfg.WarmupTimeout)
	defer cancel()
	return be.Warmup(wctx)
}

func (o *Orchestrator) probe(ctx context.Context, be backend.Backend) backend.ProbeResult {
	pctx, cancel := context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	defer cancel()
	return be.Probe(pctx)
}

// migrateState copies session state from the old backend into the new one.
// Copy-then-swap: traffic keeps hitting the old backend until the shift.
func (o *Orchestrator) migrateState(ctx context.Context, role, fromID string, dst backend.Backend) error {
	cand, err := o.candidates.Get(fromID)
	if err != nil {
		return err
	}
	src := o.dial(cand.Endpoint)
	defer src.Close()
	carrier, ok := src.(backend.StateCarrier)
	if !ok {
		return nil
	}
	mctx, cancel := context.WithTimeout(ctx, o.cfg.MigrationTimeout)
	defer cancel()
	state, err := carrier.ExportState(mctx)
	if err != nil {
		return err
	}
	if err := o.importState(mctx, dst, state); err != nil {
		return err
	}
	o.mu.Lock()
	o.lastState[role] = state
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) importState(ctx context.Context, be backend.Backend, state []byte) error {
	carrier, ok := be.(backend.StateCarrier)
	if !ok {
		return nil
	}
	ictx, cancel := context.WithTimeout(ctx, o.cfg.MigrationTimeout)
	defer cancel()
	return carrier.ImportState(ictx, state)
}

func (o *Orchestrator) dwell(ctx context.Context) error {
	if o.cfg.StepInterval <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.cfg.StepInterval):
		return nil
	}
}

func (o *Orchestrator) auditSwap(candidateID, role, violationType, details string) {
	if o.audit == nil {
		return
	}
	if _, err := o.audit.Record(candidateID, role, violationType, details); err != nil {
		o.log.Error().Str("role", role).Err(err).Msg("audit append failed")
	}
}

func (o *Orchestrator) finish(op Outcome, result, reason string) Outcome {
	op.Result = result
	op.Reason = reason
	swapsTotal.WithLabelValues(op.RoleName, op.Kind, result).Inc()
	o.log.Info().Str("role", op.RoleName).Str("kind", op.Kind).Str("result", result).
		Str("from", op.FromID).Str("to", op.ToID).Str("reason", reason).
		Msg("swap finished")
	return op
}

func probeReason(pr backend.ProbeResult) string {
	if pr.Err != nil {
		return pr.Err.Error()
	}
	return "backup degraded during shift"
}
