// Package httpapi exposes the management control surface: registration,
// resolution, guardrailed invocation and the admin swap/health endpoints.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"modelmgr/internal/backend"
	"modelmgr/internal/guardrail"
	"modelmgr/internal/registry"
	"modelmgr/internal/routing"
	"modelmgr/internal/scoring"
	"modelmgr/internal/swap"
	"modelmgr/pkg/types"
)

// HealthSource yields the monitor's current view. Satisfied by health.Monitor.
type HealthSource interface {
	Snapshot() []types.HealthStatus
}

// Swapper executes admin-forced swaps. Satisfied by swap.Orchestrator.
type Swapper interface {
	ForceSwap(ctx context.Context, role, target string) (swap.Outcome, error)
}

// Invoker runs guardrailed invocations. Satisfied by guardrail.Pipeline.
type Invoker interface {
	Invoke(ctx context.Context, role string, req backend.Request) (guardrail.Result, error)
}

// Analyzer reports whether replacing a bound candidate pays off.
// Satisfied by scoring.Analyzer.
type Analyzer interface {
	Evaluate(current, challenger types.ModelCandidate, role types.RoleProfile) (scoring.BreakEven, error)
}

// Deps wires the handlers to the stores they serve. Constructed once at start.
type Deps struct {
	Candidates *registry.CandidateRegistry
	Roles      *registry.RoleStore
	Table      *routing.Table
	Health     HealthSource
	Swapper    Swapper
	Pipeline   Invoker
	Analyzer   Analyzer
	Log        zerolog.Logger
	Started    time.Time
}

func NewMux(d Deps) http.Handler {
	if d.Started.IsZero() {
		d.Started = time.Now()
	}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)

	r.Post("/candidates", d.registerCandidate)
	r.Get("/candidates", d.listCandidates)
	r.Post("/roles", d.registerRole)
	r.Get("/roles", d.listRoles)
	r.Get("/roles/{role}/resolve", d.resolveRole)
	r.Post("/roles/{role}/invoke", d.invokeRole)

	r.Post("/admin/roles/{role}/swap", d.forceSwap)
	r.Get("/admin/roles/{role}/breakeven", d.breakEven)
	r.Get("/admin/health", d.healthSnapshot)

	r.Get("/status", d.status)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func (d Deps) registerCandidate(w http.ResponseWriter, r *http.Request) {
	var c types.ModelCandidate
	if !decodeJSON(w, r, &c) {
		return
	}
	v, err := d.Candidates.Register(c)
	if err != nil {
		if registry.IsIncompleteCandidate(err) {
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d.Log.Info().Str("candidate", c.ID).Uint64("version", v).Msg("candidate registered")
	writeJSON(w, http.StatusCreated, types.RegisterResponse{ID: c.ID, Version: v})
}

func (d Deps) listCandidates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.CandidatesResponse{Candidates: d.Candidates.List()})
}

func (d Deps) registerRole(w http.ResponseWriter, r *http.Request) {
	var p types.RoleProfile
	if !decodeJSON(w, r, &p) {
		return
	}
	v, err := d.Roles.Register(p)
	if err != nil {
		if registry.IsInvalidWeights(err) {
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	d.Log.Info().Str("role", p.Name).Uint64("version", v).Msg("role registered")
	writeJSON(w, http.StatusCreated, types.RegisterResponse{ID: p.Name, Version: v})
}

func (d Deps) listRoles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.RolesResponse{Roles: d.Roles.List()})
}

func (d Deps) resolveRole(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	b, ok := d.Table.Resolve(role)
	if !ok {
		if _, err := d.Roles.Get(role); err != nil {
			writeJSONError(w, http.StatusNotFound, err.Error())
			return
		}
		writeJSONError(w, http.StatusConflict, "role not bound: "+role)
		return
	}
	resp := types.ResolveResponse{
		RoleName:    role,
		CandidateID: b.ActiveCandidateID,
		Backups:     b.BackupCandidateIDs,
		Version:     b.Version,
		Degraded:    b.Degraded,
	}
	if c, err := d.Candidates.Get(b.ActiveCandidateID); err == nil {
		resp.Endpoint = c.Endpoint
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d Deps) invokeRole(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	var req types.InvokeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := d.Pipeline.Invoke(r.Context(), role, backend.Request{Input: req.Input, SessionID: req.SessionID})
	if err != nil {
		switch {
		case registry.IsRoleNotFound(err):
			writeJSONError(w, http.StatusNotFound, err.Error())
		case guardrail.IsRoleNotBound(err):
			writeJSONError(w, http.StatusConflict, err.Error())
		case guardrail.IsValidationFailure(err):
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			if he, ok := err.(HTTPError); ok {
				writeJSONError(w, he.StatusCode(), he.Error())
				return
			}
			writeJSONError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, types.InvokeResponse{
		Output:      res.Output,
		Substituted: res.Substituted,
		Flagged:     res.Flagged,
		CandidateID: res.CandidateID,
		Validations: res.Validations,
	})
}

func (d Deps) forceSwap(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	var req types.SwapRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	out, err := d.Swapper.ForceSwap(r.Context(), role, req.TargetCandidateID)
	if err != nil {
		switch {
		case swap.IsRoleNotBound(err):
			writeJSONError(w, http.StatusNotFound, err.Error())
		case swap.IsBackupUnavailable(err):
			writeJSONError(w, http.StatusConflict, err.Error())
		case registry.IsRoleNotFound(err) || registry.IsCandidateNotFound(err):
			writeJSONError(w, http.StatusNotFound, err.Error())
		default:
			writeJSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, types.SwapResponse{
		RoleName:    out.RoleName,
		Outcome:     out.Result,
		FromID:      out.FromID,
		ToID:        out.ToID,
		Version:     out.Version,
		Reason:      out.Reason,
		OperationID: out.OperationID,
	})
}

func (d Deps) breakEven(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	challengerID := r.URL.Query().Get("challenger")
	if challengerID == "" {
		writeJSONError(w, http.StatusBadRequest, "challenger query parameter is required")
		return
	}
	profile, err := d.Roles.Get(role)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	b, ok := d.Table.Resolve(role)
	if !ok {
		writeJSONError(w, http.StatusConflict, "role not bound: "+role)
		return
	}
	current, err := d.Candidates.Get(b.ActiveCandidateID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	challenger, err := d.Candidates.Get(challengerID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	be, err := d.Analyzer.Evaluate(current, challenger, profile)
	if err != nil {
		if scoring.IsIncompatibleCandidate(err) {
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, be)
}

func (d Deps) healthSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthSnapshotResponse{Statuses: d.Health.Snapshot()})
}

func (d Deps) status(w http.ResponseWriter, r *http.Request) {
	snap := d.Table.Snapshot()
	bindingsGauge.Set(float64(len(snap)))
	var degraded []string
	for role, b := range snap {
		if b.Degraded {
			degraded = append(degraded, role)
		}
	}
	now := time.Now()
	writeJSON(w, http.StatusOK, types.StatusResponse{
		Bindings:       len(snap),
		Candidates:     len(d.Candidates.List()),
		Roles:          len(d.Roles.List()),
		SwapsTotal:     d.Table.SwapsTotal(),
		DegradedRoles:  degraded,
		UptimeSeconds:  int64(now.Sub(d.Started).Seconds()),
		ServerTimeUnix: now.Unix(),
	})
}
