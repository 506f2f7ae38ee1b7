// Package guardrail wraps live model invocations with ordered validation
// stages: input, execution, output, alignment, safety. Input and output
// failures are fatal, alignment is advisory, safety is corrective (the
// response is substituted, not blocked). Every failure lands in the audit log.
package guardrail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"modelmgr/internal/backend"
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

// Picker chooses the candidate serving the next request for a role.
// Satisfied by routing.Table; honors in-flight gradual shifts.
type Picker interface {
	Pick(role string) (string, types.Binding, bool)
}

// Auditor appends violation records. Satisfied by audit.Log.
type Auditor interface {
	Record(candidateID, roleName, violationType, details string) (types.AuditRecord, error)
}

// Result is a guardrailed invocation outcome. Substituted means the safety
// stage replaced the output; Flagged means an advisory alignment failure.
type Result struct {
	Output      string
	CandidateID string
	Substituted bool
	Flagged     bool
	Validations []types.ValidationResult
}

// Pipeline validates and executes invocations for bound roles.
type Pipeline struct {
	roles      RoleSource
	candidates CandidateSource
	picker     Picker
	dial       backend.Dialer
	audit      Auditor
	log        zerolog.Logger
}

func NewPipeline(roles RoleSource, candidates CandidateSource, picker Picker,
	dial backend.Dialer, auditor Auditor, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		roles:      roles,
		candidates: candidates,
		picker:     picker,
		dial:       dial,
		audit:      auditor,
		log:        log.With().Str("component", "guardrail").Logger(),
	}
}

// Invoke runs one request through every stage in order, short-circuiting on
// the first fatal failure. A safety substitution is reported as success.
func (p *Pipeline) Invoke(ctx context.Context, role string, req backend.Request) (Result, error) {
	profile, err := p.roles.Get(role)
	if err != nil {
		return Result{}, err
	}
	cs := profile.Guardrails
	res := Result{}

	// resolve the serving candidate up front so every audit record, the
	// input stage's included, is attributed to it
	candidateID, _, ok := p.picker.Pick(role)
	if !ok {
		return res, ErrRoleNotBound(role)
	}
	res.CandidateID = candidateID

	// stage 1: input. Fatal; the request never reaches the backend.
	if reason, ok := inputViolation(cs, req.Input); ok {
		res.Validations = append(res.Validations, failed(types.StageInput, reason))
		p.violation(candidateID, role, types.StageInput, reason)
		return res, ErrValidationFailure(types.StageInput, reason)
	}
	res.Validations = append(res.Validations, passed(types.StageInput))

	cand, err := p.candidates.Get(candidateID)
	if err != nil {
		return res, err
	}

	// stage 2: execution, bounded by the role's response-time ceiling.
	output, reason, err := p.execute(ctx, cs, cand, req)
	if err != nil {
		res.Validations = append(res.Validations, failed(types.StageExecution, reason))
		p.violation(candidateID, role, types.StageExecution, reason)
		return res, ErrValidationFailure(types.StageExecution, reason)
	}
	res.Validations = append(res.Validations, passed(types.StageExecution))
	res.Output = output

	// stage 3: output. Fatal; the caller gets an error, never partial output.
	if reason, ok := outputViolation(cs, output); ok {
		res.Output = ""
		res.Validations = append(res.Validations, failed(types.StageOutput, reason))
		p.violation(candidateID, role, types.StageOutput, reason)
		return res, ErrValidationFailure(types.StageOutput, reason)
	}
	res.Validations = append(res.Validations, passed(types.StageOutput))

	// stage 4: alignment. Advisory; the response is returned, flagged.
	if term, ok := denylisted(cs.AlignmentDenylist, output); ok {
		reason := "alignment denylist match: " + term
		res.Flagged = true
		res.Validations = append(res.Validations, failed(types.StageAlignment, reason))
		p.violation(candidateID, role, types.StageAlignment, reason)
	} else {
		res.Validations = append(res.Validations, passed(types.StageAlignment))
	}

	// stage 5: safety. Corrective; unsafe output is replaced with the
	// pre-registered safe alternative and the call still succeeds.
	if term, ok := denylisted(cs.SafetyDenylist, output); ok {
		reason := "safety denylist match: " + term
		if cs.SafeReplacement == "" {
			// no replacement registered; blocking beats serving unsafe output
			res.Output = ""
			res.Validations = append(res.Validations, failed(types.StageSafety, reason))
			p.violation(candidateID, role, types.StageSafety, reason)
			return res, ErrValidationFailure(types.StageSafety, reason)
		}
		res.Output = cs.SafeReplacement
		res.Substituted = true
		vr := failed(types.StageSafety, reason)
		vr.SafeReplacement = cs.SafeReplacement
		res.Validations = append(res.Validations, vr)
		p.violation(candidateID, role, types.StageSafety, reason+" (substituted)")
	} else {
		res.Validations = append(res.Validations, passed(types.StageSafety))
	}

	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, cs types.ConstraintSet, cand types.ModelCandidate, req backend.Request) (string, string, error) {
	be := p.dial(cand.Endpoint)
	defer be.Close()

	ceiling := time.Duration(cs.MaxResponseMs) * time.Millisecond
	if ceiling > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ceiling)
		defer cancel()
	}
	resp, err := be.Invoke(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Sprintf("response time exceeded %dms ceiling", cs.MaxResponseMs), err
		}
		return "", "backend call failed: " + err.Error(), err
	}
	if ceiling > 0 && resp.Latency > ceiling {
		return "", fmt.Sprintf("response took %s, ceiling %dms", resp.Latency, cs.MaxResponseMs), errors.New("response time ceiling exceeded")
	}
	return resp.Output, "", nil
}

func inputViolation(cs types.ConstraintSet, input string) (string, bool) {
	if cs.MaxInputBytes > 0 && len(input) > cs.MaxInputBytes {
		return fmt.Sprintf("input is %d bytes, limit %d", len(input), cs.MaxInputBytes), true
	}
	if term, ok := denylisted(cs.ForbiddenInput, input); ok {
		return "forbidden input content: " + term, true
	}
	return "", false
}

func outputViolation(cs types.ConstraintSet, output string) (string, bool) {
	if cs.RequireOutput && strings.TrimSpace(output) == "" {
		return "empty output", true
	}
	if cs.MaxOutputChars > 0 && len([]rune(output)) > cs.MaxOutputChars {
		return fmt.Sprintf("output is %d chars, limit %d", len([]rune(output)), cs.MaxOutputChars), true
	}
	return "", false
}

// denylisted reports the first matching term, case-insensitive.
func denylisted(terms []string, text string) (string, bool) {
	if len(terms) == 0 {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, t := range terms {
		if t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return t, true
		}
	}
	return "", false
}

func passed(stage types.ValidationStage) types.ValidationResult {
	return types.ValidationResult{Passed: true, Stage: stage}
}

func failed(stage types.ValidationStage, reason string) types.ValidationResult {
	return types.ValidationResult{Passed: false, Stage: stage, Reason: reason}
}

// violation counts and audits one stage failure.
func (p *Pipeline) violation(candidateID, role string, stage types.ValidationStage, details string) {
	violationsTotal.WithLabelValues(string(stage), role).Inc()
	if p.audit == nil {
		return
	}
	if _, err := p.audit.Record(candidateID, role, string(stage), details); err != nil {
		p.log.Error().Str("role", role).Str("stage", string(stage)).Err(err).Msg("audit append failed")
	}
}
