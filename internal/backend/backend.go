// Package backend defines the narrow contract every candidate implementation
// must expose: invoke, probe, warmup, and (for stateful backends) state
// export/import. Role-specific behavior lives in configuration, not here.
package backend

import (
	"context"
	"time"
)

// Request is one unit of work forwarded to a backend.
type Request struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id,omitempty"`
}

// Response is the backend's answer plus the observed service time.
type Response struct {
	Output  string        `json:"output"`
	Latency time.Duration `json:"-"`
}

// ProbeResult is one health observation of a backend.
type ProbeResult struct {
	Latency   time.Duration
	ErrorRate float64
	// Fatal marks hard signals (connection refused, crash) as opposed to
	// soft threshold breaches.
	Fatal bool
	Err   error
}

// Backend is the uniform contract over an opaque, network-addressable
// candidate implementation.
type Backend interface {
	// Invoke forwards one request. Blocking; honors ctx cancellation.
	Invoke(ctx context.Context, req Request) (Response, error)
	// Probe performs one health check.
	Probe(ctx context.Context) ProbeResult
	// Warmup prepares the backend to take traffic.
	Warmup(ctx context.Context) error
	// Close releases resources associated with the backend handle.
	Close() error
}

// StateCarrier is implemented by backends that hold session state and can
// migrate it during a hot-swap.
type StateCarrier interface {
	ExportState(ctx context.Context) ([]byte, error)
	ImportState(ctx context.Context, state []byte) error
}

// Dialer maps a candidate endpoint to a live Backend handle. Injected so the
// orchestrator and guardrail pipeline can be tested against stubs.
type Dialer func(endpoint string) Backend
