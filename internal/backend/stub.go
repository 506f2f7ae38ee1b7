package backend

import (
	"context"
	"sync"
	"time"
)

// Stub is an in-memory Backend for tests. Fields may be swapped at any time
// via the setters; zero value behaves as a fast healthy echo backend.
type Stub struct {
	mu        sync.Mutex
	invokeFn  func(ctx context.Context, req Request) (Response, error)
	probeFn   func(ctx context.Context) ProbeResult
	warmupErr error
	state     []byte
	invokes   int
	warmups   int
}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) SetInvoke(fn func(ctx context.Context, req Request) (Response, error)) {
	s.mu.Lock()
	s.invokeFn = fn
	s.mu.Unlock()
}

func (s *Stub) SetProbe(fn func(ctx context.Context) ProbeResult) {
	s.mu.Lock()
	s.probeFn = fn
	s.mu.Unlock()
}

func (s *Stub) SetWarmupErr(err error) {
	s.mu.Lock()
	s.warmupErr = err
	s.mu.Unlock()
}

func (s *Stub) Invoke(ctx context.Context, req Request) (Response, error) {
	s.mu.Lock()
	s.invokes++
	fn := s.invokeFn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return Response{Output: "echo: " + req.Input, Latency: time.Millisecond}, nil
}

func (s *Stub) Probe(ctx context.Context) ProbeResult {
	s.mu.Lock()
	fn := s.probeFn
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return ProbeResult{Latency: time.Millisecond}
}

func (s *Stub) Warmup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warmups++
	return s.warmupErr
}

func (s *Stub) ExportState(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.state))
	copy(out, s.state)
	return out, nil
}

func (s *Stub) ImportState(ctx context.Context, state []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = append([]byte(nil), state...)
	return nil
}

func (s *Stub) Close() error { return nil }

func (s *Stub) Invokes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invokes
}

func (s *Stub) Warmups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warmups
}

func (s *Stub) State() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.state...)
}
