package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// httpBackend talks to a candidate over its HTTP endpoint. Conventions:
// POST /invoke, GET /healthz, POST /warmup, GET|PUT /state.
type httpBackend struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPBackend constructs a Backend over a candidate's base URL.
func NewHTTPBackend(baseURL string, connectTimeout time.Duration) Backend {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0: every request carries a context-based deadline.
	cli := &http.Client{Transport: tr, Timeout: 0}
	return &httpBackend{baseURL: strings.TrimRight(baseURL, "/"), httpClient: cli}
}

// HTTPDialer is the production Dialer.
func HTTPDialer(connectTimeout time.Duration) Dialer {
	return func(endpoint string) Backend { return NewHTTPBackend(endpoint, connectTimeout) }
}

func (b *httpBackend) Invoke(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/invoke", bytes.NewReader(payload))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("backend %s: status %d: %s", b.baseURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("backend %s: decode response: %w", b.baseURL, err)
	}
	out.Latency = time.Since(start)
	return out, nil
}

func (b *httpBackend) Probe(ctx context.Context) ProbeResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/healthz", nil)
	if err != nil {
		return ProbeResult{Fatal: true, Err: err}
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return ProbeResult{Latency: time.Since(start), Fatal: isFatalNetErr(err), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	pr := ProbeResult{Latency: time.Since(start)}
	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		pr.ErrorRate = 1
		pr.Err = fmt.Errorf("healthz status %d", resp.StatusCode)
	default:
		pr.Err = fmt.Errorf("healthz status %d", resp.StatusCode)
	}
	return pr
}

func (b *httpBackend) Warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/warmup", nil)
	if err != nil {
		return err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	// 404 means the backend has no warmup hook; treat as warm.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("warmup status %d", resp.StatusCode)
	}
	return nil
}

func (b *httpBackend) ExportState(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/state", nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export state status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *httpBackend) ImportState(ctx context.Context, state []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.baseURL+"/state", bytes.NewReader(state))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("import state status %d", resp.StatusCode)
	}
	return nil
}

func (b *httpBackend) Close() error {
	b.httpClient.CloseIdleConnections()
	return nil
}

// isFatalNetErr distinguishes hard failures (refused, reset) from timeouts
// and other soft errors. Timeouts are classified by the health monitor.
func isFatalNetErr(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var ne net.Error
		if errors.As(opErr, &ne) && ne.Timeout() {
			return false
		}
		return true
	}
	return false
}
