// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	server := startServer(t, func() bool { return true })
	require.NotEmpty(t, server.Addr())

	metrics := server.Metrics()
	metrics.RecordAuth("login", "ok")
	metrics.ObserveHTTP(http.MethodPost, "/api/auth/login", http.StatusOK, 20*time.Millisecond)
	metrics.AddSwept(3)

	status, body := get(t, "http://"+server.Addr()+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, `certledger_auth_operations_total{operation="login",outcome="ok"} 1`)
	assert.Contains(t, body, `certledger_http_requests_total{method="POST",route="/api/auth/login",status="200"} 1`)
	assert.Contains(t, body, "certledger_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "certledger_sessions_swept_total 3")
}

func TestMetrics_Helpers(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuth("register", "conflict")
	m.RecordAuth("register", "conflict")
	assert.InDelta(t, 2, testutil.ToFloat64(m.AuthOperations.WithLabelValues("register", "conflict")), 0)

	m.AddSwept(0)
	m.AddSwept(-1)
	assert.InDelta(t, 0, testutil.ToFloat64(m.SessionsSwept), 0)

	t.Run("nil metrics are a no-op", func(t *testing.T) {
		var nilMetrics *Metrics
		assert.NotPanics(t, func() {
			nilMetrics.RecordAuth("login", "ok")
			nilMetrics.ObserveHTTP("GET", "/", 200, time.Second)
			nilMetrics.AddSwept(1)
		})
	})
}

func TestServer_Probes(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		path       string
		wantStatus int
		wantBody   string
	}{
		{"liveness", nil, "/healthz/liveness", http.StatusOK, "ok"},
		{"readiness when ready", func() bool { return true }, "/healthz/readiness", http.StatusOK, "ok"},
		{"readiness when not ready", func() bool { return false }, "/healthz/readiness", http.StatusServiceUnavailable, "not ready"},
		{"readiness without checker", nil, "/healthz/readiness", http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)
			status, body := get(t, "http://"+server.Addr()+tt.path)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopIdempotent(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	assert.NoError(t, server.Stop(context.Background()), "stop before start")

	_, err := server.Start()
	require.NoError(t, err)
	assert.NoError(t, server.Stop(context.Background()))
	assert.NoError(t, server.Stop(context.Background()))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for serve error")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	require.NoError(t, server.Stop(context.Background()))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error channel to close")
	}
}
