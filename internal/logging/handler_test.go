// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/certledger/certledger/pkg/errutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("certledger", "1.0.0", "json", "", &buf)
	require.NoError(t, err)

	logger.Info("test message")

	entry := decode(t, &buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "certledger", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time", "time field missing")
	assert.Contains(t, entry, "level", "level field missing")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("certledger", "1.0.0", "text", "info", &buf)
	require.NoError(t, err)

	logger.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "service=certledger")
}

func TestSetup_DefaultFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("certledger", "1.0.0", "", "", &buf)
	require.NoError(t, err)

	logger.Info("test message")
	decode(t, &buf)
}

func TestSetup_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("certledger", "1.0.0", "json", "warn", &buf)
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestSetup_Invalid(t *testing.T) {
	_, err := Setup("certledger", "1.0.0", "xml", "", nil)
	errutil.AssertErrorCode(t, err, "LOG_INVALID_FORMAT")

	_, err = Setup("certledger", "1.0.0", "json", "loud", nil)
	errutil.AssertErrorCode(t, err, "LOG_INVALID_LEVEL")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetup_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("certledger", "1.0.0", "json", "", &buf)
	require.NoError(t, err)

	logger.Info("login", "email", "a@x.com", "password", "hunter22", "Token", "abc")

	entry := decode(t, &buf)
	assert.Equal(t, "a@x.com", entry["email"])
	assert.Equal(t, "[REDACTED]", entry["password"])
	assert.Equal(t, "[REDACTED]", entry["Token"])
	assert.NotContains(t, buf.String(), "hunter22")
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("certledger", "1.0.0", "json", "", &buf)
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("certledger", "1.0.0", "json", "", &buf)
	require.NoError(t, err)

	logger.Info("no trace message")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup("certledger", "1.0.0", "json", "", &buf)
	require.NoError(t, err)

	logger.With("component", "sweeper").WithGroup("sweep").Info("done", "removed", 3)

	entry := decode(t, &buf)
	assert.Equal(t, "sweeper", entry["component"])
	group, ok := entry["sweep"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 3, group["removed"], 0)
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger, err := SetDefault("certledger", "2.0.0", "json", "debug")
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())
}
