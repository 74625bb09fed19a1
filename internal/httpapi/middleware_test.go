// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certledger/certledger/internal/auth"
	"github.com/certledger/certledger/internal/auth/memory"
)

func newTestAPI(t *testing.T, cfg Config) *API {
	t.Helper()
	api, err := New(newService(t, memory.NewIdentityRepository()), cfg, WithLogger(quietLogger()))
	require.NoError(t, err)
	return api
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRecover(t *testing.T) {
	api := newTestAPI(t, DefaultConfig())
	h := api.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, msgInternalServerErr, decodeEnvelope(t, rec).Message)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestRecover_AbortHandlerRepanics(t *testing.T) {
	api := newTestAPI(t, DefaultConfig())
	h := api.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	})
}

func TestRequireRole(t *testing.T) {
	api := newTestAPI(t, DefaultConfig())
	reached := false
	h := api.RequireRole(auth.RoleCertifier, auth.RoleAdministrator)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	serve := func(identity *auth.PublicIdentity) *httptest.ResponseRecorder {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if identity != nil {
			req = req.WithContext(auth.ContextWithIdentity(req.Context(), identity))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name     string
		identity *auth.PublicIdentity
		status   int
		reached  bool
	}{
		{"no identity", nil, http.StatusUnauthorized, false},
		{"wrong role", &auth.PublicIdentity{ID: ulid.Make(), Role: auth.RoleProducer}, http.StatusForbidden, false},
		{"certifier", &auth.PublicIdentity{ID: ulid.Make(), Role: auth.RoleCertifier}, http.StatusNoContent, true},
		{"administrator", &auth.PublicIdentity{ID: ulid.Make(), Role: auth.RoleAdministrator}, http.StatusNoContent, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.identity)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.reached, reached)
		})
	}
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("disabled without origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://app.example")
		CORS(next, "").ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allowed origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://app.example")
		CORS(next, "https://app.example").ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("other origin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set("Origin", "https://evil.example")
		CORS(next, "https://app.example").ServeHTTP(rec, req)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/x", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		CORS(next, "https://app.example").ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func TestRouteOf(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	assert.Equal(t, "unmatched", routeOf(req))

	req.Pattern = "GET /api/auth/profile"
	assert.Equal(t, "/api/auth/profile", routeOf(req))

	req.Pattern = "/"
	assert.Equal(t, "/", routeOf(req))
}

func TestUnknownRoute(t *testing.T) {
	api := newTestAPI(t, DefaultConfig())
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, decodeEnvelope(t, rec).Success)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	direct := newTestAPI(t, DefaultConfig())
	assert.Equal(t, "10.0.0.7", direct.clientIP(req))

	cfg := DefaultConfig()
	cfg.TrustProxyHeaders = true
	proxied := newTestAPI(t, cfg)
	assert.Equal(t, "203.0.113.9", proxied.clientIP(req))

	req.RemoteAddr = ""
	assert.Equal(t, "unknown", direct.clientIP(req))
}

func TestIPLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newIPLimiter(1, 2)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "buckets are per IP")

	now = now.Add(time.Second)
	assert.True(t, l.allow("a"), "one token refills per second")
	assert.Equal(t, 2, l.size())

	now = now.Add(limiterIdleTTL + time.Minute)
	assert.True(t, l.allow("c"))
	assert.Equal(t, 1, l.size(), "idle buckets are pruned")
}
