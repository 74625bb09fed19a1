// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package httpapi

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/certledger/certledger/internal/auth"
	"github.com/certledger/certledger/pkg/errutil"
)

// RequireSession admits a request only when its cookie token resolves to a
// live session whose identity is active. The identity is re-read on every
// request. On success the identity is attached to the context;
// otherwise the error envelope is written and next is not called.
func (a *API) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.sessionToken(r)
		identity, err := a.svc.Authenticate(r.Context(), token)
		if err != nil {
			a.respondError(w, err, msgAuthFailed)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

// RequireRole admits authenticated identities whose role is one of roles.
// It must run inside RequireSession.
func (a *API) RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.IdentityFromContext(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, envelope{Message: auth.MsgNotLoggedIn})
				return
			}
			if !slices.Contains(roles, identity.Role) {
				a.logger.WarnContext(r.Context(), "role gate rejected request",
					"identity_id", identity.ID.String(),
					"role", string(identity.Role),
					"path", r.URL.Path)
				writeJSON(w, http.StatusForbidden, envelope{Message: auth.MsgInsufficientRole})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.code = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// routeOf returns the matched mux pattern without its method, or "unmatched".
func routeOf(r *http.Request) string {
	if r.Pattern == "" {
		return "unmatched"
	}
	if _, path, found := strings.Cut(r.Pattern, " "); found {
		return path
	}
	return r.Pattern
}

// AccessLog logs method, route, status and duration of every request.
func (a *API) AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		a.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"route", routeOf(r),
			"path", r.URL.Path,
			"status", sw.code,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote", a.clientIP(r))
	})
}

// Instrument records request counts and latency.
func (a *API) Instrument(next http.Handler) http.Handler {
	if a.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		a.metrics.ObserveHTTP(r.Method, routeOf(r), sw.code, time.Since(start))
	})
}

// Recover turns a handler panic into a 500 envelope.
func (a *API) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}
				err := oops.Code("HTTP_PANIC").With("path", r.URL.Path).Errorf("panic: %v", rec)
				errutil.LogErrorContext(r.Context(), a.logger, "handler panicked", err)
				writeJSON(w, http.StatusInternalServerError, envelope{Message: msgInternalServerErr})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CORS allows credentialed requests from a single configured origin.
// An empty origin disables CORS headers entirely.
func CORS(next http.Handler, allowedOrigin string) http.Handler {
	if allowedOrigin == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && origin == allowedOrigin {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "600")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// MaxBodyBytes limits the request body size.
func MaxBodyBytes(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}
