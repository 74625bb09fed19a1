// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

// Package httpapi exposes the auth service over HTTP with cookie-carried
// session tokens and a JSON envelope of {message, data, error, success}.
package httpapi

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/certledger/certledger/internal/auth"
	"github.com/certledger/certledger/internal/observability"
)

// Defaults for Config.
const (
	DefaultPrefix       = "/api"
	DefaultCookieName   = "sid"
	DefaultMaxBodyBytes = 16 << 10
	DefaultLoginRate    = 5.0
	DefaultLoginBurst   = 10
)

// Config controls the HTTP surface.
type Config struct {
	Prefix               string
	CookieName           string
	CookieSecure         bool
	MaxBodyBytes         int64
	CORSOrigin           string
	ExposeInternalErrors bool
	TrustProxyHeaders    bool

	// LoginRatePerSecond and LoginBurst configure the per-IP login limiter.
	// A non-positive rate disables it.
	LoginRatePerSecond float64
	LoginBurst         int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Prefix:             DefaultPrefix,
		CookieName:         DefaultCookieName,
		MaxBodyBytes:       DefaultMaxBodyBytes,
		LoginRatePerSecond: DefaultLoginRate,
		LoginBurst:         DefaultLoginBurst,
	}
}

// API serves the auth routes.
type API struct {
	svc     *auth.Service
	cfg     Config
	logger  *slog.Logger
	metrics *observability.Metrics
	limiter *ipLimiter
	schemas *requestSchemas
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the access and error logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records request and auth metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(a *API) {
		a.metrics = m
	}
}

// New creates an API. Zero-valued Config fields take their defaults.
func New(svc *auth.Service, cfg Config, opts ...Option) (*API, error) {
	if svc == nil {
		return nil, oops.Code("HTTPAPI_INVALID").Errorf("auth service is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	cfg.Prefix = "/" + strings.Trim(cfg.Prefix, "/")
	if cfg.Prefix == "/" {
		cfg.Prefix = ""
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	schemas, err := compileRequestSchemas()
	if err != nil {
		return nil, err
	}

	a := &API{
		svc:     svc,
		cfg:     cfg,
		logger:  slog.Default(),
		schemas: schemas,
	}
	if cfg.LoginRatePerSecond > 0 {
		burst := cfg.LoginBurst
		if burst <= 0 {
			burst = DefaultLoginBurst
		}
		a.limiter = newIPLimiter(cfg.LoginRatePerSecond, burst)
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	p := a.cfg.Prefix

	login := http.Handler(http.HandlerFunc(a.handleLogin))
	if a.limiter != nil {
		login = a.RateLimit(login)
	}

	mux.HandleFunc("POST "+p+"/auth/register", a.handleRegister)
	mux.Handle("POST "+p+"/auth/login", login)
	mux.HandleFunc("POST "+p+"/auth/logout", a.handleLogout)
	mux.Handle("GET "+p+"/auth/profile", a.RequireSession(http.HandlerFunc(a.handleProfile)))
	mux.Handle("POST "+p+"/admin/identities/status",
		a.RequireSession(a.RequireRole(auth.RoleAdministrator)(http.HandlerFunc(a.handleSetStatus))))

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "Route not found"})
	})

	var h http.Handler = mux
	h = MaxBodyBytes(h, a.cfg.MaxBodyBytes)
	h = CORS(h, a.cfg.CORSOrigin)
	h = a.Recover(h)
	h = a.Instrument(h)
	return a.AccessLog(h)
}
