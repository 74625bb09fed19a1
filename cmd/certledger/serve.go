// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/certledger/certledger/internal/auth"
	"github.com/certledger/certledger/internal/config"
	"github.com/certledger/certledger/internal/httpapi"
	"github.com/certledger/certledger/internal/logging"
	"github.com/certledger/certledger/internal/observability"
	"github.com/certledger/certledger/internal/store"
	"github.com/certledger/certledger/pkg/errutil"
)

const serviceName = "certledger"

// AutoMigrator is the part of store.Migrator used at startup.
type AutoMigrator interface {
	Up() error
	Close() error
}

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values use their default implementations.
type ServeDeps struct {
	// MigratorFactory creates a migrator for the database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (AutoMigrator, error)

	// OnReady is called with the bound API and metrics addresses once serving.
	OnReady func(apiAddr, metricsAddr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the auth HTTP API, the expired-session sweeper and, when
metrics.addr is set, the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger, nil)
		},
	}
}

// httpConfig maps the server section onto the HTTP API settings.
func httpConfig(cfg config.Config) httpapi.Config {
	s := cfg.Server
	return httpapi.Config{
		Prefix:               s.Prefix,
		CookieName:           s.CookieName,
		CookieSecure:         s.CookieSecure,
		MaxBodyBytes:         s.MaxBodyBytes,
		CORSOrigin:           s.CORSOrigin,
		ExposeInternalErrors: s.ExposeInternalErrors,
		TrustProxyHeaders:    s.TrustProxyHeaders,
		LoginRatePerSecond:   s.LoginRatePerSecond,
		LoginBurst:           s.LoginBurst,
	}
}

// runServe runs until ctx is cancelled or a server fails.
func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.MigratorFactory == nil {
		deps.MigratorFactory = func(url string) (AutoMigrator, error) {
			return store.NewMigrator(url)
		}
	}

	if cfg.Database.AutoMigrate && cfg.Database.URL != "" {
		if err := autoMigrate(cfg.Database.URL, deps.MigratorFactory, logger); err != nil {
			return err
		}
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	svc, err := newAuthService(cfg, st, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		obsServer *observability.Server
		metrics   *observability.Metrics
		obsAddr   string
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			defer pingCancel()
			return st.Ready(pingCtx)
		})
		metrics = obsServer.Metrics()
	}

	api, err := httpapi.New(svc, httpConfig(cfg), httpapi.WithLogger(logger), httpapi.WithMetrics(metrics))
	if err != nil {
		return err
	}
	sweeper, err := auth.NewSweeper(svc.Sessions(), cfg.Session.SweepInterval,
		auth.WithSweepLogger(logger),
		auth.WithSweepObserver(metrics.AddSwept))
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	if obsServer != nil {
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			_ = listener.Close() //nolint:errcheck // start error takes precedence
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(startErr)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		obsAddr = obsServer.Addr()
	}

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		_ = sweeper.Run(ctx) //nolint:errcheck // returns ctx.Err() on shutdown
	}()

	srv := &http.Server{
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("certledger ready",
		"addr", listener.Addr().String(),
		"session_backend", cfg.Session.Backend,
		"session_ttl", cfg.Session.TTL.String())
	if deps.OnReady != nil {
		deps.OnReady(listener.Addr().String(), obsAddr)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			runErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping http server", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogError(logger, "error stopping observability server", err)
		}
	}
	<-sweepDone

	logger.Info("shutdown complete")
	return runErr
}

// autoMigrate applies pending migrations before the stores are opened.
func autoMigrate(databaseURL string, factory func(string) (AutoMigrator, error), logger *slog.Logger) error {
	m, err := factory(databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			errutil.LogError(logger, "error closing migrator", closeErr)
		}
	}()
	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").Wrap(err)
	}
	logger.Info("database migrations applied")
	return nil
}

// monitorServerErrors cancels ctx when a background server reports an error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
