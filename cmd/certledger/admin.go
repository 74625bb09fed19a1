// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/certledger/certledger/internal/auth"
	"github.com/certledger/certledger/internal/config"
	"github.com/certledger/certledger/internal/logging"
)

// adminServiceFactory builds the auth service used by the offline admin
// commands. Tests replace it.
var adminServiceFactory = openAdminService

// openAdminService connects to PostgreSQL for identities and to the
// configured session backend, so revocations reach the running server's store.
// Admin commands never issue sessions.
func openAdminService(ctx context.Context, cfg config.Config, logger *slog.Logger) (*auth.Service, func(), error) {
	if err := requireDatabase(cfg); err != nil {
		return nil, nil, err
	}
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := newAuthService(cfg, st, logger, auth.WithAutoLogin(false))
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return svc, st.Close, nil
}

// adminSetup loads config and logging for an admin command.
func adminSetup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.Setup(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
