// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/certledger/certledger/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the CertLedger CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certledger",
		Short: "CertLedger - session auth and access control",
		Long: `CertLedger authenticates supply-chain participants with email and password,
keeps server-side sessions behind an HttpOnly cookie, and gates API access by
session, account status and role.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/certledger/config.yaml)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewIdentityCmd())

	return cmd
}

// loadConfig reads and validates the configuration for cmd.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// requireDatabase fails unless a database URL is configured.
func requireDatabase(cfg config.Config) error {
	if cfg.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url or %s is required", config.DatabaseURLEnv)
	}
	return nil
}
