// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/certledger/certledger/internal/auth"
)

// NewIdentityCmd creates the identity admin command.
func NewIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Administer registered identities",
	}
	cmd.AddCommand(newSetStatusCmd(), newRevokeSessionsCmd())
	return cmd
}

func newSetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status EMAIL STATUS",
		Short: "Change an account status (active, suspended, inactive)",
		Long: `Change the account status of the identity registered under EMAIL.
A non-active identity is refused on its next request; existing sessions are kept
and resume working if the account is reactivated before they expire.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := adminSetup(cmd)
			if err != nil {
				return err
			}
			svc, closeFn, err := adminServiceFactory(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			email, status := args[0], auth.Status(args[1])
			if err := svc.SetStatus(cmd.Context(), email, status); err != nil {
				return err
			}
			cmd.Printf("%s is now %s\n", auth.NormalizeEmail(email), status)
			return nil
		},
	}
}

func newRevokeSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke-sessions EMAIL",
		Short: "Log an identity out everywhere",
		Long: `Delete every session of the identity registered under EMAIL from the
configured session backend. The identity must log in again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := adminSetup(cmd)
			if err != nil {
				return err
			}
			svc, closeFn, err := adminServiceFactory(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := svc.RevokeSessions(cmd.Context(), args[0]); err != nil {
				return err
			}
			cmd.Printf("Sessions of %s revoked\n", auth.NormalizeEmail(args[0]))
			return nil
		},
	}
}
