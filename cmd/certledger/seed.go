// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/certledger/certledger/internal/auth"
)

// Default timeout for the seed command.
const defaultSeedTimeout = 30 * time.Second

// SeedFile is the YAML document read by the seed command.
type SeedFile struct {
	Identities []SeedIdentity `yaml:"identities"`
}

// SeedIdentity is one identity to create. Status defaults to active.
type SeedIdentity struct {
	Email    string      `yaml:"email"`
	Password string      `yaml:"password"`
	Name     string      `yaml:"name"`
	Role     string      `yaml:"role"`
	Status   string      `yaml:"status"`
	Company  SeedCompany `yaml:"company"`
}

// SeedCompany is the organization of a seeded identity.
type SeedCompany struct {
	Name               string `yaml:"name"`
	Address            string `yaml:"address"`
	Contact            string `yaml:"contact"`
	RegistrationNumber string `yaml:"registrationNumber"`
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create identities from a YAML file",
		Long: `Creates the identities listed in a YAML file, such as the first administrator.
This command is idempotent - identities whose email or registration number
already exists are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVarP(&cfg.file, "file", "f", "", "seed file path ('-' for stdin)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file") //nolint:errcheck // flag is registered above

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	seed, err := readSeedFile(cmd, cfg.file)
	if err != nil {
		return err
	}

	appCfg, logger, err := adminSetup(cmd)
	if err != nil {
		return err
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	svc, closeFn, err := adminServiceFactory(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	created, skipped, err := seedIdentities(ctx, svc, seed)
	if err != nil {
		return err
	}
	cmd.Printf("Seed complete: %d created, %d already present\n", created, skipped)
	return nil
}

func readSeedFile(cmd *cobra.Command, path string) (*SeedFile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // operator-supplied path
	}
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("file", path).Wrap(err)
	}

	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, oops.Code("SEED_PARSE_FAILED").With("file", path).Wrap(err)
	}
	if len(seed.Identities) == 0 {
		return nil, oops.Code("SEED_PARSE_FAILED").With("file", path).Errorf("seed file lists no identities")
	}
	return &seed, nil
}

// seedIdentities registers every identity in seed. Identities that already
// exist are counted as skipped and left untouched.
func seedIdentities(ctx context.Context, svc *auth.Service, seed *SeedFile) (created, skipped int, err error) {
	for i, s := range seed.Identities {
		identity, _, regErr := svc.Register(ctx, auth.RegisterInput{
			Email:    s.Email,
			Password: s.Password,
			Name:     s.Name,
			Role:     auth.Role(s.Role),
			Organization: auth.Organization{
				Name:               s.Company.Name,
				Address:            s.Company.Address,
				Contact:            s.Company.Contact,
				RegistrationNumber: s.Company.RegistrationNumber,
			},
		})
		if regErr != nil {
			if auth.KindOf(regErr) == auth.KindConflict {
				skipped++
				continue
			}
			return created, skipped, oops.Code("SEED_FAILED").
				With("index", i).
				With("email", s.Email).
				Wrap(regErr)
		}

		if s.Status != "" && auth.Status(s.Status) != auth.StatusActive {
			if err := svc.SetStatus(ctx, identity.Email, auth.Status(s.Status)); err != nil {
				return created, skipped, oops.Code("SEED_FAILED").
					With("index", i).
					With("email", s.Email).
					Wrap(err)
			}
		}
		created++
	}
	return created, skipped, nil
}
