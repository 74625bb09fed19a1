// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/certledger/certledger/internal/auth"
	"github.com/certledger/certledger/internal/auth/memory"
	authpg "github.com/certledger/certledger/internal/auth/postgres"
	authredis "github.com/certledger/certledger/internal/auth/redis"
	"github.com/certledger/certledger/internal/config"
	"github.com/certledger/certledger/internal/store"
)

// stores holds the repositories selected by the configuration and the
// connections behind them.
type stores struct {
	identities auth.IdentityRepository
	sessions   auth.SessionRepository
	pool       *pgxpool.Pool
	redis      *goredis.Client
}

// openStores connects the identity and session repositories.
// Identities live in PostgreSQL when a database URL is configured and in
// memory otherwise. Sessions follow session.backend.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *stores, err error) {
	s := &stores{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if cfg.Database.URL != "" {
		s.pool, err = store.Open(ctx, cfg.Database.URL, store.Options{
			MaxConns:        cfg.Database.MaxConns,
			ConnectAttempts: cfg.Database.ConnectAttempts,
			ConnectBackoff:  cfg.Database.ConnectBackoff,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		s.identities = authpg.NewIdentityRepository(s.pool)
	} else {
		logger.Warn("no database configured, identities are kept in memory")
		s.identities = memory.NewIdentityRepository()
	}

	switch cfg.Session.Backend {
	case config.BackendPostgres:
		if s.pool == nil {
			return nil, oops.Code("CONFIG_INVALID").Errorf("postgres session backend requires a database")
		}
		s.sessions = authpg.NewSessionRepository(s.pool)
	case config.BackendRedis:
		s.redis, err = authredis.NewClient(ctx, authredis.Config{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		s.sessions = authredis.NewSessionRepository(s.redis, cfg.Redis.Prefix)
	case config.BackendMemory:
		s.sessions = memory.NewSessionRepository()
	default:
		return nil, oops.Code("CONFIG_INVALID").
			With("backend", cfg.Session.Backend).
			Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	identityStore := "memory"
	if s.pool != nil {
		identityStore = "postgres"
	}
	logger.Info("stores ready", "identities", identityStore, "sessions", cfg.Session.Backend)
	return s, nil
}

// Ready reports whether every backing connection answers a ping.
func (s *stores) Ready(ctx context.Context) bool {
	if s.pool != nil && s.pool.Ping(ctx) != nil {
		return false
	}
	if s.redis != nil && s.redis.Ping(ctx).Err() != nil {
		return false
	}
	return true
}

// Close releases the connections.
func (s *stores) Close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Debug("error closing redis client", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// newAuthService builds the auth service over st.
func newAuthService(cfg config.Config, st *stores, logger *slog.Logger, opts ...auth.ServiceOption) (*auth.Service, error) {
	hasher, err := auth.NewPasswordHasher(cfg.Auth.Hasher, cfg.Auth.BcryptCost)
	if err != nil {
		return nil, err
	}
	manager, err := auth.NewSessionManager(st.sessions, cfg.Session.TTL)
	if err != nil {
		return nil, err
	}
	opts = append([]auth.ServiceOption{
		auth.WithLogger(logger),
		auth.WithAutoLogin(cfg.Auth.AutoLogin),
	}, opts...)
	return auth.NewService(st.identities, manager, hasher, opts...)
}
