// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

// Package store opens the PostgreSQL pool and owns the schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connect retry defaults.
const (
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
)

// Options tunes Open.
type Options struct {
	// MaxConns caps the pool size. Zero keeps the pgxpool default.
	MaxConns int32
	// ConnectAttempts is the number of pings tried before giving up.
	ConnectAttempts uint64
	// ConnectBackoff is the initial delay between pings; it doubles each attempt.
	ConnectBackoff time.Duration
	Logger         *slog.Logger
}

// pinger is the part of pgxpool.Pool that waitReady needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// Open creates a pgx pool for databaseURL and waits until the database answers.
// The startup ping is the only retried database operation.
func Open(ctx context.Context, databaseURL string, opts Options) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_CONFIG_INVALID").Errorf("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").Wrap(err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrap(err)
	}
	if err := waitReady(ctx, pool, opts); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitReady(ctx context.Context, db pinger, opts Options) error {
	attempts := opts.ConnectAttempts
	if attempts == 0 {
		attempts = DefaultConnectAttempts
	}
	backoff := opts.ConnectBackoff
	if backoff <= 0 {
		backoff = DefaultConnectBackoff
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(backoff))
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("attempts", attempt).Wrap(err)
	}
	return nil
}
