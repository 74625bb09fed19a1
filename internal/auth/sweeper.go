// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/certledger/certledger/pkg/errutil"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = time.Minute

// Sweeper periodically removes expired sessions. Resolve already treats
// expired sessions as absent; sweeping only reclaims storage.
type Sweeper struct {
	sessions *SessionManager
	interval time.Duration
	logger   *slog.Logger
	onSweep  func(removed int64)
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepLogger sets the sweeper logger.
func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweepObserver registers a callback invoked after every successful sweep.
func WithSweepObserver(fn func(removed int64)) SweeperOption {
	return func(s *Sweeper) {
		s.onSweep = fn
	}
}

// NewSweeper creates a Sweeper. A non-positive interval selects DefaultSweepInterval.
func NewSweeper(sessions *SessionManager, interval time.Duration, opts ...SweeperOption) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Code("SWEEPER_INVALID").Errorf("session manager is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &Sweeper{
		sessions: sessions,
		interval: interval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sweeps every interval until ctx is cancelled. It always returns nil.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce performs a single sweep and reports the number of removed sessions.
// Failures are logged, not returned; the next tick tries again.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	removed, err := s.sessions.Sweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			errutil.LogErrorContext(ctx, s.logger, "session sweep failed", err)
		}
		return 0
	}
	if s.onSweep != nil {
		s.onSweep(removed)
	}
	if removed > 0 {
		s.logger.DebugContext(ctx, "expired sessions removed", "count", removed)
	}
	return removed
}
