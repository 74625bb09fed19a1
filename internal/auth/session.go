// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes = 32             // 32 bytes = 64 hex chars
	DefaultSessionTTL = 24 * time.Hour // fixed lifetime from creation
)

// Session binds an opaque client-held token to an identity.
// Only the SHA-256 hash of the token is stored.
type Session struct {
	ID         ulid.ULID
	IdentityID ulid.ULID
	TokenHash  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// NewSession creates a validated Session.
func NewSession(identityID ulid.ULID, tokenHash string, createdAt, expiresAt time.Time) (*Session, error) {
	if identityID.Compare(ulid.ULID{}) == 0 {
		return nil, oops.Code("SESSION_INVALID_IDENTITY").Errorf("identity ID cannot be zero")
	}
	if tokenHash == "" {
		return nil, oops.Code("SESSION_INVALID_HASH").Errorf("token hash cannot be empty")
	}
	if expiresAt.IsZero() || !expiresAt.After(createdAt) {
		return nil, oops.Code("SESSION_INVALID_EXPIRY").Errorf("expiry must be after creation")
	}
	return &Session{
		ID:         ulid.Make(),
		IdentityID: identityID,
		TokenHash:  tokenHash,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// IsExpiredAt returns true if the session would be expired at the given time.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// GenerateSessionToken creates a secure random token and its hash.
// The plaintext token is sent to the client; the hash is stored.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// SessionRepository manages session persistence. Implementations must make
// Create a single atomic write.
type SessionRepository interface {
	// Create stores a new session.
	Create(ctx context.Context, session *Session) error

	// GetByTokenHash retrieves a session by its token hash.
	// Returns ErrNotFound if there is none. Expired sessions may still be returned.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error)

	// DeleteByTokenHash removes a session. Returns ErrNotFound if there is none.
	DeleteByTokenHash(ctx context.Context, tokenHash string) error

	// DeleteByIdentity removes all sessions for an identity.
	DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error

	// DeleteExpired removes all expired sessions and returns the count
	// of deleted records.
	DeleteExpired(ctx context.Context) (int64, error)
}

// SessionManager issues, resolves and destroys session tokens on top of a
// SessionRepository.
type SessionManager struct {
	repo SessionRepository
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionManager creates a SessionManager. A non-positive ttl selects DefaultSessionTTL.
func NewSessionManager(repo SessionRepository, ttl time.Duration) (*SessionManager, error) {
	if repo == nil {
		return nil, oops.Code("SESSION_MANAGER_INVALID").Errorf("session repository is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{repo: repo, ttl: ttl, now: time.Now}, nil
}

// TTL returns the session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for the identity and returns the plaintext token.
func (m *SessionManager) Issue(ctx context.Context, identityID ulid.ULID) (string, *Session, error) {
	token, tokenHash, err := GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}

	now := m.now().UTC()
	session, err := NewSession(identityID, tokenHash, now, now.Add(m.ttl))
	if err != nil {
		return "", nil, oops.With("operation", "create session").Wrap(err)
	}

	if err := m.repo.Create(ctx, session); err != nil {
		return "", nil, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return token, session, nil
}

// Resolve returns the live session for token.
// Missing and expired sessions both yield ErrNotFound.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, oops.Code("SESSION_TOKEN_EMPTY").Wrap(ErrNotFound)
	}

	session, err := m.repo.GetByTokenHash(ctx, HashSessionToken(token))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.IsExpiredAt(m.now()) {
		return nil, oops.Code("SESSION_EXPIRED").
			With("expires_at", session.ExpiresAt).
			Wrap(ErrNotFound)
	}
	return session, nil
}

// Destroy removes the session for token. Destroying an absent session succeeds.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := m.repo.DeleteByTokenHash(ctx, HashSessionToken(token))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// RevokeAll removes every session of the identity.
func (m *SessionManager) RevokeAll(ctx context.Context, identityID ulid.ULID) error {
	if err := m.repo.DeleteByIdentity(ctx, identityID); err != nil {
		return oops.Code("SESSION_REVOKE_FAILED").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return nil
}

// Sweep removes expired sessions from the repository.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").Wrap(err)
	}
	return n, nil
}
