// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/certledger/certledger/internal/auth"
)

// SessionRepository implements auth.SessionRepository using PostgreSQL.
type SessionRepository struct {
	db  DBTX
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO web_sessions (id, identity_id, token_hash, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		session.ID.String(),
		session.IdentityID.String(),
		session.TokenHash,
		session.CreatedAt,
		session.ExpiresAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return oops.Code("SESSION_DUPLICATE").Wrap(errors.Join(auth.ErrDuplicate, err))
		}
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert web_session").
			With("identity_id", session.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, identity_id, token_hash, created_at, expires_at
		FROM web_sessions
		WHERE token_hash = $1
	`, tokenHash)

	var idStr, identityIDStr string
	var session auth.Session
	err := row.Scan(&idStr, &identityIDStr, &session.TokenHash, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}

	if session.ID, err = ulid.Parse(idStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", idStr).Wrap(err)
	}
	if session.IdentityID, err = ulid.Parse(identityIDStr); err != nil {
		return nil, oops.Code("SESSION_INVALID_IDENTITY_ID").With("identity_id", identityIDStr).Wrap(err)
	}
	return &session, nil
}

// DeleteByTokenHash removes a session.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete web_session").
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByIdentity removes all sessions for an identity.
func (r *SessionRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE identity_id = $1`, identityID.String())
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_IDENTITY_FAILED").
			With("operation", "delete web_sessions by identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	// No ErrNotFound when nothing was deleted.
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM web_sessions WHERE expires_at <= $1`, r.now().UTC())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired web_sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
