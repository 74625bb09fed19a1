// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certledger/certledger/internal/auth"
	"github.com/certledger/certledger/pkg/errutil"
)

func sampleSession(t *testing.T) *auth.Session {
	t.Helper()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	session, err := auth.NewSession(ulid.Make(), auth.HashSessionToken("token"), created, created.Add(24*time.Hour))
	require.NoError(t, err)
	return session
}

func TestSessionRepository_Create(t *testing.T) {
	session := sampleSession(t)
	args := []any{
		session.ID.String(), session.IdentityID.String(), session.TokenHash,
		session.CreatedAt, session.ExpiresAt,
	}

	t.Run("inserts", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO web_sessions`).WithArgs(args...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewSessionRepository(mock).Create(context.Background(), session))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate token hash", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO web_sessions`).WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err = NewSessionRepository(mock).Create(context.Background(), session)
		assert.ErrorIs(t, err, auth.ErrDuplicate)
	})

	t.Run("failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO web_sessions`).WithArgs(args...).
			WillReturnError(errors.New("connection refused"))

		err = NewSessionRepository(mock).Create(context.Background(), session)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "SESSION_CREATE_FAILED")
	})
}

func TestSessionRepository_GetByTokenHash(t *testing.T) {
	session := sampleSession(t)
	columns := []string{"id", "identity_id", "token_hash", "created_at", "expires_at"}

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM web_sessions\s+WHERE token_hash = \$1`).
			WithArgs(session.TokenHash).
			WillReturnRows(pgxmock.NewRows(columns).AddRow(
				session.ID.String(), session.IdentityID.String(), session.TokenHash,
				session.CreatedAt, session.ExpiresAt,
			))

		got, err := NewSessionRepository(mock).GetByTokenHash(context.Background(), session.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, session, got)
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM web_sessions`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

		_, err = NewSessionRepository(mock).GetByTokenHash(context.Background(), "missing")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "SESSION_NOT_FOUND")
	})

	t.Run("corrupt identity id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM web_sessions`).WithArgs(session.TokenHash).
			WillReturnRows(pgxmock.NewRows(columns).AddRow(
				session.ID.String(), "garbage", session.TokenHash, session.CreatedAt, session.ExpiresAt,
			))

		_, err = NewSessionRepository(mock).GetByTokenHash(context.Background(), session.TokenHash)
		errutil.AssertErrorCode(t, err, "SESSION_INVALID_IDENTITY_ID")
	})
}

func TestSessionRepository_DeleteByTokenHash(t *testing.T) {
	t.Run("deletes", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM web_sessions WHERE token_hash`).WithArgs("h").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		assert.NoError(t, NewSessionRepository(mock).DeleteByTokenHash(context.Background(), "h"))
	})

	t.Run("missing", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM web_sessions WHERE token_hash`).WithArgs("h").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		assert.ErrorIs(t, NewSessionRepository(mock).DeleteByTokenHash(context.Background(), "h"), auth.ErrNotFound)
	})
}

func TestSessionRepository_DeleteByIdentity(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := ulid.Make()
	mock.ExpectExec(`DELETE FROM web_sessions WHERE identity_id`).WithArgs(id.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	assert.NoError(t, NewSessionRepository(mock).DeleteByIdentity(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepository_DeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	repo := NewSessionRepository(mock)
	repo.now = func() time.Time { return now }

	mock.ExpectExec(`DELETE FROM web_sessions WHERE expires_at <= \$1`).WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectExec(`DELETE FROM web_sessions`).WithArgs(now).WillReturnError(errors.New("boom"))
	_, err = repo.DeleteExpired(context.Background())
	errutil.AssertErrorCode(t, err, "SESSION_DELETE_EXPIRED_FAILED")
}
