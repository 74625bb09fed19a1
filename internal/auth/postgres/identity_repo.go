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

const identityColumns = `id, email, password_hash, name, role,
		       org_name, org_address, org_contact, org_registration_number,
		       status, created_at, updated_at`

// IdentityRepository implements auth.IdentityRepository using PostgreSQL.
type IdentityRepository struct {
	db DBTX
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(db DBTX) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Create stores a new identity. Unique violations on email or registration
// number map to auth.ErrDuplicate.
func (r *IdentityRepository) Create(ctx context.Context, identity *auth.Identity) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO identities (
			id, email, password_hash, name, role,
			org_name, org_address, org_contact, org_registration_number,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		identity.ID.String(),
		identity.Email,
		identity.PasswordHash,
		identity.Name,
		string(identity.Role),
		identity.Organization.Name,
		identity.Organization.Address,
		identity.Organization.Contact,
		identity.Organization.RegistrationNumber,
		string(identity.Status),
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			return oops.Code("IDENTITY_DUPLICATE").
				With("constraint", constraint).
				Wrap(errors.Join(auth.ErrDuplicate, err))
		}
		return oops.Code("IDENTITY_CREATE_FAILED").
			With("operation", "insert identity").
			With("id", identity.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Identity, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE id = $1
	`, id.String())

	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_FAILED").
			With("operation", "get identity by id").
			With("id", id.String()).
			Wrap(err)
	}
	return identity, nil
}

// GetByEmail retrieves an identity by email (case-insensitive).
func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+identityColumns+`
		FROM identities
		WHERE lower(email) = lower($1)
	`, email)

	identity, err := scanIdentity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("IDENTITY_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("IDENTITY_GET_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}
	return identity, nil
}

// UpdateStatus changes the account status of an identity.
func (r *IdentityRepository) UpdateStatus(ctx context.Context, id ulid.ULID, status auth.Status) error {
	result, err := r.db.Exec(ctx, `
		UPDATE identities SET status = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), string(status), time.Now().UTC())
	if err != nil {
		return oops.Code("IDENTITY_UPDATE_STATUS_FAILED").
			With("operation", "update status").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanIdentity scans a single row. pgx.ErrNoRows is returned unchanged.
func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		idStr    string
		role     string
		status   string
		identity auth.Identity
	)
	err := row.Scan(
		&idStr,
		&identity.Email,
		&identity.PasswordHash,
		&identity.Name,
		&role,
		&identity.Organization.Name,
		&identity.Organization.Address,
		&identity.Organization.Contact,
		&identity.Organization.RegistrationNumber,
		&status,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers attach context
		}
		return nil, oops.Code("IDENTITY_SCAN_FAILED").With("operation", "scan identity").Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("IDENTITY_INVALID_ID").With("id", idStr).Wrap(err)
	}
	identity.ID = id
	identity.Role = auth.Role(role)
	identity.Status = auth.Status(status)
	return &identity, nil
}

// Compile-time interface check.
var _ auth.IdentityRepository = (*IdentityRepository)(nil)
