// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package auth

import (
	"context"
	"net/mail"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Password length limits. The upper bound is bcrypt's input limit in bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// Role is the supply-chain role of an identity.
type Role string

// Roles recognised by the platform.
const (
	RoleProducer      Role = "producer"
	RoleManufacturer  Role = "manufacturer"
	RoleDistributor   Role = "distributor"
	RoleCertifier     Role = "certifier"
	RoleAdministrator Role = "administrator"
)

// Roles returns every valid role in a stable order.
func Roles() []Role {
	return []Role{RoleProducer, RoleManufacturer, RoleDistributor, RoleCertifier, RoleAdministrator}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return slices.Contains(Roles(), r)
}

// Status is the account status of an identity.
type Status string

// Account statuses.
const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusInactive:
		return true
	}
	return false
}

// Organization describes the company an identity belongs to.
type Organization struct {
	Name               string `json:"name"`
	Address            string `json:"address"`
	Contact            string `json:"contact"`
	RegistrationNumber string `json:"registrationNumber"`
}

// Identity is a registered principal.
type Identity struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	Organization Organization
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive returns true if the identity may authenticate.
func (i *Identity) IsActive() bool {
	return i.Status == StatusActive
}

// Public returns the projection of the identity that is safe to hand to clients.
func (i *Identity) Public() *PublicIdentity {
	return &PublicIdentity{
		ID:           i.ID,
		Email:        i.Email,
		Name:         i.Name,
		Role:         i.Role,
		Organization: i.Organization,
		Status:       i.Status,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
	}
}

// PublicIdentity is an Identity without credentials. It has no password field.
type PublicIdentity struct {
	ID           ulid.ULID
	Email        string
	Name         string
	Role         Role
	Organization Organization
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RegisterInput holds the fields supplied at registration.
type RegisterInput struct {
	Email        string
	Password     string
	Name         string
	Role         Role
	Organization Organization
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize returns a copy of in with emails and free-text fields trimmed.
// The password is left untouched.
func (in RegisterInput) Normalize() RegisterInput {
	in.Email = NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Role = Role(strings.ToLower(strings.TrimSpace(string(in.Role))))
	in.Organization.Name = strings.TrimSpace(in.Organization.Name)
	in.Organization.Address = strings.TrimSpace(in.Organization.Address)
	in.Organization.Contact = strings.TrimSpace(in.Organization.Contact)
	in.Organization.RegistrationNumber = strings.TrimSpace(in.Organization.RegistrationNumber)
	return in
}

// Validate checks a normalized RegisterInput.
func (in RegisterInput) Validate() error {
	if in.Email == "" {
		return errValidation("email is required")
	}
	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return oops.Code(CodeValidation).With("email", in.Email).Errorf("email is not a valid address")
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return oops.Code(CodeValidation).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}
	if len(in.Password) > MaxPasswordLength {
		return oops.Code(CodeValidation).
			With("max", MaxPasswordLength).
			Errorf("password must be at most %d bytes", MaxPasswordLength)
	}
	if in.Name == "" {
		return errValidation("name is required")
	}
	if !in.Role.Valid() {
		return oops.Code(CodeValidation).
			With("role", string(in.Role)).
			Errorf("role must be one of producer, manufacturer, distributor, certifier, administrator")
	}
	org := in.Organization
	switch {
	case org.Name == "":
		return errValidation("company name is required")
	case org.Address == "":
		return errValidation("company address is required")
	case org.Contact == "":
		return errValidation("company contact is required")
	case org.RegistrationNumber == "":
		return errValidation("company registration number is required")
	}
	return nil
}

// NewIdentity creates a validated, active Identity.
// The input must already be normalized; passwordHash must be non-empty.
func NewIdentity(in RegisterInput, passwordHash string) (*Identity, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("IDENTITY_INVALID_HASH").Errorf("password hash cannot be empty")
	}
	now := time.Now().UTC()
	return &Identity{
		ID:           ulid.Make(),
		Email:        in.Email,
		PasswordHash: passwordHash,
		Name:         in.Name,
		Role:         in.Role,
		Organization: in.Organization,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IdentityRepository manages identity persistence.
type IdentityRepository interface {
	// Create stores a new identity.
	// Returns ErrDuplicate if the email or registration number is taken.
	Create(ctx context.Context, identity *Identity) error

	// GetByID retrieves an identity by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByEmail retrieves an identity by email (case-insensitive).
	// Returns ErrNotFound if no identity has the given email.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// UpdateStatus changes the account status of an identity.
	UpdateStatus(ctx context.Context, id ulid.ULID, status Status) error
}
