// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

// Package memory provides in-process implementations of the auth repositories.
// They are intended for tests and single-process development servers.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/certledger/certledger/internal/auth"
)

// IdentityRepository implements auth.IdentityRepository in memory.
type IdentityRepository struct {
	mu       sync.RWMutex
	byID     map[ulid.ULID]auth.Identity
	byEmail  map[string]ulid.ULID
	byRegNum map[string]ulid.ULID
}

// NewIdentityRepository creates an empty IdentityRepository.
func NewIdentityRepository() *IdentityRepository {
	return &IdentityRepository{
		byID:     make(map[ulid.ULID]auth.Identity),
		byEmail:  make(map[string]ulid.ULID),
		byRegNum: make(map[string]ulid.ULID),
	}
}

// Create stores a new identity.
func (r *IdentityRepository) Create(_ context.Context, identity *auth.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := auth.NormalizeEmail(identity.Email)
	if _, taken := r.byEmail[email]; taken {
		return oops.Code("IDENTITY_DUPLICATE").With("field", "email").Wrap(auth.ErrDuplicate)
	}
	if _, taken := r.byRegNum[identity.Organization.RegistrationNumber]; taken {
		return oops.Code("IDENTITY_DUPLICATE").With("field", "registration_number").Wrap(auth.ErrDuplicate)
	}

	r.byID[identity.ID] = *identity
	r.byEmail[email] = identity.ID
	r.byRegNum[identity.Organization.RegistrationNumber] = identity.ID
	return nil
}

// GetByID retrieves an identity by ID.
func (r *IdentityRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("IDENTITY_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return &identity, nil
}

// GetByEmail retrieves an identity by email (case-insensitive).
func (r *IdentityRepository) GetByEmail(_ context.Context, email string) (*auth.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return nil, oops.Code("IDENTITY_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	identity := r.byID[id]
	return &identity, nil
}

// UpdateStatus changes the account status of an identity.
func (r *IdentityRepository) UpdateStatus(_ context.Context, id ulid.ULID, status auth.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byID[id]
	if !ok {
		return oops.Code("IDENTITY_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	identity.Status = status
	identity.UpdatedAt = time.Now().UTC()
	r.byID[id] = identity
	return nil
}

// SessionRepository implements auth.SessionRepository in memory.
type SessionRepository struct {
	mu       sync.Mutex
	sessions map[string]auth.Session
	now      func() time.Time
}

// NewSessionRepository creates an empty SessionRepository.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]auth.Session),
		now:      time.Now,
	}
}

// Create stores a new session.
func (r *SessionRepository) Create(_ context.Context, session *auth.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.sessions[session.TokenHash]; taken {
		return oops.Code("SESSION_DUPLICATE").Wrap(auth.ErrDuplicate)
	}
	r.sessions[session.TokenHash] = *session
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(_ context.Context, tokenHash string) (*auth.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &session, nil
}

// DeleteByTokenHash removes a session.
func (r *SessionRepository) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[tokenHash]; !ok {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	delete(r.sessions, tokenHash)
	return nil
}

// DeleteByIdentity removes all sessions for an identity.
func (r *SessionRepository) DeleteByIdentity(_ context.Context, identityID ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for hash, session := range r.sessions {
		if session.IdentityID == identityID {
			delete(r.sessions, hash)
		}
	}
	return nil
}

// DeleteExpired removes all expired sessions.
func (r *SessionRepository) DeleteExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed int64
	for hash, session := range r.sessions {
		if session.IsExpiredAt(now) {
			delete(r.sessions, hash)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired or not.
func (r *SessionRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Compile-time interface checks.
var (
	_ auth.IdentityRepository = (*IdentityRepository)(nil)
	_ auth.SessionRepository  = (*SessionRepository)(nil)
)
