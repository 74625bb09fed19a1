// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/certledger/certledger/pkg/errutil"
)

var tracer = otel.Tracer("certledger/auth")

// dummyPassword is hashed with the configured hasher when the service is built
// so that logins for unknown emails still pay for exactly one verification.
//
//nolint:gosec // G101: not a credential, only feeds the timing equalizer.
const dummyPassword = "certledger-timing-equalizer"

// Service provides authentication operations. It holds no per-request state;
// identities and sessions live in their stores.
type Service struct {
	identities IdentityRepository
	sessions   *SessionManager
	hasher     PasswordHasher
	logger     *slog.Logger
	autoLogin  bool
	dummyHash  string
}

// ServiceOption configures a Service during construction.
type ServiceOption func(*Service)

// WithLogger sets the logger used by the service. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAutoLogin controls whether Register also issues a session. Enabled by default.
func WithAutoLogin(enabled bool) ServiceOption {
	return func(s *Service) {
		s.autoLogin = enabled
	}
}

// NewService creates a new Service.
func NewService(identities IdentityRepository, sessions *SessionManager, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if identities == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("identity repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session manager is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	s := &Service{
		identities: identities,
		sessions:   sessions,
		hasher:     hasher,
		logger:     slog.Default(),
		autoLogin:  true,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").With("operation", "prepare timing hash").Wrap(err)
	}
	s.dummyHash = dummyHash
	return s, nil
}

// Sessions returns the session manager used by the service.
func (s *Service) Sessions() *SessionManager {
	return s.sessions
}

// Register creates an identity and, when auto-login is enabled, a session for it.
// The returned token is empty when no session was issued.
func (s *Service) Register(ctx context.Context, in RegisterInput) (_ *PublicIdentity, _ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.Register")
	defer func() { endSpan(span, err) }()

	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, "", err
	}
	span.SetAttributes(attribute.String("identity.role", string(in.Role)))

	_, lookupErr := s.identities.GetByEmail(ctx, in.Email)
	switch {
	case lookupErr == nil:
		return nil, "", oops.Code(CodeIdentityExists).Errorf(MsgIdentityExists)
	case !errors.Is(lookupErr, ErrNotFound):
		return nil, "", s.internal(ctx, "get identity by email", lookupErr)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, "", s.internal(ctx, "hash password", err)
	}

	identity, err := NewIdentity(in, hash)
	if err != nil {
		return nil, "", err
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, "", oops.Code(CodeIdentityExists).Errorf(MsgIdentityExists)
		}
		return nil, "", s.internal(ctx, "create identity", err)
	}
	span.SetAttributes(attribute.String("identity.id", identity.ID.String()))

	var token string
	if s.autoLogin {
		token, _, err = s.sessions.Issue(ctx, identity.ID)
		if err != nil {
			return nil, "", s.internal(ctx, "issue session", err)
		}
	}

	s.logger.InfoContext(ctx, "identity registered",
		"identity_id", identity.ID.String(),
		"role", string(identity.Role),
		"session_issued", token != "")
	return identity.Public(), token, nil
}

// Login verifies credentials and issues a session.
// Unknown emails and wrong passwords produce the same error. The account status
// is only checked once the password has been verified.
func (s *Service) Login(ctx context.Context, email, password string) (_ *PublicIdentity, _ string, err error) {
	ctx, span := tracer.Start(ctx, "auth.Login")
	defer func() { endSpan(span, err) }()

	identity, lookupErr := s.identities.GetByEmail(ctx, NormalizeEmail(email))

	var targetHash string
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = identity.PasswordHash
		exists = true
	case errors.Is(lookupErr, ErrNotFound):
		targetHash = s.dummyHash
	default:
		return nil, "", s.internal(ctx, "get identity by email", lookupErr)
	}

	// Always verify, even for unknown emails.
	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return nil, "", errInvalidCredentials()
		}
		return nil, "", s.internal(ctx, "verify password", verifyErr)
	}

	if !exists || !valid {
		s.logger.InfoContext(ctx, "login rejected", "reason", "invalid_credentials")
		return nil, "", errInvalidCredentials()
	}

	if !identity.IsActive() {
		s.logger.WarnContext(ctx, "login rejected",
			"reason", "account_inactive",
			"identity_id", identity.ID.String(),
			"status", string(identity.Status))
		return nil, "", errAccountInactive(identity.Status)
	}

	token, _, err := s.sessions.Issue(ctx, identity.ID)
	if err != nil {
		return nil, "", s.internal(ctx, "issue session", err)
	}

	span.SetAttributes(attribute.String("identity.id", identity.ID.String()))
	s.logger.InfoContext(ctx, "login succeeded", "identity_id", identity.ID.String())
	return identity.Public(), token, nil
}

// Logout destroys the session for token. An empty or unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.Logout")
	defer func() { endSpan(span, err) }()

	if err := s.sessions.Destroy(ctx, token); err != nil {
		return s.internal(ctx, "destroy session", err)
	}
	return nil
}

// Profile returns the public projection of the identity.
func (s *Service) Profile(ctx context.Context, id ulid.ULID) (*PublicIdentity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeIdentityNotFound).With("identity_id", id.String()).Errorf(MsgUserNotFound)
		}
		return nil, s.internal(ctx, "get identity by id", err)
	}
	return identity.Public(), nil
}

// Authenticate resolves a session token to the identity it belongs to.
// The identity is read from the store on every call, after the session has been
// resolved, so a status change applies to the very next request.
func (s *Service) Authenticate(ctx context.Context, token string) (_ *PublicIdentity, err error) {
	ctx, span := tracer.Start(ctx, "auth.Authenticate")
	defer func() { endSpan(span, err) }()

	if token == "" {
		return nil, oops.Code(CodeNotLoggedIn).Errorf(MsgNotLoggedIn)
	}

	session, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).Errorf(MsgUserNotFound)
		}
		return nil, s.internal(ctx, "resolve session", err)
	}

	identity, err := s.identities.GetByID(ctx, session.IdentityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeUserNotFound).Errorf(MsgUserNotFound)
		}
		return nil, s.internal(ctx, "get identity by id", err)
	}

	if !identity.IsActive() {
		s.logger.WarnContext(ctx, "session rejected",
			"reason", "account_inactive",
			"identity_id", identity.ID.String(),
			"status", string(identity.Status))
		return nil, errAccountInactive(identity.Status)
	}

	span.SetAttributes(attribute.String("identity.id", identity.ID.String()))
	return identity.Public(), nil
}

// SetStatus changes the account status of the identity with the given email.
// Existing sessions are left in place; Authenticate rejects them while the
// identity is not active.
func (s *Service) SetStatus(ctx context.Context, email string, status Status) error {
	if !status.Valid() {
		return oops.Code(CodeValidation).
			With("status", string(status)).
			Errorf("status must be one of active, suspended, inactive")
	}

	identity, err := s.identities.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeIdentityNotFound).Errorf(MsgUserNotFound)
		}
		return s.internal(ctx, "get identity by email", err)
	}

	if err := s.identities.UpdateStatus(ctx, identity.ID, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeIdentityNotFound).Errorf(MsgUserNotFound)
		}
		return s.internal(ctx, "update status", err)
	}

	s.logger.InfoContext(ctx, "identity status changed",
		"identity_id", identity.ID.String(),
		"from", string(identity.Status),
		"to", string(status))
	return nil
}

// RevokeSessions ends every session of the identity with the given email.
func (s *Service) RevokeSessions(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.RevokeSessions")
	defer func() { endSpan(span, err) }()

	identity, err := s.identities.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeIdentityNotFound).Errorf(MsgUserNotFound)
		}
		return s.internal(ctx, "get identity by email", err)
	}

	if err := s.sessions.RevokeAll(ctx, identity.ID); err != nil {
		return s.internal(ctx, "revoke sessions", err)
	}

	s.logger.InfoContext(ctx, "sessions revoked", "identity_id", identity.ID.String())
	return nil
}

func (s *Service) internal(ctx context.Context, operation string, err error) error {
	wrapped := oops.Code("AUTH_INTERNAL").With("operation", operation).Wrap(err)
	errutil.LogErrorContext(ctx, s.logger, "auth operation failed", wrapped)
	return wrapped
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if code := ErrorCode(err); code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
}
