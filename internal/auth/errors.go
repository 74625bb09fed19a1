// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package auth

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by repositories when a unique constraint is violated.
var ErrDuplicate = errors.New("already exists")

// Error codes for classified failures. These are always leaf codes: a classified
// error is created fresh, never wrapped around a store error.
const (
	CodeValidation         = "AUTH_VALIDATION_FAILED"
	CodeIdentityExists     = "AUTH_IDENTITY_EXISTS"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeNotLoggedIn        = "AUTH_NOT_LOGGED_IN"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeAccountInactive    = "AUTH_ACCOUNT_INACTIVE"
	CodeInsufficientRole   = "AUTH_INSUFFICIENT_ROLE"
	CodeIdentityNotFound   = "AUTH_IDENTITY_NOT_FOUND"
)

// Client-facing messages.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgAccountInactive    = "Account is not active"
	MsgNotLoggedIn        = "Please log in to access this resource"
	MsgUserNotFound       = "User not found"
	MsgIdentityExists     = "User already exists"
	MsgInsufficientRole   = "Insufficient role for this resource"
)

// Kind classifies an error for callers that need to react to it, such as the
// HTTP layer choosing a status code.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var codeKinds = map[string]Kind{
	CodeValidation:         KindValidation,
	CodeIdentityExists:     KindConflict,
	CodeInvalidCredentials: KindAuth,
	CodeNotLoggedIn:        KindAuth,
	CodeUserNotFound:       KindAuth,
	CodeAccountInactive:    KindForbidden,
	CodeInsufficientRole:   KindForbidden,
	CodeIdentityNotFound:   KindNotFound,
}

// KindOf returns the kind of err. Anything that is not a classified oops error,
// including nil, is KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	if kind, found := codeKinds[fmt.Sprint(oopsErr.Code())]; found {
		return kind
	}
	return KindInternal
}

// ErrorCode returns the oops code carried by err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() == nil {
		return ""
	}
	return fmt.Sprint(oopsErr.Code())
}

func errInvalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(MsgInvalidCredentials)
}

func errAccountInactive(status Status) error {
	return oops.Code(CodeAccountInactive).With("status", string(status)).Errorf(MsgAccountInactive)
}

func errValidation(format string, args ...any) error {
	return oops.Code(CodeValidation).Errorf(format, args...)
}
