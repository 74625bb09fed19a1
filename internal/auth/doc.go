// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

// Package auth provides authentication primitives for CertLedger.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewIdentity - creates an Identity from a validated RegisterInput and a password hash
//   - NewSession - creates a Session with a validated identity and expiry
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository implementations receive pre-validated types from these constructors.
//
// # Services
//
//   - Service - register, login, logout, profile and per-request authentication
//   - SessionManager - issues, resolves and destroys opaque session tokens
//   - Sweeper - periodic removal of expired sessions
//
// Errors returned by Service carry an oops code; KindOf classifies them into the
// Validation, Conflict, Auth, Forbidden, NotFound and Internal kinds that the
// HTTP layer maps to status codes.
package auth
