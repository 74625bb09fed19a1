// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package auth

import "context"

type identityContextKey struct{}

// ContextWithIdentity attaches the authenticated identity to the context.
func ContextWithIdentity(ctx context.Context, identity *PublicIdentity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the authenticated identity from the context.
func IdentityFromContext(ctx context.Context) (*PublicIdentity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(identityContextKey{}).(*PublicIdentity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
