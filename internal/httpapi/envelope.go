// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/certledger/certledger/internal/auth"
)

// Response messages.
const (
	msgRegistered        = "User registered successfully"
	msgLoggedIn          = "Login successful"
	msgLoggedOut         = "Logged out successfully"
	msgProfile           = "Profile retrieved successfully"
	msgStatusUpdated     = "Account status updated"
	msgRegisterFailed    = "Error in registration"
	msgLoginFailed       = "Error in login"
	msgLogoutFailed      = "Could not log out"
	msgProfileFailed     = "Error fetching profile"
	msgStatusFailed      = "Error updating account status"
	msgAuthFailed        = "Authentication failed"
	msgInvalidBody       = "Invalid request body"
	msgBodyTooLarge      = "Request body too large"
	msgTooManyRequests   = "Too many login attempts, please try again later"
	msgInternalServerErr = "Internal server error"
)

type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// identityView is the client representation of auth.PublicIdentity.
type identityView struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Role      auth.Role         `json:"role"`
	Company   auth.Organization `json:"company"`
	Status    auth.Status       `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

func viewOf(identity *auth.PublicIdentity) identityView {
	return identityView{
		ID:        identity.ID.String(),
		Email:     identity.Email,
		Name:      identity.Name,
		Role:      identity.Role,
		Company:   identity.Organization,
		Status:    identity.Status,
		CreatedAt: identity.CreatedAt,
		UpdatedAt: identity.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	//nolint:errcheck // client may have gone away
	json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation, auth.KindConflict:
		return http.StatusBadRequest
	case auth.KindAuth:
		return http.StatusUnauthorized
	case auth.KindForbidden:
		return http.StatusForbidden
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an envelope. Classified errors carry their own
// client-safe message; anything else becomes a 500 with internalMsg, and the
// error text is only included when ExposeInternalErrors is set.
func (a *API) respondError(w http.ResponseWriter, err error, internalMsg string) {
	kind := auth.KindOf(err)
	body := envelope{Message: err.Error()}
	if kind == auth.KindInternal {
		body.Message = internalMsg
		if a.cfg.ExposeInternalErrors {
			body.Error = err.Error()
		}
	}
	writeJSON(w, statusFor(kind), body)
}
