// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

package httpapi

import (
	"net/http"

	"github.com/certledger/certledger/internal/auth"
)

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeBody(w, r, a.schemas.register, &req) {
		a.metrics.RecordAuth("register", auth.KindValidation.String())
		return
	}

	identity, token, err := a.svc.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     auth.Role(req.Role),
		Organization: auth.Organization{
			Name:               req.Company.Name,
			Address:            req.Company.Address,
			Contact:            req.Company.Contact,
			RegistrationNumber: req.Company.RegistrationNumber,
		},
	})
	a.metrics.RecordAuth("register", outcome(err))
	if err != nil {
		a.respondError(w, err, msgRegisterFailed)
		return
	}

	if token != "" {
		a.setSessionCookie(w, token)
	}
	writeJSON(w, http.StatusCreated, envelope{Message: msgRegistered, Data: viewOf(identity), Success: true})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, a.schemas.login, &req) {
		a.metrics.RecordAuth("login", auth.KindValidation.String())
		return
	}

	identity, token, err := a.svc.Login(r.Context(), req.Email, req.Password)
	a.metrics.RecordAuth("login", outcome(err))
	if err != nil {
		a.respondError(w, err, msgLoginFailed)
		return
	}

	a.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, envelope{Message: msgLoggedIn, Data: viewOf(identity), Success: true})
}

// handleLogout destroys whatever session the cookie names and always clears
// the cookie on success. It does not require a live session.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	err := a.svc.Logout(r.Context(), a.sessionToken(r))
	a.metrics.RecordAuth("logout", outcome(err))
	if err != nil {
		a.respondError(w, err, msgLogoutFailed)
		return
	}

	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, envelope{Message: msgLoggedOut, Success: true})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	current, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, envelope{Message: auth.MsgNotLoggedIn})
		return
	}

	identity, err := a.svc.Profile(r.Context(), current.ID)
	if err != nil {
		a.respondError(w, err, msgProfileFailed)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: msgProfile, Data: viewOf(identity), Success: true})
}

func (a *API) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !decodeBody(w, r, a.schemas.status, &req) {
		return
	}

	if err := a.svc.SetStatus(r.Context(), req.Email, auth.Status(req.Status)); err != nil {
		a.respondError(w, err, msgStatusFailed)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: msgStatusUpdated, Success: true})
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return auth.KindOf(err).String()
}
