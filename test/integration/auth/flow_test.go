// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

//go:build integration

package auth_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/certledger/certledger/internal/auth"
	authpg "github.com/certledger/certledger/internal/auth/postgres"
	"github.com/certledger/certledger/internal/httpapi"
)

type apiResponse struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Success bool           `json:"success"`
}

var _ = Describe("HTTP auth flow on PostgreSQL", func() {
	var (
		server *httptest.Server
		svc    *auth.Service
		client *http.Client
	)

	BeforeEach(func() {
		truncate()

		hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		manager, err := auth.NewSessionManager(authpg.NewSessionRepository(env.pool), 0)
		Expect(err).NotTo(HaveOccurred())
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc, err = auth.NewService(authpg.NewIdentityRepository(env.pool), manager, hasher, auth.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())

		api, err := httpapi.New(svc, httpapi.DefaultConfig(), httpapi.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(api.Handler())

		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client = &http.Client{Jar: jar}
	})

	AfterEach(func() {
		server.Close()
	})

	call := func(method, path, body string) (int, apiResponse) {
		req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		req.Header.Set("Content-Type", "application/json")
		resp, err := client.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = resp.Body.Close() }()

		var out apiResponse
		Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
		return resp.StatusCode, out
	}

	const register = `{"email":"Buyer@Dist.example","password":"longpass1","name":"Buyer",
		"role":"distributor","company":{"name":"Dist","address":"Dock 4","contact":"d@dist.example",
		"registrationNumber":"DIST-9"}}`

	It("registers, reads the profile, logs out and is refused afterwards", func() {
		status, body := call(http.MethodPost, "/api/auth/register", register)
		Expect(status).To(Equal(http.StatusCreated))
		Expect(body.Data).To(HaveKeyWithValue("email", "buyer@dist.example"))

		status, body = call(http.MethodGet, "/api/auth/profile", "")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body.Data).To(HaveKeyWithValue("role", "distributor"))
		Expect(body.Data).NotTo(HaveKey("password"))

		status, _ = call(http.MethodPost, "/api/auth/logout", "")
		Expect(status).To(Equal(http.StatusOK))

		status, body = call(http.MethodGet, "/api/auth/profile", "")
		Expect(status).To(Equal(http.StatusUnauthorized))
		Expect(body.Message).To(Equal("Please log in to access this resource"))
	})

	It("refuses a second registration with the same email in another case", func() {
		status, _ := call(http.MethodPost, "/api/auth/register", register)
		Expect(status).To(Equal(http.StatusCreated))

		status, body := call(http.MethodPost, "/api/auth/register",
			strings.Replace(register, "Buyer@Dist.example", "BUYER@dist.EXAMPLE", 1))
		Expect(status).To(Equal(http.StatusBadRequest))
		Expect(body.Message).To(Equal("User already exists"))
	})

	It("applies a suspension to the very next request", func() {
		status, _ := call(http.MethodPost, "/api/auth/register", register)
		Expect(status).To(Equal(http.StatusCreated))

		Expect(svc.SetStatus(env.ctx, "buyer@dist.example", auth.StatusSuspended)).To(Succeed())

		status, body := call(http.MethodGet, "/api/auth/profile", "")
		Expect(status).To(Equal(http.StatusForbidden))
		Expect(body.Message).To(Equal("Account is not active"))

		Expect(svc.SetStatus(env.ctx, "buyer@dist.example", auth.StatusActive)).To(Succeed())
		status, _ = call(http.MethodGet, "/api/auth/profile", "")
		Expect(status).To(Equal(http.StatusOK))
	})

	It("gives unknown emails and wrong passwords the same answer", func() {
		status, _ := call(http.MethodPost, "/api/auth/register", register)
		Expect(status).To(Equal(http.StatusCreated))

		wrongStatus, wrong := call(http.MethodPost, "/api/auth/login", `{"email":"buyer@dist.example","password":"nope-nope"}`)
		unknownStatus, unknown := call(http.MethodPost, "/api/auth/login", `{"email":"ghost@dist.example","password":"nope-nope"}`)
		Expect(wrongStatus).To(Equal(http.StatusUnauthorized))
		Expect(unknownStatus).To(Equal(wrongStatus))
		Expect(unknown).To(Equal(wrong))
	})
})
