// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

//go:build integration

package auth_test

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/certledger/certledger/internal/auth"
	authpg "github.com/certledger/certledger/internal/auth/postgres"
)

func newIdentity(email, regNum string) *auth.Identity {
	identity, err := auth.NewIdentity(auth.RegisterInput{
		Email:    email,
		Password: "longpass1",
		Name:     "Test Identity",
		Role:     auth.RoleManufacturer,
		Organization: auth.Organization{
			Name:               "Test Co",
			Address:            "1 Test St",
			Contact:            "test@example.com",
			RegistrationNumber: regNum,
		},
	}.Normalize(), "$2a$04$placeholderplaceholderplaceholderplaceholderplacehold")
	Expect(err).NotTo(HaveOccurred())
	return identity
}

var _ = Describe("PostgreSQL repositories", func() {
	var (
		identities *authpg.IdentityRepository
		sessions   *authpg.SessionRepository
	)

	BeforeEach(func() {
		truncate()
		identities = authpg.NewIdentityRepository(env.pool)
		sessions = authpg.NewSessionRepository(env.pool)
	})

	Describe("identities", func() {
		It("round-trips every field", func() {
			in := newIdentity("round@trip.example", "RT-1")
			Expect(identities.Create(env.ctx, in)).To(Succeed())

			got, err := identities.GetByID(env.ctx, in.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Email).To(Equal(in.Email))
			Expect(got.PasswordHash).To(Equal(in.PasswordHash))
			Expect(got.Organization).To(Equal(in.Organization))
			Expect(got.Status).To(Equal(auth.StatusActive))
			Expect(got.CreatedAt).To(BeTemporally("~", in.CreatedAt, time.Millisecond))
		})

		It("finds identities by email regardless of case", func() {
			in := newIdentity("mixed@case.example", "MC-1")
			Expect(identities.Create(env.ctx, in)).To(Succeed())

			got, err := identities.GetByEmail(env.ctx, "MIXED@Case.Example")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(in.ID))
		})

		It("rejects a duplicate email through the unique index", func() {
			Expect(identities.Create(env.ctx, newIdentity("dup@x.example", "D-1"))).To(Succeed())

			err := identities.Create(env.ctx, newIdentity("dup@x.example", "D-2"))
			Expect(errors.Is(err, auth.ErrDuplicate)).To(BeTrue())
		})

		It("rejects a duplicate registration number", func() {
			Expect(identities.Create(env.ctx, newIdentity("one@x.example", "SAME"))).To(Succeed())

			err := identities.Create(env.ctx, newIdentity("two@x.example", "SAME"))
			Expect(errors.Is(err, auth.ErrDuplicate)).To(BeTrue())
		})

		It("reports missing identities as not found", func() {
			_, err := identities.GetByID(env.ctx, ulid.Make())
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

			err = identities.UpdateStatus(env.ctx, ulid.Make(), auth.StatusSuspended)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("sessions", func() {
		var owner *auth.Identity

		BeforeEach(func() {
			owner = newIdentity("owner@x.example", "OWN-1")
			Expect(identities.Create(env.ctx, owner)).To(Succeed())
		})

		session := func(token string, expiresIn time.Duration) *auth.Session {
			now := time.Now()
			s, err := auth.NewSession(owner.ID, auth.HashSessionToken(token), now.Add(-2*time.Hour), now.Add(expiresIn))
			Expect(err).NotTo(HaveOccurred())
			return s
		}

		It("stores and deletes a session by token hash", func() {
			s := session("tok-1", time.Hour)
			Expect(sessions.Create(env.ctx, s)).To(Succeed())

			got, err := sessions.GetByTokenHash(env.ctx, s.TokenHash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IdentityID).To(Equal(owner.ID))

			Expect(sessions.DeleteByTokenHash(env.ctx, s.TokenHash)).To(Succeed())
			_, err = sessions.GetByTokenHash(env.ctx, s.TokenHash)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})

		It("rejects a duplicate token hash", func() {
			Expect(sessions.Create(env.ctx, session("same", time.Hour))).To(Succeed())
			err := sessions.Create(env.ctx, session("same", time.Hour))
			Expect(errors.Is(err, auth.ErrDuplicate)).To(BeTrue())
		})

		It("sweeps only expired sessions", func() {
			Expect(sessions.Create(env.ctx, session("live", time.Hour))).To(Succeed())
			Expect(sessions.Create(env.ctx, session("dead-1", -time.Second))).To(Succeed())
			Expect(sessions.Create(env.ctx, session("dead-2", -time.Hour))).To(Succeed())

			removed, err := sessions.DeleteExpired(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(int64(2)))

			_, err = sessions.GetByTokenHash(env.ctx, auth.HashSessionToken("live"))
			Expect(err).NotTo(HaveOccurred())
		})

		It("removes sessions when their identity is deleted", func() {
			s := session("cascade", time.Hour)
			Expect(sessions.Create(env.ctx, s)).To(Succeed())

			_, err := env.pool.Exec(env.ctx, `DELETE FROM identities WHERE id = $1`, owner.ID.String())
			Expect(err).NotTo(HaveOccurred())

			_, err = sessions.GetByTokenHash(env.ctx, s.TokenHash)
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})
})
