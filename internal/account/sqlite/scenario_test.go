// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/accountd/accountd/internal/account"
	"github.com/accountd/accountd/internal/account/sqlite"
)

var _ = Describe("Account service on SQLite", func() {
	var (
		ctx   context.Context
		db    *sqlite.Store
		users *sqlite.UserRepository
		svc   *account.Service
		now   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

		var err error
		db, err = sqlite.Open(ctx, filepath.Join(GinkgoT().TempDir(), "accounts.db"))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(db.Close)

		hasher, err := account.NewArgon2idHasherWithParams(account.HasherParams{Memory: 1024, Time: 1, Threads: 1})
		Expect(err).NotTo(HaveOccurred())

		users = sqlite.NewUserRepository(db)
		svc, err = account.NewService(account.ServiceConfig{
			Users:      users,
			Tokens:     sqlite.NewTokenRepository(db),
			Transactor: db,
			Hasher:     hasher,
			Clock:      func() time.Time { return now },
		})
		Expect(err).NotTo(HaveOccurred())
	})

	register := func(email, slug, password string) *account.User {
		user, err := svc.Register(ctx, account.RegisterInput{Email: email, Slug: slug, Password: password})
		Expect(err).NotTo(HaveOccurred())
		return user
	}

	Describe("login and tokens", func() {
		It("issues a token that resolves to the user", func() {
			a := register("A@Example.com", "alice", "password1")
			Expect(a.ID).To(BeNumerically(">", 0))
			Expect(a.Email).To(Equal("a@example.com"))

			logged, err := svc.LoginWithEmail(ctx, "a@EXAMPLE.com", "password1")
			Expect(err).NotTo(HaveOccurred())
			Expect(logged.ID).To(Equal(a.ID))

			t1, err := svc.IssueToken(ctx, a.ID, "127.0.0.1", "ginkgo", "fp-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(t1).To(HaveLen(64))

			resolved, err := svc.ResolveToken(ctx, t1)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.ID).To(Equal(a.ID))

			tokens, err := svc.ListTokens(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens).To(HaveLen(1))
			Expect(tokens[0].TokenHash).To(Equal(account.HashSecret(t1)))
			Expect(tokens[0].TokenHash).NotTo(Equal(t1))
			Expect(tokens[0].CreatedAt).To(Equal(now))
		})

		It("rejects an unknown token", func() {
			_, err := svc.ResolveToken(ctx, "deadbeef")
			Expect(err).To(MatchError(account.ErrNotFound))
		})

		It("rejects a wrong password and an unknown email alike", func() {
			register("a@example.com", "alice", "password1")

			_, err := svc.LoginWithEmail(ctx, "a@example.com", "password2")
			Expect(err).To(MatchError(account.ErrInvalidCredentials))

			_, err = svc.LoginWithEmail(ctx, "nobody@example.com", "password1")
			Expect(err).To(MatchError(account.ErrInvalidCredentials))
		})
	})

	Describe("recovery", func() {
		It("replaces the password once per secret", func() {
			a := register("a@example.com", "alice", "password1")

			h1, err := svc.GenerateRecoveryHash(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.ChangePasswordUsingHash(ctx, h1, "password2")).To(Succeed())

			_, err = svc.LoginWithEmail(ctx, "a@example.com", "password1")
			Expect(err).To(MatchError(account.ErrInvalidCredentials))
			_, err = svc.LoginWithEmail(ctx, "a@example.com", "password2")
			Expect(err).NotTo(HaveOccurred())

			err = svc.ChangePasswordUsingHash(ctx, h1, "password3")
			Expect(err).To(MatchError(account.ErrInvalidRecovery))

			stored, err := svc.GetUser(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.RecoveryHash).To(BeNil())
			Expect(stored.RecoveryExpiresAt).To(BeNil())
		})

		It("invalidates the previous secret when a new one is generated", func() {
			a := register("a@example.com", "alice", "password1")

			h1, err := svc.GenerateRecoveryHash(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			h2, err := svc.GenerateRecoveryHash(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(h2).NotTo(Equal(h1))

			Expect(svc.ChangePasswordUsingHash(ctx, h1, "password2")).To(MatchError(account.ErrInvalidRecovery))
			Expect(svc.ChangePasswordUsingHash(ctx, h2, "password2")).To(Succeed())
		})

		It("rejects an expired secret", func() {
			a := register("a@example.com", "alice", "password1")

			h1, err := svc.GenerateRecoveryHash(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())

			now = now.Add(account.DefaultRecoveryTTL + time.Second)
			expired := svc.ChangePasswordUsingHash(ctx, h1, "password2")
			Expect(expired).To(MatchError(account.ErrInvalidRecovery))

			unknown, _, err := account.GenerateSecret()
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.ChangePasswordUsingHash(ctx, unknown, "password2")).To(MatchError(expired.Error()))

			_, err = svc.LoginWithEmail(ctx, "a@example.com", "password1")
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns no secret for an unknown email", func() {
			secret, err := svc.StartRecoveryByEmail(ctx, "ghost@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(secret).To(BeEmpty())
		})
	})

	Describe("ChangePassword", func() {
		It("leaves the stored hash untouched on a wrong old password", func() {
			a := register("a@example.com", "alice", "password1")

			err := svc.ChangePassword(ctx, a.ID, "wrong-pass", "password2")
			Expect(err).To(MatchError(account.ErrInvalidCredentials))

			stored, err := svc.GetUser(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.PasswordHash).To(Equal(*a.PasswordHash))
		})

		It("accepts the new password after a change", func() {
			a := register("a@example.com", "alice", "password1")

			Expect(svc.ChangePassword(ctx, a.ID, "password1", "password2")).To(Succeed())
			_, err := svc.LoginWithEmail(ctx, "a@example.com", "password2")
			Expect(err).NotTo(HaveOccurred())
		})

		It("stamps updated_at from the service clock", func() {
			a := register("a@example.com", "alice", "password1")

			now = now.Add(3 * time.Minute)
			Expect(svc.ChangePassword(ctx, a.ID, "password1", "password2")).To(Succeed())
			stored, err := svc.GetUser(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.UpdatedAt).To(Equal(now))

			now = now.Add(3 * time.Minute)
			_, err = svc.GenerateRecoveryHash(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			stored, err = svc.GetUser(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.UpdatedAt).To(Equal(now))
		})
	})

	Describe("ExistSlug", func() {
		It("distinguishes free, own and foreign slugs", func() {
			a := register("a@example.com", "alice", "password1")
			b := register("b@example.com", "bob", "password1")

			free, err := svc.ExistSlug(ctx, a.ID, "carol")
			Expect(err).NotTo(HaveOccurred())
			Expect(free).To(BeFalse())

			own, err := svc.ExistSlug(ctx, a.ID, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(own).To(BeFalse())

			foreign, err := svc.ExistSlug(ctx, b.ID, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(foreign).To(BeTrue())
		})
	})

	Describe("uniqueness", func() {
		It("rejects a duplicate email regardless of case", func() {
			register("a@example.com", "alice", "password1")

			_, err := svc.Register(ctx, account.RegisterInput{Email: "A@EXAMPLE.COM", Slug: "alice-two", Password: "password1"})
			Expect(err).To(MatchError(account.ErrConflict))
		})

		It("rejects a duplicate slug", func() {
			register("a@example.com", "alice", "password1")

			_, err := svc.Register(ctx, account.RegisterInput{Email: "b@example.com", Slug: "alice", Password: "password1"})
			Expect(err).To(MatchError(account.ErrConflict))
		})

		It("links and unlinks an external id", func() {
			a := register("a@example.com", "alice", "password1")
			b := register("b@example.com", "bob", "password1")

			_, err := svc.LinkExternalID(ctx, a.ID, "cus_1")
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.LinkExternalID(ctx, b.ID, "cus_1")
			Expect(err).To(MatchError(account.ErrConflict))

			found, err := svc.GetUserByExternalID(ctx, "cus_1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ID).To(Equal(a.ID))

			unlinked, err := svc.LinkExternalID(ctx, a.ID, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(unlinked.ExternalID).To(BeNil())
		})
	})

	Describe("transactions", func() {
		It("rolls back every write when fn fails", func() {
			a := register("a@example.com", "alice", "password1")
			boom := errors.New("boom")

			err := db.InTransaction(ctx, func(ctx context.Context) error {
				if err := users.UpdatePassword(ctx, a.ID, "replaced", now); err != nil {
					return err
				}
				return boom
			})
			Expect(err).To(MatchError(boom))

			stored, err := users.GetByID(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.PasswordHash).To(Equal(*a.PasswordHash))
		})

		It("joins an outer transaction", func() {
			a := register("a@example.com", "alice", "password1")

			err := db.InTransaction(ctx, func(ctx context.Context) error {
				return db.InTransaction(ctx, func(ctx context.Context) error {
					return users.UpdatePassword(ctx, a.ID, "replaced", now)
				})
			})
			Expect(err).NotTo(HaveOccurred())

			stored, err := users.GetByID(ctx, a.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*stored.PasswordHash).To(Equal("replaced"))
		})
	})

	It("lists users in id order", func() {
		a := register("a@example.com", "alice", "password1")
		b := register("b@example.com", "bob", "")

		list, err := svc.ListUsers(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].ID).To(Equal(a.ID))
		Expect(list[1].ID).To(Equal(b.ID))
		Expect(list[1].HasPassword()).To(BeFalse())
	})
})
