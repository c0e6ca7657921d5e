// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/accountd/accountd/internal/account"
	"github.com/accountd/accountd/internal/account/postgres"
	"github.com/accountd/accountd/internal/store"
)

// testPool is the shared database pool for integration tests.
var testPool *pgxpool.Pool

// TestMain starts a PostgreSQL container and applies the migrations.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("accountd_test"),
		tcpostgres.WithUsername("accountd"),
		tcpostgres.WithPassword("accountd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := store.OpenPool(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func newService(t *testing.T) *account.Service {
	t.Helper()
	hasher, err := account.NewArgon2idHasherWithParams(account.HasherParams{Memory: 1024, Time: 1, Threads: 1})
	require.NoError(t, err)

	svc, err := account.NewService(account.ServiceConfig{
		Users:      postgres.NewUserRepository(testPool),
		Tokens:     postgres.NewTokenRepository(testPool),
		Transactor: postgres.NewTransactor(testPool),
		Hasher:     hasher,
	})
	require.NoError(t, err)
	return svc
}

func cleanup(t *testing.T, id int64) {
	t.Cleanup(func() {
		_, _ = testPool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, id)
	})
}

func TestIntegration_RegisterLoginToken(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	user, err := svc.Register(ctx, account.RegisterInput{Email: "Int1@X.com", Slug: "int-one", Password: "password1"})
	require.NoError(t, err)
	cleanup(t, user.ID)
	assert.Positive(t, user.ID)

	_, err = svc.Register(ctx, account.RegisterInput{Email: "int1@x.com", Slug: "int-other", Password: "password1"})
	assert.ErrorIs(t, err, account.ErrConflict)

	logged, err := svc.LoginWithEmail(ctx, "int1@x.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	token, err := svc.IssueToken(ctx, user.ID, "10.0.0.1", "go-test", "fp")
	require.NoError(t, err)

	resolved, err := svc.ResolveToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)

	byToken, err := postgres.NewUserRepository(testPool).GetByTokenHash(ctx, account.HashSecret(token))
	require.NoError(t, err)
	assert.Equal(t, user.ID, byToken.ID)

	tokens, err := svc.ListTokens(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "10.0.0.1", tokens[0].IPAddress)
}

func TestIntegration_RecoveryIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	user, err := svc.Register(ctx, account.RegisterInput{Email: "int2@x.com", Slug: "int-two", Password: "password1"})
	require.NoError(t, err)
	cleanup(t, user.ID)

	secret, err := svc.GenerateRecoveryHash(ctx, user.ID)
	require.NoError(t, err)

	// Concurrent completions: the row lock lets exactly one win.
	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.ChangePasswordUsingHash(ctx, secret, "password2")
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, account.ErrInvalidRecovery)
	}
	assert.Equal(t, 1, succeeded)

	_, err = svc.LoginWithEmail(ctx, "int2@x.com", "password2")
	assert.NoError(t, err)

	stored, err := svc.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RecoveryHash)
	assert.Nil(t, stored.RecoveryExpiresAt)
}

func TestIntegration_ProfileAndRoles(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	a, err := svc.Register(ctx, account.RegisterInput{Email: "int3@x.com", Slug: "int-three"})
	require.NoError(t, err)
	cleanup(t, a.ID)
	b, err := svc.Register(ctx, account.RegisterInput{Email: "int4@x.com", Slug: "int-four"})
	require.NoError(t, err)
	cleanup(t, b.ID)

	taken, err := svc.ExistSlug(ctx, a.ID, "int-four")
	require.NoError(t, err)
	assert.True(t, taken)

	slug := "int-four"
	_, err = svc.UpdateProfile(ctx, a.ID, account.ProfileUpdate{Slug: &slug})
	assert.ErrorIs(t, err, account.ErrConflict)

	updated, err := svc.SetAdmin(ctx, a.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Admin)

	_, err = svc.LinkExternalID(ctx, a.ID, "cus_int3")
	require.NoError(t, err)
	_, err = svc.LinkExternalID(ctx, b.ID, "cus_int3")
	assert.ErrorIs(t, err, account.ErrConflict)

	found, err := svc.GetUserByExternalID(ctx, "cus_int3")
	require.NoError(t, err)
	assert.Equal(t, a.ID, found.ID)

	users, err := svc.ListUsers(ctx, 1000)
	require.NoError(t, err)
	for i := 1; i < len(users); i++ {
		assert.Less(t, users[i-1].ID, users[i].ID)
	}
}
