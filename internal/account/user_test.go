// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/account"
	"github.com/accountd/accountd/pkg/errutil"
)

func TestNewUser(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("normalizes email and slug", func(t *testing.T) {
		u, err := account.NewUser(account.RegisterInput{
			Email:      "  Alice@Example.COM ",
			Slug:       "Alice-1",
			ExternalID: " cus_123 ",
		}, "digest", now)
		require.NoError(t, err)

		assert.Equal(t, "alice@example.com", u.Email)
		assert.Equal(t, "alice-1", u.Slug)
		require.NotNil(t, u.PasswordHash)
		assert.Equal(t, "digest", *u.PasswordHash)
		require.NotNil(t, u.ExternalID)
		assert.Equal(t, "cus_123", *u.ExternalID)
		assert.Equal(t, now, u.CreatedAt)
		assert.Equal(t, now, u.UpdatedAt)
		assert.Zero(t, u.ID)
		assert.True(t, u.HasPassword())
	})

	t.Run("no password hash leaves field nil", func(t *testing.T) {
		u, err := account.NewUser(account.RegisterInput{Email: "a@x.com", Slug: "abc"}, "", now)
		require.NoError(t, err)
		assert.Nil(t, u.PasswordHash)
		assert.Nil(t, u.ExternalID)
		assert.False(t, u.HasPassword())
	})

	t.Run("invalid email", func(t *testing.T) {
		_, err := account.NewUser(account.RegisterInput{Email: "not-an-email", Slug: "abc"}, "", now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, account.ErrValidation))
		errutil.AssertErrorCode(t, err, "USER_INVALID_EMAIL")
	})

	t.Run("invalid slug", func(t *testing.T) {
		_, err := account.NewUser(account.RegisterInput{Email: "a@x.com", Slug: "a b"}, "", now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, account.ErrValidation))
		errutil.AssertErrorCode(t, err, "USER_INVALID_SLUG")
	})
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"simple", "a@x.com", false},
		{"plus addressing", "a+tag@example.org", false},
		{"empty", "", true},
		{"missing at", "ax.com", true},
		{"display name", "Alice <a@x.com>", true},
		{"too long", strings.Repeat("a", 250) + "@x.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := account.ValidateEmail(tt.email)
			if tt.wantErr {
				assert.ErrorIs(t, err, account.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{"letters", "alice", false},
		{"with digits and dash", "alice-2", false},
		{"minimum length", "abc", false},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", account.MaxSlugLength+1), true},
		{"leading dash", "-alice", true},
		{"trailing dash", "alice-", true},
		{"double dash", "al--ice", true},
		{"upper case", "Alice", true},
		{"underscore", "al_ice", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := account.ValidateSlug(tt.slug)
			if tt.wantErr {
				assert.ErrorIs(t, err, account.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, account.ValidatePassword("12345678"))
	assert.ErrorIs(t, account.ValidatePassword("1234567"), account.ErrValidation)
	assert.ErrorIs(t, account.ValidatePassword(strings.Repeat("x", account.MaxPasswordLength+1)), account.ErrValidation)
}

func TestUserHasActiveRecovery(t *testing.T) {
	now := time.Now()
	hash := "digest"
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	assert.False(t, (&account.User{}).HasActiveRecovery(now))
	assert.False(t, (&account.User{RecoveryHash: &hash}).HasActiveRecovery(now))
	assert.True(t, (&account.User{RecoveryHash: &hash, RecoveryExpiresAt: &later}).HasActiveRecovery(now))
	assert.False(t, (&account.User{RecoveryHash: &hash, RecoveryExpiresAt: &earlier}).HasActiveRecovery(now))
}
