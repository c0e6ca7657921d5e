// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account_test

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/account"
)

func TestGenerateSecret(t *testing.T) {
	secret, digest, err := account.GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, secret, 64)
	_, err = hex.DecodeString(secret)
	assert.NoError(t, err)
	assert.Equal(t, account.HashSecret(secret), digest)
	assert.NotEqual(t, secret, digest)

	other, _, err := account.GenerateSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}

func TestHashSecret(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", account.HashSecret("abc"))
}

func TestVerifySecret(t *testing.T) {
	secret, digest, err := account.GenerateSecret()
	require.NoError(t, err)

	assert.True(t, account.VerifySecret(secret, digest))
	assert.False(t, account.VerifySecret(secret+"0", digest))
	assert.False(t, account.VerifySecret("", digest))
	assert.False(t, account.VerifySecret(secret, ""))
}

func TestValidateSecretFormat(t *testing.T) {
	secret, _, err := account.GenerateSecret()
	require.NoError(t, err)

	assert.NoError(t, account.ValidateSecretFormat(secret))
	assert.ErrorIs(t, account.ValidateSecretFormat(""), account.ErrValidation)
	assert.ErrorIs(t, account.ValidateSecretFormat(secret[:63]), account.ErrValidation)
	assert.ErrorIs(t, account.ValidateSecretFormat(strings.Repeat("z", 64)), account.ErrValidation)
}

func TestNewSessionToken(t *testing.T) {
	now := time.Now()

	t.Run("valid", func(t *testing.T) {
		tok, err := account.NewSessionToken(7, "digest", "10.0.0.1", "curl/8", "fp", now)
		require.NoError(t, err)
		assert.False(t, tok.ID.IsZero())
		assert.Equal(t, int64(7), tok.UserID)
		assert.Equal(t, "digest", tok.TokenHash)
		assert.Equal(t, "10.0.0.1", tok.IPAddress)
		assert.Equal(t, "curl/8", tok.UserAgent)
		assert.Equal(t, "fp", tok.Fingerprint)
		assert.Equal(t, now, tok.CreatedAt)
	})

	t.Run("rejects non-positive user", func(t *testing.T) {
		_, err := account.NewSessionToken(0, "digest", "", "", "", now)
		assert.ErrorIs(t, err, account.ErrValidation)
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := account.NewSessionToken(1, "", "", "", "", now)
		assert.ErrorIs(t, err, account.ErrValidation)
	})
}
