// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SecretBytes is the entropy of session tokens and recovery secrets.
// 32 bytes = 64 hex chars.
const SecretBytes = 32

// SessionToken is one authenticated session. It is immutable once stored.
type SessionToken struct {
	ID          ulid.ULID
	UserID      int64
	TokenHash   string
	IPAddress   string
	UserAgent   string
	Fingerprint string
	CreatedAt   time.Time
}

// NewSessionToken creates a validated SessionToken.
// IPAddress, UserAgent and Fingerprint are optional.
func NewSessionToken(userID int64, tokenHash, ipAddress, userAgent, fingerprint string, now time.Time) (*SessionToken, error) {
	if userID <= 0 {
		return nil, oops.Code("TOKEN_INVALID_USER").With("user_id", userID).Wrapf(ErrValidation, "user ID must be positive")
	}
	if tokenHash == "" {
		return nil, oops.Code("TOKEN_INVALID_HASH").Wrapf(ErrValidation, "token hash cannot be empty")
	}
	return &SessionToken{
		ID:          ulid.Make(),
		UserID:      userID,
		TokenHash:   tokenHash,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		Fingerprint: fingerprint,
		CreatedAt:   now,
	}, nil
}

// GenerateSecret creates a random hex secret and its SHA256 digest.
// The plaintext goes to the client; the digest is stored.
func GenerateSecret() (secret, digest string, err error) {
	b := make([]byte, SecretBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", oops.Code("SECRET_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SecretBytes).
			Wrap(err)
	}
	secret = hex.EncodeToString(b)
	return secret, HashSecret(secret), nil
}

// HashSecret computes the SHA256 digest of a token or recovery secret.
func HashSecret(secret string) string {
	h := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(h[:])
}

// VerifySecret checks a plaintext secret against a stored digest in constant time.
func VerifySecret(secret, digest string) bool {
	if secret == "" || digest == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashSecret(secret)), []byte(digest)) == 1
}

// ValidateSecretFormat checks that s looks like a value produced by GenerateSecret.
func ValidateSecretFormat(s string) error {
	if len(s) != SecretBytes*2 {
		return oops.Code("SECRET_INVALID_FORMAT").With("length", len(s)).Wrapf(ErrValidation, "secret must be %d hex characters", SecretBytes*2)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return oops.Code("SECRET_INVALID_FORMAT").Wrapf(ErrValidation, "secret must be hex encoded")
	}
	return nil
}

// TokenRepository manages session token persistence.
type TokenRepository interface {
	// Create stores a new token. Returns ErrConflict if the hash already exists.
	Create(ctx context.Context, token *SessionToken) error

	// GetByID retrieves a token by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*SessionToken, error)

	// GetByTokenHash retrieves a token by its digest.
	GetByTokenHash(ctx context.Context, tokenHash string) (*SessionToken, error)

	// ListByUser returns all tokens of a user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*SessionToken, error)
}

// Transactor runs fn inside a store transaction. Repositories called with the
// context passed to fn participate in that transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
