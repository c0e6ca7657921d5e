// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"context"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Validation constraints.
const (
	MinSlugLength     = 3
	MaxSlugLength     = 64
	MaxEmailLength    = 254
	MinPasswordLength = 8
	MaxPasswordLength = 1024
)

// slugRegex matches lower-case slugs that start and end with a letter or digit
// and may contain single dashes in between.
var slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// User is a first-party account.
type User struct {
	ID                int64
	Email             string
	Slug              string
	PasswordHash      *string // nil for externally-provisioned accounts
	RecoveryHash      *string // digest of the outstanding recovery secret
	RecoveryExpiresAt *time.Time
	Admin             bool
	ExternalID        *string // billing id
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasPassword reports whether the user can log in with a local password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// HasActiveRecovery reports whether a recovery secret is outstanding at t.
func (u *User) HasActiveRecovery(t time.Time) bool {
	return u.RecoveryHash != nil && u.RecoveryExpiresAt != nil && t.Before(*u.RecoveryExpiresAt)
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email      string
	Slug       string
	Password   string // empty creates an account without a local password
	Admin      bool
	ExternalID string
}

// ProfileUpdate describes an edit of the user-visible identifiers.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	Email *string
	Slug  *string
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeSlug trims and lower-cases a slug.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// ValidateEmail validates a normalized email address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("USER_INVALID_EMAIL").Wrapf(ErrValidation, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("USER_INVALID_EMAIL").
			With("max", MaxEmailLength).
			Wrapf(ErrValidation, "email must be at most %d characters", MaxEmailLength)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("USER_INVALID_EMAIL").Wrapf(ErrValidation, "email is not a valid address")
	}
	return nil
}

// ValidateSlug validates a normalized slug.
func ValidateSlug(slug string) error {
	if len(slug) < MinSlugLength || len(slug) > MaxSlugLength {
		return oops.Code("USER_INVALID_SLUG").
			With("min", MinSlugLength).
			With("max", MaxSlugLength).
			Wrapf(ErrValidation, "slug must be between %d and %d characters", MinSlugLength, MaxSlugLength)
	}
	if !slugRegex.MatchString(slug) {
		return oops.Code("USER_INVALID_SLUG").
			Wrapf(ErrValidation, "slug must contain only lower-case letters, digits and single dashes")
	}
	return nil
}

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code("USER_INVALID_PASSWORD").
			With("min", MinPasswordLength).
			Wrapf(ErrValidation, "password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return oops.Code("USER_INVALID_PASSWORD").
			With("max", MaxPasswordLength).
			Wrapf(ErrValidation, "password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// NewUser builds a validated User from registration input. passwordHash is the
// digest of input.Password, or empty when the account has no local password.
// The ID is assigned by the store on insert.
func NewUser(input RegisterInput, passwordHash string, now time.Time) (*User, error) {
	email := NormalizeEmail(input.Email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	slug := NormalizeSlug(input.Slug)
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}

	u := &User{
		Email:     email,
		Slug:      slug,
		Admin:     input.Admin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if passwordHash != "" {
		u.PasswordHash = &passwordHash
	}
	if ext := strings.TrimSpace(input.ExternalID); ext != "" {
		u.ExternalID = &ext
	}
	return u, nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and assigns its ID.
	// Returns ErrConflict if the email, slug or external id is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetBySlug retrieves a user by slug.
	GetBySlug(ctx context.Context, slug string) (*User, error)

	// GetByTokenHash retrieves the owner of a session token.
	GetByTokenHash(ctx context.Context, tokenHash string) (*User, error)

	// GetByRecoveryHash retrieves the user holding the given recovery digest.
	// Inside a transaction the row stays locked until commit.
	GetByRecoveryHash(ctx context.Context, recoveryHash string) (*User, error)

	// GetByExternalID retrieves a user by billing id.
	GetByExternalID(ctx context.Context, externalID string) (*User, error)

	// Update writes every mutable field of an existing user.
	Update(ctx context.Context, user *User) error

	// UpdatePassword updates only the password hash for a user.
	UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error

	// UpdateRecovery sets or clears the recovery digest and its expiry.
	UpdateRecovery(ctx context.Context, id int64, recoveryHash *string, expiresAt *time.Time, updatedAt time.Time) error

	// List returns at most limit users ordered by ID.
	List(ctx context.Context, limit int) ([]*User, error)
}
