// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Defaults applied by NewService.
const (
	DefaultRecoveryTTL   = time.Hour
	DefaultTokenAttempts = 3
	DefaultListLimit     = 100
	MaxListLimit         = 1000
)

// ServiceConfig holds the collaborators and settings of a Service.
type ServiceConfig struct {
	Users      UserRepository
	Tokens     TokenRepository
	Transactor Transactor
	Hasher     PasswordHasher

	// Logger receives security events and best-effort failures. Defaults to slog.Default().
	Logger *slog.Logger

	// RecoveryTTL is how long a recovery secret stays valid. Defaults to DefaultRecoveryTTL.
	RecoveryTTL time.Duration

	// TokenAttempts bounds token generation retries on hash collisions.
	// Defaults to DefaultTokenAttempts.
	TokenAttempts int

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Tracer starts a span per public operation. Defaults to the global provider's tracer.
	Tracer trace.Tracer
}

// Service provides account and authentication operations.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	users         UserRepository
	tokens        TokenRepository
	tx            Transactor
	hasher        PasswordHasher
	logger        *slog.Logger
	recoveryTTL   time.Duration
	tokenAttempts int
	now           func() time.Time
	tracer        trace.Tracer

	// dummyHash is verified against when a user doesn't exist or has no
	// password. It is produced by hasher, so it costs the same work as a
	// real digest.
	dummyHash string
}

// NewService creates a new Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Users == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("users repository is required")
	}
	if cfg.Tokens == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("tokens repository is required")
	}
	if cfg.Transactor == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("transactor is required")
	}
	if cfg.Hasher == nil {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if cfg.RecoveryTTL < 0 {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").
			With("recovery_ttl", cfg.RecoveryTTL).
			Errorf("recovery TTL must not be negative")
	}
	if cfg.TokenAttempts < 0 {
		return nil, oops.Code("ACCOUNT_INVALID_CONFIG").
			With("token_attempts", cfg.TokenAttempts).
			Errorf("token attempts must not be negative")
	}

	s := &Service{
		users:         cfg.Users,
		tokens:        cfg.Tokens,
		tx:            cfg.Transactor,
		hasher:        cfg.Hasher,
		logger:        cfg.Logger,
		recoveryTTL:   cfg.RecoveryTTL,
		tokenAttempts: cfg.TokenAttempts,
		now:           cfg.Clock,
		tracer:        cfg.Tracer,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.recoveryTTL == 0 {
		s.recoveryTTL = DefaultRecoveryTTL
	}
	if s.tokenAttempts == 0 {
		s.tokenAttempts = DefaultTokenAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	dummyHash, err := newDummyHash(s.hasher)
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummyHash
	return s, nil
}

// newDummyHash hashes a random secret nobody knows.
func newDummyHash(hasher PasswordHasher) (string, error) {
	secret, _, err := GenerateSecret()
	if err != nil {
		return "", oops.Code("ACCOUNT_INVALID_CONFIG").
			With("operation", "generate dummy password").
			Wrap(err)
	}
	digest, err := hasher.Hash(secret)
	if err != nil {
		return "", oops.Code("ACCOUNT_INVALID_CONFIG").
			With("operation", "hash dummy password").
			Wrap(err)
	}
	return digest, nil
}

// Register validates the input, hashes the password and stores a new user.
// Returns ErrConflict if the email, slug or external id is already taken.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	ctx, span := s.startSpan(ctx, "Register")
	user, err := s.register(ctx, input)
	endSpan(span, err)
	return user, err
}

func (s *Service) register(ctx context.Context, input RegisterInput) (*User, error) {
	var passwordHash string
	if input.Password != "" {
		if err := ValidatePassword(input.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
				With("operation", "hash password").
				Wrap(err)
		}
		passwordHash = hash
	}

	user, err := NewUser(input, passwordHash, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, oops.Code("ACCOUNT_REGISTER_FAILED").
			With("operation", "create user").
			With("slug", user.Slug).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "slug", user.Slug)
	return user, nil
}

// LoginWithEmail authenticates a user by email and password.
// Unknown emails, accounts without a password and wrong passwords all return
// ErrInvalidCredentials after the same amount of hashing work.
func (s *Service) LoginWithEmail(ctx context.Context, email, password string) (*User, error) {
	ctx, span := s.startSpan(ctx, "LoginWithEmail")
	user, err := s.loginWithEmail(ctx, email, password)
	recordLogin(err)
	endSpan(span, err)
	return user, err
}

func (s *Service) loginWithEmail(ctx context.Context, email, password string) (*User, error) {
	user, lookupErr := s.users.GetByEmail(ctx, NormalizeEmail(email))

	targetHash := s.dummyHash
	switch {
	case lookupErr == nil && user.HasPassword():
		targetHash = *user.PasswordHash
	case lookupErr == nil:
		// no local password; verify against the dummy and fail below
	case errors.Is(lookupErr, ErrNotFound):
		user = nil
	default:
		return nil, oops.Code("ACCOUNT_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	// Oversized passwords can never match a stored digest; the capped
	// candidate keeps the hashing work bounded and equal.
	candidate := password
	oversized := len(password) > MaxPasswordLength
	if oversized {
		candidate = password[:MaxPasswordLength]
		targetHash = s.dummyHash
	}

	valid, verifyErr := s.hasher.Verify(candidate, targetHash)
	if user == nil || !user.HasPassword() || oversized {
		return nil, invalidCredentials()
	}
	if verifyErr != nil {
		return nil, oops.Code("ACCOUNT_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(verifyErr)
	}
	if !valid {
		s.logger.InfoContext(ctx, "login failed", "user_id", user.ID, "reason", "password mismatch")
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(targetHash) {
		s.upgradePasswordHash(ctx, user, password)
	}

	return user, nil
}

// upgradePasswordHash rehashes with current parameters. Login succeeds regardless.
func (s *Service) upgradePasswordHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.users.UpdatePassword(ctx, user.ID, newHash, s.now()); err != nil {
		s.logger.WarnContext(ctx, "password rehash not persisted", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = &newHash
}

// HasPassword reports whether the user has a local password.
func (s *Service) HasPassword(ctx context.Context, userID int64) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get user by id").
			With("user_id", userID).
			Wrap(err)
	}
	return user.HasPassword(), nil
}

// ChangePassword replaces the password after verifying the old one.
// A wrong old password or a missing local password returns ErrInvalidCredentials
// and leaves the stored hash untouched.
func (s *Service) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	ctx, span := s.startSpan(ctx, "ChangePassword", userIDAttr(userID))
	err := s.changePassword(ctx, userID, oldPassword, newPassword)
	endSpan(span, err)
	return err
}

func (s *Service) changePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_PASSWORD_FAILED").
			With("operation", "get user by id").
			With("user_id", userID).
			Wrap(err)
	}

	if !user.HasPassword() {
		//nolint:errcheck // timing equalization only
		_, _ = s.hasher.Verify(oldPassword, s.dummyHash)
		return invalidCredentials()
	}

	valid, err := s.hasher.Verify(oldPassword, *user.PasswordHash)
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_PASSWORD_FAILED").
			With("operation", "verify password").
			With("user_id", userID).
			Wrap(err)
	}
	if !valid {
		s.logger.InfoContext(ctx, "password change rejected", "user_id", userID)
		return invalidCredentials()
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("ACCOUNT_CHANGE_PASSWORD_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash, s.now()); err != nil {
		return oops.Code("ACCOUNT_CHANGE_PASSWORD_FAILED").
			With("operation", "update password").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// ExistSlug reports whether a user other than userID holds slug.
func (s *Service) ExistSlug(ctx context.Context, userID int64, slug string) (bool, error) {
	user, err := s.users.GetBySlug(ctx, NormalizeSlug(slug))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, oops.Code("ACCOUNT_SLUG_CHECK_FAILED").
			With("operation", "get user by slug").
			With("slug", slug).
			Wrap(err)
	}
	return user.ID != userID, nil
}

// UpdateProfile applies email and slug edits.
// Returns ErrConflict when the new email or slug belongs to another user.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*User, error) {
	var email, slug string
	if update.Email != nil {
		email = NormalizeEmail(*update.Email)
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
	}
	if update.Slug != nil {
		slug = NormalizeSlug(*update.Slug)
		if err := ValidateSlug(slug); err != nil {
			return nil, err
		}
		taken, err := s.ExistSlug(ctx, userID, slug)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, oops.Code("USER_SLUG_TAKEN").
				With("slug", slug).
				Wrapf(ErrConflict, "slug is already taken")
		}
	}

	return s.modifyUser(ctx, userID, "update profile", func(u *User) {
		if update.Email != nil {
			u.Email = email
		}
		if update.Slug != nil {
			u.Slug = slug
		}
	})
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, userID int64) (*User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get user by id").
			With("user_id", userID).
			Wrap(err)
	}
	return user, nil
}

// GetUserByExternalID retrieves a user by billing id.
func (s *Service) GetUserByExternalID(ctx context.Context, externalID string) (*User, error) {
	user, err := s.users.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_FAILED").
			With("operation", "get user by external id").
			With("external_id", externalID).
			Wrap(err)
	}
	return user, nil
}

// ListUsers returns up to limit users ordered by ID. Non-positive limits use
// DefaultListLimit; limits above MaxListLimit are clamped.
func (s *Service) ListUsers(ctx context.Context, limit int) ([]*User, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	users, err := s.users.List(ctx, limit)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list users").
			With("limit", limit).
			Wrap(err)
	}
	return users, nil
}

// SetAdmin grants or revokes the admin role.
func (s *Service) SetAdmin(ctx context.Context, userID int64, admin bool) (*User, error) {
	user, err := s.modifyUser(ctx, userID, "set admin", func(u *User) {
		u.Admin = admin
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "admin role changed", "user_id", userID, "admin", admin)
	return user, nil
}

// LinkExternalID sets the billing id of a user. An empty id unlinks it.
func (s *Service) LinkExternalID(ctx context.Context, userID int64, externalID string) (*User, error) {
	var ext *string
	if externalID != "" {
		ext = &externalID
	}
	return s.modifyUser(ctx, userID, "link external id", func(u *User) {
		u.ExternalID = ext
	})
}

// modifyUser reads, mutates and writes a user inside one transaction.
func (s *Service) modifyUser(ctx context.Context, userID int64, operation string, mutate func(*User)) (*User, error) {
	var updated *User
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		mutate(user)
		user.UpdatedAt = s.now()
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", operation).
			With("user_id", userID).
			Wrap(err)
	}
	return updated, nil
}

func invalidCredentials() error {
	return oops.Code("ACCOUNT_INVALID_CREDENTIALS").Wrapf(ErrInvalidCredentials, "invalid email or password")
}
