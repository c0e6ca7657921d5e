// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// GenerateRecoveryHash issues a recovery secret for a user and returns it in
// plaintext for delivery. Its digest replaces any previously issued one, so
// at most one secret is valid per user.
func (s *Service) GenerateRecoveryHash(ctx context.Context, userID int64) (string, error) {
	ctx, span := s.startSpan(ctx, "GenerateRecoveryHash", userIDAttr(userID))
	secret, err := s.generateRecoveryHash(ctx, userID)
	recordRecovery(StageIssue, err)
	endSpan(span, err)
	return secret, err
}

func (s *Service) generateRecoveryHash(ctx context.Context, userID int64) (string, error) {
	secret, digest, err := GenerateSecret()
	if err != nil {
		return "", oops.Code("RECOVERY_ISSUE_FAILED").
			With("operation", "generate secret").
			Wrap(err)
	}

	now := s.now()
	expiresAt := now.Add(s.recoveryTTL)
	if err := s.users.UpdateRecovery(ctx, userID, &digest, &expiresAt, now); err != nil {
		return "", oops.Code("RECOVERY_ISSUE_FAILED").
			With("operation", "store recovery hash").
			With("user_id", userID).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "recovery issued", "user_id", userID, "expires_at", expiresAt)
	return secret, nil
}

// StartRecoveryByEmail issues a recovery secret for the account with the given
// email. Unknown emails return an empty secret and no error.
func (s *Service) StartRecoveryByEmail(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", oops.Code("RECOVERY_ISSUE_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}
	return s.GenerateRecoveryHash(ctx, user.ID)
}

// ChangePasswordUsingHash sets a new password for the holder of a recovery
// secret. The password hash and the cleared recovery fields are written in one
// update inside a transaction; on any failure the secret stays valid.
func (s *Service) ChangePasswordUsingHash(ctx context.Context, secret, newPassword string) error {
	ctx, span := s.startSpan(ctx, "ChangePasswordUsingHash")
	err := s.changePasswordUsingHash(ctx, secret, newPassword)
	recordRecovery(StageComplete, err)
	endSpan(span, err)
	return err
}

func (s *Service) changePasswordUsingHash(ctx context.Context, secret, newPassword string) error {
	if err := ValidateSecretFormat(secret); err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RECOVERY_COMPLETE_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	digest := HashSecret(secret)
	var userID int64
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByRecoveryHash(ctx, digest)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidRecovery()
			}
			return err
		}
		if !user.HasActiveRecovery(s.now()) {
			s.logger.InfoContext(ctx, "recovery rejected", "user_id", user.ID, "reason", "expired")
			return invalidRecovery()
		}

		user.PasswordHash = &newHash
		user.RecoveryHash = nil
		user.RecoveryExpiresAt = nil
		user.UpdatedAt = s.now()
		if err := s.users.Update(ctx, user); err != nil {
			return err
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRecovery) {
			return err
		}
		return oops.Code("RECOVERY_COMPLETE_FAILED").
			With("operation", "update password").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "password recovered", "user_id", userID)
	return nil
}

// invalidRecovery is returned for unknown and expired secrets alike.
func invalidRecovery() error {
	return oops.Code("RECOVERY_INVALID").Wrapf(ErrInvalidRecovery, "recovery secret is not valid")
}
