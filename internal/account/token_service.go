// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// tokenRetryDelay separates token generation attempts after a digest collision.
const tokenRetryDelay = time.Millisecond

// IssueToken creates a session token for an existing user and returns the
// plaintext token. Only its digest is stored. A digest collision reported by
// the store as ErrConflict triggers a fresh token, up to the configured attempts.
func (s *Service) IssueToken(ctx context.Context, userID int64, ipAddress, userAgent, fingerprint string) (string, error) {
	ctx, span := s.startSpan(ctx, "IssueToken", userIDAttr(userID))
	token, err := s.issueToken(ctx, userID, ipAddress, userAgent, fingerprint)
	endSpan(span, err)
	return token, err
}

func (s *Service) issueToken(ctx context.Context, userID int64, ipAddress, userAgent, fingerprint string) (string, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "get user by id").
			With("user_id", userID).
			Wrap(err)
	}

	var plaintext string
	backoff := retry.WithMaxRetries(uint64(s.tokenAttempts-1), retry.NewConstant(tokenRetryDelay)) //nolint:gosec // attempts validated positive
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		secret, digest, err := GenerateSecret()
		if err != nil {
			return err
		}
		token, err := NewSessionToken(userID, digest, ipAddress, userAgent, fingerprint, s.now())
		if err != nil {
			return err
		}
		if err := s.tokens.Create(ctx, token); err != nil {
			if errors.Is(err, ErrConflict) {
				return retry.RetryableError(err)
			}
			return err
		}
		plaintext = secret
		return nil
	})
	if err != nil {
		return "", oops.Code("TOKEN_ISSUE_FAILED").
			With("operation", "persist token").
			With("user_id", userID).
			With("attempts", s.tokenAttempts).
			Wrap(err)
	}

	recordTokenIssued()
	return plaintext, nil
}

// ResolveToken returns the user owning a plaintext session token.
// Unknown and empty tokens return ErrNotFound.
func (s *Service) ResolveToken(ctx context.Context, token string) (*User, error) {
	ctx, span := s.startSpan(ctx, "ResolveToken")
	user, err := s.resolveToken(ctx, token)
	endSpan(span, err)
	return user, err
}

func (s *Service) resolveToken(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrapf(ErrNotFound, "session token cannot be empty")
	}

	user, err := s.users.GetByTokenHash(ctx, HashSecret(token))
	if err != nil {
		return nil, oops.Code("TOKEN_RESOLVE_FAILED").
			With("operation", "get user by token hash").
			Wrap(err)
	}
	return user, nil
}

// GetToken returns a session token record by id.
func (s *Service) GetToken(ctx context.Context, id ulid.ULID) (*SessionToken, error) {
	token, err := s.tokens.GetByID(ctx, id)
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by id").
			With("token_id", id.String()).
			Wrap(err)
	}
	return token, nil
}

// LookupToken returns the session token record of a plaintext token.
// Unknown and empty tokens return ErrNotFound.
func (s *Service) LookupToken(ctx context.Context, token string) (*SessionToken, error) {
	if token == "" {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrapf(ErrNotFound, "session token cannot be empty")
	}
	stored, err := s.tokens.GetByTokenHash(ctx, HashSecret(token))
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}
	return stored, nil
}

// ListTokens returns the session tokens of a user, newest first.
func (s *Service) ListTokens(ctx context.Context, userID int64) ([]*SessionToken, error) {
	tokens, err := s.tokens.ListByUser(ctx, userID)
	if err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").
			With("operation", "list tokens by user").
			With("user_id", userID).
			Wrap(err)
	}
	return tokens, nil
}
