// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/account"
)

const tokenColumns = `id, user_id, token_hash, ip_address, user_agent, fingerprint, created_at`

// TokenRepository implements account.TokenRepository on SQLite.
type TokenRepository struct {
	store *Store
}

// NewTokenRepository creates a new TokenRepository.
func NewTokenRepository(store *Store) *TokenRepository {
	return &TokenRepository{store: store}
}

// Create stores a new session token.
func (r *TokenRepository) Create(ctx context.Context, token *account.SessionToken) error {
	_, err := r.store.conn(ctx).ExecContext(ctx,
		`INSERT INTO session_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID.String(),
		token.UserID,
		token.TokenHash,
		token.IPAddress,
		token.UserAgent,
		token.Fingerprint,
		toMillis(token.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("TOKEN_CONFLICT").
				With("detail", err.Error()).
				Wrap(account.ErrConflict)
		}
		return oops.Code("TOKEN_CREATE_FAILED").
			With("operation", "insert token").
			With("user_id", token.UserID).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a token by ID.
func (r *TokenRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.SessionToken, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM session_tokens WHERE id = ?`, id.String())
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by id").
			With("id", id.String()).
			Wrap(err)
	}
	return token, nil
}

// GetByTokenHash retrieves a token by its digest.
func (r *TokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*account.SessionToken, error) {
	row := r.store.conn(ctx).QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM session_tokens WHERE token_hash = ?`, tokenHash)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("TOKEN_NOT_FOUND").Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("TOKEN_GET_FAILED").
			With("operation", "get token by hash").
			Wrap(err)
	}
	return token, nil
}

// ListByUser returns all tokens of a user, newest first.
func (r *TokenRepository) ListByUser(ctx context.Context, userID int64) ([]*account.SessionToken, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM session_tokens WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").
			With("operation", "list tokens by user").
			With("user_id", userID).
			Wrap(err)
	}
	defer rows.Close()

	tokens := make([]*account.SessionToken, 0)
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("TOKEN_LIST_FAILED").
			With("operation", "iterate tokens").
			With("user_id", userID).
			Wrap(err)
	}
	return tokens, nil
}

// scanToken scans a single row into a SessionToken.
// Callers are responsible for handling sql.ErrNoRows.
func scanToken(row rowScanner) (*account.SessionToken, error) {
	var (
		idStr     string
		createdAt int64
		t         account.SessionToken
	)
	err := row.Scan(&idStr, &t.UserID, &t.TokenHash, &t.IPAddress, &t.UserAgent, &t.Fingerprint, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("TOKEN_SCAN_FAILED").
			With("operation", "scan token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("TOKEN_INVALID_ID").
			With("operation", "parse token id").
			With("id", idStr).
			Wrap(err)
	}
	t.ID = id
	t.CreatedAt = fromMillis(createdAt)
	return &t, nil
}

// Compile-time interface check.
var _ account.TokenRepository = (*TokenRepository)(nil)
