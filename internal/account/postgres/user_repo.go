// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/account"
)

const userColumns = `id, email, slug, password_hash, recovery_hash, recovery_expires_at,
		       admin, external_id, created_at, updated_at`

// UserRepository implements account.UserRepository using PostgreSQL.
type UserRepository struct {
	pool Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create stores a new user and assigns its ID.
func (r *UserRepository) Create(ctx context.Context, user *account.User) error {
	err := conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (
			email, slug, password_hash, recovery_hash, recovery_expires_at,
			admin, external_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		user.Email,
		user.Slug,
		user.PasswordHash,
		user.RecoveryHash,
		user.RecoveryExpiresAt,
		user.Admin,
		user.ExternalID,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok {
			return oops.Code("USER_CONFLICT").
				With("constraint", constraint).
				With("slug", user.Slug).
				Wrap(account.ErrConflict)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("slug", user.Slug).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*account.User, error) {
	return r.getOne(ctx, "id", id, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	return r.getOne(ctx, "email", email, `SELECT `+userColumns+` FROM users WHERE email = LOWER($1)`, email)
}

// GetBySlug retrieves a user by slug.
func (r *UserRepository) GetBySlug(ctx context.Context, slug string) (*account.User, error) {
	return r.getOne(ctx, "slug", slug, `SELECT `+userColumns+` FROM users WHERE slug = $1`, slug)
}

// GetByTokenHash retrieves the owner of a session token.
func (r *UserRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*account.User, error) {
	return r.getOne(ctx, "token", "<redacted>", `
		SELECT u.id, u.email, u.slug, u.password_hash, u.recovery_hash, u.recovery_expires_at,
		       u.admin, u.external_id, u.created_at, u.updated_at
		FROM users u
		JOIN session_tokens t ON t.user_id = u.id
		WHERE t.token_hash = $1
	`, tokenHash)
}

// GetByRecoveryHash retrieves and row-locks the user holding a recovery digest.
func (r *UserRepository) GetByRecoveryHash(ctx context.Context, recoveryHash string) (*account.User, error) {
	return r.getOne(ctx, "recovery", "<redacted>",
		`SELECT `+userColumns+` FROM users WHERE recovery_hash = $1 FOR UPDATE`, recoveryHash)
}

// GetByExternalID retrieves a user by billing id.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*account.User, error) {
	return r.getOne(ctx, "external_id", externalID, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
}

func (r *UserRepository) getOne(ctx context.Context, key string, value any, query string, arg any) (*account.User, error) {
	user, err := scanUser(conn(ctx, r.pool).QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With(key, value).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+key).
			With(key, value).
			Wrap(err)
	}
	return user, nil
}

// Update writes every mutable field of an existing user.
func (r *UserRepository) Update(ctx context.Context, user *account.User) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET
			email = $2,
			slug = $3,
			password_hash = $4,
			recovery_hash = $5,
			recovery_expires_at = $6,
			admin = $7,
			external_id = $8,
			updated_at = $9
		WHERE id = $1
	`,
		user.ID,
		user.Email,
		user.Slug,
		user.PasswordHash,
		user.RecoveryHash,
		user.RecoveryExpiresAt,
		user.Admin,
		user.ExternalID,
		user.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := isUniqueViolation(err); ok {
			return oops.Code("USER_CONFLICT").
				With("constraint", constraint).
				With("id", user.ID).
				Wrap(account.ErrConflict)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", user.ID).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the password hash for a user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, updatedAt.UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdateRecovery sets or clears the recovery digest and its expiry.
func (r *UserRepository) UpdateRecovery(ctx context.Context, id int64, recoveryHash *string, expiresAt *time.Time, updatedAt time.Time) error {
	result, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE users SET recovery_hash = $2, recovery_expires_at = $3, updated_at = $4
		WHERE id = $1
	`, id, recoveryHash, expiresAt, updatedAt.UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_RECOVERY_FAILED").
			With("operation", "update recovery").
			With("id", id).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// List returns at most limit users ordered by ID.
func (r *UserRepository) List(ctx context.Context, limit int) ([]*account.User, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "list users").
			With("limit", limit).
			Wrap(err)
	}
	defer rows.Close()

	users := make([]*account.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "iterate users").
			Wrap(err)
	}
	return users, nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func scanUser(row pgx.Row) (*account.User, error) {
	var u account.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Slug,
		&u.PasswordHash,
		&u.RecoveryHash,
		&u.RecoveryExpiresAt,
		&u.Admin,
		&u.ExternalID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}
	return &u, nil
}

// Compile-time interface check.
var _ account.UserRepository = (*UserRepository)(nil)
