// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/accountd/accountd/internal/account"
)

const userColumns = `id, email, slug, password_hash, recovery_hash, recovery_expires_at,
	admin, external_id, created_at, updated_at`

// UserRepository implements account.UserRepository on SQLite.
type UserRepository struct {
	store *Store
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

// Create stores a new user and assigns its ID.
func (r *UserRepository) Create(ctx context.Context, user *account.User) error {
	result, err := r.store.conn(ctx).ExecContext(ctx, `
		INSERT INTO users (
			email, slug, password_hash, recovery_hash, recovery_expires_at,
			admin, external_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		user.Email,
		user.Slug,
		nullString(user.PasswordHash),
		nullString(user.RecoveryHash),
		nullMillis(user.RecoveryExpiresAt),
		user.Admin,
		nullString(user.ExternalID),
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_CONFLICT").
				With("slug", user.Slug).
				With("detail", err.Error()).
				Wrap(account.ErrConflict)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("slug", user.Slug).
			Wrap(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "read inserted id").
			Wrap(err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*account.User, error) {
	return r.getOne(ctx, "id", id, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	return r.getOne(ctx, "email", email, `SELECT `+userColumns+` FROM users WHERE email = lower(?)`, email)
}

// GetBySlug retrieves a user by slug.
func (r *UserRepository) GetBySlug(ctx context.Context, slug string) (*account.User, error) {
	return r.getOne(ctx, "slug", slug, `SELECT `+userColumns+` FROM users WHERE slug = ?`, slug)
}

// GetByTokenHash retrieves the owner of a session token.
func (r *UserRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*account.User, error) {
	return r.getOne(ctx, "token", "<redacted>", `
		SELECT u.id, u.email, u.slug, u.password_hash, u.recovery_hash, u.recovery_expires_at,
			u.admin, u.external_id, u.created_at, u.updated_at
		FROM users u
		JOIN session_tokens t ON t.user_id = u.id
		WHERE t.token_hash = ?
	`, tokenHash)
}

// GetByRecoveryHash retrieves the user holding a recovery digest. Transactions
// take the database write lock at BEGIN, so the row cannot change before commit.
func (r *UserRepository) GetByRecoveryHash(ctx context.Context, recoveryHash string) (*account.User, error) {
	return r.getOne(ctx, "recovery", "<redacted>", `SELECT `+userColumns+` FROM users WHERE recovery_hash = ?`, recoveryHash)
}

// GetByExternalID retrieves a user by billing id.
func (r *UserRepository) GetByExternalID(ctx context.Context, externalID string) (*account.User, error) {
	return r.getOne(ctx, "external_id", externalID, `SELECT `+userColumns+` FROM users WHERE external_id = ?`, externalID)
}

func (r *UserRepository) getOne(ctx context.Context, key string, value any, query string, arg any) (*account.User, error) {
	user, err := scanUser(r.store.conn(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
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
	result, err := r.store.conn(ctx).ExecContext(ctx, `
		UPDATE users SET
			email = ?,
			slug = ?,
			password_hash = ?,
			recovery_hash = ?,
			recovery_expires_at = ?,
			admin = ?,
			external_id = ?,
			updated_at = ?
		WHERE id = ?
	`,
		user.Email,
		user.Slug,
		nullString(user.PasswordHash),
		nullString(user.RecoveryHash),
		nullMillis(user.RecoveryExpiresAt),
		user.Admin,
		nullString(user.ExternalID),
		toMillis(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("USER_CONFLICT").
				With("id", user.ID).
				With("detail", err.Error()).
				Wrap(account.ErrConflict)
		}
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID).
			Wrap(err)
	}
	return requireRow(result, "id", user.ID)
}

// UpdatePassword updates only the password hash for a user.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(updatedAt), id)
	if err != nil {
		return oops.Code("USER_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id).
			Wrap(err)
	}
	return requireRow(result, "id", id)
}

// UpdateRecovery sets or clears the recovery digest and its expiry.
func (r *UserRepository) UpdateRecovery(ctx context.Context, id int64, recoveryHash *string, expiresAt *time.Time, updatedAt time.Time) error {
	result, err := r.store.conn(ctx).ExecContext(ctx,
		`UPDATE users SET recovery_hash = ?, recovery_expires_at = ?, updated_at = ? WHERE id = ?`,
		nullString(recoveryHash), nullMillis(expiresAt), toMillis(updatedAt), id)
	if err != nil {
		return oops.Code("USER_UPDATE_RECOVERY_FAILED").
			With("operation", "update recovery").
			With("id", id).
			Wrap(err)
	}
	return requireRow(result, "id", id)
}

// List returns at most limit users ordered by ID.
func (r *UserRepository) List(ctx context.Context, limit int) ([]*account.User, error) {
	rows, err := r.store.conn(ctx).QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT ?`, limit)
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

type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser scans a single row into a User.
// Callers are responsible for handling sql.ErrNoRows.
func scanUser(row rowScanner) (*account.User, error) {
	var (
		u            account.User
		passwordHash sql.NullString
		recoveryHash sql.NullString
		recoveryExp  sql.NullInt64
		externalID   sql.NullString
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Slug,
		&passwordHash,
		&recoveryHash,
		&recoveryExp,
		&u.Admin,
		&externalID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	u.PasswordHash = stringPtr(passwordHash)
	u.RecoveryHash = stringPtr(recoveryHash)
	u.RecoveryExpiresAt = timePtr(recoveryExp)
	u.ExternalID = stringPtr(externalID)
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func requireRow(result sql.Result, key string, value any) error {
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "rows affected").
			Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").
			With(key, value).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ account.UserRepository = (*UserRepository)(nil)
