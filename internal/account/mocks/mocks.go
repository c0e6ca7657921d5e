// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package mocks provides testify mocks of the account store and hasher contracts.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/accountd/accountd/internal/account"
)

// MockUserRepository is a mock account.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

// NewMockUserRepository creates a mock that asserts its expectations on cleanup.
func NewMockUserRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockUserRepository {
	m := &MockUserRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockUserRepository) Create(ctx context.Context, user *account.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*account.User, error) {
	args := m.Called(ctx, id)
	return userResult(args)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*account.User, error) {
	args := m.Called(ctx, email)
	return userResult(args)
}

func (m *MockUserRepository) GetBySlug(ctx context.Context, slug string) (*account.User, error) {
	args := m.Called(ctx, slug)
	return userResult(args)
}

func (m *MockUserRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*account.User, error) {
	args := m.Called(ctx, tokenHash)
	return userResult(args)
}

func (m *MockUserRepository) GetByRecoveryHash(ctx context.Context, recoveryHash string) (*account.User, error) {
	args := m.Called(ctx, recoveryHash)
	return userResult(args)
}

func (m *MockUserRepository) GetByExternalID(ctx context.Context, externalID string) (*account.User, error) {
	args := m.Called(ctx, externalID)
	return userResult(args)
}

func (m *MockUserRepository) Update(ctx context.Context, user *account.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, updatedAt time.Time) error {
	args := m.Called(ctx, id, passwordHash, updatedAt)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateRecovery(ctx context.Context, id int64, recoveryHash *string, expiresAt *time.Time, updatedAt time.Time) error {
	args := m.Called(ctx, id, recoveryHash, expiresAt, updatedAt)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context, limit int) ([]*account.User, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.User), args.Error(1)
}

func userResult(args mock.Arguments) (*account.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

// MockTokenRepository is a mock account.TokenRepository.
type MockTokenRepository struct {
	mock.Mock
}

// NewMockTokenRepository creates a mock that asserts its expectations on cleanup.
func NewMockTokenRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockTokenRepository {
	m := &MockTokenRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTokenRepository) Create(ctx context.Context, token *account.SessionToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.SessionToken, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.SessionToken), args.Error(1)
}

func (m *MockTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*account.SessionToken, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.SessionToken), args.Error(1)
}

func (m *MockTokenRepository) ListByUser(ctx context.Context, userID int64) ([]*account.SessionToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.SessionToken), args.Error(1)
}

// MockTransactor is a mock account.Transactor. The error configured with
// Return is reported as a begin failure; otherwise fn runs with the caller's
// context and its error is returned.
type MockTransactor struct {
	mock.Mock
}

// NewMockTransactor creates a mock that asserts its expectations on cleanup.
func NewMockTransactor(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockTransactor {
	m := &MockTransactor{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTransactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

// MockPasswordHasher is a mock account.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock that asserts its expectations on cleanup.
func NewMockPasswordHasher(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, digest string) (bool, error) {
	args := m.Called(password, digest)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(digest string) bool {
	args := m.Called(digest)
	return args.Bool(0)
}

var (
	_ account.UserRepository  = (*MockUserRepository)(nil)
	_ account.TokenRepository = (*MockTokenRepository)(nil)
	_ account.Transactor      = (*MockTransactor)(nil)
	_ account.PasswordHasher  = (*MockPasswordHasher)(nil)
)
