// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account

import "errors"

// Sentinel errors for the account error taxonomy.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidCredentials is returned when login or password verification fails.
	// It never reveals whether the account exists.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrConflict is returned when a uniqueness constraint is violated.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidRecovery is returned when a recovery secret is unknown, consumed or expired.
	ErrInvalidRecovery = errors.New("invalid recovery")
)

// Kind classifies an error returned by this package.
type Kind int

// Error kinds.
const (
	KindStorage Kind = iota
	KindNotFound
	KindInvalidCredentials
	KindConflict
	KindValidation
	KindInvalidRecovery
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindInvalidRecovery:
		return "invalid_recovery"
	default:
		return "storage"
	}
}

// KindOf returns the kind of err. Errors outside the taxonomy, including nil,
// are reported as KindStorage.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindStorage
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrInvalidRecovery):
		return KindInvalidRecovery
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindStorage
	}
}
