// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package account implements the authentication and session core for accountd.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User from validated registration input
//   - NewSessionToken - creates a SessionToken bound to a user and request metadata
//
// Direct struct initialization bypasses validation and may create invalid state.
//
// # Service
//
// Service orchestrates the credential store, the password hasher, the token
// issuer and the recovery flow. It holds no mutable state of its own, so a
// single instance may be shared by concurrent callers. Uniqueness of emails,
// slugs and tokens is enforced by the store.
//
// # Errors
//
// Every error returned by Service matches one of ErrNotFound,
// ErrInvalidCredentials, ErrConflict, ErrValidation or ErrInvalidRecovery via
// errors.Is, or is a storage failure. KindOf classifies an error into that
// closed set.
package account
