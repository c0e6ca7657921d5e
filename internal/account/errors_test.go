// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/accountd/accountd/internal/account"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want account.Kind
	}{
		{"nil", nil, account.KindStorage},
		{"plain error", errors.New("boom"), account.KindStorage},
		{"not found", account.ErrNotFound, account.KindNotFound},
		{"wrapped not found", oops.Code("USER_NOT_FOUND").With("id", 1).Wrap(account.ErrNotFound), account.KindNotFound},
		{"invalid credentials", oops.Code("X").Wrap(account.ErrInvalidCredentials), account.KindInvalidCredentials},
		{"conflict", oops.Code("X").Wrap(oops.Code("Y").Wrap(account.ErrConflict)), account.KindConflict},
		{"validation", account.ErrValidation, account.KindValidation},
		{"invalid recovery", account.ErrInvalidRecovery, account.KindInvalidRecovery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, account.KindOf(tt.err))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "storage", account.KindStorage.String())
	assert.Equal(t, "not_found", account.KindNotFound.String())
	assert.Equal(t, "invalid_credentials", account.KindInvalidCredentials.String())
	assert.Equal(t, "conflict", account.KindConflict.String())
	assert.Equal(t, "validation", account.KindValidation.String())
	assert.Equal(t, "invalid_recovery", account.KindInvalidRecovery.String())
}
