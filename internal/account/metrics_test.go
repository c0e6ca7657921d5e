// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package account_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/account"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	account.RegisterMetrics(reg)

	// Vec collectors only appear once a label set exists.
	account.LoginAttempts.WithLabelValues(account.ResultSuccess)
	account.Recoveries.WithLabelValues(account.StageIssue, account.ResultSuccess)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["accountd_logins_total"])
	assert.True(t, names["accountd_tokens_issued_total"])
	assert.True(t, names["accountd_recoveries_total"])
}

func TestLoginMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.On("GetByEmail", mock.Anything, "ghost@x.com").Return(nil, account.ErrNotFound)
	f.hasher.On("Verify", "password1", mock.Anything).Return(false, nil)

	before := testutil.ToFloat64(account.LoginAttempts.WithLabelValues("invalid_credentials"))
	_, err := f.svc.LoginWithEmail(ctx, "ghost@x.com", "password1")
	require.Error(t, err)
	after := testutil.ToFloat64(account.LoginAttempts.WithLabelValues("invalid_credentials"))

	assert.InDelta(t, 1, after-before, 0.0001)
}

func TestTokenAndRecoveryMetrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.users.On("GetByID", mock.Anything, int64(1)).Return(testUser(1, ""), nil)
	f.tokens.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.users.On("UpdateRecovery", mock.Anything, int64(1), mock.Anything, mock.Anything, f.now).Return(nil)

	tokensBefore := testutil.ToFloat64(account.TokensIssued)
	issuedBefore := testutil.ToFloat64(account.Recoveries.WithLabelValues(account.StageIssue, account.ResultSuccess))
	invalidBefore := testutil.ToFloat64(account.Recoveries.WithLabelValues(account.StageComplete, "validation"))

	_, err := f.svc.IssueToken(ctx, 1, "", "", "")
	require.NoError(t, err)
	_, err = f.svc.GenerateRecoveryHash(ctx, 1)
	require.NoError(t, err)
	require.Error(t, f.svc.ChangePasswordUsingHash(ctx, "bad", "newpassword"))

	assert.InDelta(t, 1, testutil.ToFloat64(account.TokensIssued)-tokensBefore, 0.0001)
	assert.InDelta(t, 1, testutil.ToFloat64(account.Recoveries.WithLabelValues(account.StageIssue, account.ResultSuccess))-issuedBefore, 0.0001)
	assert.InDelta(t, 1, testutil.ToFloat64(account.Recoveries.WithLabelValues(account.StageComplete, "validation"))-invalidBefore, 0.0001)
}
