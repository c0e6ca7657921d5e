// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accountd/accountd/internal/account"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain path", "/tmp/a.db", "/tmp/a.db?" + dsnOptions},
		{"sqlite url", "sqlite:///tmp/a.db", "/tmp/a.db?" + dsnOptions},
		{"file uri with query", "file:a.db?mode=rwc", "file:a.db?mode=rwc&" + dsnOptions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildDSN_EmptyPath(t *testing.T) {
	_, err := buildDSN("  ")
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrValidation)
}

func TestIsSQLiteURL(t *testing.T) {
	assert.True(t, IsSQLiteURL("sqlite:///var/lib/accountd.db"))
	assert.True(t, IsSQLiteURL("file:accountd.db"))
	assert.False(t, IsSQLiteURL("postgres://localhost/accountd"))
	assert.False(t, IsSQLiteURL(""))
}

func TestMillisRoundTrip(t *testing.T) {
	ts := time.Date(2026, 5, 4, 10, 0, 0, 123_000_000, time.FixedZone("x", 3600))
	got := fromMillis(toMillis(ts))
	assert.True(t, ts.Equal(got))
	assert.Equal(t, time.UTC, got.Location())

	assert.Nil(t, timePtr(nullMillis(nil)))
	assert.Nil(t, stringPtr(nullString(nil)))

	s := "v"
	assert.Equal(t, "v", *stringPtr(nullString(&s)))
}

func TestParentDir(t *testing.T) {
	assert.Equal(t, "/var/lib/accountd", parentDir("sqlite:///var/lib/accountd/accounts.db"))
	assert.Empty(t, parentDir("accounts.db"))
	assert.Empty(t, parentDir("file:accounts.db?mode=memory"))
	assert.Empty(t, parentDir(":memory:"))
}
