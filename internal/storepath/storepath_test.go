package storepath

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		raw   string
		kind  Kind
		owner string
	}{
		{"users/u1", KindUser, "u1"},
		{"users/u1/portfolio", KindPortfolio, "u1"},
		{"users/u1/portfolio/xsgd", KindStrategy, "u1"},
		{"vaults", KindVaults, ""},
		{"allVaults/v9", KindVault, ""},
		{"allVaults/v9/depositsAndWithdrawals", KindVaultActivity, ""},
		{"markets", KindMarkets, ""},
		{"userPositions/u2", KindPositions, "u2"},
		{"leaderboard", KindLeaderboard, ""},
		{"announcements", KindAnnouncements, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			p, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.owner, p.Owner())
			assert.Equal(t, tt.raw, p.String())
		})
	}
}

func TestParseTrimsSlashes(t *testing.T) {
	p, err := Parse("/users/u1/")
	require.NoError(t, err)
	assert.Equal(t, "users/u1", p.String())
}

func TestParseRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"users",
		"users//portfolio",
		"users/u1/wallet",
		"transactions/u1",
		"allVaults/v1/other",
		"users/u 1",
		"vaults/extra",
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			assert.True(t, errors.Is(err, ErrInvalidPath), "got %v", err)
		})
	}
}

func TestRelated(t *testing.T) {
	assert.True(t, Related("users/u1/portfolio", "users/u1/portfolio"))
	assert.True(t, Related("users/u1/portfolio", "users/u1/portfolio/xsgd"))
	assert.True(t, Related("users/u1/portfolio/xsgd", "users/u1"))
	assert.False(t, Related("users/u1", "users/u10"))
	assert.False(t, Related("allVaults/v1", "vaults"))
}
