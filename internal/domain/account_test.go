package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@example.com", "user@example.com"},
		{"  User@Example.COM ", "user@example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeIdentity(tt.in))
		})
	}
}

func TestTier_Rank(t *testing.T) {
	assert.Less(t, TierFree.Rank(), TierPaid.Rank())
	assert.Less(t, TierPaid.Rank(), TierPremium.Rank())
	assert.Equal(t, -1, Tier("enterprise").Rank())
	assert.False(t, Tier("").Valid())
	assert.True(t, TierPremium.Valid())
}

func TestTier_DisplayName(t *testing.T) {
	assert.Equal(t, "Premium", TierPremium.DisplayName())
	assert.Equal(t, "Paid", TierPaid.DisplayName())
	assert.Equal(t, "Free", TierFree.DisplayName())
	assert.Equal(t, "Free", Tier("").DisplayName())
}

func TestAccount_Helpers(t *testing.T) {
	a := &Account{Email: "a@x.com", Role: RoleAdmin}
	assert.True(t, a.IsAdmin())
	assert.False(t, a.HasPassword())
	assert.Equal(t, "a@x.com", a.DisplayName())

	a.Name = "Ana"
	a.PasswordHash = "$2a$12$hash"
	assert.Equal(t, "Ana", a.DisplayName())
	assert.True(t, a.HasPassword())
}
