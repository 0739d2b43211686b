package users_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wanderport/backoffice/users"
)

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "traveler@example.com", users.NormalizeEmail("  Traveler@Example.COM "))
	require.Equal(t, "traveler@example.com", users.NormalizeEmail("traveler@example.com"))
}

func TestValidRole(t *testing.T) {
	for _, role := range []users.RoleType{users.RoleCustomer, users.RoleAdmin, users.RoleModerator, users.RoleEmployee} {
		require.True(t, users.ValidRole(role))
	}
	require.False(t, users.ValidRole("superuser"))
	require.False(t, users.ValidRole(""))
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Sunny1234"))

	cases := map[string]string{
		"too short":    "Ab1",
		"no uppercase": "alllower1",
		"no lowercase": "ALLUPPER1",
		"no number":    "NoNumbersHere",
	}
	for name, password := range cases {
		require.Error(t, users.ValidatePasswordStrength(password), name)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := users.HashPassword("Sunny1234")
	require.NoError(t, err)
	require.NotEqual(t, "Sunny1234", hash)
	require.True(t, users.CheckPasswordHash("Sunny1234", hash))
	require.False(t, users.CheckPasswordHash("Wrong1234", hash))
}

func TestRefreshTokenRecordExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	record := users.RefreshTokenRecord{ExpiresAt: now.Add(time.Hour)}

	require.False(t, record.Expired(now))
	require.True(t, record.Expired(now.Add(time.Hour))) // expiry instant is inclusive
	require.True(t, record.Expired(now.Add(2*time.Hour)))
}

func TestFindRefreshToken(t *testing.T) {
	user := &users.User{
		RefreshTokens: []users.RefreshTokenRecord{
			{TokenID: "aaa"},
			{TokenID: "bbb"},
		},
	}

	found := user.FindRefreshToken("bbb")
	require.NotNil(t, found)
	require.Equal(t, "bbb", found.TokenID)

	// The record is returned by reference so callers observe stored state.
	found.IsUsed = true
	require.True(t, user.RefreshTokens[1].IsUsed)

	require.Nil(t, user.FindRefreshToken("zzz"))
}
