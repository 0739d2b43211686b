package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wanderport/backoffice/token"
	"github.com/wanderport/backoffice/users"
	"github.com/wanderport/backoffice/users/repofake"
)

type tokenConfigStub struct{}

func (tokenConfigStub) GetTokenSecret() string               { return secretStr }
func (tokenConfigStub) GetTokenIDLength() int                { return 16 }
func (tokenConfigStub) GetAccessTokenExpiry() time.Duration  { return time.Hour }
func (tokenConfigStub) GetRefreshTokenExpiry() time.Duration { return 7 * 24 * time.Hour }

func newIssuerFixture(t *testing.T, now time.Time) (*token.Issuer, *token.Codec, *repofake.FakeUserRepo) {
	t.Helper()
	nowFunc := func() time.Time { return now }
	codec, err := token.NewCodec(secretStr, token.WithNowFunc(nowFunc))
	require.NoError(t, err)
	repo := repofake.NewFakeUserRepo()
	issuer, err := token.NewIssuer(codec, repo, tokenConfigStub{}, token.WithIssuerNowFunc(nowFunc))
	require.NoError(t, err)
	return issuer, codec, repo
}

func seedUser(t *testing.T, repo *repofake.FakeUserRepo, id string) {
	t.Helper()
	err := repo.Create(context.Background(), &users.User{
		ID:            id,
		Email:         id + "@example.com",
		Role:          users.RoleCustomer,
		RefreshTokens: []users.RefreshTokenRecord{},
	})
	require.NoError(t, err)
}

func TestNewTokenIDLengthAndUniqueness(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := token.NewTokenID(16)
		require.NoError(t, err)
		require.Len(t, id, 32) // 16 bytes hex-encoded
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestIssuePersistsRecordBeforeReturning(t *testing.T) {
	issuer, codec, repo := newIssuerFixture(t, baseTime)
	seedUser(t, repo, testUserID)

	pair, err := issuer.Issue(context.Background(), testUserID, users.RoleCustomer)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	decoded, err := codec.DecodeRefresh(pair.RefreshToken)
	require.NoError(t, err)

	user, err := repo.GetByID(context.Background(), testUserID)
	require.NoError(t, err)
	require.Len(t, user.RefreshTokens, 1)

	record := user.RefreshTokens[0]
	require.Equal(t, decoded.TokenID, record.TokenID)
	require.Equal(t, pair.RefreshToken, record.Token)
	require.False(t, record.IsUsed)
	require.Equal(t, baseTime, record.CreatedAt)
	require.Equal(t, baseTime.Add(7*24*time.Hour), record.ExpiresAt)
}

func TestIssueFailsClosedWhenAppendFails(t *testing.T) {
	issuer, _, _ := newIssuerFixture(t, baseTime)

	// No user seeded, so the append has nowhere to land.
	pair, err := issuer.Issue(context.Background(), "no-such-user", users.RoleCustomer)
	require.Error(t, err)
	require.Nil(t, pair)
}

func TestIssueEachPairGetsFreshTokenID(t *testing.T) {
	issuer, codec, repo := newIssuerFixture(t, baseTime)
	seedUser(t, repo, testUserID)

	first, err := issuer.Issue(context.Background(), testUserID, users.RoleCustomer)
	require.NoError(t, err)
	second, err := issuer.Issue(context.Background(), testUserID, users.RoleCustomer)
	require.NoError(t, err)

	firstDecoded, err := codec.DecodeRefresh(first.RefreshToken)
	require.NoError(t, err)
	secondDecoded, err := codec.DecodeRefresh(second.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, firstDecoded.TokenID, secondDecoded.TokenID)

	user, err := repo.GetByID(context.Background(), testUserID)
	require.NoError(t, err)
	require.Len(t, user.RefreshTokens, 2)
}
