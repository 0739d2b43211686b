package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wanderport/backoffice/auth"
	errs "github.com/wanderport/backoffice/internal/errors"
	"github.com/wanderport/backoffice/token"
	"github.com/wanderport/backoffice/users"
	"github.com/wanderport/backoffice/users/repofake"
)

const (
	testEmail    = "traveler@example.com"
	testPassword = "Sunny1234"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type tokenConfigStub struct{}

func (tokenConfigStub) GetTokenSecret() string               { return "test-secret-1234" }
func (tokenConfigStub) GetTokenIDLength() int                { return 16 }
func (tokenConfigStub) GetAccessTokenExpiry() time.Duration  { return time.Hour }
func (tokenConfigStub) GetRefreshTokenExpiry() time.Duration { return 7 * 24 * time.Hour }

type serviceFixture struct {
	service *auth.Service
	codec   *token.Codec
	repo    *repofake.FakeUserRepo
	now     time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{now: baseTime}
	nowFunc := func() time.Time { return f.now }

	codec, err := token.NewCodec("test-secret-1234", token.WithNowFunc(nowFunc))
	require.NoError(t, err)
	repo := repofake.NewFakeUserRepo()
	issuer, err := token.NewIssuer(codec, repo, tokenConfigStub{}, token.WithIssuerNowFunc(nowFunc))
	require.NoError(t, err)
	service, err := auth.NewService(repo, codec, issuer, auth.WithNowTime(nowFunc))
	require.NoError(t, err)

	f.service = service
	f.codec = codec
	f.repo = repo
	return f
}

func (f *serviceFixture) register(t *testing.T) (*users.User, *token.TokenPair) {
	t.Helper()
	user, pair, err := f.service.Register(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return user, pair
}

func TestRegisterIssuesFirstPair(t *testing.T) {
	f := newServiceFixture(t)

	user, pair, err := f.service.Register(context.Background(), "  Traveler@Example.COM ", testPassword)
	require.NoError(t, err)
	require.Equal(t, testEmail, user.Email)
	require.Equal(t, users.RoleCustomer, user.Role)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := f.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, stored.RefreshTokens, 1)
	require.False(t, stored.RefreshTokens[0].IsUsed)
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newServiceFixture(t)

	for _, password := range []string{"short1A", "alllower1", "ALLUPPER1", "NoNumbers"} {
		_, _, err := f.service.Register(context.Background(), testEmail, password)
		require.Error(t, err, "password %q", password)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t)

	_, _, err := f.service.Register(context.Background(), testEmail, testPassword)
	require.ErrorIs(t, err, errs.ErrEmailTaken)
}

func TestLoginIssuesPair(t *testing.T) {
	f := newServiceFixture(t)
	registered, _ := f.register(t)

	user, pair, err := f.service.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.NotEmpty(t, pair.RefreshToken)

	stored, err := f.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, stored.RefreshTokens, 2)
}

func TestLoginRejectionsAreIndistinguishable(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t)

	_, _, badPassword := f.service.Login(context.Background(), testEmail, "Wrong1234")
	require.ErrorIs(t, badPassword, errs.ErrInvalidCredentials)

	_, _, unknownEmail := f.service.Login(context.Background(), "nobody@example.com", testPassword)
	require.ErrorIs(t, unknownEmail, errs.ErrInvalidCredentials)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := newServiceFixture(t)
	user, pair := f.register(t)

	first, err := f.codec.DecodeRefresh(pair.RefreshToken)
	require.NoError(t, err)

	next, err := f.service.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	stored, err := f.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, stored.RefreshTokens, 2)

	consumed := stored.FindRefreshToken(first.TokenID)
	require.NotNil(t, consumed)
	require.True(t, consumed.IsUsed)

	second, err := f.codec.DecodeRefresh(next.RefreshToken)
	require.NoError(t, err)
	replacement := stored.FindRefreshToken(second.TokenID)
	require.NotNil(t, replacement)
	require.False(t, replacement.IsUsed)
}

func TestRefreshRejectsUndecodableToken(t *testing.T) {
	f := newServiceFixture(t)
	f.register(t)

	_, err := f.service.Refresh(context.Background(), "not-a-token")
	require.ErrorIs(t, err, errs.ErrInvalidToken)
}

func TestRefreshRejectsDeletedUser(t *testing.T) {
	f := newServiceFixture(t)
	user, pair := f.register(t)

	require.NoError(t, f.repo.Delete(context.Background(), user.ID))

	_, err := f.service.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, errs.ErrUnknownUser)
}

func TestRefreshRejectsUnknownTokenID(t *testing.T) {
	f := newServiceFixture(t)
	user, _ := f.register(t)

	// Valid signature and owner, but a tokenId with no stored record.
	stray, err := f.codec.EncodeRefresh(user.ID, "deadbeefdeadbeefdeadbeefdeadbeef", time.Hour)
	require.NoError(t, err)

	_, err = f.service.Refresh(context.Background(), stray)
	require.ErrorIs(t, err, errs.ErrUnknownToken)
}

func TestRefreshRejectsExpiredRecord(t *testing.T) {
	f := newServiceFixture(t)
	user, _ := f.register(t)

	// The encoded token outlives its stored record, so the record's absolute
	// expiry is the one that rejects.
	raw, err := f.codec.EncodeRefresh(user.ID, "aabbccdd00112233aabbccdd00112233", 10*time.Hour)
	require.NoError(t, err)
	err = f.repo.AppendRefreshToken(context.Background(), user.ID, users.RefreshTokenRecord{
		TokenID:   "aabbccdd00112233aabbccdd00112233",
		Token:     raw,
		CreatedAt: f.now.Add(-2 * time.Hour),
		ExpiresAt: f.now.Add(-time.Hour),
	})
	require.NoError(t, err)

	_, err = f.service.Refresh(context.Background(), raw)
	require.ErrorIs(t, err, errs.ErrTokenExpired)
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	f := newServiceFixture(t)
	user, pair := f.register(t)

	_, err := f.service.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	_, err = f.service.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, errs.ErrTokenReused)

	stored, err := f.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.NotEmpty(t, stored.RefreshTokens)
	for _, record := range stored.RefreshTokens {
		require.True(t, record.IsUsed)
	}

	// The replacement minted by the successful rotation is burned too.
	_, err = f.service.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, errs.ErrTokenReused)
}

func TestRefreshConcurrentSingleUse(t *testing.T) {
	f := newServiceFixture(t)
	_, pair := f.register(t)

	const presenters = 8
	results := make(chan error, presenters)
	var wg sync.WaitGroup
	for i := 0; i < presenters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, reused int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errs.Is(err, errs.ErrTokenReused):
			reused++
		default:
			t.Fatalf("unexpected refresh error: %v", err)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, presenters-1, reused)
}

func TestLogoutClearsTokenStore(t *testing.T) {
	f := newServiceFixture(t)
	user, pair := f.register(t)

	require.NoError(t, f.service.Logout(context.Background(), user.ID))

	stored, err := f.repo.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Empty(t, stored.RefreshTokens)

	_, err = f.service.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, errs.ErrUnknownToken)

	// Logout is unconditional, a second call still succeeds.
	require.NoError(t, f.service.Logout(context.Background(), user.ID))
}
