package users

import (
	"context"
	"time"
)

// TokenStats is a read-only snapshot of the persisted token state,
// served by the cleanup diagnostics endpoint.
type TokenStats struct {
	UsersWithTokens int64 `json:"usersWithTokens"`
	UsedTokens      int64 `json:"usedTokens"`
	ExpiredTokens   int64 `json:"expiredTokens"`
	UsersOverCap    int64 `json:"usersOverCap"`
}

// UserRepo persists users and the refresh-token records embedded in them.
//
// ConsumeRefreshToken is the rotation primitive: it must flip isUsed on the
// matching unused, unexpired record as one conditional store operation and
// report whether anything was modified. Two concurrent consumes of the same
// tokenId must never both return true.
type UserRepo interface {
	Create(ctx context.Context, user *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	Delete(ctx context.Context, id string) error
	TouchActivity(ctx context.Context, id string) error

	AppendRefreshToken(ctx context.Context, userID string, record RefreshTokenRecord) error
	ConsumeRefreshToken(ctx context.Context, userID, tokenID string, now time.Time) (bool, error)
	RevokeRefreshTokens(ctx context.Context, userID string) error
	ClearRefreshTokens(ctx context.Context, userID string) error

	// Cleanup sweep bulk operations; each returns the number of records removed.
	ReapUsedTokens(ctx context.Context, olderThan time.Time) (int64, error)
	ReapExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	EnforceTokenCap(ctx context.Context, maxPerUser int) (int64, error)
	PurgeInactive(ctx context.Context, inactiveSince time.Time) (int64, error)

	TokenStats(ctx context.Context, now time.Time, maxPerUser int) (*TokenStats, error)
}
