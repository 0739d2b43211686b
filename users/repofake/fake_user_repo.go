package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	errs "github.com/wanderport/backoffice/internal/errors"
	"github.com/wanderport/backoffice/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an in-memory UserRepo for tests. ConsumeRefreshToken holds
// the write lock across check and flip, mirroring the store's single
// conditional update.
type FakeUserRepo struct {
	users    map[string]*users.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:    make(map[string]*users.User),
		emailIds: make(map[string]string),
	}
}

func (ur *FakeUserRepo) Create(_ context.Context, user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if _, ok := ur.emailIds[user.Email]; ok {
		return errs.ErrEmailTaken
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	ur.users[user.ID] = copyUser(user)
	ur.emailIds[user.Email] = user.ID
	return nil
}

func (ur *FakeUserRepo) GetByEmail(_ context.Context, email string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	userID, ok := ur.emailIds[users.NormalizeEmail(email)]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return copyUser(ur.users[userID]), nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	user, ok := ur.users[id]
	if !ok {
		return nil, errs.ErrUserNotFound
	}
	return copyUser(user), nil
}

func (ur *FakeUserRepo) Delete(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	delete(ur.emailIds, user.Email)
	delete(ur.users, id)
	return nil
}

func (ur *FakeUserRepo) TouchActivity(_ context.Context, id string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[id]
	if !ok {
		return errs.ErrUserNotFound
	}
	user.UpdatedAt = time.Now()
	return nil
}

func (ur *FakeUserRepo) AppendRefreshToken(_ context.Context, userID string, record users.RefreshTokenRecord) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return errs.ErrUserNotFound
	}
	user.RefreshTokens = append(user.RefreshTokens, record)
	return nil
}

func (ur *FakeUserRepo) ConsumeRefreshToken(_ context.Context, userID, tokenID string, now time.Time) (bool, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return false, nil
	}
	record := user.FindRefreshToken(tokenID)
	if record == nil || record.IsUsed || record.Expired(now) {
		return false, nil
	}
	record.IsUsed = true
	return true, nil
}

func (ur *FakeUserRepo) RevokeRefreshTokens(_ context.Context, userID string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return nil
	}
	for i := range user.RefreshTokens {
		user.RefreshTokens[i].IsUsed = true
	}
	return nil
}

func (ur *FakeUserRepo) ClearRefreshTokens(_ context.Context, userID string) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	user, ok := ur.users[userID]
	if !ok {
		return nil
	}
	user.RefreshTokens = nil
	return nil
}

func (ur *FakeUserRepo) ReapUsedTokens(_ context.Context, olderThan time.Time) (int64, error) {
	return ur.pull(func(r users.RefreshTokenRecord) bool {
		return r.IsUsed && r.CreatedAt.Before(olderThan)
	}), nil
}

func (ur *FakeUserRepo) ReapExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	return ur.pull(func(r users.RefreshTokenRecord) bool {
		return r.Expired(now)
	}), nil
}

func (ur *FakeUserRepo) EnforceTokenCap(_ context.Context, maxPerUser int) (int64, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	var removed int64
	for _, user := range ur.users {
		if excess := len(user.RefreshTokens) - maxPerUser; excess > 0 {
			user.RefreshTokens = append([]users.RefreshTokenRecord(nil), user.RefreshTokens[excess:]...)
			removed += int64(excess)
		}
	}
	return removed, nil
}

func (ur *FakeUserRepo) PurgeInactive(_ context.Context, inactiveSince time.Time) (int64, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	var removed int64
	for _, user := range ur.users {
		if user.UpdatedAt.Before(inactiveSince) && len(user.RefreshTokens) > 0 {
			removed += int64(len(user.RefreshTokens))
			user.RefreshTokens = nil
		}
	}
	return removed, nil
}

func (ur *FakeUserRepo) TokenStats(_ context.Context, now time.Time, maxPerUser int) (*users.TokenStats, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stats := &users.TokenStats{}
	for _, user := range ur.users {
		if len(user.RefreshTokens) > 0 {
			stats.UsersWithTokens++
		}
		if len(user.RefreshTokens) > maxPerUser {
			stats.UsersOverCap++
		}
		for _, record := range user.RefreshTokens {
			if record.IsUsed {
				stats.UsedTokens++
			}
			if record.Expired(now) {
				stats.ExpiredTokens++
			}
		}
	}
	return stats, nil
}

func (ur *FakeUserRepo) pull(remove func(users.RefreshTokenRecord) bool) int64 {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	var removed int64
	for _, user := range ur.users {
		kept := user.RefreshTokens[:0]
		for _, record := range user.RefreshTokens {
			if remove(record) {
				removed++
				continue
			}
			kept = append(kept, record)
		}
		user.RefreshTokens = kept
	}
	return removed
}

func copyUser(user *users.User) *users.User {
	clone := *user
	clone.RefreshTokens = append([]users.RefreshTokenRecord(nil), user.RefreshTokens...)
	return &clone
}
