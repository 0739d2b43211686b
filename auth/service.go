// Package auth implements session credential issuance and rotation: login,
// registration, single-use refresh-token rotation, logout, and the scheduled
// cleanup sweep over persisted token state.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	errs "github.com/wanderport/backoffice/internal/errors"
	"github.com/wanderport/backoffice/token"
	"github.com/wanderport/backoffice/users"
)

// Service provides credential issuance and the refresh rotation protocol.
type Service struct {
	users   users.UserRepo
	codec   *token.Codec
	issuer  *token.Issuer
	nowTime func() time.Time // nowTime function (injectable for testing)
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowTime = nowFunc
	}
}

// NewService initializes a new Service with required dependencies.
func NewService(userRepo users.UserRepo, codec *token.Codec, issuer *token.Issuer, options ...ServiceOption) (*Service, error) {
	if userRepo == nil {
		return nil, errors.New("[NewService] user repo is required")
	}
	if codec == nil {
		return nil, errors.New("[NewService] codec is required")
	}
	if issuer == nil {
		return nil, errors.New("[NewService] issuer is required")
	}

	service := &Service{
		users:   userRepo,
		codec:   codec,
		issuer:  issuer,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(service)
	}
	return service, nil
}

// Register creates a new customer account and issues its first token pair.
func (s *Service) Register(ctx context.Context, email, password string) (*users.User, *token.TokenPair, error) {
	email = users.NormalizeEmail(email)
	if err := users.ValidatePasswordStrength(password); err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Register] weak password")
	}

	passwordHash, err := users.HashPassword(password)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Register] HashPassword")
	}

	now := s.nowTime()
	user := &users.User{
		ID:            uuid.New().String(),
		Email:         email,
		PasswordHash:  passwordHash,
		Role:          users.RoleCustomer,
		CreatedAt:     now,
		UpdatedAt:     now,
		RefreshTokens: []users.RefreshTokenRecord{}, // stored as an array, never null
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Register] Create")
	}

	pair, err := s.issuer.Issue(ctx, user.ID, user.Role)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Register] Issue")
	}
	return user, pair, nil
}

// Login checks the credentials and issues a fresh token pair.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*users.User, *token.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return nil, nil, errs.ErrInvalidCredentials
		}
		return nil, nil, errors.Wrap(err, "[Service.Login] GetByEmail")
	}

	if !users.CheckPasswordHash(password, user.PasswordHash) {
		return nil, nil, errs.ErrInvalidCredentials
	}

	if err := s.users.TouchActivity(ctx, user.ID); err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Login] TouchActivity")
	}

	pair, err := s.issuer.Issue(ctx, user.ID, user.Role)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[Service.Login] Issue")
	}
	return user, pair, nil
}

// Refresh runs the rotation protocol: validate the presented refresh token,
// atomically consume its record, and mint a replacement pair. Every refresh
// token is single-use; of concurrent presentations of the same token exactly
// one succeeds and the rest observe ErrTokenReused.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*token.TokenPair, error) {
	decoded, err := s.codec.DecodeRefresh(rawRefreshToken)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrInvalidToken, "[Service.Refresh] decode: %v", err)
	}

	user, err := s.users.GetByID(ctx, decoded.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrUserNotFound) {
			return nil, errs.ErrUnknownUser
		}
		return nil, errors.Wrap(err, "[Service.Refresh] GetByID")
	}

	now := s.nowTime()
	record := user.FindRefreshToken(decoded.TokenID)
	switch {
	case record == nil:
		return nil, errs.ErrUnknownToken
	case record.Expired(now):
		return nil, errs.ErrTokenExpired
	case record.IsUsed:
		return nil, s.revokeFamily(ctx, user.ID)
	}

	// Single conditional store operation; a concurrent presentation of the
	// same tokenId cannot also succeed.
	consumed, err := s.users.ConsumeRefreshToken(ctx, user.ID, decoded.TokenID, now)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] ConsumeRefreshToken")
	}
	if !consumed {
		return nil, s.revokeFamily(ctx, user.ID)
	}

	if err := s.users.TouchActivity(ctx, user.ID); err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] TouchActivity")
	}

	pair, err := s.issuer.Issue(ctx, user.ID, user.Role)
	if err != nil {
		return nil, errors.Wrap(err, "[Service.Refresh] Issue")
	}
	return pair, nil
}

// revokeFamily handles a detected reuse: a second presentation of a consumed
// tokenId is treated as evidence of token leakage, so every active record for
// that user is marked used before the caller is rejected. The inert records
// are left for the cleanup sweep to reap.
func (s *Service) revokeFamily(ctx context.Context, userID string) error {
	log.Warn().Str("userId", userID).Msg("Refresh token reuse detected, revoking token family")
	if err := s.users.RevokeRefreshTokens(ctx, userID); err != nil {
		log.Err(err).Str("userId", userID).Msg("Failed to revoke token family")
	}
	return errs.ErrTokenReused
}

// Logout clears the user's entire token store. Unconditional: succeeds
// whether or not any tokens existed.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshTokens(ctx, userID); err != nil {
		return errors.Wrap(err, "[Service.Logout] ClearRefreshTokens")
	}
	return nil
}
