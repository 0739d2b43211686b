package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/pkg/errors"

	"github.com/wanderport/backoffice/internal/config"
	"github.com/wanderport/backoffice/users"
)

// TokenPair is one freshly issued access/refresh credential pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Issuer mints access/refresh pairs and durably appends the refresh record
// to the owner's token store before handing tokens to the caller.
type Issuer struct {
	codec         *Codec
	repo          users.UserRepo
	tokenIDLength int
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowFunc       func() time.Time
}

type IssuerOption func(*Issuer)

// WithIssuerNowFunc sets the now time function (primarily for testing)
func WithIssuerNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func NewIssuer(codec *Codec, repo users.UserRepo, cfg config.TokenConfig, options ...IssuerOption) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("[NewIssuer] codec is required")
	}
	if repo == nil {
		return nil, errors.New("[NewIssuer] user repo is required")
	}

	i := &Issuer{
		codec:         codec,
		repo:          repo,
		tokenIDLength: cfg.GetTokenIDLength(),
		accessExpiry:  cfg.GetAccessTokenExpiry(),
		refreshExpiry: cfg.GetRefreshTokenExpiry(),
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i, nil
}

// NewTokenID returns a crypto-random hex identifier; length is in bytes of
// entropy, so 16 gives 128 bits.
func NewTokenID(length int) (string, error) {
	idBytes := make([]byte, length)
	if _, err := rand.Read(idBytes); err != nil {
		return "", errors.Wrap(err, "NewTokenID rand.Read")
	}
	return hex.EncodeToString(idBytes), nil
}

// Issue mints an access/refresh pair for the user and appends the refresh
// record to the user's token store. If the append fails the tokens are never
// returned, so an issued pair always has a persisted record behind it.
func (i *Issuer) Issue(ctx context.Context, userID string, role users.RoleType) (*TokenPair, error) {
	tokenID, err := NewTokenID(i.tokenIDLength)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] NewTokenID")
	}

	accessToken, err := i.codec.EncodeAccess(userID, role, i.accessExpiry)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] EncodeAccess")
	}

	refreshToken, err := i.codec.EncodeRefresh(userID, tokenID, i.refreshExpiry)
	if err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] EncodeRefresh")
	}

	now := i.nowFunc()
	record := users.RefreshTokenRecord{
		TokenID:   tokenID,
		Token:     refreshToken,
		IsUsed:    false,
		CreatedAt: now,
		ExpiresAt: now.Add(i.refreshExpiry),
	}
	if err := i.repo.AppendRefreshToken(ctx, userID, record); err != nil {
		return nil, errors.Wrap(err, "[Issuer.Issue] AppendRefreshToken")
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshExpiry exposes the refresh TTL for cookie max-age at the HTTP boundary.
func (i *Issuer) RefreshExpiry() time.Duration {
	return i.refreshExpiry
}
