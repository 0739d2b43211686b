// Package token implements the signed-token codec and the token issuer.
//
// Two claim shapes share one HMAC secret: short-lived access tokens carrying
// the user's role, and longer-lived refresh tokens carrying the rotation
// tokenId. A kind discriminator in the payload keeps one from ever being
// accepted in place of the other.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	errs "github.com/wanderport/backoffice/internal/errors"
	"github.com/wanderport/backoffice/users"
)

const (
	kindAccess  = "access"
	kindRefresh = "refresh"
)

// AccessToken is the decoded payload of a verified access token.
type AccessToken struct {
	UserID    string
	Role      users.RoleType
	ExpiresAt time.Time
}

// RefreshToken is the decoded payload of a verified refresh token.
type RefreshToken struct {
	UserID    string
	TokenID   string
	ExpiresAt time.Time
}

type accessClaims struct {
	Role string `json:"role"`
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

type refreshClaims struct {
	TokenID string `json:"tokenId"`
	Kind    string `json:"kind"`
	jwt.RegisteredClaims
}

// Codec encodes and decodes signed, time-bounded tokens with a single
// injected secret.
type Codec struct {
	secret  []byte
	nowFunc func() time.Time
}

type CodecOption func(*Codec)

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.nowFunc = now
	}
}

func NewCodec(secret string, options ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("[NewCodec] secret is required")
	}

	c := &Codec{
		secret:  []byte(secret),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// EncodeAccess serializes and signs an access token for the given user and role.
func (c *Codec) EncodeAccess(userID string, role users.RoleType, ttl time.Duration) (string, error) {
	claims := accessClaims{
		Role: string(role),
		Kind: kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(c.nowFunc()),
			ExpiresAt: jwt.NewNumericDate(c.nowFunc().Add(ttl)),
		},
	}
	return c.sign(claims)
}

// EncodeRefresh serializes and signs a refresh token bound to one tokenId.
func (c *Codec) EncodeRefresh(userID, tokenID string, ttl time.Duration) (string, error) {
	claims := refreshClaims{
		TokenID: tokenID,
		Kind:    kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(c.nowFunc()),
			ExpiresAt: jwt.NewNumericDate(c.nowFunc().Add(ttl)),
		},
	}
	return c.sign(claims)
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.sign] failed to sign token")
	}
	return signed, nil
}

// DecodeAccess verifies signature, expiry, and kind of an access token.
func (c *Codec) DecodeAccess(raw string) (*AccessToken, error) {
	claims := &accessClaims{}
	if err := c.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Kind != kindAccess {
		return nil, errs.ErrWrongTokenKind
	}
	return &AccessToken{
		UserID:    claims.Subject,
		Role:      users.RoleType(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// DecodeRefresh verifies signature, expiry, and kind of a refresh token.
func (c *Codec) DecodeRefresh(raw string) (*RefreshToken, error) {
	claims := &refreshClaims{}
	if err := c.parse(raw, claims); err != nil {
		return nil, err
	}
	if claims.Kind != kindRefresh {
		return nil, errs.ErrWrongTokenKind
	}
	return &RefreshToken{
		UserID:    claims.Subject,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (c *Codec) parse(raw string, claims jwt.Claims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.nowFunc),
		jwt.WithExpirationRequired(),
	)

	token, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return codecError(err)
	}
	if !token.Valid {
		return errs.ErrTokenMalformed
	}

	// Expiry is inclusive: a token is rejected from the instant it expires.
	exp, expErr := claims.GetExpirationTime()
	if expErr != nil || exp == nil || !exp.Time.After(c.nowFunc()) {
		return errs.ErrTokenExpired
	}
	return nil
}

// codecError maps parser failures onto the codec error taxonomy. Internal
// detail stays out of client responses; callers log the original cause.
func codecError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return errs.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return errs.ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errs.ErrTokenMalformed
	default:
		return errs.ErrTokenMalformed
	}
}
