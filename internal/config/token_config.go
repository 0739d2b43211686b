package config

import "time"

type TokenConfig interface {
	GetTokenSecret() string
	GetTokenIDLength() int
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetTokenSecret() string {
	return GetEnv(tokenSecret, "dev-only-secret")
}

func (Token) GetTokenIDLength() int {
	return 16 // 16 bytes = 128 bits
}

func (Token) GetAccessTokenExpiry() time.Duration {
	return 1 * time.Hour
}

func (Token) GetRefreshTokenExpiry() time.Duration {
	return 7 * 24 * time.Hour // 7 days
}
