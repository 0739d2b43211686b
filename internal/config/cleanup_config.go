package config

import "time"

type CleanupConfig interface {
	GetUsedTokenGrace() time.Duration
	GetMaxTokensPerUser() int
	GetInactivityThreshold() time.Duration
}

type Cleanup struct{}

var _ CleanupConfig = Cleanup{}

func (Cleanup) GetUsedTokenGrace() time.Duration {
	return 1 * time.Hour // Rotated tokens stay inspectable for diagnostics
}

func (Cleanup) GetMaxTokensPerUser() int {
	return 3
}

func (Cleanup) GetInactivityThreshold() time.Duration {
	return 60 * 24 * time.Hour // 60 days
}
