package auth

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/wanderport/backoffice/internal/config"
	"github.com/wanderport/backoffice/users"
)

// CleanupReport aggregates the counters of one maintenance sweep.
type CleanupReport struct {
	UsedRemoved     int64 `json:"usedRemoved"`
	ExpiredRemoved  int64 `json:"expiredRemoved"`
	CapRemoved      int64 `json:"capRemoved"`
	InactiveRemoved int64 `json:"inactiveRemoved"`
	ElapsedMillis   int64 `json:"elapsedMs"`
	Success         bool  `json:"success"`
}

// TotalRemoved returns the number of records removed across all steps.
func (r CleanupReport) TotalRemoved() int64 {
	return r.UsedRemoved + r.ExpiredRemoved + r.CapRemoved + r.InactiveRemoved
}

// Cleaner is the externally-triggered maintenance sweep over the token
// store. Each step is an independently idempotent bulk update, so the sweep
// is safe to run concurrently with live traffic and with itself.
type Cleaner struct {
	users      users.UserRepo
	grace      time.Duration
	maxPerUser int
	inactivity time.Duration
	nowTime    func() time.Time
}

type CleanerOption func(*Cleaner)

// WithCleanerNowTime sets the now time function (primarily for testing)
func WithCleanerNowTime(nowFunc func() time.Time) CleanerOption {
	return func(c *Cleaner) {
		c.nowTime = nowFunc
	}
}

func NewCleaner(userRepo users.UserRepo, cfg config.CleanupConfig, options ...CleanerOption) (*Cleaner, error) {
	if userRepo == nil {
		return nil, errors.New("[NewCleaner] user repo is required")
	}

	cleaner := &Cleaner{
		users:      userRepo,
		grace:      cfg.GetUsedTokenGrace(),
		maxPerUser: cfg.GetMaxTokensPerUser(),
		inactivity: cfg.GetInactivityThreshold(),
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(cleaner)
	}
	return cleaner, nil
}

// Run executes the four sweep steps in order. A failing step is logged and
// flips Success to false but never stops the remaining steps; whatever it
// missed is picked up by the next scheduled run.
func (c *Cleaner) Run(ctx context.Context) *CleanupReport {
	started := c.nowTime()
	now := started
	report := &CleanupReport{Success: true}

	var err error
	if report.UsedRemoved, err = c.users.ReapUsedTokens(ctx, now.Add(-c.grace)); err != nil {
		report.Success = false
		log.Err(err).Msg("Cleanup: used-token reap failed")
	}
	if report.ExpiredRemoved, err = c.users.ReapExpiredTokens(ctx, now); err != nil {
		report.Success = false
		log.Err(err).Msg("Cleanup: expired-token reap failed")
	}
	if report.CapRemoved, err = c.users.EnforceTokenCap(ctx, c.maxPerUser); err != nil {
		report.Success = false
		log.Err(err).Msg("Cleanup: cardinality cap failed")
	}
	if report.InactiveRemoved, err = c.users.PurgeInactive(ctx, now.Add(-c.inactivity)); err != nil {
		report.Success = false
		log.Err(err).Msg("Cleanup: inactivity purge failed")
	}

	report.ElapsedMillis = time.Since(started).Milliseconds()
	log.Info().
		Int64("removed", report.TotalRemoved()).
		Int64("elapsedMs", report.ElapsedMillis).
		Bool("success", report.Success).
		Msg("Token cleanup sweep finished")
	return report
}

// Stats returns the read-only diagnostic counts without mutating state.
func (c *Cleaner) Stats(ctx context.Context) (*users.TokenStats, error) {
	stats, err := c.users.TokenStats(ctx, c.nowTime(), c.maxPerUser)
	if err != nil {
		return nil, errors.Wrap(err, "[Cleaner.Stats] TokenStats")
	}
	return stats, nil
}
