// Package jobs holds the periodic maintenance jobs run by the worker.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Job type constants for cleanup jobs
const (
	JobTypeExpireCheckoutSessions = "cleanup:expired_checkout_sessions"
)

// DefaultSessionMaxIdle is how long an untouched checkout session is kept.
const DefaultSessionMaxIdle = 30 * time.Minute

// SessionExpirer drops checkout sessions idle for longer than maxIdle and
// reports how many it removed.
type SessionExpirer interface {
	ExpireIdle(ctx context.Context, maxIdle time.Duration) int
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	SessionsExpired int `json:"sessions_expired"`
}

// ExpireCheckoutSessions removes abandoned checkout sessions from memory.
// Sessions with a placement in flight are never removed.
type ExpireCheckoutSessions struct {
	sessions SessionExpirer
	maxIdle  time.Duration
	logger   *slog.Logger
}

// NewExpireCheckoutSessions creates the session cleanup job.
func NewExpireCheckoutSessions(sessions SessionExpirer, maxIdle time.Duration, logger *slog.Logger) *ExpireCheckoutSessions {
	if maxIdle <= 0 {
		maxIdle = DefaultSessionMaxIdle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpireCheckoutSessions{sessions: sessions, maxIdle: maxIdle, logger: logger}
}

// Type implements worker.Job.
func (j *ExpireCheckoutSessions) Type() string {
	return JobTypeExpireCheckoutSessions
}

// Process implements worker.Job.
func (j *ExpireCheckoutSessions) Process(ctx context.Context) error {
	_, err := j.Run(ctx)
	return err
}

// Run expires idle sessions and returns the count.
func (j *ExpireCheckoutSessions) Run(ctx context.Context) (*CleanupResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &CleanupResult{SessionsExpired: j.sessions.ExpireIdle(ctx, j.maxIdle)}
	if result.SessionsExpired > 0 {
		j.logger.Info("expired idle checkout sessions",
			"count", result.SessionsExpired,
			"max_idle", j.maxIdle,
		)
	}
	return result, nil
}
