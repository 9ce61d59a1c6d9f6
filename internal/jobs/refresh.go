package jobs

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"peerlink/internal/config"
	"peerlink/internal/logging"
	"peerlink/internal/metrics"
	"peerlink/internal/model"
	"peerlink/internal/schedule"
)

// Refresher recomputes and stores one user's recommendations; *cache.Manager satisfies it.
type Refresher interface {
	Refresh(ctx context.Context, user string, limit int) ([]model.Record, error)
}

// UserLister enumerates the users whose recommendations are kept warm.
type UserLister interface {
	AllEligibleUsers(ctx context.Context) ([]model.User, error)
}

// Summary reports the outcome of one pass.
type Summary struct {
	Refreshed int
	Failed    int
}

// NewLimiter paces per-user refreshes. A non-positive rate disables pacing.
func NewLimiter(c config.RefreshConfig) *rate.Limiter {
	if c.PerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := c.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.PerSecond), burst)
}

// RefreshOnce recomputes the cached set of every eligible user. A user whose
// refresh fails is logged and counted; the pass continues with the next one.
func RefreshOnce(ctx context.Context, r Refresher, users UserLister, limiter *rate.Limiter, limit int) (Summary, error) {
	start := time.Now()
	metrics.RefreshRuns.Inc()
	var sum Summary
	list, err := users.AllEligibleUsers(ctx)
	if err != nil {
		metrics.RefreshErrors.Inc()
		return sum, err
	}
	for _, u := range list {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return sum, err
			}
		}
		if _, err := r.Refresh(ctx, u.ID, limit); err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failed++
			metrics.RefreshErrors.Inc()
			logging.Warn("refresh_user_error", map[string]any{"user": u.ID, "error": err})
			continue
		}
		sum.Refreshed++
	}
	logging.Info("refresh_once", map[string]any{"users": len(list), "refreshed": sum.Refreshed, "failed": sum.Failed, "took": time.Since(start).String()})
	return sum, nil
}

// RefreshLoop runs RefreshOnce immediately and then on every tick until ctx is
// cancelled. Passes that would start during a quiet hour are skipped.
func RefreshLoop(ctx context.Context, r Refresher, users UserLister, limiter *rate.Limiter, limit int, interval time.Duration, quietHours []int) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	run := func(now time.Time) {
		if schedule.IsQuiet(now, quietHours) {
			logging.Info("refresh_skipped_quiet", map[string]any{"next": schedule.NextWindow(now, quietHours)})
			return
		}
		if _, err := RefreshOnce(ctx, r, users, limiter, limit); err != nil && ctx.Err() == nil {
			logging.Error("refresh_once_error", map[string]any{"error": err})
		}
	}
	run(time.Now())
	for {
		select {
		case <-ctx.Done():
			logging.Info("refresh_loop_stop", nil)
			return ctx.Err()
		case now := <-t.C:
			run(now)
		}
	}
}
