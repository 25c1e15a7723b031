// Package workers runs periodic maintenance jobs.
package workers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"taskhub/internal/engine/membership"
	"taskhub/internal/engine/workspace"
)

// Job performs one sweep and reports how many items it changed.
type Job func(ctx context.Context, now time.Time) (int, error)

// Every runs job immediately and then on each tick of interval until ctx is
// cancelled. Job errors are logged and the schedule continues.
func Every(ctx context.Context, name string, interval time.Duration, job Job) {
	if interval <= 0 {
		log.Warn().Str("job", name).Msg("worker disabled, interval must be positive")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	runOnce(ctx, name, job, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			runOnce(ctx, name, job, now)
		}
	}
}

func runOnce(ctx context.Context, name string, job Job, now time.Time) {
	start := time.Now()
	n, err := job(ctx, now)
	if err != nil {
		log.Error().Err(err).Str("job", name).Int("changed", n).Msg("worker run failed")
		return
	}
	if n > 0 {
		log.Info().Str("job", name).Int("changed", n).Dur("took", time.Since(start)).Msg("worker run finished")
	}
}

// ExpireInvitations marks overdue pending invitations as expired.
func ExpireInvitations(svc *membership.Service) Job {
	return svc.ExpireInvitations
}

// SweepWorkspaces drops device workspaces that have been idle too long.
func SweepWorkspaces(cache *workspace.Cache) Job {
	return func(_ context.Context, now time.Time) (int, error) {
		return cache.Sweep(now), nil
	}
}
