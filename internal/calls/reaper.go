package calls

import (
	"context"
	"errors"
	"time"

	"telecom-calls/pkg/logger"
)

// Reaper periodically reclaims stale live calls.
//
// Staleness is otherwise only evaluated when a new initiate collides with an old call.
// The reaper is an opt-in sweep on top of that; it uses the same Reclaim transition.
type Reaper struct {
	m        *Manager
	interval time.Duration
	batch    int
}

func NewReaper(m *Manager, interval time.Duration) *Reaper {
	return &Reaper{m: m, interval: interval, batch: maxPageLimit}
}

// Run sweeps every interval until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.Sweep(ctx); err != nil {
				logger.From(ctx).Error("call reaper sweep failed", "err", err)
			}
		}
	}
}

// Sweep reclaims one batch of stale calls and returns how many were ended.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.m.clock().UTC().Add(-r.m.staleAfter)
	rows, err := r.m.repo.Query(ctx, Filter{
		Statuses: []Status{StatusInitiated, StatusRinging},
		To:       cutoff,
		Limit:    r.batch,
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, c := range rows {
		_, err := r.m.Reclaim(ctx, c.CallID)
		switch {
		case err == nil:
			n++
		case isRaceLoss(err), errors.Is(err, ErrNotFound):
		default:
			return n, err
		}
	}
	if n > 0 {
		logger.From(ctx).Info("call reaper reclaimed stale calls", "count", n)
	}
	return n, nil
}
