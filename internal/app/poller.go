package app

import (
	"context"
	"time"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/logging"
	"github.com/five82/roster/internal/state"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoff          = 30 * time.Second
)

// StartPoller launches a background goroutine that refreshes the dashboard
// and revalidates subscribed queries. Failed polls back off exponentially.
// Polls are skipped while active reports false. It returns immediately.
func StartPoller(ctx context.Context, store *state.Store, interval time.Duration, active func() bool, log logging.Logger) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	log = logging.OrDiscard(log)
	go func() {
		failures := 0
		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			if active != nil && !active() {
				failures = 0
				timer.Reset(interval)
				continue
			}

			if err := refresh(ctx, store); err != nil {
				failures++
				log.Warnf("dashboard poll failed (%d in a row): %v", failures, err)
			} else {
				failures = 0
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
}

func refresh(ctx context.Context, store *state.Store) error {
	if err := store.RefreshDashboard(ctx); err != nil {
		if api.KindOf(err) == api.KindNoToken {
			return nil
		}
		return err
	}
	store.Cache().RevalidateActive(ctx)
	return nil
}

// calculateBackoff doubles base for every consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
