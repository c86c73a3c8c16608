package content

import (
	"context"
	"time"
)

// RunDailyRotation rotates the daily draft once per day at the given
// local time, starting with the next occurrence. It blocks until the
// context ends. A failed rotation is logged and retried at the next
// scheduled time; the previous selection stays in place meanwhile.
func (ds *Drafts) RunDailyRotation(ctx context.Context, hour, minute int) error {
	for {
		wait := untilNext(time.Now(), hour, minute)
		ds.log.Info("daily rotation scheduled", "in", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if _, err := ds.RotateDaily(ctx); err != nil {
			ds.log.Error("daily rotation failed", "error", err)
		}
	}
}

// untilNext returns the duration from now to the next occurrence of the
// given local wall-clock time.
func untilNext(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
