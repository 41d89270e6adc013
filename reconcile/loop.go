package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Loop fires reconciliation passes on a cron schedule. A pass runs to
// completion before the next tick is armed, so passes never overlap.
type Loop struct {
	pass     *Pass
	schedule cron.Schedule
}

// NewLoop creates a Loop running pass on the given cron expression.
func NewLoop(pass *Pass, expr string) (*Loop, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	return &Loop{pass: pass, schedule: sched}, nil
}

// Run blocks, running passes per schedule until ctx is cancelled. Pass
// failures are reported and logged, never fatal: the schedule keeps firing.
func (l *Loop) Run(ctx context.Context) error {
	for {
		next := l.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		rep := l.pass.RunOnce(ctx)
		if rep.Err != nil {
			slog.Error("reconciliation pass failed", "container", rep.Drifted, "err", rep.Err)
			continue
		}
		slog.Debug("reconciliation pass done",
			"scanned", rep.Scanned, "skipped", rep.Skipped, "replaced", rep.Replaced)
	}
}
