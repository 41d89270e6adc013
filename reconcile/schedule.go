package reconcile

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs a pass every minute.
const DefaultSchedule = "@every 1m"

// ParseSchedule parses a cron expression or descriptor (e.g. "@every 30s",
// "*/5 * * * *"). An empty expression falls back to DefaultSchedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultSchedule
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return sched, nil
}
