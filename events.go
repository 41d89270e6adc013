package drift

import (
	"context"
	"log/slog"
	"time"
)

// EventKind classifies a reconciler event. The error kinds mirror the
// failure taxonomy: soft registry misses are recovered locally, engine query
// errors feed the fail-safe drift path, step errors are rolled back, rollback
// failures are critical and left for an operator, cleanup failures only leave
// removal debt behind.
type EventKind string

const (
	EventPassStarted      EventKind = "pass.started"
	EventPassCompleted    EventKind = "pass.completed"
	EventDriftDetected    EventKind = "drift.detected"
	EventReplaced         EventKind = "container.replaced"
	EventRolledBack       EventKind = "container.rolled_back"
	EventSoftRegistryMiss EventKind = "registry.miss"
	EventEngineQueryError EventKind = "engine.query_error"
	EventReplacementError EventKind = "replacement.step_error"
	EventRollbackFailure  EventKind = "rollback.failure"
	EventCleanupFailure   EventKind = "cleanup.failure"
)

// Event is a single structured occurrence in the reconciler. All failures
// surface as events; the process keeps running regardless.
type Event struct {
	Time      time.Time
	Kind      EventKind
	Container string
	Image     string
	Detail    string
	Err       error
}

// Reporter receives reconciler events. Implementations must not block the
// pass for long; a slow sink stalls the tick.
type Reporter interface {
	Report(ctx context.Context, ev Event)
}

// LogReporter writes events to slog at a level matching their severity.
type LogReporter struct{}

func (LogReporter) Report(_ context.Context, ev Event) {
	log := slog.With("event", string(ev.Kind))
	if ev.Container != "" {
		log = log.With("container", ev.Container)
	}
	if ev.Image != "" {
		log = log.With("image", ev.Image)
	}
	if ev.Err != nil {
		log = log.With("err", ev.Err)
	}

	switch ev.Kind {
	case EventRollbackFailure:
		log.Error("rollback failed, container left under temporary name", "detail", ev.Detail)
	case EventReplacementError, EventEngineQueryError:
		log.Error(ev.Detail)
	case EventCleanupFailure, EventSoftRegistryMiss:
		log.Warn(ev.Detail)
	case EventPassStarted, EventPassCompleted:
		log.Debug(ev.Detail)
	default:
		log.Info(ev.Detail)
	}
}

// MultiReporter fans an event out to several sinks.
type MultiReporter []Reporter

func (m MultiReporter) Report(ctx context.Context, ev Event) {
	for _, r := range m {
		r.Report(ctx, ev)
	}
}

// NewEvent stamps an event with the current time.
func NewEvent(kind EventKind, container, image, detail string, err error) Event {
	return Event{
		Time:      time.Now().UTC(),
		Kind:      kind,
		Container: container,
		Image:     image,
		Detail:    detail,
		Err:       err,
	}
}
