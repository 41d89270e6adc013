package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"drift"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "data", "events.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RoundTrip(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	j.Report(ctx, drift.Event{
		Time:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Kind:      drift.EventReplaced,
		Container: "web",
		Image:     "app:latest",
		Detail:    "sha:AAA -> sha:BBB",
	})
	j.Report(ctx, drift.Event{
		Time:      time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
		Kind:      drift.EventRollbackFailure,
		Container: "web",
		Err:       errors.New("engine gone"),
	})

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d events, want 2", len(got))
	}
	// Newest first.
	if got[0].Kind != drift.EventRollbackFailure {
		t.Errorf("got[0].Kind = %s, want %s", got[0].Kind, drift.EventRollbackFailure)
	}
	if got[0].Err == nil || got[0].Err.Error() != "engine gone" {
		t.Errorf("got[0].Err = %v", got[0].Err)
	}
	if got[1].Kind != drift.EventReplaced || got[1].Detail != "sha:AAA -> sha:BBB" {
		t.Errorf("got[1] = %+v", got[1])
	}
	if !got[1].Time.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("got[1].Time = %s", got[1].Time)
	}
}

func TestJournal_SkipsPassEvents(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	j.Report(ctx, drift.NewEvent(drift.EventPassStarted, "", "", "", nil))
	j.Report(ctx, drift.NewEvent(drift.EventPassCompleted, "", "", "", nil))
	j.Report(ctx, drift.NewEvent(drift.EventDriftDetected, "web", "app:latest", "", nil))

	got, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Kind != drift.EventDriftDetected {
		t.Fatalf("Recent() = %+v, want only the drift event", got)
	}
}

func TestJournal_RecentLimit(t *testing.T) {
	j := openJournal(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		j.Report(ctx, drift.NewEvent(drift.EventReplaced, "web", "app:latest", "", nil))
	}
	got, err := j.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Recent(3) returned %d events", len(got))
	}
}
