package reconcile

import (
	"testing"
	"time"
)

func TestParseSchedule_Descriptor(t *testing.T) {
	sched, err := ParseSchedule("@every 1m")
	if err != nil {
		t.Fatalf("ParseSchedule() error = %v", err)
	}
	now := time.Now()
	next := sched.Next(now)
	if d := next.Sub(now); d < 59*time.Second || d > 61*time.Second {
		t.Errorf("next tick in %s, want ~1m", d)
	}
}

func TestParseSchedule_CronExpression(t *testing.T) {
	sched, err := ParseSchedule("*/5 * * * *")
	if err != nil {
		t.Fatalf("ParseSchedule() error = %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)
	next := sched.Next(now)
	if next.Minute()%5 != 0 {
		t.Errorf("next = %s, want a multiple of 5 minutes", next)
	}
}

func TestParseSchedule_EmptyUsesDefault(t *testing.T) {
	sched, err := ParseSchedule("")
	if err != nil {
		t.Fatalf("ParseSchedule() error = %v", err)
	}
	now := time.Now()
	if d := sched.Next(now).Sub(now); d > 61*time.Second {
		t.Errorf("default tick in %s, want at most ~1m", d)
	}
}

func TestParseSchedule_Invalid(t *testing.T) {
	if _, err := ParseSchedule("not a schedule"); err == nil {
		t.Fatal("ParseSchedule() error = nil, want parse failure")
	}
}
