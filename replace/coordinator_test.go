package replace

import (
	"context"
	"errors"
	"slices"
	"testing"

	"drift"
	"drift/engine"
	"drift/internal/adapter/fake"
)

// --- fakes ---

type recordReporter struct {
	events []drift.Event
}

func (r *recordReporter) Report(_ context.Context, ev drift.Event) {
	r.events = append(r.events, ev)
}

func (r *recordReporter) has(kind drift.EventKind) bool {
	for _, ev := range r.events {
		if ev.Kind == kind {
			return true
		}
	}
	return false
}

// --- helpers ---

// seedDrifted sets up a running container on sha:AAA whose reference now
// resolves locally to sha:BBB, and returns its full record.
func seedDrifted(t *testing.T, eng *fake.Engine) drift.ContainerRecord {
	t.Helper()
	eng.SeedContainer("web", "app:latest", "sha:AAA", &drift.RuntimeConfig{})
	eng.SeedLocalImage("app:latest", "sha:BBB")
	rec, err := eng.Inspect(context.Background(), "web")
	if err != nil {
		t.Fatal(err)
	}
	eng.Reset()
	return rec
}

func assertOnly(t *testing.T, eng *fake.Engine, name string) {
	t.Helper()
	names := eng.Names()
	if !slices.Contains(names, name) {
		t.Fatalf("container %q missing, have %v\n%s", name, names, eng)
	}
	if slices.Contains(names, name+TempNameSuffix) {
		t.Fatalf("temporary container %q still present\n%s", name+TempNameSuffix, eng)
	}
}

// --- tests ---

func TestReplace_Success(t *testing.T) {
	eng := fake.NewEngine()
	rec := seedDrifted(t, eng)
	rep := &recordReporter{}

	c := New(eng, rep)
	if err := c.Replace(context.Background(), rec); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	assertOnly(t, eng, "web")
	web := eng.Container("web")
	if web.ImageID != "sha:BBB" {
		t.Errorf("web image id = %q, want %q", web.ImageID, "sha:BBB")
	}
	if !web.Running {
		t.Error("web is not running")
	}
	if !rep.has(drift.EventReplaced) {
		t.Errorf("no %s event reported", drift.EventReplaced)
	}
}

func TestReplace_CreateFailureRollsBack(t *testing.T) {
	eng := fake.NewEngine()
	rec := seedDrifted(t, eng)
	eng.CreateErr = func(context.Context, engine.CreateSpec) error {
		return errors.New("no space left on device")
	}
	rep := &recordReporter{}

	c := New(eng, rep)
	err := c.Replace(context.Background(), rec)

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepCreate {
		t.Fatalf("Replace() error = %v, want StepError at %s", err, StepCreate)
	}

	assertOnly(t, eng, "web")
	web := eng.Container("web")
	if web.ImageID != "sha:AAA" {
		t.Errorf("web image id = %q, want original %q", web.ImageID, "sha:AAA")
	}
	if !web.Running {
		t.Error("web is not running after rollback")
	}
	if !rep.has(drift.EventReplacementError) || !rep.has(drift.EventRolledBack) {
		t.Errorf("events = %v, want step error and rollback", rep.events)
	}
}

func TestReplace_StopFailureRollsBack(t *testing.T) {
	eng := fake.NewEngine()
	rec := seedDrifted(t, eng)
	eng.StopErr = func(context.Context, string) error {
		return errors.New("stop timed out")
	}

	c := New(eng, nil)
	err := c.Replace(context.Background(), rec)

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepStop {
		t.Fatalf("Replace() error = %v, want StepError at %s", err, StepStop)
	}

	assertOnly(t, eng, "web")
	web := eng.Container("web")
	if web.ImageID != "sha:AAA" || !web.Running {
		t.Errorf("web = (image %q, running %t), want original running container", web.ImageID, web.Running)
	}
}

func TestReplace_StartFailureRestoresRunningOld(t *testing.T) {
	eng := fake.NewEngine()
	rec := seedDrifted(t, eng)
	failed := false
	eng.StartErr = func(_ context.Context, name string) error {
		// Only the replacement's first start fails; the rollback restart
		// of the original container succeeds.
		if !failed {
			failed = true
			return errors.New("oom on start")
		}
		return nil
	}

	c := New(eng, nil)
	err := c.Replace(context.Background(), rec)

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepStart {
		t.Fatalf("Replace() error = %v, want StepError at %s", err, StepStart)
	}

	assertOnly(t, eng, "web")
	web := eng.Container("web")
	if web.ImageID != "sha:AAA" {
		t.Errorf("web image id = %q, want original %q", web.ImageID, "sha:AAA")
	}
	if !web.Running {
		t.Error("original container was stopped during the swap and not restarted")
	}
}

func TestReplace_RollbackFailureIsCritical(t *testing.T) {
	eng := fake.NewEngine()
	rec := seedDrifted(t, eng)
	eng.CreateErr = func(context.Context, engine.CreateSpec) error {
		return errors.New("create refused")
	}
	renames := 0
	eng.RenameErr = func(context.Context, string, string) error {
		renames++
		if renames > 1 {
			// The rename back to the target name fails.
			return errors.New("engine gone")
		}
		return nil
	}
	rep := &recordReporter{}

	c := New(eng, rep)
	err := c.Replace(context.Background(), rec)

	var rbErr *RollbackError
	if !errors.As(err, &rbErr) {
		t.Fatalf("Replace() error = %v, want RollbackError", err)
	}
	if rbErr.TempName != "web"+TempNameSuffix {
		t.Errorf("TempName = %q, want %q", rbErr.TempName, "web"+TempNameSuffix)
	}

	// Documented critical state: the original survives only under the
	// temporary name, nothing holds the target name.
	names := eng.Names()
	if slices.Contains(names, "web") {
		t.Errorf("containers = %v, want no %q", names, "web")
	}
	if !slices.Contains(names, "web"+TempNameSuffix) {
		t.Errorf("containers = %v, want %q", names, "web"+TempNameSuffix)
	}
	if !rep.has(drift.EventRollbackFailure) {
		t.Errorf("no %s event reported", drift.EventRollbackFailure)
	}
}

func TestReplace_OldRemovalFailureIsNonFatal(t *testing.T) {
	eng := fake.NewEngine()
	rec := seedDrifted(t, eng)
	eng.RemoveErr = func(context.Context, string) error {
		return errors.New("device busy")
	}
	rep := &recordReporter{}

	c := New(eng, rep)
	if err := c.Replace(context.Background(), rec); err != nil {
		t.Fatalf("Replace() error = %v, want nil (cleanup debt only)", err)
	}

	web := eng.Container("web")
	if web == nil || web.ImageID != "sha:BBB" || !web.Running {
		t.Fatalf("replacement not live:\n%s", eng)
	}
	if eng.Container("web"+TempNameSuffix) == nil {
		t.Error("old container should still exist as removal debt")
	}
	if !rep.has(drift.EventCleanupFailure) {
		t.Errorf("no %s event reported", drift.EventCleanupFailure)
	}
}

func TestReplace_InitialRenameFailureChangesNothing(t *testing.T) {
	eng := fake.NewEngine()
	rec := seedDrifted(t, eng)
	eng.RenameErr = func(context.Context, string, string) error {
		return errors.New("name locked")
	}

	c := New(eng, nil)
	err := c.Replace(context.Background(), rec)

	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepRename {
		t.Fatalf("Replace() error = %v, want StepError at %s", err, StepRename)
	}
	if n := len(eng.Mutations()); n != 1 {
		t.Errorf("mutating calls = %d, want only the failed rename", n)
	}
	web := eng.Container("web")
	if web == nil || web.ImageID != "sha:AAA" || !web.Running {
		t.Fatalf("original container disturbed:\n%s", eng)
	}
}

func TestReplace_InspectsWhenConfigMissing(t *testing.T) {
	eng := fake.NewEngine()
	eng.SeedContainer("web", "app:latest", "sha:AAA", &drift.RuntimeConfig{})
	eng.SeedLocalImage("app:latest", "sha:BBB")

	// A listing entry has no runtime config.
	thin := drift.ContainerRecord{Name: "web", ImageRef: "app:latest", ImageID: "sha:AAA"}

	c := New(eng, nil)
	if err := c.Replace(context.Background(), thin); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if web := eng.Container("web"); web.ImageID != "sha:BBB" {
		t.Errorf("web image id = %q, want %q", web.ImageID, "sha:BBB")
	}
}
