// Package replace swaps a drifted container for a fresh one created from
// the same runtime config, with rollback while the old container is still
// recoverable.
package replace

import (
	"context"
	"fmt"
	"log/slog"

	"drift"
	"drift/engine"
)

// Coordinator performs container replacements. One replacement runs at a
// time; the coordinator assumes exclusive access to the names it touches.
type Coordinator struct {
	engine   engine.Engine
	reporter drift.Reporter
}

// New creates a Coordinator. reporter may be nil.
func New(eng engine.Engine, reporter drift.Reporter) *Coordinator {
	return &Coordinator{engine: eng, reporter: reporter}
}

func (c *Coordinator) report(ctx context.Context, ev drift.Event) {
	if c.reporter != nil {
		c.reporter.Report(ctx, ev)
	}
}

// Replace swaps rec for a new container created from the refreshed image
// under the same logical name.
//
// The old container is renamed aside first, so the logical name is free for
// the new one while the old content stays recoverable. Create, stop, and
// start failures roll back to the original running container; once the new
// container has started, failure to remove the old one is only cleanup debt.
func (c *Coordinator) Replace(ctx context.Context, rec drift.ContainerRecord) error {
	// Listing entries carry no runtime config; read the full record before
	// touching anything so an unreadable container aborts with no change.
	if rec.Config == nil {
		full, err := c.engine.Inspect(ctx, rec.Name)
		if err != nil {
			c.report(ctx, drift.NewEvent(drift.EventEngineQueryError, rec.Name, rec.ImageRef,
				"cannot read runtime config, replacement aborted", err))
			return fmt.Errorf("replace %q: %w", rec.Name, err)
		}
		rec = full
	}

	plan := NewPlan(rec)
	log := slog.With("container", plan.TargetName, "image", plan.Image)

	// Step 1: park the old container. Nothing has changed on failure.
	if err := c.engine.Rename(ctx, plan.TargetName, plan.TempName); err != nil {
		stepErr := &StepError{Container: plan.TargetName, Step: StepRename, Err: err}
		c.report(ctx, drift.NewEvent(drift.EventReplacementError, plan.TargetName, plan.Image,
			"replacement aborted before any change", stepErr))
		return stepErr
	}

	created := false
	oldStopped := false
	fail := func(step Step, err error) error {
		stepErr := &StepError{Container: plan.TargetName, Step: step, Err: err}
		c.report(ctx, drift.NewEvent(drift.EventReplacementError, plan.TargetName, plan.Image,
			fmt.Sprintf("%s failed, rolling back", step), stepErr))

		if rbErr := c.rollback(ctx, plan, created, oldStopped); rbErr != nil {
			critical := &RollbackError{
				Container: plan.TargetName,
				TempName:  plan.TempName,
				Cause:     stepErr,
				Err:       rbErr,
			}
			c.report(ctx, drift.NewEvent(drift.EventRollbackFailure, plan.TargetName, plan.Image,
				fmt.Sprintf("operator intervention required: original container is %q", plan.TempName),
				critical))
			return critical
		}
		c.report(ctx, drift.NewEvent(drift.EventRolledBack, plan.TargetName, plan.Image,
			"original container restored", nil))
		return stepErr
	}

	// Step 2+3: build the creation spec from the old container's config,
	// forcing name and image, and create the replacement.
	spec := engine.CreateSpec{Name: plan.TargetName, Image: plan.Image, Config: plan.Config}
	if _, err := c.engine.Create(ctx, spec); err != nil {
		return fail(StepCreate, err)
	}
	created = true

	// Step 4: stop the old container.
	if err := c.engine.Stop(ctx, plan.TempName); err != nil {
		return fail(StepStop, err)
	}
	oldStopped = true

	// Step 5: start the new container.
	if err := c.engine.Start(ctx, plan.TargetName); err != nil {
		return fail(StepStart, err)
	}

	// Step 6: the new container is live; removal failure is non-fatal.
	if err := c.engine.Remove(ctx, plan.TempName); err != nil {
		c.report(ctx, drift.NewEvent(drift.EventCleanupFailure, plan.TargetName, plan.Image,
			fmt.Sprintf("old container %q not removed", plan.TempName), err))
		log.Warn("old container left behind", "temp", plan.TempName, "err", err)
		return nil
	}

	c.report(ctx, drift.NewEvent(drift.EventReplaced, plan.TargetName, plan.Image,
		"container replaced with fresh image", nil))
	log.Info("container replaced")
	return nil
}

// rollback restores the original container under its own name. The
// half-built replacement is removed first so the target name frees up, and
// the original is restarted if it had already been stopped.
func (c *Coordinator) rollback(ctx context.Context, plan Plan, created, oldStopped bool) error {
	if created {
		if err := c.engine.Remove(ctx, plan.TargetName); err != nil {
			return fmt.Errorf("remove replacement container: %w", err)
		}
	}
	if err := c.engine.Rename(ctx, plan.TempName, plan.TargetName); err != nil {
		return fmt.Errorf("rename %q back to %q: %w", plan.TempName, plan.TargetName, err)
	}
	if oldStopped {
		if err := c.engine.Start(ctx, plan.TargetName); err != nil {
			return fmt.Errorf("restart original container %q: %w", plan.TargetName, err)
		}
	}
	return nil
}
