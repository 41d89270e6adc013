// Package reconcile drives the periodic freshness sweep: list running
// containers, detect drift, replace the first drifted container.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"drift"
	"drift/detect"
	"drift/engine"
	"drift/replace"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// DisableLabel opts a container out of reconciliation when set to "true".
const DisableLabel = "drift.disable"

var tracer = otel.Tracer("drift/reconcile")

// Report summarizes one pass.
type Report struct {
	Scanned  int
	Skipped  int
	Replaced int
	Drifted  string // name of the container that was replaced (or attempted)
	Err      error
}

// Pass is a single-sweep reconciler. At most one container is replaced per
// pass; the next tick continues the sweep. Passes never run concurrently.
type Pass struct {
	engine      engine.Engine
	detector    *detect.Detector
	coordinator *replace.Coordinator
	reporter    drift.Reporter
}

// NewPass wires a pass from its collaborators. reporter may be nil.
func NewPass(eng engine.Engine, det *detect.Detector, coord *replace.Coordinator, reporter drift.Reporter) *Pass {
	return &Pass{engine: eng, detector: det, coordinator: coord, reporter: reporter}
}

func (p *Pass) report(ctx context.Context, ev drift.Event) {
	if p.reporter != nil {
		p.reporter.Report(ctx, ev)
	}
}

// RunOnce performs one reconciliation pass. Containers are evaluated in
// listing order; the first one needing an update is replaced and the pass
// returns. Detection state is never carried over to the next pass.
func (p *Pass) RunOnce(ctx context.Context) Report {
	ctx, span := tracer.Start(ctx, "reconcile.pass")
	defer span.End()

	p.report(ctx, drift.NewEvent(drift.EventPassStarted, "", "", "pass started", nil))

	var rep Report
	containers, err := p.engine.ListRunning(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("list running containers: %w", err)
		span.RecordError(rep.Err)
		p.report(ctx, drift.NewEvent(drift.EventEngineQueryError, "", "",
			"pass aborted: cannot list containers", err))
		return rep
	}

	for _, c := range containers {
		rep.Scanned++
		if c.Labels[DisableLabel] == "true" {
			rep.Skipped++
			slog.Debug("container opted out", "container", c.Name)
			continue
		}

		res := p.detector.Check(ctx, c.Name)
		if !res.NeedsUpdate {
			slog.Debug("container up to date", "container", c.Name, "reason", res.Reason.String())
			continue
		}

		rec := res.Record
		if rec.Name == "" {
			// Fail-safe drift without a usable record; the coordinator
			// re-inspects from the listing entry.
			rec = c
		}
		rep.Drifted = c.Name
		p.report(ctx, drift.NewEvent(drift.EventDriftDetected, c.Name, rec.ImageRef,
			fmt.Sprintf("drift detected (%s)", res.Reason), res.Err))

		if err := p.coordinator.Replace(ctx, rec); err != nil {
			rep.Err = err
			span.RecordError(err)
		} else {
			rep.Replaced++
		}
		// Single replacement per tick; the next tick resumes the sweep.
		break
	}

	span.SetAttributes(
		attribute.Int("containers.scanned", rep.Scanned),
		attribute.Int("containers.skipped", rep.Skipped),
		attribute.Int("containers.replaced", rep.Replaced),
	)
	p.report(ctx, drift.NewEvent(drift.EventPassCompleted, rep.Drifted, "",
		fmt.Sprintf("pass completed: scanned=%d skipped=%d replaced=%d", rep.Scanned, rep.Skipped, rep.Replaced),
		rep.Err))
	return rep
}
