// Package detect decides whether a container's image has drifted from what
// is currently published under the same reference.
package detect

import (
	"context"
	"fmt"
	"log/slog"

	"drift"
	"drift/engine"
)

// Reason explains a detection result.
type Reason uint8

const (
	ReasonUpToDate     Reason = iota // local image id matches the container's
	ReasonNoLocalImage               // no local baseline, cannot confirm drift
	ReasonIDMismatch                 // local image id differs from the container's
	ReasonEngineError                // engine query failed, fail-safe drift
)

func (r Reason) String() string {
	switch r {
	case ReasonUpToDate:
		return "up-to-date"
	case ReasonNoLocalImage:
		return "no-local-image"
	case ReasonIDMismatch:
		return "id-mismatch"
	case ReasonEngineError:
		return "engine-error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one drift check.
type Result struct {
	NeedsUpdate bool
	Reason      Reason
	Record      drift.ContainerRecord // the inspected container, when available
	Latest      drift.ImageIdentity   // local cache identity after the refresh
	Err         error                 // engine error behind ReasonEngineError
}

// Credentials supplies per-pull registry authentication. An empty string is
// a valid result: the pull proceeds anonymously.
type Credentials interface {
	Auth(ref string) (string, error)
}

// Detector checks containers for image drift. It mutates the local image
// cache (a pull may download new content) but never touches containers.
type Detector struct {
	engine   engine.Engine
	creds    Credentials
	reporter drift.Reporter
}

// New creates a Detector. creds and reporter may be nil.
func New(eng engine.Engine, creds Credentials, reporter drift.Reporter) *Detector {
	return &Detector{engine: eng, creds: creds, reporter: reporter}
}

func (d *Detector) report(ctx context.Context, ev drift.Event) {
	if d.reporter != nil {
		d.reporter.Report(ctx, ev)
	}
}

// Check reports whether the named container needs replacing.
//
// Engine failures while reading container or image state classify as drift:
// replacing is a retry path, staying silently stale is not. The opposite
// policy applies when there is simply no local image to compare against.
func (d *Detector) Check(ctx context.Context, name string) Result {
	rec, err := d.engine.Inspect(ctx, name)
	if err != nil {
		d.report(ctx, drift.NewEvent(drift.EventEngineQueryError, name, "",
			fmt.Sprintf("inspect failed, treating %q as drifted", name), err))
		return Result{NeedsUpdate: true, Reason: ReasonEngineError, Err: err}
	}

	auth := ""
	if d.creds != nil {
		if auth, err = d.creds.Auth(rec.ImageRef); err != nil {
			slog.Warn("resolve registry credentials failed, pulling anonymously",
				"image", rec.ImageRef, "err", err)
			auth = ""
		}
	}

	// Refresh the local cache. Registry misses are soft; a hard pull error
	// is swallowed here and only matters if the image inspect below fails.
	outcome, err := d.engine.PullImage(ctx, rec.ImageRef, auth)
	switch {
	case err != nil:
		slog.Debug("image pull failed, comparing against local cache",
			"image", rec.ImageRef, "err", err)
	case outcome == engine.PullNotFound, outcome == engine.PullAuthRequired:
		d.report(ctx, drift.NewEvent(drift.EventSoftRegistryMiss, rec.Name, rec.ImageRef,
			fmt.Sprintf("no remote data for %q (%s), using local cache", rec.ImageRef, outcome), nil))
	}

	latest, found, err := d.engine.InspectLocalImage(ctx, rec.ImageRef)
	if err != nil {
		d.report(ctx, drift.NewEvent(drift.EventEngineQueryError, rec.Name, rec.ImageRef,
			fmt.Sprintf("local image inspect failed, treating %q as drifted", rec.Name), err))
		return Result{NeedsUpdate: true, Reason: ReasonEngineError, Record: rec, Err: err}
	}
	if !found {
		return Result{Reason: ReasonNoLocalImage, Record: rec}
	}
	if latest.ID != rec.ImageID {
		return Result{NeedsUpdate: true, Reason: ReasonIDMismatch, Record: rec, Latest: latest}
	}
	return Result{Reason: ReasonUpToDate, Record: rec, Latest: latest}
}
