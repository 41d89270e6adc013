// Package engine defines the container-engine capability the reconciler
// consumes. Production: internal/adapter/docker. Testing: internal/adapter/fake.
package engine

import (
	"context"

	"drift"
)

// PullOutcome is the final result of an image pull attempt. NotFound and
// AuthRequired are soft outcomes: no remote data is available, detection
// falls back to local-only comparison.
type PullOutcome uint8

const (
	PullUnchanged PullOutcome = iota
	PullUpdated
	PullNotFound
	PullAuthRequired
)

func (o PullOutcome) String() string {
	switch o {
	case PullUnchanged:
		return "unchanged"
	case PullUpdated:
		return "updated"
	case PullNotFound:
		return "not-found"
	case PullAuthRequired:
		return "auth-required"
	default:
		return "unknown"
	}
}

// CreateSpec describes a container to create. Config is carried verbatim
// from the container being replaced, with name and image forced by the caller.
type CreateSpec struct {
	Name   string
	Image  string
	Config *drift.RuntimeConfig
}

// Engine is the narrow container-engine surface the reconciler needs.
// All calls are expected to resolve or fail within the adapter's call
// timeout; a timeout is indistinguishable from an engine error.
type Engine interface {
	// ListRunning returns all running containers.
	ListRunning(ctx context.Context) ([]drift.ContainerRecord, error)

	// Inspect returns the live record for one container, including its
	// full runtime config and current image id.
	Inspect(ctx context.Context, name string) (drift.ContainerRecord, error)

	// PullImage refreshes the local copy of ref, authenticating with
	// encodedAuth when non-empty. It mutates the local image cache as a
	// side effect even when the outcome is PullUnchanged.
	PullImage(ctx context.Context, ref, encodedAuth string) (PullOutcome, error)

	// InspectLocalImage resolves ref against the local image cache.
	// The bool is false when no local image exists under ref.
	InspectLocalImage(ctx context.Context, ref string) (drift.ImageIdentity, bool, error)

	// Create creates a container from spec and returns its engine id.
	Create(ctx context.Context, spec CreateSpec) (string, error)

	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Rename(ctx context.Context, name, newName string) error
	Remove(ctx context.Context, name string) error
}
