// Package docker implements the engine.Engine capability against the
// Docker Engine API.
package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"drift"
	"drift/engine"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

var _ engine.Engine = (*Engine)(nil)

const (
	// defaultCallTimeout bounds every engine call; a timeout surfaces as an
	// ordinary engine error (fail-safe drift or rollback, depending on caller).
	defaultCallTimeout = time.Minute
	// defaultPullTimeout is longer: pulls download image layers.
	defaultPullTimeout = 10 * time.Minute
)

// Engine talks to a Docker daemon. All calls are bounded by a per-call
// timeout so a wedged daemon cannot stall the reconciliation loop forever.
type Engine struct {
	cli         client.APIClient
	callTimeout time.Duration
	pullTimeout time.Duration

	// OnProgress, when set, observes pull progress messages. The pull
	// outcome is independent of this hook.
	OnProgress func(ref, status string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithCallTimeout overrides the per-call timeout. Zero disables it.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Engine) { e.callTimeout = d }
}

// WithPullTimeout overrides the pull timeout. Zero disables it.
func WithPullTimeout(d time.Duration) Option {
	return func(e *Engine) { e.pullTimeout = d }
}

// New creates an Engine with a Docker client from the environment.
func New(opts ...Option) (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return NewFromClient(cli, opts...), nil
}

// NewFromClient wraps an existing Docker client.
func NewFromClient(cli client.APIClient, opts ...Option) *Engine {
	e := &Engine{
		cli:         cli,
		callTimeout: defaultCallTimeout,
		pullTimeout: defaultPullTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func (e *Engine) ListRunning(ctx context.Context) ([]drift.ContainerRecord, error) {
	ctx, cancel := e.withTimeout(ctx, e.callTimeout)
	defer cancel()

	containers, err := e.cli.ContainerList(ctx, container.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	out := make([]drift.ContainerRecord, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		out = append(out, drift.ContainerRecord{
			ID:       c.ID,
			Name:     name,
			ImageRef: c.Image,
			ImageID:  c.ImageID,
			Labels:   c.Labels,
		})
	}
	return out, nil
}

func (e *Engine) Inspect(ctx context.Context, name string) (drift.ContainerRecord, error) {
	ctx, cancel := e.withTimeout(ctx, e.callTimeout)
	defer cancel()

	info, err := e.cli.ContainerInspect(ctx, name)
	if err != nil {
		return drift.ContainerRecord{}, fmt.Errorf("inspect container %q: %w", name, err)
	}

	rec := drift.ContainerRecord{
		ID:      info.ID,
		Name:    strings.TrimPrefix(info.Name, "/"),
		ImageID: info.Image,
		Config: &drift.RuntimeConfig{
			Container: info.Config,
			Host:      info.HostConfig,
		},
	}
	if info.Config != nil {
		rec.ImageRef = info.Config.Image
		rec.Labels = info.Config.Labels
	}
	if info.NetworkSettings != nil {
		rec.Config.Networking = &network.NetworkingConfig{
			EndpointsConfig: info.NetworkSettings.Networks,
		}
	}
	return rec, nil
}

func (e *Engine) PullImage(ctx context.Context, ref, encodedAuth string) (engine.PullOutcome, error) {
	ctx, cancel := e.withTimeout(ctx, e.pullTimeout)
	defer cancel()

	rc, err := e.cli.ImagePull(ctx, ref, image.PullOptions{RegistryAuth: encodedAuth})
	if err != nil {
		if outcome, ok := classifyPullError(err); ok {
			return outcome, nil
		}
		return engine.PullUnchanged, fmt.Errorf("pull image %q: %w", ref, err)
	}
	defer rc.Close()

	outcome, err := e.drainPull(ref, rc)
	if err != nil {
		if o, ok := classifyPullError(err); ok {
			return o, nil
		}
		return engine.PullUnchanged, fmt.Errorf("pull image %q: %w", ref, err)
	}
	return outcome, nil
}

// drainPull consumes the pull progress stream to completion and derives the
// final outcome from the daemon's closing status message.
func (e *Engine) drainPull(ref string, rc io.Reader) (engine.PullOutcome, error) {
	outcome := engine.PullUnchanged
	dec := json.NewDecoder(rc)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return outcome, nil
			}
			return outcome, fmt.Errorf("read pull response: %w", err)
		}
		if msg.Error != nil {
			return outcome, fmt.Errorf("pull: %s", msg.Error.Message)
		}
		if e.OnProgress != nil {
			e.OnProgress(ref, msg.Status)
		} else {
			slog.Debug("image pull progress", "image", ref, "status", msg.Status)
		}
		switch {
		case strings.Contains(msg.Status, "Downloaded newer image"):
			outcome = engine.PullUpdated
		case strings.Contains(msg.Status, "Image is up to date"):
			outcome = engine.PullUnchanged
		}
	}
}

// classifyPullError maps registry misses onto soft outcomes. Anything else
// stays a hard pull error.
func classifyPullError(err error) (engine.PullOutcome, bool) {
	switch {
	case errdefs.IsNotFound(err):
		return engine.PullNotFound, true
	case errdefs.IsUnauthorized(err), errdefs.IsPermissionDenied(err):
		return engine.PullAuthRequired, true
	default:
		return engine.PullUnchanged, false
	}
}

func (e *Engine) InspectLocalImage(ctx context.Context, ref string) (drift.ImageIdentity, bool, error) {
	ctx, cancel := e.withTimeout(ctx, e.callTimeout)
	defer cancel()

	info, err := e.cli.ImageInspect(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return drift.ImageIdentity{}, false, nil
		}
		return drift.ImageIdentity{}, false, fmt.Errorf("inspect image %q: %w", ref, err)
	}
	return drift.ImageIdentity{Reference: ref, ID: info.ID}, true, nil
}

func (e *Engine) Create(ctx context.Context, spec engine.CreateSpec) (string, error) {
	ctx, cancel := e.withTimeout(ctx, e.callTimeout)
	defer cancel()

	var (
		cc container.Config
		hc *container.HostConfig
		nc *network.NetworkingConfig
	)
	if spec.Config != nil && spec.Config.Container != nil {
		cc = *spec.Config.Container
	}
	cc.Image = spec.Image
	if spec.Config != nil {
		hc = spec.Config.Host
		nc = spec.Config.Networking
	}

	resp, err := e.cli.ContainerCreate(ctx, &cc, hc, nc, (*ocispec.Platform)(nil), spec.Name)
	if err != nil {
		return "", fmt.Errorf("create container %q: %w", spec.Name, err)
	}
	return resp.ID, nil
}

func (e *Engine) Start(ctx context.Context, name string) error {
	ctx, cancel := e.withTimeout(ctx, e.callTimeout)
	defer cancel()

	if err := e.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %q: %w", name, err)
	}
	return nil
}

func (e *Engine) Stop(ctx context.Context, name string) error {
	ctx, cancel := e.withTimeout(ctx, e.callTimeout)
	defer cancel()

	if err := e.cli.ContainerStop(ctx, name, container.StopOptions{}); err != nil {
		return fmt.Errorf("stop container %q: %w", name, err)
	}
	return nil
}

func (e *Engine) Rename(ctx context.Context, name, newName string) error {
	ctx, cancel := e.withTimeout(ctx, e.callTimeout)
	defer cancel()

	if err := e.cli.ContainerRename(ctx, name, newName); err != nil {
		return fmt.Errorf("rename container %q to %q: %w", name, newName, err)
	}
	return nil
}

func (e *Engine) Remove(ctx context.Context, name string) error {
	ctx, cancel := e.withTimeout(ctx, e.callTimeout)
	defer cancel()

	if err := e.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("remove container %q: %w", name, err)
	}
	return nil
}

func (e *Engine) Close() error {
	return e.cli.Close()
}
