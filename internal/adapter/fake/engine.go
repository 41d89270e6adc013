// Package fake provides an in-memory engine.Engine for tests.
package fake

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"drift"
	"drift/engine"
)

var _ engine.Engine = (*Engine)(nil)

// ContainerState is the fake's view of one container.
type ContainerState struct {
	ID       string
	Name     string
	ImageRef string
	ImageID  string
	Running  bool
	Labels   map[string]string
	Config   *drift.RuntimeConfig
}

// Engine is an in-memory implementation of engine.Engine. Containers are
// keyed by name; the local image cache and the simulated remote registry are
// keyed by reference. Per-method error hooks inject failures.
type Engine struct {
	CallRecorder
	mu         sync.Mutex
	seq        int
	containers map[string]*ContainerState
	order      []string // container names in creation order, for stable listings
	local      map[string]drift.ImageIdentity
	remote     map[string]string // ref -> content id the registry serves

	// AuthRequired makes pulls with empty credentials resolve to the soft
	// auth-required outcome.
	AuthRequired bool

	ListRunningErr       func(ctx context.Context) error
	InspectErr           func(ctx context.Context, name string) error
	PullImageErr         func(ctx context.Context, ref string) error
	InspectLocalImageErr func(ctx context.Context, ref string) error
	CreateErr            func(ctx context.Context, spec engine.CreateSpec) error
	StartErr             func(ctx context.Context, name string) error
	StopErr              func(ctx context.Context, name string) error
	RenameErr            func(ctx context.Context, name, newName string) error
	RemoveErr            func(ctx context.Context, name string) error
}

// NewEngine creates an empty fake engine.
func NewEngine() *Engine {
	return &Engine{
		containers: make(map[string]*ContainerState),
		local:      make(map[string]drift.ImageIdentity),
		remote:     make(map[string]string),
	}
}

// SeedContainer adds a running container backed by imageID. The image is
// also seeded into the local cache, matching a container that was created
// from a locally present image.
func (e *Engine) SeedContainer(name, ref, imageID string, config *drift.RuntimeConfig) *ContainerState {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	cs := &ContainerState{
		ID:       fmt.Sprintf("ctr-%d", e.seq),
		Name:     name,
		ImageRef: ref,
		ImageID:  imageID,
		Running:  true,
		Config:   config,
	}
	e.containers[name] = cs
	e.order = append(e.order, name)
	e.local[ref] = drift.ImageIdentity{Reference: ref, ID: imageID}
	return cs
}

// SeedLocalImage puts an identity into the local cache without a pull.
func (e *Engine) SeedLocalImage(ref, id string) {
	e.mu.Lock()
	e.local[ref] = drift.ImageIdentity{Reference: ref, ID: id}
	e.mu.Unlock()
}

// SetRemoteImage publishes a content id under ref in the simulated registry.
func (e *Engine) SetRemoteImage(ref, id string) {
	e.mu.Lock()
	e.remote[ref] = id
	e.mu.Unlock()
}

// DropLocalImage removes ref from the local cache.
func (e *Engine) DropLocalImage(ref string) {
	e.mu.Lock()
	delete(e.local, ref)
	e.mu.Unlock()
}

// Container returns the state for name, or nil.
func (e *Engine) Container(name string) *ContainerState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.containers[name]
}

// Mutations returns all recorded container-mutating calls.
func (e *Engine) Mutations() []Call {
	var out []Call
	for _, c := range e.Calls("") {
		switch c.Method {
		case "Create", "Start", "Stop", "Rename", "Remove":
			out = append(out, c)
		}
	}
	return out
}

func (e *Engine) ListRunning(ctx context.Context) ([]drift.ContainerRecord, error) {
	e.record("ListRunning")
	if e.ListRunningErr != nil {
		if err := e.ListRunningErr(ctx); err != nil {
			return nil, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []drift.ContainerRecord
	for _, name := range e.order {
		cs := e.containers[name]
		if !cs.Running {
			continue
		}
		out = append(out, drift.ContainerRecord{
			ID:       cs.ID,
			Name:     cs.Name,
			ImageRef: cs.ImageRef,
			ImageID:  cs.ImageID,
			Labels:   cs.Labels,
		})
	}
	return out, nil
}

func (e *Engine) Inspect(ctx context.Context, name string) (drift.ContainerRecord, error) {
	e.record("Inspect", name)
	if e.InspectErr != nil {
		if err := e.InspectErr(ctx, name); err != nil {
			return drift.ContainerRecord{}, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cs, ok := e.containers[name]
	if !ok {
		return drift.ContainerRecord{}, fmt.Errorf("container %q not found", name)
	}
	return drift.ContainerRecord{
		ID:       cs.ID,
		Name:     cs.Name,
		ImageRef: cs.ImageRef,
		ImageID:  cs.ImageID,
		Labels:   cs.Labels,
		Config:   cs.Config,
	}, nil
}

func (e *Engine) PullImage(ctx context.Context, ref, encodedAuth string) (engine.PullOutcome, error) {
	e.record("PullImage", ref, encodedAuth)
	if e.PullImageErr != nil {
		if err := e.PullImageErr(ctx, ref); err != nil {
			return engine.PullUnchanged, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.AuthRequired && encodedAuth == "" {
		return engine.PullAuthRequired, nil
	}
	id, ok := e.remote[ref]
	if !ok {
		return engine.PullNotFound, nil
	}
	prev, had := e.local[ref]
	e.local[ref] = drift.ImageIdentity{Reference: ref, ID: id}
	if had && prev.ID == id {
		return engine.PullUnchanged, nil
	}
	return engine.PullUpdated, nil
}

func (e *Engine) InspectLocalImage(ctx context.Context, ref string) (drift.ImageIdentity, bool, error) {
	e.record("InspectLocalImage", ref)
	if e.InspectLocalImageErr != nil {
		if err := e.InspectLocalImageErr(ctx, ref); err != nil {
			return drift.ImageIdentity{}, false, err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	identity, ok := e.local[ref]
	if !ok {
		return drift.ImageIdentity{}, false, nil
	}
	return identity, true, nil
}

func (e *Engine) Create(ctx context.Context, spec engine.CreateSpec) (string, error) {
	e.record("Create", spec)
	if e.CreateErr != nil {
		if err := e.CreateErr(ctx, spec); err != nil {
			return "", err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.containers[spec.Name]; exists {
		return "", fmt.Errorf("container name %q already in use", spec.Name)
	}
	e.seq++
	imageID := spec.Image
	if identity, ok := e.local[spec.Image]; ok {
		imageID = identity.ID
	}
	cs := &ContainerState{
		ID:       fmt.Sprintf("ctr-%d", e.seq),
		Name:     spec.Name,
		ImageRef: spec.Image,
		ImageID:  imageID,
		Config:   spec.Config,
	}
	e.containers[spec.Name] = cs
	e.order = append(e.order, spec.Name)
	return cs.ID, nil
}

func (e *Engine) Start(ctx context.Context, name string) error {
	e.record("Start", name)
	if e.StartErr != nil {
		if err := e.StartErr(ctx, name); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cs, ok := e.containers[name]
	if !ok {
		return fmt.Errorf("container %q not found", name)
	}
	cs.Running = true
	return nil
}

func (e *Engine) Stop(ctx context.Context, name string) error {
	e.record("Stop", name)
	if e.StopErr != nil {
		if err := e.StopErr(ctx, name); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cs, ok := e.containers[name]
	if !ok {
		return fmt.Errorf("container %q not found", name)
	}
	cs.Running = false
	return nil
}

func (e *Engine) Rename(ctx context.Context, name, newName string) error {
	e.record("Rename", name, newName)
	if e.RenameErr != nil {
		if err := e.RenameErr(ctx, name, newName); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	cs, ok := e.containers[name]
	if !ok {
		return fmt.Errorf("container %q not found", name)
	}
	if _, exists := e.containers[newName]; exists {
		return fmt.Errorf("container name %q already in use", newName)
	}
	delete(e.containers, name)
	cs.Name = newName
	e.containers[newName] = cs
	for i, n := range e.order {
		if n == name {
			e.order[i] = newName
			break
		}
	}
	return nil
}

func (e *Engine) Remove(ctx context.Context, name string) error {
	e.record("Remove", name)
	if e.RemoveErr != nil {
		if err := e.RemoveErr(ctx, name); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.containers[name]; !ok {
		return fmt.Errorf("container %q not found", name)
	}
	delete(e.containers, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Names returns the container names currently present, for invariant checks.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, 0, len(e.containers))
	for name := range e.containers {
		out = append(out, name)
	}
	return out
}

// String renders the fake's container table, useful in test failure output.
func (e *Engine) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var b strings.Builder
	for name, cs := range e.containers {
		fmt.Fprintf(&b, "%s image=%s id=%s running=%t\n", name, cs.ImageRef, cs.ImageID, cs.Running)
	}
	return b.String()
}
