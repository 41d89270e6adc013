package drift

import (
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
)

// ContainerRecord is a live view of one container as reported by the
// engine. It is fetched fresh on every pass and never cached across passes.
type ContainerRecord struct {
	ID       string // engine-assigned, opaque
	Name     string // logical identity, stable across a replacement
	ImageRef string // human-readable reference, e.g. repo/name:tag
	ImageID  string // content-addressed id of the image the container runs
	Labels   map[string]string
	Config   *RuntimeConfig
}

// RuntimeConfig is the full creation spec of a container, copied verbatim
// from the engine so a replacement (or a rollback) can reconstitute the
// container exactly.
type RuntimeConfig struct {
	Container  *container.Config
	Host       *container.HostConfig
	Networking *network.NetworkingConfig
}

// ImageIdentity pairs a reference with the content-addressed identifier it
// currently resolves to. A reference may resolve to a changing ID over time.
type ImageIdentity struct {
	Reference string
	ID        string
}
