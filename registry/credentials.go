// Package registry supplies per-pull authentication material for image
// pulls. Missing credentials are a valid state: pulls proceed anonymously
// and a 401 resolves to the soft auth-required outcome.
package registry

import (
	"fmt"
	"strings"

	"github.com/distribution/reference"
	regtypes "github.com/docker/docker/api/types/registry"
)

// Static is a single set of credentials, optionally scoped to one registry
// host. With an empty Server the credentials apply to every registry.
type Static struct {
	Username string
	Password string
	Server   string
}

// Auth returns the encoded X-Registry-Auth header for pulling ref, or ""
// when no credentials apply.
func (s Static) Auth(ref string) (string, error) {
	if s.Username == "" && s.Password == "" {
		return "", nil
	}

	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", fmt.Errorf("parse image reference %q: %w", ref, err)
	}
	domain := reference.Domain(named)
	if s.Server != "" && !hostMatches(domain, s.Server) {
		return "", nil
	}

	encoded, err := regtypes.EncodeAuthConfig(regtypes.AuthConfig{
		Username:      s.Username,
		Password:      s.Password,
		ServerAddress: domain,
	})
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return encoded, nil
}

// hostMatches compares a reference domain against a configured server,
// tolerating scheme prefixes and the docker.io/index.docker.io split.
func hostMatches(domain, server string) bool {
	server = strings.TrimPrefix(server, "https://")
	server = strings.TrimPrefix(server, "http://")
	server = strings.TrimSuffix(server, "/")
	if domain == server {
		return true
	}
	dockerHub := map[string]bool{"docker.io": true, "index.docker.io": true, "registry-1.docker.io": true}
	return dockerHub[domain] && dockerHub[server]
}
