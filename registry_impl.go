package toolhub

import (
	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/registry"
)

// registryWrapper wraps the internal registry to adapt it to the public interface.
type registryWrapper struct {
	*registry.Registry
}

// Compile-time check that *registryWrapper implements the Registry interface.
var _ Registry = (*registryWrapper)(nil)

func newRegistryImpl(opts *config.Options) Registry {
	return &registryWrapper{Registry: registry.New(opts)}
}

// Client wraps the internal client of one server.
func (r *registryWrapper) Client(id string) (Client, error) {
	impl, err := r.Registry.Client(id)
	if err != nil {
		return nil, err
	}

	return &clientWrapper{impl: impl}, nil
}

