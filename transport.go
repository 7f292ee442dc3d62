package toolhub

import "github.com/wagiedev/mcp-toolhub-go/internal/config"

// Transport moves raw bytes between a client and one capability server.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The built-in transports cover stdio, streamable HTTP and in-process
// servers. Custom transports are injected with WithTransportFactory.
type Transport = config.Transport

// TransportFactory builds the transport for a server config.
type TransportFactory = config.TransportFactory
