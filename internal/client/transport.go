package client

import (
	"fmt"
	"log/slog"

	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/inprocess"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
	"github.com/wagiedev/mcp-toolhub-go/internal/streamhttp"
	"github.com/wagiedev/mcp-toolhub-go/internal/subprocess"
)

// Compile-time verification that the built-in transports satisfy the contract.
var (
	_ config.Transport = (*subprocess.StdioTransport)(nil)
	_ config.Transport = (*streamhttp.Transport)(nil)
	_ config.Transport = (*inprocess.Transport)(nil)
)

// DefaultTransportFactory builds the built-in transport for cfg.
//
// The sse and websocket kinds return errors.ErrNotImplemented.
func DefaultTransportFactory(
	log *slog.Logger,
	cfg *mcp.ServerConfig,
	opts *config.Options,
) (config.Transport, error) {
	switch t := cfg.Transport.(type) {
	case *mcp.StdioTransport:
		return subprocess.NewStdioTransport(log, cfg.ID, t, opts), nil

	case *mcp.HTTPTransport:
		return streamhttp.NewTransport(log, cfg.ID, t, nil), nil

	case *mcp.InProcessTransport:
		return inprocess.NewTransport(log, cfg.ID, t.Server), nil

	case *mcp.SSETransport, *mcp.WebSocketTransport:
		return nil, fmt.Errorf("%w: %s", errors.ErrNotImplemented, t.Kind())

	case nil:
		return nil, fmt.Errorf("%w: missing transport", errors.ErrInvalidConfig)

	default:
		return nil, fmt.Errorf("%w: unsupported transport %T", errors.ErrInvalidConfig, t)
	}
}
