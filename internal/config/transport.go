// Package config provides configuration types for toolhub clients and
// the registry, plus loading and watching of server lists.
package config

import (
	"context"
	"log/slog"

	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// Transport defines the interface for talking to one capability server.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// Transports move raw bytes. Framing into JSON-RPC messages happens in the
// protocol layer, so a chunk may hold several messages or part of one.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving inbound byte chunks and
	// a terminal error. The error channel yields at most one error.
	// The chunk channel is closed when the stream ends.
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)

	// SendMessage sends one JSON-RPC message.
	// A trailing newline is appended if missing.
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}

// TransportFactory builds the transport for a server config.
// Returning errors.ErrNotImplemented fails the connect attempt normally.
type TransportFactory func(log *slog.Logger, cfg *mcp.ServerConfig, opts *Options) (Transport, error)
