package config

import (
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

const (
	// ClientName is reported as clientInfo.name during the handshake.
	ClientName = "mcp-toolhub-go"
	// ClientVersion is reported as clientInfo.version during the handshake.
	ClientVersion = "0.1.0"

	// DefaultShutdownGrace is how long a subprocess gets to exit after its
	// stdin closes before it is killed.
	DefaultShutdownGrace = 5 * time.Second
)

// Options configures clients and the registry.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ClientInfo identifies this client to servers.
	// Zero value reports ClientName and ClientVersion.
	ClientInfo mcp.Implementation

	// RequestTimeout applies to servers whose config sets no timeout.
	// Zero means mcp.DefaultRequestTimeout.
	RequestTimeout time.Duration

	// Roots are returned to servers that send roots/list.
	// Nil answers with an empty list.
	Roots []mcp.Root

	// ConnectConcurrency bounds how many servers ConnectAll dials at once.
	// Zero or negative means unbounded.
	ConnectConcurrency int

	// ShutdownGrace overrides DefaultShutdownGrace.
	ShutdownGrace time.Duration

	// Stderr is a callback for each stderr line of a subprocess server.
	Stderr func(serverID, line string)

	// TransportFactory allows injecting custom transports.
	// If nil, the built-in transports are used.
	TransportFactory TransportFactory `json:"-"`
}

// Log returns the configured logger or a discarding one.
func (o *Options) Log() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return o.Logger
}

// Implementation returns the client info sent during the handshake.
func (o *Options) Implementation() mcp.Implementation {
	info := mcp.Implementation{Name: ClientName, Version: ClientVersion}
	if o == nil {
		return info
	}

	if o.ClientInfo.Name != "" {
		info.Name = o.ClientInfo.Name
	}

	if o.ClientInfo.Version != "" {
		info.Version = o.ClientInfo.Version
	}

	return info
}

// RootList returns the roots answered to roots/list, never nil.
func (o *Options) RootList() []mcp.Root {
	if o == nil || len(o.Roots) == 0 {
		return []mcp.Root{}
	}

	return slices.Clone(o.Roots)
}

// TimeoutFor returns the effective request timeout for cfg.
func (o *Options) TimeoutFor(cfg *mcp.ServerConfig) time.Duration {
	if cfg.Timeout > 0 {
		return cfg.Timeout
	}

	if o != nil && o.RequestTimeout > 0 {
		return o.RequestTimeout
	}

	return mcp.DefaultRequestTimeout
}

// Grace returns the effective subprocess shutdown grace period.
func (o *Options) Grace() time.Duration {
	if o != nil && o.ShutdownGrace > 0 {
		return o.ShutdownGrace
	}

	return DefaultShutdownGrace
}
