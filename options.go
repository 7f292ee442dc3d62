package toolhub

import (
	"log/slog"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/client"
)

// Option configures Options using the functional options pattern.
// The same options apply to NewClient and New.
type Option func(*Options)

// applyOptions applies functional options to an Options struct.
func applyOptions(opts []Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for debug output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithClientInfo sets the name and version reported to servers during the
// handshake. Empty fields keep the defaults.
func WithClientInfo(name, version string) Option {
	return func(o *Options) {
		o.ClientInfo = Implementation{Name: name, Version: version}
	}
}

// WithRequestTimeout sets the request timeout for servers whose config sets
// none.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.RequestTimeout = d
	}
}

// WithRoots sets the roots returned to servers that ask for them with
// roots/list. Without it servers receive an empty list.
func WithRoots(roots ...Root) Option {
	return func(o *Options) {
		o.Roots = roots
	}
}

// ===== Registry =====

// WithConnectConcurrency limits how many servers ConnectAll and Sync dial
// at once. Zero or negative means unbounded.
func WithConnectConcurrency(n int) Option {
	return func(o *Options) {
		o.ConnectConcurrency = n
	}
}

// ===== Subprocess Servers =====

// WithStderr sets a callback invoked for each stderr line of a subprocess
// server.
func WithStderr(fn func(serverID, line string)) Option {
	return func(o *Options) {
		o.Stderr = fn
	}
}

// WithShutdownGrace sets how long a subprocess server gets to exit after its
// stdin closes before it is killed.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *Options) {
		o.ShutdownGrace = d
	}
}

// ===== Transport =====

// WithTransportFactory replaces the built-in transports.
// This is primarily used for testing with mock transports.
func WithTransportFactory(factory TransportFactory) Option {
	return func(o *Options) {
		o.TransportFactory = factory
	}
}

// ===== Call Options =====

// CallOption configures a single tool call.
type CallOption = client.CallOption

// WithCallTimeout overrides the server's request timeout for one call.
func WithCallTimeout(d time.Duration) CallOption {
	return client.WithCallTimeout(d)
}

// WithProgress requests progress notifications for one call.
// fn runs on the connection's read loop and must not block.
func WithProgress(fn func(ProgressParams)) CallOption {
	return client.WithProgress(fn)
}
