package mcp

import (
	"fmt"
	"strings"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
)

// DefaultRequestTimeout is used when a server config does not set a timeout.
const DefaultRequestTimeout = 30 * time.Second

// QualifierSeparator joins a server id and a tool name into a qualified name.
const QualifierSeparator = ":"

// TransportKind identifies how a client reaches its server.
type TransportKind string

const (
	// TransportStdio spawns the server as a subprocess and speaks over its pipes.
	TransportStdio TransportKind = "stdio"
	// TransportSSE uses Server-Sent Events. Not yet implemented.
	TransportSSE TransportKind = "sse"
	// TransportWebSocket uses a WebSocket. Not yet implemented.
	TransportWebSocket TransportKind = "websocket"
	// TransportHTTP uses the streamable HTTP transport.
	TransportHTTP TransportKind = "http"
	// TransportInProcess hosts an SDK server inside the current process.
	TransportInProcess TransportKind = "inprocess"
)

// TransportConfig is the interface for transport configurations.
// Exactly one concrete type exists per TransportKind.
type TransportConfig interface {
	Kind() TransportKind
}

// Compile-time verification that all transport config types implement TransportConfig.
var (
	_ TransportConfig = (*StdioTransport)(nil)
	_ TransportConfig = (*SSETransport)(nil)
	_ TransportConfig = (*WebSocketTransport)(nil)
	_ TransportConfig = (*HTTPTransport)(nil)
	_ TransportConfig = (*InProcessTransport)(nil)
)

// StdioTransport configures a subprocess server.
type StdioTransport struct {
	Command string            `json:"command" yaml:"command"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty" yaml:"cwd,omitempty"`
}

// Kind implements TransportConfig.
func (*StdioTransport) Kind() TransportKind { return TransportStdio }

// SSETransport configures a Server-Sent Events server.
type SSETransport struct {
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Kind implements TransportConfig.
func (*SSETransport) Kind() TransportKind { return TransportSSE }

// WebSocketTransport configures a WebSocket server.
type WebSocketTransport struct {
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Kind implements TransportConfig.
func (*WebSocketTransport) Kind() TransportKind { return TransportWebSocket }

// HTTPTransport configures a streamable HTTP server.
type HTTPTransport struct {
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Kind implements TransportConfig.
func (*HTTPTransport) Kind() TransportKind { return TransportHTTP }

// InProcessTransport hosts an SDK server in the current process.
type InProcessTransport struct {
	Server *sdkmcp.Server `json:"-" yaml:"-"`
}

// Kind implements TransportConfig.
func (*InProcessTransport) Kind() TransportKind { return TransportInProcess }

// ServerConfig describes one capability server.
//
// A ServerConfig is treated as a value: clients copy what they need at
// construction and never observe later mutation.
type ServerConfig struct {
	// ID is the registry key. It must not contain QualifierSeparator.
	ID string

	// Name is a display name. Defaults to ID.
	Name string

	// Transport selects and configures the transport.
	Transport TransportConfig

	// Enabled set to false keeps the server from ever being instantiated.
	// Nil means enabled.
	Enabled *bool

	// Timeout applies to every request. Zero means DefaultRequestTimeout.
	Timeout time.Duration

	// Trust is carried for host policy and not interpreted here.
	Trust bool

	// DisabledTools are glob patterns over tool names whose wrappers
	// start disabled.
	DisabledTools []string
}

// IsEnabled reports whether the server should be instantiated.
func (c *ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// DisplayName returns Name, falling back to ID.
func (c *ServerConfig) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}

	return c.ID
}

// RequestTimeout returns the effective per-request timeout.
func (c *ServerConfig) RequestTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}

	return DefaultRequestTimeout
}

// Validate checks the fields every transport relies on.
func (c *ServerConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty id", errors.ErrInvalidServerID)
	}

	if strings.Contains(c.ID, QualifierSeparator) {
		return fmt.Errorf("%w: %q contains %q", errors.ErrInvalidServerID, c.ID, QualifierSeparator)
	}

	if c.Transport == nil {
		return fmt.Errorf("%w: server %q has no transport", errors.ErrInvalidConfig, c.ID)
	}

	switch t := c.Transport.(type) {
	case *StdioTransport:
		if t.Command == "" {
			return fmt.Errorf("%w: server %q: stdio transport requires a command", errors.ErrInvalidConfig, c.ID)
		}
	case *HTTPTransport:
		if t.URL == "" {
			return fmt.Errorf("%w: server %q: http transport requires a url", errors.ErrInvalidConfig, c.ID)
		}
	case *InProcessTransport:
		if t.Server == nil {
			return fmt.Errorf("%w: server %q: inprocess transport requires a server", errors.ErrInvalidConfig, c.ID)
		}
	}

	return nil
}

// Bool returns a pointer to b, for ServerConfig.Enabled literals.
func Bool(b bool) *bool {
	return &b
}
