package toolhub

import (
	"context"
	"encoding/json"
	"time"
)

// Client is a connection to one capability server.
//
// Typed operations connect on demand, so Connect is optional. A dropped
// connection fails in-flight requests with ErrConnectionClosed and the next
// operation reconnects.
//
// Lifecycle: a Client can be connected and disconnected any number of times.
// Its config is fixed at construction.
//
// Example usage:
//
//	client := toolhub.NewClient(toolhub.ServerConfig{
//	    ID:        "files",
//	    Transport: &toolhub.StdioTransport{Command: "mcp-server-filesystem", Args: []string{"."}},
//	}, toolhub.WithLogger(slog.Default()))
//	defer client.Disconnect(ctx)
//
//	tools, err := client.ListTools(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := client.CallTool(ctx, tools[0].Name, map[string]any{"path": "go.mod"},
//	    toolhub.WithCallTimeout(time.Minute),
//	)
type Client interface {
	// ID returns the server id from the config.
	ID() string

	// Config returns the server config the client was built with.
	Config() ServerConfig

	// Info returns a snapshot of the connection.
	Info() ConnectionInfo

	// State returns the current connection state.
	State() ConnectionState

	// IsConnected reports whether the handshake has completed and the
	// connection is still up.
	IsConnected() bool

	// Connect starts the transport and runs the initialize handshake.
	// It is a no-op when already connected.
	// Returns a *ConnectionError wrapping the cause on failure.
	Connect(ctx context.Context) error

	// Disconnect closes the connection and rejects pending requests.
	// It is a no-op when not connected.
	Disconnect(ctx context.Context) error

	// ListTools returns every tool of the server, following pagination.
	// The result is cached until the server reports a change.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool invokes a tool. A tool-level failure is reported through
	// CallToolResult.IsError, not as an error.
	CallTool(ctx context.Context, name string, args map[string]any, opts ...CallOption) (*CallToolResult, error)

	// ListResources returns every resource of the server.
	ListResources(ctx context.Context) ([]Resource, error)

	// ReadResource reads one resource by URI.
	ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error)

	// SubscribeResource asks the server for update notifications on uri.
	SubscribeResource(ctx context.Context, uri string) error

	// UnsubscribeResource cancels a SubscribeResource.
	UnsubscribeResource(ctx context.Context, uri string) error

	// ListPrompts returns every prompt of the server.
	ListPrompts(ctx context.Context) ([]Prompt, error)

	// GetPrompt renders a prompt with arguments.
	GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error)

	// Ping checks the server is responsive.
	Ping(ctx context.Context) error

	// Request sends a raw JSON-RPC request and returns the raw result.
	// A zero timeout uses the server's request timeout.
	Request(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error)

	// Subscribe registers fn for connection and notification events.
	// fn runs synchronously on the publishing goroutine.
	// The returned function removes the subscription.
	Subscribe(fn func(ClientEvent)) (cancel func())
}

// NewClient creates a client for one server. No connection is made until
// Connect or the first operation.
func NewClient(cfg ServerConfig, opts ...Option) Client {
	return newClientImpl(cfg, applyOptions(opts))
}
