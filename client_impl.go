package toolhub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/client"
	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl(cfg ServerConfig, opts *config.Options) Client {
	return &clientWrapper{impl: client.New(cfg, opts)}
}

func (c *clientWrapper) ID() string {
	return c.impl.ID()
}

func (c *clientWrapper) Config() ServerConfig {
	return c.impl.Config()
}

func (c *clientWrapper) Info() ConnectionInfo {
	return c.impl.Info()
}

func (c *clientWrapper) State() ConnectionState {
	return c.impl.State()
}

func (c *clientWrapper) IsConnected() bool {
	return c.impl.IsConnected()
}

func (c *clientWrapper) Connect(ctx context.Context) error {
	return c.impl.Connect(ctx)
}

func (c *clientWrapper) Disconnect(ctx context.Context) error {
	return c.impl.Disconnect(ctx)
}

func (c *clientWrapper) ListTools(ctx context.Context) ([]Tool, error) {
	return c.impl.ListTools(ctx)
}

func (c *clientWrapper) CallTool(
	ctx context.Context,
	name string,
	args map[string]any,
	opts ...CallOption,
) (*CallToolResult, error) {
	return c.impl.CallTool(ctx, mcp.CallToolParams{Name: name, Arguments: args}, opts...)
}

func (c *clientWrapper) ListResources(ctx context.Context) ([]Resource, error) {
	return c.impl.ListResources(ctx)
}

func (c *clientWrapper) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	return c.impl.ReadResource(ctx, uri)
}

func (c *clientWrapper) SubscribeResource(ctx context.Context, uri string) error {
	return c.impl.SubscribeResource(ctx, uri)
}

func (c *clientWrapper) UnsubscribeResource(ctx context.Context, uri string) error {
	return c.impl.UnsubscribeResource(ctx, uri)
}

func (c *clientWrapper) ListPrompts(ctx context.Context) ([]Prompt, error) {
	return c.impl.ListPrompts(ctx)
}

func (c *clientWrapper) GetPrompt(ctx context.Context, name string, args map[string]string) (*GetPromptResult, error) {
	return c.impl.GetPrompt(ctx, name, args)
}

func (c *clientWrapper) Ping(ctx context.Context) error {
	return c.impl.Ping(ctx)
}

func (c *clientWrapper) Request(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (json.RawMessage, error) {
	return c.impl.Request(ctx, method, params, timeout)
}

func (c *clientWrapper) Subscribe(fn func(ClientEvent)) (cancel func()) {
	return c.impl.Subscribe(fn)
}
