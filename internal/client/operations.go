package client

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// maxPages bounds pagination against servers that never stop returning a
// cursor.
const maxPages = 1000

// CallOption configures a single tool call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout    time.Duration
	onProgress func(mcp.ProgressParams)
}

// WithCallTimeout overrides the server's request timeout for one call.
func WithCallTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// WithProgress requests progress notifications for one call and delivers
// them to fn on the connection's read loop.
func WithProgress(fn func(mcp.ProgressParams)) CallOption {
	return func(o *callOptions) {
		o.onProgress = fn
	}
}

// ListTools returns the server's tools, following pagination. The result is
// cached until the server reports a change or the connection ends.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	return cachedList(ctx, c, &c.tools, mcp.MethodToolsList, decodeTools)
}

// RefreshTools re-lists the tools over the current connection, bypassing
// the cache. Unlike ListTools it never reconnects: a disconnected client
// fails with ErrNotConnected.
func (c *Client) RefreshTools(ctx context.Context) ([]mcp.Tool, error) {
	c.mu.Lock()
	c.tools.invalidate()
	c.mu.Unlock()

	return cachedList(ctx, c, &c.tools, mcp.MethodToolsList, decodeTools)
}

func decodeTools(raw json.RawMessage) ([]mcp.Tool, string, error) {
	var page mcp.ListToolsResult
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, "", err
	}

	return page.Tools, page.NextCursor, nil
}

// ListResources returns the server's resources, following pagination.
func (c *Client) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	return cachedList(ctx, c, &c.resources, mcp.MethodResourcesList,
		func(raw json.RawMessage) ([]mcp.Resource, string, error) {
			var page mcp.ListResourcesResult
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, "", err
			}

			return page.Resources, page.NextCursor, nil
		})
}

// ListPrompts returns the server's prompts, following pagination.
func (c *Client) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	return cachedList(ctx, c, &c.prompts, mcp.MethodPromptsList,
		func(raw json.RawMessage) ([]mcp.Prompt, string, error) {
			var page mcp.ListPromptsResult
			if err := json.Unmarshal(raw, &page); err != nil {
				return nil, "", err
			}

			return page.Prompts, page.NextCursor, nil
		})
}

// cachedList serves a list from cache or fetches every page over the current
// connection.
func cachedList[T any](
	ctx context.Context,
	c *Client,
	cache *listCache[T],
	method string,
	decode func(json.RawMessage) ([]T, string, error),
) ([]T, error) {
	c.mu.RLock()
	items, valid, gen := cache.snapshot()
	c.mu.RUnlock()

	if valid {
		return items, nil
	}

	var (
		all    []T
		cursor string
		seen   = make(map[string]bool)
	)

	for range maxPages {
		var params any
		if cursor != "" {
			params = mcp.PaginatedParams{Cursor: cursor}
		}

		raw, err := c.request(ctx, method, params, 0)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}

		page, next, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s result: %w", method, err)
		}

		all = append(all, page...)

		if next == "" {
			break
		}

		if seen[next] {
			return nil, fmt.Errorf("%s: server repeated cursor %q", method, next)
		}

		seen[next] = true
		cursor = next
	}

	c.mu.Lock()
	if cache.gen == gen {
		cache.items = all
		cache.valid = true
	}
	c.mu.Unlock()

	c.log.Debug("Listed", "method", method, "count", len(all))

	return slices.Clone(all), nil
}

// CallTool invokes a tool. A result with IsError set is returned as data,
// not as an error.
func (c *Client) CallTool(ctx context.Context, params mcp.CallToolParams, opts ...CallOption) (*mcp.CallToolResult, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	if o.onProgress != nil {
		token := uuid.NewString()
		params.Meta = &mcp.RequestMeta{ProgressToken: token}

		c.progressMu.Lock()
		c.progress[token] = o.onProgress
		c.progressMu.Unlock()

		defer func() {
			c.progressMu.Lock()
			delete(c.progress, token)
			c.progressMu.Unlock()
		}()
	}

	c.log.Debug("Calling tool", "tool", params.Name)

	raw, err := c.Request(ctx, mcp.MethodToolsCall, params, o.timeout)
	if err != nil {
		return nil, fmt.Errorf("call tool %q: %w", params.Name, err)
	}

	var result mcp.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tool result: %w", err)
	}

	result.ToolName = params.Name

	return &result, nil
}

// ReadResource reads one resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	raw, err := c.Request(ctx, mcp.MethodResourcesRead, mcp.ReadResourceParams{URI: uri}, 0)
	if err != nil {
		return nil, fmt.Errorf("read resource %q: %w", uri, err)
	}

	var result mcp.ReadResourceResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode resource: %w", err)
	}

	return &result, nil
}

// GetPrompt renders a prompt with the given arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	raw, err := c.Request(ctx, mcp.MethodPromptsGet, mcp.GetPromptParams{Name: name, Arguments: args}, 0)
	if err != nil {
		return nil, fmt.Errorf("get prompt %q: %w", name, err)
	}

	var result mcp.GetPromptResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode prompt: %w", err)
	}

	return &result, nil
}

// Ping checks that the server answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.Request(ctx, mcp.MethodPing, nil, 0); err != nil {
		return fmt.Errorf("ping: %w", err)
	}

	return nil
}

// SubscribeResource asks for resource_updated notifications for uri.
// It does not wait for an acknowledgement.
func (c *Client) SubscribeResource(ctx context.Context, uri string) error {
	return c.Notify(ctx, mcp.MethodResourcesSubscribe, mcp.SubscribeParams{URI: uri})
}

// UnsubscribeResource stops resource_updated notifications for uri.
func (c *Client) UnsubscribeResource(ctx context.Context, uri string) error {
	return c.Notify(ctx, mcp.MethodResourcesUnsubscribe, mcp.SubscribeParams{URI: uri})
}
