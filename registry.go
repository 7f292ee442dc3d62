package toolhub

import (
	"context"
)

// Registry aggregates the tools of many capability servers.
//
// Tools are addressed by qualified name, "serverId:toolName". A server that
// fails to connect never affects the others, and a server that drops has
// its tools removed until it reconnects. When a server reports that its
// tool list changed, the registry refetches it in the background.
//
// All methods are safe for concurrent use. Readers never block on a
// refresh: the tool index is replaced atomically.
//
// Example usage:
//
//	reg := toolhub.New(toolhub.WithConnectConcurrency(4))
//	defer reg.Close(ctx)
//
//	for _, cfg := range configs {
//	    if err := reg.RegisterServer(cfg); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
//	reg.ConnectAll(ctx)
//
//	res := reg.CallTool(ctx, "search:query", map[string]any{"q": "golang"})
type Registry interface {
	// RegisterServer adds a server without connecting it.
	// A config with Enabled set to false is ignored.
	// Returns ErrServerExists if the id is taken.
	RegisterServer(cfg ServerConfig) error

	// UnregisterServer disconnects a server and removes it with its tools.
	UnregisterServer(ctx context.Context, id string) error

	// ConnectAll connects every registered server in parallel and indexes
	// their tools. It waits for all of them.
	ConnectAll(ctx context.Context) ConnectResult

	// ConnectServer connects one registered server and indexes its tools.
	ConnectServer(ctx context.Context, id string) error

	// DisconnectAll disconnects every server. Servers stay registered.
	DisconnectAll(ctx context.Context) error

	// Close disconnects every server.
	Close(ctx context.Context) error

	// Sync reconciles the registry with a new server list: vanished and
	// disabled servers are removed, changed ones restarted and new ones
	// registered and connected.
	Sync(ctx context.Context, configs []ServerConfig) SyncResult

	// GetAllTools returns every indexed tool, sorted by qualified name.
	GetAllTools() []ToolWrapper

	// GetToolDefinitions returns the enabled tools in model-facing form.
	GetToolDefinitions() []ToolDefinition

	// FindTools returns the tools matching f.
	FindTools(f ToolFilter) []ToolWrapper

	// GetTool looks up one tool by qualified name.
	GetTool(qualified string) (ToolWrapper, bool)

	// SetToolEnabled enables or disables one tool.
	// Returns ErrToolNotFound if it is not indexed.
	SetToolEnabled(qualified string, enabled bool) error

	// SetToolsEnabled enables or disables every tool whose qualified name
	// matches a glob pattern and returns how many changed.
	SetToolsEnabled(pattern string, enabled bool) (int, error)

	// CallTool routes a call by qualified name. It never returns an error:
	// failures come back with Success false and the reason in Content.
	CallTool(ctx context.Context, qualified string, args map[string]any, opts ...CallOption) ToolCallResult

	// GetServerInfo returns the status of one server.
	GetServerInfo(id string) (ServerStatus, error)

	// GetAllServerStatuses returns the status of every server, sorted by id.
	GetAllServerStatuses() []ServerStatus

	// ListResources lists the resources of one server.
	ListResources(ctx context.Context, serverID string) ([]Resource, error)

	// ReadResource reads a resource from one server.
	ReadResource(ctx context.Context, serverID, uri string) (*ReadResourceResult, error)

	// ListPrompts lists the prompts of one server.
	ListPrompts(ctx context.Context, serverID string) ([]Prompt, error)

	// GetPrompt renders a prompt from one server.
	GetPrompt(ctx context.Context, serverID, name string, args map[string]string) (*GetPromptResult, error)

	// Client returns the client of one server.
	Client(id string) (Client, error)

	// Subscribe registers fn for registry events. Client events of every
	// server are forwarded as EventServerEvent.
	// The returned function removes the subscription.
	Subscribe(fn func(Event)) (cancel func())
}

// New creates an empty registry.
func New(opts ...Option) Registry {
	return newRegistryImpl(applyOptions(opts))
}
