package registry

import (
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// ToolWrapper is one indexed tool.
type ToolWrapper struct {
	Tool          mcp.Tool `json:"tool"`
	ServerID      string   `json:"serverId"`
	ServerName    string   `json:"serverName"`
	QualifiedName string   `json:"qualifiedName"`
	Enabled       bool     `json:"enabled"`
}

// ToolDefinition is the shape handed to a model's tool-calling API.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// ToolFilter selects wrappers in FindTools. Zero fields match everything.
type ToolFilter struct {
	ServerID string
	Enabled  *bool
	// Pattern is a doublestar glob over qualified names, e.g. "github:*".
	Pattern string
}

// ToolCallResult is the normalized outcome of a registry tool call.
//
// Success is false when the tool reported an error, or when the call never
// reached a tool; Content then carries the reason.
type ToolCallResult struct {
	Success  bool                `json:"success"`
	ToolName string              `json:"toolName"`
	ServerID string              `json:"serverId,omitempty"`
	Content  string              `json:"content"`
	IsError  bool                `json:"isError"`
	Duration time.Duration       `json:"duration"`
	Raw      *mcp.CallToolResult `json:"raw,omitempty"`
}

// ConnectResult reports the outcome of ConnectAll.
type ConnectResult struct {
	Connected []string         `json:"connected"`
	Failed    map[string]error `json:"-"`
}

// SyncResult reports what changed after a Sync call.
type SyncResult struct {
	Added   []string         `json:"added,omitempty"`
	Removed []string         `json:"removed,omitempty"`
	Errors  map[string]error `json:"-"`
}
