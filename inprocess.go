package toolhub

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/mcp-toolhub-go/internal/inprocess"
)

// Re-export MCP SDK types for in-process servers.
// These are the official MCP protocol types, used on the server side.
type (
	// McpServer is an SDK server that can be hosted with InProcessTransport.
	McpServer = mcp.Server

	// McpCallToolResult is what an in-process tool handler returns.
	// Use TextResult, ErrorResult, or ImageResult helpers to create results.
	McpCallToolResult = mcp.CallToolResult

	// McpCallToolRequest is the request passed to in-process tool handlers.
	McpCallToolRequest = mcp.CallToolRequest

	// McpContent is the interface for content types in tool results.
	McpContent = mcp.Content

	// McpTextContent represents text content in a tool result.
	McpTextContent = mcp.TextContent

	// McpImageContent represents image content in a tool result.
	McpImageContent = mcp.ImageContent

	// McpTool is an SDK tool definition.
	McpTool = mcp.Tool

	// McpToolHandler is the function signature for in-process tool handlers.
	McpToolHandler = mcp.ToolHandler

	// McpToolAnnotations describes optional hints about tool behavior.
	// Fields include ReadOnlyHint, DestructiveHint, IdempotentHint,
	// OpenWorldHint, and Title.
	McpToolAnnotations = mcp.ToolAnnotations

	// Schema is a JSON Schema object for tool input validation.
	Schema = jsonschema.Schema
)

// InProcessToolOption configures an InProcessTool during construction.
type InProcessToolOption func(*InProcessTool)

// WithAnnotations sets MCP tool annotations (hints about tool behavior).
func WithAnnotations(annotations *mcp.ToolAnnotations) InProcessToolOption {
	return func(t *InProcessTool) {
		t.Annotations = annotations
	}
}

// InProcessTool is a tool served by an in-process server.
type InProcessTool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Handler     McpToolHandler
	Annotations *mcp.ToolAnnotations
}

// NewInProcessTool creates an InProcessTool.
//
// Example:
//
//	add := toolhub.NewInProcessTool("add", "Add two numbers",
//	    toolhub.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
//	    func(ctx context.Context, req *toolhub.McpCallToolRequest) (*toolhub.McpCallToolResult, error) {
//	        args, err := toolhub.ParseArguments(req)
//	        if err != nil {
//	            return toolhub.ErrorResult(err.Error()), nil
//	        }
//	        a, _ := args["a"].(float64)
//	        b, _ := args["b"].(float64)
//	        return toolhub.TextResult(fmt.Sprint(a + b)), nil
//	    },
//	    toolhub.WithAnnotations(&toolhub.McpToolAnnotations{ReadOnlyHint: true}),
//	)
func NewInProcessTool(
	name, description string,
	inputSchema *jsonschema.Schema,
	handler McpToolHandler,
	opts ...InProcessToolOption,
) *InProcessTool {
	t := &InProcessTool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
		Handler:     handler,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// NewInProcessServer creates an SDK server serving tools.
// Host it by putting it in an InProcessTransport:
//
//	server := toolhub.NewInProcessServer("calc", "1.0.0", add)
//	cfg := toolhub.ServerConfig{ID: "calc", Transport: &toolhub.InProcessTransport{Server: server}}
func NewInProcessServer(name, version string, tools ...*InProcessTool) *McpServer {
	server := inprocess.NewServer(name, version)

	for _, t := range tools {
		tool := inprocess.NewTool(t.Name, t.Description, t.InputSchema)
		tool.Annotations = t.Annotations

		server.AddTool(tool, t.Handler)
	}

	return server
}

// InProcessServerConfig returns a ServerConfig hosting server in-process.
func InProcessServerConfig(id string, server *McpServer) ServerConfig {
	return ServerConfig{ID: id, Transport: &InProcessTransport{Server: server}}
}

// SimpleSchema creates a jsonschema.Schema from a simple type map.
//
// Input format: {"a": "float64", "b": "string"}
//
// Type mappings:
//   - "string"           → {"type": "string"}
//   - "int", "int64"     → {"type": "integer"}
//   - "float64", "float" → {"type": "number"}
//   - "bool"             → {"type": "boolean"}
//   - "[]string"         → {"type": "array", "items": {"type": "string"}}
//   - "any", "object"    → {"type": "object"}
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	return inprocess.SimpleSchema(props)
}

// TextResult creates a tool result with text content.
func TextResult(text string) *mcp.CallToolResult {
	return inprocess.TextResult(text)
}

// ErrorResult creates a tool result indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return inprocess.ErrorResult(message)
}

// ImageResult creates a tool result with image content.
func ImageResult(data []byte, mimeType string) *mcp.CallToolResult {
	return inprocess.ImageResult(data, mimeType)
}

// ParseArguments unmarshals tool call arguments into a map.
func ParseArguments(req *mcp.CallToolRequest) (map[string]any, error) {
	return inprocess.ParseArguments(req)
}
