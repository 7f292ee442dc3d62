package inprocess

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer creates an SDK server to register tools on.
func NewServer(name, version string) *sdkmcp.Server {
	return sdkmcp.NewServer(&sdkmcp.Implementation{Name: name, Version: version}, nil)
}

// NewTool creates an sdk Tool with the given parameters.
// A nil schema becomes an empty object schema.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *sdkmcp.Tool {
	if inputSchema == nil {
		inputSchema = &jsonschema.Schema{Type: "object"}
	}

	return &sdkmcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// SimpleSchema creates an object schema from a simple type map.
//
// Input format: {"a": "float64", "b": "string"}. Every property is required.
func SimpleSchema(props map[string]string) *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(props))
	required := make([]string, 0, len(props))

	for name, goType := range props {
		properties[name] = goTypeToJSONSchema(goType)
		required = append(required, name)
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func goTypeToJSONSchema(goType string) *jsonschema.Schema {
	switch goType {
	case "string":
		return &jsonschema.Schema{Type: "string"}
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return &jsonschema.Schema{Type: "integer"}
	case "float32", "float64", "float", "number":
		return &jsonschema.Schema{Type: "number"}
	case "bool", "boolean":
		return &jsonschema.Schema{Type: "boolean"}
	case "any", "object", "map[string]any":
		return &jsonschema.Schema{Type: "object"}
	}

	if item, ok := strings.CutPrefix(goType, "[]"); ok && item != "" {
		return &jsonschema.Schema{Type: "array", Items: goTypeToJSONSchema(item)}
	}

	return &jsonschema.Schema{Type: "string"}
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}},
	}
}

// ErrorResult creates a CallToolResult reporting a tool-level failure.
func ErrorResult(message string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: message}},
		IsError: true,
	}
}

// ImageResult creates a CallToolResult with image content.
func ImageResult(data []byte, mimeType string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.ImageContent{Data: data, MIMEType: mimeType}},
	}
}

// ParseArguments unmarshals CallToolRequest arguments into a map.
func ParseArguments(req *sdkmcp.CallToolRequest) (map[string]any, error) {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return make(map[string]any), nil
	}

	var args map[string]any
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return args, nil
}
