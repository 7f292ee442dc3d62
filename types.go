package toolhub

import (
	"github.com/wagiedev/mcp-toolhub-go/internal/client"
	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
	"github.com/wagiedev/mcp-toolhub-go/internal/registry"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures clients and the registry.
type Options = config.Options

// ServerConfig describes one capability server.
type ServerConfig = mcp.ServerConfig

// TransportKind identifies how a client reaches its server.
type TransportKind = mcp.TransportKind

const (
	// TransportStdio spawns the server as a subprocess.
	TransportStdio = mcp.TransportStdio
	// TransportHTTP uses the streamable HTTP transport.
	TransportHTTP = mcp.TransportHTTP
	// TransportSSE uses Server-Sent Events. Not yet implemented.
	TransportSSE = mcp.TransportSSE
	// TransportWebSocket uses a WebSocket. Not yet implemented.
	TransportWebSocket = mcp.TransportWebSocket
	// TransportInProcess hosts an SDK server in the current process.
	TransportInProcess = mcp.TransportInProcess
)

// TransportConfig is implemented by every transport configuration.
type TransportConfig = mcp.TransportConfig

// StdioTransport configures a subprocess server.
type StdioTransport = mcp.StdioTransport

// HTTPTransport configures a streamable HTTP server.
type HTTPTransport = mcp.HTTPTransport

// SSETransport configures a Server-Sent Events server.
type SSETransport = mcp.SSETransport

// WebSocketTransport configures a WebSocket server.
type WebSocketTransport = mcp.WebSocketTransport

// InProcessTransport hosts an SDK server in the current process.
type InProcessTransport = mcp.InProcessTransport

// DefaultRequestTimeout is used when neither the server config nor the
// options set a timeout.
const DefaultRequestTimeout = mcp.DefaultRequestTimeout

// ProtocolVersion is the protocol revision negotiated during the handshake.
const ProtocolVersion = mcp.ProtocolVersion

// Bool returns a pointer to b, for ServerConfig.Enabled.
func Bool(b bool) *bool {
	return mcp.Bool(b)
}

// ===== Connection Status =====

// ConnectionState is the lifecycle state of one client connection.
type ConnectionState = mcp.ConnectionState

const (
	// StateDisconnected is the initial state.
	StateDisconnected = mcp.StateDisconnected
	// StateConnecting covers transport start and the handshake.
	StateConnecting = mcp.StateConnecting
	// StateConnected means the handshake completed.
	StateConnected = mcp.StateConnected
	// StateError means the last connect attempt failed.
	StateError = mcp.StateError
)

// ConnectionInfo is a snapshot of a client's connection.
type ConnectionInfo = mcp.ConnectionInfo

// ServerInfo is what a server reported during the handshake.
type ServerInfo = mcp.ServerInfo

// ServerStatus is the status of one registered server.
type ServerStatus = mcp.ServerStatus

// Implementation names a client or server implementation.
type Implementation = mcp.Implementation

// Root is a directory or file exposed to servers through roots/list.
type Root = mcp.Root

// ServerCapabilities is what a server advertised during the handshake.
type ServerCapabilities = mcp.ServerCapabilities

// ===== Protocol Types =====

// Tool describes a tool exposed by a server.
type Tool = mcp.Tool

// ToolAnnotations are behavioral hints reported by a server.
type ToolAnnotations = mcp.ToolAnnotations

// CallToolResult is the normalized result of tools/call.
type CallToolResult = mcp.CallToolResult

// Content is one block of tool output or prompt message content.
type Content = mcp.Content

// Resource describes a resource exposed by a server.
type Resource = mcp.Resource

// ReadResourceResult is the result of resources/read.
type ReadResourceResult = mcp.ReadResourceResult

// ResourceContents is one entry of a ReadResourceResult.
type ResourceContents = mcp.ResourceContents

// Prompt describes a prompt template exposed by a server.
type Prompt = mcp.Prompt

// PromptArgument is one argument of a Prompt.
type PromptArgument = mcp.PromptArgument

// GetPromptResult is the result of prompts/get.
type GetPromptResult = mcp.GetPromptResult

// PromptMessage is one message of a rendered prompt.
type PromptMessage = mcp.PromptMessage

// ProgressParams is a progress notification for an in-flight request.
type ProgressParams = mcp.ProgressParams

// LoggingMessageParams is a log message sent by a server.
type LoggingMessageParams = mcp.LoggingMessageParams

// ===== Registry Types =====

// ToolWrapper is a registry entry for one tool of one server.
type ToolWrapper = registry.ToolWrapper

// ToolDefinition is the model-facing description of a tool.
type ToolDefinition = registry.ToolDefinition

// ToolFilter selects tools in FindTools.
type ToolFilter = registry.ToolFilter

// ToolCallResult is the normalized outcome of a registry tool call.
type ToolCallResult = registry.ToolCallResult

// ConnectResult reports which servers connected.
type ConnectResult = registry.ConnectResult

// SyncResult reports what a Sync changed.
type SyncResult = registry.SyncResult

// QualifyName joins a server id and tool name as "serverId:toolName".
func QualifyName(serverID, toolName string) string {
	return registry.QualifyName(serverID, toolName)
}

// ParseQualifiedName splits "serverId:toolName".
func ParseQualifiedName(qualified string) (serverID, toolName string, err error) {
	return registry.ParseQualifiedName(qualified)
}

// FlattenContent renders content blocks as text for a model.
func FlattenContent(blocks []Content) string {
	return registry.FlattenContent(blocks)
}

// ===== Events =====

// Event is published by a Registry.
type Event = registry.Event

// EventType identifies a registry event.
type EventType = registry.EventType

const (
	EventServerRegistered   = registry.EventServerRegistered
	EventServerUnregistered = registry.EventServerUnregistered
	EventServerConnected    = registry.EventServerConnected
	EventServerError        = registry.EventServerError
	EventAllDisconnected    = registry.EventAllDisconnected
	EventToolToggled        = registry.EventToolToggled
	EventToolsRefreshed     = registry.EventToolsRefreshed
	EventServerEvent        = registry.EventServerEvent
)

// ClientEvent is published by a Client, and forwarded by a Registry inside
// EventServerEvent.
type ClientEvent = client.Event

// ClientEventType identifies a client event.
type ClientEventType = client.EventType

const (
	ClientEventConnected        = client.EventConnected
	ClientEventDisconnected     = client.EventDisconnected
	ClientEventError            = client.EventError
	ClientEventToolsChanged     = client.EventToolsChanged
	ClientEventResourcesChanged = client.EventResourcesChanged
	ClientEventPromptsChanged   = client.EventPromptsChanged
	ClientEventProgress         = client.EventProgress
	ClientEventLog              = client.EventLog
	ClientEventResourceUpdated  = client.EventResourceUpdated
)
