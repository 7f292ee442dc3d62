package toolhub

import "github.com/wagiedev/mcp-toolhub-go/internal/errors"

// Re-export error types from internal package

// ConnectionError indicates failure to connect to a capability server.
type ConnectionError = errors.ConnectionError

// ProcessError indicates a subprocess server exited unexpectedly.
type ProcessError = errors.ProcessError

// JSONDecodeError indicates an inbound line was not valid JSON-RPC.
type JSONDecodeError = errors.JSONDecodeError

// RPCError is a JSON-RPC error returned by a server.
type RPCError = errors.RPCError

// ProtocolVersionError indicates the server speaks another protocol version.
type ProtocolVersionError = errors.ProtocolVersionError

// ToolhubError is the base interface for all toolhub errors.
type ToolhubError = errors.ToolhubError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.ErrNotConnected

	// ErrConnectionClosed indicates the connection closed while a request was pending.
	ErrConnectionClosed = errors.ErrConnectionClosed

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrNotImplemented indicates the transport kind has no implementation yet.
	ErrNotImplemented = errors.ErrNotImplemented

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrInvalidQualifiedName indicates a name is not "serverId:toolName".
	ErrInvalidQualifiedName = errors.ErrInvalidQualifiedName

	// ErrInvalidServerID indicates an empty server id or one containing ":".
	ErrInvalidServerID = errors.ErrInvalidServerID

	// ErrInvalidConfig indicates a server config failed validation.
	ErrInvalidConfig = errors.ErrInvalidConfig

	// ErrServerNotFound indicates no server is registered under the id.
	ErrServerNotFound = errors.ErrServerNotFound

	// ErrServerExists indicates the server id is already registered.
	ErrServerExists = errors.ErrServerExists

	// ErrToolNotFound indicates no tool is indexed under the name.
	ErrToolNotFound = errors.ErrToolNotFound
)
