package errors

import (
	"errors"
	"fmt"
)

// ToolhubError is the base interface for all toolhub errors.
type ToolhubError interface {
	error
	IsToolhubError() bool
}

// Compile-time verification that all error types implement ToolhubError.
var (
	_ ToolhubError = (*ConnectionError)(nil)
	_ ToolhubError = (*ProcessError)(nil)
	_ ToolhubError = (*JSONDecodeError)(nil)
	_ ToolhubError = (*RPCError)(nil)
	_ ToolhubError = (*ProtocolVersionError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates the client is not connected to its server.
	ErrNotConnected = errors.New("client not connected")

	// ErrConnectionClosed indicates the connection closed while a request was pending.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrNotImplemented indicates the configured transport kind has no implementation.
	ErrNotImplemented = errors.New("transport not yet implemented")

	// ErrTransportNotConnected indicates the transport is not connected.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrStdinClosed indicates stdin was closed due to context cancellation.
	ErrStdinClosed = errors.New("stdin closed")

	// ErrInvalidQualifiedName indicates a qualified tool name is not "serverId:toolName".
	ErrInvalidQualifiedName = errors.New("invalid qualified tool name")

	// ErrInvalidServerID indicates a server id is empty or contains the qualifier separator.
	ErrInvalidServerID = errors.New("invalid server id")

	// ErrInvalidConfig indicates a server configuration failed validation.
	ErrInvalidConfig = errors.New("invalid server config")

	// ErrServerNotFound indicates no server is registered under the given id.
	ErrServerNotFound = errors.New("server not found")

	// ErrServerExists indicates a server with the same id is already registered.
	ErrServerExists = errors.New("server already registered")

	// ErrToolNotFound indicates no tool is indexed under the given qualified name.
	ErrToolNotFound = errors.New("tool not found")
)

// ConnectionError indicates failure to connect to a capability server.
type ConnectionError struct {
	ServerID string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.ServerID == "" {
		return fmt.Sprintf("failed to connect: %v", e.Err)
	}

	return fmt.Sprintf("failed to connect to server %q: %v", e.ServerID, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsToolhubError implements ToolhubError.
func (e *ConnectionError) IsToolhubError() bool { return true }

// ProcessError indicates a server subprocess exited unexpectedly.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("server process exited (exit %d): %s", e.ExitCode, e.Stderr)
	}

	if e.Err != nil {
		return fmt.Sprintf("server process exited (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("server process exited (exit %d)", e.ExitCode)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsToolhubError implements ToolhubError.
func (e *ProcessError) IsToolhubError() bool { return true }

// JSONDecodeError indicates an inbound line was not a valid JSON-RPC message.
// This error preserves the original raw data that failed to parse.
type JSONDecodeError struct {
	RawData string
	Err     error
}

func (e *JSONDecodeError) Error() string {
	return fmt.Sprintf("failed to decode JSON-RPC message: %v", e.Err)
}

func (e *JSONDecodeError) Unwrap() error {
	return e.Err
}

// IsToolhubError implements ToolhubError.
func (e *JSONDecodeError) IsToolhubError() bool { return true }

// RPCError is a JSON-RPC error object returned by a server.
//
// Error returns the server's message unchanged so callers can surface it as-is.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// IsToolhubError implements ToolhubError.
func (e *RPCError) IsToolhubError() bool { return true }

// ProtocolVersionError indicates the server negotiated a protocol version the
// client does not speak.
type ProtocolVersionError struct {
	Requested string
	Received  string
}

func (e *ProtocolVersionError) Error() string {
	return fmt.Sprintf("unsupported protocol version %q (client speaks %q)", e.Received, e.Requested)
}

// IsToolhubError implements ToolhubError.
func (e *ProtocolVersionError) IsToolhubError() bool { return true }

// AsRPCError extracts an *RPCError from err's chain.
func AsRPCError(err error) (*RPCError, bool) {
	return errors.AsType[*RPCError](err)
}
