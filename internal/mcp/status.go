package mcp

import "time"

// ConnectionState is the lifecycle state of one client connection.
type ConnectionState string

const (
	// StateDisconnected is the initial state and the state after a disconnect
	// or transport exit.
	StateDisconnected ConnectionState = "disconnected"
	// StateConnecting covers transport start and the initialize handshake.
	StateConnecting ConnectionState = "connecting"
	// StateConnected means the handshake completed.
	StateConnected ConnectionState = "connected"
	// StateError means the last connect attempt failed.
	StateError ConnectionState = "error"
)

// ConnectionInfo is a snapshot of a client's connection.
type ConnectionInfo struct {
	State       ConnectionState `json:"state"`
	ServerInfo  *ServerInfo     `json:"serverInfo,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
	LastErrorAt time.Time       `json:"lastErrorAt,omitzero"`
	ConnectedAt time.Time       `json:"connectedAt,omitzero"`
}

// ServerInfo is what the server reported during the handshake.
type ServerInfo struct {
	Name            string             `json:"name"`
	Version         string             `json:"version"`
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	Instructions    string             `json:"instructions,omitempty"`
}

// ServerStatus represents the status of a single registered server.
type ServerStatus struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Connection ConnectionInfo `json:"connection"`
	ToolCount  int            `json:"toolCount"`
}
