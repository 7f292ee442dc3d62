// Package client implements the protocol client for one capability server.
//
// A Client owns a single connection: it creates the transport, runs the
// initialize handshake, correlates requests and responses through a
// protocol.Controller, and exposes typed MCP operations. Connection changes,
// list-changed notifications, progress and server log messages are published
// as events.
//
// Every typed operation connects on demand, so callers may skip Connect.
// A transport exit is handled as a disconnect: pending requests fail with
// ErrConnectionClosed and the next operation reconnects.
package client
