// Package inprocess hosts an MCP server from the official Go SDK inside the
// current process and exposes it through the toolhub transport contract.
//
// The server and the client speak newline-delimited JSON-RPC over a pair of
// in-memory pipes, so the client exercises exactly the same framing and
// correlation code it uses for subprocess servers.
package inprocess
