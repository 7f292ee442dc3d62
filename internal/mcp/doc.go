// Package mcp defines the Model Context Protocol data model used by toolhub.
//
// It holds the server and transport configuration union, the connection
// state reported per server, and the wire types exchanged during the
// initialize handshake and the tools, resources and prompts operations.
package mcp
