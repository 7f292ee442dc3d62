// Package subprocess provides the stdio transport for capability servers.
//
// This package implements the Transport interface by spawning a server as a
// child process and communicating via stdin/stdout. It handles process
// lifecycle management, stderr capture, and graceful termination.
package subprocess
