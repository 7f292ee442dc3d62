// Package protocol implements JSON-RPC 2.0 message handling for MCP servers.
//
// The protocol package provides a Controller that manages request/response
// correlation over a byte-stream transport. Inbound bytes are split into
// newline-delimited messages by a LineBuffer; each complete line is parsed
// independently and routed as a response, a notification or a
// server-initiated request.
//
// The Controller handles:
//   - Sending requests with strictly increasing integer ids
//   - Correlating responses to waiting callers by id
//   - Per-request timeout enforcement
//   - Rejecting every pending request when the connection closes
//   - Answering server-initiated requests (ping, method not found)
//
// Example usage:
//
//	controller := protocol.NewController(log, transport)
//	controller.SetNotificationHandler(onNotification)
//	controller.Start(ctx)
//
//	result, err := controller.Request(ctx, "tools/list", nil, 30*time.Second)
package protocol
