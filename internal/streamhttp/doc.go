// Package streamhttp provides the streamable HTTP transport for capability
// servers.
//
// Every outbound message is POSTed to the server endpoint. The server
// answers with a JSON body, an SSE stream of messages, or 202 Accepted for
// notifications. Inbound messages from either body kind are surfaced as
// newline-terminated chunks, so the protocol layer frames them exactly as
// it frames a subprocess stdout.
package streamhttp
