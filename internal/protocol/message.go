package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
)

// Version is the JSON-RPC version carried on every message.
const Version = "2.0"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is an outbound JSON-RPC request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Notification is an outbound JSON-RPC notification.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is an outbound reply to a server-initiated request.
type Response struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id"`
	Result  any              `json:"result,omitempty"`
	Error   *errors.RPCError `json:"error,omitempty"`
}

// Message is any inbound JSON-RPC message.
//
// Wire shapes:
//
//	{"jsonrpc":"2.0","id":1,"result":{...}}              response
//	{"jsonrpc":"2.0","id":1,"error":{"code":..}}         error response
//	{"jsonrpc":"2.0","method":"notifications/..."}       notification
//	{"jsonrpc":"2.0","id":"a","method":"ping"}           server request
type Message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      json.RawMessage  `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *errors.RPCError `json:"error,omitempty"`
}

// HasID reports whether the message carries a non-null id.
func (m *Message) HasID() bool {
	return len(m.ID) > 0 && !bytes.Equal(m.ID, []byte("null"))
}

// IsRequest reports whether the message is a server-initiated request.
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.HasID()
}

// IsNotification reports whether the message is a notification.
func (m *Message) IsNotification() bool {
	return m.Method != "" && !m.HasID()
}

// IsResponse reports whether the message answers one of our requests.
func (m *Message) IsResponse() bool {
	return m.Method == "" && m.HasID()
}

// IntID returns the id as an integer. Servers echo the integer ids this
// client sends; some echo them as strings.
func (m *Message) IntID() (int64, bool) {
	var n int64
	if err := json.Unmarshal(m.ID, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(m.ID, &s); err != nil {
		return 0, false
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// ParseMessage decodes one line into a Message.
func ParseMessage(line []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, &errors.JSONDecodeError{RawData: string(line), Err: err}
	}

	return &msg, nil
}
