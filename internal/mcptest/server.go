// Package mcptest provides a scriptable in-memory MCP server for tests.
//
// A Server holds the script (handlers per method) and hands out one Conn per
// connect attempt, so a client can reconnect after a simulated exit. Conn
// implements config.Transport.
package mcptest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
	"github.com/wagiedev/mcp-toolhub-go/internal/protocol"
)

// Handler answers one request. Returning an *errors.RPCError sends that
// error object; any other error becomes an internal error.
type Handler func(params json.RawMessage) (any, error)

// ToolHandler answers tools/call.
type ToolHandler func(params mcp.CallToolParams) (*mcp.CallToolResult, error)

// Server is a scripted capability server.
type Server struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	silent    map[string]bool
	delays    map[string]time.Duration
	startErr  error
	tools     []mcp.Tool
	pageSize  int
	conns     []*Conn
	notified  []string
	responses []*protocol.Message
	calls     map[string]int
}

// Compile-time check that Conn satisfies the transport contract.
var _ config.Transport = (*Conn)(nil)

// NewServer creates a server that completes the handshake and serves an
// empty tool list.
func NewServer() *Server {
	s := &Server{
		handlers: make(map[string]Handler),
		silent:   make(map[string]bool),
		delays:   make(map[string]time.Duration),
		calls:    make(map[string]int),
	}

	s.WithInitialize(mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ListChangedCapability{ListChanged: true},
		},
		ServerInfo: mcp.Implementation{Name: "mock-server", Version: "1.0"},
	})

	s.handlers[mcp.MethodToolsList] = s.listTools
	s.handlers[mcp.MethodPing] = func(json.RawMessage) (any, error) {
		return struct{}{}, nil
	}

	return s
}

// WithInitialize sets the initialize result.
func (s *Server) WithInitialize(result mcp.InitializeResult) *Server {
	return s.WithResult(mcp.MethodInitialize, result)
}

// WithProtocolVersion makes the handshake report version v.
func (s *Server) WithProtocolVersion(v string) *Server {
	return s.WithInitialize(mcp.InitializeResult{
		ProtocolVersion: v,
		ServerInfo:      mcp.Implementation{Name: "mock-server", Version: "1.0"},
	})
}

// WithTools sets the tools served by tools/list.
func (s *Server) WithTools(tools ...mcp.Tool) *Server {
	s.SetTools(tools...)

	return s
}

// WithPageSize splits tools/list into pages of n tools.
func (s *Server) WithPageSize(n int) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageSize = n

	return s
}

// WithToolCall installs the tools/call handler.
func (s *Server) WithToolCall(fn ToolHandler) *Server {
	return s.WithHandler(mcp.MethodToolsCall, func(params json.RawMessage) (any, error) {
		var p mcp.CallToolParams
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errors.RPCError{Code: protocol.CodeInvalidParams, Message: err.Error()}
		}

		return fn(p)
	})
}

// WithResult answers method with a fixed result.
func (s *Server) WithResult(method string, result any) *Server {
	return s.WithHandler(method, func(json.RawMessage) (any, error) {
		return result, nil
	})
}

// WithFailure answers method with a JSON-RPC error.
func (s *Server) WithFailure(method string, code int, message string) *Server {
	return s.WithHandler(method, func(json.RawMessage) (any, error) {
		return nil, &errors.RPCError{Code: code, Message: message}
	})
}

// WithHandler installs a handler for method.
func (s *Server) WithHandler(method string, h Handler) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[method] = h

	return s
}

// WithSilence makes the server never answer method.
func (s *Server) WithSilence(method string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.silent[method] = true

	return s
}

// WithDelay delays the answer to method by d.
func (s *Server) WithDelay(method string, d time.Duration) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.delays[method] = d

	return s
}

// WithStartError makes every Conn fail to start with err.
func (s *Server) WithStartError(err error) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.startErr = err

	return s
}

// SetTools replaces the served tools. Safe while connected.
func (s *Server) SetTools(tools ...mcp.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = append([]mcp.Tool(nil), tools...)
}

// Factory returns a transport factory that dials this server.
func (s *Server) Factory() config.TransportFactory {
	return func(*slog.Logger, *mcp.ServerConfig, *config.Options) (config.Transport, error) {
		return s.Dial(), nil
	}
}

// Dial creates a new connection to the server.
func (s *Server) Dial() *Conn {
	c := &Conn{
		srv:     s,
		inbound: make(chan []byte, 256),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()

	return c
}

// Conns returns the number of connections dialled so far.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

// Conn returns the most recent connection, or nil.
func (s *Server) Conn() *Conn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.conns) == 0 {
		return nil
	}

	return s.conns[len(s.conns)-1]
}

// Calls returns how many requests for method the server received.
func (s *Server) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls[method]
}

// Notified returns the notification methods received, in order.
func (s *Server) Notified() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.notified...)
}

// Responses returns the client's answers to server-initiated requests.
func (s *Server) Responses() []*protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]*protocol.Message(nil), s.responses...)
}

// Notify pushes a notification to the current connection.
func (s *Server) Notify(method string, params any) {
	if c := s.Conn(); c != nil {
		c.push(mustMarshal(&protocol.Notification{JSONRPC: protocol.Version, Method: method, Params: params}))
	}
}

// Request pushes a server-initiated request to the current connection.
func (s *Server) Request(id int, method string) {
	if c := s.Conn(); c != nil {
		c.push(mustMarshal(map[string]any{"jsonrpc": protocol.Version, "id": id, "method": method}))
	}
}

// Exit ends the current connection with err, as if the server died.
func (s *Server) Exit(err error) {
	if c := s.Conn(); c != nil {
		c.exit(err)
	}
}

func (s *Server) listTools(params json.RawMessage) (any, error) {
	var p mcp.PaginatedParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &errors.RPCError{Code: protocol.CodeInvalidParams, Message: err.Error()}
		}
	}

	s.mu.Lock()
	tools := append([]mcp.Tool{}, s.tools...)
	size := s.pageSize
	s.mu.Unlock()

	if size <= 0 {
		return mcp.ListToolsResult{Tools: tools}, nil
	}

	start := 0
	if p.Cursor != "" {
		n, err := strconv.Atoi(p.Cursor)
		if err != nil {
			return nil, &errors.RPCError{Code: protocol.CodeInvalidParams, Message: "bad cursor"}
		}

		start = n
	}

	end := min(start+size, len(tools))
	result := mcp.ListToolsResult{Tools: tools[start:end]}

	if end < len(tools) {
		result.NextCursor = strconv.Itoa(end)
	}

	return result, nil
}

// handle processes one message sent by the client.
func (s *Server) handle(c *Conn, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return
	}

	s.mu.Lock()

	switch {
	case msg.IsNotification():
		s.notified = append(s.notified, msg.Method)
		s.mu.Unlock()

		return

	case msg.IsResponse():
		s.responses = append(s.responses, msg)
		s.mu.Unlock()

		return
	}

	s.calls[msg.Method]++
	handler, ok := s.handlers[msg.Method]
	silent := s.silent[msg.Method]
	delay := s.delays[msg.Method]

	s.mu.Unlock()

	if silent {
		return
	}

	resp := protocol.Response{JSONRPC: protocol.Version, ID: msg.ID}

	switch {
	case !ok:
		resp.Error = &errors.RPCError{
			Code:    protocol.CodeMethodNotFound,
			Message: "Method not found: " + msg.Method,
		}

	default:
		value, err := handler(msg.Params)
		if err != nil {
			rpcErr, isRPC := errors.AsRPCError(err)
			if !isRPC {
				rpcErr = &errors.RPCError{Code: protocol.CodeInternalError, Message: err.Error()}
			}

			resp.Error = rpcErr
		} else {
			resp.Result = value
		}
	}

	out := mustMarshal(&resp)

	if delay > 0 {
		c.wg.Go(func() {
			select {
			case <-time.After(delay):
				c.push(out)
			case <-c.done:
			}
		})

		return
	}

	c.push(out)
}

// Conn is one client connection to a Server.
type Conn struct {
	srv     *Server
	inbound chan []byte
	errs    chan error
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
	exited  bool
}

// Start implements config.Transport.
func (c *Conn) Start(context.Context) error {
	c.srv.mu.Lock()
	err := c.srv.startErr
	c.srv.mu.Unlock()

	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.started = true

	return nil
}

// ReadMessages implements config.Transport.
func (c *Conn) ReadMessages(context.Context) (<-chan []byte, <-chan error) {
	return c.inbound, c.errs
}

// SendMessage implements config.Transport.
func (c *Conn) SendMessage(_ context.Context, data []byte) error {
	c.mu.RLock()
	ready := c.started && !c.closed && !c.exited
	c.mu.RUnlock()

	if !ready {
		return errors.ErrTransportNotConnected
	}

	c.srv.handle(c, data)

	return nil
}

// IsReady implements config.Transport.
func (c *Conn) IsReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.started && !c.closed && !c.exited
}

// Close implements config.Transport.
func (c *Conn) Close() error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	close(c.done)

	c.mu.Unlock()

	c.wg.Wait()

	return nil
}

// Closed reports whether the client closed this connection.
func (c *Conn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.closed
}

func (c *Conn) push(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed || c.exited {
		return
	}

	select {
	case c.inbound <- append(data, '\n'):
	case <-c.done:
	}
}

func (c *Conn) exit(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.exited {
		return
	}

	c.exited = true

	if err != nil {
		c.errs <- err
	}

	close(c.inbound)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mcptest: marshal: %v", err))
	}

	return data
}
