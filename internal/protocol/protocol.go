package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
)

// Transport defines the minimal interface needed for protocol operations.
//
// This interface is satisfied by every toolhub transport but allows for
// testing with mock transports.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan []byte, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// NotificationHandler receives server notifications on the read loop.
// It must not block and must not issue requests on the same controller.
type NotificationHandler func(ctx context.Context, method string, params json.RawMessage)

// RequestHandler answers a server-initiated request.
// Returning an *errors.RPCError sends that error object verbatim.
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Controller manages JSON-RPC request/response correlation with one server.
//
// The Controller handles:
//   - Sending requests with strictly increasing ids
//   - Receiving and routing responses to waiting requests
//   - Request timeout enforcement
//   - Handler registration for incoming requests from the server
//   - Forwarding notifications to a single handler
//
// The Controller must be started with Start() before use and manages its own
// goroutine for reading and routing messages.
type Controller struct {
	log       *slog.Logger
	transport Transport
	lines     *LineBuffer

	nextID atomic.Int64

	// Request tracking
	pendingMu sync.Mutex
	pending   map[int64]*pendingRequest
	closed    bool

	// Handler registry for incoming requests
	handlersMu sync.RWMutex
	handlers   map[string]RequestHandler

	onNotification NotificationHandler

	// Fatal error handling - stores error and broadcasts via done channel
	errMu    sync.RWMutex
	fatalErr error

	// Lifecycle management
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// pendingRequest tracks an outgoing request awaiting response.
type pendingRequest struct {
	method   string
	response chan result
	timer    *time.Timer
}

type result struct {
	value json.RawMessage
	err   error
}

// NewController creates a new protocol controller.
//
// The logger will receive debug, info, warn, and error messages during
// protocol operations. The transport must be started before calling Start().
func NewController(log *slog.Logger, transport Transport) *Controller {
	c := &Controller{
		log:       log.With("component", "protocol"),
		transport: transport,
		lines:     NewLineBuffer(MaxLineSize),
		pending:   make(map[int64]*pendingRequest, 10),
		handlers:  make(map[string]RequestHandler, 4),
		done:      make(chan struct{}),
	}

	c.handlers["ping"] = func(context.Context, json.RawMessage) (any, error) {
		return struct{}{}, nil
	}

	return c
}

// SetNotificationHandler installs the notification callback.
// It must be called before Start.
func (c *Controller) SetNotificationHandler(h NotificationHandler) {
	c.onNotification = h
}

// RegisterHandler registers a handler for a server-initiated request method.
//
// Registering a handler for the same method twice overrides the previous one.
// Methods without a handler are answered with a method-not-found error.
func (c *Controller) RegisterHandler(method string, handler RequestHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.log.Debug("Registering request handler", "method", method)
	c.handlers[method] = handler
}

// closeDone safely closes the done channel exactly once.
func (c *Controller) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// SetFatalError stores a fatal error and broadcasts to all waiters by closing done.
func (c *Controller) SetFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// FatalError returns the fatal error if one occurred.
func (c *Controller) FatalError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel that is closed when the controller stops.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// PendingCount returns the number of requests awaiting a response.
func (c *Controller) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	return len(c.pending)
}

// Start begins reading from the transport and routing messages.
//
// The read loop stops when the context is cancelled, Stop is called, or the
// transport ends. A transport end rejects every pending request.
func (c *Controller) Start(ctx context.Context) error {
	c.log.Debug("Starting protocol controller")

	messages, errs := c.transport.ReadMessages(ctx)

	c.wg.Go(func() {
		c.readLoop(ctx, messages, errs)
	})

	c.log.Debug("Protocol controller started")

	return nil
}

// Stop shuts the controller down and rejects every pending request with
// ErrConnectionClosed. It's safe to call Stop multiple times.
func (c *Controller) Stop() {
	c.log.Debug("Stopping protocol controller")

	c.closeDone()
	c.failPending(errors.ErrConnectionClosed)
	c.wg.Wait()

	c.log.Debug("Protocol controller stopped")
}

// Request sends a request and waits for its response.
//
// The timeout starts when the request is registered. Exactly one of the
// response, the timeout, ctx cancellation or a connection close completes
// the request; the others find it already gone.
//
// Cancelling ctx abandons the request but never the write: a message
// already handed to the transport is finished, so a transport that tears
// itself down on a cancelled write, such as a subprocess pipe, survives.
// Writes are cut short only by Stop.
//
// A JSON-RPC error response is returned as *errors.RPCError.
func (c *Controller) Request(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	pending := &pendingRequest{
		method:   method,
		response: make(chan result, 1),
	}

	c.pendingMu.Lock()

	if c.closed {
		c.pendingMu.Unlock()

		return nil, errors.ErrConnectionClosed
	}

	c.pending[id] = pending
	pending.timer = time.AfterFunc(timeout, func() {
		if p := c.claim(id); p != nil {
			c.log.Warn("Request timed out", "id", id, "method", method, "timeout", timeout)

			p.response <- result{err: fmt.Errorf("%w after %s: %s", errors.ErrRequestTimeout, timeout, method)}
		}
	})

	c.pendingMu.Unlock()

	data, err := json.Marshal(&Request{JSONRPC: Version, ID: id, Method: method, Params: params})
	if err != nil {
		c.claim(id)

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.log.Debug("Sending request", "id", id, "method", method)

	sent := c.write(ctx, data)

	for {
		select {
		case err := <-sent:
			sent = nil

			if err == nil {
				continue
			}

			if c.claim(id) != nil {
				c.log.Error("Failed to send request", "id", id, "method", method, "error", err)

				return nil, fmt.Errorf("send request: %w", err)
			}

			// The timeout or a close got there first and has delivered.

		case res := <-pending.response:
			return res.value, res.err

		case <-ctx.Done():
			if c.claim(id) != nil {
				c.log.Debug("Request cancelled", "id", id, "method", method)

				return nil, ctx.Err()
			}

			// Lost the race: whoever claimed it has already delivered.
			res := <-pending.response

			return res.value, res.err
		}
	}
}

// Notify sends a notification. Notifications have no response.
//
// Like Request, cancelling ctx returns early without interrupting the write.
func (c *Controller) Notify(ctx context.Context, method string, params any) error {
	data, err := json.Marshal(&Notification{JSONRPC: Version, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	c.log.Debug("Sending notification", "method", method)

	select {
	case err := <-c.write(ctx, data):
		if err != nil {
			return fmt.Errorf("send notification: %w", err)
		}

		return nil

	case <-ctx.Done():
		return ctx.Err()
	}
}

// write hands data to the transport on its own goroutine and reports the
// outcome on the returned channel. The write keeps ctx's values but not its
// cancellation; it is cancelled only when the controller stops.
func (c *Controller) write(ctx context.Context, data []byte) <-chan error {
	sent := make(chan error, 1)

	go func() {
		wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()

		stop := make(chan struct{})
		defer close(stop)

		go func() {
			select {
			case <-c.done:
				cancel()
			case <-stop:
			}
		}()

		sent <- c.transport.SendMessage(wctx, data)
	}()

	return sent
}

// claim removes and returns the pending request, or nil if another path
// already completed it.
func (c *Controller) claim(id int64) *pendingRequest {
	c.pendingMu.Lock()

	p, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}

	c.pendingMu.Unlock()

	if !ok {
		return nil
	}

	if p.timer != nil {
		p.timer.Stop()
	}

	return p
}

// failPending rejects every pending request and refuses new ones.
func (c *Controller) failPending(err error) {
	c.pendingMu.Lock()

	c.closed = true
	pending := c.pending
	c.pending = make(map[int64]*pendingRequest)

	c.pendingMu.Unlock()

	if len(pending) > 0 {
		c.log.Debug("Rejecting pending requests", "count", len(pending), "reason", err)
	}

	for _, p := range pending {
		if p.timer != nil {
			p.timer.Stop()
		}

		p.response <- result{err: err}
	}
}

// readLoop reads chunks from the transport and routes complete lines.
func (c *Controller) readLoop(
	ctx context.Context,
	messages <-chan []byte,
	errs <-chan error,
) {
	defer c.log.Debug("Protocol read loop stopped")

	for {
		select {
		case chunk, ok := <-messages:
			if !ok {
				c.log.Debug("Message channel closed")
				c.shutdown(c.drainErr(errs))

				return
			}

			for _, line := range c.lines.Feed(chunk) {
				c.handleLine(ctx, line)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil

				continue
			}

			if err != nil {
				c.log.Debug("Transport error in protocol", "error", err)
				c.shutdown(err)

				return
			}

		case <-c.done:
			c.log.Debug("Protocol controller stop signal received")

			return

		case <-ctx.Done():
			c.log.Debug("Context cancelled in protocol read loop")
			c.shutdown(ctx.Err())

			return
		}
	}
}

// drainErr picks up a terminal transport error that raced the close of the
// message channel.
func (c *Controller) drainErr(errs <-chan error) error {
	if errs == nil {
		return nil
	}

	select {
	case err := <-errs:
		return err
	default:
		return nil
	}
}

// shutdown ends the connection from the read side.
func (c *Controller) shutdown(cause error) {
	closeErr := errors.ErrConnectionClosed
	if cause != nil {
		closeErr = fmt.Errorf("%w: %w", errors.ErrConnectionClosed, cause)
	}

	c.SetFatalError(closeErr)
	c.failPending(closeErr)
}

// handleLine parses one line and routes it by shape.
func (c *Controller) handleLine(ctx context.Context, line []byte) {
	msg, err := ParseMessage(line)
	if err != nil {
		c.log.Warn("Dropping malformed message", "error", err, "line", truncate(line, 200))

		return
	}

	switch {
	case msg.IsResponse():
		c.handleResponse(msg)

	case msg.IsRequest():
		c.handleRequest(ctx, msg)

	case msg.IsNotification():
		c.log.Debug("Received notification", "method", msg.Method)

		if c.onNotification != nil {
			c.onNotification(ctx, msg.Method, msg.Params)
		}

	default:
		c.log.Warn("Dropping message without id or method", "line", truncate(line, 200))
	}
}

// handleResponse routes a response to the waiting request.
func (c *Controller) handleResponse(msg *Message) {
	id, ok := msg.IntID()
	if !ok {
		c.log.Warn("Response has non-integer id", "id", string(msg.ID))

		return
	}

	// Find and claim pending request atomically
	pending := c.claim(id)
	if pending == nil {
		c.log.Warn("No pending request for response", "id", id)

		return
	}

	c.log.Debug("Received response", "id", id, "method", pending.method)

	if msg.Error != nil {
		pending.response <- result{err: msg.Error}

		return
	}

	pending.response <- result{value: msg.Result}
}

// handleRequest answers a server-initiated request.
func (c *Controller) handleRequest(ctx context.Context, msg *Message) {
	c.handlersMu.RLock()
	handler, exists := c.handlers[msg.Method]
	c.handlersMu.RUnlock()

	if !exists {
		c.log.Debug("No handler for server request", "method", msg.Method)
		c.respond(ctx, msg.ID, nil, &errors.RPCError{
			Code:    CodeMethodNotFound,
			Message: "Method not found: " + msg.Method,
		})

		return
	}

	c.wg.Go(func() {
		value, err := handler(ctx, msg.Params)
		if err != nil {
			rpcErr, ok := errors.AsRPCError(err)
			if !ok {
				rpcErr = &errors.RPCError{Code: CodeInternalError, Message: err.Error()}
			}

			c.respond(ctx, msg.ID, nil, rpcErr)

			return
		}

		c.respond(ctx, msg.ID, value, nil)
	})
}

func (c *Controller) respond(ctx context.Context, id json.RawMessage, value any, rpcErr *errors.RPCError) {
	data, err := json.Marshal(&Response{JSONRPC: Version, ID: id, Result: value, Error: rpcErr})
	if err != nil {
		c.log.Error("Failed to marshal response", "error", err)

		return
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		// Don't log error if context was cancelled (expected during shutdown)
		if ctx.Err() != nil {
			c.log.Debug("Could not send response during shutdown", "error", err)

			return
		}

		c.log.Error("Failed to send response", "error", err)
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}

	return string(b[:n]) + "..."
}
