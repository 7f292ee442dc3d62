package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/event"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
	"github.com/wagiedev/mcp-toolhub-go/internal/protocol"
)

// shutdownNotifyTimeout bounds the best-effort shutdown notification.
const shutdownNotifyTimeout = time.Second

// Client is a protocol client for one capability server.
type Client struct {
	log     *slog.Logger
	cfg     mcp.ServerConfig
	opts    *config.Options
	factory config.TransportFactory
	timeout time.Duration
	events  *event.Bus[Event]

	// connectMu serializes Connect and Disconnect.
	connectMu sync.Mutex
	attempts  atomic.Int64

	// mu guards the connection and the list caches.
	mu         sync.RWMutex
	transport  config.Transport
	controller *protocol.Controller
	cancel     context.CancelFunc
	info       mcp.ConnectionInfo
	tools      listCache[mcp.Tool]
	resources  listCache[mcp.Resource]
	prompts    listCache[mcp.Prompt]

	progressMu sync.Mutex
	progress   map[string]func(mcp.ProgressParams)
}

// New creates a client for cfg. The client is disconnected until Connect or
// the first operation.
func New(cfg mcp.ServerConfig, opts *config.Options) *Client {
	factory := DefaultTransportFactory
	if opts != nil && opts.TransportFactory != nil {
		factory = opts.TransportFactory
	}

	return &Client{
		log:      opts.Log().With("component", "client", "server_id", cfg.ID),
		cfg:      cfg,
		opts:     opts,
		factory:  factory,
		timeout:  opts.TimeoutFor(&cfg),
		events:   event.NewBus[Event](),
		info:     mcp.ConnectionInfo{State: mcp.StateDisconnected},
		progress: make(map[string]func(mcp.ProgressParams)),
	}
}

// ID returns the server id.
func (c *Client) ID() string {
	return c.cfg.ID
}

// Config returns the server config the client was built from.
func (c *Client) Config() mcp.ServerConfig {
	return c.cfg
}

// Info returns a snapshot of the connection.
func (c *Client) Info() mcp.ConnectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := c.info
	if info.ServerInfo != nil {
		si := *info.ServerInfo
		info.ServerInfo = &si
	}

	return info
}

// State returns the connection state.
func (c *Client) State() mcp.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.info.State
}

// IsConnected reports whether the handshake has completed and the
// connection is still up.
func (c *Client) IsConnected() bool {
	return c.State() == mcp.StateConnected
}

// ConnectAttempts returns how many connect attempts the client has made,
// including the ones triggered by operations on a disconnected client.
func (c *Client) ConnectAttempts() int64 {
	return c.attempts.Load()
}

// Connect establishes the connection and performs the initialize handshake.
//
// Connect is a no-op when already connected. On failure the state becomes
// mcp.StateError, an EventError is published and a *errors.ConnectionError
// is returned.
func (c *Client) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	if c.IsConnected() {
		return nil
	}

	c.attempts.Add(1)
	c.setState(mcp.StateConnecting)
	c.log.Info("Connecting", "transport", kindOf(c.cfg.Transport))

	serverInfo, err := c.connect(ctx)
	if err != nil {
		c.log.Error("Connect failed", "error", err)

		c.mu.Lock()
		c.info.State = mcp.StateError
		c.info.LastError = err.Error()
		c.info.LastErrorAt = time.Now()
		c.mu.Unlock()

		c.emit(Event{Type: EventError, Err: err})

		return &errors.ConnectionError{ServerID: c.cfg.ID, Err: err}
	}

	c.log.Info("Connected",
		"server_name", serverInfo.Name,
		"server_version", serverInfo.Version,
		"protocol_version", serverInfo.ProtocolVersion,
	)

	c.emit(Event{Type: EventConnected, ServerInfo: serverInfo})

	return nil
}

// connect does the work of Connect. Caller must hold connectMu.
func (c *Client) connect(ctx context.Context) (*mcp.ServerInfo, error) {
	transport, err := c.factory(c.log, &c.cfg, c.opts)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	// The connection outlives ctx, which may only bound the handshake.
	connCtx, cancel := context.WithCancel(context.Background())

	if err := transport.Start(connCtx); err != nil {
		cancel()
		_ = transport.Close()

		return nil, fmt.Errorf("start transport: %w", err)
	}

	controller := protocol.NewController(c.log, transport)
	controller.SetNotificationHandler(c.handleNotification)
	controller.RegisterHandler(mcp.MethodRootsList, c.listRoots)

	if err := controller.Start(connCtx); err != nil {
		cancel()
		_ = transport.Close()

		return nil, fmt.Errorf("start protocol controller: %w", err)
	}

	teardown := func() {
		cancel()
		controller.Stop()
		_ = transport.Close()
	}

	serverInfo, err := c.handshake(ctx, controller)
	if err != nil {
		teardown()

		return nil, err
	}

	c.mu.Lock()
	c.transport = transport
	c.controller = controller
	c.cancel = cancel
	c.info = mcp.ConnectionInfo{
		State:       mcp.StateConnected,
		ServerInfo:  serverInfo,
		LastError:   c.info.LastError,
		LastErrorAt: c.info.LastErrorAt,
		ConnectedAt: time.Now(),
	}
	c.resetCaches()
	c.mu.Unlock()

	go c.watch(controller)

	return serverInfo, nil
}

// handshake sends initialize, checks the protocol version and confirms with
// notifications/initialized.
func (c *Client) handshake(ctx context.Context, controller *protocol.Controller) (*mcp.ServerInfo, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	params := mcp.InitializeParams{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities:    mcp.ClientCapabilities{Roots: &mcp.RootsCapability{}},
		ClientInfo:      c.opts.Implementation(),
	}

	raw, err := controller.Request(ctx, mcp.MethodInitialize, params, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	var result mcp.InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode initialize result: %w", err)
	}

	if result.ProtocolVersion != mcp.ProtocolVersion {
		return nil, &errors.ProtocolVersionError{
			Requested: mcp.ProtocolVersion,
			Received:  result.ProtocolVersion,
		}
	}

	if err := controller.Notify(ctx, mcp.NotificationInitialized, nil); err != nil {
		return nil, fmt.Errorf("send initialized: %w", err)
	}

	return &mcp.ServerInfo{
		Name:            result.ServerInfo.Name,
		Version:         result.ServerInfo.Version,
		ProtocolVersion: result.ProtocolVersion,
		Capabilities:    result.Capabilities,
		Instructions:    result.Instructions,
	}, nil
}

// listRoots answers roots/list, which the handshake advertises.
func (c *Client) listRoots(context.Context, json.RawMessage) (any, error) {
	return mcp.ListRootsResult{Roots: c.opts.RootList()}, nil
}

// watch turns an unexpected end of the connection into a disconnect.
func (c *Client) watch(controller *protocol.Controller) {
	<-controller.Done()

	c.mu.Lock()

	// Disconnect already detached this controller.
	if c.controller != controller {
		c.mu.Unlock()

		return
	}

	transport, cancel := c.detach()
	exitErr := controller.FatalError()

	if exitErr != nil {
		c.info.LastError = exitErr.Error()
		c.info.LastErrorAt = time.Now()
	}

	c.mu.Unlock()

	c.log.Warn("Connection lost", "error", exitErr)

	cancel()
	controller.Stop()

	if err := transport.Close(); err != nil {
		c.log.Debug("Transport close after exit failed", "error", err)
	}

	c.emit(Event{Type: EventDisconnected, Err: exitErr})
}

// detach clears the connection fields and returns what must be closed.
// Caller must hold mu.
func (c *Client) detach() (config.Transport, context.CancelFunc) {
	transport, cancel := c.transport, c.cancel

	c.transport = nil
	c.controller = nil
	c.cancel = nil
	c.info.State = mcp.StateDisconnected
	c.info.ServerInfo = nil
	c.info.ConnectedAt = time.Time{}
	c.resetCaches()

	return transport, cancel
}

// Disconnect closes the connection. Pending requests fail with
// ErrConnectionClosed. Disconnecting a disconnected client is a no-op.
//
// The disconnected event is published after the connection lock is released,
// so subscribers may call Connect.
func (c *Client) Disconnect(ctx context.Context) error {
	disconnected, err := c.disconnect(ctx)
	if disconnected {
		c.emit(Event{Type: EventDisconnected})
	}

	return err
}

func (c *Client) disconnect(ctx context.Context) (bool, error) {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()

	controller := c.controller
	if controller == nil {
		if c.info.State == mcp.StateError {
			c.info.State = mcp.StateDisconnected
		}

		c.mu.Unlock()

		return false, nil
	}

	transport, cancel := c.detach()

	c.mu.Unlock()

	c.log.Info("Disconnecting")

	notifyCtx, notifyCancel := context.WithTimeout(ctx, shutdownNotifyTimeout)
	if err := controller.Notify(notifyCtx, mcp.NotificationShutdown, nil); err != nil {
		c.log.Debug("Shutdown notification failed", "error", err)
	}

	notifyCancel()

	cancel()
	controller.Stop()

	if err := transport.Close(); err != nil {
		return true, fmt.Errorf("close transport: %w", err)
	}

	return true, nil
}

// ensureConnected connects on demand.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	return c.Connect(ctx)
}

func (c *Client) current() (*protocol.Controller, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.controller == nil {
		return nil, errors.ErrNotConnected
	}

	return c.controller, nil
}

// Request sends a raw request, connecting first if needed.
// A timeout of zero uses the server's request timeout.
func (c *Client) Request(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	return c.request(ctx, method, params, timeout)
}

// request sends over the current connection without reconnecting.
func (c *Client) request(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	controller, err := c.current()
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = c.timeout
	}

	return controller.Request(ctx, method, params, timeout)
}

// Notify sends a raw notification, connecting first if needed.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	controller, err := c.current()
	if err != nil {
		return err
	}

	return controller.Notify(ctx, method, params)
}

// PendingRequests returns the number of requests awaiting a response.
func (c *Client) PendingRequests() int {
	controller, err := c.current()
	if err != nil {
		return 0
	}

	return controller.PendingCount()
}

func (c *Client) setState(state mcp.ConnectionState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.info.State = state
}

func (c *Client) invalidate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fn()
}

// resetCaches drops every cached list. Caller must hold mu.
func (c *Client) resetCaches() {
	c.tools.reset()
	c.resources.reset()
	c.prompts.reset()
}

func kindOf(t mcp.TransportConfig) mcp.TransportKind {
	if t == nil {
		return ""
	}

	return t.Kind()
}

// listCache holds one paginated list. gen changes on every invalidation so
// a fetch that raced a list-changed notification does not mark the cache
// fresh.
type listCache[T any] struct {
	items []T
	valid bool
	gen   uint64
}

func (l *listCache[T]) invalidate() {
	l.valid = false
	l.gen++
}

func (l *listCache[T]) reset() {
	l.items = nil
	l.invalidate()
}

func (l *listCache[T]) snapshot() ([]T, bool, uint64) {
	return slices.Clone(l.items), l.valid, l.gen
}
