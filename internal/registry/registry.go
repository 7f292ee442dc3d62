package registry

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/mcp-toolhub-go/internal/client"
	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/event"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// index maps server id to that server's tools by unqualified name.
// Published maps are never mutated; writers copy.
type index map[string]map[string]ToolWrapper

// server is one registered capability server.
type server struct {
	cfg         mcp.ServerConfig
	client      *client.Client
	unsubscribe func()

	// connecting counts connectOne calls in flight, which index the tools
	// themselves.
	connecting atomic.Int32

	// mu serializes populate, refresh and purge of this server's tools.
	mu sync.Mutex
}

// Registry aggregates tools across servers.
type Registry struct {
	log    *slog.Logger
	opts   *config.Options
	events *event.Bus[Event]

	serversMu sync.RWMutex
	servers   map[string]*server

	// indexMu serializes writers; readers load tools without locking.
	indexMu sync.Mutex
	tools   atomic.Pointer[index]

	// refreshMu guards closing and every Add to refreshes, so no refresh
	// starts while DisconnectAll waits on them.
	refreshMu sync.Mutex
	closing   int
	refreshes sync.WaitGroup
}

// New creates an empty registry.
func New(opts *config.Options) *Registry {
	r := &Registry{
		log:     opts.Log().With("component", "registry"),
		opts:    opts,
		events:  event.NewBus[Event](),
		servers: make(map[string]*server),
	}

	empty := make(index)
	r.tools.Store(&empty)

	return r
}

// RegisterServer adds a server. A config with Enabled explicitly false is
// ignored. The server is not dialled until ConnectAll or ConnectServer.
func (r *Registry) RegisterServer(cfg mcp.ServerConfig) error {
	if !cfg.IsEnabled() {
		r.log.Info("Skipping disabled server", "server_id", cfg.ID)

		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	r.serversMu.Lock()

	if _, exists := r.servers[cfg.ID]; exists {
		r.serversMu.Unlock()

		return fmt.Errorf("%w: %s", errors.ErrServerExists, cfg.ID)
	}

	srv := &server{
		cfg:    cfg,
		client: client.New(cfg, r.opts),
	}
	srv.unsubscribe = srv.client.Subscribe(func(e client.Event) {
		r.onClientEvent(srv, e)
	})
	r.servers[cfg.ID] = srv

	r.serversMu.Unlock()

	r.log.Info("Registered server", "server_id", cfg.ID, "transport", cfg.Transport.Kind())
	r.emit(Event{Type: EventServerRegistered, ServerID: cfg.ID, ServerName: cfg.DisplayName()})

	return nil
}

// UnregisterServer disconnects a server and removes it with its tools.
// Disconnect errors are logged, not returned.
func (r *Registry) UnregisterServer(ctx context.Context, id string) error {
	r.serversMu.Lock()

	srv, ok := r.servers[id]
	if !ok {
		r.serversMu.Unlock()

		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}

	delete(r.servers, id)

	r.serversMu.Unlock()

	if err := srv.client.Disconnect(ctx); err != nil {
		r.log.Warn("Disconnect during unregister failed", "server_id", id, "error", err)
	}

	srv.unsubscribe()
	r.purge(srv)

	r.log.Info("Unregistered server", "server_id", id)
	r.emit(Event{Type: EventServerUnregistered, ServerID: id, ServerName: srv.cfg.DisplayName()})

	return nil
}

// ConnectAll dials every registered server in parallel and waits for all
// of them. One server failing never affects another.
func (r *Registry) ConnectAll(ctx context.Context) ConnectResult {
	return r.connect(ctx, r.snapshot())
}

// ConnectServer dials one registered server and indexes its tools.
func (r *Registry) ConnectServer(ctx context.Context, id string) error {
	srv, err := r.server(id)
	if err != nil {
		return err
	}

	return r.connectOne(ctx, srv)
}

func (r *Registry) connect(ctx context.Context, servers []*server) ConnectResult {
	var (
		g      errgroup.Group
		mu     sync.Mutex
		result = ConnectResult{Connected: []string{}, Failed: make(map[string]error)}
	)

	if n := r.concurrency(); n > 0 {
		g.SetLimit(n)
	}

	for _, srv := range servers {
		g.Go(func() error {
			err := r.connectOne(ctx, srv)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Failed[srv.cfg.ID] = err
			} else {
				result.Connected = append(result.Connected, srv.cfg.ID)
			}

			// Failures stay isolated to their own server.
			return nil
		})
	}

	_ = g.Wait()

	slices.Sort(result.Connected)

	r.log.Info("Connected servers", "connected", len(result.Connected), "failed", len(result.Failed))

	return result
}

func (r *Registry) connectOne(ctx context.Context, srv *server) error {
	srv.connecting.Add(1)
	defer srv.connecting.Add(-1)

	err := srv.client.Connect(ctx)
	if err == nil {
		err = r.populate(ctx, srv)
	}

	if err != nil {
		r.log.Error("Server failed", "server_id", srv.cfg.ID, "error", err)
		r.emit(Event{
			Type:       EventServerError,
			ServerID:   srv.cfg.ID,
			ServerName: srv.cfg.DisplayName(),
			Err:        err,
		})

		return err
	}

	count := len(r.load()[srv.cfg.ID])

	r.emit(Event{
		Type:       EventServerConnected,
		ServerID:   srv.cfg.ID,
		ServerName: srv.cfg.DisplayName(),
		ToolCount:  count,
	})

	return nil
}

// populate lists a connected server's tools and replaces its slice.
func (r *Registry) populate(ctx context.Context, srv *server) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	tools, err := srv.client.RefreshTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	if !r.registered(srv) {
		return fmt.Errorf("%w: %s", errors.ErrServerNotFound, srv.cfg.ID)
	}

	r.replace(srv.cfg.ID, r.wrap(srv, tools))

	return nil
}

// refresh re-lists a server's tools after a list-changed notification. A
// failure keeps the previous tools.
func (r *Registry) refresh(ctx context.Context, srv *server) {
	if !srv.client.IsConnected() {
		return
	}

	if err := r.populate(ctx, srv); err != nil {
		r.log.Warn("Tool refresh failed", "server_id", srv.cfg.ID, "error", err)

		return
	}

	count := len(r.load()[srv.cfg.ID])

	r.log.Info("Refreshed tools", "server_id", srv.cfg.ID, "count", count)
	r.emit(Event{
		Type:       EventToolsRefreshed,
		ServerID:   srv.cfg.ID,
		ServerName: srv.cfg.DisplayName(),
		ToolCount:  count,
	})
}

// purge drops every tool of a server.
func (r *Registry) purge(srv *server) {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	r.replace(srv.cfg.ID, nil)
}

func (r *Registry) onClientEvent(srv *server, e client.Event) {
	r.emit(Event{
		Type:       EventServerEvent,
		ServerID:   srv.cfg.ID,
		ServerName: srv.cfg.DisplayName(),
		Client:     &e,
	})

	switch e.Type {
	case client.EventToolsChanged:
		r.spawnRefresh(srv)

	case client.EventConnected:
		// An operation reconnected the client implicitly after a drop
		// purged its tools.
		if srv.connecting.Load() == 0 {
			r.spawnRefresh(srv)
		}

	case client.EventDisconnected:
		r.purge(srv)
	}
}

// spawnRefresh refreshes a server's tools off the caller's goroutine, which
// may be the client's read loop. It is a no-op while DisconnectAll runs.
func (r *Registry) spawnRefresh(srv *server) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	if r.closing > 0 {
		return
	}

	r.refreshes.Go(func() {
		r.refresh(context.Background(), srv)
	})
}

// DisconnectAll disconnects every server and drops every tool. Servers stay
// registered and can be connected again.
func (r *Registry) DisconnectAll(ctx context.Context) error {
	servers := r.snapshot()

	r.refreshMu.Lock()
	r.closing++
	r.refreshMu.Unlock()

	defer func() {
		r.refreshMu.Lock()
		r.closing--
		r.refreshMu.Unlock()
	}()

	var g errgroup.Group

	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.client.Disconnect(ctx); err != nil {
				r.log.Warn("Disconnect failed", "server_id", srv.cfg.ID, "error", err)
			}

			r.purge(srv)

			return nil
		})
	}

	_ = g.Wait()

	r.refreshes.Wait()

	// A refresh that raced the disconnects may have repopulated a server.
	for _, srv := range servers {
		r.purge(srv)
	}

	r.log.Info("Disconnected all servers", "count", len(servers))
	r.emit(Event{Type: EventAllDisconnected})

	return nil
}

// Close disconnects every server.
func (r *Registry) Close(ctx context.Context) error {
	return r.DisconnectAll(ctx)
}

func (r *Registry) concurrency() int {
	if r.opts == nil {
		return 0
	}

	return r.opts.ConnectConcurrency
}

func (r *Registry) server(id string) (*server, error) {
	r.serversMu.RLock()
	defer r.serversMu.RUnlock()

	srv, ok := r.servers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrServerNotFound, id)
	}

	return srv, nil
}

func (r *Registry) registered(srv *server) bool {
	r.serversMu.RLock()
	defer r.serversMu.RUnlock()

	return r.servers[srv.cfg.ID] == srv
}

// snapshot returns the registered servers ordered by id.
func (r *Registry) snapshot() []*server {
	r.serversMu.RLock()
	defer r.serversMu.RUnlock()

	servers := make([]*server, 0, len(r.servers))
	for _, srv := range r.servers {
		servers = append(servers, srv)
	}

	slices.SortFunc(servers, func(a, b *server) int {
		return cmp.Compare(a.cfg.ID, b.cfg.ID)
	})

	return servers
}

// Client returns the client of a registered server.
func (r *Registry) Client(id string) (*client.Client, error) {
	srv, err := r.server(id)
	if err != nil {
		return nil, err
	}

	return srv.client, nil
}
