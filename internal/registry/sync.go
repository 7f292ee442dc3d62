package registry

import (
	"context"
	"reflect"
	"slices"

	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// Sync reconciles the registry with configs: servers that vanished, became
// disabled or changed are unregistered; new and changed servers are
// registered and connected. Unchanged servers keep their connection; an
// unchanged server that is not connected, such as one left in the error
// state by an earlier Sync, is dialled again.
//
// A server that registers but fails to connect stays registered in the
// error state and is reported in Errors, not Added. Added lists every
// server this call connected.
func (r *Registry) Sync(ctx context.Context, configs []mcp.ServerConfig) SyncResult {
	result := SyncResult{Errors: make(map[string]error)}

	wanted := make(map[string]mcp.ServerConfig, len(configs))
	for _, cfg := range configs {
		if cfg.IsEnabled() {
			wanted[cfg.ID] = cfg
		}
	}

	var (
		keep = make(map[string]bool)
		dial []*server
	)

	for _, srv := range r.snapshot() {
		cfg, ok := wanted[srv.cfg.ID]
		if ok && sameConfig(cfg, srv.cfg) {
			keep[srv.cfg.ID] = true

			if !srv.client.IsConnected() {
				dial = append(dial, srv)
			}

			continue
		}

		if err := r.UnregisterServer(ctx, srv.cfg.ID); err != nil {
			result.Errors[srv.cfg.ID] = err

			continue
		}

		if !ok {
			result.Removed = append(result.Removed, srv.cfg.ID)
		}
	}

	for _, cfg := range configs {
		if keep[cfg.ID] || !cfg.IsEnabled() {
			continue
		}

		if err := r.RegisterServer(cfg); err != nil {
			result.Errors[cfg.ID] = err

			continue
		}

		srv, err := r.server(cfg.ID)
		if err != nil {
			result.Errors[cfg.ID] = err

			continue
		}

		dial = append(dial, srv)
	}

	connected := r.connect(ctx, dial)
	result.Added = connected.Connected

	for id, err := range connected.Failed {
		result.Errors[id] = err
	}

	slices.Sort(result.Removed)

	r.log.Info("Synced servers",
		"added", len(result.Added),
		"removed", len(result.Removed),
		"errors", len(result.Errors),
	)

	return result
}

// sameConfig reports whether a running server can keep its connection.
func sameConfig(a, b mcp.ServerConfig) bool {
	return reflect.DeepEqual(a, b)
}
