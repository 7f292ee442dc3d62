package toolhub

import (
	"context"
	"fmt"
)

// WithRegistry manages registry lifecycle with automatic cleanup.
//
// This helper creates a registry, registers every config, connects them,
// executes the callback function, and ensures every server is disconnected
// via Close() when done.
//
// Servers that fail to connect are logged and left registered in the error
// state; the callback still runs with the servers that did connect.
// If the callback returns an error, it is returned to the caller.
// If Close() fails, a warning is logged but does not override the callback's error.
//
// Example usage:
//
//	err := toolhub.WithRegistry(ctx, configs, func(reg toolhub.Registry) error {
//	    for _, def := range reg.GetToolDefinitions() {
//	        fmt.Println(def.Name)
//	    }
//	    res := reg.CallTool(ctx, "calc:add", map[string]any{"a": 1, "b": 2})
//	    fmt.Println(res.Content)
//	    return nil
//	},
//	    toolhub.WithLogger(log),
//	    toolhub.WithConnectConcurrency(4),
//	)
func WithRegistry(ctx context.Context, configs []ServerConfig, fn func(Registry) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)
	log := options.Log()

	reg := newRegistryImpl(options)

	defer func() {
		if closeErr := reg.Close(context.Background()); closeErr != nil {
			log.Warn("failed to close registry", "error", closeErr)
		}
	}()

	for _, cfg := range configs {
		if err := reg.RegisterServer(cfg); err != nil {
			return fmt.Errorf("failed to register server %q: %w", cfg.ID, err)
		}
	}

	result := reg.ConnectAll(ctx)
	for id, err := range result.Failed {
		log.Warn("server failed to connect", "server_id", id, "error", err)
	}

	return fn(reg)
}
