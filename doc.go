// Package toolhub connects Go applications to Model Context Protocol servers
// and aggregates their tools behind one registry.
//
// A host registers capability servers (subprocesses, streamable HTTP
// endpoints or in-process go-sdk servers), connects them in parallel, and
// hands the combined tool list to a model. Tool calls are routed back by
// qualified name, "serverId:toolName".
//
// # Basic Usage
//
//	reg := toolhub.New(toolhub.WithLogger(slog.Default()))
//	defer reg.Close(ctx)
//
//	err := reg.RegisterServer(toolhub.ServerConfig{
//	    ID:        "files",
//	    Transport: &toolhub.StdioTransport{Command: "mcp-server-filesystem", Args: []string{"/tmp"}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result := reg.ConnectAll(ctx)
//	for id, err := range result.Failed {
//	    log.Printf("server %s unavailable: %v", id, err)
//	}
//
//	for _, def := range reg.GetToolDefinitions() {
//	    fmt.Println(def.Name, def.Description)
//	}
//
//	res := reg.CallTool(ctx, "files:read_file", map[string]any{"path": "/tmp/a.txt"})
//	fmt.Println(res.Success, res.Content)
//
// CallTool never returns an error. Unknown, disabled and unreachable tools
// come back with Success false and the reason in Content, ready to hand to
// the model.
//
// # Single Servers
//
// For one server without a registry, use NewClient:
//
//	client := toolhub.NewClient(cfg, toolhub.WithRequestTimeout(10*time.Second))
//	defer client.Disconnect(ctx)
//
//	tools, err := client.ListTools(ctx)
//
// Client operations connect on demand, so Connect is optional.
//
// # Configuration Files
//
// Server lists can be loaded from YAML or JSON and kept in sync:
//
//	configs, err := toolhub.LoadConfig("servers.yaml")
//	...
//	stop, err := toolhub.WatchConfig(ctx, "servers.yaml", reg)
//	defer stop()
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	reg := toolhub.New(toolhub.WithLogger(logger))
//
// # Error Handling
//
// The package provides typed errors for the failure classes of a connection:
//
//	if err := client.Connect(ctx); err != nil {
//	    if procErr, ok := errors.AsType[*toolhub.ProcessError](err); ok {
//	        log.Fatalf("server exited with %d: %s", procErr.ExitCode, procErr.Stderr)
//	    }
//	    if errors.Is(err, toolhub.ErrNotImplemented) {
//	        log.Fatal("transport not supported yet")
//	    }
//	}
package toolhub
