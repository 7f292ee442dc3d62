//go:build integration

package integration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	toolhub "github.com/wagiedev/mcp-toolhub-go"
)

// serverModeEnv switches the test binary into a stdio capability server.
const serverModeEnv = "TOOLHUB_INTEGRATION_SERVER"

func TestMain(m *testing.M) {
	if os.Getenv(serverModeEnv) != "" {
		if err := calcServer().Run(context.Background(), &sdkmcp.StdioTransport{}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		os.Exit(0)
	}

	os.Exit(m.Run())
}

// calcServer is served over stdio by the re-executed test binary and over
// HTTP by httptest.
func calcServer() *toolhub.McpServer {
	add := toolhub.NewInProcessTool("add", "Add two numbers",
		toolhub.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
		func(_ context.Context, req *toolhub.McpCallToolRequest) (*toolhub.McpCallToolResult, error) {
			args, err := toolhub.ParseArguments(req)
			if err != nil {
				return toolhub.ErrorResult(err.Error()), nil
			}

			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)

			return toolhub.TextResult(fmt.Sprint(a + b)), nil
		},
	)

	divide := toolhub.NewInProcessTool("divide", "Divide a by b",
		toolhub.SimpleSchema(map[string]string{"a": "float64", "b": "float64"}),
		func(_ context.Context, req *toolhub.McpCallToolRequest) (*toolhub.McpCallToolResult, error) {
			args, err := toolhub.ParseArguments(req)
			if err != nil {
				return toolhub.ErrorResult(err.Error()), nil
			}

			a, _ := args["a"].(float64)
			b, _ := args["b"].(float64)

			if b == 0 {
				return toolhub.ErrorResult("division by zero"), nil
			}

			return toolhub.TextResult(fmt.Sprint(a / b)), nil
		},
	)

	return toolhub.NewInProcessServer("calc", "1.0.0", add, divide)
}

// stdioConfig runs this test binary as a stdio server.
func stdioConfig(t *testing.T, id string) toolhub.ServerConfig {
	t.Helper()

	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}

	return toolhub.ServerConfig{
		ID: id,
		Transport: &toolhub.StdioTransport{
			Command: exe,
			Env:     map[string]string{serverModeEnv: "1"},
		},
	}
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return toolhub.NopLogger()
}
