package toolhub_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toolhub "github.com/wagiedev/mcp-toolhub-go"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcptest"
)

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
		toolhub.WithAnnotations(&toolhub.McpToolAnnotations{ReadOnlyHint: true}),
	)

	fail := toolhub.NewInProcessTool("fail", "Always fails", nil,
		func(context.Context, *toolhub.McpCallToolRequest) (*toolhub.McpCallToolResult, error) {
			return toolhub.ErrorResult("nope"), nil
		},
	)

	return toolhub.NewInProcessServer("calc", "1.0.0", add, fail)
}

func TestWithRegistry_InProcessEndToEnd(t *testing.T) {
	configs := []toolhub.ServerConfig{toolhub.InProcessServerConfig("calc", calcServer())}

	err := toolhub.WithRegistry(context.Background(), configs, func(reg toolhub.Registry) error {
		defs := reg.GetToolDefinitions()
		require.Len(t, defs, 2)
		assert.Equal(t, "calc:add", defs[0].Name)
		assert.Equal(t, "Add two numbers", defs[0].Description)
		require.NotNil(t, defs[0].Parameters)
		assert.Equal(t, "object", defs[0].Parameters.Type)

		res := reg.CallTool(context.Background(), "calc:add", map[string]any{"a": 1, "b": 2})
		assert.True(t, res.Success)
		assert.Equal(t, "3", res.Content)
		assert.Equal(t, "calc", res.ServerID)

		res = reg.CallTool(context.Background(), "calc:fail", nil)
		assert.False(t, res.Success)
		assert.True(t, res.IsError)
		assert.Equal(t, "nope", res.Content)

		status, err := reg.GetServerInfo("calc")
		require.NoError(t, err)
		assert.Equal(t, toolhub.StateConnected, status.Connection.State)
		assert.Equal(t, 2, status.ToolCount)
		require.NotNil(t, status.Connection.ServerInfo)
		assert.Equal(t, "calc", status.Connection.ServerInfo.Name)

		return nil
	})
	require.NoError(t, err)
}

func TestWithRegistry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := toolhub.WithRegistry(ctx, nil, func(toolhub.Registry) error {
		t.Error("callback should not be called with cancelled context")

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithRegistry_CallbackError(t *testing.T) {
	srv := mcptest.NewServer()
	sentinel := errors.New("callback failed")

	configs := []toolhub.ServerConfig{{
		ID:        "a",
		Transport: &toolhub.StdioTransport{Command: "unused"},
	}}

	var reg toolhub.Registry

	err := toolhub.WithRegistry(context.Background(), configs, func(r toolhub.Registry) error {
		reg = r

		return sentinel
	}, toolhub.WithTransportFactory(srv.Factory()))
	require.ErrorIs(t, err, sentinel)

	// Close ran after the callback.
	require.NotNil(t, reg)
	assert.Equal(t, toolhub.StateDisconnected, reg.GetAllServerStatuses()[0].Connection.State)
	assert.True(t, srv.Conn().Closed())
}

func TestWithRegistry_DuplicateServer(t *testing.T) {
	cfg := toolhub.ServerConfig{ID: "a", Transport: &toolhub.StdioTransport{Command: "x"}}

	err := toolhub.WithRegistry(context.Background(), []toolhub.ServerConfig{cfg, cfg}, func(toolhub.Registry) error {
		t.Error("callback should not run")

		return nil
	}, toolhub.WithTransportFactory(mcptest.NewServer().Factory()))
	require.ErrorIs(t, err, toolhub.ErrServerExists)
}

func TestWithRegistry_FailedServerStillRunsCallback(t *testing.T) {
	srv := mcptest.NewServer().WithStartError(errors.New("boom"))

	called := false

	err := toolhub.WithRegistry(context.Background(), []toolhub.ServerConfig{{
		ID:        "down",
		Transport: &toolhub.StdioTransport{Command: "x"},
	}}, func(reg toolhub.Registry) error {
		called = true

		status, err := reg.GetServerInfo("down")
		require.NoError(t, err)
		assert.Equal(t, toolhub.StateError, status.Connection.State)
		assert.Contains(t, status.Connection.LastError, "boom")

		return nil
	}, toolhub.WithTransportFactory(srv.Factory()), toolhub.WithLogger(toolhub.NopLogger()))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestNewClient_MockTransport(t *testing.T) {
	srv := mcptest.NewServer().
		WithTools(toolhub.Tool{Name: "echo", Description: "Echo"}).
		WithToolCall(func(p mcp.CallToolParams) (*toolhub.CallToolResult, error) {
			return &toolhub.CallToolResult{
				Content: []toolhub.Content{{Type: "text", Text: fmt.Sprint(p.Arguments["x"])}},
			}, nil
		})

	client := toolhub.NewClient(toolhub.ServerConfig{
		ID:        "mock",
		Transport: &toolhub.StdioTransport{Command: "unused"},
	}, toolhub.WithTransportFactory(srv.Factory()), toolhub.WithClientInfo("host", "2.0"))

	ctx := context.Background()

	assert.Equal(t, "mock", client.ID())
	assert.Equal(t, toolhub.StateDisconnected, client.State())

	events := make(chan toolhub.ClientEvent, 8)
	cancel := client.Subscribe(func(e toolhub.ClientEvent) { events <- e })

	defer cancel()

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
	assert.True(t, client.IsConnected())

	select {
	case e := <-events:
		assert.Equal(t, toolhub.ClientEventConnected, e.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no connected event")
	}

	require.NoError(t, client.Ping(ctx))

	result, err := client.CallTool(ctx, "echo", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "echo", result.ToolName)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "1", result.Content[0].Text)

	require.NoError(t, client.Disconnect(ctx))
	assert.False(t, client.IsConnected())
}

func TestNewClient_UnimplementedTransport(t *testing.T) {
	client := toolhub.NewClient(toolhub.ServerConfig{
		ID:        "events",
		Transport: &toolhub.SSETransport{URL: "http://localhost:1/sse"},
	})

	err := client.Connect(context.Background())
	require.ErrorIs(t, err, toolhub.ErrNotImplemented)

	connErr, ok := errors.AsType[*toolhub.ConnectionError](err)
	require.True(t, ok)
	assert.Equal(t, "events", connErr.ServerID)

	var tErr toolhub.ToolhubError
	require.ErrorAs(t, err, &tErr)

	assert.Equal(t, toolhub.StateError, client.State())
}

func TestRegistry_ClientAccessor(t *testing.T) {
	reg := toolhub.New()

	require.NoError(t, reg.RegisterServer(toolhub.InProcessServerConfig("calc", calcServer())))

	defer reg.Close(context.Background())

	client, err := reg.Client("calc")
	require.NoError(t, err)
	assert.Equal(t, "calc", client.ID())

	_, err = reg.Client("missing")
	require.ErrorIs(t, err, toolhub.ErrServerNotFound)
}

func TestRegistry_DisabledConfigIgnored(t *testing.T) {
	reg := toolhub.New()

	require.NoError(t, reg.RegisterServer(toolhub.ServerConfig{
		ID:        "off",
		Enabled:   toolhub.Bool(false),
		Transport: &toolhub.StdioTransport{Command: "x"},
	}))
	assert.Empty(t, reg.GetAllServerStatuses())
}

func TestQualifiedNames(t *testing.T) {
	assert.Equal(t, "fs:read", toolhub.QualifyName("fs", "read"))

	id, name, err := toolhub.ParseQualifiedName("fs:read")
	require.NoError(t, err)
	assert.Equal(t, "fs", id)
	assert.Equal(t, "read", name)

	_, _, err = toolhub.ParseQualifiedName("fs:read:extra")
	require.ErrorIs(t, err, toolhub.ErrInvalidQualifiedName)
}

func TestResultHelpers(t *testing.T) {
	result := toolhub.TextResult("Hello, World!")
	require.Len(t, result.Content, 1)
	assert.False(t, result.IsError)

	text, ok := result.Content[0].(*toolhub.McpTextContent)
	require.True(t, ok)
	assert.Equal(t, "Hello, World!", text.Text)

	assert.True(t, toolhub.ErrorResult("bad").IsError)

	image, ok := toolhub.ImageResult([]byte("data"), "image/png").Content[0].(*toolhub.McpImageContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", image.MIMEType)

	tool := toolhub.NewInProcessTool("t", "d", nil, nil,
		toolhub.WithAnnotations(&toolhub.McpToolAnnotations{Title: "T"}))
	require.NotNil(t, tool.Annotations)
	assert.Equal(t, "T", tool.Annotations.Title)
}

func TestFlattenContent(t *testing.T) {
	text := toolhub.FlattenContent([]toolhub.Content{
		{Type: "text", Text: "one"},
		{Type: "image", MIMEType: "image/png"},
	})
	assert.Equal(t, "one\n[Image: image/png]", text)
}
