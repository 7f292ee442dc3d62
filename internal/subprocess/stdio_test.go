package subprocess

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
	"github.com/wagiedev/mcp-toolhub-go/internal/protocol"
)

func helperTransport(t *testing.T, mode string, opts *config.Options, extraEnv map[string]string) *StdioTransport {
	t.Helper()

	env := map[string]string{helperModeEnv: mode}
	for k, v := range extraEnv {
		env[k] = v
	}

	cfg := &mcp.StdioTransport{Command: os.Args[0], Env: env}

	return NewStdioTransport(slog.Default(), "helper", cfg, opts)
}

func TestStdioTransport_RoundTrip(t *testing.T) {
	transport := helperTransport(t, "echo", nil, nil)
	require.NoError(t, transport.Start(context.Background()))
	require.True(t, transport.IsReady())

	controller := protocol.NewController(slog.Default(), transport)
	require.NoError(t, controller.Start(context.Background()))

	defer func() {
		controller.Stop()
		require.NoError(t, transport.Close())
	}()

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Go(func() {
			res, err := controller.Request(context.Background(), "echo", map[string]int{"i": i}, 5*time.Second)
			assert.NoError(t, err)
			assert.JSONEq(t, `{"i":`+strconv.Itoa(i)+`}`, string(res))
		})
	}

	wg.Wait()
}

func TestStdioTransport_EnvAndCwd(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	env := map[string]string{helperModeEnv: "echo", "TOOLHUB_TEST_VALUE": "from-config"}
	cfg := &mcp.StdioTransport{Command: os.Args[0], Env: env, Cwd: dir}

	transport := NewStdioTransport(slog.Default(), "helper", cfg, nil)
	require.NoError(t, transport.Start(context.Background()))

	controller := protocol.NewController(slog.Default(), transport)
	require.NoError(t, controller.Start(context.Background()))

	defer func() {
		controller.Stop()
		_ = transport.Close()
	}()

	res, err := controller.Request(context.Background(), "env", nil, 5*time.Second)
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal(res, &got))
	require.Equal(t, "from-config", got["value"])
	require.Equal(t, dir, got["cwd"])
}

func TestStdioTransport_CrashReportsProcessError(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)

	opts := &config.Options{Stderr: func(serverID, line string) {
		mu.Lock()
		defer mu.Unlock()

		lines = append(lines, serverID+": "+line)
	}}

	transport := helperTransport(t, "crash", opts, nil)
	require.NoError(t, transport.Start(context.Background()))

	defer transport.Close()

	chunks, errs := transport.ReadMessages(context.Background())

	require.NoError(t, transport.SendMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"x"}`)))

	for range chunks {
	}

	err := <-errs

	procErr, ok := stderrors.AsType[*errors.ProcessError](err)
	require.True(t, ok, "expected ProcessError, got %v", err)
	require.Equal(t, 3, procErr.ExitCode)
	require.Contains(t, procErr.Stderr, "fatal: crash requested")

	mu.Lock()
	defer mu.Unlock()

	require.Contains(t, lines, "helper: fatal: crash requested")
}

func TestStdioTransport_CloseKillsHungProcess(t *testing.T) {
	transport := helperTransport(t, "hang", &config.Options{ShutdownGrace: 100 * time.Millisecond}, nil)
	require.NoError(t, transport.Start(context.Background()))

	chunks, errs := transport.ReadMessages(context.Background())

	start := time.Now()
	require.NoError(t, transport.Close())
	require.Less(t, time.Since(start), 5*time.Second)

	for range chunks {
	}

	// Intentional shutdown reports no error.
	require.NoError(t, <-errs)
	require.False(t, transport.IsReady())
	require.NoError(t, transport.Close())
}

func TestStdioTransport_CloseWithoutReader(t *testing.T) {
	transport := helperTransport(t, "hang", nil, nil)
	require.NoError(t, transport.Start(context.Background()))
	require.NoError(t, transport.Close())
}

func TestStdioTransport_StartFailure(t *testing.T) {
	cfg := &mcp.StdioTransport{Command: "/nonexistent/toolhub-server"}
	transport := NewStdioTransport(slog.Default(), "missing", cfg, nil)

	err := transport.Start(context.Background())

	connErr, ok := stderrors.AsType[*errors.ConnectionError](err)
	require.True(t, ok)
	require.Equal(t, "missing", connErr.ServerID)
}

func TestStdioTransport_NotStarted(t *testing.T) {
	transport := &StdioTransport{log: slog.Default()}

	require.NoError(t, transport.Close())
	require.ErrorIs(t, transport.SendMessage(context.Background(), []byte(`{}`)), errors.ErrTransportNotConnected)
	require.False(t, transport.IsReady())
}

func TestSendMessage_ConcurrentWritesAreSerialized(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &StdioTransport{log: slog.Default(), stdin: writer}

	received := make(chan []byte, 1)

	go func() {
		data, _ := io.ReadAll(reader)
		received <- data
	}()

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Go(func() {
			assert.NoError(t, transport.SendMessage(context.Background(), []byte(`{"id":`+strconv.Itoa(i)+`}`)))
		})
	}

	wg.Wait()
	writer.Close()

	lines := protocol.NewLineBuffer(0).Feed(<-received)
	require.Len(t, lines, 10)

	for _, line := range lines {
		require.True(t, json.Valid(line), "interleaved write: %s", line)
	}
}

func TestSendMessage_CancelledContext(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	transport := &StdioTransport{log: slog.Default(), stdin: writer}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, transport.SendMessage(ctx, []byte(`{}`)), context.Canceled)
}

func TestSendMessage_BlockedWriteCancelClosesStdin(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()

	transport := &StdioTransport{log: slog.Default(), stdin: writer}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// Nobody reads the pipe, so the write blocks until stdin is closed.
	require.ErrorIs(t, transport.SendMessage(ctx, []byte(`{}`)), context.DeadlineExceeded)
	require.ErrorIs(t, transport.SendMessage(context.Background(), []byte(`{}`)), errors.ErrStdinClosed)
}

func TestSendMessage_DoesNotMutateCallerSlice(t *testing.T) {
	reader, writer := io.Pipe()
	defer reader.Close()
	defer writer.Close()

	go func() { _, _ = io.Copy(io.Discard, reader) }()

	transport := &StdioTransport{log: slog.Default(), stdin: writer}

	backing := make([]byte, 2, 8)
	copy(backing, "{}")
	spare := backing[:3]
	spare[2] = 'X'

	require.NoError(t, transport.SendMessage(context.Background(), backing[:2]))
	require.Equal(t, byte('X'), spare[2])
}

func TestBuildEnvironment(t *testing.T) {
	t.Setenv("TOOLHUB_ENV_A", "original")

	env := buildEnvironment(map[string]string{"TOOLHUB_ENV_A": "override", "TOOLHUB_ENV_B": "new"})

	require.Contains(t, env, "TOOLHUB_ENV_A=override")
	require.Contains(t, env, "TOOLHUB_ENV_B=new")
	require.NotContains(t, env, "TOOLHUB_ENV_A=original")
}
