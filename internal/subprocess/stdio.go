package subprocess

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

const (
	// readChunkSize is the stdout read buffer size.
	readChunkSize = 64 * 1024
	// maxStderrBufferSize caps the stderr kept for ProcessError.
	// Stderr reading continues indefinitely (callback receives all lines),
	// but the buffer stops growing after this limit.
	maxStderrBufferSize = 1024 * 1024 // 1MB
	// maxStderrLineSize is the longest stderr line the scanner accepts.
	maxStderrLineSize = 1024 * 1024
)

// StdioTransport implements Transport by spawning a server subprocess.
type StdioTransport struct {
	log            *slog.Logger
	serverID       string
	command        string
	args           []string
	env            []string
	cwd            string
	grace          time.Duration
	stderrCallback func(string)

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
	exited chan struct{}
	closed chan struct{}

	mu          sync.Mutex // Protects stdin writes and the flags below
	reading     bool       // Whether ReadMessages owns cmd.Wait
	closing     bool       // Whether Close() has been called (intentional shutdown)
	stdinClosed bool       // Whether stdin was closed
}

// Compile-time verification that StdioTransport implements the Transport interface.
var _ config.Transport = (*StdioTransport)(nil)

// NewStdioTransport creates a transport for one subprocess server.
//
// The environment is the current process environment with cfg.Env applied
// on top. An empty cfg.Cwd inherits the current working directory.
func NewStdioTransport(
	log *slog.Logger,
	serverID string,
	cfg *mcp.StdioTransport,
	opts *config.Options,
) *StdioTransport {
	t := &StdioTransport{
		log:      log.With("component", "stdio_transport", "server_id", serverID),
		serverID: serverID,
		command:  cfg.Command,
		args:     slices.Clone(cfg.Args),
		env:      buildEnvironment(cfg.Env),
		cwd:      cfg.Cwd,
		grace:    opts.Grace(),
		exited:   make(chan struct{}),
		closed:   make(chan struct{}),
	}

	if opts != nil && opts.Stderr != nil {
		cb := opts.Stderr
		t.stderrCallback = func(line string) { cb(serverID, line) }
	}

	return t
}

// buildEnvironment merges overrides over os.Environ in a stable order.
func buildEnvironment(overrides map[string]string) []string {
	env := os.Environ()
	if len(overrides) == 0 {
		return env
	}

	env = slices.DeleteFunc(env, func(kv string) bool {
		key, _, _ := strings.Cut(kv, "=")
		_, overridden := overrides[key]

		return overridden
	})

	for _, key := range slices.Sorted(maps.Keys(overrides)) {
		env = append(env, key+"="+overrides[key])
	}

	return env
}

// Start spawns the server process with stdin, stdout and stderr pipes.
//
// The process outlives ctx; it is stopped by Close. Returns a
// *errors.ConnectionError if the process fails to start.
func (t *StdioTransport) Start(_ context.Context) error {
	t.log.Info("Starting server subprocess", "command", t.command, "args", t.args)

	//nolint:gosec // G204: launching configured server commands is the purpose of this transport
	cmd := exec.Command(t.command, t.args...)
	cmd.Dir = t.cwd
	cmd.Env = t.env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.ConnectionError{ServerID: t.serverID, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.ConnectionError{ServerID: t.serverID, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.ConnectionError{ServerID: t.serverID, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		t.log.Error("Failed to start server process", "error", err)

		return &errors.ConnectionError{ServerID: t.serverID, Err: fmt.Errorf("start process: %w", err)}
	}

	t.mu.Lock()
	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.stderr = stderr
	t.mu.Unlock()

	t.log.Info("Server subprocess started", "pid", cmd.Process.Pid)

	return nil
}

// ReadMessages streams raw stdout chunks until the process exits.
//
// When the process exits without Close having been called and with a
// non-zero status, a *errors.ProcessError carrying the captured stderr is
// sent on the error channel. Both channels are closed afterwards.
func (t *StdioTransport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 16)
	errs := make(chan error, 1)

	t.mu.Lock()
	t.reading = true
	t.mu.Unlock()

	var stderrWg sync.WaitGroup

	var stderrBuffer strings.Builder

	var stderrMu sync.Mutex

	// Stderr must be fully read before cmd.Wait.
	// See: https://pkg.go.dev/os/exec#Cmd.StderrPipe
	stderrWg.Go(func() {
		scanner := bufio.NewScanner(t.stderr)
		scanner.Buffer(make([]byte, 0, 4096), maxStderrLineSize)

		for scanner.Scan() {
			line := scanner.Text()

			t.log.Debug("Server stderr", "line", line)

			stderrMu.Lock()

			if stderrBuffer.Len() < maxStderrBufferSize {
				if stderrBuffer.Len() > 0 {
					stderrBuffer.WriteString("\n")
				}

				stderrBuffer.WriteString(line)
			}

			stderrMu.Unlock()

			if t.stderrCallback != nil {
				t.stderrCallback(line)
			}
		}

		if err := scanner.Err(); err != nil {
			t.log.Debug("Stderr scanner error", "error", err)
		}
	})

	go func() {
		defer close(chunks)
		defer close(errs)
		defer t.log.Debug("ReadMessages goroutine stopped")

		buf := make([]byte, readChunkSize)

		for {
			n, err := t.stdout.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])

				select {
				case chunks <- chunk:
				case <-t.closed:
				case <-ctx.Done():
					t.log.Debug("Context cancelled during chunk send", "error", ctx.Err())
				}
			}

			if err != nil {
				if !stderrors.Is(err, io.EOF) && !stderrors.Is(err, os.ErrClosed) {
					t.log.Debug("Stdout read error", "error", err)
				}

				break
			}
		}

		stderrWg.Wait()

		t.log.Debug("Waiting for server process to exit")

		waitErr := t.cmd.Wait()
		close(t.exited)

		t.mu.Lock()
		isClosing := t.closing
		t.mu.Unlock()

		if isClosing {
			t.log.Debug("Server process terminated during shutdown")

			return
		}

		if waitErr == nil {
			t.log.Info("Server process exited")

			return
		}

		stderrMu.Lock()
		stderrOutput := strings.TrimSpace(stderrBuffer.String())
		stderrMu.Unlock()

		exitCode := -1
		if exitErr, ok := stderrors.AsType[*exec.ExitError](waitErr); ok {
			exitCode = exitErr.ExitCode()
		}

		t.log.Error("Server process exited with error", "exit_code", exitCode, "stderr", stderrOutput)

		errs <- &errors.ProcessError{
			ExitCode: exitCode,
			Stderr:   stderrOutput,
			Err:      waitErr,
		}
	}()

	return chunks, errs
}

// SendMessage writes one message to the server's stdin.
//
// This method is safe for concurrent use and respects context cancellation
// even during blocking writes. If the context is cancelled during a blocked
// write, stdin is closed to unblock it and later calls return ErrStdinClosed.
func (t *StdioTransport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return errors.ErrTransportNotConnected
	}

	if t.stdinClosed {
		return errors.ErrStdinClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Copy so a caller's spare capacity is never written to.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		line := make([]byte, len(data)+1)
		copy(line, data)
		line[len(data)] = '\n'
		data = line
	}

	done := make(chan error, 1)

	go func() {
		_, err := t.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.log.Error("Failed to write message to server", "error", err)

			return fmt.Errorf("write to stdin: %w", err)
		}

		return nil

	case <-ctx.Done():
		t.log.Debug("Context cancelled during write, closing stdin")

		_ = t.stdin.Close()
		t.stdinClosed = true

		select {
		case <-done:
		case <-time.After(time.Second):
			t.log.Warn("Write goroutine did not exit after stdin close, potential leak")
		}

		return ctx.Err()
	}
}

// IsReady returns true if the process is running and stdin is open.
func (t *StdioTransport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cmd != nil && t.stdin != nil && !t.stdinClosed && !t.closing
}

// Close stops the server process.
//
// Stdin is closed first so a well-behaved server can exit on EOF. A process
// still running after the grace period is killed. It's safe to call Close
// multiple times or before Start.
func (t *StdioTransport) Close() error {
	t.mu.Lock()

	if t.closing || t.cmd == nil {
		t.closing = true
		t.mu.Unlock()

		return nil
	}

	t.closing = true
	close(t.closed)

	if t.stdin != nil && !t.stdinClosed {
		_ = t.stdin.Close()
		t.stdinClosed = true
	}

	cmd, reading := t.cmd, t.reading

	t.mu.Unlock()

	if !reading {
		// Nobody owns Wait; reap the process here.
		_ = cmd.Process.Kill()
		_ = cmd.Wait()

		return nil
	}

	select {
	case <-t.exited:
		t.log.Debug("Server process exited after stdin close")

		return nil
	case <-time.After(t.grace):
	}

	t.log.Debug("Killing server process", "pid", cmd.Process.Pid)

	if err := cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill server process (pid %d): %w", cmd.Process.Pid, err)
	}

	select {
	case <-t.exited:
	case <-time.After(t.grace):
		t.log.Warn("Server process did not exit after kill", "pid", cmd.Process.Pid)
	}

	return nil
}
