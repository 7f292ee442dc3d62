package inprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
)

const readChunkSize = 32 * 1024

// Transport connects to an in-process SDK server over pipes.
type Transport struct {
	log      *slog.Logger
	serverID string
	server   *sdkmcp.Server

	// Client side of the pipes.
	fromServer *io.PipeReader
	toServer   *io.PipeWriter

	session *sdkmcp.ServerSession
	cancel  context.CancelFunc

	mu      sync.Mutex // Protects writes and the flags below
	started bool
	closed  bool
}

// Compile-time verification that Transport implements the Transport interface.
var _ config.Transport = (*Transport)(nil)

// NewTransport creates a transport for server.
func NewTransport(log *slog.Logger, serverID string, server *sdkmcp.Server) *Transport {
	return &Transport{
		log:      log.With("component", "inprocess_transport", "server_id", serverID),
		serverID: serverID,
		server:   server,
	}
}

// Start connects the SDK server to a fresh pair of pipes.
func (t *Transport) Start(_ context.Context) error {
	if t.server == nil {
		return &errors.ConnectionError{ServerID: t.serverID, Err: stderrors.New("no server instance")}
	}

	serverIn, toServer := io.Pipe()
	fromServer, serverOut := io.Pipe()

	// The session lives until Close, not until Start returns.
	ctx, cancel := context.WithCancel(context.Background())

	session, err := t.server.Connect(ctx, &sdkmcp.IOTransport{Reader: serverIn, Writer: serverOut}, nil)
	if err != nil {
		cancel()

		_ = toServer.Close()
		_ = fromServer.Close()

		return &errors.ConnectionError{ServerID: t.serverID, Err: fmt.Errorf("connect server: %w", err)}
	}

	t.mu.Lock()
	t.fromServer = fromServer
	t.toServer = toServer
	t.session = session
	t.cancel = cancel
	t.started = true
	t.mu.Unlock()

	t.log.Debug("In-process server connected")

	return nil
}

// ReadMessages streams what the server writes until the pipe closes.
func (t *Transport) ReadMessages(ctx context.Context) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		buf := make([]byte, readChunkSize)

		for {
			n, err := t.fromServer.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])

				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}

			if err != nil {
				if !stderrors.Is(err, io.EOF) && !stderrors.Is(err, io.ErrClosedPipe) {
					errs <- fmt.Errorf("read from server: %w", err)
				}

				return
			}
		}
	}()

	return chunks, errs
}

// SendMessage writes one message to the server. It is safe for concurrent use.
func (t *Transport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started || t.closed {
		return errors.ErrTransportNotConnected
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	line := make([]byte, len(data), len(data)+1)
	copy(line, data)

	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(line, '\n')
	}

	if _, err := t.toServer.Write(line); err != nil {
		return fmt.Errorf("write to server: %w", err)
	}

	return nil
}

// IsReady returns true between Start and Close.
func (t *Transport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.started && !t.closed
}

// Close ends the server session and both pipes. It's safe to call Close
// multiple times.
func (t *Transport) Close() error {
	t.mu.Lock()

	if t.closed || !t.started {
		t.closed = true
		t.mu.Unlock()

		return nil
	}

	t.closed = true
	session, cancel := t.session, t.cancel

	t.mu.Unlock()

	_ = t.toServer.Close()
	_ = session.Close()
	_ = t.fromServer.Close()

	cancel()

	t.log.Debug("In-process server disconnected")

	return nil
}
