package streamhttp

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"sync"
	"time"

	sse "github.com/tmaxmax/go-sse"

	"github.com/wagiedev/mcp-toolhub-go/internal/config"
	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// Header names used by the streamable HTTP transport.
const (
	HeaderSessionID       = "Mcp-Session-Id"
	HeaderProtocolVersion = "Mcp-Protocol-Version"
)

const (
	maxErrorBodySize   = 4096
	maxSSEEventSize    = 10 * 1024 * 1024 // 10MB
	sessionDeleteGrace = 2 * time.Second
)

// Transport implements Transport over streamable HTTP.
type Transport struct {
	log      *slog.Logger
	serverID string
	endpoint string
	headers  map[string]string
	client   *http.Client

	inbound chan []byte
	errs    chan error

	// Stream lifetime; SSE bodies outlive the SendMessage call that opened them.
	ctx    context.Context //nolint:containedctx // lifetime of open response streams
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	sessionID string
	started   bool
	closed    bool
}

// Compile-time verification that Transport implements the Transport interface.
var _ config.Transport = (*Transport)(nil)

// NewTransport creates a streamable HTTP transport.
// A nil client selects http.DefaultClient.
func NewTransport(log *slog.Logger, serverID string, cfg *mcp.HTTPTransport, client *http.Client) *Transport {
	if client == nil {
		client = http.DefaultClient
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Transport{
		log:      log.With("component", "http_transport", "server_id", serverID),
		serverID: serverID,
		endpoint: cfg.URL,
		headers:  headers,
		client:   client,
		inbound:  make(chan []byte, 16),
		errs:     make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start validates the endpoint. No request is made until the first message.
func (t *Transport) Start(_ context.Context) error {
	u, err := url.Parse(t.endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		if err == nil {
			err = fmt.Errorf("unsupported endpoint %q", t.endpoint)
		}

		return &errors.ConnectionError{ServerID: t.serverID, Err: err}
	}

	t.mu.Lock()
	t.started = true
	t.mu.Unlock()

	t.log.Info("HTTP transport ready", "endpoint", t.endpoint)

	return nil
}

// ReadMessages returns the inbound chunk channel, closed by Close.
func (t *Transport) ReadMessages(_ context.Context) (<-chan []byte, <-chan error) {
	return t.inbound, t.errs
}

// SessionID returns the session id assigned by the server, if any.
func (t *Transport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.sessionID
}

// SendMessage POSTs one message and forwards whatever the server answers.
//
// HTTP-level failures are returned to the caller. JSON-RPC responses are
// delivered through ReadMessages, never returned here.
func (t *Transport) SendMessage(ctx context.Context, data []byte) error {
	t.mu.Lock()

	if !t.started || t.closed {
		t.mu.Unlock()

		return errors.ErrTransportNotConnected
	}

	// Registered under mu so Close never closes inbound under a live send.
	t.wg.Add(1)
	sessionID := t.sessionID

	t.mu.Unlock()

	streaming := false

	defer func() {
		if !streaming {
			t.wg.Done()
		}
	}()

	reqCtx, reqCancel := context.WithCancel(t.ctx)
	stop := context.AfterFunc(ctx, reqCancel)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, t.endpoint, bytes.NewReader(bytes.TrimSpace(data)))
	if err != nil {
		stop()
		reqCancel()

		return fmt.Errorf("create request: %w", err)
	}

	t.setHeaders(req, sessionID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := t.client.Do(req)

	// The caller's ctx bounds the wait for headers only.
	stop()

	if err != nil {
		reqCancel()

		return fmt.Errorf("http request: %w", err)
	}

	if sid := resp.Header.Get(HeaderSessionID); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	switch {
	case resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusNoContent:
		_ = resp.Body.Close()
		reqCancel()

		return nil

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		_ = resp.Body.Close()
		reqCancel()

		t.log.Warn("Server rejected message", "status", resp.StatusCode)

		return fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))

	if mediaType == "text/event-stream" {
		streaming = true

		go func() {
			defer t.wg.Done()
			defer reqCancel()

			t.readStream(resp.Body)
		}()

		return nil
	}

	defer reqCancel()

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	t.push(append(body, '\n'))

	return nil
}

// readStream forwards each SSE event's data as one line.
func (t *Transport) readStream(body io.ReadCloser) {
	defer body.Close()

	cfg := &sse.ReadConfig{MaxEventSize: maxSSEEventSize}

	for ev, err := range sse.Read(body, cfg) {
		if err != nil {
			if !stderrors.Is(err, context.Canceled) && t.ctx.Err() == nil {
				t.log.Warn("Failed to read SSE stream", "error", err)
			}

			return
		}

		if ev.Data == "" {
			continue
		}

		t.push([]byte(ev.Data + "\n"))
	}
}

func (t *Transport) push(chunk []byte) {
	select {
	case t.inbound <- chunk:
	case <-t.ctx.Done():
	}
}

func (t *Transport) setHeaders(req *http.Request, sessionID string) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	req.Header.Set(HeaderProtocolVersion, mcp.ProtocolVersion)

	if sessionID != "" {
		req.Header.Set(HeaderSessionID, sessionID)
	}
}

// IsReady returns true between Start and Close.
func (t *Transport) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.started && !t.closed
}

// Close ends the session, cancels open streams and closes the inbound
// channel. It's safe to call Close multiple times.
func (t *Transport) Close() error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()

		return nil
	}

	t.closed = true
	sessionID := t.sessionID
	started := t.started

	t.mu.Unlock()

	if started && sessionID != "" {
		t.deleteSession(sessionID)
	}

	t.cancel()
	t.wg.Wait()
	close(t.inbound)
	close(t.errs)

	t.log.Debug("HTTP transport closed")

	return nil
}

// deleteSession tells the server the session is over. Failures are ignored.
func (t *Transport) deleteSession(sessionID string) {
	ctx, cancel := context.WithTimeout(t.ctx, sessionDeleteGrace)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, t.endpoint, nil)
	if err != nil {
		return
	}

	t.setHeaders(req, sessionID)

	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Debug("Session delete failed", "error", err)

		return
	}

	_ = resp.Body.Close()
}
