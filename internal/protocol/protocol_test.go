package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/mcp-toolhub-go/internal/errors"
)

// mockTransport is a minimal mock for controller tests.
type mockTransport struct {
	mu      sync.Mutex
	sent    [][]byte
	msgChan chan []byte
	errChan chan error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		sent:    make([][]byte, 0, 10),
		msgChan: make(chan []byte, 100),
		errChan: make(chan error, 1),
	}
}

func (m *mockTransport) ReadMessages(_ context.Context) (<-chan []byte, <-chan error) {
	return m.msgChan, m.errChan
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent = append(m.sent, data)

	return nil
}

// blockingTransport holds every write until released, like a full pipe.
type blockingTransport struct {
	*mockTransport
	release   chan struct{}
	started   chan struct{}
	cancelled atomic.Bool
}

func newBlockingTransport() *blockingTransport {
	return &blockingTransport{
		mockTransport: newMockTransport(),
		release:       make(chan struct{}),
		started:       make(chan struct{}, 10),
	}
}

func (b *blockingTransport) SendMessage(ctx context.Context, data []byte) error {
	b.started <- struct{}{}

	select {
	case <-b.release:
		return b.mockTransport.SendMessage(ctx, data)
	case <-ctx.Done():
		b.cancelled.Store(true)

		return ctx.Err()
	}
}

func (b *blockingTransport) waitStarted(t *testing.T) {
	t.Helper()

	select {
	case <-b.started:
	case <-time.After(2 * time.Second):
		t.Fatal("write never started")
	}
}

func (m *mockTransport) getSent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([][]byte, len(m.sent))
	copy(result, m.sent)

	return result
}

func (m *mockTransport) sendToController(line string) {
	m.msgChan <- []byte(line + "\n")
}

func (m *mockTransport) sentRequests(t *testing.T) []Message {
	t.Helper()

	var out []Message

	for _, raw := range m.getSent() {
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))

		out = append(out, msg)
	}

	return out
}

func startController(t *testing.T, transport *mockTransport) *Controller {
	t.Helper()

	controller := NewController(slog.Default(), transport)
	require.NoError(t, controller.Start(context.Background()))

	return controller
}

func waitPending(t *testing.T, c *Controller, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return c.PendingCount() == n
	}, 2*time.Second, time.Millisecond)
}

func waitSent(t *testing.T, m *mockTransport, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(m.getSent()) == n
	}, 2*time.Second, time.Millisecond)
}

func TestController_SetFatalError_ConcurrentWithStop(t *testing.T) {
	// Run with: go test -race -count=100
	for range 100 {
		transport := newMockTransport()
		controller := startController(t, transport)

		var wg sync.WaitGroup

		wg.Go(func() {
			controller.SetFatalError(stderrors.New("transport error"))
		})

		wg.Go(func() {
			controller.Stop()
		})

		wg.Wait()

		select {
		case <-controller.Done():
		default:
			t.Fatal("done channel should be closed")
		}
	}
}

func TestController_SetFatalError_MultipleCalls(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	controller.SetFatalError(stderrors.New("first error"))
	require.EqualError(t, controller.FatalError(), "first error")

	controller.SetFatalError(stderrors.New("second error"))
	require.EqualError(t, controller.FatalError(), "first error")
}

func TestController_Stop_MultipleCalls(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	controller.Stop()
	controller.Stop()
	controller.Stop()
}

func TestController_Request_AssignsIncreasingIDs(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	for range 3 {
		go func() {
			_, _ = controller.Request(context.Background(), "tools/list", nil, time.Second)
		}()
	}

	waitSent(t, transport, 3)

	seen := make(map[int64]bool)

	for _, msg := range transport.sentRequests(t) {
		id, ok := msg.IntID()
		require.True(t, ok)
		require.False(t, seen[id], "duplicate id %d", id)
		require.Positive(t, id)
		require.Equal(t, "2.0", msg.JSONRPC)

		seen[id] = true
	}

	require.Len(t, seen, 3)
}

func TestController_Request_OutOfOrderResponses(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	const n = 5

	results := make([]json.RawMessage, n)

	var wg sync.WaitGroup

	for i := range n {
		wg.Go(func() {
			res, err := controller.Request(context.Background(), "echo", map[string]int{"n": i}, 2*time.Second)
			if err == nil {
				results[i] = res
			}
		})
	}

	waitSent(t, transport, n)

	sent := transport.sentRequests(t)
	require.Len(t, sent, n)

	// Answer in reverse order of sending.
	for i := len(sent) - 1; i >= 0; i-- {
		transport.sendToController(fmt.Sprintf(
			`{"jsonrpc":"2.0","id":%s,"result":%s}`, sent[i].ID, sent[i].Params,
		))
	}

	wg.Wait()

	for i := range n {
		require.JSONEq(t, fmt.Sprintf(`{"n":%d}`, i), string(results[i]))
	}

	require.Zero(t, controller.PendingCount())
}

func TestController_Request_Timeout(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	start := time.Now()
	_, err := controller.Request(context.Background(), "slow", nil, 20*time.Millisecond)

	require.ErrorIs(t, err, errors.ErrRequestTimeout)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	require.Zero(t, controller.PendingCount())

	// A late response is logged and ignored.
	transport.sendToController(`{"jsonrpc":"2.0","id":1,"result":{}}`)

	_, err = controller.Request(context.Background(), "slow", nil, 10*time.Millisecond)
	require.ErrorIs(t, err, errors.ErrRequestTimeout)
}

func TestController_Request_ContextCancelled(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		_, err := controller.Request(ctx, "slow", nil, time.Minute)
		done <- err
	}()

	waitPending(t, controller, 1)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	require.Zero(t, controller.PendingCount())
}

func TestController_Request_CancelDuringWrite(t *testing.T) {
	transport := newBlockingTransport()
	controller := NewController(slog.Default(), transport)
	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		_, err := controller.Request(ctx, "tools/call", nil, time.Minute)
		done <- err
	}()

	transport.waitStarted(t)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Request did not return after cancel")
	}

	require.Zero(t, controller.PendingCount())

	// The write itself was not interrupted and still completes.
	close(transport.release)
	waitSent(t, transport.mockTransport, 1)
	require.False(t, transport.cancelled.Load())
}

func TestController_Notify_CancelDuringWrite(t *testing.T) {
	transport := newBlockingTransport()
	controller := NewController(slog.Default(), transport)
	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- controller.Notify(ctx, "notifications/initialized", nil)
	}()

	transport.waitStarted(t)
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)

	close(transport.release)
	waitSent(t, transport.mockTransport, 1)
	require.False(t, transport.cancelled.Load())
}

func TestController_Stop_CancelsBlockedWrite(t *testing.T) {
	transport := newBlockingTransport()
	controller := NewController(slog.Default(), transport)
	require.NoError(t, controller.Start(context.Background()))

	done := make(chan error, 1)

	go func() {
		_, err := controller.Request(context.Background(), "tools/call", nil, time.Minute)
		done <- err
	}()

	transport.waitStarted(t)
	controller.Stop()

	require.ErrorIs(t, <-done, errors.ErrConnectionClosed)
	require.Eventually(t, transport.cancelled.Load, 2*time.Second, time.Millisecond)
}

func TestController_Stop_RejectsAllPending(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	const k = 7

	errs := make(chan error, k)

	for range k {
		go func() {
			_, err := controller.Request(context.Background(), "slow", nil, time.Minute)
			errs <- err
		}()
	}

	waitPending(t, controller, k)
	controller.Stop()

	for range k {
		require.ErrorIs(t, <-errs, errors.ErrConnectionClosed)
	}

	require.Zero(t, controller.PendingCount())

	_, err := controller.Request(context.Background(), "late", nil, time.Second)
	require.ErrorIs(t, err, errors.ErrConnectionClosed)
}

func TestController_TransportEOF_RejectsPending(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	errCh := make(chan error, 1)

	go func() {
		_, err := controller.Request(context.Background(), "slow", nil, time.Minute)
		errCh <- err
	}()

	waitPending(t, controller, 1)

	transport.errChan <- &errors.ProcessError{ExitCode: 3, Stderr: "boom"}
	close(transport.msgChan)

	err := <-errCh
	require.ErrorIs(t, err, errors.ErrConnectionClosed)

	select {
	case <-controller.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel should be closed")
	}

	require.ErrorIs(t, controller.FatalError(), errors.ErrConnectionClosed)

	procErr, ok := stderrors.AsType[*errors.ProcessError](controller.FatalError())
	require.True(t, ok)
	require.Equal(t, 3, procErr.ExitCode)
}

func TestController_ErrorResponse(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	errCh := make(chan error, 1)

	go func() {
		_, err := controller.Request(context.Background(), "tools/call", nil, time.Second)
		errCh <- err
	}()

	waitPending(t, controller, 1)
	transport.sendToController(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"Unknown tool: nope"}}`)

	err := <-errCh

	rpcErr, ok := errors.AsRPCError(err)
	require.True(t, ok)
	require.Equal(t, -32602, rpcErr.Code)
	require.EqualError(t, err, "Unknown tool: nope")
}

func TestController_MalformedLineDoesNotBreakStream(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	resCh := make(chan json.RawMessage, 1)

	go func() {
		res, err := controller.Request(context.Background(), "ping", nil, time.Second)
		if err == nil {
			resCh <- res
		}
	}()

	waitPending(t, controller, 1)

	transport.sendToController(`{not json`)
	transport.sendToController(`{"jsonrpc":"2.0"}`)
	transport.sendToController(`{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`)

	select {
	case res := <-resCh:
		require.JSONEq(t, `{"ok":true}`, string(res))
	case <-time.After(time.Second):
		t.Fatal("response after malformed line was not delivered")
	}
}

func TestController_ResponseSplitAcrossChunks(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	resCh := make(chan json.RawMessage, 1)

	go func() {
		res, err := controller.Request(context.Background(), "ping", nil, time.Second)
		if err == nil {
			resCh <- res
		}
	}()

	waitPending(t, controller, 1)

	transport.msgChan <- []byte(`{"jsonrpc":"2.0","id":1,`)
	transport.msgChan <- []byte(`"result":{"split":true}}`)
	transport.msgChan <- []byte("\n")

	select {
	case res := <-resCh:
		require.JSONEq(t, `{"split":true}`, string(res))
	case <-time.After(time.Second):
		t.Fatal("split response was not delivered")
	}
}

func TestController_UnknownResponseIDIgnored(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	transport.sendToController(`{"jsonrpc":"2.0","id":999,"result":{}}`)

	resCh := make(chan error, 1)

	go func() {
		_, err := controller.Request(context.Background(), "ping", nil, time.Second)
		resCh <- err
	}()

	waitPending(t, controller, 1)
	transport.sendToController(`{"jsonrpc":"2.0","id":"1","result":{}}`)

	require.NoError(t, <-resCh)
}

func TestController_Notifications(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.Default(), transport)

	got := make(chan string, 2)

	controller.SetNotificationHandler(func(_ context.Context, method string, params json.RawMessage) {
		got <- method + " " + string(params)
	})

	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	transport.sendToController(`{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`)
	transport.sendToController(`{"jsonrpc":"2.0","method":"notifications/progress","params":{"progress":1}}`)

	require.Equal(t, "notifications/tools/list_changed ", <-got)
	require.Equal(t, `notifications/progress {"progress":1}`, <-got)
}

func TestController_ServerRequests(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	transport.sendToController(`{"jsonrpc":"2.0","id":"p1","method":"ping"}`)
	transport.sendToController(`{"jsonrpc":"2.0","id":7,"method":"sampling/createMessage","params":{}}`)

	waitSent(t, transport, 2)

	byID := make(map[string]Message)
	for _, msg := range transport.sentRequests(t) {
		byID[string(msg.ID)] = msg
	}

	ping := byID[`"p1"`]
	require.Nil(t, ping.Error)
	require.JSONEq(t, `{}`, string(ping.Result))

	unknown := byID[`7`]
	require.NotNil(t, unknown.Error)
	require.Equal(t, CodeMethodNotFound, unknown.Error.Code)
}

func TestController_RegisterHandler(t *testing.T) {
	transport := newMockTransport()
	controller := NewController(slog.Default(), transport)

	controller.RegisterHandler("roots/list", func(context.Context, json.RawMessage) (any, error) {
		return map[string]any{"roots": []any{}}, nil
	})
	controller.RegisterHandler("fails", func(context.Context, json.RawMessage) (any, error) {
		return nil, &errors.RPCError{Code: -32000, Message: "nope"}
	})

	require.NoError(t, controller.Start(context.Background()))

	defer controller.Stop()

	transport.sendToController(`{"jsonrpc":"2.0","id":1,"method":"roots/list"}`)
	transport.sendToController(`{"jsonrpc":"2.0","id":2,"method":"fails"}`)

	waitSent(t, transport, 2)

	byID := make(map[string]Message)
	for _, msg := range transport.sentRequests(t) {
		byID[string(msg.ID)] = msg
	}

	require.JSONEq(t, `{"roots":[]}`, string(byID["1"].Result))
	require.Equal(t, -32000, byID["2"].Error.Code)
	require.Equal(t, "nope", byID["2"].Error.Message)
}

func TestController_Notify(t *testing.T) {
	transport := newMockTransport()
	controller := startController(t, transport)

	defer controller.Stop()

	require.NoError(t, controller.Notify(context.Background(), "notifications/initialized", nil))

	sent := transport.getSent()
	require.Len(t, sent, 1)
	require.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, string(sent[0]))
}

func TestController_Request_ResponseAfterTimeout_Race(t *testing.T) {
	// Run with: go test -race -count=100 -run TestController_Request_ResponseAfterTimeout_Race
	for range 100 {
		transport := newMockTransport()
		controller := startController(t, transport)

		var wg sync.WaitGroup

		wg.Go(func() {
			_, _ = controller.Request(context.Background(), "test", nil, time.Millisecond)
		})

		wg.Go(func() {
			time.Sleep(500 * time.Microsecond)
			transport.sendToController(`{"jsonrpc":"2.0","id":1,"result":{}}`)
		})

		wg.Wait()
		controller.Stop()

		require.Zero(t, controller.PendingCount())
	}
}
