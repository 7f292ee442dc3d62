package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wagiedev/mcp-toolhub-go/internal/mcp"
)

// EventType identifies a client event.
type EventType string

// Client event types.
const (
	EventConnected        EventType = "connected"
	EventDisconnected     EventType = "disconnected"
	EventError            EventType = "error"
	EventToolsChanged     EventType = "tools_changed"
	EventResourcesChanged EventType = "resources_changed"
	EventPromptsChanged   EventType = "prompts_changed"
	EventProgress         EventType = "progress"
	EventLog              EventType = "log"
	EventResourceUpdated  EventType = "resource_updated"
)

// Event is published on every connection change and server notification.
type Event struct {
	Type     EventType
	ServerID string
	Time     time.Time

	// Err is set for EventError, and for EventDisconnected when the
	// transport exited on its own.
	Err error

	// ServerInfo is set for EventConnected.
	ServerInfo *mcp.ServerInfo

	// Progress is set for EventProgress.
	Progress *mcp.ProgressParams

	// Log is set for EventLog.
	Log *mcp.LoggingMessageParams

	// URI is set for EventResourceUpdated.
	URI string
}

// Subscribe registers fn for every client event and returns a function
// that removes it. fn runs on the goroutine that produced the event, which
// may be the connection's read loop: it must not block and must not call
// back into the client synchronously.
func (c *Client) Subscribe(fn func(Event)) (cancel func()) {
	return c.events.Subscribe(fn)
}

func (c *Client) emit(e Event) {
	e.ServerID = c.cfg.ID
	e.Time = time.Now()

	c.events.Publish(e)
}

// handleNotification is the controller's notification callback.
func (c *Client) handleNotification(ctx context.Context, method string, params json.RawMessage) {
	switch method {
	case mcp.NotificationToolsListChanged:
		c.invalidate(func() { c.tools.invalidate() })
		c.emit(Event{Type: EventToolsChanged})

	case mcp.NotificationResourcesListChanged:
		c.invalidate(func() { c.resources.invalidate() })
		c.emit(Event{Type: EventResourcesChanged})

	case mcp.NotificationPromptsListChanged:
		c.invalidate(func() { c.prompts.invalidate() })
		c.emit(Event{Type: EventPromptsChanged})

	case mcp.NotificationProgress:
		var p mcp.ProgressParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.log.Warn("Dropping malformed progress notification", "error", err)

			return
		}

		if fn := c.progressHandler(p.ProgressToken); fn != nil {
			fn(p)
		}

		c.emit(Event{Type: EventProgress, Progress: &p})

	case mcp.NotificationMessage:
		var p mcp.LoggingMessageParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.log.Warn("Dropping malformed log notification", "error", err)

			return
		}

		c.log.Log(ctx, logLevel(p.Level), "Server log", "logger", p.Logger, "data", string(p.Data))
		c.emit(Event{Type: EventLog, Log: &p})

	case mcp.NotificationResourceUpdated:
		var p mcp.ResourceUpdatedParams
		if err := json.Unmarshal(params, &p); err != nil {
			c.log.Warn("Dropping malformed resource update", "error", err)

			return
		}

		c.emit(Event{Type: EventResourceUpdated, URI: p.URI})

	default:
		c.log.Debug("Ignoring notification", "method", method)
	}
}

// logLevel maps MCP (syslog) severities onto slog levels.
func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info", "notice":
		return slog.LevelInfo
	case "warning":
		return slog.LevelWarn
	case "error", "critical", "alert", "emergency":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// progressKey normalizes a progress token; servers echo it back as either a
// string or a number.
func progressKey(token any) string {
	switch v := token.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

func (c *Client) progressHandler(token any) func(mcp.ProgressParams) {
	key := progressKey(token)
	if key == "" {
		return nil
	}

	c.progressMu.Lock()
	defer c.progressMu.Unlock()

	return c.progress[key]
}
