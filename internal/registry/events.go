package registry

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/mcp-toolhub-go/internal/client"
)

// EventType identifies a registry event.
type EventType string

// Registry event types.
const (
	EventServerRegistered   EventType = "server_registered"
	EventServerUnregistered EventType = "server_unregistered"
	EventServerConnected    EventType = "server_connected"
	EventServerError        EventType = "server_error"
	EventAllDisconnected    EventType = "all_disconnected"
	EventToolToggled        EventType = "tool_toggled"
	EventToolsRefreshed     EventType = "tools_refreshed"
	EventServerEvent        EventType = "server_event"
)

// Event is published to registry subscribers.
type Event struct {
	ID         string
	Type       EventType
	Time       time.Time
	ServerID   string
	ServerName string

	// ToolName is the qualified name for EventToolToggled.
	ToolName string
	// Enabled is the new state for EventToolToggled.
	Enabled bool
	// ToolCount is set for EventServerConnected and EventToolsRefreshed.
	ToolCount int
	// Err is set for EventServerError.
	Err error
	// Client is the forwarded client event for EventServerEvent.
	Client *client.Event
}

// Subscribe registers fn for every registry event and returns a function
// that removes it. fn must not block.
func (r *Registry) Subscribe(fn func(Event)) (cancel func()) {
	return r.events.Subscribe(fn)
}

func (r *Registry) emit(e Event) {
	e.ID = ulid.Make().String()
	e.Time = time.Now()

	r.events.Publish(e)
}
