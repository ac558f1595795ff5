package realtime

import (
	"encoding/json"
	"fmt"
)

// EventType enumerates transport lifecycle and delivery events.
type EventType string

const (
	// Connection events
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventError        EventType = "error"

	// Subscription events
	EventSubscribing  EventType = "subscribing"
	EventSubscribed   EventType = "subscribed"
	EventUnsubscribed EventType = "unsubscribed"
	EventPublication  EventType = "publication"
)

func (et EventType) String() string {
	return string(et)
}

// IsValid checks if the EventType is a known value
func (et EventType) IsValid() bool {
	switch et {
	case EventConnected, EventDisconnected, EventError,
		EventSubscribing, EventSubscribed, EventUnsubscribed, EventPublication:
		return true
	default:
		return false
	}
}

// Event is one notification from the transport. Which fields are set
// depends on Type: Channel for subscription events, ClientID for connected,
// Code and Reason for disconnected, Err for error, Data for publication.
type Event struct {
	Type     EventType
	Channel  string
	ClientID string
	Code     uint32
	Reason   string
	Err      error
	Data     json.RawMessage
}

func (e Event) String() string {
	switch e.Type {
	case EventError:
		return fmt.Sprintf("%s channel=%q: %v", e.Type, e.Channel, e.Err)
	case EventDisconnected:
		return fmt.Sprintf("%s code=%d reason=%q", e.Type, e.Code, e.Reason)
	default:
		return fmt.Sprintf("%s channel=%q", e.Type, e.Channel)
	}
}

// EventSink receives events from a transport. Implementations must not block
// for long: events are delivered from the transport's read loop.
type EventSink interface {
	HandleEvent(Event)
}

// Listener observes every event seen by a Client.
type Listener func(Event)
