package common

import "encoding/json"

// Change events carried by notifications.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	EventAll    = "*"
)

// Envelope types exchanged over the realtime websocket.
const (
	MsgSubscribe       = "subscribe"
	MsgUnsubscribe     = "unsubscribe"
	MsgSubscribed      = "subscribed"
	MsgChange          = "change"
	MsgError           = "error"
	MsgPresenceTrack   = "presence.track"
	MsgPresenceUntrack = "presence.untrack"
	MsgPresenceSync    = "presence.sync"
	MsgPresenceJoin    = "presence.join"
	MsgPresenceLeave   = "presence.leave"
)

// Envelope is the realtime frame in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Table   string          `json:"table,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Notification is delivered to table subscribers.
type Notification struct {
	Event   string          `json:"event"`
	Table   string          `json:"table"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PresenceEntry describes one connected client.
type PresenceEntry struct {
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
	UserRole    string `json:"userRole"`
	CurrentView string `json:"currentView"`
}

// MatchesEvent reports whether a subscription for event accepts got.
func MatchesEvent(event, got string) bool {
	return event == EventAll || event == "" || event == got
}
