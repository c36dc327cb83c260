// Package realtime pushes table change notifications and presence updates to
// websocket clients. A Hub owns the connected clients; each client has a
// buffered outbound channel and a client that cannot keep up misses frames
// instead of stalling the others.
package realtime

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

const sendBuffer = 64

type subKey struct {
	table string
	event string
}

type client struct {
	id   string
	send chan common.Envelope

	// guarded by Hub.mu
	subs     map[subKey]struct{}
	presence *common.PresenceEntry
}

func newClient() *client {
	return &client{
		id:   uuid.NewString(),
		send: make(chan common.Envelope, sendBuffer),
		subs: make(map[subKey]struct{}),
	}
}

func (c *client) wants(n common.Notification) bool {
	for k := range c.subs {
		if k.table == n.Table && common.MatchesEvent(k.event, n.Event) {
			return true
		}
	}
	return false
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  logging.Logger
	origins []string
}

type Option func(*Hub)

// WithOriginPatterns restricts websocket upgrades to the given origin
// patterns. "*" accepts any origin.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

func NewHub(logger logging.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*client),
		logger:  logger.With("module", "realtime_hub"),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// sendLocked queues env for c without blocking. Callers hold h.mu.
func (h *Hub) sendLocked(c *client, env common.Envelope) {
	select {
	case c.send <- env:
	default:
		h.logger.Warn(context.Background(), "client channel blocked, frame dropped", "client", c.id, "type", env.Type)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	h.logger.Debug(context.Background(), "client registered", "client", c.id, "total", len(h.clients))
}

// unregister removes c, tells the others if it was present and closes its
// outbound channel.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	if c.presence != nil {
		h.broadcastPresenceLocked(c, common.MsgPresenceLeave, *c.presence)
		c.presence = nil
	}
	delete(h.clients, c.id)
	close(c.send)
	h.logger.Debug(context.Background(), "client unregistered", "client", c.id, "remaining", len(h.clients))
}

// Publish delivers n to this hub's subscribers.
func (h *Hub) Publish(_ context.Context, n common.Notification) {
	h.Broadcast(n)
}

// Broadcast sends n to every client subscribed to its table and event.
func (h *Hub) Broadcast(n common.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	env := common.Envelope{Type: common.MsgChange, Table: n.Table, Event: n.Event, Payload: n.Payload}
	delivered := 0
	for _, c := range h.clients {
		if c.wants(n) {
			h.sendLocked(c, env)
			delivered++
		}
	}
	h.logger.Debug(context.Background(), "change broadcast", "table", n.Table, "event", n.Event, "clients", delivered)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Roster lists every tracked presence, ordered by user name.
func (h *Hub) Roster() []common.PresenceEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rosterLocked()
}

func (h *Hub) rosterLocked() []common.PresenceEntry {
	var out []common.PresenceEntry
	for _, c := range h.clients {
		if c.presence != nil {
			out = append(out, *c.presence)
		}
	}
	slices.SortFunc(out, func(a, b common.PresenceEntry) int {
		if n := cmp.Compare(a.UserName, b.UserName); n != 0 {
			return n
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

func presenceEnvelope(msgType string, entries []common.PresenceEntry) common.Envelope {
	if entries == nil {
		entries = []common.PresenceEntry{}
	}
	payload, _ := json.Marshal(entries)
	return common.Envelope{Type: msgType, Payload: payload}
}

func errorEnvelope(table, event, msg string) common.Envelope {
	payload, _ := json.Marshal(msg)
	return common.Envelope{Type: common.MsgError, Table: table, Event: event, Payload: payload}
}

func (h *Hub) broadcastPresenceLocked(from *client, msgType string, entry common.PresenceEntry) {
	env := presenceEnvelope(msgType, []common.PresenceEntry{entry})
	for _, c := range h.clients {
		if c != from {
			h.sendLocked(c, env)
		}
	}
}

// handle applies one inbound frame from c.
func (h *Hub) handle(ctx context.Context, c *client, env common.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch env.Type {
	case common.MsgSubscribe:
		if !common.IsKnownTable(env.Table) {
			h.sendLocked(c, errorEnvelope(env.Table, env.Event, fmt.Sprintf("unknown table %q", env.Table)))
			return
		}
		event := cmp.Or(env.Event, common.EventAll)
		switch event {
		case common.EventAll, common.EventInsert, common.EventUpdate, common.EventDelete:
		default:
			h.sendLocked(c, errorEnvelope(env.Table, env.Event, fmt.Sprintf("unknown event %q", env.Event)))
			return
		}
		c.subs[subKey{table: env.Table, event: event}] = struct{}{}
		h.sendLocked(c, common.Envelope{Type: common.MsgSubscribed, Table: env.Table, Event: env.Event})

	case common.MsgUnsubscribe:
		delete(c.subs, subKey{table: env.Table, event: cmp.Or(env.Event, common.EventAll)})

	case common.MsgPresenceTrack:
		var entry common.PresenceEntry
		if err := json.Unmarshal(env.Payload, &entry); err != nil || entry.UserID == "" {
			h.sendLocked(c, errorEnvelope("", "", "invalid presence payload"))
			return
		}
		c.presence = &entry
		h.sendLocked(c, presenceEnvelope(common.MsgPresenceSync, h.rosterLocked()))
		h.broadcastPresenceLocked(c, common.MsgPresenceJoin, entry)

	case common.MsgPresenceUntrack:
		if c.presence == nil {
			return
		}
		h.broadcastPresenceLocked(c, common.MsgPresenceLeave, *c.presence)
		c.presence = nil

	default:
		h.logger.Warn(ctx, "unknown realtime frame", "client", c.id, "type", env.Type)
		h.sendLocked(c, errorEnvelope("", "", fmt.Sprintf("unknown frame type %q", env.Type)))
	}
}
