package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// SubscriptionStatus is reported for every (table, event) subscription.
type SubscriptionStatus string

const (
	StatusSubscribed   SubscriptionStatus = "SUBSCRIBED"
	StatusChannelError SubscriptionStatus = "CHANNEL_ERROR"
	StatusTimedOut     SubscriptionStatus = "TIMED_OUT"
)

// Presence events.
const (
	PresenceSync  = "sync"
	PresenceJoin  = "join"
	PresenceLeave = "leave"
)

type NotificationHandler func(n common.Notification)

type StatusHandler func(table, event string, status SubscriptionStatus, err error)

type PresenceHandler func(event string, entries []common.PresenceEntry)

type RealtimeConfig struct {
	AckTimeout         time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
}

func (c *RealtimeConfig) defaults() {
	if c.AckTimeout <= 0 {
		c.AckTimeout = 10 * time.Second
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = 500 * time.Millisecond
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
}

type channelKey struct {
	table string
	event string
}

type subscription struct {
	key     channelKey
	handler NotificationHandler
}

// Subscription is a handle returned by Subscribe.
type Subscription struct {
	rt *Realtime
	id int64
}

func (s *Subscription) Unsubscribe() {
	if s != nil && s.rt != nil {
		s.rt.unsubscribe(s.id)
	}
}

// Realtime keeps one websocket to the store, re-establishing it with
// exponential backoff and replaying subscriptions and presence after every
// reconnect.
type Realtime struct {
	url    string
	config RealtimeConfig
	logger logging.Logger

	mu       sync.Mutex
	subs     map[int64]*subscription
	nextID   int64
	acks     map[channelKey]*time.Timer
	conn     *websocket.Conn
	tracked  *common.PresenceEntry
	onStatus StatusHandler
	presence PresenceHandler
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewRealtime(url string, config RealtimeConfig, logger logging.Logger) *Realtime {
	config.defaults()
	return &Realtime{
		url:    url,
		config: config,
		logger: logger.With("module", "realtime"),
		subs:   make(map[int64]*subscription),
		acks:   make(map[channelKey]*time.Timer),
	}
}

func (r *Realtime) OnStatus(h StatusHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStatus = h
}

func (r *Realtime) OnPresence(h PresenceHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence = h
}

// Connect starts the connection loop in the background.
func (r *Realtime) Connect(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx, r.done)
}

// Close stops the loop and closes the socket.
func (r *Realtime) Close() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Subscribe registers h for notifications about table matching event
// (common.EventAll for every event).
func (r *Realtime) Subscribe(table, event string, h NotificationHandler) *Subscription {
	if event == "" {
		event = common.EventAll
	}
	key := channelKey{table: table, event: event}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	first := !r.hasKeyLocked(key)
	r.subs[id] = &subscription{key: key, handler: h}
	conn := r.conn
	r.mu.Unlock()

	if conn != nil && first {
		r.sendSubscribe(context.Background(), conn, key)
	}
	return &Subscription{rt: r, id: id}
}

func (r *Realtime) unsubscribe(id int64) {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.subs, id)
	last := !r.hasKeyLocked(sub.key)
	if last {
		if t, ok := r.acks[sub.key]; ok {
			t.Stop()
			delete(r.acks, sub.key)
		}
	}
	conn := r.conn
	r.mu.Unlock()

	if conn != nil && last {
		env := common.Envelope{Type: common.MsgUnsubscribe, Table: sub.key.table, Event: sub.key.event}
		if err := r.write(context.Background(), conn, env); err != nil {
			r.logger.Debug(context.Background(), "unsubscribe not sent", "table", sub.key.table, "error", err)
		}
	}
}

func (r *Realtime) hasKeyLocked(key channelKey) bool {
	for _, s := range r.subs {
		if s.key == key {
			return true
		}
	}
	return false
}

// Track announces entry on the presence channel and keeps announcing it
// after reconnects until Untrack.
func (r *Realtime) Track(ctx context.Context, entry common.PresenceEntry) error {
	r.mu.Lock()
	r.tracked = &entry
	conn := r.conn
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	return r.sendTrack(ctx, conn, entry)
}

func (r *Realtime) Untrack(ctx context.Context) error {
	r.mu.Lock()
	r.tracked = nil
	conn := r.conn
	r.mu.Unlock()

	if conn == nil {
		return nil
	}
	return r.write(ctx, conn, common.Envelope{Type: common.MsgPresenceUntrack})
}

func (r *Realtime) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn != nil
}

func (r *Realtime) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		connected, err := r.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			attempt = 0
		}
		r.reportAll(StatusChannelError, err)

		delay := r.nextDelay(attempt)
		attempt++
		r.logger.Warn(ctx, "realtime connection lost", "error", err, "retry_in", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (r *Realtime) nextDelay(attempt int) time.Duration {
	base := float64(r.config.ReconnectBaseDelay)
	jitter := rand.Float64() * base * 0.5
	d := math.Min(base*math.Pow(2, float64(attempt))+jitter, float64(r.config.ReconnectMaxDelay))
	return time.Duration(d)
}

// session runs one connection until it fails. connected tells whether the
// dial succeeded.
func (r *Realtime) session(ctx context.Context) (connected bool, err error) {
	conn, _, err := websocket.Dial(ctx, r.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", r.url, err)
	}
	conn.SetReadLimit(1 << 20)

	r.mu.Lock()
	r.conn = conn
	keys := r.keysLocked()
	tracked := r.tracked
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.conn = nil
		for k, t := range r.acks {
			t.Stop()
			delete(r.acks, k)
		}
		r.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	r.logger.Info(ctx, "realtime connected", "url", r.url, "channels", len(keys))

	for _, k := range keys {
		r.sendSubscribe(ctx, conn, k)
	}
	if tracked != nil {
		if err := r.sendTrack(ctx, conn, *tracked); err != nil {
			return true, err
		}
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		var env common.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			r.logger.Warn(ctx, "undecodable realtime frame", "error", err)
			continue
		}
		r.dispatch(ctx, env)
	}
}

func (r *Realtime) keysLocked() []channelKey {
	seen := make(map[channelKey]bool)
	var keys []channelKey
	for _, s := range r.subs {
		if !seen[s.key] {
			seen[s.key] = true
			keys = append(keys, s.key)
		}
	}
	return keys
}

func (r *Realtime) write(ctx context.Context, conn *websocket.Conn, env common.Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.AckTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, env)
}

func (r *Realtime) sendSubscribe(ctx context.Context, conn *websocket.Conn, key channelKey) {
	r.mu.Lock()
	if prev, ok := r.acks[key]; ok {
		prev.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(r.config.AckTimeout, func() {
		r.mu.Lock()
		pending := r.acks[key] == t
		if pending {
			delete(r.acks, key)
		}
		r.mu.Unlock()
		if pending {
			r.report(key, StatusTimedOut, errors.New("subscription not acknowledged"))
		}
	})
	r.acks[key] = t
	r.mu.Unlock()

	env := common.Envelope{Type: common.MsgSubscribe, Table: key.table, Event: key.event}
	if err := r.write(ctx, conn, env); err != nil {
		r.logger.Warn(ctx, "subscribe not sent", "table", key.table, "error", err)
	}
}

func (r *Realtime) sendTrack(ctx context.Context, conn *websocket.Conn, entry common.PresenceEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.write(ctx, conn, common.Envelope{Type: common.MsgPresenceTrack, Payload: payload})
}

func (r *Realtime) dispatch(ctx context.Context, env common.Envelope) {
	switch env.Type {
	case common.MsgSubscribed:
		key := channelKey{table: env.Table, event: env.Event}
		r.mu.Lock()
		if t, ok := r.acks[key]; ok {
			t.Stop()
			delete(r.acks, key)
		}
		r.mu.Unlock()
		r.report(key, StatusSubscribed, nil)

	case common.MsgChange:
		n := common.Notification{Event: env.Event, Table: env.Table, Payload: env.Payload}
		for _, h := range r.handlersFor(n) {
			h(n)
		}

	case common.MsgPresenceSync, common.MsgPresenceJoin, common.MsgPresenceLeave:
		var entries []common.PresenceEntry
		if err := json.Unmarshal(env.Payload, &entries); err != nil {
			r.logger.Warn(ctx, "undecodable presence payload", "type", env.Type, "error", err)
			return
		}
		r.mu.Lock()
		h := r.presence
		r.mu.Unlock()
		if h != nil {
			h(presenceEvent(env.Type), entries)
		}

	case common.MsgError:
		err := fmt.Errorf("server error: %s", string(env.Payload))
		if env.Table != "" {
			r.report(channelKey{table: env.Table, event: env.Event}, StatusChannelError, err)
			return
		}
		r.logger.Warn(ctx, "realtime server error", "payload", string(env.Payload))
	}
}

func presenceEvent(msgType string) string {
	switch msgType {
	case common.MsgPresenceJoin:
		return PresenceJoin
	case common.MsgPresenceLeave:
		return PresenceLeave
	default:
		return PresenceSync
	}
}

func (r *Realtime) handlersFor(n common.Notification) []NotificationHandler {
	r.mu.Lock()
	defer r.mu.Unlock()
	var hs []NotificationHandler
	for _, s := range r.subs {
		if s.key.table == n.Table && common.MatchesEvent(s.key.event, n.Event) {
			hs = append(hs, s.handler)
		}
	}
	return hs
}

func (r *Realtime) report(key channelKey, status SubscriptionStatus, err error) {
	r.mu.Lock()
	h := r.onStatus
	r.mu.Unlock()

	if status == StatusSubscribed {
		r.logger.Debug(context.Background(), "subscribed", "table", key.table, "event", key.event)
	} else {
		r.logger.Warn(context.Background(), "subscription degraded", "table", key.table, "event", key.event,
			"status", status, "error", err)
	}
	if h != nil {
		h(key.table, key.event, status, err)
	}
}

func (r *Realtime) reportAll(status SubscriptionStatus, err error) {
	r.mu.Lock()
	keys := r.keysLocked()
	r.mu.Unlock()
	for _, k := range keys {
		r.report(k, status, err)
	}
}
