package realtime

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dmitrijs2005/goalboard/internal/common"
)

const writeTimeout = 10 * time.Second

func (h *Hub) acceptOptions() *websocket.AcceptOptions {
	if len(h.origins) == 0 || slices.Contains(h.origins, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: h.origins}
}

// ServeWS upgrades the request and serves the client until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient()
	h.register(c)
	h.logger.Info(ctx, "realtime client connected", "client", c.id, "remote", r.RemoteAddr)

	written := make(chan struct{})
	go func() {
		defer close(written)
		defer cancel()
		h.writeLoop(ctx, conn, c)
	}()

	err = h.readLoop(ctx, conn, c)
	h.unregister(c)
	<-written

	status := websocket.CloseStatus(err)
	if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
		h.logger.Info(ctx, "realtime client disconnected", "client", c.id)
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	h.logger.Warn(ctx, "realtime client dropped", "client", c.id, "error", err)
	_ = conn.Close(websocket.StatusInternalError, "connection error")
}

func (h *Hub) readLoop(ctx context.Context, conn *websocket.Conn, c *client) error {
	for {
		var env common.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return err
		}
		h.handle(ctx, c, env)
	}
}

// writeLoop drains c.send until the hub closes it or ctx ends.
func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, env)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "realtime write failed", "client", c.id, "error", err)
				return
			}
		}
	}
}
