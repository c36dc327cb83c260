package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

func dial(t *testing.T, ctx context.Context, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) common.Envelope {
	t.Helper()
	var env common.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	return env
}

func TestServeWS_ChangesAndPresence(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h := NewHub(logging.Nop())
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	a := dial(t, ctx, srv)
	require.NoError(t, wsjson.Write(ctx, a, common.Envelope{Type: common.MsgSubscribe, Table: common.TableDailyLogs, Event: common.EventAll}))
	ack := read(t, ctx, a)
	assert.Equal(t, common.MsgSubscribed, ack.Type)
	assert.Equal(t, common.TableDailyLogs, ack.Table)

	h.Broadcast(common.Notification{Event: common.EventUpdate, Table: common.TableDailyLogs, Payload: json.RawMessage(`{"id":"d1"}`)})
	change := read(t, ctx, a)
	assert.Equal(t, common.MsgChange, change.Type)
	assert.Equal(t, common.EventUpdate, change.Event)

	payload, _ := json.Marshal(common.PresenceEntry{UserID: "u1", UserName: "Ann"})
	require.NoError(t, wsjson.Write(ctx, a, common.Envelope{Type: common.MsgPresenceTrack, Payload: payload}))
	assert.Equal(t, common.MsgPresenceSync, read(t, ctx, a).Type)

	b := dial(t, ctx, srv)
	payload, _ = json.Marshal(common.PresenceEntry{UserID: "u2", UserName: "Bob"})
	require.NoError(t, wsjson.Write(ctx, b, common.Envelope{Type: common.MsgPresenceTrack, Payload: payload}))
	assert.Len(t, entries(t, read(t, ctx, b)), 2)

	join := read(t, ctx, a)
	assert.Equal(t, common.MsgPresenceJoin, join.Type)

	require.NoError(t, b.Close(websocket.StatusNormalClosure, ""))
	leave := read(t, ctx, a)
	assert.Equal(t, common.MsgPresenceLeave, leave.Type)
	assert.Equal(t, "u2", entries(t, leave)[0].UserID)

	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWS_RejectsForeignOrigin(t *testing.T) {
	h := NewHub(logging.Nop(), WithOriginPatterns("board.example.com"))
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": {"http://evil.example.com"}},
	})
	require.Error(t, err)
	assert.Zero(t, h.ClientCount())
}
