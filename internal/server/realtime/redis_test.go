package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

type fakeRedis struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.published = append(f.published, string(message.([]byte)))
	cmd.SetVal(1)
	return cmd
}

func (f *fakeRedis) Subscribe(context.Context, ...string) *redis.PubSub {
	panic("not used")
}

func TestBridge_PublishDeliversLocallyAndForwards(t *testing.T) {
	ctx := context.Background()
	h := NewHub(logging.Nop())
	c := connect(h)
	h.handle(ctx, c, common.Envelope{Type: common.MsgSubscribe, Table: common.TableUsers})
	next(t, c)

	rdb := &fakeRedis{}
	b := NewBridge(rdb, "goalboard:changes", h, logging.Nop())
	b.Publish(ctx, common.Notification{Event: common.EventInsert, Table: common.TableUsers})

	assert.Equal(t, common.MsgChange, next(t, c).Type)
	require.Len(t, rdb.published, 1)

	var m bridgeMessage
	require.NoError(t, json.Unmarshal([]byte(rdb.published[0]), &m))
	assert.Equal(t, b.origin, m.Origin)
	assert.Equal(t, common.TableUsers, m.Notification.Table)
}

func TestBridge_PublishErrorStillDeliversLocally(t *testing.T) {
	ctx := context.Background()
	h := NewHub(logging.Nop())
	c := connect(h)
	h.handle(ctx, c, common.Envelope{Type: common.MsgSubscribe, Table: common.TableUsers})
	next(t, c)

	b := NewBridge(&fakeRedis{err: errors.New("connection refused")}, "ch", h, logging.Nop())
	b.Publish(ctx, common.Notification{Event: common.EventDelete, Table: common.TableUsers})
	assert.Equal(t, common.EventDelete, next(t, c).Event)
}

func TestBridge_Deliver(t *testing.T) {
	ctx := context.Background()
	h := NewHub(logging.Nop())
	c := connect(h)
	h.handle(ctx, c, common.Envelope{Type: common.MsgSubscribe, Table: common.TableFeedComments})
	next(t, c)

	b := NewBridge(&fakeRedis{}, "ch", h, logging.Nop())
	encode := func(origin string) string {
		body, _ := json.Marshal(bridgeMessage{Origin: origin, Notification: common.Notification{Event: common.EventInsert, Table: common.TableFeedComments}})
		return string(body)
	}

	b.deliver(ctx, encode(b.origin))
	none(t, c)

	b.deliver(ctx, "not json")
	none(t, c)

	b.deliver(ctx, encode("other-instance"))
	got := next(t, c)
	assert.Equal(t, common.TableFeedComments, got.Table)
}
