package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/dmitrijs2005/goalboard/internal/server/records"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	svc := records.NewService(records.NewMemoryRepository(), nil, logging.Nop())
	srv := httptest.NewServer(NewRouter(svc, nil, []string{"*"}, logging.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *remote.Client {
	t.Helper()
	c, err := remote.NewClient(srv.URL, logging.Nop())
	require.NoError(t, err)
	return c
}

func TestRouter_RemoteClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, newServer(t))

	require.NoError(t, c.Ping(ctx))

	user, err := c.Insert(ctx, common.TableUsers, json.RawMessage(`{"name":"Ann","role":"sales"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	updated, err := c.Update(ctx, common.TableUsers, user.ID, json.RawMessage(`{"role":"manager"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Ann","role":"manager"}`, string(updated.Data))

	log1, err := c.Upsert(ctx, common.TableDailyLogs, common.DailyLogConflictKey,
		json.RawMessage(`{"user_id":"`+user.ID+`","date":"2024-05-01","category":"calls","count":1}`))
	require.NoError(t, err)
	log2, err := c.Upsert(ctx, common.TableDailyLogs, common.DailyLogConflictKey,
		json.RawMessage(`{"user_id":"`+user.ID+`","date":"2024-05-01","category":"calls","count":2}`))
	require.NoError(t, err)
	assert.Equal(t, log1.ID, log2.ID)

	rows, err := c.Select(ctx, common.TableDailyLogs)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, string(rows[0].Data), `"count":2`)

	require.NoError(t, c.Delete(ctx, common.TableUsers, user.ID))
	users, err := c.Select(ctx, common.TableUsers)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestRouter_ApplyQueuedOperations(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, newServer(t))

	row, err := c.Apply(ctx, common.Operation{Type: common.OpInsert, Table: common.TableFeedPosts, Data: json.RawMessage(`{"content":"hi"}`)})
	require.NoError(t, err)

	_, err = c.Apply(ctx, common.Operation{Type: common.OpDelete, Table: common.TableFeedPosts, ID: row.ID})
	require.NoError(t, err)

	_, err = c.Apply(ctx, common.Operation{Type: common.OpDelete, Table: common.TableFeedPosts, ID: row.ID})
	require.ErrorIs(t, err, remote.ErrNotFound)
}

func TestRouter_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	c := newClient(t, newServer(t))

	_, err := c.Insert(ctx, "orders", json.RawMessage(`{}`))
	require.ErrorIs(t, err, remote.ErrRejected)

	_, err = c.Insert(ctx, common.TableUsers, json.RawMessage(`[1,2]`))
	require.ErrorIs(t, err, remote.ErrRejected)

	_, err = c.Upsert(ctx, common.TableDailyLogs, common.DailyLogConflictKey, json.RawMessage(`{"user_id":"u1"}`))
	require.ErrorIs(t, err, remote.ErrRejected)

	_, err = c.Update(ctx, common.TableUsers, "ghost", json.RawMessage(`{"name":"x"}`))
	require.ErrorIs(t, err, remote.ErrNotFound)
}

type failingRecords struct{ Records }

func (failingRecords) List(context.Context, string) ([]common.Row, error) {
	return nil, errors.New("connection reset")
}

func (failingRecords) Ping(context.Context) error { return errors.New("db down") }

func TestRouter_InternalErrorsAndHealth(t *testing.T) {
	srv := httptest.NewServer(NewRouter(failingRecords{}, nil, nil, logging.Nop()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/rest/v1/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "internal error", body["error"], "internal details stay in the log")

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, health.StatusCode)

	c := newClient(t, srv)
	_, err = c.Select(context.Background(), common.TableUsers)
	require.ErrorIs(t, err, remote.ErrUnavailable)
}

func TestRouter_BodyTooLarge(t *testing.T) {
	srv := newServer(t)

	big := `{"content":"` + strings.Repeat("x", maxBody) + `"}`
	resp, err := http.Post(srv.URL+"/rest/v1/feed_posts", "application/json", bytes.NewBufferString(big))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRouter_CORSAndCorrelation(t *testing.T) {
	srv := newServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/rest/v1/users/u1", nil)
	req.Header.Set("Origin", "http://board.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/rest/v1/users", nil)
	req.Header.Set(correlationHeader, "cid-1")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "cid-1", resp.Header.Get(correlationHeader))
}

func TestRouter_UnknownRoute(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Get(srv.URL + "/nope/nope/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
