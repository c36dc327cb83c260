package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	query  string
	body   string
}

func newTestServer(t *testing.T, status int, reply any) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		calls = append(calls, recorded{r.Method, r.URL.Path, r.URL.RawQuery, string(b)})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if reply != nil {
			_ = json.NewEncoder(w).Encode(reply)
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, logging.Nop())
	require.NoError(t, err)
	return c, &calls
}

func TestNewClient_Validation(t *testing.T) {
	c, err := NewClient("", logging.Nop())
	require.NoError(t, err)
	assert.False(t, c.Configured())

	_, err = NewClient("ftp://example.com", logging.Nop())
	require.Error(t, err)

	c, err = NewClient("https://store.example.com/base/", logging.Nop())
	require.NoError(t, err)
	assert.True(t, c.Configured())
	assert.Equal(t, "wss://store.example.com/base/realtime", c.RealtimeURL())
}

func TestClient_NotConfigured(t *testing.T) {
	c, err := NewClient("", logging.Nop())
	require.NoError(t, err)

	_, err = c.Select(context.Background(), common.TableUsers)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = c.Apply(context.Background(), common.Operation{Type: common.OpInsert, Table: common.TableUsers})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, c.RealtimeURL())
}

func TestClient_Requests(t *testing.T) {
	row := common.Row{ID: "srv-1", CreatedAt: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC), Data: json.RawMessage(`{"count":5}`)}
	data := json.RawMessage(`{"count":5}`)
	ctx := context.Background()

	tests := []struct {
		name   string
		call   func(c *Client) (common.Row, error)
		method string
		path   string
		query  string
		body   string
	}{
		{
			name:   "insert",
			call:   func(c *Client) (common.Row, error) { return c.Insert(ctx, common.TableFeedPosts, data) },
			method: http.MethodPost, path: "/rest/v1/feed_posts", body: `{"count":5}`,
		},
		{
			name:   "update",
			call:   func(c *Client) (common.Row, error) { return c.Update(ctx, common.TableUsers, "u1", data) },
			method: http.MethodPatch, path: "/rest/v1/users/u1", body: `{"count":5}`,
		},
		{
			name: "upsert",
			call: func(c *Client) (common.Row, error) {
				return c.Upsert(ctx, common.TableDailyLogs, common.DailyLogConflictKey, data)
			},
			method: http.MethodPost, path: "/rest/v1/daily_logs/upsert", query: "on_conflict=user_id%2Cdate%2Ccategory", body: `{"count":5}`,
		},
		{
			name: "apply delete",
			call: func(c *Client) (common.Row, error) {
				return c.Apply(ctx, common.Operation{Type: common.OpDelete, Table: common.TableFeedLikes, ID: "l1"})
			},
			method: http.MethodDelete, path: "/rest/v1/feed_likes/l1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := newTestServer(t, http.StatusOK, row)

			got, err := tt.call(c)
			require.NoError(t, err)
			require.Len(t, *calls, 1)

			call := (*calls)[0]
			assert.Equal(t, tt.method, call.method)
			assert.Equal(t, tt.path, call.path)
			assert.Equal(t, tt.query, call.query)
			if tt.body != "" {
				assert.JSONEq(t, tt.body, call.body)
			}
			if tt.method != http.MethodDelete {
				assert.Equal(t, "srv-1", got.ID)
				assert.True(t, row.CreatedAt.Equal(got.CreatedAt))
			}
		})
	}
}

func TestClient_Select(t *testing.T) {
	c, calls := newTestServer(t, http.StatusOK, []common.Row{{ID: "a"}, {ID: "b"}})

	rows, err := c.Select(context.Background(), common.TableAppointments)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, "/rest/v1/appointments", (*calls)[0].path)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrRejected},
		{http.StatusUnprocessableEntity, ErrRejected},
		{http.StatusTooManyRequests, ErrUnavailable},
		{http.StatusServiceUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c, _ := newTestServer(t, tt.status, map[string]string{"error": "nope"})
			_, err := c.Insert(context.Background(), common.TableUsers, json.RawMessage(`{}`))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClient_UndecodableSuccessIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":`)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, logging.Nop())
	require.NoError(t, err)

	_, err = c.Insert(context.Background(), common.TableFeedPosts, json.RawMessage(`{"content":"hi"}`))
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestClient_TransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, logging.Nop())
	require.NoError(t, err)

	_, err = c.Insert(context.Background(), common.TableUsers, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, PingProber{Client: c}.Probe(context.Background()), ErrUnavailable)
}

func TestClient_CancelledContextIsNotAnOutage(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, common.Row{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Insert(ctx, common.TableUsers, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUnavailable)
}
