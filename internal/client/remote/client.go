// Package remote talks to the authoritative goalboard store: table-scoped
// reads and writes over HTTP, change notifications and presence over a
// websocket, and a gRPC health probe for connectivity.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

const (
	restPrefix     = "/rest/v1/"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

type Client struct {
	base   *url.URL
	http   *http.Client
	logger logging.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient builds a client for baseURL. An empty baseURL yields a client
// that is not configured; every call then fails with ErrNotConfigured.
func NewClient(baseURL string, logger logging.Logger, opts ...ClientOption) (*Client, error) {
	c := &Client{
		http:   &http.Client{Timeout: defaultTimeout},
		logger: logger.With("module", "remote_client"),
	}
	if baseURL != "" {
		u, err := url.Parse(strings.TrimRight(baseURL, "/"))
		if err != nil {
			return nil, fmt.Errorf("invalid remote url %q: %w", baseURL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("invalid remote url %q: scheme must be http or https", baseURL)
		}
		c.base = u
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) Configured() bool {
	return c != nil && c.base != nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), rd)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return mapStatus(resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return nil
}

func tablePath(table string, rest ...string) string {
	parts := append([]string{url.PathEscape(table)}, rest...)
	return restPrefix + strings.Join(parts, "/")
}

// Select returns every row of table.
func (c *Client) Select(ctx context.Context, table string) ([]common.Row, error) {
	var rows []common.Row
	if err := c.do(ctx, http.MethodGet, tablePath(table), nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return rows, nil
}

func (c *Client) Insert(ctx context.Context, table string, data json.RawMessage) (common.Row, error) {
	var row common.Row
	if err := c.do(ctx, http.MethodPost, tablePath(table), nil, data, &row); err != nil {
		return common.Row{}, fmt.Errorf("insert %s: %w", table, err)
	}
	return row, nil
}

func (c *Client) Update(ctx context.Context, table, id string, data json.RawMessage) (common.Row, error) {
	var row common.Row
	if err := c.do(ctx, http.MethodPatch, tablePath(table, url.PathEscape(id)), nil, data, &row); err != nil {
		return common.Row{}, fmt.Errorf("update %s/%s: %w", table, id, err)
	}
	return row, nil
}

func (c *Client) Delete(ctx context.Context, table, id string) error {
	if err := c.do(ctx, http.MethodDelete, tablePath(table, url.PathEscape(id)), nil, nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", table, id, err)
	}
	return nil
}

// Upsert inserts data or, when a row with the same conflictKey columns
// exists, replaces it in place.
func (c *Client) Upsert(ctx context.Context, table, conflictKey string, data json.RawMessage) (common.Row, error) {
	var row common.Row
	q := url.Values{"on_conflict": {conflictKey}}
	if err := c.do(ctx, http.MethodPost, tablePath(table, "upsert"), q, data, &row); err != nil {
		return common.Row{}, fmt.Errorf("upsert %s: %w", table, err)
	}
	return row, nil
}

// Apply performs a queued operation.
func (c *Client) Apply(ctx context.Context, op common.Operation) (common.Row, error) {
	switch op.Type {
	case common.OpInsert:
		return c.Insert(ctx, op.Table, op.Data)
	case common.OpUpdate:
		return c.Update(ctx, op.Table, op.ID, op.Data)
	case common.OpDelete:
		return common.Row{ID: op.ID}, c.Delete(ctx, op.Table, op.ID)
	case common.OpUpsert:
		return c.Upsert(ctx, op.Table, op.ConflictKey, op.Data)
	}
	return common.Row{}, fmt.Errorf("%w: type %q", common.ErrInvalidOp, op.Type)
}

// Ping checks the HTTP health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// RealtimeURL derives the websocket endpoint from the base URL.
func (c *Client) RealtimeURL() string {
	if !c.Configured() {
		return ""
	}
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime"
	return u.String()
}
