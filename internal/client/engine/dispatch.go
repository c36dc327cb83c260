package engine

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/common"
)

type route int

const (
	routeLocal route = iota
	routeQueue
	routeDirect
)

// routeFor decides where the remote side of a mutation goes. Records that
// reference a provisional id stay local until the id is confirmed.
func (e *Engine) routeFor(refs ...models.ID) route {
	if e.remote == nil || !e.remote.Configured() || models.AnyProvisional(refs...) {
		return routeLocal
	}
	if e.net != nil && e.net.Online() {
		return routeDirect
	}
	return routeQueue
}

// dispatch sends the remote side of m. It reports the server row when the
// direct write succeeded. A direct write that fails because the remote store
// became unreachable is queued instead; one the remote store rejected stays
// local.
func (e *Engine) dispatch(ctx context.Context, m queue.Mutation, refs ...models.ID) (common.Row, bool) {
	switch e.routeFor(refs...) {
	case routeLocal:
		return common.Row{}, false
	case routeDirect:
		row, err := e.writeDirect(ctx, m)
		if err == nil {
			return row, true
		}
		if !errors.Is(err, remote.ErrUnavailable) {
			e.logger.Error(ctx, "remote write rejected", "error", err)
			return common.Row{}, false
		}
		e.logger.Warn(ctx, "remote write failed, queueing", "error", err)
	}
	e.enqueue(ctx, m)
	return common.Row{}, false
}

func (e *Engine) writeDirect(ctx context.Context, m queue.Mutation) (common.Row, error) {
	op, err := m.Operation()
	if err != nil {
		return common.Row{}, err
	}
	return e.remote.Apply(ctx, op)
}

func (e *Engine) enqueue(ctx context.Context, m queue.Mutation) {
	if e.queue == nil {
		return
	}
	if err := e.queue.Enqueue(ctx, m); err != nil {
		e.logger.Error(ctx, "failed to enqueue mutation", "error", err)
	}
}

// create dispatches the mutation built for a new record and returns the
// identity the record starts with: the server id after a direct write, a
// fresh provisional id otherwise.
func (e *Engine) create(ctx context.Context, build func(local models.ID) queue.Mutation, refs ...models.ID) (models.ID, time.Time) {
	local := e.minter.Next()
	row, ok := e.dispatch(ctx, build(local), refs...)
	if !ok {
		return local, e.now()
	}
	created := row.CreatedAt
	if created.IsZero() {
		created = e.now()
	}
	return models.Confirmed(row.ID), created
}
