// Package queue implements the durable sync queue: an ordered log of remote
// operations that could not be applied when they were made. The log lives in
// the sync_queue table of the client database and drains in FIFO order
// whenever connectivity allows.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

var (
	ErrNotInitialized = errors.New("sync queue not initialized")
	ErrDrainAborted   = errors.New("sync queue drain aborted")
)

const (
	DefaultInterval = 30 * time.Second
	batchSize       = 50
)

// Applier performs one operation against the remote store.
type Applier interface {
	Apply(ctx context.Context, op common.Operation) (common.Row, error)
}

// AckHandler observes every operation the remote store acknowledged.
type AckHandler func(ctx context.Context, op common.Operation, row common.Row)

// Result summarizes one drain.
type Result struct {
	Applied   int
	Failed    int
	Remaining int
	Busy      bool
}

type Queue struct {
	repo     Repository
	remote   Applier
	logger   logging.Logger
	interval time.Duration

	initialized atomic.Bool
	draining    atomic.Bool

	mu       sync.Mutex
	handlers []AckHandler
	cancel   context.CancelFunc
	done     chan struct{}
}

type Option func(*Queue)

func WithInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.interval = d
		}
	}
}

func New(repo Repository, applier Applier, logger logging.Logger, opts ...Option) *Queue {
	q := &Queue{
		repo:     repo,
		remote:   applier,
		logger:   logger.With("module", "sync_queue"),
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Init verifies the durable log. It is safe to call more than once.
func (q *Queue) Init(ctx context.Context) error {
	if err := q.repo.Verify(ctx); err != nil {
		return err
	}
	if q.initialized.CompareAndSwap(false, true) {
		n, _ := q.repo.Count(ctx, StatusPending)
		q.logger.Info(ctx, "sync queue initialized", "pending", n)
	}
	return nil
}

// OnAck registers h for acknowledged operations.
func (q *Queue) OnAck(h AckHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, h)
}

// Enqueue appends m to the end of the log.
func (q *Queue) Enqueue(ctx context.Context, m Mutation) error {
	if !q.initialized.Load() {
		return ErrNotInitialized
	}
	op, err := m.Operation()
	if err != nil {
		return err
	}
	if err := op.Validate(); err != nil {
		return err
	}
	seq, err := q.repo.Append(ctx, op)
	if err != nil {
		return err
	}
	q.logger.Debug(ctx, "operation queued", "seq", seq, "type", op.Type, "table", op.Table)
	return nil
}

// StartInterval drains the queue every interval until StopInterval or ctx
// cancellation. Calling it while running is a no-op.
func (q *Queue) StartInterval(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	q.cancel, q.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(q.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// a started drain finishes even if the interval is stopped
				if _, err := q.Process(context.WithoutCancel(ctx)); err != nil {
					q.logger.Warn(ctx, "periodic drain failed", "error", err)
				}
			}
		}
	}()
}

// StopInterval stops the periodic drain and waits for the loop to exit. A
// drain already in progress runs to completion.
func (q *Queue) StopInterval() {
	q.mu.Lock()
	cancel, done := q.cancel, q.done
	q.cancel, q.done = nil, nil
	q.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Process drains pending operations in order. Each operation is removed only
// after the remote store acknowledged it. A transient failure stops the drain
// and keeps the operation at the head; a rejected operation is parked as
// failed and the drain moves on. Concurrent calls return Busy.
func (q *Queue) Process(ctx context.Context) (Result, error) {
	if !q.initialized.Load() {
		return Result{}, ErrNotInitialized
	}
	if !q.draining.CompareAndSwap(false, true) {
		return Result{Busy: true}, nil
	}
	defer q.draining.Store(false)

	var res Result
	err := q.drain(ctx, &res)

	if n, cerr := q.repo.Count(ctx, StatusPending); cerr == nil {
		res.Remaining = n
	}
	if res.Applied > 0 || res.Failed > 0 {
		q.logger.Info(ctx, "sync queue drained", "applied", res.Applied, "failed", res.Failed, "remaining", res.Remaining)
	}
	return res, err
}

func (q *Queue) drain(ctx context.Context, res *Result) error {
	for {
		entries, err := q.repo.List(ctx, StatusPending, batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}

			row, err := q.apply(ctx, e.Op)
			switch {
			case err == nil:
				if err := q.repo.Remove(ctx, e.Seq); err != nil {
					return fmt.Errorf("%w: %w", ErrDrainAborted, err)
				}
				res.Applied++
				q.acknowledge(ctx, e.Op, row)

			case isTransient(err):
				if rerr := q.repo.RecordAttempt(ctx, e.Seq, StatusPending, err.Error()); rerr != nil {
					q.logger.Error(ctx, "failed to record attempt", "seq", e.Seq, "error", rerr)
				}
				q.logger.Debug(ctx, "remote unavailable, drain paused", "seq", e.Seq, "error", err)
				return nil

			default:
				if rerr := q.repo.RecordAttempt(ctx, e.Seq, StatusFailed, err.Error()); rerr != nil {
					return fmt.Errorf("%w: %w", ErrDrainAborted, rerr)
				}
				res.Failed++
				q.logger.Warn(ctx, "operation rejected", "seq", e.Seq, "type", e.Op.Type, "table", e.Op.Table, "error", err)
			}
		}
	}
}

func (q *Queue) apply(ctx context.Context, op common.Operation) (common.Row, error) {
	if err := op.Validate(); err != nil {
		return common.Row{}, err
	}
	row, err := q.remote.Apply(ctx, op)
	if err != nil && op.Type == common.OpDelete && errors.Is(err, remote.ErrNotFound) {
		return common.Row{ID: op.ID}, nil
	}
	return row, err
}

func (q *Queue) acknowledge(ctx context.Context, op common.Operation, row common.Row) {
	q.mu.Lock()
	handlers := append([]AckHandler(nil), q.handlers...)
	q.mu.Unlock()

	for _, h := range handlers {
		h(ctx, op, row)
	}
}

func isTransient(err error) bool {
	return errors.Is(err, remote.ErrUnavailable) ||
		errors.Is(err, remote.ErrNotConfigured) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Len returns the number of pending operations.
func (q *Queue) Len(ctx context.Context) (int, error) {
	return q.repo.Count(ctx, StatusPending)
}

// Pending lists pending operations in drain order.
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	return q.repo.List(ctx, StatusPending, 1000)
}

// Failed lists operations the remote store rejected.
func (q *Queue) Failed(ctx context.Context) ([]Entry, error) {
	return q.repo.List(ctx, StatusFailed, 1000)
}

// Flush discards every pending operation and returns how many were dropped.
func (q *Queue) Flush(ctx context.Context) (int64, error) {
	n, err := q.repo.Clear(ctx, StatusPending)
	if err != nil {
		return 0, err
	}
	q.logger.Warn(ctx, "sync queue flushed", "dropped", n)
	return n, nil
}
