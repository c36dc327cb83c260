package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/common"
)

type fakeQueue struct {
	inits     atomic.Int32
	starts    atomic.Int32
	stops     atomic.Int32
	processes atomic.Int32
	mu        sync.Mutex
	acks      []queue.AckHandler
}

func (q *fakeQueue) Init(context.Context) error {
	q.inits.Add(1)
	return nil
}

func (q *fakeQueue) StartInterval(context.Context) { q.starts.Add(1) }

func (q *fakeQueue) StopInterval() { q.stops.Add(1) }

func (q *fakeQueue) Process(context.Context) (queue.Result, error) {
	q.processes.Add(1)
	return queue.Result{}, nil
}

func (q *fakeQueue) OnAck(h queue.AckHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acks = append(q.acks, h)
}

func (q *fakeQueue) Enqueue(context.Context, queue.Mutation) error { return nil }

type fakeRemote struct {
	configured bool
	selectErr  error
	rows       map[string][]common.Row
}

func (f *fakeRemote) Configured() bool { return f.configured }

func (f *fakeRemote) Apply(context.Context, common.Operation) (common.Row, error) {
	return common.Row{}, remote.ErrUnavailable
}

func (f *fakeRemote) Select(_ context.Context, table string) ([]common.Row, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return f.rows[table], nil
}

type staticNet bool

func (n staticNet) Online() bool { return bool(n) }

type toastRecorder struct {
	mu      sync.Mutex
	toasts  []string
	onToast func()
}

func (r *toastRecorder) Toast(_ context.Context, _ engine.ToastLevel, msg string) {
	r.mu.Lock()
	r.toasts = append(r.toasts, msg)
	fn := r.onToast
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *toastRecorder) GoalReached(context.Context, models.User, models.Category, int) {}

func (r *toastRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.toasts)
}

// gatedBackend blocks every read until the gate is opened.
type gatedBackend struct {
	store.Backend
	gate chan struct{}
	once sync.Once
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{Backend: store.NewMemoryBackend(), gate: make(chan struct{})}
}

func (b *gatedBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	<-b.gate
	return b.Backend.Get(ctx, key)
}

func (b *gatedBackend) open() { b.once.Do(func() { close(b.gate) }) }

type fakeProber struct{ fail atomic.Bool }

func (p *fakeProber) Probe(context.Context) error {
	if p.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

type fakeRealtime struct {
	mu         sync.Mutex
	subscribed []string
	connected  bool
	closed     bool
	tracked    []common.PresenceEntry
	untracks   int
}

func (f *fakeRealtime) Track(_ context.Context, e common.PresenceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, e)
	return nil
}

func (f *fakeRealtime) Untrack(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.untracks++
	return nil
}

func (f *fakeRealtime) Connect(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
}

func (f *fakeRealtime) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeRealtime) Subscribe(table, _ string, _ remote.NotificationHandler) *remote.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, table)
	return &remote.Subscription{}
}

func (f *fakeRealtime) OnStatus(remote.StatusHandler) {}

func (f *fakeRealtime) OnPresence(remote.PresenceHandler) {}
