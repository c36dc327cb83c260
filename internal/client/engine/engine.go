// Package engine applies every user mutation optimistically: the in-memory
// collections change immediately, the local store is updated on a debounce,
// and the remote store is written directly, queued, or skipped depending on
// connectivity and on whether the records involved are known remotely yet.
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/go-playground/validator/v10"
)

var ErrNotFound = errors.New("record not found")

// Remote is the part of the remote mirror client the engine writes through.
type Remote interface {
	Configured() bool
	Apply(ctx context.Context, op common.Operation) (common.Row, error)
	Select(ctx context.Context, table string) ([]common.Row, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, m queue.Mutation) error
}

type Connectivity interface {
	Online() bool
}

type Deps struct {
	Remote       Remote
	Queue        Enqueuer
	Connectivity Connectivity
	Store        *store.Store
	Notifier     Notifier
	Logger       logging.Logger
}

type Option func(*Engine)

// WithClock replaces the wall clock used for dates, timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPicker replaces the random choice of auto-post messages.
func WithPicker(pick func(n int) int) Option {
	return func(e *Engine) { e.pick = pick }
}

func WithDebounce(d time.Duration) Option {
	return func(e *Engine) { e.debounceDelay = d }
}

// prefs holds the single-value state persisted under separate keys.
type prefs struct {
	settings    models.AppSettings
	theme       string
	snapshots   []models.DailySnapshot
	currentUser models.ID
	remember    bool
}

type Engine struct {
	remote   Remote
	queue    Enqueuer
	net      Connectivity
	store    *store.Store
	notifier Notifier
	logger   logging.Logger
	validate *validator.Validate
	minter   *models.Minter
	now      func() time.Time
	pick     func(n int) int

	debounceDelay time.Duration
	debouncer     *store.Debouncer
	autosave      atomic.Bool

	users        *actor[[]models.User]
	logs         *actor[[]models.DailyLogEntry]
	appointments *actor[[]models.Appointment]
	feed         *actor[[]models.FeedPost]
	prefs        *actor[prefs]

	// counterMu serializes increments and decrements so each one computes
	// its count from the outcome of the previous one.
	counterMu sync.Mutex

	refreshMu  sync.Mutex
	refreshing map[string]bool
	rerun      map[string]bool
	refreshWG  sync.WaitGroup
	closed     atomic.Bool
}

func New(d Deps, opts ...Option) *Engine {
	e := &Engine{
		remote:        d.Remote,
		queue:         d.Queue,
		net:           d.Connectivity,
		store:         d.Store,
		notifier:      d.Notifier,
		logger:        d.Logger,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		now:           time.Now,
		pick:          rand.IntN,
		debounceDelay: store.DefaultDebounce,
		refreshing:    make(map[string]bool),
		rerun:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.notifier == nil {
		e.notifier = nopNotifier{}
	}
	if e.logger == nil {
		e.logger = logging.Nop()
	}
	e.logger = e.logger.With("module", "engine")
	e.minter = models.NewMinter(e.now)
	e.debouncer = store.NewDebouncer(e.debounceDelay)

	e.users = newActor[[]models.User](nil)
	e.logs = newActor[[]models.DailyLogEntry](nil)
	e.appointments = newActor[[]models.Appointment](nil)
	e.feed = newActor[[]models.FeedPost](nil)
	e.prefs = newActor(prefs{settings: models.DefaultSettings(), theme: models.ThemeSystem})
	return e
}

// EnableAutosave turns on persistence of in-memory changes. Until then
// mutations only change memory, so nothing written before the local state is
// loaded can clobber it.
func (e *Engine) EnableAutosave() {
	e.autosave.Store(true)
}

func (e *Engine) AutosaveEnabled() bool {
	return e.autosave.Load()
}

// Flush writes every pending debounced collection now.
func (e *Engine) Flush() {
	e.debouncer.Flush()
}

// Close flushes pending writes, waits for running refetches and stops the
// collection actors. Reads after Close return zero values.
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.refreshWG.Wait()
	e.debouncer.Flush()
	e.debouncer.Stop()
	e.users.stop()
	e.logs.stop()
	e.appointments.stop()
	e.feed.stop()
	e.prefs.stop()
}

func (e *Engine) today() string {
	return e.now().Format(time.DateOnly)
}

// persistLater schedules a debounced write of one collection key.
func (e *Engine) persistLater(keys ...string) {
	if !e.autosave.Load() {
		return
	}
	for _, key := range keys {
		e.debouncer.Schedule(key, func() { e.persistNow(context.Background(), key) })
	}
}

func (e *Engine) persistNow(ctx context.Context, key string) {
	value, ok := e.valueFor(key)
	if !ok {
		return
	}
	if _, err := e.store.Set(ctx, key, value, store.DefaultRetries); err != nil {
		e.logger.Error(ctx, "failed to persist collection", "key", key, "error", err)
		e.notifier.Toast(ctx, ToastError, "Could not save changes locally")
	}
}

func (e *Engine) valueFor(key string) (any, bool) {
	switch key {
	case store.KeyUsers:
		return e.Users(), true
	case store.KeyDailyLogs:
		return e.DailyLogs(), true
	case store.KeyAppointments:
		return e.Appointments(), true
	case store.KeyFeed:
		return e.Feed(), true
	case store.KeyAppSettings:
		return e.Settings(), true
	case store.KeyThemeMode:
		return e.ThemeMode(), true
	case store.KeyDailySnapshots:
		return e.Snapshots(), true
	case store.KeyCurrentUser:
		id, _ := e.currentUserID()
		return id, true
	case store.KeyRememberUser:
		return read(e.prefs, func(p prefs) bool { return p.remember }), true
	}
	return nil, false
}
