// Package bootstrap brings a client session from a cold start to ready:
// queue first, then an optional remote pull, then the local collections, and
// only then realtime and auto-save.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"golang.org/x/sync/errgroup"
)

var ErrLoadTimeout = errors.New("local load timed out")

type Phase int

const (
	PhaseCold Phase = iota
	PhaseLoading
	PhaseSyncedFromRemote
	PhaseLocalFallback
	PhaseSettingsMerged
	PhaseReady
	PhaseDegradedReady
)

func (p Phase) String() string {
	switch p {
	case PhaseCold:
		return "cold"
	case PhaseLoading:
		return "loading"
	case PhaseSyncedFromRemote:
		return "synced-from-remote"
	case PhaseLocalFallback:
		return "local-fallback"
	case PhaseSettingsMerged:
		return "settings-merged"
	case PhaseReady:
		return "ready"
	case PhaseDegradedReady:
		return "degraded-ready"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Ready reports whether p is a terminal, usable phase.
func (p Phase) Ready() bool {
	return p == PhaseReady || p == PhaseDegradedReady
}

type Config struct {
	LoadTimeout time.Duration
	RetryDelay  time.Duration
	MaxRetries  int
}

func DefaultConfig() Config {
	return Config{LoadTimeout: 10 * time.Second, RetryDelay: 2 * time.Second, MaxRetries: 2}
}

// Queue is the part of the sync queue the session drives.
type Queue interface {
	Init(ctx context.Context) error
	StartInterval(ctx context.Context)
	StopInterval()
	Process(ctx context.Context) (queue.Result, error)
	OnAck(h queue.AckHandler)
}

type Configurable interface {
	Configured() bool
}

type Connectivity interface {
	Online() bool
}

type Sequencer struct {
	engine   *engine.Engine
	queue    Queue
	remote   Configurable
	net      Connectivity
	store    *store.Store
	notifier engine.Notifier
	logger   logging.Logger
	config   Config

	mu       sync.Mutex
	phase    Phase
	watchers []func(Phase)
}

func NewSequencer(e *engine.Engine, q Queue, r Configurable, net Connectivity, s *store.Store, n engine.Notifier, logger logging.Logger, cfg Config) *Sequencer {
	return &Sequencer{
		engine:   e,
		queue:    q,
		remote:   r,
		net:      net,
		store:    s,
		notifier: n,
		logger:   logger.With("module", "bootstrap"),
		config:   cfg,
	}
}

func (s *Sequencer) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// OnPhase registers fn for every phase change.
func (s *Sequencer) OnPhase(fn func(Phase)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *Sequencer) set(ctx context.Context, p Phase) {
	s.mu.Lock()
	s.phase = p
	ws := append([]func(Phase)(nil), s.watchers...)
	s.mu.Unlock()

	s.logger.Debug(ctx, "bootstrap phase", "phase", p.String())
	for _, fn := range ws {
		fn(p)
	}
}

// Run executes the startup sequence, retrying it after a failed attempt.
// Once the retries are spent it forces the degraded-ready phase with
// whatever state is in memory, so it always returns a ready phase unless ctx
// is cancelled.
func (s *Sequencer) Run(ctx context.Context) (Phase, error) {
	var err error
	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			s.notifier.Toast(ctx, engine.ToastWarning, fmt.Sprintf("Loading data failed, retrying (%d/%d)", attempt, s.config.MaxRetries))
			if werr := sleep(ctx, s.config.RetryDelay); werr != nil {
				return s.Phase(), werr
			}
		}
		if err = s.attempt(ctx); err == nil {
			s.engine.EnableAutosave()
			s.set(ctx, PhaseReady)
			return PhaseReady, nil
		}
		if ctx.Err() != nil {
			return s.Phase(), ctx.Err()
		}
		s.logger.Warn(ctx, "bootstrap attempt failed", "attempt", attempt+1, "error", err)
	}

	s.logger.Error(ctx, "bootstrap retries exhausted, starting with defaults", "error", err)
	s.engine.EnableAutosave()
	s.set(ctx, PhaseDegradedReady)
	return PhaseDegradedReady, nil
}

func (s *Sequencer) attempt(ctx context.Context) error {
	s.set(ctx, PhaseLoading)

	if err := s.queue.Init(ctx); err != nil {
		return fmt.Errorf("queue init: %w", err)
	}
	s.queue.StartInterval(ctx)

	var pulled *engine.RemoteState
	if s.net.Online() && s.remote.Configured() {
		rs, err := s.engine.PullRemote(ctx)
		if err != nil {
			s.logger.Warn(ctx, "remote pull failed, using local data", "error", err)
		} else {
			pulled = &rs
		}
	}

	local, err := s.loadLocal(ctx)
	if err != nil {
		return err
	}
	if pulled != nil {
		s.set(ctx, PhaseSyncedFromRemote)
	} else {
		s.set(ctx, PhaseLocalFallback)
	}

	s.engine.Load(local)
	if pulled != nil {
		s.engine.ApplyRemote(*pulled)
	}
	s.set(ctx, PhaseSettingsMerged)
	return nil
}

// loadLocal reads every collection in parallel and gives up after
// LoadTimeout. A backend that ignores cancellation is abandoned, not waited
// for.
func (s *Sequencer) loadLocal(ctx context.Context) (engine.State, error) {
	lctx, cancel := context.WithTimeout(ctx, s.config.LoadTimeout)
	defer cancel()

	st := &engine.State{}
	var rawSettings []byte
	var remember bool
	var current models.ID

	g, gctx := errgroup.WithContext(lctx)
	g.Go(func() error {
		st.Users = store.Get[[]models.User](gctx, s.store, store.KeyUsers, nil)
		return nil
	})
	g.Go(func() error {
		st.DailyLogs = store.Get[[]models.DailyLogEntry](gctx, s.store, store.KeyDailyLogs, nil)
		return nil
	})
	g.Go(func() error {
		st.Appointments = store.Get[[]models.Appointment](gctx, s.store, store.KeyAppointments, nil)
		return nil
	})
	g.Go(func() error {
		st.Feed = store.Get[[]models.FeedPost](gctx, s.store, store.KeyFeed, nil)
		return nil
	})
	g.Go(func() error {
		rawSettings, _ = s.store.GetRaw(gctx, store.KeyAppSettings)
		return nil
	})
	g.Go(func() error {
		st.ThemeMode = store.Get(gctx, s.store, store.KeyThemeMode, models.ThemeSystem)
		return nil
	})
	g.Go(func() error {
		st.Snapshots = store.Get[[]models.DailySnapshot](gctx, s.store, store.KeyDailySnapshots, nil)
		return nil
	})
	g.Go(func() error {
		current = store.Get(gctx, s.store, store.KeyCurrentUser, models.ID{})
		remember = store.Get(gctx, s.store, store.KeyRememberUser, false)
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return engine.State{}, err
		}
	case <-lctx.Done():
		if ctx.Err() != nil {
			return engine.State{}, ctx.Err()
		}
		return engine.State{}, fmt.Errorf("%w after %s", ErrLoadTimeout, s.config.LoadTimeout)
	}

	settings, err := models.MergeSettings(rawSettings)
	if err != nil {
		s.logger.Warn(ctx, "stored settings unreadable, using defaults", "error", err)
	}
	st.Settings = settings
	st.RememberUser = remember
	if remember {
		st.CurrentUser = current
	}
	return *st, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
