package bootstrap

import (
	"context"
	"errors"
	"sync"

	"github.com/dmitrijs2005/goalboard/internal/client/connectivity"
	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/presence"
	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

var ErrSessionClosed = errors.New("session torn down")

// Realtime is the push channel of the remote store.
type Realtime interface {
	presence.Channel
	Connect(ctx context.Context)
	Close()
	Subscribe(table, event string, h remote.NotificationHandler) *remote.Subscription
	OnStatus(h remote.StatusHandler)
	OnPresence(h remote.PresenceHandler)
}

// SessionState is the lifecycle of a Session.
type SessionState int

const (
	SessionInit SessionState = iota
	SessionReady
	SessionTornDown
)

// watchedTables are the remote tables whose changes refresh a collection.
var watchedTables = []string{
	common.TableUsers,
	common.TableDailyLogs,
	common.TableAppointments,
	common.TableFeedPosts,
	common.TableFeedLikes,
	common.TableFeedComments,
}

type Components struct {
	Engine   *engine.Engine
	Queue    Queue
	Remote   Configurable
	Realtime Realtime
	Watcher  *connectivity.Watcher
	Store    *store.Store
	Notifier engine.Notifier
	Logger   logging.Logger
}

// Session owns every running part of the client between Start and Teardown.
type Session struct {
	Engine   *engine.Engine
	Presence *presence.Tracker

	queue     Queue
	remote    Configurable
	realtime  Realtime
	watcher   *connectivity.Watcher
	sequencer *Sequencer
	logger    logging.Logger

	mu     sync.Mutex
	state  SessionState
	subs   []*remote.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSession(c Components, cfg Config) *Session {
	logger := c.Logger.With("module", "session")
	var ch presence.Channel = nopChannel{}
	if c.Realtime != nil {
		ch = c.Realtime
	}
	s := &Session{
		Engine:    c.Engine,
		Presence:  presence.NewTracker(ch, c.Logger),
		queue:     c.Queue,
		remote:    c.Remote,
		realtime:  c.Realtime,
		watcher:   c.Watcher,
		sequencer: NewSequencer(c.Engine, c.Queue, c.Remote, c.Watcher, c.Store, c.Notifier, c.Logger, cfg),
		logger:    logger,
	}
	c.Queue.OnAck(c.Engine.HandleAck)
	return s
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Sequencer() *Sequencer {
	return s.sequencer
}

// Start probes connectivity, bootstraps, and once ready wires realtime,
// presence and the connectivity watcher. Background work stops at Teardown.
func (s *Session) Start(ctx context.Context) (Phase, error) {
	s.mu.Lock()
	if s.state != SessionInit {
		s.mu.Unlock()
		return s.sequencer.Phase(), ErrSessionClosed
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.mu.Unlock()

	s.watcher.Check(ctx)
	phase, err := s.sequencer.Run(ctx)
	if err != nil {
		return phase, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionInit {
		return phase, ErrSessionClosed
	}
	s.state = SessionReady

	s.watcher.OnChange(func(ctx context.Context, online bool) {
		if online {
			s.drain(ctx)
		}
		s.evaluatePresence(ctx)
	})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.watcher.Run(runCtx)
	}()

	if s.realtime != nil && s.remote.Configured() {
		s.realtime.OnPresence(s.Presence.HandlePresence)
		s.realtime.OnStatus(func(table, event string, status remote.SubscriptionStatus, err error) {
			if status != remote.StatusSubscribed {
				s.logger.Warn(runCtx, "subscription problem", "table", table, "event", event, "status", string(status), "error", err)
			}
		})
		s.realtime.Connect(runCtx)
		for _, table := range watchedTables {
			s.subs = append(s.subs, s.realtime.Subscribe(table, common.EventAll, s.Engine.HandleNotification))
		}
	}
	s.evaluatePresenceLocked(runCtx)
	s.logger.Info(ctx, "session ready", "phase", phase.String())
	return phase, nil
}

func (s *Session) drain(ctx context.Context) {
	res, err := s.queue.Process(ctx)
	if err != nil {
		s.logger.Warn(ctx, "queue drain failed", "error", err)
		return
	}
	if res.Applied > 0 {
		s.logger.Info(ctx, "queued changes synced", "applied", res.Applied, "remaining", res.Remaining)
	}
}

func (s *Session) evaluatePresence(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluatePresenceLocked(ctx)
}

func (s *Session) evaluatePresenceLocked(ctx context.Context) {
	u, _ := s.Engine.CurrentUser()
	err := s.Presence.Evaluate(ctx, presence.Conditions{
		User:             u,
		CoreInitialized:  s.state == SessionReady,
		Online:           s.watcher.Online(),
		RemoteConfigured: s.remote.Configured(),
	})
	if err != nil {
		s.logger.Debug(ctx, "presence not updated", "error", err)
	}
}

// SignIn selects the current user and announces presence.
func (s *Session) SignIn(ctx context.Context, id models.ID, remember bool) error {
	if err := s.Engine.SetCurrentUser(ctx, id, remember); err != nil {
		return err
	}
	s.evaluatePresence(ctx)
	return nil
}

func (s *Session) SignOut(ctx context.Context) error {
	if err := s.Engine.SetCurrentUser(ctx, models.ID{}, false); err != nil {
		return err
	}
	s.evaluatePresence(ctx)
	return nil
}

func (s *Session) SetView(ctx context.Context, view string) error {
	return s.Presence.SetView(ctx, view)
}

// Teardown unsubscribes, stops the periodic drain, leaves presence and
// flushes pending local writes. Operations already sent keep running to
// completion.
func (s *Session) Teardown(ctx context.Context) {
	s.mu.Lock()
	if s.state == SessionTornDown {
		s.mu.Unlock()
		return
	}
	s.state = SessionTornDown
	subs := s.subs
	s.subs = nil
	cancel := s.cancel
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.queue.StopInterval()
	if err := s.Presence.Leave(ctx); err != nil {
		s.logger.Debug(ctx, "presence leave failed", "error", err)
	}
	if s.realtime != nil {
		s.realtime.Close()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	s.Engine.Close()
	s.logger.Info(ctx, "session closed")
}

type nopChannel struct{}

func (nopChannel) Track(context.Context, common.PresenceEntry) error { return nil }

func (nopChannel) Untrack(context.Context) error { return nil }
