// Package presence announces who is looking at the dashboard. Presence is
// ephemeral: nothing here touches the local store.
package presence

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

type State int

const (
	StateUninitialized State = iota
	StateJoining
	StateJoined
	StateLeft
)

func (s State) String() string {
	switch s {
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	default:
		return "uninitialized"
	}
}

const DefaultView = "dashboard"

// Channel is the shared presence channel.
type Channel interface {
	Track(ctx context.Context, entry common.PresenceEntry) error
	Untrack(ctx context.Context) error
}

// Conditions are the inputs that decide whether this client is present.
type Conditions struct {
	User             models.User
	CoreInitialized  bool
	Online           bool
	RemoteConfigured bool
}

func (c Conditions) met() bool {
	return !c.User.ID.IsZero() && c.CoreInitialized && c.Online && c.RemoteConfigured
}

type Tracker struct {
	channel Channel
	logger  logging.Logger

	mu     sync.Mutex
	state  State
	user   models.User
	view   string
	roster map[string]common.PresenceEntry
}

func NewTracker(ch Channel, logger logging.Logger) *Tracker {
	return &Tracker{
		channel: ch,
		logger:  logger.With("module", "presence"),
		view:    DefaultView,
		roster:  make(map[string]common.PresenceEntry),
	}
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Evaluate joins the channel when every condition holds and leaves it as
// soon as one is lost. Signing in as someone else re-announces.
func (t *Tracker) Evaluate(ctx context.Context, c Conditions) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := t.state == StateJoining || t.state == StateJoined
	switch {
	case c.met() && (!active || t.user.ID != c.User.ID || t.user.Name != c.User.Name || t.user.Role != c.User.Role):
		return t.joinLocked(ctx, c.User)
	case !c.met() && active:
		return t.leaveLocked(ctx)
	}
	return nil
}

func (t *Tracker) joinLocked(ctx context.Context, u models.User) error {
	t.state = StateJoining
	t.user = u
	if err := t.channel.Track(ctx, t.entryLocked()); err != nil {
		t.state = StateLeft
		t.logger.Warn(ctx, "presence track failed", "error", err)
		return err
	}
	t.state = StateJoined
	t.logger.Debug(ctx, "presence joined", "user", u.ID.String(), "view", t.view)
	return nil
}

func (t *Tracker) leaveLocked(ctx context.Context) error {
	t.state = StateLeft
	t.user = models.User{}
	clear(t.roster)
	if err := t.channel.Untrack(ctx); err != nil {
		t.logger.Warn(ctx, "presence untrack failed", "error", err)
		return err
	}
	t.logger.Debug(ctx, "presence left")
	return nil
}

func (t *Tracker) entryLocked() common.PresenceEntry {
	return common.PresenceEntry{
		UserID:      t.user.ID.String(),
		UserName:    t.user.Name,
		UserRole:    t.user.Role,
		CurrentView: t.view,
	}
}

// SetView records the screen the user is on and re-announces while joined.
func (t *Tracker) SetView(ctx context.Context, view string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if view == "" {
		view = DefaultView
	}
	if t.view == view {
		return nil
	}
	t.view = view
	if t.state != StateJoined {
		return nil
	}
	return t.channel.Track(ctx, t.entryLocked())
}

// Leave untracks on sign-out or teardown.
func (t *Tracker) Leave(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateJoining && t.state != StateJoined {
		return nil
	}
	return t.leaveLocked(ctx)
}

// HandlePresence applies a sync, join or leave event to the roster.
func (t *Tracker) HandlePresence(event string, entries []common.PresenceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch event {
	case remote.PresenceSync:
		clear(t.roster)
		fallthrough
	case remote.PresenceJoin:
		for _, e := range entries {
			t.roster[e.UserID] = e
		}
	case remote.PresenceLeave:
		for _, e := range entries {
			delete(t.roster, e.UserID)
		}
	}
}

// Roster returns everyone present, ordered by name.
func (t *Tracker) Roster() []common.PresenceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]common.PresenceEntry, 0, len(t.roster))
	for _, e := range t.roster {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b common.PresenceEntry) int {
		return cmp.Or(cmp.Compare(a.UserName, b.UserName), cmp.Compare(a.UserID, b.UserID))
	})
	return out
}
