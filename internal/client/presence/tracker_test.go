package presence

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu       sync.Mutex
	tracked  []common.PresenceEntry
	untracks int
	trackErr error
}

func (f *fakeChannel) Track(_ context.Context, e common.PresenceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.trackErr != nil {
		return f.trackErr
	}
	f.tracked = append(f.tracked, e)
	return nil
}

func (f *fakeChannel) Untrack(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.untracks++
	return nil
}

var ann = models.User{ID: models.Confirmed("u1"), UserFields: models.UserFields{Name: "Ann", Role: "agent"}}

func all() Conditions {
	return Conditions{User: ann, CoreInitialized: true, Online: true, RemoteConfigured: true}
}

func TestEvaluate_JoinsOnlyWhenAllConditionsHold(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Conditions)
		want   State
	}{
		{"all hold", func(*Conditions) {}, StateJoined},
		{"no user", func(c *Conditions) { c.User = models.User{} }, StateUninitialized},
		{"core not ready", func(c *Conditions) { c.CoreInitialized = false }, StateUninitialized},
		{"offline", func(c *Conditions) { c.Online = false }, StateUninitialized},
		{"remote not configured", func(c *Conditions) { c.RemoteConfigured = false }, StateUninitialized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{}
			tr := NewTracker(ch, logging.Nop())
			c := all()
			tt.modify(&c)
			require.NoError(t, tr.Evaluate(context.Background(), c))
			assert.Equal(t, tt.want, tr.State())
		})
	}
}

func TestEvaluate_LeavesWhenConditionLost(t *testing.T) {
	ch := &fakeChannel{}
	tr := NewTracker(ch, logging.Nop())
	ctx := context.Background()

	require.NoError(t, tr.Evaluate(ctx, all()))
	require.NoError(t, tr.Evaluate(ctx, all()))
	assert.Len(t, ch.tracked, 1, "re-evaluating unchanged conditions does not re-announce")

	tr.HandlePresence(remote.PresenceSync, []common.PresenceEntry{{UserID: "u2", UserName: "Bo"}})
	offline := all()
	offline.Online = false
	require.NoError(t, tr.Evaluate(ctx, offline))

	assert.Equal(t, StateLeft, tr.State())
	assert.Equal(t, 1, ch.untracks)
	assert.Empty(t, tr.Roster())

	require.NoError(t, tr.Evaluate(ctx, all()))
	assert.Equal(t, StateJoined, tr.State())
	assert.Len(t, ch.tracked, 2)
}

func TestEvaluate_TrackFailure(t *testing.T) {
	ch := &fakeChannel{trackErr: errors.New("closed")}
	tr := NewTracker(ch, logging.Nop())

	require.Error(t, tr.Evaluate(context.Background(), all()))
	assert.Equal(t, StateLeft, tr.State())
}

func TestSetView_RetracksWhileJoined(t *testing.T) {
	ch := &fakeChannel{}
	tr := NewTracker(ch, logging.Nop())
	ctx := context.Background()

	require.NoError(t, tr.SetView(ctx, "feed"))
	assert.Empty(t, ch.tracked)

	require.NoError(t, tr.Evaluate(ctx, all()))
	require.NoError(t, tr.SetView(ctx, "leaderboard"))

	require.Len(t, ch.tracked, 2)
	assert.Equal(t, common.PresenceEntry{UserID: "u1", UserName: "Ann", UserRole: "agent", CurrentView: "feed"}, ch.tracked[0])
	assert.Equal(t, "leaderboard", ch.tracked[1].CurrentView)
}

func TestEvaluate_SwitchUserReannounces(t *testing.T) {
	ch := &fakeChannel{}
	tr := NewTracker(ch, logging.Nop())
	ctx := context.Background()

	require.NoError(t, tr.Evaluate(ctx, all()))
	other := all()
	other.User = models.User{ID: models.Confirmed("u2"), UserFields: models.UserFields{Name: "Bo"}}
	require.NoError(t, tr.Evaluate(ctx, other))

	require.Len(t, ch.tracked, 2)
	assert.Equal(t, "u2", ch.tracked[1].UserID)
}

func TestLeave(t *testing.T) {
	ch := &fakeChannel{}
	tr := NewTracker(ch, logging.Nop())
	ctx := context.Background()

	require.NoError(t, tr.Leave(ctx))
	assert.Zero(t, ch.untracks)

	require.NoError(t, tr.Evaluate(ctx, all()))
	require.NoError(t, tr.Leave(ctx))
	assert.Equal(t, StateLeft, tr.State())
	assert.Equal(t, 1, ch.untracks)
}

func TestRoster(t *testing.T) {
	tr := NewTracker(&fakeChannel{}, logging.Nop())

	tr.HandlePresence(remote.PresenceSync, []common.PresenceEntry{
		{UserID: "u2", UserName: "Bo"},
		{UserID: "u1", UserName: "Ann"},
	})
	tr.HandlePresence(remote.PresenceJoin, []common.PresenceEntry{{UserID: "u3", UserName: "Cy"}})
	tr.HandlePresence(remote.PresenceLeave, []common.PresenceEntry{{UserID: "u2"}})

	var names []string
	for _, e := range tr.Roster() {
		names = append(names, e.UserName)
	}
	assert.Equal(t, []string{"Ann", "Cy"}, names)

	tr.HandlePresence(remote.PresenceSync, nil)
	assert.Empty(t, tr.Roster())
}
