package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/connectivity"
	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/presence"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	session  *Session
	queue    *fakeQueue
	realtime *fakeRealtime
	prober   *fakeProber
	store    *store.Store
}

func newSessionFixture(t *testing.T, online bool) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		queue:    &fakeQueue{},
		realtime: &fakeRealtime{},
		prober:   &fakeProber{},
		store:    store.New(store.NewMemoryBackend(), logging.Nop()),
	}
	f.prober.fail.Store(!online)
	rem := &fakeRemote{configured: true, rows: map[string][]common.Row{}}
	watcher := connectivity.NewWatcher(f.prober, 10*time.Millisecond, logging.Nop())
	eng := engine.New(engine.Deps{
		Remote:       rem,
		Queue:        f.queue,
		Connectivity: watcher,
		Store:        f.store,
		Logger:       logging.Nop(),
	})
	f.session = NewSession(Components{
		Engine:   eng,
		Queue:    f.queue,
		Remote:   rem,
		Realtime: f.realtime,
		Watcher:  watcher,
		Store:    f.store,
		Notifier: &toastRecorder{},
		Logger:   logging.Nop(),
	}, fastConfig())
	t.Cleanup(func() { f.session.Teardown(context.Background()) })
	return f
}

func TestSession_Lifecycle(t *testing.T) {
	f := newSessionFixture(t, true)
	u := models.User{ID: models.Confirmed("u1"), UserFields: models.UserFields{Name: "Ann"}}
	put(t, f.store, store.KeyUsers, []models.User{u})
	ctx := context.Background()

	assert.Equal(t, SessionInit, f.session.State())
	assert.Len(t, f.queue.acks, 1)

	phase, err := f.session.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, PhaseReady, phase)
	assert.Equal(t, SessionReady, f.session.State())
	assert.ElementsMatch(t, watchedTables, f.realtime.subscribed)
	assert.True(t, f.realtime.connected)
	assert.Equal(t, presence.StateUninitialized, f.session.Presence.State(), "nobody signed in")

	require.NoError(t, f.session.SignIn(ctx, u.ID, true))
	assert.Equal(t, presence.StateJoined, f.session.Presence.State())
	require.NoError(t, f.session.SetView(ctx, "feed"))

	f.session.Teardown(ctx)
	assert.Equal(t, SessionTornDown, f.session.State())
	assert.EqualValues(t, 1, f.queue.stops.Load())
	assert.True(t, f.realtime.closed)
	assert.Equal(t, 1, f.realtime.untracks)
	require.Len(t, f.realtime.tracked, 2)
	assert.Equal(t, "feed", f.realtime.tracked[1].CurrentView)

	assert.Equal(t, u.ID, store.Get(ctx, f.store, store.KeyCurrentUser, models.ID{}), "pending writes are flushed")

	_, err = f.session.Start(ctx)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestSession_ReconnectDrainsAndJoins(t *testing.T) {
	f := newSessionFixture(t, false)
	u := models.User{ID: models.Confirmed("u1"), UserFields: models.UserFields{Name: "Ann"}}
	put(t, f.store, store.KeyUsers, []models.User{u})
	ctx := context.Background()

	_, err := f.session.Start(ctx)
	require.NoError(t, err)
	require.NoError(t, f.session.SignIn(ctx, u.ID, false))
	assert.Equal(t, presence.StateUninitialized, f.session.Presence.State())

	f.prober.fail.Store(false)
	require.Eventually(t, func() bool {
		return f.queue.processes.Load() > 0 && f.session.Presence.State() == presence.StateJoined
	}, time.Second, 5*time.Millisecond)

	f.prober.fail.Store(true)
	require.Eventually(t, func() bool {
		return f.session.Presence.State() == presence.StateLeft
	}, time.Second, 5*time.Millisecond)
}
