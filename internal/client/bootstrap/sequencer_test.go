package bootstrap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	seq      *Sequencer
	engine   *engine.Engine
	queue    *fakeQueue
	remote   *fakeRemote
	store    *store.Store
	notifier *toastRecorder

	mu     sync.Mutex
	phases []Phase
}

func newHarness(t *testing.T, backend store.Backend, online bool, cfg Config) *harness {
	t.Helper()
	h := &harness{
		queue:    &fakeQueue{},
		remote:   &fakeRemote{configured: true, rows: map[string][]common.Row{}},
		store:    store.New(backend, logging.Nop()),
		notifier: &toastRecorder{},
	}
	h.engine = engine.New(engine.Deps{
		Remote:       h.remote,
		Queue:        h.queue,
		Connectivity: staticNet(online),
		Store:        h.store,
		Notifier:     h.notifier,
		Logger:       logging.Nop(),
	})
	t.Cleanup(h.engine.Close)
	h.seq = NewSequencer(h.engine, h.queue, h.remote, staticNet(online), h.store, h.notifier, logging.Nop(), cfg)
	h.seq.OnPhase(func(p Phase) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.phases = append(h.phases, p)
	})
	return h
}

func (h *harness) history() []Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Phase(nil), h.phases...)
}

func fastConfig() Config {
	return Config{LoadTimeout: time.Second, RetryDelay: time.Millisecond, MaxRetries: 2}
}

func put(t *testing.T, s *store.Store, key string, v any) {
	t.Helper()
	ok, err := s.Set(context.Background(), key, v, 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRun_LocalFallback(t *testing.T) {
	h := newHarness(t, store.NewMemoryBackend(), false, fastConfig())
	u := models.User{ID: models.Confirmed("u1"), UserFields: models.UserFields{Name: "Ann"}}
	put(t, h.store, store.KeyUsers, []models.User{u})
	put(t, h.store, store.KeyAppSettings, map[string]any{"teamName": "Closers"})
	put(t, h.store, store.KeyCurrentUser, u.ID)
	put(t, h.store, store.KeyRememberUser, true)

	phase, err := h.seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseReady, phase)
	assert.Equal(t, []Phase{PhaseLoading, PhaseLocalFallback, PhaseSettingsMerged, PhaseReady}, h.history())
	assert.EqualValues(t, 1, h.queue.inits.Load())
	assert.EqualValues(t, 1, h.queue.starts.Load())
	assert.True(t, h.engine.AutosaveEnabled())

	require.Len(t, h.engine.Users(), 1)
	settings := h.engine.Settings()
	assert.Equal(t, "Closers", settings.TeamName)
	assert.True(t, settings.CelebrationsEnabled, "missing settings keep their default")
	cur, ok := h.engine.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, u.ID, cur.ID)
}

func TestRun_RemotePrecedence(t *testing.T) {
	h := newHarness(t, store.NewMemoryBackend(), true, fastConfig())
	put(t, h.store, store.KeyUsers, []models.User{
		{ID: models.Confirmed("u1"), UserFields: models.UserFields{Name: "Local"}},
	})
	h.remote.rows[common.TableUsers] = []common.Row{{ID: "u1", Data: []byte(`{"name":"Remote"}`)}}

	phase, err := h.seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseReady, phase)
	assert.Contains(t, h.history(), PhaseSyncedFromRemote)
	users := h.engine.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "Remote", users[0].Name)
}

func TestRun_RemoteFailureFallsBackToLocal(t *testing.T) {
	h := newHarness(t, store.NewMemoryBackend(), true, fastConfig())
	h.remote.selectErr = errors.New("boom")
	put(t, h.store, store.KeyUsers, []models.User{{ID: models.Confirmed("u1"), UserFields: models.UserFields{Name: "Local"}}})

	phase, err := h.seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseReady, phase)
	assert.Contains(t, h.history(), PhaseLocalFallback)
	assert.Equal(t, "Local", h.engine.Users()[0].Name)
}

func TestRun_ForgetsUnrememberedUser(t *testing.T) {
	h := newHarness(t, store.NewMemoryBackend(), false, fastConfig())
	u := models.User{ID: models.Confirmed("u1"), UserFields: models.UserFields{Name: "Ann"}}
	put(t, h.store, store.KeyUsers, []models.User{u})
	put(t, h.store, store.KeyCurrentUser, u.ID)

	_, err := h.seq.Run(context.Background())
	require.NoError(t, err)
	_, ok := h.engine.CurrentUser()
	assert.False(t, ok)
}

// A local store that stops answering makes the first attempt time out; the
// retry starts after a warning toast and succeeds once the store answers.
func TestRun_TimeoutThenRetry(t *testing.T) {
	backend := newGatedBackend()
	t.Cleanup(backend.open)
	h := newHarness(t, backend, false, Config{LoadTimeout: 50 * time.Millisecond, RetryDelay: 10 * time.Millisecond, MaxRetries: 2})
	h.notifier.onToast = backend.open

	phase, err := h.seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseReady, phase)
	assert.Equal(t, 1, h.notifier.count())
	assert.Equal(t, []Phase{PhaseLoading, PhaseLoading, PhaseLocalFallback, PhaseSettingsMerged, PhaseReady}, h.history())
}

func TestRun_ExhaustedRetriesForceReady(t *testing.T) {
	backend := newGatedBackend()
	t.Cleanup(backend.open)
	h := newHarness(t, backend, false, Config{LoadTimeout: 20 * time.Millisecond, RetryDelay: time.Millisecond, MaxRetries: 2})

	phase, err := h.seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, PhaseDegradedReady, phase)
	assert.True(t, phase.Ready())
	assert.Equal(t, 2, h.notifier.count())
	assert.Equal(t, []Phase{PhaseLoading, PhaseLoading, PhaseLoading, PhaseDegradedReady}, h.history())
	assert.Equal(t, models.DefaultSettings(), h.engine.Settings())
	assert.True(t, h.engine.AutosaveEnabled())
}

func TestRun_Cancelled(t *testing.T) {
	backend := newGatedBackend()
	t.Cleanup(backend.open)
	h := newHarness(t, backend, false, Config{LoadTimeout: time.Minute, RetryDelay: time.Millisecond, MaxRetries: 2})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.seq.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, h.engine.AutosaveEnabled())
}
