package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/stretchr/testify/assert"
)

type fakeProber struct {
	fail atomic.Bool
}

func (p *fakeProber) Probe(context.Context) error {
	if p.fail.Load() {
		return errors.New("unreachable")
	}
	return nil
}

func TestWatcher_TransitionsNotifyListeners(t *testing.T) {
	p := &fakeProber{}
	w := NewWatcher(p, time.Hour, logging.Nop())

	var mu sync.Mutex
	var got []bool
	w.OnChange(func(_ context.Context, online bool) {
		mu.Lock()
		got = append(got, online)
		mu.Unlock()
	})

	ctx := context.Background()
	assert.True(t, w.Check(ctx))
	assert.True(t, w.Check(ctx))

	p.fail.Store(true)
	assert.False(t, w.Check(ctx))
	assert.False(t, w.Online())

	p.fail.Store(false)
	w.Check(ctx)

	assert.Equal(t, []bool{true, false, true}, got)
}

func TestWatcher_NilProberIsOffline(t *testing.T) {
	w := NewWatcher(nil, 0, logging.Nop())
	w.SetOnline(context.Background(), true)
	assert.False(t, w.Check(context.Background()))
}

func TestWatcher_RunPollsUntilCancelled(t *testing.T) {
	p := &fakeProber{}
	p.fail.Store(true)
	w := NewWatcher(p, 10*time.Millisecond, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	p.fail.Store(false)
	assert.Eventually(t, w.Online, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
