// Package connectivity tracks whether the remote store is reachable.
package connectivity

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/logging"
)

const (
	DefaultInterval = 3 * time.Second
	probeTimeout    = 3 * time.Second
)

type Prober interface {
	Probe(ctx context.Context) error
}

// Listener is called on every online/offline transition.
type Listener func(ctx context.Context, online bool)

type Watcher struct {
	prober   Prober
	interval time.Duration
	logger   logging.Logger

	online    atomic.Bool
	mu        sync.Mutex
	listeners []Listener
}

func NewWatcher(p Prober, interval time.Duration, logger logging.Logger) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{prober: p, interval: interval, logger: logger.With("module", "connectivity")}
}

func (w *Watcher) Online() bool {
	return w.online.Load()
}

func (w *Watcher) OnChange(l Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, l)
}

// SetOnline forces the state and notifies listeners if it changed.
func (w *Watcher) SetOnline(ctx context.Context, online bool) {
	if w.online.Swap(online) == online {
		return
	}
	if online {
		w.logger.Info(ctx, "Switched to online mode")
	} else {
		w.logger.Info(ctx, "Switched to offline mode")
	}

	w.mu.Lock()
	ls := append([]Listener(nil), w.listeners...)
	w.mu.Unlock()
	for _, l := range ls {
		l(ctx, online)
	}
}

// Check probes once and updates the state.
func (w *Watcher) Check(ctx context.Context) bool {
	if w.prober == nil {
		w.SetOnline(ctx, false)
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	err := w.prober.Probe(pctx)
	cancel()
	if err != nil {
		w.logger.Debug(ctx, "probe failed", "error", err)
	}
	w.SetOnline(ctx, err == nil)
	return err == nil
}

// Run probes immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			return
		}
	}
}
