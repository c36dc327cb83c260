package store

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a collection is written back.
const DefaultDebounce = time.Second

type pendingWrite struct {
	timer *time.Timer
	fn    func()
}

// Debouncer collapses bursts of Schedule calls for one key into a single
// call of the last scheduled function, run after delay of inactivity.
// Keys are independent of each other.
type Debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	pending map[string]*pendingWrite
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay, pending: make(map[string]*pendingWrite)}
}

func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	p := &pendingWrite{fn: fn}
	p.timer = time.AfterFunc(d.delay, func() { d.fire(key, p) })
	d.pending[key] = p
}

func (d *Debouncer) fire(key string, p *pendingWrite) {
	d.mu.Lock()
	if d.pending[key] != p {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	p.fn()
}

// Flush runs every pending function now.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.pending))
	for key, p := range d.pending {
		p.timer.Stop()
		fns = append(fns, p.fn)
		delete(d.pending, key)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Stop drops every pending function.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
