package engine

import "sync"

// actor owns a value of type S on a single goroutine. Every read and write
// goes through its request channel, so the value is never touched
// concurrently.
type actor[S any] struct {
	reqs chan func(*S)
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

func newActor[S any](initial S) *actor[S] {
	a := &actor[S]{
		reqs: make(chan func(*S)),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go a.loop(initial)
	return a
}

func (a *actor[S]) loop(state S) {
	defer close(a.done)
	for {
		select {
		case fn := <-a.reqs:
			fn(&state)
		case <-a.quit:
			return
		}
	}
}

// do runs fn on the owning goroutine and waits for it. It reports false
// once the actor is stopped.
func (a *actor[S]) do(fn func(*S)) bool {
	wait := make(chan struct{})
	select {
	case a.reqs <- func(s *S) { defer close(wait); fn(s) }:
	case <-a.quit:
		return false
	}
	<-wait
	return true
}

func (a *actor[S]) stop() {
	a.once.Do(func() { close(a.quit) })
	<-a.done
}

// read evaluates fn against the current state.
func read[S, R any](a *actor[S], fn func(S) R) R {
	var r R
	a.do(func(s *S) { r = fn(*s) })
	return r
}
