package captions

import (
	"context"
	"log"
	"sync"
	"time"
)

// RadioAdvanceDelay is the pause between radio items, and before skipping an
// item that failed to load.
const RadioAdvanceDelay = 500 * time.Millisecond

// Loader prepares the session for the item at index.
type Loader func(ctx context.Context, index int) (SessionConfig, error)

// Radio plays a sequence of items back to back. An item that fails to load
// or start is skipped; it never halts the sequence.
type Radio struct {
	coord *Coordinator
	load  Loader
	count int
	// Loop restarts from the first item after the last one.
	Loop bool
	// OnItem is called with the index of each item that starts playing.
	OnItem func(index int)
	// OnDone is called when the sequence finishes or is stopped.
	OnDone func()

	delay time.Duration
	after func(time.Duration, func())

	mu      sync.Mutex
	ctx     context.Context
	current int
	session *Session
	stopped bool
}

func NewRadio(coord *Coordinator, count int, load Loader) *Radio {
	return &Radio{
		coord:   coord,
		load:    load,
		count:   count,
		delay:   RadioAdvanceDelay,
		after:   func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		current: -1,
	}
}

// Start begins playback at the first item.
func (r *Radio) Start(ctx context.Context) {
	r.mu.Lock()
	r.ctx = ctx
	r.stopped = false
	r.mu.Unlock()
	r.play(0)
}

// Current returns the playing session and its index.
func (r *Radio) Current() (*Session, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session, r.current
}

// Stop ends the sequence and silences the current item.
func (r *Radio) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	s := r.session
	r.session = nil
	r.mu.Unlock()

	if s != nil {
		r.coord.Release(s)
	}
	if r.OnDone != nil {
		r.OnDone()
	}
}

func (r *Radio) play(index int) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	if index >= r.count {
		if !r.Loop || r.count == 0 {
			r.mu.Unlock()
			r.Stop()
			return
		}
		index = 0
	}
	r.current = index
	ctx := r.ctx
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		r.Stop()
		return
	}

	next := func() { r.after(r.delay, func() { r.play(index + 1) }) }

	cfg, err := r.load(ctx, index)
	if err != nil {
		log.Printf("[radio] skipping item %d: %v", index, err)
		next()
		return
	}
	userEnded := cfg.OnEnded
	cfg.OnEnded = func() {
		if userEnded != nil {
			userEnded()
		}
		next()
	}

	s, err := r.coord.StartSession(cfg)
	if err != nil {
		log.Printf("[radio] skipping item %d: %v", index, err)
		next()
		return
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		r.coord.Release(s)
		return
	}
	r.session = s
	r.mu.Unlock()
	if r.OnItem != nil {
		r.OnItem(index)
	}
}
