package captions

import (
	"context"
	"sync"
	"time"
)

// DefaultFrameInterval approximates a 60 Hz display refresh.
const DefaultFrameInterval = 16 * time.Millisecond

// Ticker is a FrameScheduler that runs requested callbacks on a single
// goroutine, once per interval. Callbacks requested during a frame run on
// the following frame.
type Ticker struct {
	interval time.Duration

	mu      sync.Mutex
	pending []func()
}

func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Ticker{interval: interval}
}

func (t *Ticker) RequestFrame(fn func()) {
	t.mu.Lock()
	t.pending = append(t.pending, fn)
	t.mu.Unlock()
}

// Step runs every callback requested before the call.
func (t *Ticker) Step() int {
	t.mu.Lock()
	batch := t.pending
	t.pending = nil
	t.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Run steps the ticker until ctx is done.
func (t *Ticker) Run(ctx context.Context) {
	tk := time.NewTicker(t.interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.Step()
		}
	}
}
