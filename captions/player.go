package captions

import (
	"fmt"
	"sync"
	"time"

	"github.com/drewmudry/captioncast/audio"
)

// Clock supplies the current time to a ClockPlayer.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ClockPlayer is a Player whose position follows a clock. It stands in for
// an audio element when the audio itself is played elsewhere, such as in the
// browser on the other end of a websocket.
type ClockPlayer struct {
	mu        sync.Mutex
	clock     Clock
	duration  float64
	offset    float64
	startedAt time.Time
	playing   bool
}

// NewClockPlayer probes MP3 data for its duration. A nil clock uses the
// system clock.
func NewClockPlayer(data []byte, clock Clock) (*ClockPlayer, error) {
	d, err := audio.Duration(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAudioSource, err)
	}
	return NewPlayerWithDuration(d, clock), nil
}

// NewPlayerWithDuration creates a player for audio of a known length.
func NewPlayerWithDuration(duration float64, clock Clock) *ClockPlayer {
	if clock == nil {
		clock = systemClock{}
	}
	return &ClockPlayer{clock: clock, duration: duration}
}

func (p *ClockPlayer) position() float64 {
	pos := p.offset
	if p.playing {
		pos += p.clock.Now().Sub(p.startedAt).Seconds()
	}
	if pos > p.duration {
		pos = p.duration
	}
	return pos
}

func (p *ClockPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing && p.position() < p.duration {
		return nil
	}
	if p.position() >= p.duration {
		p.offset = 0
	}
	p.startedAt = p.clock.Now()
	p.playing = true
	return nil
}

func (p *ClockPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offset = p.position()
	p.playing = false
}

func (p *ClockPlayer) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	if seconds > p.duration {
		seconds = p.duration
	}
	p.offset = seconds
	p.startedAt = p.clock.Now()
}

func (p *ClockPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position()
}

func (p *ClockPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.playing || p.position() >= p.duration
}

func (p *ClockPlayer) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position() >= p.duration
}

func (p *ClockPlayer) Duration() float64 {
	return p.duration
}
