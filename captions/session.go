// Package captions keeps caption highlighting in step with audio playback.
//
// A Session is a small state machine (idle, playing, paused, ended) driven by
// a Player and a FrameScheduler. Everything a user sees is derived from the
// session's View by Project, so sessions can be exercised without a real
// audio device or rendering surface.
package captions

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/drewmudry/captioncast/timing"
)

var ErrInvalidAudioSource = errors.New("invalid audio source")

// Player is the audio handle a session drives. Positions are in seconds.
type Player interface {
	Play() error
	Pause()
	Seek(seconds float64)
	Position() float64
	Paused() bool
	Ended() bool
	Duration() float64
}

// FrameScheduler runs fn on the next frame.
type FrameScheduler interface {
	RequestFrame(fn func())
}

// Display receives instructions in the order they must be applied.
type Display interface {
	Apply(ins []Instruction)
}

// Unit is one highlightable piece of the transcript.
type Unit struct {
	Text  string
	Start float64
	End   float64
}

// SessionConfig describes a caption session.
type SessionConfig struct {
	Text        string
	Player      Player
	Timings     []timing.WordTiming
	Display     Display
	Frames      FrameScheduler
	Granularity Granularity
	// OnEnded fires once when playback reaches the end.
	OnEnded func()
}

// Session is one playback with synchronized highlighting.
type Session struct {
	mu          sync.Mutex
	owner       *Coordinator
	player      Player
	frames      FrameScheduler
	display     Display
	granularity Granularity
	units       []Unit
	view        View
	looping     bool
	ended       bool
	onEnded     func()
}

func newSession(owner *Coordinator, cfg SessionConfig) (*Session, error) {
	if cfg.Player == nil {
		return nil, ErrInvalidAudioSource
	}
	d := cfg.Player.Duration()
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return nil, ErrInvalidAudioSource
	}
	if err := timing.ValidateWithin(cfg.Timings, d); err != nil {
		return nil, err
	}
	if n := len(timing.Words(cfg.Text)); n != len(cfg.Timings) {
		return nil, fmt.Errorf("%w: %d intervals for %d words", timing.ErrInvalidTimings, len(cfg.Timings), n)
	}
	return &Session{
		owner:       owner,
		player:      cfg.Player,
		frames:      cfg.Frames,
		display:     cfg.Display,
		granularity: cfg.Granularity,
		units:       buildUnits(cfg.Text, cfg.Timings, cfg.Granularity),
		view:        View{State: Idle, Active: -1},
		onEnded:     cfg.OnEnded,
	}, nil
}

func buildUnits(text string, words []timing.WordTiming, g Granularity) []Unit {
	if g == ByWord {
		units := make([]Unit, len(words))
		for i, w := range words {
			units[i] = Unit{Text: w.Word, Start: w.Start, End: w.End}
		}
		return units
	}
	lines := timing.Lines(text, words)
	units := make([]Unit, len(lines))
	for i, l := range lines {
		units[i] = Unit{Text: l.Text, Start: l.Start, End: l.End}
	}
	return units
}

// Units returns the transcript units the session highlights.
func (s *Session) Units() []Unit {
	return s.units
}

// View returns a snapshot of the visible state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Player returns the session's audio handle.
func (s *Session) Player() Player {
	return s.player
}

func (s *Session) render() {
	texts := make([]string, len(s.units))
	for i, u := range s.units {
		texts[i] = u.Text
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply([]Instruction{
		{Op: OpRender, Index: -1, Units: texts},
		{Op: OpControl, Index: -1, Playing: false},
	})
}

// Play starts or resumes playback. Any other audible session is stopped first.
func (s *Session) Play() error {
	if s.owner != nil {
		s.owner.TakeOver(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view.State == Playing {
		return nil
	}
	if err := s.player.Play(); err != nil {
		return err
	}
	prev := s.view
	s.view.State = Playing
	s.apply(Project(prev, s.view, s.granularity))
	if !s.looping {
		s.looping = true
		s.frames.RequestFrame(s.frame)
	}
	return nil
}

// Pause halts playback and keeps the current highlight.
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view.State != Playing {
		return
	}
	s.player.Pause()
	prev := s.view
	s.view.State = Paused
	s.apply(Project(prev, s.view, s.granularity))
}

// Toggle flips between playing and paused, like the session's control button.
func (s *Session) Toggle() error {
	if s.View().State == Playing {
		s.Pause()
		return nil
	}
	return s.Play()
}

// Stop pauses the audio and rewinds it to zero.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player.Pause()
	s.player.Seek(0)
	if s.view.State == Playing {
		prev := s.view
		s.view.State = Paused
		s.apply(Project(prev, s.view, s.granularity))
	}
}

// audible reports whether the session's audio is currently playing.
func (s *Session) audible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view.State == Playing && !s.player.Paused()
}

// frame is one step of the render loop. It re-arms itself while playing.
func (s *Session) frame() {
	s.mu.Lock()
	if s.view.State != Playing {
		s.looping = false
		s.mu.Unlock()
		return
	}

	prev := s.view
	if idx := s.find(s.player.Position()); idx >= 0 {
		s.view.Active = idx
	}

	var fire func()
	switch {
	case s.player.Ended():
		s.view.State = Ended
		s.view.Active = -1
		if !s.ended {
			s.ended = true
			fire = s.onEnded
		}
	case s.player.Paused():
		s.view.State = Paused
	}
	s.apply(Project(prev, s.view, s.granularity))

	rearm := s.view.State == Playing
	s.looping = rearm
	s.mu.Unlock()

	if rearm {
		s.frames.RequestFrame(s.frame)
	}
	if fire != nil {
		fire()
	}
}

// find returns the first unit whose [Start, End) contains t, or -1.
func (s *Session) find(t float64) int {
	for i, u := range s.units {
		if t >= u.Start && t < u.End {
			return i
		}
	}
	return -1
}

func (s *Session) apply(ins []Instruction) {
	if len(ins) == 0 || s.display == nil {
		return
	}
	s.display.Apply(ins)
}
