package captions

import "sync"

// Coordinator owns the process-wide rule that only one caption session is
// audible at a time. The application creates one and passes it around.
type Coordinator struct {
	mu      sync.Mutex
	current *Session
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// TakeOver makes next the current session. A previous session that is
// still playing is paused and rewound before TakeOver returns.
func (c *Coordinator) TakeOver(next *Session) {
	c.mu.Lock()
	prev := c.current
	c.current = next
	c.mu.Unlock()

	if prev != nil && prev != next && prev.audible() {
		prev.Stop()
	}
}

// Current returns the session that last took over, if any.
func (c *Coordinator) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// StartSession builds a session, renders its units and starts playback.
func (c *Coordinator) StartSession(cfg SessionConfig) (*Session, error) {
	s, err := newSession(c, cfg)
	if err != nil {
		return nil, err
	}
	c.TakeOver(s)
	s.render()
	if err := s.Play(); err != nil {
		return nil, err
	}
	return s, nil
}

// Release forgets s if it is the current session, stopping its audio.
func (c *Coordinator) Release(s *Session) {
	c.mu.Lock()
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()
	s.Stop()
}
