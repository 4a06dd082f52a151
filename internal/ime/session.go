package ime

import "sync"

// Session is the client's view of the remote input-method session: the
// serial to commit against and whether the compositor still accepts
// input. The pair is read and written under one lock.
//
// Session implements wayland.InputMethodListener.
type Session struct {
	mu        sync.Mutex
	serial    uint32
	ready     bool
	available bool

	onChange func(State)
}

// State is a consistent copy of the session fields.
type State struct {
	Serial    uint32 `json:"serial"`
	Ready     bool   `json:"ready"`
	Available bool   `json:"available"`
}

// NewSession returns an available session that has not seen a serial.
func NewSession() *Session {
	return &Session{available: true}
}

// Done records a new serial. It is called while a round-trip dispatches
// events.
func (s *Session) Done(serial uint32) {
	s.mu.Lock()
	s.serial = serial
	s.ready = true
	st := s.stateLocked()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

// Unavailable marks the session as permanently unavailable.
func (s *Session) Unavailable() {
	s.mu.Lock()
	s.available = false
	st := s.stateLocked()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}

// State returns the current serial, readiness and availability together.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// OnChange registers fn to run after every notification. Only one
// callback is kept.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Session) stateLocked() State {
	return State{Serial: s.serial, Ready: s.ready, Available: s.available}
}
