package ime

import (
	"fmt"
	"time"

	"imetype/internal/keystroke"
	"imetype/internal/logging"
	"imetype/internal/metrics"
	"imetype/internal/wayland"
)

// Transport is the input-method object requests go to. Requests are queued
// until Roundtrip flushes them and waits for the compositor.
// *wayland.InputMethod implements it.
type Transport interface {
	SetAction(wayland.Action) error
	SetString(string) error
	Commit(serial uint32) error
	Roundtrip() error
}

// Client applies edit actions to a remote input-method session. Every
// Apply ends with one round-trip, so the session serial seen by the next
// Apply already reflects the previous commit.
//
// Apply is not safe for concurrent use. Session state may be read from
// other goroutines.
type Client struct {
	transport Transport
	session   *Session
	metrics   *metrics.SessionMetrics
	log       *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMetrics records activity into m.
func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger. The default discards.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient wraps a transport whose events are delivered to session.
func NewClient(t Transport, session *Session, opts ...Option) *Client {
	c := &Client{
		transport: t,
		session:   session,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewSessionMetrics(nil)
	}
	if c.log == nil {
		c.log = logging.Discard()
	}
	c.metrics.SetAvailable(session.State().Available)
	return c
}

// Session returns the session the client commits against.
func (c *Client) Session() *Session {
	return c.session
}

// Metrics returns the client's metrics.
func (c *Client) Metrics() *metrics.SessionMetrics {
	return c.metrics
}

// Apply sends the requests for a, commits them against the current serial
// and waits for the compositor. Nothing is sent once the session is
// unavailable or before the first serial has been announced.
func (c *Client) Apply(a keystroke.Action) error {
	st := c.session.State()
	if !st.Available {
		return ErrUnavailable
	}
	if !st.Ready {
		return ErrNotReady
	}

	n, err := c.queue(a)
	c.metrics.RecordRequests(n)
	if err != nil {
		c.metrics.RecordError()
		return err
	}

	if err := c.transport.Commit(st.Serial); err != nil {
		c.metrics.RecordError()
		return &TransportError{Op: "commit", Err: err}
	}
	c.metrics.RecordCommit()

	start := time.Now()
	if err := c.transport.Roundtrip(); err != nil {
		c.metrics.RecordError()
		return &TransportError{Op: "roundtrip", Err: err}
	}
	c.metrics.RecordRoundtrip(time.Since(start))
	c.metrics.RecordAction(a.Kind.String())

	after := c.session.State()
	c.metrics.SetSerial(after.Serial)
	c.metrics.SetAvailable(after.Available)
	c.log.Debug("applied",
		"action", a.String(),
		"requests", n+1,
		"committed", st.Serial,
		"serial", after.Serial,
		"available", after.Available,
	)
	return nil
}

// queue issues the set_string or set_action requests for a and returns
// how many were queued.
func (c *Client) queue(a keystroke.Action) (int, error) {
	switch a.Kind {
	case keystroke.KindInsertChar:
		if err := c.transport.SetString(string([]byte{a.Char})); err != nil {
			return 0, &TransportError{Op: "set_string", Err: err}
		}
		return 1, nil

	case keystroke.KindRepeatMove:
		move, err := moveAction(a.Direction)
		if err != nil {
			return 0, err
		}
		for i := 0; i < a.Count; i++ {
			if err := c.transport.SetAction(move); err != nil {
				return i, &TransportError{Op: "set_action", Err: err}
			}
		}
		return a.Count, nil

	case keystroke.KindDeleteLeft, keystroke.KindDeleteRight, keystroke.KindSubmit,
		keystroke.KindMoveUp, keystroke.KindMoveDown, keystroke.KindMoveLeft, keystroke.KindMoveRight:
		if err := c.transport.SetAction(singleAction[a.Kind]); err != nil {
			return 0, &TransportError{Op: "set_action", Err: err}
		}
		return 1, nil

	default:
		return 0, fmt.Errorf("ime: unknown action kind %d", a.Kind)
	}
}

var singleAction = map[keystroke.Kind]wayland.Action{
	keystroke.KindDeleteLeft:  wayland.ActionDeleteLeft,
	keystroke.KindDeleteRight: wayland.ActionDeleteRight,
	keystroke.KindSubmit:      wayland.ActionSubmit,
	keystroke.KindMoveUp:      wayland.ActionMoveUp,
	keystroke.KindMoveDown:    wayland.ActionMoveDown,
	keystroke.KindMoveLeft:    wayland.ActionMoveLeft,
	keystroke.KindMoveRight:   wayland.ActionMoveRight,
}

func moveAction(d keystroke.Direction) (wayland.Action, error) {
	switch d {
	case keystroke.Up:
		return wayland.ActionMoveUp, nil
	case keystroke.Down:
		return wayland.ActionMoveDown, nil
	case keystroke.Left:
		return wayland.ActionMoveLeft, nil
	case keystroke.Right:
		return wayland.ActionMoveRight, nil
	default:
		return wayland.ActionNone, fmt.Errorf("ime: unknown direction %d", d)
	}
}
