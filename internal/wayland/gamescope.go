package wayland

import "fmt"

// Interface names advertised by gamescope.
const (
	SeatInterface    = "wl_seat"
	ManagerInterface = "gamescope_input_method_manager"
)

// DefaultManagerVersion is the highest manager version this client speaks.
const DefaultManagerVersion uint32 = 2

// Request opcodes.
const (
	managerDestroy           uint16 = 0
	managerCreateInputMethod uint16 = 1

	inputMethodDestroy   uint16 = 0
	inputMethodCommit    uint16 = 1
	inputMethodSetString uint16 = 2
	inputMethodSetAction uint16 = 3

	inputMethodEventDone        uint16 = 0
	inputMethodEventUnavailable uint16 = 1
)

// Action is the gamescope_input_method.action enum.
type Action uint32

const (
	ActionNone Action = iota
	ActionSubmit
	ActionDeleteLeft
	ActionDeleteRight
	ActionMoveLeft
	ActionMoveRight
	ActionMoveUp
	ActionMoveDown
)

// String returns the protocol name of the action.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionSubmit:
		return "submit"
	case ActionDeleteLeft:
		return "delete_left"
	case ActionDeleteRight:
		return "delete_right"
	case ActionMoveLeft:
		return "move_left"
	case ActionMoveRight:
		return "move_right"
	case ActionMoveUp:
		return "move_up"
	case ActionMoveDown:
		return "move_down"
	default:
		return fmt.Sprintf("action(%d)", uint32(a))
	}
}

// Seat is a bound wl_seat. Its events are ignored.
type Seat struct {
	conn *Conn
	id   uint32
}

// BindSeat binds the first advertised seat at version 1.
func BindSeat(reg *Registry) (*Seat, error) {
	g, err := reg.Find(SeatInterface)
	if err != nil {
		return nil, err
	}
	s := &Seat{conn: reg.conn}
	id, err := reg.bind(g, 1, s)
	if err != nil {
		return nil, fmt.Errorf("bind seat: %w", err)
	}
	s.id = id
	return s, nil
}

// ID returns the seat object id.
func (s *Seat) ID() uint32 {
	return s.id
}

// Destroy forgets the seat. wl_seat v1 has no release request.
func (s *Seat) Destroy() {
	s.conn.forget(s.id)
}

func (s *Seat) handleEvent(uint16, *ArgReader) error {
	return nil
}

// Manager is a bound gamescope_input_method_manager.
type Manager struct {
	conn    *Conn
	id      uint32
	version uint32
}

// BindManager binds the input-method manager at the lower of maxVersion
// and the advertised version.
func BindManager(reg *Registry, maxVersion uint32) (*Manager, error) {
	g, err := reg.Find(ManagerInterface)
	if err != nil {
		return nil, err
	}
	version := g.Version
	if maxVersion > 0 && maxVersion < version {
		version = maxVersion
	}
	m := &Manager{conn: reg.conn, version: version}
	id, err := reg.bind(g, version, m)
	if err != nil {
		return nil, fmt.Errorf("bind input method manager: %w", err)
	}
	m.id = id
	return m, nil
}

// Version returns the bound protocol version.
func (m *Manager) Version() uint32 {
	return m.version
}

// Destroy sends the manager destructor.
func (m *Manager) Destroy() error {
	return m.conn.request(NewRequest(m.id, managerDestroy))
}

func (m *Manager) handleEvent(uint16, *ArgReader) error {
	return nil
}

// InputMethodListener receives input-method events.
type InputMethodListener interface {
	// Done announces the serial to use for the next commit.
	Done(serial uint32)
	// Unavailable means the compositor will never accept input from this
	// input method again.
	Unavailable()
}

// InputMethod is a gamescope_input_method proxy. Requests are queued until
// the next Roundtrip.
type InputMethod struct {
	conn     *Conn
	id       uint32
	listener InputMethodListener
}

// CreateInputMethod creates an input method on seat. Events go to l.
func (m *Manager) CreateInputMethod(seat *Seat, l InputMethodListener) (*InputMethod, error) {
	im := &InputMethod{conn: m.conn, listener: l}
	id, err := m.conn.newObject(im, func(id uint32) *Request {
		return NewRequest(m.id, managerCreateInputMethod).Uint(seat.id).Uint(id)
	})
	if err != nil {
		return nil, fmt.Errorf("create input method: %w", err)
	}
	im.id = id
	return im, nil
}

// ID returns the input method object id.
func (im *InputMethod) ID() uint32 {
	return im.id
}

// SetAction queues a set_action request.
func (im *InputMethod) SetAction(a Action) error {
	return im.conn.request(NewRequest(im.id, inputMethodSetAction).Uint(uint32(a)))
}

// SetString queues a set_string request.
func (im *InputMethod) SetString(text string) error {
	return im.conn.request(NewRequest(im.id, inputMethodSetString).String(text))
}

// Commit queues a commit of the pending state against serial.
func (im *InputMethod) Commit(serial uint32) error {
	return im.conn.request(NewRequest(im.id, inputMethodCommit).Uint(serial))
}

// Roundtrip flushes queued requests and waits for the compositor.
func (im *InputMethod) Roundtrip() error {
	return im.conn.Roundtrip()
}

// Destroy sends the input method destructor.
func (im *InputMethod) Destroy() error {
	return im.conn.request(NewRequest(im.id, inputMethodDestroy))
}

func (im *InputMethod) handleEvent(opcode uint16, args *ArgReader) error {
	switch opcode {
	case inputMethodEventDone:
		serial, err := args.Uint()
		if err != nil {
			return err
		}
		im.listener.Done(serial)
	case inputMethodEventUnavailable:
		im.listener.Unavailable()
	}
	return nil
}
