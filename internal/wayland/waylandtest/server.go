// Package waylandtest provides a scripted fake compositor speaking just
// enough of the Wayland wire protocol to exercise input-method clients.
package waylandtest

import (
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"imetype/internal/wayland"
)

// Options controls what the fake compositor advertises and how it reacts.
type Options struct {
	// NoSeat and NoManager hide the respective globals.
	NoSeat    bool
	NoManager bool

	// ManagerVersion is the advertised manager version (default 3).
	ManagerVersion uint32

	// SerialBase seeds the serials: done events carry SerialBase+1,
	// SerialBase+2, and so on.
	SerialBase uint32

	// Unavailable sends unavailable instead of done on creation.
	Unavailable bool

	// UnavailableAfterCommits sends unavailable after that many commits.
	UnavailableAfterCommits int

	// ErrorAfterCommits raises a wl_display.error after that many commits.
	ErrorAfterCommits int

	// SilentCreate sends neither done nor unavailable on creation.
	SilentCreate bool

	// StallAfterCommits stops answering anything, sync included, once that
	// many commits have arrived.
	StallAfterCommits int
}

// Call is one input-method request observed by the server.
type Call struct {
	Request string // "set_action", "set_string", "commit" or "destroy"
	Value   uint32 // action or serial
	Text    string // set_string payload
}

// Server is a fake compositor listening on a Unix socket.
type Server struct {
	t    testing.TB
	opts Options
	ln   net.Listener
	path string

	mu      sync.Mutex
	calls   []Call
	syncs   int
	bound   map[string]uint32 // interface -> bound version
	serial  uint32
	commits int
	stalled bool
	conns   []net.Conn

	wg sync.WaitGroup
}

// Global names handed out by the fake registry.
const (
	seatName    = 1
	managerName = 2
)

// NewServer starts a fake compositor. It is shut down by t.Cleanup.
func NewServer(t testing.TB, opts Options) *Server {
	t.Helper()

	if opts.ManagerVersion == 0 {
		opts.ManagerVersion = 3
	}
	path := filepath.Join(t.TempDir(), "wl-test")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	s := &Server{
		t:      t,
		opts:   opts,
		ln:     ln,
		path:   path,
		bound:  make(map[string]uint32),
		serial: opts.SerialBase,
	}

	s.wg.Add(1)
	go s.acceptLoop()

	t.Cleanup(func() {
		ln.Close()
		s.mu.Lock()
		for _, c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
	return s
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Calls returns the input-method requests received so far, in order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Syncs returns how many wl_display.sync requests were received.
func (s *Server) Syncs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncs
}

// BoundVersion returns the version a global was bound at, or 0.
func (s *Server) BoundVersion(iface string) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound[iface]
}

// Serial returns the last serial sent in a done event.
func (s *Server) Serial() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serial
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.serve(conn)
		}()
	}
}

// session is the per-connection object table.
type session struct {
	conn    net.Conn
	objects map[uint32]string
}

func (s *Server) serve(conn net.Conn) {
	sess := &session{
		conn:    conn,
		objects: map[uint32]string{wayland.DisplayID: "wl_display"},
	}
	for {
		msg, err := wayland.ReadMessage(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.t.Logf("waylandtest: read: %v", err)
			}
			return
		}
		if err := s.handle(sess, msg); err != nil {
			s.t.Logf("waylandtest: %v", err)
			return
		}
	}
}

func (s *Server) handle(sess *session, msg wayland.Message) error {
	s.mu.Lock()
	stalled := s.stalled
	s.mu.Unlock()
	if stalled {
		return nil
	}

	args := msg.Args()
	iface := sess.objects[msg.Header.ObjectID]

	switch iface {
	case "wl_display":
		id, err := args.Uint()
		if err != nil {
			return err
		}
		switch msg.Header.Opcode {
		case 0: // sync
			s.mu.Lock()
			s.syncs++
			s.mu.Unlock()
			if err := s.event(sess, id, 0, func(r *wayland.Request) { r.Uint(0) }); err != nil {
				return err
			}
			return s.event(sess, wayland.DisplayID, 1, func(r *wayland.Request) { r.Uint(id) })
		case 1: // get_registry
			sess.objects[id] = "wl_registry"
			return s.announce(sess, id)
		}

	case "wl_registry":
		if _, err := args.Uint(); err != nil { // global name
			return err
		}
		bindIface, err := args.String()
		if err != nil {
			return err
		}
		version, _ := args.Uint()
		id, err := args.Uint()
		if err != nil {
			return err
		}
		sess.objects[id] = bindIface
		s.mu.Lock()
		s.bound[bindIface] = version
		s.mu.Unlock()

	case wayland.ManagerInterface:
		if msg.Header.Opcode != 1 {
			return nil
		}
		if _, err := args.Uint(); err != nil { // seat
			return err
		}
		id, err := args.Uint()
		if err != nil {
			return err
		}
		sess.objects[id] = "gamescope_input_method"
		switch {
		case s.opts.SilentCreate:
			return nil
		case s.opts.Unavailable:
			return s.event(sess, id, 1, func(*wayland.Request) {})
		default:
			return s.sendDone(sess, id)
		}

	case "gamescope_input_method":
		return s.inputMethodRequest(sess, msg.Header.ObjectID, msg.Header.Opcode, args)
	}
	return nil
}

func (s *Server) inputMethodRequest(sess *session, id uint32, opcode uint16, args *wayland.ArgReader) error {
	var call Call
	switch opcode {
	case 0:
		call.Request = "destroy"
	case 1:
		call.Request = "commit"
		call.Value, _ = args.Uint()
	case 2:
		call.Request = "set_string"
		text, err := args.String()
		if err != nil {
			return err
		}
		call.Text = text
	case 3:
		call.Request = "set_action"
		call.Value, _ = args.Uint()
	default:
		return nil
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	if call.Request == "commit" {
		s.commits++
	}
	commits := s.commits
	s.mu.Unlock()

	if call.Request != "commit" {
		return nil
	}
	if n := s.opts.StallAfterCommits; n > 0 && commits >= n {
		s.mu.Lock()
		s.stalled = true
		s.mu.Unlock()
		return nil
	}
	if n := s.opts.ErrorAfterCommits; n > 0 && commits >= n {
		return s.event(sess, wayland.DisplayID, 0, func(r *wayland.Request) {
			r.Uint(id).Uint(3).String("commit rejected")
		})
	}
	if n := s.opts.UnavailableAfterCommits; n > 0 && commits >= n {
		return s.event(sess, id, 1, func(*wayland.Request) {})
	}
	return s.sendDone(sess, id)
}

func (s *Server) announce(sess *session, registry uint32) error {
	if !s.opts.NoSeat {
		if err := s.event(sess, registry, 0, func(r *wayland.Request) {
			r.Uint(seatName).String(wayland.SeatInterface).Uint(7)
		}); err != nil {
			return err
		}
	}
	if !s.opts.NoManager {
		if err := s.event(sess, registry, 0, func(r *wayland.Request) {
			r.Uint(managerName).String(wayland.ManagerInterface).Uint(s.opts.ManagerVersion)
		}); err != nil {
			return err
		}
	}
	return s.event(sess, registry, 0, func(r *wayland.Request) {
		r.Uint(9).String("wl_compositor").Uint(4)
	})
}

func (s *Server) sendDone(sess *session, id uint32) error {
	s.mu.Lock()
	s.serial++
	serial := s.serial
	s.mu.Unlock()
	return s.event(sess, id, 0, func(r *wayland.Request) { r.Uint(serial) })
}

func (s *Server) event(sess *session, objectID uint32, opcode uint16, build func(*wayland.Request)) error {
	r := wayland.NewRequest(objectID, opcode)
	build(r)
	b, err := r.Bytes()
	if err != nil {
		return err
	}
	_, err = sess.conn.Write(b)
	return err
}
