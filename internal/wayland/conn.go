package wayland

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"
)

// DisplayID is the fixed object id of wl_display.
const DisplayID uint32 = 1

// wl_display opcodes.
const (
	displaySync        uint16 = 0
	displayGetRegistry uint16 = 1

	displayEventError    uint16 = 0
	displayEventDeleteID uint16 = 1
)

// Client-side ids are allocated from 2 up to this bound; higher ids belong
// to the server.
const maxClientID uint32 = 0xfeffffff

// closeFlushTimeout bounds how long Close waits for a compositor that has
// stopped reading.
const closeFlushTimeout = time.Second

var (
	ErrNoRuntimeDir = errors.New("wayland: XDG_RUNTIME_DIR is not set")
	ErrClosed       = errors.New("wayland: connection closed")
	ErrIDsExhausted = errors.New("wayland: client object ids exhausted")
)

// ProtocolError is a fatal wl_display.error sent by the compositor.
type ProtocolError struct {
	ObjectID uint32
	Code     uint32
	Message  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland: protocol error on object %d (code %d): %s", e.ObjectID, e.Code, e.Message)
}

// eventHandler receives the events addressed to one object.
type eventHandler interface {
	handleEvent(opcode uint16, args *ArgReader) error
}

// Conn is a client connection to a compositor. Requests are buffered and
// only hit the socket on Flush or Roundtrip.
//
// Once any read, write or protocol error occurs the connection is dead and
// every later call returns that error.
//
// rmu serializes readers of the socket. mu guards everything else and is
// never held across a blocking read, so Close can always interrupt a
// Roundtrip waiting on a silent compositor.
type Conn struct {
	rmu  sync.Mutex
	r    *bufio.Reader
	mu   sync.Mutex
	sock net.Conn
	w    *bufio.Writer

	objects map[uint32]eventHandler
	free    []uint32
	nextID  uint32

	err error
}

// SocketPath resolves a display name the way libwayland does: absolute
// names are used as-is, anything else lives in the runtime directory.
func SocketPath(display, runtimeDir string) (string, error) {
	if filepath.IsAbs(display) {
		return display, nil
	}
	if runtimeDir == "" {
		return "", ErrNoRuntimeDir
	}
	return filepath.Join(runtimeDir, display), nil
}

// Dial connects to the compositor socket at path.
func Dial(path string) (*Conn, error) {
	sock, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return NewConn(sock), nil
}

// NewConn wraps an established socket.
func NewConn(sock net.Conn) *Conn {
	c := &Conn{
		sock:    sock,
		r:       bufio.NewReader(sock),
		w:       bufio.NewWriterSize(sock, MaxMessageSize),
		objects: make(map[uint32]eventHandler),
		nextID:  DisplayID + 1,
	}
	c.objects[DisplayID] = displayHandler{c}
	return c
}

// Close flushes pending requests and closes the socket. A Roundtrip
// blocked in another goroutine returns ErrClosed.
func (c *Conn) Close() error {
	// Unblocks a writer stuck on a full socket buffer while holding mu.
	_ = c.sock.SetWriteDeadline(time.Now().Add(closeFlushTimeout))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err == ErrClosed {
		return nil
	}
	flushErr := error(nil)
	if c.err == nil {
		flushErr = c.w.Flush()
	}
	c.err = ErrClosed
	if err := c.sock.Close(); err != nil {
		return err
	}
	return flushErr
}

// Err returns the error that killed the connection, if any.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Flush writes buffered requests to the socket.
func (c *Conn) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	if err := c.w.Flush(); err != nil {
		return c.fail(err)
	}
	return nil
}

// Roundtrip flushes all buffered requests, then blocks until the
// compositor has processed them. Every event that arrives in the meantime
// is dispatched to its object before Roundtrip returns.
func (c *Conn) Roundtrip() error {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	cb := &callback{}
	if err := c.sync(cb); err != nil {
		return err
	}
	for {
		msg, err := ReadMessage(c.r)

		c.mu.Lock()
		switch {
		case c.err != nil:
			err = c.err
		case err == nil:
			err = c.dispatch(msg)
		}
		if err != nil {
			err = c.fail(err)
			c.mu.Unlock()
			return err
		}
		done := cb.done
		c.mu.Unlock()

		if done {
			return nil
		}
	}
}

// sync queues wl_display.sync for cb and flushes.
func (c *Conn) sync(cb *callback) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	id, err := c.register(cb)
	if err != nil {
		return c.fail(err)
	}
	if err := c.send(NewRequest(DisplayID, displaySync).Uint(id)); err != nil {
		return c.fail(err)
	}
	if err := c.w.Flush(); err != nil {
		return c.fail(err)
	}
	return nil
}

// request queues a message. Callers hold no lock.
func (c *Conn) request(req *Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	if err := c.send(req); err != nil {
		return c.fail(err)
	}
	return nil
}

// newObject allocates an id for h and queues the request creating it.
// build receives the new id and returns the request carrying it.
func (c *Conn) newObject(h eventHandler, build func(id uint32) *Request) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return 0, c.err
	}
	id, err := c.register(h)
	if err != nil {
		return 0, c.fail(err)
	}
	if err := c.send(build(id)); err != nil {
		return 0, c.fail(err)
	}
	return id, nil
}

// forget stops dispatching events to id without recycling it. Used for
// objects the server never acknowledges with delete_id.
func (c *Conn) forget(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, id)
}

func (c *Conn) send(req *Request) error {
	b, err := req.Bytes()
	if err != nil {
		return err
	}
	_, err = c.w.Write(b)
	return err
}

func (c *Conn) register(h eventHandler) (uint32, error) {
	var id uint32
	if n := len(c.free); n > 0 {
		id = c.free[n-1]
		c.free = c.free[:n-1]
	} else {
		if c.nextID > maxClientID {
			return 0, ErrIDsExhausted
		}
		id = c.nextID
		c.nextID++
	}
	c.objects[id] = h
	return id, nil
}

func (c *Conn) release(id uint32) {
	if _, ok := c.objects[id]; !ok {
		return
	}
	delete(c.objects, id)
	c.free = append(c.free, id)
}

// dispatch hands msg to its object. Callers hold mu.
func (c *Conn) dispatch(msg Message) error {
	h, ok := c.objects[msg.Header.ObjectID]
	if !ok {
		// Events racing a destroy are legal; drop them.
		return nil
	}
	return h.handleEvent(msg.Header.Opcode, msg.Args())
}

func (c *Conn) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}

// displayHandler handles wl_display events.
type displayHandler struct {
	c *Conn
}

func (d displayHandler) handleEvent(opcode uint16, args *ArgReader) error {
	switch opcode {
	case displayEventError:
		objectID, err := args.Uint()
		if err != nil {
			return err
		}
		code, err := args.Uint()
		if err != nil {
			return err
		}
		message, err := args.String()
		if err != nil {
			return err
		}
		return &ProtocolError{ObjectID: objectID, Code: code, Message: message}
	case displayEventDeleteID:
		id, err := args.Uint()
		if err != nil {
			return err
		}
		d.c.release(id)
	}
	return nil
}

// callback is a wl_callback created by wl_display.sync.
type callback struct {
	done bool
	data uint32
}

func (cb *callback) handleEvent(opcode uint16, args *ArgReader) error {
	if opcode != 0 {
		return nil
	}
	data, err := args.Uint()
	if err != nil {
		return err
	}
	cb.data = data
	cb.done = true
	return nil
}
