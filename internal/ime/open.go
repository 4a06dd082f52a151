package ime

import (
	"errors"
	"fmt"

	"imetype/internal/logging"
	"imetype/internal/metrics"
	"imetype/internal/wayland"
)

// Options selects the compositor and how the session is bootstrapped.
type Options struct {
	// Display is a socket name in RuntimeDir, or an absolute path.
	Display    string
	RuntimeDir string

	// ManagerVersion caps the bound manager version; 0 means
	// wayland.DefaultManagerVersion.
	ManagerVersion uint32

	Logger  *logging.Logger
	Metrics *metrics.SessionMetrics
}

// Conn is a bootstrapped session: a live compositor connection, the bound
// globals, the input method and the Client driving it.
type Conn struct {
	*Client

	conn     *wayland.Conn
	registry *wayland.Registry
	seat     *wayland.Seat
	manager  *wayland.Manager
	im       *wayland.InputMethod
}

// Open connects to the compositor, binds the seat and the input-method
// manager, creates an input method and performs the initial round-trip.
// It fails if the session is unavailable or has not announced a serial
// once that round-trip returns.
func Open(opts Options) (*Conn, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	if opts.ManagerVersion == 0 {
		opts.ManagerVersion = wayland.DefaultManagerVersion
	}

	path, err := wayland.SocketPath(opts.Display, opts.RuntimeDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	conn, err := wayland.Dial(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	log.Debug("connected", "socket", path)

	c := &Conn{conn: conn}
	if err := c.bootstrap(opts, log); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Conn) bootstrap(opts Options, log *logging.Logger) error {
	var err error

	c.registry, err = c.conn.Registry()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	c.seat, err = wayland.BindSeat(c.registry)
	if err != nil {
		return notFound(wayland.SeatInterface, err)
	}
	c.manager, err = wayland.BindManager(c.registry, opts.ManagerVersion)
	if err != nil {
		return notFound(wayland.ManagerInterface, err)
	}
	log.Debug("bound globals",
		"seat", c.seat.ID(),
		"manager_version", c.manager.Version(),
	)

	session := NewSession()
	c.im, err = c.manager.CreateInputMethod(c.seat, session)
	if err != nil {
		return &TransportError{Op: "create_input_method", Err: err}
	}
	if err := c.im.Roundtrip(); err != nil {
		return &TransportError{Op: "roundtrip", Err: err}
	}

	st := session.State()
	switch {
	case !st.Available:
		return ErrUnavailable
	case !st.Ready:
		return ErrNotReady
	}
	log.Info("input method ready", "serial", st.Serial)

	c.Client = NewClient(c.im, session, WithLogger(log), WithMetrics(opts.Metrics))
	c.Client.metrics.SetSerial(st.Serial)
	return nil
}

func notFound(iface string, err error) error {
	if errors.Is(err, wayland.ErrGlobalNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, iface)
	}
	return &TransportError{Op: "bind " + iface, Err: err}
}

// Close destroys the input method and the manager, then closes the
// connection. Errors from the destructors are ignored when the connection
// is already dead.
func (c *Conn) Close() error {
	if c.im != nil {
		c.im.Destroy()
	}
	if c.manager != nil {
		c.manager.Destroy()
	}
	if c.seat != nil {
		c.seat.Destroy()
	}
	if c.registry != nil {
		c.registry.Destroy()
	}
	return c.conn.Close()
}
