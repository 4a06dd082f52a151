package ipc

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"imetype/internal/ime"
	"imetype/internal/logging"
)

// StateChanged is emitted with (serial, available, ready) whenever the
// compositor announces a serial or revokes the session.
const StateChanged = Interface + ".StateChanged"

// ErrNameTaken means another process owns the requested bus name.
var ErrNameTaken = errors.New("ipc: bus name already taken")

// Options configures a Service.
type Options struct {
	BusName    string
	ObjectPath string
	Logger     *logging.Logger
}

// Service owns a bus name and exports an Object on it.
type Service struct {
	conn      *dbus.Conn
	name      string
	path      dbus.ObjectPath
	log       *logging.Logger
	ownsConn  bool
	onRelease func()
}

// ServeSessionBus opens a private session-bus connection and serves obj
// on it. Close also closes the connection.
func ServeSessionBus(obj *Object, opts Options) (*Service, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	s, err := Serve(conn, obj, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.ownsConn = true
	return s, nil
}

// Serve exports obj with introspection data at opts.ObjectPath and
// requests opts.BusName.
func Serve(conn *dbus.Conn, obj *Object, opts Options) (*Service, error) {
	path := dbus.ObjectPath(opts.ObjectPath)
	if !path.IsValid() {
		return nil, fmt.Errorf("ipc: invalid object path %q", opts.ObjectPath)
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	if err := conn.Export(obj, path, Interface); err != nil {
		return nil, fmt.Errorf("export status object: %w", err)
	}
	node := introspectNode(path, obj)
	if err := conn.Export(introspect.NewIntrospectable(node), path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return nil, fmt.Errorf("export introspection: %w", err)
	}

	s := &Service{conn: conn, name: opts.BusName, path: path, log: log}

	reply, err := conn.RequestName(opts.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		s.unexport()
		return nil, fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		s.unexport()
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, opts.BusName)
	}

	log.Info("status service started", "bus_name", opts.BusName, "path", string(path))
	return s, nil
}

// Watch emits StateChanged on every change of session. It replaces any
// callback already registered on session.
func (s *Service) Watch(session *ime.Session) {
	session.OnChange(s.emit)
	s.onRelease = func() { session.OnChange(nil) }
}

func (s *Service) emit(st ime.State) {
	if err := s.conn.Emit(s.path, StateChanged, st.Serial, st.Available, st.Ready); err != nil {
		s.log.Warn("emit state change", "error", err)
	}
}

// Close releases the bus name and removes the exported objects.
func (s *Service) Close() error {
	if s.onRelease != nil {
		s.onRelease()
	}
	_, err := s.conn.ReleaseName(s.name)
	s.unexport()
	if s.ownsConn {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *Service) unexport() {
	s.conn.Export(nil, s.path, Interface)
	s.conn.Export(nil, s.path, "org.freedesktop.DBus.Introspectable")
}

func introspectNode(path dbus.ObjectPath, obj *Object) *introspect.Node {
	return &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: introspect.Methods(obj),
				Signals: []introspect.Signal{{
					Name: "StateChanged",
					Args: []introspect.Arg{
						{Name: "serial", Type: "u"},
						{Name: "available", Type: "b"},
						{Name: "ready", Type: "b"},
					},
				}},
			},
		},
	}
}
