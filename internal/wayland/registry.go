package wayland

import (
	"errors"
	"fmt"
)

// wl_registry opcodes.
const (
	registryBind uint16 = 0

	registryEventGlobal       uint16 = 0
	registryEventGlobalRemove uint16 = 1
)

// ErrGlobalNotFound means the compositor does not advertise an interface.
var ErrGlobalNotFound = errors.New("wayland: global not found")

// Global is one advertised compositor global.
type Global struct {
	Name      uint32
	Interface string
	Version   uint32
}

// Registry is a wl_registry with the globals seen so far.
type Registry struct {
	conn    *Conn
	id      uint32
	globals []Global
}

// Registry creates a wl_registry and performs one round-trip so that the
// initial burst of globals has been received when it returns.
func (c *Conn) Registry() (*Registry, error) {
	reg := &Registry{conn: c}
	id, err := c.newObject(reg, func(id uint32) *Request {
		return NewRequest(DisplayID, displayGetRegistry).Uint(id)
	})
	if err != nil {
		return nil, fmt.Errorf("get registry: %w", err)
	}
	reg.id = id

	if err := c.Roundtrip(); err != nil {
		return nil, fmt.Errorf("registry roundtrip: %w", err)
	}
	return reg, nil
}

// Globals returns the advertised globals in announcement order.
func (r *Registry) Globals() []Global {
	out := make([]Global, len(r.globals))
	copy(out, r.globals)
	return out
}

// Find returns the first global implementing iface.
func (r *Registry) Find(iface string) (Global, error) {
	for _, g := range r.globals {
		if g.Interface == iface {
			return g, nil
		}
	}
	return Global{}, fmt.Errorf("%w: %s", ErrGlobalNotFound, iface)
}

// bind binds global g at version and routes its events to h.
func (r *Registry) bind(g Global, version uint32, h eventHandler) (uint32, error) {
	return r.conn.newObject(h, func(id uint32) *Request {
		return NewRequest(r.id, registryBind).
			Uint(g.Name).
			String(g.Interface).
			Uint(version).
			Uint(id)
	})
}

// Destroy stops tracking globals. wl_registry has no destructor request,
// so this is purely client side.
func (r *Registry) Destroy() {
	r.conn.forget(r.id)
}

func (r *Registry) handleEvent(opcode uint16, args *ArgReader) error {
	switch opcode {
	case registryEventGlobal:
		name, err := args.Uint()
		if err != nil {
			return err
		}
		iface, err := args.String()
		if err != nil {
			return err
		}
		version, err := args.Uint()
		if err != nil {
			return err
		}
		r.globals = append(r.globals, Global{Name: name, Interface: iface, Version: version})
	case registryEventGlobalRemove:
		name, err := args.Uint()
		if err != nil {
			return err
		}
		for i, g := range r.globals {
			if g.Name == name {
				r.globals = append(r.globals[:i], r.globals[i+1:]...)
				break
			}
		}
	}
	return nil
}
