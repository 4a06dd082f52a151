// Package wayland is a minimal Wayland client: the wire codec, a
// connection with object dispatch and round-trips, registry discovery, and
// proxies for the gamescope input-method protocol.
//
// Only what an input-method client needs is implemented. There is no file
// descriptor passing, no array arguments and no fixed-point decoding.
package wayland

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// HeaderSize is the size of a message header in bytes.
const HeaderSize = 8

// MaxMessageSize is the largest message libwayland will send or accept.
const MaxMessageSize = 4096

var (
	ErrMessageTooLarge = errors.New("wayland: message too large")
	ErrShortMessage    = errors.New("wayland: message shorter than header")
	ErrTruncatedArg    = errors.New("wayland: truncated argument")
	ErrBadString       = errors.New("wayland: malformed string argument")
)

// Messages are encoded in host byte order.
var order = binary.NativeEndian

// Header is the fixed message header: sender or target object id,
// followed by a word holding the total size in the upper 16 bits and the
// opcode in the lower 16.
type Header struct {
	ObjectID uint32
	Opcode   uint16
	Size     uint16
}

// Write writes the header to w.
func (h Header) Write(w io.Writer) error {
	var buf [HeaderSize]byte
	h.put(buf[:])
	_, err := w.Write(buf[:])
	return err
}

func (h Header) put(buf []byte) {
	order.PutUint32(buf[0:4], h.ObjectID)
	order.PutUint32(buf[4:8], uint32(h.Size)<<16|uint32(h.Opcode))
}

// ReadHeader reads and checks a header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	word := order.Uint32(buf[4:8])
	h := Header{
		ObjectID: order.Uint32(buf[0:4]),
		Opcode:   uint16(word & 0xffff),
		Size:     uint16(word >> 16),
	}
	if h.Size < HeaderSize {
		return Header{}, fmt.Errorf("%w: size %d", ErrShortMessage, h.Size)
	}
	return h, nil
}

// Message is one decoded wire message.
type Message struct {
	Header Header
	Body   []byte
}

// ReadMessage reads a complete message from r.
func ReadMessage(r io.Reader) (Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Message{}, err
	}
	body := make([]byte, int(h.Size)-HeaderSize)
	if len(body) > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return Message{}, err
		}
	}
	return Message{Header: h, Body: body}, nil
}

// Args returns a decoder over the message body.
func (m Message) Args() *ArgReader {
	return &ArgReader{buf: m.Body}
}

// Request builds an outgoing message.
type Request struct {
	objectID uint32
	opcode   uint16
	body     []byte
}

// NewRequest starts a message for opcode on objectID.
func NewRequest(objectID uint32, opcode uint16) *Request {
	return &Request{objectID: objectID, opcode: opcode}
}

// Uint appends an unsigned 32-bit argument. Object ids and new_ids are
// encoded the same way.
func (r *Request) Uint(v uint32) *Request {
	r.body = order.AppendUint32(r.body, v)
	return r
}

// Int appends a signed 32-bit argument.
func (r *Request) Int(v int32) *Request {
	return r.Uint(uint32(v))
}

// String appends a string argument: length including the NUL terminator,
// the bytes, the terminator, then padding to a 4-byte boundary.
func (r *Request) String(s string) *Request {
	n := len(s) + 1
	r.body = order.AppendUint32(r.body, uint32(n))
	r.body = append(r.body, s...)
	r.body = append(r.body, 0)
	for pad := padding(n); pad > 0; pad-- {
		r.body = append(r.body, 0)
	}
	return r
}

// Bytes returns the encoded message.
func (r *Request) Bytes() ([]byte, error) {
	size := HeaderSize + len(r.body)
	if size > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, size)
	}
	out := make([]byte, size)
	Header{ObjectID: r.objectID, Opcode: r.opcode, Size: uint16(size)}.put(out)
	copy(out[HeaderSize:], r.body)
	return out, nil
}

// ArgReader decodes arguments from a message body in order.
type ArgReader struct {
	buf []byte
	off int
}

// Uint decodes an unsigned 32-bit argument.
func (a *ArgReader) Uint() (uint32, error) {
	if len(a.buf)-a.off < 4 {
		return 0, ErrTruncatedArg
	}
	v := order.Uint32(a.buf[a.off:])
	a.off += 4
	return v, nil
}

// Int decodes a signed 32-bit argument.
func (a *ArgReader) Int() (int32, error) {
	v, err := a.Uint()
	return int32(v), err
}

// String decodes a string argument. A zero length is the null string.
func (a *ArgReader) String() (string, error) {
	n, err := a.Uint()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	padded := int(n) + padding(int(n))
	if len(a.buf)-a.off < padded {
		return "", ErrTruncatedArg
	}
	raw := a.buf[a.off : a.off+int(n)]
	if raw[n-1] != 0 {
		return "", ErrBadString
	}
	a.off += padded
	return string(raw[:n-1]), nil
}

// Remaining returns the number of undecoded bytes.
func (a *ArgReader) Remaining() int {
	return len(a.buf) - a.off
}

func padding(n int) int {
	return (4 - n%4) % 4
}
