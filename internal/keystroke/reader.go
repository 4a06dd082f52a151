package keystroke

import (
	"errors"
	"io"
)

// Reader pulls raw bytes from a source and yields decoded actions.
type Reader struct {
	src io.ByteReader
	dec Decoder

	consumed uint64
}

// NewReader returns a Reader decoding bytes from src.
func NewReader(src io.ByteReader) *Reader {
	return &Reader{src: src}
}

// Next blocks until a byte sequence completes an action and returns it.
// Bytes that complete nothing (CR, escape prefixes, unknown sequences) are
// consumed silently. The error is whatever the source returned, io.EOF
// included.
//
// After DeleteRight one more byte is read and thrown away: it is the
// terminator of ESC [ 3 ~. A source that ends right there still yields the
// DeleteRight.
func (r *Reader) Next() (Action, error) {
	for {
		b, err := r.src.ReadByte()
		if err != nil {
			return Action{}, err
		}
		r.consumed++

		a, ok := r.dec.Decode(b)
		if !ok {
			continue
		}
		if a.Kind == KindDeleteRight {
			if _, err := r.src.ReadByte(); err != nil {
				if !errors.Is(err, io.EOF) {
					return Action{}, err
				}
			} else {
				r.consumed++
			}
		}
		return a, nil
	}
}

// State returns the decoder state.
func (r *Reader) State() State {
	return r.dec.State()
}

// Consumed returns the number of raw bytes read so far.
func (r *Reader) Consumed() uint64 {
	return r.consumed
}
