package wayland

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := Header{ObjectID: 7, Opcode: 3, Size: 12}
	require.NoError(t, h.Write(&buf))
	require.Equal(t, HeaderSize, buf.Len())

	got, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeaderWordLayout(t *testing.T) {
	b, err := NewRequest(5, 2).Uint(1).Bytes()
	require.NoError(t, err)
	require.Len(t, b, 12)

	assert.Equal(t, uint32(5), order.Uint32(b[0:4]))
	assert.Equal(t, uint32(12)<<16|2, order.Uint32(b[4:8]))
	assert.Equal(t, uint32(1), order.Uint32(b[8:12]))
}

func TestReadHeaderRejectsShortSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Header{ObjectID: 1, Size: 4}.Write(&buf))

	_, err := ReadHeader(&buf)
	assert.ErrorIs(t, err, ErrShortMessage)
}

func TestReadMessageTruncatedBody(t *testing.T) {
	b, err := NewRequest(2, 0).Uint(1).Uint(2).Bytes()
	require.NoError(t, err)

	_, err = ReadMessage(bytes.NewReader(b[:len(b)-2]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadMessageEOF(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader(nil))
	assert.True(t, errors.Is(err, io.EOF))
}

func TestStringPadding(t *testing.T) {
	tests := []struct {
		in      string
		bodyLen int
	}{
		{"", 8},         // len word + NUL + 3 pad
		{"abc", 8},      // len word + 3 bytes + NUL
		{"abcd", 12},    // len word + 4 bytes + NUL + 3 pad
		{"wl_seat", 12}, // len word + 7 bytes + NUL
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			b, err := NewRequest(1, 0).String(tt.in).Bytes()
			require.NoError(t, err)
			assert.Len(t, b, HeaderSize+tt.bodyLen)
			assert.Equal(t, uint32(len(tt.in)+1), order.Uint32(b[HeaderSize:]))

			msg, err := ReadMessage(bytes.NewReader(b))
			require.NoError(t, err)
			args := msg.Args()
			s, err := args.String()
			require.NoError(t, err)
			assert.Equal(t, tt.in, s)
			assert.Zero(t, args.Remaining())
		})
	}
}

func TestMixedArguments(t *testing.T) {
	b, err := NewRequest(3, 0).
		Uint(2).
		String(ManagerInterface).
		Uint(2).
		Int(-1).
		Bytes()
	require.NoError(t, err)

	msg, err := ReadMessage(bytes.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), msg.Header.ObjectID)

	args := msg.Args()
	name, err := args.Uint()
	require.NoError(t, err)
	iface, err := args.String()
	require.NoError(t, err)
	version, err := args.Uint()
	require.NoError(t, err)
	neg, err := args.Int()
	require.NoError(t, err)

	assert.Equal(t, uint32(2), name)
	assert.Equal(t, ManagerInterface, iface)
	assert.Equal(t, uint32(2), version)
	assert.Equal(t, int32(-1), neg)
}

func TestArgReaderErrors(t *testing.T) {
	t.Run("truncated uint", func(t *testing.T) {
		a := &ArgReader{buf: []byte{1, 2}}
		_, err := a.Uint()
		assert.ErrorIs(t, err, ErrTruncatedArg)
	})

	t.Run("null string", func(t *testing.T) {
		a := &ArgReader{buf: order.AppendUint32(nil, 0)}
		s, err := a.String()
		require.NoError(t, err)
		assert.Empty(t, s)
	})

	t.Run("truncated string", func(t *testing.T) {
		buf := order.AppendUint32(nil, 9)
		buf = append(buf, "abc"...)
		a := &ArgReader{buf: buf}
		_, err := a.String()
		assert.ErrorIs(t, err, ErrTruncatedArg)
	})

	t.Run("missing terminator", func(t *testing.T) {
		buf := order.AppendUint32(nil, 4)
		buf = append(buf, "abcd"...)
		a := &ArgReader{buf: buf}
		_, err := a.String()
		assert.ErrorIs(t, err, ErrBadString)
	})
}

func TestRequestTooLarge(t *testing.T) {
	_, err := NewRequest(1, 0).String(strings.Repeat("x", MaxMessageSize)).Bytes()
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}
