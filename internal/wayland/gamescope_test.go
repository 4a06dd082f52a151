package wayland

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Declaration order in gamescope-input-method.xml. Opcodes and enum values
// are the index into these lists.
var (
	managerRequests     = []string{"destroy", "create_input_method"}
	inputMethodRequests = []string{"destroy", "commit", "set_string", "set_action"}
	inputMethodEvents   = []string{"done", "unavailable"}
	actionEntries       = []string{"none", "submit", "delete_left", "delete_right", "move_left", "move_right", "move_up", "move_down"}
)

func indexOf(t *testing.T, list []string, name string) uint16 {
	t.Helper()
	for i, n := range list {
		if n == name {
			return uint16(i)
		}
	}
	t.Fatalf("%s not declared", name)
	return 0
}

func TestGamescopeOpcodes(t *testing.T) {
	assert.Equal(t, indexOf(t, managerRequests, "destroy"), managerDestroy)
	assert.Equal(t, indexOf(t, managerRequests, "create_input_method"), managerCreateInputMethod)

	assert.Equal(t, indexOf(t, inputMethodRequests, "destroy"), inputMethodDestroy)
	assert.Equal(t, indexOf(t, inputMethodRequests, "commit"), inputMethodCommit)
	assert.Equal(t, indexOf(t, inputMethodRequests, "set_string"), inputMethodSetString)
	assert.Equal(t, indexOf(t, inputMethodRequests, "set_action"), inputMethodSetAction)

	assert.Equal(t, indexOf(t, inputMethodEvents, "done"), inputMethodEventDone)
	assert.Equal(t, indexOf(t, inputMethodEvents, "unavailable"), inputMethodEventUnavailable)

	for i, name := range actionEntries {
		assert.Equal(t, name, Action(i).String())
	}
}

// capture returns the messages written by one Flush of conn.
func capture(t *testing.T, conn *Conn, peer net.Conn, n int) []Message {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- conn.Flush() }()

	msgs := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		msg, err := ReadMessage(peer)
		require.NoError(t, err)
		msgs = append(msgs, msg)
	}
	require.NoError(t, <-errc)
	return msgs
}

func TestInputMethodWireFormat(t *testing.T) {
	client, peer := net.Pipe()
	defer peer.Close()
	conn := NewConn(client)
	defer conn.Close()

	im := &InputMethod{conn: conn, id: 7}
	require.NoError(t, im.SetString("é"))
	require.NoError(t, im.SetAction(ActionMoveLeft))
	require.NoError(t, im.Commit(42))

	msgs := capture(t, conn, peer, 3)

	assert.Equal(t, uint32(7), msgs[0].Header.ObjectID)
	assert.Equal(t, inputMethodSetString, msgs[0].Header.Opcode)
	text, err := msgs[0].Args().String()
	require.NoError(t, err)
	assert.Equal(t, "é", text)

	assert.Equal(t, inputMethodSetAction, msgs[1].Header.Opcode)
	action, err := msgs[1].Args().Uint()
	require.NoError(t, err)
	assert.Equal(t, uint32(4), action)

	assert.Equal(t, inputMethodCommit, msgs[2].Header.Opcode)
	serial, err := msgs[2].Args().Uint()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), serial)
}
