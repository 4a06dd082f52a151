package keystroke

// Control bytes recognised in the Normal state.
const (
	byteBackspace = 0x08
	byteLineFeed  = 0x0a
	byteReturn    = 0x0d
	byteEscape    = 0x1b
	byteDelete    = 0x7f
	byteCSI       = '['
)

// State is the decoder state between bytes.
type State uint8

const (
	// StateNormal decodes plain bytes.
	StateNormal State = iota
	// StateSawEscape follows an ESC byte.
	StateSawEscape
	// StateInCsi follows ESC [.
	StateInCsi
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateSawEscape:
		return "saw_escape"
	case StateInCsi:
		return "in_csi"
	default:
		return "unknown"
	}
}

// Decoder is the byte-at-a-time state machine. The zero value is ready to
// use and starts in StateNormal. It is not safe for concurrent use.
type Decoder struct {
	state State
}

// NewDecoder returns a decoder in StateNormal.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// State returns the current decoder state.
func (d *Decoder) State() State {
	return d.state
}

// Reset drops any partial escape sequence.
func (d *Decoder) Reset() {
	d.state = StateNormal
}

// Decode consumes one byte and returns the action it completes, if any.
//
// A DeleteRight result means the terminal still owes one terminator byte
// (the "~" of ESC [ 3 ~). Decode does not swallow it; callers feeding
// bytes by hand must skip one byte themselves. Reader does this.
func (d *Decoder) Decode(b byte) (Action, bool) {
	switch d.state {
	case StateSawEscape:
		if b == byteCSI {
			d.state = StateInCsi
			return Action{}, false
		}
		// A bare ESC followed by anything else still ends the sequence.
		d.state = StateNormal
		return finalByte(b)

	case StateInCsi:
		if b == byteCSI {
			return Action{}, false
		}
		d.state = StateNormal
		return finalByte(b)
	}

	switch b {
	case byteBackspace, byteDelete:
		return DeleteLeft, true
	case byteReturn:
		return Action{}, false
	case byteLineFeed:
		return Submit, true
	case byteEscape:
		d.state = StateSawEscape
		return Action{}, false
	default:
		return InsertChar(b), true
	}
}

// finalByte maps the byte terminating an escape sequence to its action.
func finalByte(b byte) (Action, bool) {
	switch b {
	case 'A':
		return MoveUp, true
	case 'B':
		return MoveDown, true
	case 'C':
		return MoveRight, true
	case 'D':
		return MoveLeft, true
	case '3':
		return DeleteRight, true
	case '5':
		return RepeatMove(Up, RepeatCount), true
	case '6':
		return RepeatMove(Down, RepeatCount), true
	case 'H':
		return RepeatMove(Left, RepeatCount), true
	case 'F':
		return RepeatMove(Right, RepeatCount), true
	default:
		return Action{}, false
	}
}
