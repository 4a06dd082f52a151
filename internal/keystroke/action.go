// Package keystroke turns a raw terminal byte stream into edit actions.
//
// The terminal is expected to be in no-echo, non-canonical mode so every
// byte arrives as typed. Printable bytes become insertions, a small set of
// control bytes map to deletion and submission, and a handful of CSI
// escape sequences map to cursor movement:
//
//	ESC [ A / B / C / D   move up / down / right / left
//	ESC [ 3 ~             delete right
//	ESC [ 5 ~ / ESC [ 6 ~ jump up / down (page)
//	ESC [ H / ESC [ F     jump left / right (line start / end)
//
// Anything else inside an escape sequence is dropped. Decoding never fails.
package keystroke

import "fmt"

// RepeatCount is how many single moves a jump gesture expands to. The
// decoder has no idea how long a line or page is, so it moves far enough
// and lets the remote session clamp at its boundaries.
const RepeatCount = 128

// Kind identifies an edit action.
type Kind uint8

const (
	KindInsertChar Kind = iota + 1
	KindDeleteLeft
	KindDeleteRight
	KindSubmit
	KindMoveUp
	KindMoveDown
	KindMoveLeft
	KindMoveRight
	KindRepeatMove
)

// String returns the action kind name.
func (k Kind) String() string {
	switch k {
	case KindInsertChar:
		return "insert_char"
	case KindDeleteLeft:
		return "delete_left"
	case KindDeleteRight:
		return "delete_right"
	case KindSubmit:
		return "submit"
	case KindMoveUp:
		return "move_up"
	case KindMoveDown:
		return "move_down"
	case KindMoveLeft:
		return "move_left"
	case KindMoveRight:
		return "move_right"
	case KindRepeatMove:
		return "repeat_move"
	default:
		return "unknown"
	}
}

// Direction is the direction of a repeated move.
type Direction uint8

const (
	Up Direction = iota + 1
	Down
	Left
	Right
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Action is one decoded edit action. It is a plain value; only the fields
// relevant to Kind are set.
type Action struct {
	Kind Kind

	// Char is the raw byte to insert (KindInsertChar).
	Char byte

	// Direction and Count describe a repeated move (KindRepeatMove).
	Direction Direction
	Count     int
}

// InsertChar returns an action inserting a single raw byte.
func InsertChar(b byte) Action {
	return Action{Kind: KindInsertChar, Char: b}
}

// RepeatMove returns an action moving count times in direction d.
func RepeatMove(d Direction, count int) Action {
	return Action{Kind: KindRepeatMove, Direction: d, Count: count}
}

// Simple actions carry no payload.
var (
	DeleteLeft  = Action{Kind: KindDeleteLeft}
	DeleteRight = Action{Kind: KindDeleteRight}
	Submit      = Action{Kind: KindSubmit}
	MoveUp      = Action{Kind: KindMoveUp}
	MoveDown    = Action{Kind: KindMoveDown}
	MoveLeft    = Action{Kind: KindMoveLeft}
	MoveRight   = Action{Kind: KindMoveRight}
)

// String formats the action for logs.
func (a Action) String() string {
	switch a.Kind {
	case KindInsertChar:
		return fmt.Sprintf("%s(%#02x)", a.Kind, a.Char)
	case KindRepeatMove:
		return fmt.Sprintf("%s(%s,%d)", a.Kind, a.Direction, a.Count)
	default:
		return a.Kind.String()
	}
}
