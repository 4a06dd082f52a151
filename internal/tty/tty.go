// Package tty puts the controlling terminal into the mode imetype reads
// keystrokes in: no echo and no line buffering, but with signal keys and
// CR-to-NL translation left alone so Ctrl-C still interrupts and Enter
// still arrives as '\n'.
package tty

import (
	"errors"
	"sync"

	"golang.org/x/term"
)

var (
	ErrUnsupported = errors.New("tty: input mode not supported on this platform")
	ErrNotTerminal = errors.New("tty: not a terminal")
)

// IsTerminal reports whether fd refers to a terminal.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// MakeInput switches fd to keystroke input mode and returns a function
// restoring the previous state. The restore function may be called more
// than once and from any goroutine; only the first call has an effect.
func MakeInput(fd int) (restore func() error, err error) {
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	saved, err := term.GetState(fd)
	if err != nil {
		return nil, err
	}
	if err := makeInput(fd); err != nil {
		return nil, err
	}

	var (
		once       sync.Once
		restoreErr error
	)
	return func() error {
		once.Do(func() { restoreErr = term.Restore(fd, saved) })
		return restoreErr
	}, nil
}
