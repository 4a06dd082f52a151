//go:build !linux

package tty

func makeInput(int) error {
	return ErrUnsupported
}
