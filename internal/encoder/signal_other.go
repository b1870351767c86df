//go:build !unix

package encoder

import "errors"

const pauseSupported = false

func suspend(pid int) error {
	return errors.ErrUnsupported
}

func resume(pid int) error {
	return errors.ErrUnsupported
}

func interrupt(pid int) error {
	return errors.ErrUnsupported
}
