//go:build unix

package encoder

import "golang.org/x/sys/unix"

const pauseSupported = true

func suspend(pid int) error {
	return unix.Kill(pid, unix.SIGSTOP)
}

func resume(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}

func interrupt(pid int) error {
	return unix.Kill(pid, unix.SIGINT)
}
