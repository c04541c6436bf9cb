//go:build !windows

package state

import (
	"errors"
	"syscall"
)

// acquireLock takes an exclusive advisory lock on the state file. The
// blocking flock can be interrupted by a signal, so EINTR is retried.
func acquireLock(fd uintptr) error {
	for {
		err := syscall.Flock(int(fd), syscall.LOCK_EX)
		if !errors.Is(err, syscall.EINTR) {
			return err
		}
	}
}

// releaseLock drops the advisory lock.
func releaseLock(fd uintptr) error {
	return syscall.Flock(int(fd), syscall.LOCK_UN)
}
