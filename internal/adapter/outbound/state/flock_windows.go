//go:build windows

package state

import "golang.org/x/sys/windows"

// acquireLock takes an exclusive lock on the first byte of the state file
// via LockFileEx, blocking until it is available.
func acquireLock(fd uintptr) error {
	ol := new(windows.Overlapped)
	return windows.LockFileEx(windows.Handle(fd), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, ol)
}

// releaseLock unlocks the byte locked by acquireLock.
func releaseLock(fd uintptr) error {
	ol := new(windows.Overlapped)
	return windows.UnlockFileEx(windows.Handle(fd), 0, 1, 0, ol)
}
