//go:build windows

// Package singleinstance enforces one running copy of the app per session
// via a named OS mutex.
package singleinstance

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// ErrAlreadyRunning means another instance holds the mutex.
var ErrAlreadyRunning = errors.New("singleinstance: another instance is already running")

// Acquire creates the named mutex. On success the returned release func
// drops it; the OS also reclaims the handle on process exit.
func Acquire(name string) (release func(), err error) {
	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("singleinstance: %w", err)
	}
	handle, err := windows.CreateMutex(nil, true, namePtr)
	if err != nil {
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			if handle != 0 {
				windows.CloseHandle(handle)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("singleinstance: creating mutex: %w", err)
	}
	return func() {
		windows.ReleaseMutex(handle)
		windows.CloseHandle(handle)
	}, nil
}
