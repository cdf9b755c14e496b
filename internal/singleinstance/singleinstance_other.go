//go:build !windows

// Package singleinstance enforces one running copy of the app per session
// via a named OS mutex.
package singleinstance

import "errors"

// ErrAlreadyRunning means another instance holds the mutex.
var ErrAlreadyRunning = errors.New("singleinstance: another instance is already running")

// Acquire is a no-op on platforms without named mutexes; every start
// succeeds. Porting the core needs an analogous primitive.
func Acquire(name string) (release func(), err error) {
	return func() {}, nil
}
