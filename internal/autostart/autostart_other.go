//go:build !windows

// Package autostart registers the app to launch at OS login.
package autostart

// Set is a no-op on platforms without a Run-key analogue; the setting is
// persisted but has no effect.
func Set(appName string, enabled bool) error {
	return nil
}

// Enabled always reports false on non-Windows platforms.
func Enabled(appName string) (bool, error) {
	return false, nil
}
