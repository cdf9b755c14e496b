//go:build windows

// Package autostart registers the app to launch at OS login. On Windows
// this is a value under the current user's Run key.
package autostart

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/windows/registry"
)

const runKey = `Software\Microsoft\Windows\CurrentVersion\Run`

// Set enables or disables launch-at-login for this executable.
func Set(appName string, enabled bool) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, runKey, registry.SET_VALUE|registry.QUERY_VALUE)
	if err != nil {
		return fmt.Errorf("autostart: opening run key: %w", err)
	}
	defer k.Close()

	if !enabled {
		if err := k.DeleteValue(appName); err != nil && !errors.Is(err, registry.ErrNotExist) {
			return fmt.Errorf("autostart: removing run entry: %w", err)
		}
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("autostart: resolving executable: %w", err)
	}
	if err := k.SetStringValue(appName, fmt.Sprintf("%q", exe)); err != nil {
		return fmt.Errorf("autostart: writing run entry: %w", err)
	}
	return nil
}

// Enabled reports whether a run entry exists for the app.
func Enabled(appName string) (bool, error) {
	k, err := registry.OpenKey(registry.CURRENT_USER, runKey, registry.QUERY_VALUE)
	if err != nil {
		return false, fmt.Errorf("autostart: opening run key: %w", err)
	}
	defer k.Close()

	_, _, err = k.GetStringValue(appName)
	if errors.Is(err, registry.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("autostart: reading run entry: %w", err)
	}
	return true, nil
}
