//go:build !windows

package hotkey

import "fmt"

// NewSystemBackend on non-Windows platforms returns a backend whose
// registrations always fail. The injection and conditioning paths assume a
// Windows-like desktop; porting needs an analogous hotkey primitive.
func NewSystemBackend() Backend {
	return unsupportedBackend{}
}

type unsupportedBackend struct{}

func (unsupportedBackend) Register(b Binding) (Registration, error) {
	return nil, fmt.Errorf("hotkey: global shortcuts are not supported on this platform")
}
