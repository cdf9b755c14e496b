//go:build windows

package hotkey

import (
	"fmt"

	xhotkey "golang.design/x/hotkey"
)

// NewSystemBackend returns the production backend wrapping
// golang.design/x/hotkey, which registers combinations through the Win32
// RegisterHotKey API.
func NewSystemBackend() Backend {
	return systemBackend{}
}

type systemBackend struct{}

func (systemBackend) Register(b Binding) (Registration, error) {
	mods, key, err := toSystemKeys(b)
	if err != nil {
		return nil, err
	}
	hk := xhotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		// Clean up OS-level state created by New so the abandoned object
		// does not leak its message loop.
		_ = hk.Unregister()
		return nil, fmt.Errorf("%w: %s", ErrConflict, b)
	}

	// Relay through a buffered channel owned by this registration. The
	// relay goroutine exits when Unregister closes the library's keydown
	// channel; it then closes the relay so the registry's pump drains.
	relay := make(chan struct{}, 4)
	src := hk.Keydown()
	go func() {
		for range src {
			select {
			case relay <- struct{}{}:
			default: // rapid repeats; drop
			}
		}
		close(relay)
	}()

	return &systemRegistration{hk: hk, relay: relay}, nil
}

type systemRegistration struct {
	hk    *xhotkey.Hotkey
	relay chan struct{}
}

func (r *systemRegistration) Unregister() error {
	return r.hk.Unregister()
}

func (r *systemRegistration) Presses() <-chan struct{} {
	return r.relay
}

// toSystemKeys maps a normalized Binding onto golang.design/x/hotkey
// identifiers. The normalizer's alphabet is wider than what the OS layer
// exposes; unmapped tokens fail here.
func toSystemKeys(b Binding) ([]xhotkey.Modifier, xhotkey.Key, error) {
	var mods []xhotkey.Modifier
	if b.Ctrl {
		mods = append(mods, xhotkey.ModCtrl)
	}
	if b.Shift {
		mods = append(mods, xhotkey.ModShift)
	}
	if b.Alt {
		mods = append(mods, xhotkey.ModAlt)
	}

	key, ok := systemKeys[b.Key]
	if !ok {
		return nil, 0, fmt.Errorf("%w: key %q is not registrable as a global hotkey", ErrInvalidBinding, b.Key)
	}
	return mods, key, nil
}

var systemKeys = map[string]xhotkey.Key{
	"Space": xhotkey.KeySpace,
	"Tab":   xhotkey.KeyTab,
	"Enter": xhotkey.KeyReturn,
	"Up":    xhotkey.KeyUp, "Down": xhotkey.KeyDown,
	"Left": xhotkey.KeyLeft, "Right": xhotkey.KeyRight,
	"Delete": xhotkey.KeyDelete,
	"A":      xhotkey.KeyA, "B": xhotkey.KeyB, "C": xhotkey.KeyC, "D": xhotkey.KeyD,
	"E": xhotkey.KeyE, "F": xhotkey.KeyF, "G": xhotkey.KeyG, "H": xhotkey.KeyH,
	"I": xhotkey.KeyI, "J": xhotkey.KeyJ, "K": xhotkey.KeyK, "L": xhotkey.KeyL,
	"M": xhotkey.KeyM, "N": xhotkey.KeyN, "O": xhotkey.KeyO, "P": xhotkey.KeyP,
	"Q": xhotkey.KeyQ, "R": xhotkey.KeyR, "S": xhotkey.KeyS, "T": xhotkey.KeyT,
	"U": xhotkey.KeyU, "V": xhotkey.KeyV, "W": xhotkey.KeyW, "X": xhotkey.KeyX,
	"Y": xhotkey.KeyY, "Z": xhotkey.KeyZ,
	"0": xhotkey.Key0, "1": xhotkey.Key1, "2": xhotkey.Key2, "3": xhotkey.Key3,
	"4": xhotkey.Key4, "5": xhotkey.Key5, "6": xhotkey.Key6, "7": xhotkey.Key7,
	"8": xhotkey.Key8, "9": xhotkey.Key9,
	"F1": xhotkey.KeyF1, "F2": xhotkey.KeyF2, "F3": xhotkey.KeyF3, "F4": xhotkey.KeyF4,
	"F5": xhotkey.KeyF5, "F6": xhotkey.KeyF6, "F7": xhotkey.KeyF7, "F8": xhotkey.KeyF8,
	"F9": xhotkey.KeyF9, "F10": xhotkey.KeyF10, "F11": xhotkey.KeyF11, "F12": xhotkey.KeyF12,
	"F13": xhotkey.KeyF13, "F14": xhotkey.KeyF14, "F15": xhotkey.KeyF15, "F16": xhotkey.KeyF16,
	"F17": xhotkey.KeyF17, "F18": xhotkey.KeyF18, "F19": xhotkey.KeyF19, "F20": xhotkey.KeyF20,
}
