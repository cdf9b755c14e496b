// Package hotkey registers OS-level global shortcuts and delivers press
// events to the session state machine. Binding strings are normalized to a
// canonical form: modifiers in Ctrl, Shift, Alt order followed by a single
// key token, e.g. "Ctrl+Shift+Space".
package hotkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidBinding is returned when a binding string cannot be parsed or
// violates the binding rules.
var ErrInvalidBinding = errors.New("hotkey: invalid binding")

// Binding is a normalized key combination. The zero value is invalid.
type Binding struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Key   string // canonical key token, e.g. "A", "7", "F5", "Space"
}

// modifier aliases collapse to canonical names. The Super/Windows key is
// recognized so it can be rejected with a specific message: the OS
// intercepts most such combinations.
var modAliases = map[string]string{
	"ctrl": "ctrl", "control": "ctrl",
	"shift": "shift",
	"alt":   "alt", "option": "alt",
	"super": "super", "cmd": "super", "command": "super",
	"win": "super", "windows": "super", "meta": "super",
}

// keyAliases maps accepted spellings to canonical key tokens.
var keyAliases = map[string]string{
	"space": "Space", "tab": "Tab",
	"enter": "Enter", "return": "Enter",
	"backspace": "Backspace", "delete": "Delete", "del": "Delete",
	"insert": "Insert", "ins": "Insert",
	"home": "Home", "end": "End",
	"pageup": "PageUp", "pgup": "PageUp",
	"pagedown": "PageDown", "pgdn": "PageDown",
	"up": "Up", "down": "Down", "left": "Left", "right": "Right",
	"minus": "Minus", "-": "Minus",
	"equal": "Equal", "=": "Equal",
	"comma": "Comma", ",": "Comma",
	"period": "Period", ".": "Period",
	"slash": "Slash", "/": "Slash",
	"backslash": "Backslash", "\\": "Backslash",
	"semicolon": "Semicolon", ";": "Semicolon",
	"quote": "Quote", "'": "Quote",
	"backtick": "Backtick", "grave": "Backtick", "`": "Backtick",
	"leftbracket": "LeftBracket", "[": "LeftBracket",
	"rightbracket": "RightBracket", "]": "RightBracket",
}

// Parse normalizes a binding string. Parsing is case-insensitive; modifiers
// may appear in any order but at most once each. A binding needs at least
// one modifier unless the key is a function key (F1–F24).
func Parse(s string) (Binding, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return Binding{}, fmt.Errorf("%w: %q", ErrInvalidBinding, s)
	}

	var b Binding
	for _, p := range parts[:len(parts)-1] {
		mod, ok := modAliases[strings.ToLower(p)]
		if !ok {
			return Binding{}, fmt.Errorf("%w: unknown modifier %q in %q", ErrInvalidBinding, p, s)
		}
		switch mod {
		case "ctrl":
			if b.Ctrl {
				return Binding{}, fmt.Errorf("%w: duplicate modifier %q in %q", ErrInvalidBinding, p, s)
			}
			b.Ctrl = true
		case "shift":
			if b.Shift {
				return Binding{}, fmt.Errorf("%w: duplicate modifier %q in %q", ErrInvalidBinding, p, s)
			}
			b.Shift = true
		case "alt":
			if b.Alt {
				return Binding{}, fmt.Errorf("%w: duplicate modifier %q in %q", ErrInvalidBinding, p, s)
			}
			b.Alt = true
		case "super":
			return Binding{}, fmt.Errorf("%w: the Super/Windows modifier is reserved by the OS", ErrInvalidBinding)
		}
	}

	key, err := parseKeyToken(parts[len(parts)-1])
	if err != nil {
		return Binding{}, err
	}
	b.Key = key

	if !b.Ctrl && !b.Shift && !b.Alt && !isFunctionKey(key) {
		return Binding{}, fmt.Errorf("%w: %q needs at least one modifier", ErrInvalidBinding, s)
	}
	return b, nil
}

// parseKeyToken normalizes the non-modifier token against the fixed
// alphabet: letters, digits, F1–F24, arrow/edit/whitespace tokens, and
// symbol tokens.
func parseKeyToken(tok string) (string, error) {
	low := strings.ToLower(tok)

	if len(low) == 1 {
		c := low[0]
		switch {
		case c >= 'a' && c <= 'z':
			return strings.ToUpper(low), nil
		case c >= '0' && c <= '9':
			return low, nil
		}
	}

	// "keyA".."keyZ" and "digit0".."digit9" spellings.
	if len(low) == 4 && strings.HasPrefix(low, "key") && low[3] >= 'a' && low[3] <= 'z' {
		return strings.ToUpper(low[3:]), nil
	}
	if len(low) == 6 && strings.HasPrefix(low, "digit") && low[5] >= '0' && low[5] <= '9' {
		return low[5:], nil
	}

	if strings.HasPrefix(low, "f") && len(low) <= 3 {
		var n int
		if _, err := fmt.Sscanf(low, "f%d", &n); err == nil && n >= 1 && n <= 24 {
			return fmt.Sprintf("F%d", n), nil
		}
	}

	if canon, ok := keyAliases[low]; ok {
		return canon, nil
	}
	return "", fmt.Errorf("%w: unknown key %q", ErrInvalidBinding, tok)
}

// isFunctionKey reports whether a canonical token is F1–F24.
func isFunctionKey(key string) bool {
	if len(key) < 2 || key[0] != 'F' {
		return false
	}
	var n int
	if _, err := fmt.Sscanf(key, "F%d", &n); err != nil {
		return false
	}
	return n >= 1 && n <= 24
}

// String renders the canonical form: Ctrl, Shift, Alt, then the key token.
func (b Binding) String() string {
	var parts []string
	if b.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if b.Shift {
		parts = append(parts, "Shift")
	}
	if b.Alt {
		parts = append(parts, "Alt")
	}
	parts = append(parts, b.Key)
	return strings.Join(parts, "+")
}

// Normalize parses and re-renders a binding string in canonical form.
func Normalize(s string) (string, error) {
	b, err := Parse(s)
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
