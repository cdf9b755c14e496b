// Package inject places a finalized transcript at the foreground caret.
// Three modes: clipboard+paste (set clipboard, synthesize Ctrl+V, restore),
// clipboard-only, and direct per-character typing. Injection is best-effort
// by nature; the history log is the source of truth when it fails.
package inject

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/BharatBheesetti/scribe/internal/config"
)

// Errors surfaced to the session state machine.
var (
	// ErrClipboardBusy means the clipboard could not be acquired; nothing
	// destructive happened.
	ErrClipboardBusy = errors.New("inject: clipboard busy")
	// ErrInjectionFailed means synthetic input was rejected, usually no
	// focused window or a privilege boundary.
	ErrInjectionFailed = errors.New("inject: synthetic input failed")
)

const (
	// settleDelay is how long the paste chord gets to consume the
	// clipboard before it is restored.
	settleDelay = 150 * time.Millisecond
	// typeDelay is the inter-character delay in direct typing mode.
	typeDelay = 5 * time.Millisecond
	// directTypingLimit is the transcript length (code points) above which
	// direct typing is downgraded to clipboard-only for latency.
	directTypingLimit = 1000
)

// Clipboard abstracts system clipboard access.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// Keyboard abstracts synthetic keyboard input to the foreground window.
type Keyboard interface {
	// PasteChord sends Ctrl+V.
	PasteChord() error
	// TypeChar sends one character as keystrokes.
	TypeChar(r rune) error
}

// Injector performs text injection with a configured clipboard and
// keyboard backend.
type Injector struct {
	clip  Clipboard
	kb    Keyboard
	sleep func(time.Duration)
}

// New creates an Injector on the production robotgo backend.
func New() *Injector {
	be := robotgoBackend{}
	return NewWithBackend(be, be)
}

// NewWithBackend creates an Injector with explicit backends (tests).
func NewWithBackend(clip Clipboard, kb Keyboard) *Injector {
	return &Injector{clip: clip, kb: kb, sleep: time.Sleep}
}

// Inject places text at the foreground caret using the requested mode and
// returns the mode actually used: very long transcripts downgrade
// direct_typing to clipboard_only. Empty text is a no-op.
func (inj *Injector) Inject(text string, mode config.OutputMode) (config.OutputMode, error) {
	if text == "" {
		return mode, nil
	}

	if mode == config.OutputDirectTyping && utf8.RuneCountInString(text) > directTypingLimit {
		mode = config.OutputClipboardOnly
	}

	switch mode {
	case config.OutputClipboardPaste:
		return mode, inj.clipboardPaste(text)
	case config.OutputClipboardOnly:
		return mode, inj.clipboardOnly(text)
	case config.OutputDirectTyping:
		return mode, inj.directTyping(text)
	default:
		return mode, fmt.Errorf("inject: unknown output mode %q", mode)
	}
}

// clipboardPaste saves the clipboard, writes the transcript, sends Ctrl+V,
// and restores the saved contents after a short settle. Restoration is
// skipped when an external writer changed the clipboard during the settle
// window.
func (inj *Injector) clipboardPaste(text string) error {
	saved, err := inj.readClipboard()
	if err != nil {
		return err
	}
	if err := inj.writeClipboard(text); err != nil {
		return err
	}
	if err := inj.kb.PasteChord(); err != nil {
		return fmt.Errorf("%w: %v", ErrInjectionFailed, err)
	}

	inj.sleep(settleDelay)

	// Restore only if the clipboard still holds our transcript; an
	// external copy during the settle window wins.
	cur, err := inj.clip.Read()
	if err == nil && cur == text {
		if err := inj.writeClipboard(saved); err != nil {
			return err
		}
	}
	return nil
}

func (inj *Injector) clipboardOnly(text string) error {
	return inj.writeClipboard(text)
}

func (inj *Injector) directTyping(text string) error {
	for _, r := range text {
		if err := inj.kb.TypeChar(r); err != nil {
			return fmt.Errorf("%w: %v", ErrInjectionFailed, err)
		}
		inj.sleep(typeDelay)
	}
	return nil
}

// readClipboard reads with one bounded retry before reporting the
// clipboard busy.
func (inj *Injector) readClipboard() (string, error) {
	s, err := inj.clip.Read()
	if err == nil {
		return s, nil
	}
	inj.sleep(50 * time.Millisecond)
	s, err = inj.clip.Read()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrClipboardBusy, err)
	}
	return s, nil
}

// writeClipboard writes with one bounded retry.
func (inj *Injector) writeClipboard(text string) error {
	if err := inj.clip.Write(text); err != nil {
		inj.sleep(50 * time.Millisecond)
		if err := inj.clip.Write(text); err != nil {
			return fmt.Errorf("%w: %v", ErrClipboardBusy, err)
		}
	}
	return nil
}
