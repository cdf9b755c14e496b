package inject

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BharatBheesetti/scribe/internal/config"
)

// mockClipboard is an in-memory clipboard whose reads/writes can be made
// to fail a set number of times.
type mockClipboard struct {
	contents   string
	readFails  int
	writeFails int
	writes     []string
	// external simulates another application writing to the clipboard
	// during the settle window; applied after the paste chord.
	external string
}

func (m *mockClipboard) Read() (string, error) {
	if m.readFails > 0 {
		m.readFails--
		return "", errors.New("clipboard locked")
	}
	return m.contents, nil
}

func (m *mockClipboard) Write(text string) error {
	if m.writeFails > 0 {
		m.writeFails--
		return errors.New("clipboard locked")
	}
	m.contents = text
	m.writes = append(m.writes, text)
	return nil
}

type mockKeyboard struct {
	pastes int
	typed  []rune
	clip   *mockClipboard
	fail   error
}

func (m *mockKeyboard) PasteChord() error {
	if m.fail != nil {
		return m.fail
	}
	m.pastes++
	if m.clip != nil && m.clip.external != "" {
		m.clip.contents = m.clip.external
	}
	return nil
}

func (m *mockKeyboard) TypeChar(r rune) error {
	if m.fail != nil {
		return m.fail
	}
	m.typed = append(m.typed, r)
	return nil
}

func newTestInjector(clip *mockClipboard, kb *mockKeyboard) *Injector {
	inj := NewWithBackend(clip, kb)
	inj.sleep = func(time.Duration) {}
	return inj
}

func TestClipboardPasteRestores(t *testing.T) {
	clip := &mockClipboard{contents: "previous"}
	kb := &mockKeyboard{}
	inj := newTestInjector(clip, kb)

	used, err := inj.Inject("hello world", config.OutputClipboardPaste)
	if err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if used != config.OutputClipboardPaste {
		t.Errorf("used = %q, want clipboard_paste", used)
	}
	if kb.pastes != 1 {
		t.Errorf("pastes = %d, want 1", kb.pastes)
	}
	if clip.contents != "previous" {
		t.Errorf("clipboard = %q, want restored %q", clip.contents, "previous")
	}
	if len(clip.writes) != 2 || clip.writes[0] != "hello world" {
		t.Errorf("writes = %v, want transcript then restore", clip.writes)
	}
}

func TestClipboardPasteSkipsRestoreOnExternalWrite(t *testing.T) {
	clip := &mockClipboard{contents: "previous", external: "user copy"}
	kb := &mockKeyboard{clip: clip}
	inj := newTestInjector(clip, kb)

	if _, err := inj.Inject("hello", config.OutputClipboardPaste); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if clip.contents != "user copy" {
		t.Errorf("clipboard = %q, want external write preserved", clip.contents)
	}
}

func TestClipboardPasteBusy(t *testing.T) {
	clip := &mockClipboard{readFails: 2}
	kb := &mockKeyboard{}
	inj := newTestInjector(clip, kb)

	_, err := inj.Inject("hello", config.OutputClipboardPaste)
	if !errors.Is(err, ErrClipboardBusy) {
		t.Fatalf("Inject() error = %v, want ErrClipboardBusy", err)
	}
	if kb.pastes != 0 {
		t.Error("paste chord sent despite clipboard failure")
	}
	if len(clip.writes) != 0 {
		t.Error("clipboard mutated despite acquisition failure")
	}
}

func TestClipboardReadRetriesOnce(t *testing.T) {
	clip := &mockClipboard{contents: "prev", readFails: 1}
	kb := &mockKeyboard{}
	inj := newTestInjector(clip, kb)

	if _, err := inj.Inject("hello", config.OutputClipboardPaste); err != nil {
		t.Fatalf("one transient failure should be retried, got %v", err)
	}
}

func TestClipboardOnly(t *testing.T) {
	clip := &mockClipboard{contents: "previous"}
	kb := &mockKeyboard{}
	inj := newTestInjector(clip, kb)

	used, err := inj.Inject("hello", config.OutputClipboardOnly)
	if err != nil {
		t.Fatal(err)
	}
	if used != config.OutputClipboardOnly {
		t.Errorf("used = %q", used)
	}
	if clip.contents != "hello" {
		t.Errorf("clipboard = %q, want %q (no restore)", clip.contents, "hello")
	}
	if kb.pastes != 0 {
		t.Error("clipboard_only must not paste")
	}
}

func TestDirectTyping(t *testing.T) {
	clip := &mockClipboard{}
	kb := &mockKeyboard{}
	inj := newTestInjector(clip, kb)

	used, err := inj.Inject("héllo", config.OutputDirectTyping)
	if err != nil {
		t.Fatal(err)
	}
	if used != config.OutputDirectTyping {
		t.Errorf("used = %q", used)
	}
	if string(kb.typed) != "héllo" {
		t.Errorf("typed = %q, want %q", string(kb.typed), "héllo")
	}
	if len(clip.writes) != 0 {
		t.Error("direct typing must not touch the clipboard")
	}
}

func TestDirectTypingDowngradesForLongText(t *testing.T) {
	clip := &mockClipboard{}
	kb := &mockKeyboard{}
	inj := newTestInjector(clip, kb)

	long := strings.Repeat("a", 1001)
	used, err := inj.Inject(long, config.OutputDirectTyping)
	if err != nil {
		t.Fatal(err)
	}
	if used != config.OutputClipboardOnly {
		t.Errorf("used = %q, want downgrade to clipboard_only", used)
	}
	if len(kb.typed) != 0 {
		t.Error("long text must not be typed")
	}
	if clip.contents != long {
		t.Error("long text should land on the clipboard")
	}
}

func TestDirectTypingAtLimitIsNotDowngraded(t *testing.T) {
	inj := newTestInjector(&mockClipboard{}, &mockKeyboard{})
	used, err := inj.Inject(strings.Repeat("a", 1000), config.OutputDirectTyping)
	if err != nil {
		t.Fatal(err)
	}
	if used != config.OutputDirectTyping {
		t.Errorf("used = %q, want direct_typing at exactly the limit", used)
	}
}

func TestInjectionFailed(t *testing.T) {
	clip := &mockClipboard{contents: "prev"}
	kb := &mockKeyboard{fail: errors.New("no focused window")}
	inj := newTestInjector(clip, kb)

	_, err := inj.Inject("hello", config.OutputClipboardPaste)
	if !errors.Is(err, ErrInjectionFailed) {
		t.Errorf("error = %v, want ErrInjectionFailed", err)
	}

	_, err = inj.Inject("hello", config.OutputDirectTyping)
	if !errors.Is(err, ErrInjectionFailed) {
		t.Errorf("error = %v, want ErrInjectionFailed", err)
	}
}

func TestInjectEmptyIsNoop(t *testing.T) {
	clip := &mockClipboard{contents: "prev"}
	kb := &mockKeyboard{}
	inj := newTestInjector(clip, kb)

	if _, err := inj.Inject("", config.OutputClipboardPaste); err != nil {
		t.Fatal(err)
	}
	if len(clip.writes) != 0 || kb.pastes != 0 {
		t.Error("empty text must be a no-op")
	}
}
