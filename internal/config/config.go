// Package config holds the process-wide settings document and publishes
// immutable snapshots of it. The on-disk format is a single JSON file in
// the platform app-data directory; unknown keys survive a load/save
// round-trip so newer versions of the app can share the file with older
// ones.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// OutputMode selects how a finalized transcript reaches the foreground
// application.
type OutputMode string

const (
	// OutputClipboardPaste copies the transcript to the clipboard, sends
	// Ctrl+V, then restores the previous clipboard contents.
	OutputClipboardPaste OutputMode = "clipboard_paste"
	// OutputClipboardOnly copies the transcript to the clipboard and stops.
	OutputClipboardOnly OutputMode = "clipboard_only"
	// OutputDirectTyping synthesizes the transcript keystroke by keystroke.
	OutputDirectTyping OutputMode = "direct_typing"
)

// Settings is the recognized portion of the settings document. It is always
// passed by value; consumers hold point-in-time snapshots, never shared
// mutable state.
type Settings struct {
	Hotkey        string     `json:"hotkey"`
	Model         string     `json:"model"`
	Language      string     `json:"language"`
	OutputMode    OutputMode `json:"output_mode"`
	FillerRemoval bool       `json:"filler_removal"`
	SoundEffects  bool       `json:"sound_effects"`
	AutoStart     bool       `json:"auto_start"`
	LogLevel      string     `json:"log_level"`
}

// Default returns the settings used when no file exists or a key is missing.
func Default() Settings {
	return Settings{
		Hotkey:        "Ctrl+Shift+Space",
		Model:         "base.en",
		Language:      "auto",
		OutputMode:    OutputClipboardPaste,
		FillerRemoval: true,
		SoundEffects:  true,
		AutoStart:     false,
		LogLevel:      "info",
	}
}

// Validate checks the settings for invalid values.
func (s Settings) Validate() error {
	switch s.OutputMode {
	case OutputClipboardPaste, OutputClipboardOnly, OutputDirectTyping:
	default:
		return fmt.Errorf("output_mode must be %q, %q, or %q, got %q",
			OutputClipboardPaste, OutputClipboardOnly, OutputDirectTyping, s.OutputMode)
	}
	if s.Hotkey == "" {
		return fmt.Errorf("hotkey must not be empty")
	}
	if s.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if s.Language == "" {
		return fmt.Errorf("language must be \"auto\" or an ISO 639-1 code")
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", s.LogLevel)
	}
	return nil
}

// DefaultConfigDir returns the app-data directory for this application.
func DefaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "scribe")
}

// DefaultSettingsPath returns the settings file path.
func DefaultSettingsPath() string {
	return filepath.Join(DefaultConfigDir(), "settings.json")
}

// DefaultHistoryPath returns the history file path.
func DefaultHistoryPath() string {
	return filepath.Join(DefaultConfigDir(), "history.json")
}

// DefaultModelsDir returns the model cache directory.
func DefaultModelsDir() string {
	return filepath.Join(DefaultConfigDir(), "models")
}

// ParseLogLevel converts a log level string to a slog.Level.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default: // "info"
		return slog.LevelInfo
	}
}

// Store owns the settings file and publishes immutable snapshots. Readers
// call Snapshot at state-transition edges; writers call Save, which persists
// the document and swaps the published snapshot atomically.
type Store struct {
	path string
	cur  atomic.Pointer[Settings]

	// extra holds unknown top-level keys from the loaded document so they
	// round-trip unchanged. Written only by Load and read by Save, which run
	// on the main thread.
	extra map[string]json.RawMessage
}

// NewStore creates a Store for the given settings path. An empty path means
// the default location. The store starts with defaults; call Load to read
// the file.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultSettingsPath()
	}
	st := &Store{path: path, extra: map[string]json.RawMessage{}}
	def := Default()
	st.cur.Store(&def)
	return st
}

// Path returns the settings file path.
func (st *Store) Path() string { return st.path }

// Snapshot returns the current published settings by value.
func (st *Store) Snapshot() Settings {
	return *st.cur.Load()
}

// Load reads the settings file. A missing file leaves the defaults in place
// and is not an error. Missing keys take their defaults; unknown keys are
// retained for the next Save.
func (st *Store) Load() error {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: reading %s: %w", st.path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("config: parsing %s: %w", st.path, err)
	}

	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("config: parsing %s: %w", st.path, err)
	}

	known := map[string]bool{
		"hotkey": true, "model": true, "language": true, "output_mode": true,
		"filler_removal": true, "sound_effects": true, "auto_start": true,
		"log_level": true,
	}
	extra := map[string]json.RawMessage{}
	for k, v := range raw {
		if !known[k] {
			extra[k] = v
		}
	}
	st.extra = extra
	st.cur.Store(&s)
	return nil
}

// Save validates, persists, and publishes the given settings. Unknown keys
// from the last Load are merged back into the document. The file is written
// to a temp path and renamed so a crash never leaves a torn document.
func (st *Store) Save(s Settings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	doc := map[string]json.RawMessage{}
	for k, v := range st.extra {
		doc[k] = v
	}
	own, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: marshaling settings: %w", err)
	}
	var ownMap map[string]json.RawMessage
	if err := json.Unmarshal(own, &ownMap); err != nil {
		return fmt.Errorf("config: marshaling settings: %w", err)
	}
	for k, v := range ownMap {
		doc[k] = v
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling settings: %w", err)
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: creating %s: %w", dir, err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("config: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("config: replacing %s: %w", st.path, err)
	}

	st.cur.Store(&s)
	return nil
}
