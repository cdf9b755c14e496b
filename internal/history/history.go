// Package history keeps a bounded, ordered, persistent list of past
// transcripts. Newest first, capacity 100; the oldest entry is evicted on
// insert. Every mutation is persisted to a single JSON file; persistence
// I/O happens after the mutex is released.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/BharatBheesetti/scribe/internal/config"
	"github.com/BharatBheesetti/scribe/internal/engine"
)

// Capacity is the maximum number of retained entries.
const Capacity = 100

// Entry is one persisted transcript together with the settings snapshot
// that was applied when it was produced. Only the transcript fields are
// written to disk; the snapshot exists for the lifetime of the process.
type Entry struct {
	Transcript engine.Transcript
	Settings   config.Settings
}

// fileEntry is the on-disk shape of one entry. The timestamp is a string
// of unix seconds.
type fileEntry struct {
	Text            string  `json:"text"`
	Language        string  `json:"language"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       string  `json:"timestamp"`
	Model           string  `json:"model"`
}

// Store is the history log. Safe for concurrent use; the mutex guards only
// the in-memory slice.
type Store struct {
	path string

	mu      sync.Mutex
	entries []Entry
}

// NewStore creates a Store persisting to path; empty means the default
// location.
func NewStore(path string) *Store {
	if path == "" {
		path = config.DefaultHistoryPath()
	}
	return &Store{path: path}
}

// Load reads the history file. A missing file starts empty. A corrupt file
// is moved aside and the log starts empty; losing history is preferable to
// refusing to start.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("history: reading %s: %w", s.path, err)
	}

	var file []fileEntry
	if err := json.Unmarshal(data, &file); err != nil {
		aside := s.path + ".corrupt"
		if mvErr := os.Rename(s.path, aside); mvErr != nil {
			slog.Warn("could not move corrupt history aside", "path", s.path, "error", mvErr)
		} else {
			slog.Warn("history file corrupt, moved aside", "path", aside, "error", err)
		}
		return nil
	}

	entries := make([]Entry, 0, len(file))
	for _, fe := range file {
		ts, _ := strconv.ParseInt(fe.Timestamp, 10, 64)
		entries = append(entries, Entry{Transcript: engine.Transcript{
			Text:            fe.Text,
			Language:        fe.Language,
			DurationSeconds: fe.DurationSeconds,
			Timestamp:       ts,
			Model:           fe.Model,
		}})
	}
	if len(entries) > Capacity {
		entries = entries[:Capacity]
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// Append inserts an entry at the front, evicting past the capacity, and
// persists the log. A persistence failure is returned but the in-memory
// log keeps the entry; the transcript is the ground truth.
func (s *Store) Append(e Entry) error {
	s.mu.Lock()
	s.entries = append([]Entry{e}, s.entries...)
	if len(s.entries) > Capacity {
		s.entries = s.entries[:Capacity]
	}
	snapshot := s.fileSnapshot()
	s.mu.Unlock()

	return s.persist(snapshot)
}

// List returns a copy of the entries, newest first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the entry count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear removes all entries and persists the empty log.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.entries = nil
	snapshot := s.fileSnapshot()
	s.mu.Unlock()

	return s.persist(snapshot)
}

// fileSnapshot renders the on-disk shape. Called with s.mu held.
func (s *Store) fileSnapshot() []fileEntry {
	out := make([]fileEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = fileEntry{
			Text:            e.Transcript.Text,
			Language:        e.Transcript.Language,
			DurationSeconds: e.Transcript.DurationSeconds,
			Timestamp:       strconv.FormatInt(e.Transcript.Timestamp, 10),
			Model:           e.Transcript.Model,
		}
	}
	return out
}

// persist writes the snapshot atomically. Runs without the mutex.
func (s *Store) persist(snapshot []fileEntry) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("history: marshaling: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("history: creating %s: %w", dir, err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("history: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("history: replacing %s: %w", s.path, err)
	}
	return nil
}
