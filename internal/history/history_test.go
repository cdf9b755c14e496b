package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/BharatBheesetti/scribe/internal/config"
	"github.com/BharatBheesetti/scribe/internal/engine"
)

func entry(text string, ts int64) Entry {
	return Entry{
		Transcript: engine.Transcript{
			Text:            text,
			Language:        "en",
			DurationSeconds: 1.2,
			Timestamp:       ts,
			Model:           "base.en",
		},
		Settings: config.Default(),
	}
}

func TestAppendNewestFirst(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))

	for i := 0; i < 3; i++ {
		if err := s.Append(entry(fmt.Sprintf("t%d", i), int64(i))); err != nil {
			t.Fatal(err)
		}
	}

	got := s.List()
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Transcript.Text != "t2" || got[2].Transcript.Text != "t0" {
		t.Errorf("order = [%s %s %s], want newest first",
			got[0].Transcript.Text, got[1].Transcript.Text, got[2].Transcript.Text)
	}
}

func TestCapacityEviction(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))

	for i := 0; i < Capacity+10; i++ {
		if err := s.Append(entry(fmt.Sprintf("t%d", i), int64(i))); err != nil {
			t.Fatal(err)
		}
	}

	if s.Len() != Capacity {
		t.Errorf("Len() = %d, want %d", s.Len(), Capacity)
	}
	got := s.List()
	if got[0].Transcript.Text != fmt.Sprintf("t%d", Capacity+9) {
		t.Errorf("newest = %q, want the last appended", got[0].Transcript.Text)
	}
	// The oldest ten were evicted.
	last := got[len(got)-1]
	if last.Transcript.Text != "t10" {
		t.Errorf("oldest retained = %q, want %q", last.Transcript.Text, "t10")
	}
}

func TestPersistAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := NewStore(path)
	if err := s.Append(entry("hello world", 1700000000)); err != nil {
		t.Fatal(err)
	}

	// Timestamps are persisted as strings of unix seconds.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("history file is not a JSON array: %v", err)
	}
	if string(raw[0]["timestamp"]) != `"1700000000"` {
		t.Errorf("timestamp = %s, want string %q", raw[0]["timestamp"], "1700000000")
	}

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got := s2.List()
	if len(got) != 1 {
		t.Fatalf("len after reload = %d, want 1", len(got))
	}
	tr := got[0].Transcript
	if tr.Text != "hello world" || tr.Timestamp != 1700000000 || tr.Model != "base.en" {
		t.Errorf("reloaded transcript = %+v", tr)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load() with missing file should not error, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestLoadCorruptMovesAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatalf("Load() with corrupt file should start empty, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if _, err := os.Stat(path + ".corrupt"); err != nil {
		t.Errorf("corrupt file not moved aside: %v", err)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := NewStore(path)
	if err := s.Append(entry("a", 1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear(); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}

	s2 := NewStore(path)
	if err := s2.Load(); err != nil {
		t.Fatal(err)
	}
	if s2.Len() != 0 {
		t.Error("Clear() was not persisted")
	}
}

func TestListIsSnapshot(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "history.json"))
	if err := s.Append(entry("a", 1)); err != nil {
		t.Fatal(err)
	}
	got := s.List()
	got[0].Transcript.Text = "mutated"
	if s.List()[0].Transcript.Text != "a" {
		t.Error("List() must return a copy")
	}
}
