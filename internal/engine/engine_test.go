package engine

import (
	"errors"
	"math"
	"sync"
	"testing"
)

// mockModel scripts Decode behavior for tests.
type mockModel struct {
	mu       sync.Mutex
	text     string
	detected string
	err      error
	closed   bool
	decodes  int

	// blockUntilAbort makes Decode spin until abort() reports true,
	// simulating a long decode that honors cancellation.
	blockUntilAbort bool
	started         chan struct{}
}

func (m *mockModel) Decode(pcm []float32, language string, abort func() bool) (string, string, error) {
	m.mu.Lock()
	m.decodes++
	if m.started != nil {
		close(m.started)
		m.started = nil
	}
	m.mu.Unlock()

	if m.blockUntilAbort {
		for !abort() {
		}
		return "", "", ErrCancelled
	}
	if m.err != nil {
		return "", "", m.err
	}
	return m.text, m.detected, nil
}

func (m *mockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// mockLoader returns queued models in order.
type mockLoader struct {
	mu    sync.Mutex
	queue []*mockModel
	err   error
}

func (l *mockLoader) Load(path string) (Model, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	if len(l.queue) == 0 {
		return &mockModel{}, nil
	}
	m := l.queue[0]
	l.queue = l.queue[1:]
	return m, nil
}

func TestTranscribeNotLoaded(t *testing.T) {
	e := New(&mockLoader{})
	_, err := e.Transcribe([]float32{0.1, 0.2}, "auto")
	if !errors.Is(err, ErrModelNotLoaded) {
		t.Errorf("Transcribe() error = %v, want ErrModelNotLoaded", err)
	}
}

func TestTranscribeInvalidAudio(t *testing.T) {
	e := New(&mockLoader{queue: []*mockModel{{text: "hi"}}})
	if err := e.Load("base.en", "/models/ggml-base.en.bin"); err != nil {
		t.Fatal(err)
	}

	if _, err := e.Transcribe(nil, "auto"); !errors.Is(err, ErrInvalidAudio) {
		t.Errorf("empty buffer: error = %v, want ErrInvalidAudio", err)
	}

	nan := []float32{0.1, float32(math.NaN()), 0.2}
	if _, err := e.Transcribe(nan, "auto"); !errors.Is(err, ErrInvalidAudio) {
		t.Errorf("NaN buffer: error = %v, want ErrInvalidAudio", err)
	}
}

func TestTranscribeFields(t *testing.T) {
	e := New(&mockLoader{queue: []*mockModel{{text: "hello world", detected: "en"}}})
	if err := e.Load("base.en", "/models/ggml-base.en.bin"); err != nil {
		t.Fatal(err)
	}

	pcm := make([]float32, 16000*2) // 2 seconds
	tr, err := e.Transcribe(pcm, "auto")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if tr.Text != "hello world" {
		t.Errorf("Text = %q", tr.Text)
	}
	if tr.Language != "en" {
		t.Errorf("Language = %q, want detected %q", tr.Language, "en")
	}
	if tr.DurationSeconds != 2 {
		t.Errorf("DurationSeconds = %v, want 2", tr.DurationSeconds)
	}
	if tr.Model != "base.en" {
		t.Errorf("Model = %q, want %q", tr.Model, "base.en")
	}
	if tr.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}
}

func TestTranscribeForcedLanguage(t *testing.T) {
	e := New(&mockLoader{queue: []*mockModel{{text: "bonjour", detected: "en"}}})
	if err := e.Load("small", "/models/ggml-small.bin"); err != nil {
		t.Fatal(err)
	}

	tr, err := e.Transcribe([]float32{0.1}, "fr")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Language != "fr" {
		t.Errorf("Language = %q, want forced %q", tr.Language, "fr")
	}
}

func TestTranscribeSilenceIsEmptyNotError(t *testing.T) {
	e := New(&mockLoader{queue: []*mockModel{{text: "", detected: "en"}}})
	if err := e.Load("base.en", "x"); err != nil {
		t.Fatal(err)
	}

	tr, err := e.Transcribe(make([]float32, 16000), "auto")
	if err != nil {
		t.Fatalf("silence should not error, got %v", err)
	}
	if tr.Text != "" {
		t.Errorf("Text = %q, want empty", tr.Text)
	}
}

func TestTranscribeDecodeFailed(t *testing.T) {
	e := New(&mockLoader{queue: []*mockModel{{err: errors.New("boom")}}})
	if err := e.Load("base.en", "x"); err != nil {
		t.Fatal(err)
	}

	_, err := e.Transcribe([]float32{0.1}, "auto")
	if !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("error = %v, want ErrDecodeFailed", err)
	}
}

func TestLoadSwapReleasesOldAfterNewReady(t *testing.T) {
	oldModel := &mockModel{text: "old"}
	newModel := &mockModel{text: "new"}
	loader := &mockLoader{queue: []*mockModel{oldModel, newModel}}

	e := New(loader)
	if err := e.Load("base.en", "a"); err != nil {
		t.Fatal(err)
	}
	if err := e.Load("small.en", "b"); err != nil {
		t.Fatal(err)
	}

	oldModel.mu.Lock()
	closed := oldModel.closed
	oldModel.mu.Unlock()
	if !closed {
		t.Error("old model not released after swap")
	}

	tr, err := e.Transcribe([]float32{0.1}, "auto")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "new" || tr.Model != "small.en" {
		t.Errorf("post-swap transcript = %+v, want new model output", tr)
	}
}

func TestLoadFailureKeepsCurrentModel(t *testing.T) {
	loader := &mockLoader{queue: []*mockModel{{text: "keep"}}}
	e := New(loader)
	if err := e.Load("base.en", "a"); err != nil {
		t.Fatal(err)
	}

	loader.mu.Lock()
	loader.err = errors.New("disk error")
	loader.mu.Unlock()

	if err := e.Load("small.en", "b"); err == nil {
		t.Fatal("Load() should fail")
	}

	tr, err := e.Transcribe([]float32{0.1}, "auto")
	if err != nil {
		t.Fatal(err)
	}
	if tr.Text != "keep" || tr.Model != "base.en" {
		t.Errorf("transcript = %+v, want the previous model to remain active", tr)
	}
}

func TestCancelAbortsInFlightDecode(t *testing.T) {
	blocking := &mockModel{blockUntilAbort: true, started: make(chan struct{})}
	e := New(&mockLoader{queue: []*mockModel{blocking}})
	if err := e.Load("base.en", "a"); err != nil {
		t.Fatal(err)
	}

	started := blocking.started
	result := make(chan error, 1)
	go func() {
		_, err := e.Transcribe([]float32{0.1}, "auto")
		result <- err
	}()

	<-started
	e.Cancel()

	if err := <-result; !errors.Is(err, ErrCancelled) {
		t.Errorf("Transcribe() after Cancel = %v, want ErrCancelled", err)
	}
}

func TestLoadCancelsInFlightDecode(t *testing.T) {
	blocking := &mockModel{blockUntilAbort: true, started: make(chan struct{})}
	replacement := &mockModel{text: "fresh"}
	e := New(&mockLoader{queue: []*mockModel{blocking, replacement}})
	if err := e.Load("base.en", "a"); err != nil {
		t.Fatal(err)
	}

	started := blocking.started
	result := make(chan error, 1)
	go func() {
		_, err := e.Transcribe([]float32{0.1}, "auto")
		result <- err
	}()

	<-started
	if err := e.Load("small.en", "b"); err != nil {
		t.Fatalf("Load() during decode error = %v", err)
	}

	if err := <-result; !errors.Is(err, ErrCancelled) {
		t.Errorf("in-flight Transcribe = %v, want ErrCancelled", err)
	}
	if got := e.LoadedModel(); got != "small.en" {
		t.Errorf("LoadedModel() = %q, want %q", got, "small.en")
	}
}
