// Package engine wraps a local Whisper-family acoustic model: loading and
// hot-swapping, decoding a PCM buffer to text, and cancellation at the
// decoder's granule boundaries.
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Errors returned by Transcribe and Load.
var (
	ErrModelNotLoaded = errors.New("engine: no model loaded")
	ErrInvalidAudio   = errors.New("engine: invalid audio")
	ErrDecodeFailed   = errors.New("engine: decode failed")
	ErrCancelled      = errors.New("engine: cancelled")
)

// sampleRate is the fixed decoder input rate.
const sampleRate = 16000

// Transcript is the immutable result of one inference. It is passed by
// value through post-processing, history, and injection.
type Transcript struct {
	Text            string
	Language        string  // detected or forced ISO 639-1 code
	DurationSeconds float64 // audio duration, len(pcm)/16000
	Timestamp       int64   // wall clock, epoch seconds
	Model           string  // logical model name active at inference time
}

// Model is one loaded acoustic model. Decode calls abort at granule
// boundaries and stops early when it returns true.
type Model interface {
	Decode(pcm []float32, language string, abort func() bool) (text, detectedLang string, err error)
	Close() error
}

// Loader opens a model file. The production loader wraps the whisper.cpp
// bindings; tests substitute a mock.
type Loader interface {
	Load(path string) (Model, error)
}

// Engine serializes model swaps against in-flight decodes. Readers hold a
// read lock for the duration of a Transcribe; Load waits for outstanding
// decodes to drain (after requesting cancellation) before releasing the old
// model.
type Engine struct {
	loader Loader

	mu    sync.RWMutex
	model Model
	name  string

	cancelled atomic.Bool
}

// New creates an Engine on the given loader.
func New(loader Loader) *Engine {
	return &Engine{loader: loader}
}

// NewWhisper creates an Engine backed by the whisper.cpp bindings.
func NewWhisper() *Engine {
	return New(whisperLoader{})
}

// Load opens the model at path and swaps it in atomically: the new model is
// fully loaded before the old one is released, and a concurrent Transcribe
// sees either the old or the new model, never a half-loaded state. Any
// in-flight decode is cancelled so the swap does not stall behind it.
func (e *Engine) Load(name, path string) error {
	next, err := e.loader.Load(path)
	if err != nil {
		return fmt.Errorf("engine: load %s: %w", name, err)
	}

	e.Cancel()

	e.mu.Lock()
	old := e.model
	e.model = next
	e.name = name
	e.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			return fmt.Errorf("engine: releasing previous model: %w", err)
		}
	}
	return nil
}

// LoadedModel returns the logical name of the loaded model, or "" when none
// is loaded.
func (e *Engine) LoadedModel() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.name
}

// Cancel requests that the current decode abort at the next granule
// boundary; the in-flight Transcribe then returns ErrCancelled. A no-op
// when nothing is decoding.
func (e *Engine) Cancel() {
	e.cancelled.Store(true)
}

// Transcribe decodes 16 kHz mono PCM to text. language is "auto" for the
// engine's language ID or an ISO 639-1 code to force. Synchronous; the
// session state machine invokes it on the inference worker thread.
// Silence-only input yields an empty transcript, not an error.
func (e *Engine) Transcribe(pcm []float32, language string) (Transcript, error) {
	if len(pcm) == 0 {
		return Transcript{}, fmt.Errorf("%w: empty buffer", ErrInvalidAudio)
	}
	for _, s := range pcm {
		if math.IsNaN(float64(s)) {
			return Transcript{}, fmt.Errorf("%w: NaN sample", ErrInvalidAudio)
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.model == nil {
		return Transcript{}, ErrModelNotLoaded
	}

	e.cancelled.Store(false)
	text, detected, err := e.model.Decode(pcm, language, e.cancelled.Load)
	if err != nil {
		if errors.Is(err, ErrCancelled) || e.cancelled.Load() {
			return Transcript{}, ErrCancelled
		}
		return Transcript{}, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if e.cancelled.Load() {
		return Transcript{}, ErrCancelled
	}

	lang := language
	if lang == "" || lang == "auto" {
		lang = detected
	}

	return Transcript{
		Text:            text,
		Language:        lang,
		DurationSeconds: float64(len(pcm)) / sampleRate,
		Timestamp:       time.Now().Unix(),
		Model:           e.name,
	}, nil
}

// Close releases the loaded model.
func (e *Engine) Close() error {
	e.Cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	e.name = ""
	return err
}
