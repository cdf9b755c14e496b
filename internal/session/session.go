// Package session owns the process-wide state machine that coordinates the
// dictation pipeline: hotkey press, mic conditioning, capture, inference,
// post-processing, and injection. All state transitions happen on the
// machine's own goroutine; workers communicate back over channels with an
// opaque session id so stale results are discarded.
package session

import (
	"time"

	"github.com/BharatBheesetti/scribe/internal/config"
	"github.com/BharatBheesetti/scribe/internal/engine"
	"github.com/BharatBheesetti/scribe/internal/history"
	"github.com/BharatBheesetti/scribe/internal/mic"
)

// State is the machine's current position in the session cycle.
type State int

const (
	StateIdle State = iota
	StateArming
	StateRecording
	StateFinalizing
	StateInjecting
	StateCancelling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArming:
		return "arming"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateInjecting:
		return "injecting"
	case StateCancelling:
		return "cancelling"
	default:
		return "unknown"
	}
}

// OverlayVisible reports whether the overlay is shown in this state.
func (s State) OverlayVisible() bool {
	switch s {
	case StateArming, StateRecording, StateFinalizing:
		return true
	default:
		return false
	}
}

// Recorder is the audio capture dependency.
type Recorder interface {
	// Start clears the buffer and begins the stream.
	Start() error
	// Stop halts the stream and returns the captured samples by move.
	Stop() []float32
	// Abort halts the stream and discards the buffer.
	Abort()
	// CapReached signals once per session when the buffer fills.
	CapReached() <-chan struct{}
}

// Transcriber is the inference dependency.
type Transcriber interface {
	Transcribe(pcm []float32, language string) (engine.Transcript, error)
	Cancel()
}

// Conditioner is the mic conditioning dependency.
type Conditioner interface {
	Condition() (mic.Report, error)
}

// Injector is the text injection dependency.
type Injector interface {
	Inject(text string, mode config.OutputMode) (config.OutputMode, error)
}

// Signaler plays the start/stop cues.
type Signaler interface {
	Start()
	Stop()
}

// SettingsSource publishes immutable settings snapshots; the machine reads
// one at each Idle→Arming edge and uses it for the whole session.
type SettingsSource interface {
	Snapshot() config.Settings
}

// HistorySink records finished transcripts.
type HistorySink interface {
	Append(history.Entry) error
}

// PostProcessor cleans a raw transcript for a language.
type PostProcessor func(text, language string) string

// Notification is pushed to the UI projection on every observable change.
type Notification struct {
	State State
	// Err is set when the transition was caused by a failure the user
	// should see.
	Err error
	// Transcript and Method are set on the Injecting→Idle edge after a
	// completed session.
	Transcript *engine.Transcript
	Method     config.OutputMode
}

// Timeouts bounds the machine's internal timers. Zero fields take the
// defaults; tests shrink them.
type Timeouts struct {
	// Arm bounds mic conditioning; on miss the session aborts to Idle.
	Arm time.Duration
	// Cap bounds a recording; on expiry the session finalizes itself.
	Cap time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Arm == 0 {
		t.Arm = 250 * time.Millisecond
	}
	if t.Cap == 0 {
		t.Cap = 65 * time.Second
	}
	return t
}

// Deps wires the machine to its collaborators.
type Deps struct {
	Recorder    Recorder
	Transcriber Transcriber
	Conditioner Conditioner
	Injector    Injector
	Signaler    Signaler // may be nil: cues disabled
	Settings    SettingsSource
	History     HistorySink
	PostProcess PostProcessor
	Notify      func(Notification) // may be nil
	Timeouts    Timeouts
}

// event kinds flowing into the machine goroutine.
type eventKind int

const (
	evPress eventKind = iota
	evEscape
	evMicReady
	evArmTimeout
	evCapTimeout
	evInferDone
	evInjectDone
	evFatal
)

type event struct {
	kind eventKind
	sid  uint64

	micReport mic.Report
	micErr    error

	transcript engine.Transcript
	err        error
	method     config.OutputMode
}

// inferJob is one unit of work for the inference worker.
type inferJob struct {
	sid      uint64
	pcm      []float32
	language string
}
