package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BharatBheesetti/scribe/internal/config"
	"github.com/BharatBheesetti/scribe/internal/engine"
	"github.com/BharatBheesetti/scribe/internal/history"
)

// Machine is the session state machine. Create with NewMachine, drive with
// Run, and feed it presses and escapes from the hotkey and UI layers.
type Machine struct {
	deps Deps

	events chan event
	jobs   chan inferJob

	// Owned by the run goroutine.
	state    State
	sid      uint64
	settings config.Settings
	armTimer *time.Timer
	capTimer *time.Timer
}

// NewMachine wires a Machine to its dependencies.
func NewMachine(deps Deps) *Machine {
	deps.Timeouts = deps.Timeouts.withDefaults()
	return &Machine{
		deps: deps,
		// Press/escape senders never block: the buffer absorbs a burst
		// and anything beyond it is dropped by design.
		events: make(chan event, 16),
		// At most one inference in flight.
		jobs: make(chan inferJob, 1),
	}
}

// Press delivers a hotkey press. Non-blocking; presses that arrive while
// the machine is busy are dropped, not queued.
func (m *Machine) Press() {
	select {
	case m.events <- event{kind: evPress}:
	default:
	}
}

// Escape delivers a cancellation request. Non-blocking.
func (m *Machine) Escape() {
	select {
	case m.events <- event{kind: evEscape}:
	default:
	}
}

// Run drives the machine until ctx is done. It owns all state transitions
// and starts the inference worker.
func (m *Machine) Run(ctx context.Context) error {
	go m.inferLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return ctx.Err()
		case ev := <-m.events:
			m.handle(ev)
		case <-m.deps.Recorder.CapReached():
			m.handle(event{kind: evCapTimeout, sid: m.sid})
		}
	}
}

// handle applies one event. Runs on the machine goroutine only.
func (m *Machine) handle(ev event) {
	// Worker events are only honored for the session that produced them.
	switch ev.kind {
	case evMicReady, evArmTimeout, evCapTimeout, evInferDone, evInjectDone:
		if ev.sid != m.sid {
			slog.Debug("dropping stale worker event", "sid", ev.sid, "current", m.sid)
			return
		}
	}

	switch ev.kind {
	case evPress:
		m.onPress()
	case evEscape:
		m.onEscape()
	case evMicReady:
		m.onMicReady(ev)
	case evArmTimeout:
		m.onArmTimeout()
	case evCapTimeout:
		m.onCapTimeout()
	case evInferDone:
		m.onInferDone(ev)
	case evInjectDone:
		m.onInjectDone(ev)
	case evFatal:
		m.fail(ev.err)
	}
}

// onPress starts a session from Idle or finalizes a live recording. In any
// other state the press is dropped, not queued.
func (m *Machine) onPress() {
	switch m.state {
	case StateIdle:
		m.startArming()
	case StateRecording:
		m.finalize()
	default:
		slog.Debug("hotkey press dropped", "state", m.state.String())
	}
}

// onEscape cancels the in-flight recording or inference.
func (m *Machine) onEscape() {
	switch m.state {
	case StateRecording:
		m.stopCapTimer()
		m.deps.Recorder.Abort()
		m.transition(StateCancelling, Notification{})
		m.toIdle(Notification{})
	case StateFinalizing:
		// Drop the job if the worker has not picked it up yet, and abort
		// the decode if it has.
		select {
		case <-m.jobs:
		default:
		}
		m.deps.Transcriber.Cancel()
		m.transition(StateCancelling, Notification{})
		m.toIdle(Notification{})
	default:
		// Nothing cancellable; Injecting is past the point of consent.
	}
}

// startArming begins a new session: bump the id, snapshot settings, and
// run the mic conditioner off-thread under the arming bound.
func (m *Machine) startArming() {
	m.sid++
	m.settings = m.deps.Settings.Snapshot()
	m.transition(StateArming, Notification{})

	sid := m.sid
	go func() {
		report, err := m.deps.Conditioner.Condition()
		m.post(event{kind: evMicReady, sid: sid, micReport: report, micErr: err})
	}()
	m.armTimer = time.AfterFunc(m.deps.Timeouts.Arm, func() {
		m.post(event{kind: evArmTimeout, sid: sid})
	})
}

// onMicReady completes arming: cue, start capture, enter Recording.
func (m *Machine) onMicReady(ev event) {
	if m.state != StateArming {
		return
	}
	m.stopArmTimer()

	if ev.micErr != nil {
		// Conditioning failure is a warning, not a stop: the user may
		// have a perfectly fine mic the endpoint API cannot see.
		slog.Warn("mic conditioning failed", "error", ev.micErr)
	} else if ev.micReport.Unmuted || ev.micReport.Raised {
		slog.Info("mic conditioned",
			"was_muted", ev.micReport.WasMuted,
			"old_volume", ev.micReport.OldVolume,
			"unmuted", ev.micReport.Unmuted,
			"raised", ev.micReport.Raised)
	}

	if m.settings.SoundEffects && m.deps.Signaler != nil {
		m.deps.Signaler.Start()
	}

	if err := m.deps.Recorder.Start(); err != nil {
		m.toIdle(Notification{Err: fmt.Errorf("session: starting capture: %w", err)})
		return
	}

	m.transition(StateRecording, Notification{})
	sid := m.sid
	m.capTimer = time.AfterFunc(m.deps.Timeouts.Cap, func() {
		m.post(event{kind: evCapTimeout, sid: sid})
	})
}

// onArmTimeout aborts a session whose conditioner missed the bound.
func (m *Machine) onArmTimeout() {
	if m.state != StateArming {
		return
	}
	m.toIdle(Notification{Err: fmt.Errorf("session: microphone not ready within %v", m.deps.Timeouts.Arm)})
}

// onCapTimeout finalizes a recording that hit the hard cap.
func (m *Machine) onCapTimeout() {
	if m.state != StateRecording {
		return
	}
	slog.Info("recording cap reached")
	m.finalize()
}

// finalize stops capture and hands the samples to the inference worker.
func (m *Machine) finalize() {
	m.stopCapTimer()

	samples := m.deps.Recorder.Stop()
	if m.settings.SoundEffects && m.deps.Signaler != nil {
		m.deps.Signaler.Stop()
	}

	if len(samples) == 0 {
		m.toIdle(Notification{})
		return
	}

	m.transition(StateFinalizing, Notification{})
	// The jobs channel has capacity 1 and at most one inference is in
	// flight, so this send never blocks.
	m.jobs <- inferJob{sid: m.sid, pcm: samples, language: m.settings.Language}
}

// onInferDone routes the worker result for the current session.
func (m *Machine) onInferDone(ev event) {
	if m.state != StateFinalizing {
		return
	}
	if ev.err != nil {
		if errors.Is(ev.err, engine.ErrCancelled) {
			m.toIdle(Notification{})
			return
		}
		m.toIdle(Notification{Err: fmt.Errorf("session: transcription: %w", ev.err)})
		return
	}

	m.transition(StateInjecting, Notification{})
	m.startInjection(ev.transcript)
}

// startInjection runs post-processing, history, and injection off-thread
// so a slow paste cannot stall hotkey handling.
func (m *Machine) startInjection(tr engine.Transcript) {
	sid := m.sid
	set := m.settings
	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.post(event{kind: evFatal, err: fmt.Errorf("session: injection worker panic: %v", r)})
			}
		}()

		if set.FillerRemoval && m.deps.PostProcess != nil {
			tr.Text = m.deps.PostProcess(tr.Text, tr.Language)
		}

		if m.deps.History != nil {
			if err := m.deps.History.Append(history.Entry{Transcript: tr, Settings: set}); err != nil {
				// Degrade gracefully: the transcript still gets injected.
				slog.Warn("history not persisted", "error", err)
			}
		}

		method, err := m.deps.Injector.Inject(tr.Text, set.OutputMode)
		m.post(event{kind: evInjectDone, sid: sid, transcript: tr, method: method, err: err})
	}()
}

// onInjectDone closes the session.
func (m *Machine) onInjectDone(ev event) {
	if m.state != StateInjecting {
		return
	}
	n := Notification{Transcript: &ev.transcript, Method: ev.method}
	if ev.err != nil {
		// The transcript is in history; injection is best-effort.
		n.Err = fmt.Errorf("session: injection: %w", ev.err)
	}
	m.toIdle(n)
}

// fail reports an unrecoverable worker failure and parks the machine in
// Idle; the caller decides whether to exit.
func (m *Machine) fail(err error) {
	slog.Error("fatal worker failure", "error", err)
	m.toIdle(Notification{Err: err})
}

// inferLoop is the single long-lived inference worker. Panics are caught
// at the boundary and surfaced as fatal errors.
func (m *Machine) inferLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-m.jobs:
			m.runInference(job)
		}
	}
}

func (m *Machine) runInference(job inferJob) {
	defer func() {
		if r := recover(); r != nil {
			m.post(event{kind: evFatal, err: fmt.Errorf("session: inference worker panic: %v", r)})
		}
	}()
	tr, err := m.deps.Transcriber.Transcribe(job.pcm, job.language)
	m.post(event{kind: evInferDone, sid: job.sid, transcript: tr, err: err})
}

// post delivers an internal event without ever blocking a worker.
func (m *Machine) post(ev event) {
	select {
	case m.events <- ev:
	default:
		slog.Warn("event queue full, dropping event")
	}
}

// transition moves to a state and notifies the UI projection.
func (m *Machine) transition(s State, n Notification) {
	m.state = s
	n.State = s
	slog.Debug("state", "state", s.String(), "sid", m.sid)
	if m.deps.Notify != nil {
		m.deps.Notify(n)
	}
}

// toIdle reenters Idle, destroying the session.
func (m *Machine) toIdle(n Notification) {
	m.stopArmTimer()
	m.stopCapTimer()
	m.transition(StateIdle, n)
}

func (m *Machine) stopArmTimer() {
	if m.armTimer != nil {
		m.armTimer.Stop()
		m.armTimer = nil
	}
}

func (m *Machine) stopCapTimer() {
	if m.capTimer != nil {
		m.capTimer.Stop()
		m.capTimer = nil
	}
}

// shutdown aborts anything live on context cancellation.
func (m *Machine) shutdown() {
	switch m.state {
	case StateRecording:
		m.deps.Recorder.Abort()
	case StateFinalizing:
		m.deps.Transcriber.Cancel()
	}
	m.stopArmTimer()
	m.stopCapTimer()
}
