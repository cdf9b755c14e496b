package hotkey

import (
	"errors"
	"fmt"
	"sync"
)

// ErrConflict is returned when the OS rejects a registration, usually
// because another application owns the combination.
var ErrConflict = errors.New("hotkey: combination already registered by another application")

// ErrNotRegistered is returned when unregistering a binding the registry
// does not hold.
var ErrNotRegistered = errors.New("hotkey: binding not registered")

// Press is delivered on the registry's event channel for each activation of
// a registered binding.
type Press struct {
	Binding Binding
}

// Registration is a live OS-level registration of one binding.
type Registration interface {
	// Unregister releases the OS registration. The Presses channel closes
	// afterwards.
	Unregister() error
	// Presses emits one value per key-down of the bound combination.
	Presses() <-chan struct{}
}

// Backend creates OS-level registrations. The production backend wraps
// golang.design/x/hotkey; tests substitute a mock.
type Backend interface {
	Register(b Binding) (Registration, error)
}

// Registry tracks the active bindings and fans their press events into a
// single channel consumed by the session state machine. All methods are
// safe for concurrent use; press delivery never blocks (excess presses are
// dropped, matching the state machine's drop-not-queue ordering rule).
type Registry struct {
	backend Backend
	events  chan Press

	mu     sync.Mutex
	active map[string]Registration // canonical binding string -> live registration
	order  []string                // registration order, for Resume
	paused bool
	wg     sync.WaitGroup
}

// NewRegistry creates a Registry on the given backend.
func NewRegistry(backend Backend) *Registry {
	return &Registry{
		backend: backend,
		events:  make(chan Press, 16),
		active:  make(map[string]Registration),
	}
}

// Events returns the channel receiving presses for all active bindings.
func (r *Registry) Events() <-chan Press {
	return r.events
}

// Register normalizes and registers a binding. Fails with ErrInvalidBinding
// on a malformed string and ErrConflict when the OS rejects it. While the
// registry is paused the binding is recorded but not armed until Resume.
func (r *Registry) Register(s string) (string, error) {
	b, err := Parse(s)
	if err != nil {
		return "", err
	}
	canon := b.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.has(canon) {
		return "", fmt.Errorf("%w: %s already registered", ErrInvalidBinding, canon)
	}

	if !r.paused {
		reg, err := r.backend.Register(b)
		if err != nil {
			return "", err
		}
		r.active[canon] = reg
		r.pump(b, reg)
	}
	r.order = append(r.order, canon)
	return canon, nil
}

// Unregister releases a binding.
func (r *Registry) Unregister(s string) error {
	b, err := Parse(s)
	if err != nil {
		return err
	}
	canon := b.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.has(canon) {
		return fmt.Errorf("%w: %s", ErrNotRegistered, canon)
	}
	return r.dropLocked(canon)
}

// Rebind atomically replaces old with new: the new binding is registered
// first and the old one released only on success, so there is no window
// with no binding armed. On failure the old binding stays active.
func (r *Registry) Rebind(oldS, newS string) (string, error) {
	oldB, err := Parse(oldS)
	if err != nil {
		return "", err
	}
	newB, err := Parse(newS)
	if err != nil {
		return "", err
	}
	oldCanon, newCanon := oldB.String(), newB.String()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.has(oldCanon) {
		return "", fmt.Errorf("%w: %s", ErrNotRegistered, oldCanon)
	}
	if oldCanon == newCanon {
		return newCanon, nil
	}
	if r.has(newCanon) {
		return "", fmt.Errorf("%w: %s already registered", ErrInvalidBinding, newCanon)
	}

	if !r.paused {
		reg, err := r.backend.Register(newB)
		if err != nil {
			return "", err // old binding still armed
		}
		r.active[newCanon] = reg
		r.pump(newB, reg)
		if err := r.dropLocked(oldCanon); err != nil {
			return newCanon, err
		}
	} else {
		r.removeOrder(oldCanon)
	}
	r.order = append(r.order, newCanon)
	return newCanon, nil
}

// Pause releases all OS registrations so raw key events reach the settings
// UI's capture widget, but remembers the bindings for Resume.
func (r *Registry) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.paused {
		return
	}
	r.paused = true
	for canon, reg := range r.active {
		// Nothing to roll back on failure; the binding is re-armed by
		// Resume either way.
		_ = reg.Unregister()
		delete(r.active, canon)
	}
}

// Resume re-registers every remembered binding. The first failure is
// returned but the remaining bindings are still attempted.
func (r *Registry) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.paused {
		return nil
	}
	r.paused = false

	var firstErr error
	for _, canon := range r.order {
		b, err := Parse(canon)
		if err != nil {
			continue
		}
		reg, err := r.backend.Register(b)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		r.active[canon] = reg
		r.pump(b, reg)
	}
	return firstErr
}

// Bindings returns the remembered bindings in registration order.
func (r *Registry) Bindings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Close releases every registration and waits for the pump goroutines.
// The events channel is not closed; consumers stop reading instead.
func (r *Registry) Close() {
	r.mu.Lock()
	r.order = nil
	for canon, reg := range r.active {
		_ = reg.Unregister()
		delete(r.active, canon)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// pump forwards presses from one registration into the shared event
// channel. It exits when the registration's press channel closes. Called
// with r.mu held.
func (r *Registry) pump(b Binding, reg Registration) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for range reg.Presses() {
			select {
			case r.events <- Press{Binding: b}:
			default: // consumer behind; drop, never block
			}
		}
	}()
}

// dropLocked unregisters and forgets a binding. Called with r.mu held.
func (r *Registry) dropLocked(canon string) error {
	r.removeOrder(canon)
	reg, ok := r.active[canon]
	if !ok {
		return nil // paused: nothing armed
	}
	delete(r.active, canon)
	if err := reg.Unregister(); err != nil {
		return fmt.Errorf("hotkey: unregister %s: %w", canon, err)
	}
	return nil
}

// has reports whether canon is remembered (armed or paused). Called with
// r.mu held.
func (r *Registry) has(canon string) bool {
	for _, c := range r.order {
		if c == canon {
			return true
		}
	}
	return false
}

// removeOrder forgets canon from the registration order. Called with r.mu
// held.
func (r *Registry) removeOrder(canon string) {
	for i, c := range r.order {
		if c == canon {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}
