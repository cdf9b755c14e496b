// Package mic conditions the default input device at record start: a muted
// or near-silent endpoint gets one programmatic unmute and volume raise so
// the user does not dictate into a dead microphone. The change is logged
// but never reverted.
package mic

import (
	"errors"
	"fmt"
)

// ErrMicUnavailable is returned when the endpoint cannot be queried or
// changed. The session state machine treats it as a non-fatal warning.
var ErrMicUnavailable = errors.New("mic: endpoint unavailable")

const (
	// minVolume is the scalar below which the input is considered
	// effectively silent.
	minVolume = 0.1
	// targetVolume is the scalar applied when raising.
	targetVolume = 0.8
)

// Endpoint abstracts the OS volume/mute controls of the default capture
// device.
type Endpoint interface {
	Muted() (bool, error)
	SetMuted(muted bool) error
	Volume() (float64, error)
	SetVolume(scalar float64) error
}

// Report describes what Condition found and did.
type Report struct {
	WasMuted  bool
	OldVolume float64
	Unmuted   bool
	Raised    bool
}

// Conditioner applies the unmute/raise policy to an Endpoint.
type Conditioner struct {
	ep Endpoint
}

// New creates a Conditioner for the given endpoint. NewSystemEndpoint
// provides the production endpoint.
func New(ep Endpoint) *Conditioner {
	return &Conditioner{ep: ep}
}

// Condition queries mute state and master volume, then attempts at most
// one unmute and one raise to the default level.
func (c *Conditioner) Condition() (Report, error) {
	var r Report

	muted, err := c.ep.Muted()
	if err != nil {
		return r, fmt.Errorf("%w: query mute: %v", ErrMicUnavailable, err)
	}
	r.WasMuted = muted

	vol, err := c.ep.Volume()
	if err != nil {
		return r, fmt.Errorf("%w: query volume: %v", ErrMicUnavailable, err)
	}
	r.OldVolume = vol

	if muted {
		if err := c.ep.SetMuted(false); err != nil {
			return r, fmt.Errorf("%w: unmute: %v", ErrMicUnavailable, err)
		}
		r.Unmuted = true
	}
	if vol < minVolume {
		if err := c.ep.SetVolume(targetVolume); err != nil {
			return r, fmt.Errorf("%w: raise volume: %v", ErrMicUnavailable, err)
		}
		r.Raised = true
	}
	return r, nil
}
