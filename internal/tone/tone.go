// Package tone plays the start/stop cues. The bursts are synthesized in
// memory as short sine waves; no asset files are involved. Playback is
// fire-and-forget and never blocks the caller.
package tone

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	sampleRate = 16000
	channels   = 1

	startFreqHz = 800
	stopFreqHz  = 600
	burstMs     = 70
	amplitude   = 0.25
)

// Player owns the output audio context and the pre-rendered cue buffers.
type Player struct {
	ctx *oto.Context

	start []byte
	stop  []byte

	mu     sync.Mutex
	active []*oto.Player
}

// NewPlayer initializes the output device and renders the cues. Returns an
// error if no output device is available; callers may treat that as cues
// disabled.
func NewPlayer() (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("tone: initializing output device: %w", err)
	}
	<-ready

	return &Player{
		ctx:   ctx,
		start: renderBurst(startFreqHz, burstMs*time.Millisecond),
		stop:  renderBurst(stopFreqHz, burstMs*time.Millisecond),
	}, nil
}

// Start plays the recording-started cue.
func (p *Player) Start() { p.play(p.start) }

// Stop plays the recording-stopped cue.
func (p *Player) Stop() { p.play(p.stop) }

// play fires the burst on a goroutine and returns immediately.
func (p *Player) play(pcm []byte) {
	if p == nil {
		return
	}
	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.track(player)
	go func() {
		player.Play()
		for player.IsPlaying() {
			time.Sleep(5 * time.Millisecond)
		}
		player.Close()
		p.untrack(player)
	}()
}

func (p *Player) track(pl *oto.Player) {
	p.mu.Lock()
	p.active = append(p.active, pl)
	p.mu.Unlock()
}

func (p *Player) untrack(pl *oto.Player) {
	p.mu.Lock()
	for i, a := range p.active {
		if a == pl {
			p.active = append(p.active[:i], p.active[i+1:]...)
			break
		}
	}
	p.mu.Unlock()
}

// renderBurst synthesizes a sine burst as signed 16-bit little-endian PCM.
// A short linear attack and release ramp keeps the edges click-free.
func renderBurst(freqHz int, d time.Duration) []byte {
	n := int(float64(sampleRate) * d.Seconds())
	ramp := sampleRate / 100 // 10 ms
	if ramp > n/2 {
		ramp = n / 2
	}

	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		s := amplitude * math.Sin(2*math.Pi*float64(freqHz)*float64(i)/sampleRate)
		switch {
		case i < ramp:
			s *= float64(i) / float64(ramp)
		case i >= n-ramp:
			s *= float64(n-1-i) / float64(ramp)
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(s*math.MaxInt16)))
	}
	return out
}
