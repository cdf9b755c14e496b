package tone

import (
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestRenderBurstLength(t *testing.T) {
	pcm := renderBurst(800, 70*time.Millisecond)
	wantSamples := 16000 * 70 / 1000
	if len(pcm) != wantSamples*2 {
		t.Errorf("len = %d bytes, want %d", len(pcm), wantSamples*2)
	}
}

func TestRenderBurstRampsToSilence(t *testing.T) {
	pcm := renderBurst(600, 70*time.Millisecond)

	first := int16(binary.LittleEndian.Uint16(pcm[:2]))
	last := int16(binary.LittleEndian.Uint16(pcm[len(pcm)-2:]))
	if first != 0 {
		t.Errorf("first sample = %d, want 0 (attack ramp)", first)
	}
	if last != 0 {
		t.Errorf("last sample = %d, want 0 (release ramp)", last)
	}
}

func TestRenderBurstBoundedAmplitude(t *testing.T) {
	pcm := renderBurst(800, 70*time.Millisecond)
	limit := int16(amplitude*math.MaxInt16) + 1

	var peak int16
	for i := 0; i < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
	}
	if peak > limit {
		t.Errorf("peak = %d, want <= %d", peak, limit)
	}
	if peak == 0 {
		t.Error("burst is silent")
	}
}

func TestRenderBurstFrequency(t *testing.T) {
	// Count zero crossings: a 800 Hz tone over 70 ms crosses zero about
	// 2*800*0.07 = 112 times. Allow slack for the ramps.
	pcm := renderBurst(800, 70*time.Millisecond)

	var crossings int
	var prev int16
	for i := 0; i < len(pcm); i += 2 {
		s := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		if (prev < 0 && s > 0) || (prev > 0 && s < 0) {
			crossings++
		}
		if s != 0 {
			prev = s
		}
	}
	if crossings < 100 || crossings > 124 {
		t.Errorf("zero crossings = %d, want ~112", crossings)
	}
}
