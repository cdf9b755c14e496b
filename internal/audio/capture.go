// Package audio captures microphone input into a bounded in-memory sample
// buffer. The device runs at 16 kHz mono float32; the miniaudio layer inside
// the capture device performs any channel downmix and sample-rate conversion
// from the hardware format. The callback thread only converts bytes into a
// preallocated scratch buffer, appends to the ring, and updates the RMS
// level atomic.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

const (
	// SampleRate is the pipeline-wide capture rate expected by the decoder.
	SampleRate = 16000
	// MaxSeconds is the hard cap on a single recording.
	MaxSeconds = 65
	// MaxSamples is MaxSeconds at SampleRate: the ring capacity.
	MaxSamples = MaxSeconds * SampleRate
)

// ErrDeviceUnavailable is returned by Start when the default input device
// cannot be opened.
var ErrDeviceUnavailable = errors.New("audio: input device unavailable")

// scratchFrames bounds the per-callback frame count malgo delivers; the
// scratch buffer is sized so the hot path never grows it.
const scratchFrames = 1 << 14

// Capture owns the default input device and the session ring.
type Capture struct {
	ctx   *malgo.AllocatedContext
	ring  *Ring
	level atomic.Uint32 // float32 bits; relaxed — readers tolerate staleness

	mu      sync.Mutex
	device  *malgo.Device
	running bool

	scratch []float32
	capped  atomic.Bool
	capCh   chan struct{}
}

// NewCapture initializes the audio context and pre-allocates the ring.
// Call Close when done.
func NewCapture() (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: initializing context: %w", err)
	}
	return &Capture{
		ctx:     ctx,
		ring:    NewRing(MaxSamples),
		scratch: make([]float32, scratchFrames),
		capCh:   make(chan struct{}, 1),
	}, nil
}

// CapReached returns a channel that receives exactly one value per session
// when the ring fills.
func (c *Capture) CapReached() <-chan struct{} {
	return c.capCh
}

// Level returns the most recent RMS over a callback block, in [0, 1].
func (c *Capture) Level() float32 {
	return math.Float32frombits(c.level.Load())
}

// Start clears the ring and begins the capture stream. It fails with
// ErrDeviceUnavailable if the default input device cannot be opened.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return fmt.Errorf("audio: already capturing")
	}

	c.ring.Reset()
	c.capped.Store(false)
	c.level.Store(0)
	// Drain a stale cap signal from a previous session.
	select {
	case <-c.capCh:
	default:
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = 1
	deviceCfg.SampleRate = SampleRate

	device, err := malgo.InitDevice(c.ctx.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: c.onData,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	c.device = device
	c.running = true
	return nil
}

// Stop halts the stream and returns the captured samples by move. Returns
// nil if capture was not running.
func (c *Capture) Stop() []float32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	c.device.Uninit()
	c.device = nil
	c.running = false

	return c.ring.Take()
}

// Abort halts the stream and discards the buffer.
func (c *Capture) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.device.Uninit()
	c.device = nil
	c.running = false
	c.ring.Reset()
}

// IsRunning reports whether a capture stream is live.
func (c *Capture) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Close releases the device and context.
func (c *Capture) Close() error {
	c.mu.Lock()
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.running = false
	c.mu.Unlock()

	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninitializing context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}

// onData runs on the realtime callback thread. It must not allocate, lock,
// log, or block.
func (c *Capture) onData(_, pSample []byte, frameCount uint32) {
	n := decodeF32(pSample, frameCount, c.scratch)
	block := c.scratch[:n]

	c.level.Store(math.Float32bits(blockRMS(block)))

	if full := c.ring.Append(block); full {
		if c.capped.CompareAndSwap(false, true) {
			select {
			case c.capCh <- struct{}{}:
			default:
			}
		}
	}
}

// decodeF32 converts little-endian float32 bytes into dst and returns the
// sample count written. dst bounds the conversion; excess frames in a
// single callback are dropped rather than grown into.
func decodeF32(data []byte, frameCount uint32, dst []float32) int {
	n := int(frameCount)
	if max := len(data) / 4; n > max {
		n = max
	}
	if n > len(dst) {
		n = len(dst)
	}
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		dst[i] = math.Float32frombits(bits)
	}
	return n
}

// blockRMS computes the root-mean-square level of a sample block.
func blockRMS(block []float32) float32 {
	if len(block) == 0 {
		return 0
	}
	var sum float64
	for _, s := range block {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(block))))
}
