package audio

import "sync/atomic"

// Ring is a single-producer/single-consumer append-only sample buffer,
// pre-allocated to the session cap. The producer is the audio callback
// thread; the consumer is the session state machine on stop. The producer
// publishes the committed length with a release store and the consumer reads
// it with an acquire load, so no mutex touches the audio hot path. Samples
// past the cap are dropped.
type Ring struct {
	buf []float32
	n   atomic.Int64
}

// NewRing creates a Ring holding at most capacity samples.
func NewRing(capacity int) *Ring {
	return &Ring{buf: make([]float32, capacity)}
}

// Append writes samples after the committed length and reports whether the
// ring is full afterwards. Excess samples are dropped. Producer-only; never
// allocates.
func (r *Ring) Append(samples []float32) (full bool) {
	n := int(r.n.Load())
	free := len(r.buf) - n
	if free <= 0 {
		return true
	}
	if len(samples) > free {
		samples = samples[:free]
	}
	copy(r.buf[n:], samples)
	r.n.Store(int64(n + len(samples)))
	return n+len(samples) == len(r.buf)
}

// Len returns the committed sample count.
func (r *Ring) Len() int {
	return int(r.n.Load())
}

// Take returns the committed slice by move and resets the ring with a fresh
// backing array of the same capacity. Consumer-only; the producer must be
// stopped first.
func (r *Ring) Take() []float32 {
	n := int(r.n.Load())
	out := r.buf[:n:n]
	r.buf = make([]float32, cap(r.buf))
	r.n.Store(0)
	return out
}

// Reset discards any committed samples without reallocating. Consumer-only;
// the producer must be stopped.
func (r *Ring) Reset() {
	r.n.Store(0)
}

// Cap returns the ring capacity in samples.
func (r *Ring) Cap() int {
	return cap(r.buf)
}
