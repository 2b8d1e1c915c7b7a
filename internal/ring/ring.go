// ABOUTME: Fixed-size ring of decoded-PCM slots indexed by sequence number modulo capacity
// ABOUTME: The ready flag on each slot is the single bit that transfers ownership between ingress and egress
package ring

import "github.com/nyquist-audio/slaveplay/internal/seq"

// Slot holds one ring entry: a decoded stereo PCM frame plus the identity
// (sequence number, media timestamp) of the packet it came from. ready=true
// means the slot is the unique authoritative PCM for Sequence; ready=false
// means a hole (missing, not yet arrived, already consumed, or flushed).
type Slot struct {
	Ready      bool
	Timestamp  seq.Ts32
	Sequence   seq.Seq16
	Data       []int16 // interleaved stereo, length 2*frameSize when Ready
}

// Ring is a fixed-capacity array of slots. Capacity must be a power of two;
// BufIdx uses a bitmask, not a modulo, for that reason.
type Ring struct {
	slots     []Slot
	mask      uint16
	frameSize int
}

// New allocates a ring with the given capacity (must be a power of two) and
// per-slot PCM arena sized for frameSize stereo frames plus headroom for the
// high-quality stuffer's maximum resampling shift (frameSize+3 per the
// original OUTFRAME_BYTES convention).
func New(capacity, frameSize int) *Ring {
	if capacity == 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	r := &Ring{
		slots:     make([]Slot, capacity),
		mask:      uint16(capacity - 1),
		frameSize: frameSize,
	}
	for i := range r.slots {
		r.slots[i].Data = make([]int16, 2*(frameSize+3))
	}
	return r
}

// Capacity returns BUFFER_FRAMES.
func (r *Ring) Capacity() int { return len(r.slots) }

// FrameSize returns the configured stereo frame size.
func (r *Ring) FrameSize() int { return r.frameSize }

// BufIdx computes BUFIDX(s) = s mod capacity via the power-of-two mask.
func (r *Ring) BufIdx(s seq.Seq16) uint16 {
	return uint16(s) & r.mask
}

// SlotFor returns the slot that s would occupy. Callers must hold the
// session's cursor lock while inspecting or mutating the returned slot.
func (r *Ring) SlotFor(s seq.Seq16) *Slot {
	return &r.slots[r.BufIdx(s)]
}

// SlotAt returns the slot at a raw index, used when iterating the whole
// ring (e.g. full resync).
func (r *Ring) SlotAt(i int) *Slot {
	return &r.slots[i]
}

// Clear marks the slot for s as empty without touching its PCM arena
// (the arena is reused in place on the next MarkReady).
func (r *Ring) Clear(s seq.Seq16) {
	slot := r.SlotFor(s)
	slot.Ready = false
	slot.Timestamp = 0
	slot.Sequence = 0
}

// MarkReady stores decoded PCM into the slot for s and marks it ready. pcm
// must be exactly 2*frameSize int16 samples (4*frame_size bytes decoded).
func (r *Ring) MarkReady(s seq.Seq16, ts seq.Ts32, pcm []int16) {
	slot := r.SlotFor(s)
	slot.Data = slot.Data[:cap(slot.Data)] // restore the full arena before copying in
	n := copy(slot.Data, pcm)
	slot.Data = slot.Data[:n]
	slot.Ready = true
	slot.Timestamp = ts
	slot.Sequence = s
}

// Resync clears every slot, the ring-wide counterpart to ab_resync's sweep
// over audio_buffer.
func (r *Ring) Resync() {
	for i := range r.slots {
		r.slots[i].Ready = false
		r.slots[i].Timestamp = 0
		r.slots[i].Sequence = 0
	}
}
