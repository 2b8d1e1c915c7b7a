// ABOUTME: Tests for the frame ring
// ABOUTME: Covers slot addressing, ready/clear transitions, and arena reuse across wraps
package ring

import (
	"testing"

	"github.com/nyquist-audio/slaveplay/internal/seq"
)

func TestNewPanicsOnNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for non-power-of-two capacity")
		}
	}()
	New(500, 352)
}

func TestBufIdxWraps(t *testing.T) {
	r := New(512, 352)
	if r.BufIdx(0) != r.BufIdx(512) {
		t.Errorf("BufIdx should wrap at capacity: BufIdx(0)=%d BufIdx(512)=%d", r.BufIdx(0), r.BufIdx(512))
	}
}

func TestMarkReadyThenClear(t *testing.T) {
	r := New(512, 4)
	pcm := []int16{1, 2, 3, 4, 5, 6, 7, 8}
	r.MarkReady(100, 9000, pcm)

	slot := r.SlotFor(100)
	if !slot.Ready {
		t.Fatal("expected slot ready after MarkReady")
	}
	if slot.Sequence != 100 || slot.Timestamp != 9000 {
		t.Errorf("unexpected slot identity: seq=%d ts=%d", slot.Sequence, slot.Timestamp)
	}
	if len(slot.Data) != len(pcm) {
		t.Fatalf("expected %d samples, got %d", len(pcm), len(slot.Data))
	}
	for i, v := range pcm {
		if slot.Data[i] != v {
			t.Errorf("sample %d: got %d want %d", i, slot.Data[i], v)
		}
	}

	r.Clear(100)
	if slot.Ready {
		t.Error("expected slot not ready after Clear")
	}
}

func TestArenaReuseAcrossWrap(t *testing.T) {
	r := New(4, 4)
	full := []int16{1, 2, 3, 4, 5, 6, 7, 8}
	r.MarkReady(1, 100, full)

	// A later write to the same slot index (sequence wrapped around the ring)
	// with fewer samples must not be corrupted by stale tail bytes from the
	// full write, and a subsequent full write must not be truncated by the
	// shorter slice length left behind.
	short := []int16{9, 9}
	r.MarkReady(5, 200, short) // BufIdx(5) == BufIdx(1) for capacity 4
	slot := r.SlotFor(5)
	if len(slot.Data) != 2 {
		t.Fatalf("expected 2 samples after short write, got %d", len(slot.Data))
	}

	r.MarkReady(9, 300, full)
	slot = r.SlotFor(9)
	if len(slot.Data) != len(full) {
		t.Fatalf("expected arena to accept a full write again, got %d samples", len(slot.Data))
	}
}

func TestResyncClearsEverySlot(t *testing.T) {
	r := New(4, 4)
	for i := 0; i < r.Capacity(); i++ {
		r.MarkReady(seq.Seq16(i), seq.Ts32(i+1), []int16{1, 2})
	}
	r.Resync()
	for i := 0; i < r.Capacity(); i++ {
		if r.SlotAt(i).Ready {
			t.Errorf("slot %d still ready after Resync", i)
		}
	}
}
