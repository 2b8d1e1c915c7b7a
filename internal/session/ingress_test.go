// ABOUTME: Unit-level ingress tests: sequence-wrap boundary, ring-slot aliasing recovery, sequence
// ABOUTME: audit rebasing — properties the scenario tests don't individually isolate.
package session

import (
	"testing"

	"github.com/nyquist-audio/slaveplay/internal/seq"
)

// PutPacket must treat the 16-bit sequence wrap (65535 -> 0) as the normal
// successor, not a gap or a too-late drop.
func TestIngressSequenceWrapIsNormalFill(t *testing.T) {
	cfg := testConfig()
	s, _, _, resender := newTestSession(t, cfg)

	payload := encodeFrame(cfg.FrameSize, 1)
	s.PutPacket(seq.Seq16(65535), seq.Ts32(1000), payload)
	s.PutPacket(seq.Seq16(0), seq.Ts32(1352), payload)

	if got := resender.snapshot(); len(got) != 0 {
		t.Fatalf("expected no resend requests across the sequence wrap, got %v", got)
	}
	if s.abWrite != seq.Seq16(1) {
		t.Fatalf("abWrite = %d, want 1 (successor of the wrapped sequence)", s.abWrite)
	}
	if slot := s.ringBuf.SlotFor(seq.Seq16(0)); !slot.Ready || slot.Sequence != 0 {
		t.Fatalf("expected slot 0 ready and tagged with sequence 0, got %+v", slot)
	}
}

// When a sequence maps to a ring slot still holding a different, unread
// sequence that is itself ahead of ab_read, storeDecoded must advance
// ab_read to that stale entry rather than silently letting it be
// overwritten out from under the egress cursor.
func TestIngressRingAliasingAdvancesAbRead(t *testing.T) {
	cfg := testConfig()
	cfg.BufferFrames = 512
	s, _, _, _ := newTestSession(t, cfg)

	s.abSynced = true
	s.abRead = seq.Seq16(90)
	s.abWrite = seq.Seq16(200)

	stale := encodeFrame(cfg.FrameSize, 42)
	s.storeDecoded(seq.Seq16(100), seq.Ts32(5000), stale)

	// 612 lands on the same physical slot as 100 (612 & 511 == 100 & 511).
	incoming := encodeFrame(cfg.FrameSize, 43)
	s.storeDecoded(seq.Seq16(612), seq.Ts32(9000), incoming)

	if s.abRead != seq.Seq16(100) {
		t.Fatalf("abRead = %d, want 100 (advanced to the aliased stale entry)", s.abRead)
	}
	slot := s.ringBuf.SlotFor(seq.Seq16(612))
	if !slot.Ready || slot.Sequence != seq.Seq16(612) {
		t.Fatalf("expected the aliased slot to now hold sequence 612, got %+v", slot)
	}
}

// sequenceAudit rebases lastSeqnoRead on both the expected-successor path
// and the out-of-order path, and never mistakes the very first observed
// sequence for a mismatch.
func TestSequenceAuditRebasesOnMismatch(t *testing.T) {
	cfg := testConfig()
	s, _, _, _ := newTestSession(t, cfg)

	s.sequenceAudit(seq.Seq16(10))
	if s.lastSeqnoRead != 10 {
		t.Fatalf("first observed sequence should seed lastSeqnoRead: got %d", s.lastSeqnoRead)
	}

	s.sequenceAudit(seq.Seq16(11))
	if s.lastSeqnoRead != 11 {
		t.Fatalf("expected successor to advance lastSeqnoRead to 11, got %d", s.lastSeqnoRead)
	}

	s.sequenceAudit(seq.Seq16(50))
	if s.lastSeqnoRead != 50 {
		t.Fatalf("expected an out-of-order sequence to rebase lastSeqnoRead to 50, got %d", s.lastSeqnoRead)
	}
}

// A gap that opens between ab_write and an out-of-order-future sequence
// requests exactly one resend covering the whole gap, matching the single
// coalesced request the reference player issues per gap rather than one
// request per missing sequence number.
func TestIngressGapRequestsOneCoalescedResend(t *testing.T) {
	cfg := testConfig()
	s, _, _, resender := newTestSession(t, cfg)

	s.PutPacket(seq.Seq16(100), seq.Ts32(1000), encodeFrame(cfg.FrameSize, 1))
	s.PutPacket(seq.Seq16(105), seq.Ts32(1000+5*int64(cfg.FrameSize)), encodeFrame(cfg.FrameSize, 1))

	got := resender.snapshot()
	if len(got) != 1 {
		t.Fatalf("expected exactly one resend request, got %d: %v", len(got), got)
	}
	if got[0].firstSeq != seq.Seq16(101) || got[0].count != 4 {
		t.Fatalf("expected resend(101, 4), got resend(%d, %d)", got[0].firstSeq, got[0].count)
	}
}
