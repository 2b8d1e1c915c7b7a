// ABOUTME: Ingress path: decrypt+decode an incoming packet, deposit into the ring, schedule resends for gaps
package session

import (
	"github.com/nyquist-audio/slaveplay/internal/seq"
)

const maxPacketLen = 2048

// PutPacket implements the ingress contract (§4.C). payload is the
// still-encrypted wire payload; PutPacket decrypts and decodes it itself.
func (s *Session) PutPacket(sequence seq.Seq16, ts seq.Ts32, payload []byte) {
	if len(payload) > maxPacketLen {
		return
	}

	s.abMutex.Lock()
	defer s.abMutex.Unlock()

	s.timeOfLastAudioPacket = s.now()
	s.packetCount++

	if !s.connectionStateOn {
		return
	}

	s.flushMutex.Lock()
	boundary := s.flushRTPTimestamp
	s.flushMutex.Unlock()

	if boundary != 0 {
		if ts == boundary || !seq.Order32(boundary, ts) {
			// ts == boundary, or ts is at/before the boundary: drop.
			return
		}
		s.flushMutex.Lock()
		s.flushRTPTimestamp = 0
		s.flushMutex.Unlock()
	}

	if !s.abSynced {
		s.abWrite = sequence
		s.abRead = sequence
		s.abSynced = true
	}

	var targetSlot bool
	switch {
	case sequence == s.abWrite:
		targetSlot = true
		s.abWrite = seq.Successor(s.abWrite)

	case seq.Order(s.abRead, s.abWrite, sequence):
		// Future: a gap opened between ab_write and sequence.
		gapCount := 0
		for g := s.abWrite; g != sequence; g = seq.Successor(g) {
			s.ringBuf.Clear(g)
			gapCount++
		}
		if gapCount > 0 {
			s.resend.RequestResend(s.abWrite, gapCount)
			s.resendRequests++
		}
		targetSlot = true
		s.abWrite = seq.Successor(sequence)

	case seq.Order(s.abRead, s.abRead, sequence):
		// Late-but-unplayed: after ab_read, but not the expected next write.
		s.latePackets++
		targetSlot = true

	default:
		s.tooLatePackets++
		targetSlot = false
	}

	if targetSlot {
		s.storeDecoded(sequence, ts, payload)
	}

	s.abCond.Signal()
}

func (s *Session) storeDecoded(sequence seq.Seq16, ts seq.Ts32, payload []byte) {
	plain := payload
	if s.decryptor != nil {
		decrypted, err := s.decryptor.Decrypt(payload)
		if err != nil {
			s.logger.Printf("session: decrypt failed for seq %d: %v", sequence, err)
			return
		}
		plain = decrypted
	}

	pcm, err := s.decoder.Decode(plain, s.cfg.FrameSize)
	if err != nil {
		s.logger.Printf("session: decode failed for seq %d: %v", sequence, err)
		return
	}

	// Index-aliasing recovery: if the slot this sequence maps to currently
	// holds a different, still-valid sequence ahead of ab_read, advance
	// ab_read to that stale entry's sequence rather than silently
	// overwriting it out from under the egress cursor.
	existing := s.ringBuf.SlotFor(sequence)
	if existing.Ready && existing.Sequence != sequence {
		if seq.Order(s.abRead, s.abRead, existing.Sequence) {
			s.abRead = existing.Sequence
		} else {
			s.logger.Printf("session: ring index aliasing at seq %d (stale entry %d)", sequence, existing.Sequence)
		}
	}

	s.ringBuf.MarkReady(sequence, ts, pcm)
}
