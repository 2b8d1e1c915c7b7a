// ABOUTME: Pre-roll synchronizer: decides the first-play instant and emits silence until then (§4.E)
// ABOUTME: Runs from inside the egress loop with ab_mutex held, except for the blocking sink.Play(silence) call
package session

import "github.com/nyquist-audio/slaveplay/internal/seq"

const (
	fillerSize       = 4410 // ~0.1s at 44.1kHz
	maxDACDelay      = 4410
	secondFlushDelta = 4410 // first_packet_timestamp + 0.1s, used when pre-roll starts already late
)

// runPreroll advances the pre-roll state machine by one iteration. Returns
// true if a real frame should now be released (pre-roll has ended this
// call or previously ended), false if the caller should keep waiting.
// Must be called with abMutex held; it releases the lock only around the
// blocking sink.Play(silence) call.
func (s *Session) runPreroll() bool {
	if !s.abBuffering {
		return true
	}

	slot := s.ringBuf.SlotFor(s.abRead)
	if !slot.Ready || slot.Sequence != s.abRead {
		return false
	}

	anc := s.anchor.Get()
	if !anc.Valid {
		return false // keep buffering
	}

	if s.firstPacketTimestamp == 0 {
		s.firstPacketTimestamp = slot.Timestamp
		delta := int64(int32(slot.Timestamp)) - int64(int32(anc.ReferenceTs))
		offsetFrames := delta + s.cfg.Latency + s.cfg.AudioBackendLatencyOffset
		s.firstPacketTimeToPlay = anc.ReferenceLocalTime.Add(framesToFPTime(offsetFrames, s.cfg.SampleRate))

		now := s.now()
		if now.Sub(s.firstPacketTimeToPlay) >= 0 {
			// Already late: request a flush at a small safety margin past
			// the first packet's timestamp (covers packets still in
			// flight), and also resync in place immediately, since
			// nothing has changed between here and that request that
			// would make us not-late.
			s.requestFlushLocked(addTs(s.firstPacketTimestamp, secondFlushDelta))
			if err := s.sink.Flush(); err != nil {
				s.logger.Printf("session: preroll late-start sink flush error: %v", err)
			}
			s.ringResync()
			s.firstPacketTimestamp = 0
			s.firstPacketTimeToPlay = 0
			return false
		}
	}

	dacDelay, err := s.sink.Delay()
	if err != nil || dacDelay < 0 {
		dacDelay = 0
	}

	now := s.now()
	grossFrameGap := framesFromFPDelta(s.firstPacketTimeToPlay.Sub(now), s.cfg.SampleRate)
	exactFrameGap := grossFrameGap - dacDelay

	if exactFrameGap <= 0 {
		// Overshot: flush and resync, pre-roll restarts from scratch.
		if err := s.sink.Flush(); err != nil {
			s.logger.Printf("session: preroll overshoot sink flush error: %v", err)
		}
		s.ringResync()
		return false
	}

	fs := fillerSize
	if max := maxDACDelay - dacDelay; max < int64(fs) {
		fs = int(max)
	}
	if fs < 0 {
		fs = 0
	}

	terminating := false
	if exactFrameGap <= int64(fs) || exactFrameGap <= int64(2*s.cfg.FrameSize) {
		fs = int(exactFrameGap)
		terminating = true
	}

	if fs > 0 {
		silence := make([]int16, 2*fs)
		s.abMutex.Unlock()
		playErr := s.sink.Play(silence)
		s.abMutex.Lock()
		if playErr != nil {
			s.logger.Printf("session: preroll silence play error: %v", playErr)
		}
	}

	if terminating {
		s.abBuffering = false
		anc2 := s.anchor.Get()
		s.playSegmentReferenceFrame = anc2.ReferenceTs
		return true
	}

	return false
}

// requestFlushLocked is requestFlush's counterpart for call sites already
// holding abMutex that must not re-enter the public Flush API's own
// locking dance.
func (s *Session) requestFlushLocked(ts seq.Ts32) {
	s.requestFlush(ts)
}

func addTs(ts seq.Ts32, delta int64) seq.Ts32 {
	return seq.Ts32(uint32(int64(uint32(ts)) + delta))
}
