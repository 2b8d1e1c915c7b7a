// ABOUTME: Flush controller: consumes pending flush requests and resets the synchronizer (§4.D)
// ABOUTME: Called from the egress loop with ab_mutex held; takes and releases flush_mutex internally
package session

import "github.com/nyquist-audio/slaveplay/internal/seq"

// serviceFlush checks for a pending flush request and, if one is set,
// performs the ring-resync and synchronizer reset. Must be called with
// abMutex held; it acquires flushMutex internally and releases it before
// returning, per the documented lock-ordering exception in §5.
func (s *Session) serviceFlush() {
	s.flushMutex.Lock()
	requested := s.flushRequested
	s.flushRequested = false
	s.flushMutex.Unlock()

	if !requested {
		return
	}

	if s.sink != nil {
		if err := s.sink.Flush(); err != nil {
			s.logger.Printf("session: sink flush error: %v", err)
		}
	}

	s.ringResync()
}

// ringResync clears every slot, drops the cursors back to an unsynced
// state, and resets pre-roll. Must be called with abMutex held.
func (s *Session) ringResync() {
	if s.ringBuf != nil {
		s.ringBuf.Resync()
	}
	s.abSynced = false
	s.abBuffering = true
	s.lastSeqnoRead = -1
	s.firstPacketTimestamp = 0
	s.firstPacketTimeToPlay = 0
	s.resyncOutOfBoundsCount = 0
}

// requestFlush is the internal entry point a collaborator (e.g. the resync
// watchdog) uses to flush at a given media timestamp without going through
// the public API's extra Broadcast (the egress loop already owns abMutex
// when it decides to flush).
func (s *Session) requestFlush(ts seq.Ts32) {
	s.flushMutex.Lock()
	s.flushRequested = true
	s.flushRTPTimestamp = ts
	s.flushMutex.Unlock()
	s.playSegmentReferenceFrame = 0
}
