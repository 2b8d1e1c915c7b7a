// ABOUTME: Egress/sync loop: per-frame release decision, sync-error correction, and stats recording (§4.F)
// ABOUTME: Runs as its own goroutine from Play() until Stop() sets pleaseStop; owns ab_mutex outside of condition waits
package session

import (
	"time"

	"github.com/nyquist-audio/slaveplay/internal/fp"
	"github.com/nyquist-audio/slaveplay/internal/ring"
	"github.com/nyquist-audio/slaveplay/internal/seq"
)

const (
	dacBufferQueueMinimumLength = 5000
	lastChanceResendFloor       = 8
)

// waitTimerLoop periodically signals the egress condition variable so its
// Wait() never blocks longer than about 4/3 of one packet's duration, the
// Go equivalent of the reference player's pthread_cond_timedwait bound.
func (s *Session) waitTimerLoop() {
	for {
		d := time.Duration(float64(4*s.cfg.FrameSize) / 3 / float64(s.cfg.SampleRate) * float64(time.Second))
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
			s.abMutex.Lock()
			s.abCond.Signal()
			s.abMutex.Unlock()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

func (s *Session) egressLoop() {
	defer close(s.doneCh)

	s.abMutex.Lock()
	defer s.abMutex.Unlock()

	for {
		if s.pleaseStop {
			return
		}

		s.checkTimeout()
		if s.pleaseStop {
			return
		}

		s.serviceFlush()
		if s.pleaseStop {
			return
		}

		var curframe *ring.Slot
		if s.abSynced {
			curframe = s.ringBuf.SlotFor(s.abRead)
			if curframe.Ready && s.abBuffering {
				s.runPreroll()
				curframe = s.ringBuf.SlotFor(s.abRead)
			}
		}

		doWait := true
		if s.abSynced && curframe != nil && curframe.Ready && curframe.Timestamp != 0 {
			if s.releaseDecision(curframe) {
				doWait = false
			}
		}

		wait := s.abBuffering || doWait || !s.abSynced
		if wait && !s.pleaseStop {
			s.abCond.Wait()
			continue
		}
		if s.pleaseStop {
			return
		}

		s.consumeFrame()
	}
}

// releaseDecision reports whether curframe should be released now, per the
// reference player's net-offset/time-to-play comparison.
func (s *Session) releaseDecision(curframe *ring.Slot) bool {
	anc := s.anchor.Get()
	if !anc.Valid {
		return false
	}
	delta := int64(int32(curframe.Timestamp)) - int64(int32(anc.ReferenceTs))
	offset := s.cfg.Latency + s.cfg.AudioBackendLatencyOffset - s.cfg.AudioBackendBufferDesiredLength
	net := delta + offset
	timeToPlay := anc.ReferenceLocalTime.Add(framesToFPTime(net, s.cfg.SampleRate))
	return s.now().Sub(timeToPlay) >= 0
}

// consumeFrame performs the last-chance resend scan, sync-error
// correction, rendering, statistics, and cursor advance for slot[ab_read].
// Must be called with abMutex held.
func (s *Session) consumeFrame() {
	read := s.abRead
	curframe := s.ringBuf.SlotFor(read)

	if !s.abBuffering {
		occupancy := seq.Diff(s.abRead, s.abRead, s.abWrite)
		for i := lastChanceResendFloor; int32(i) < occupancy/2; i *= 2 {
			next := seq.Sum(s.abRead, int32(i))
			slot := s.ringBuf.SlotFor(next)
			if !slot.Ready {
				s.resend.RequestResend(next, 1)
				s.resendRequests++
			}
		}
	}

	ts := curframe.Timestamp
	ready := curframe.Ready
	var pcm []int16

	if !ready {
		s.missingPackets++
		pcm = make([]int16, 2*s.cfg.FrameSize)
		ts = 0
	} else {
		pcm = curframe.Data
	}

	var syncError int64
	var amountToStuff int

	if ts != 0 {
		anc := s.anchor.Get()
		now := s.now()
		td := now.Sub(anc.ReferenceLocalTime)
		tdInFrames := framesFromFPDelta(td, s.cfg.SampleRate)

		currentDelay, err := s.sink.Delay()
		if err != nil || currentDelay < 0 {
			currentDelay = 0
		}

		delay := tdInFrames + int64(int32(anc.ReferenceTs)) - (int64(int32(ts)) - currentDelay)
		syncError = delay - s.cfg.Latency

		if syncError > s.cfg.Tolerance {
			amountToStuff = -1
		} else if syncError < -s.cfg.Tolerance {
			amountToStuff = 1
		}

		if currentDelay < dacBufferQueueMinimumLength {
			amountToStuff = 0
		}

		if amountToStuff != 0 {
			amountToStuff = s.rateLimit(amountToStuff, now)
		}

		s.render(pcm, amountToStuff)

		if s.cfg.ResyncThreshold != 0 {
			abs := syncError
			if abs < 0 {
				abs = -abs
			}
			if abs > s.cfg.ResyncThreshold {
				s.resyncOutOfBoundsCount++
				if s.resyncOutOfBoundsCount >= 3 {
					s.resyncOutOfBoundsCount = 0
					s.requestFlush(ts)
				}
			} else {
				s.resyncOutOfBoundsCount = 0
			}
		}
	} else {
		// A missing packet synthesizes an all-zero pcm with ts==0. Play it
		// raw, bypassing the stuffer: routing it through render would run
		// it through DitheredVolume whenever fixVolume is non-unity, adding
		// dither noise to what must stay pure silence (matches the
		// reference player's direct play of a timestamp==0 supplied-silence
		// frame, and this package's own preroll silence-play path).
		s.playRawSilence(pcm)
	}

	s.statsAcc.Observe(syncError, int64(amountToStuff))
	s.statsAcc.ObserveBufferOccupancy(seq.Diff(s.abRead, s.abRead, s.abWrite))
	dacDelay, derr := s.sink.Delay()
	if derr == nil && dacDelay >= 0 {
		s.statsAcc.ObserveDACQueueSize(dacDelay)
	}

	if ready {
		s.sequenceAudit(curframe.Sequence)
	} else {
		s.lastSeqnoRead = int32(seq.Successor(seq.Seq16(s.lastSeqnoRead)))
	}

	s.ringBuf.Clear(read)
	s.abRead = seq.Successor(s.abRead)
}

// render hands pcm (frame_size stereo samples) to the sink, invoking the
// configured stuffer unless no correction is needed and software gain is
// unity.
func (s *Session) render(pcm []int16, amountToStuff int) {
	s.volMutex.Lock()
	fixVolume := s.fixVolume
	s.volMutex.Unlock()

	var out []int16
	n := len(pcm)/2 + amountToStuff

	if amountToStuff == 0 && fixVolume == 0x10000 {
		out = pcm
	} else {
		buf := make([]int16, 2*(len(pcm)/2+1))
		switch s.cfg.Stuffing {
		case StuffingHighQuality:
			s.hqStuffer.Vol.FixVolume = fixVolume
			n = s.hqStuffer.Stuff(pcm, len(pcm)/2, buf, amountToStuff)
		default:
			s.basicStuffer.Vol.FixVolume = fixVolume
			n = s.basicStuffer.Stuff(pcm, len(pcm)/2, buf, amountToStuff)
		}
		out = buf[:2*n]
	}

	s.abMutex.Unlock()
	if err := s.sink.Play(out); err != nil {
		s.logger.Printf("session: sink play error: %v", err)
	}
	s.abMutex.Lock()
}

// playRawSilence plays pcm directly through the sink, unlocking abMutex
// around the blocking call the same way runPreroll does around its own
// silence playback. pcm must already be all zeros; it is never passed
// through a stuffer or DitheredVolume, so it stays silent regardless of
// the configured software gain.
func (s *Session) playRawSilence(pcm []int16) {
	s.abMutex.Unlock()
	if err := s.sink.Play(pcm); err != nil {
		s.logger.Printf("session: sink play error: %v", err)
	}
	s.abMutex.Lock()
}

// rateLimit enforces the "don't correct more than ~1:1000 of frames for
// the first 30 seconds" policy, measured from first_packet_time_to_play.
func (s *Session) rateLimit(amountToStuff int, now fp.Time) int {
	if s.firstPacketTimeToPlay == 0 || now.Sub(s.firstPacketTimeToPlay) < 0 {
		return amountToStuff
	}
	tpSeconds := now.Sub(s.firstPacketTimeToPlay) >> 32
	if tpSeconds < 5 {
		return 0
	}
	if tpSeconds < 30 {
		if s.rateLimitRand() > 648 {
			return 0
		}
	}
	return amountToStuff
}

// sequenceAudit tracks the expected next sequence number, logging and
// rebasing on mismatch.
func (s *Session) sequenceAudit(gotSeq seq.Seq16) {
	if s.lastSeqnoRead == -1 {
		s.lastSeqnoRead = int32(gotSeq)
		return
	}
	expected := seq.Successor(seq.Seq16(s.lastSeqnoRead))
	if gotSeq != expected {
		s.logger.Printf("session: packets out of sequence: expected %d, got %d", expected, gotSeq)
		s.lastSeqnoRead = int32(gotSeq)
		return
	}
	s.lastSeqnoRead = int32(expected)
}

func (s *Session) checkTimeout() {
	if s.cfg.DontCheckTimeout || s.cfg.Timeout == 0 {
		return
	}
	if s.timeOfLastAudioPacket == 0 {
		return
	}
	now := s.now()
	elapsed := now.Sub(s.timeOfLastAudioPacket)
	if elapsed >= int64(s.cfg.Timeout.Seconds())<<32 {
		s.logger.Printf("session: no packets for %s", s.cfg.Timeout)
		// Only logged: no upstream shutdown request is sent and no flag is
		// set, so the line repeats on every later egress iteration. The
		// session keeps running until Stop() is called externally.
	}
}
