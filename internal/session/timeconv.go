// ABOUTME: Small bridges between raw frame counts and the fp package's fixed-point time type
package session

import "github.com/nyquist-audio/slaveplay/internal/fp"

// framesToFPTime converts a signed frame count to a fixed-point duration,
// using signed saturating-friendly int64 math throughout (the shift is
// exact; overflow would require frame offsets far beyond any real latency
// configuration).
func framesToFPTime(frames int64, sampleRate int) fp.Time {
	return fp.FramesToTime(frames, sampleRate)
}

// framesFromFPDelta converts a raw fixed-point difference (as returned by
// fp.Time.Sub) back into a signed frame count.
func framesFromFPDelta(delta int64, sampleRate int) int64 {
	return fp.TimeToFrames(fp.Time(delta), sampleRate)
}
