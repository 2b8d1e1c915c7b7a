// ABOUTME: 64-bit fixed-point local time representation
// ABOUTME: Upper 32 bits are whole seconds, lower 32 bits are a fraction of a second
package fp

import "time"

// Time is a 64-bit fixed-point timestamp: bits 63..32 are whole seconds,
// bits 31..0 are a fraction of a second. Conversions shift by 32 bits and
// scale by integer division, truncating toward zero, matching the
// convention the slave-clocked player core was distilled from.
type Time uint64

const fracBits = 32

// FromDuration converts a monotonic duration since an arbitrary epoch into
// fixed-point form.
func FromDuration(d time.Duration) Time {
	sec := int64(d / time.Second)
	rem := d % time.Second
	frac := (int64(rem) << fracBits) / int64(time.Second)
	return Time(uint64(sec)<<fracBits | uint64(frac)&0xffffffff)
}

// ToDuration converts a fixed-point timestamp back to a duration since the
// same epoch it was constructed against.
func (t Time) ToDuration() time.Duration {
	sec := int64(t >> fracBits)
	frac := int64(t & 0xffffffff)
	return time.Duration(sec)*time.Second + time.Duration((frac*int64(time.Second))>>fracBits)
}

// FramesToTime converts a signed frame count at sampleRate into a
// fixed-point duration, using the same `(n << 32) / rate` shift the egress
// loop uses for sync-error and pre-roll arithmetic.
func FramesToTime(frames int64, sampleRate int) Time {
	if frames >= 0 {
		return Time((frames << fracBits) / int64(sampleRate))
	}
	return Time(uint64(-(((-frames) << fracBits) / int64(sampleRate))))
}

// TimeToFrames converts a fixed-point duration back into a (possibly
// negative) frame count at sampleRate.
func TimeToFrames(t Time, sampleRate int) int64 {
	signed := int64(t)
	if signed >= 0 {
		return (signed * int64(sampleRate)) >> fracBits
	}
	return -(((-signed) * int64(sampleRate)) >> fracBits)
}

// Add returns t + delta, both fixed-point quantities, with signed delta
// semantics (delta may be negative, represented as its two's-complement
// uint64 pattern).
func (t Time) Add(delta Time) Time {
	return Time(int64(t) + int64(delta))
}

// Sub returns the signed difference t - other as a plain int64 of
// fixed-point units (not wrapped back into Time), used by the egress loop
// when computing `td = now - reference_local_time`.
func (t Time) Sub(other Time) int64 {
	return int64(t) - int64(other)
}

// Now returns the current monotonic time as a fixed-point quantity relative
// to the process start. It is the only place in the core that reads the
// wall clock; everything else operates on Time values so tests can supply
// synthetic ones.
var processStart = monotonicNow()

func Now() Time {
	return FromDuration(monotonicNow().Sub(processStart))
}

func monotonicNow() time.Time {
	return time.Now()
}
