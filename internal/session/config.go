// ABOUTME: Tunables the session reads at play() time, mirroring the reference player's recognized config keys
package session

import "time"

// StuffingMode selects which stuffer implementation the egress loop uses
// for ±1-sample correction.
type StuffingMode int

const (
	StuffingBasic StuffingMode = iota
	StuffingHighQuality
)

// Config holds every tunable the session reads at play() time.
type Config struct {
	// Latency is the target end-to-end frame count between anchor and
	// output (e.g. 88200, two seconds at 44.1kHz).
	Latency int64

	// AudioBackendLatencyOffset compensates for a sink's own internal
	// delay, added wherever Latency is added.
	AudioBackendLatencyOffset int64

	// AudioBackendBufferDesiredLength is the frame count the egress loop
	// tries to keep queued in the sink.
	AudioBackendBufferDesiredLength int64

	// Tolerance is the sync error (frames) below which no correction is
	// applied.
	Tolerance int64

	// ResyncThreshold is the sync error (frames) that triggers a resync
	// after 3 consecutive violations; 0 disables the watchdog.
	ResyncThreshold int64

	// Stuffing selects the basic or high-quality stuffer.
	Stuffing StuffingMode

	// BufferStartFill is the initial-fill guard; must be ≤ ring capacity.
	BufferStartFill int

	// Timeout is the number of seconds of packet silence before the
	// session logs that no packets are arriving; 0 disables.
	Timeout time.Duration

	// DontCheckTimeout disables the timeout watchdog regardless of Timeout.
	DontCheckTimeout bool

	// StatisticsRequested is carried in the configuration but the session
	// never reads it; no periodic stats log lines are written.
	StatisticsRequested bool

	// SampleRate is the source sampling rate in frames/second (44100 for
	// the reference stream format).
	SampleRate int

	// FrameSize is the number of stereo frames per packet (352 for the
	// reference stream format).
	FrameSize int

	// BufferFrames is the ring capacity; must be a power of two.
	BufferFrames int
}

// DefaultConfig mirrors the reference player's common defaults.
func DefaultConfig() Config {
	return Config{
		Latency:                         88200,
		AudioBackendLatencyOffset:       0,
		AudioBackendBufferDesiredLength: 0,
		Tolerance:                       88,
		ResyncThreshold:                 441 * 10,
		Stuffing:                        StuffingBasic,
		BufferStartFill:                 282,
		Timeout:                         120 * time.Second,
		SampleRate:                      44100,
		FrameSize:                       352,
		BufferFrames:                    512,
	}
}

// StreamConfig is the play() input: the AES key material and decoder
// format vector for one stream.
type StreamConfig struct {
	Encrypted bool
	AESKey    [16]byte
	AESIV     [16]byte

	// Fmtp is the 12-integer format descriptor; Fmtp[1] = frame size,
	// Fmtp[3] = sample size (must be 16), Fmtp[11] = sampling rate.
	Fmtp [12]int32
}
