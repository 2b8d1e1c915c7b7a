// ABOUTME: Output sink contract: start/stop/play/flush/delay/volume/parameters
// ABOUTME: Implementations block only as long as the audio device genuinely needs, per the no-sink-timeout invariant
package sink

// Parameters describes the sink's reported volume/capability range, filled
// in by an optional hardware-volume-aware sink.
type Parameters struct {
	AirplayVolume   float64
	MinimumVolumeDB float64
	MaximumVolumeDB float64
	CurrentVolumeDB float64
	HasTrueMute     bool
	IsMuted         bool
	Valid           bool
}

// Sink is the output contract the session renders through. start/stop
// bracket a play session; flush drops whatever is queued but not yet
// rendered; delay reports the device's current queue depth in stereo
// frames, or -1 on error (the caller treats that as 0).
// volume and parameters are optional: a sink with no hardware volume
// control leaves volume scaling entirely to the session's software gain.
type Sink interface {
	Start(sampleRate int) error
	Stop() error
	Play(samples []int16) error
	Flush() error
	Delay() (int64, error)

	// HasHardwareVolume reports whether this sink has hardware volume control. When
	// it does, Volume(f) applies it and the session sets its own software
	// gain to unity instead of attenuating in the stuffer.
	HasHardwareVolume() bool
	Volume(airplayVolume float64)
	Parameters() (Parameters, bool)
}

// DACBufferQueueMinimumLength is the minimum reported device queue depth
// below which stuffing is suppressed entirely — there isn't enough
// buffered audio left to safely insert or drop a sample.
const DACBufferQueueMinimumLength = 5000
