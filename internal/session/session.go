// ABOUTME: The slave-clocked playback core: cursors, ring, flush/preroll state machines, and lifecycle
// ABOUTME: One Session is constructed at play() and torn down at stop(); no process-wide singletons
package session

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"

	"github.com/nyquist-audio/slaveplay/internal/anchor"
	"github.com/nyquist-audio/slaveplay/internal/codec"
	"github.com/nyquist-audio/slaveplay/internal/fp"
	"github.com/nyquist-audio/slaveplay/internal/ring"
	"github.com/nyquist-audio/slaveplay/internal/seq"
	"github.com/nyquist-audio/slaveplay/internal/sink"
	"github.com/nyquist-audio/slaveplay/internal/stats"
	"github.com/nyquist-audio/slaveplay/internal/stuff"
)

// ResendRequester enqueues a best-effort resend request; no ack expected.
type ResendRequester interface {
	RequestResend(firstSeq seq.Seq16, count int)
}

// noopResender is used when no resend channel is wired in (e.g. tests).
type noopResender struct{}

func (noopResender) RequestResend(seq.Seq16, int) {}

// Session is the slave-clocked playback core. All cursor and ring state is
// reached only through this struct — no package-level mutable state.
type Session struct {
	cfg    Config
	logger *log.Logger

	ringBuf   *ring.Ring
	sink      sink.Sink
	anchor    *anchor.Anchor
	resend    ResendRequester
	decryptor *codec.Decryptor
	decoder   codec.Decoder

	basicStuffer *stuff.Basic
	hqStuffer    *stuff.HighQuality
	statsAcc     *stats.Accumulator

	// now is the session's time source; overridden in tests for
	// deterministic egress-loop behavior.
	now func() fp.Time

	abMutex               sync.Mutex
	abCond                *sync.Cond
	abRead                seq.Seq16
	abWrite               seq.Seq16
	abSynced              bool
	abBuffering           bool
	firstPacketTimestamp  seq.Ts32
	firstPacketTimeToPlay fp.Time
	timeOfLastAudioPacket fp.Time
	packetCount           uint64
	lastSeqnoRead         int32 // -1 sentinel: "no expectation yet"
	missingPackets        uint64
	latePackets           uint64
	tooLatePackets        uint64
	resendRequests        uint64
	connectionStateOn     bool

	flushMutex        sync.Mutex
	flushRequested    bool
	flushRTPTimestamp seq.Ts32

	volMutex            sync.Mutex
	softwareMixerVolume float64
	fixVolume           int64

	playSegmentReferenceFrame seq.Ts32
	resyncOutOfBoundsCount    int

	rateLimitRand func() int // returns [0,1000)

	pleaseStop bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
}

// New constructs a Session with the given config and collaborators.
// resendRequester and decoder may be nil, in which case a no-op resender
// and the reference PCM decoder are used.
func New(cfg Config, sinkImpl sink.Sink, anchorImpl *anchor.Anchor, resendRequester ResendRequester, decoder codec.Decoder, logger *log.Logger) *Session {
	if resendRequester == nil {
		resendRequester = noopResender{}
	}
	if decoder == nil {
		decoder = codec.ReferencePCMDecoder{}
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &Session{
		cfg:                 cfg,
		logger:              logger,
		sink:                sinkImpl,
		anchor:              anchorImpl,
		resend:              resendRequester,
		decoder:             decoder,
		basicStuffer:        stuff.NewBasic(func(n int) int { return rand.Intn(n) }),
		hqStuffer:           stuff.NewHighQuality(),
		statsAcc:            stats.NewAccumulator(int32(cfg.BufferFrames)),
		now:                 fp.Now,
		lastSeqnoRead:       -1,
		softwareMixerVolume: 1.0,
		fixVolume:           0x10000,
		connectionStateOn:   true,
		rateLimitRand:       func() int { return rand.Intn(1000) },
	}
	s.abCond = sync.NewCond(&s.abMutex)
	return s
}

// Play installs the stream's decryption key (if encrypted), validates the
// format vector, allocates the ring, starts the sink, and spawns the
// egress loop. It returns an error for a malformed stream (fatal per the
// error taxonomy): sample size != 16, or a buffer_start_fill exceeding
// ring capacity.
func (s *Session) Play(stream StreamConfig) error {
	if stream.Fmtp[3] != 16 {
		return fmt.Errorf("session: unsupported sample size %d, only 16-bit PCM is supported", stream.Fmtp[3])
	}
	frameSize := int(stream.Fmtp[1])
	if frameSize <= 0 {
		frameSize = s.cfg.FrameSize
	}
	sampleRate := int(stream.Fmtp[11])
	if sampleRate <= 0 {
		sampleRate = s.cfg.SampleRate
	}
	s.cfg.FrameSize = frameSize
	s.cfg.SampleRate = sampleRate

	if s.cfg.BufferStartFill > s.cfg.BufferFrames {
		return fmt.Errorf("session: buffer_start_fill %d exceeds buffer capacity %d", s.cfg.BufferStartFill, s.cfg.BufferFrames)
	}

	if stream.Encrypted {
		s.decryptor = codec.NewDecryptor(stream.AESKey, stream.AESIV)
	} else {
		s.decryptor = nil
	}

	s.ringBuf = ring.New(s.cfg.BufferFrames, frameSize)

	s.abMutex.Lock()
	s.abRead = 0
	s.abWrite = 0
	s.abSynced = false
	s.abBuffering = true
	s.firstPacketTimestamp = 0
	s.firstPacketTimeToPlay = 0
	s.timeOfLastAudioPacket = 0
	s.lastSeqnoRead = -1
	s.connectionStateOn = true
	s.abMutex.Unlock()

	if err := s.sink.Start(sampleRate); err != nil {
		return fmt.Errorf("session: sink start: %w", err)
	}

	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.pleaseStop = false
	s.started = true

	go s.egressLoop()
	go s.waitTimerLoop()

	return nil
}

// Stop halts the egress loop, stops the sink, and releases the ring.
func (s *Session) Stop() error {
	if !s.started {
		return nil
	}
	s.abMutex.Lock()
	s.pleaseStop = true
	s.abCond.Broadcast()
	s.abMutex.Unlock()
	close(s.stopCh)
	<-s.doneCh

	err := s.sink.Stop()
	s.ringBuf = nil
	s.started = false
	return err
}

// Flush requests a flush up to the given media timestamp (§4.D, trigger i).
func (s *Session) Flush(ts seq.Ts32) {
	s.flushMutex.Lock()
	s.flushRequested = true
	s.flushRTPTimestamp = ts
	s.flushMutex.Unlock()
	s.playSegmentReferenceFrame = 0

	s.abMutex.Lock()
	s.abCond.Broadcast()
	s.abMutex.Unlock()
}

// SetConnectionState toggles connection_state_to_output; turning it off
// triggers a flush per §4.D trigger (ii).
func (s *Session) SetConnectionState(on bool) {
	s.abMutex.Lock()
	s.connectionStateOn = on
	s.abMutex.Unlock()
	if !on {
		s.Flush(0)
	}
}

// SetVolume implements player_volume (§4.I). airplayVolume is the AirPlay
// protocol's volume value: -144 (mute) or in [-30, 0].
func (s *Session) SetVolume(airplayVolume float64) {
	var linear float64
	if s.sink.HasHardwareVolume() {
		s.sink.Volume(airplayVolume)
		linear = 1.0
	} else {
		scaledCentiDB := vol2attn(airplayVolume, 0, -4810)
		linear = math.Pow(10, scaledCentiDB/1000)
		if airplayVolume == -144.0 {
			linear = 0.0
		}
	}

	s.volMutex.Lock()
	s.softwareMixerVolume = linear
	s.fixVolume = int64(65536.0*linear + 0.5)
	s.volMutex.Unlock()

	s.basicStuffer.Vol.FixVolume = s.fixVolume
	s.hqStuffer.Vol.FixVolume = s.fixVolume
}

// vol2attn maps an AirPlay volume f (in [-30, 0], or -144 for mute) to an
// attenuation in centi-dB between maxDB and minDB, linear on the slider.
func vol2attn(f, maxDB, minDB float64) float64 {
	if f <= -30.0 {
		return minDB
	}
	if f >= 0.0 {
		return maxDB
	}
	return maxDB + (f/-30.0)*(minDB-maxDB)
}
