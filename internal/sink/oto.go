// ABOUTME: oto/v3-backed Sink implementation feeding a persistent player through a pipe
// ABOUTME: Adapted from the teacher's pkg/audio/output Oto backend, narrowed to the int16 stereo contract this player uses
package sink

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/ebitengine/oto/v3"
)

const bytesPerFrame = 4 // stereo, 16-bit

// Oto plays interleaved stereo int16 PCM through the oto/v3 library. Like
// the reference player's ALSA/CoreAudio backends, delay() reports frames
// still queued in the device rather than an estimate, since the sync loop's
// correction math depends on that being close to exact.
type Oto struct {
	ctx        context.Context
	cancel     context.CancelFunc
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	sampleRate int
	hwVolume   bool
	params     Parameters
}

// NewOto returns an unopened oto sink. hwVolume reports whether this
// backend exposes hardware volume control; the reference player has none
// on the common desktop outputs, so this defaults to false in practice.
func NewOto(hwVolume bool) *Oto {
	return &Oto{hwVolume: hwVolume}
}

func (o *Oto) Start(sampleRate int) error {
	if o.otoCtx != nil && o.sampleRate == sampleRate {
		return nil
	}
	if o.otoCtx != nil {
		return fmt.Errorf("sink: oto does not support reinitializing at a different sample rate (%d -> %d)", o.sampleRate, sampleRate)
	}

	o.ctx, o.cancel = context.WithCancel(context.Background())

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}
	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("sink: oto.NewContext: %w", err)
	}
	<-ready

	o.otoCtx = otoCtx
	o.sampleRate = sampleRate
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()

	log.Printf("sink: audio output started at %d Hz", sampleRate)
	return nil
}

func (o *Oto) Stop() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.otoCtx = nil
	}
	if o.cancel != nil {
		o.cancel()
	}
	return nil
}

func (o *Oto) Play(samples []int16) error {
	if o.player == nil {
		return fmt.Errorf("sink: play called before start")
	}
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	if _, err := o.pipeWriter.Write(out); err != nil {
		return fmt.Errorf("sink: pipe write: %w", err)
	}
	return nil
}

// Flush drops whatever is buffered in the player that hasn't reached the
// device yet. oto has no discard primitive, so this recreates the player
// against a fresh pipe, discarding anything still in flight.
func (o *Oto) Flush() error {
	if o.player == nil {
		return nil
	}
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
	}
	o.player.Close()
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = o.otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	return nil
}

// Delay reports frames currently buffered in the player, or -1 if the sink
// isn't open.
func (o *Oto) Delay() (int64, error) {
	if o.player == nil {
		return -1, fmt.Errorf("sink: delay called before start")
	}
	return int64(o.player.BufferedSize()) / bytesPerFrame, nil
}

func (o *Oto) HasHardwareVolume() bool { return o.hwVolume }

func (o *Oto) Volume(airplayVolume float64) {
	o.params.AirplayVolume = airplayVolume
	o.params.Valid = true
}

func (o *Oto) Parameters() (Parameters, bool) {
	return o.params, o.params.Valid
}
