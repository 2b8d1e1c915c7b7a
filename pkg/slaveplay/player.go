// ABOUTME: High-level facade wiring transport, anchor, sink, and the session core into a runnable player
// ABOUTME: Mirrors the shape of a typical streaming-receiver client API: Connect/Play/Stop/SetVolume/Close
package slaveplay

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/nyquist-audio/slaveplay/internal/anchor"
	"github.com/nyquist-audio/slaveplay/internal/fp"
	"github.com/nyquist-audio/slaveplay/internal/seq"
	"github.com/nyquist-audio/slaveplay/internal/session"
	"github.com/nyquist-audio/slaveplay/internal/sink"
	"github.com/nyquist-audio/slaveplay/internal/transport"
)

// Config holds facade-level configuration: the transport target plus a
// core session.Config to pass through unchanged.
type Config struct {
	ServerAddr string
	ClientName string
	Session    session.Config

	OnStateChange func(State)
	OnError       func(error)
}

// State is a coarse snapshot surfaced to callers (e.g. the stats TUI).
type State struct {
	Connected bool
	Playing   bool
}

// Player wires transport -> session.Session -> sink, and session.Session's
// resend requests back out through transport.
type Player struct {
	cfg    Config
	conn   *transport.Conn
	anchor *anchor.Anchor
	sess   *session.Session
	sink   sink.Sink

	state  State
	ctx    context.Context
	cancel context.CancelFunc

	clientID string
}

// resendBridge adapts transport.Conn to session.ResendRequester without
// the session package needing to know about transport.
type resendBridge struct {
	conn *transport.Conn
}

func (b resendBridge) RequestResend(firstSeq seq.Seq16, count int) {
	if err := b.conn.SendResendRequest(firstSeq, count); err != nil {
		log.Printf("slaveplay: resend request send failed: %v", err)
	}
}

// NewPlayer constructs a Player with an oto-backed sink and default session
// configuration, overridable via cfg.Session.
func NewPlayer(cfg Config) *Player {
	if cfg.ClientName == "" {
		cfg.ClientName = "slaveplay"
	}
	if cfg.Session.SampleRate == 0 {
		cfg.Session = session.DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Player{
		cfg:      cfg,
		anchor:   anchor.New(),
		sink:     sink.NewOto(false),
		ctx:      ctx,
		cancel:   cancel,
		clientID: uuid.New().String(),
	}
}

// Connect dials the source, starts the clock-sync loop, and wires the
// session core to the transport's inbound channels.
func (p *Player) Connect() error {
	conn, err := transport.Dial(transport.Config{ServerAddr: p.cfg.ServerAddr})
	if err != nil {
		return fmt.Errorf("slaveplay: connect: %w", err)
	}
	p.conn = conn

	p.sess = session.New(p.cfg.Session, p.sink, p.anchor, resendBridge{conn}, nil, log.Default())

	go p.pumpAudioFrames()
	go p.pumpFlushRequests()
	go p.pumpServerTimes()
	go p.pumpTimeAnchors()
	go p.pumpStreamAnnounces()
	go p.conn.RunClockSync(p.ctx, time.Second, func() int64 { return time.Now().UnixMicro() })

	p.state.Connected = true
	p.notifyState()
	return nil
}

// Play starts the session against the given stream format. Callers normally
// don't need to call this directly: pumpStreamAnnounces does it as soon as
// the source announces a stream. It's exported for tests and for sources
// that skip the announce handshake and pass a format in up front.
func (p *Player) Play(stream session.StreamConfig) error {
	if err := p.sess.Play(stream); err != nil {
		return err
	}
	p.state.Playing = true
	p.notifyState()
	return nil
}

// Stop halts playback but keeps the transport connection open.
func (p *Player) Stop() error {
	if p.sess == nil {
		return nil
	}
	err := p.sess.Stop()
	p.state.Playing = false
	p.notifyState()
	return err
}

// SetVolume forwards to the session's volume control (AirPlay-style value:
// -144 for mute, or in [-30, 0]).
func (p *Player) SetVolume(airplayVolume float64) {
	if p.sess != nil {
		p.sess.SetVolume(airplayVolume)
	}
}

// Close tears down the session and transport connection.
func (p *Player) Close() error {
	p.cancel()
	if p.sess != nil {
		p.sess.Stop()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.state.Connected = false
	p.state.Playing = false
	p.notifyState()
	return nil
}

// Status returns the last-known coarse state.
func (p *Player) Status() State { return p.state }

func (p *Player) pumpAudioFrames() {
	for {
		select {
		case f := <-p.conn.AudioFrames:
			p.sess.PutPacket(f.Sequence, f.Ts, f.Payload)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Player) pumpFlushRequests() {
	for {
		select {
		case f := <-p.conn.FlushReqs:
			p.sess.Flush(seq.Ts32(f.Timestamp))
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Player) pumpServerTimes() {
	for {
		select {
		case t := <-p.conn.ServerTimes:
			t4 := time.Now().UnixMicro()
			p.anchor.ObserveClockSample(t.T1, t.T2, t.T3, t4)
		case <-p.ctx.Done():
			return
		}
	}
}

// pumpTimeAnchors converts each broadcast {reference_ts, remote_time} pair
// into a local anchor point using the clock-sync offset estimate, then
// publishes it for the session's egress loop to read.
func (p *Player) pumpTimeAnchors() {
	for {
		select {
		case a := <-p.conn.TimeAnchors:
			localMicros := a.RemoteTime - p.anchor.Offset()
			// Re-express the local instant on fp.Now's process-relative
			// time base, the clock the egress loop compares anchors against.
			age := time.Duration(time.Now().UnixMicro()-localMicros) * time.Microsecond
			var localTime fp.Time
			if age >= 0 {
				localTime = fp.Time(fp.Now().Sub(fp.FromDuration(age)))
			} else {
				localTime = fp.Now().Add(fp.FromDuration(-age))
			}
			remoteTime := fp.FromDuration(time.Duration(a.RemoteTime) * time.Microsecond)
			p.anchor.Publish(seq.Ts32(a.ReferenceTs), localTime, remoteTime)
		case <-p.ctx.Done():
			return
		}
	}
}

// pumpStreamAnnounces starts playback the moment the source announces a
// stream's format and encryption key, the receiver-side trigger equivalent
// to the reference player's RTSP ANNOUNCE/RECORD handling.
func (p *Player) pumpStreamAnnounces() {
	for {
		select {
		case a := <-p.conn.StreamAnnounces:
			stream := session.StreamConfig{
				Encrypted: a.Encrypted,
				Fmtp:      a.Fmtp,
			}
			copy(stream.AESKey[:], a.AESKey)
			copy(stream.AESIV[:], a.AESIV)
			if err := p.Play(stream); err != nil {
				if p.cfg.OnError != nil {
					p.cfg.OnError(fmt.Errorf("slaveplay: stream announce rejected: %w", err))
				}
			}
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Player) notifyState() {
	if p.cfg.OnStateChange != nil {
		p.cfg.OnStateChange(p.state)
	}
}
