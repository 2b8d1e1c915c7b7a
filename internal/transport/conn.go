// ABOUTME: WebSocket carrier for audio frames and control/time-sync messages
// ABOUTME: Frames outbound audio as seq/ts/payload, relays resend/flush/time-sync JSON
package transport

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nyquist-audio/slaveplay/internal/seq"
)

// audioFrameType is the single binary message tag this carrier uses.
const audioFrameType = 0x00

// Config holds connection parameters for a client dial.
type Config struct {
	ServerAddr string // host:port
	Path       string // defaults to "/slaveplay"
}

// Conn wraps a gorilla/websocket connection carrying audio frames outbound
// and JSON control messages both ways.
type Conn struct {
	cfg  Config
	ws   *websocket.Conn
	wmu  sync.Mutex
	ctx  context.Context
	stop context.CancelFunc

	// Inbound channels; the caller drains these.
	AudioFrames chan AudioFrame
	ResendReqs  chan ResendRequest
	FlushReqs   chan FlushRequest
	ServerTimes chan ServerTime
	TimeAnchors chan TimeAnchor
	StreamAnnounces chan StreamAnnounce

	connected bool
	connMu    sync.RWMutex
}

// AudioFrame is one decoded-off-the-wire audio packet, still encrypted/
// encoded exactly as it arrived.
type AudioFrame struct {
	Sequence seq.Seq16
	Ts       seq.Ts32
	Payload  []byte
}

// ResendRequest asks the peer to retransmit a run of sequence numbers.
type ResendRequest struct {
	FirstSeq seq.Seq16 `json:"first_seq"`
	Count    int       `json:"count"`
}

// FlushRequest asks the receiver to discard audio up to Timestamp.
type FlushRequest struct {
	Timestamp uint32 `json:"timestamp"`
}

// ClientTime is the client->server leg of the time-sync exchange.
type ClientTime struct {
	T1 int64 `json:"t1"`
}

// ServerTime is the server's reply, carrying all three legs needed to
// compute offset and round-trip time.
type ServerTime struct {
	T1 int64 `json:"t1"`
	T2 int64 `json:"t2"`
	T3 int64 `json:"t3"`
}

// StreamAnnounce carries the format/encryption description for a stream
// the source is about to start sending, analogous to an RTSP ANNOUNCE.
type StreamAnnounce struct {
	Encrypted bool      `json:"encrypted"`
	AESKey    []byte    `json:"aes_key,omitempty"`
	AESIV     []byte    `json:"aes_iv,omitempty"`
	Fmtp      [12]int32 `json:"fmtp"`
}

// TimeAnchor is the periodic {media timestamp, sender wall clock} pairing
// the source broadcasts on its own cadence, independent of the client/time
// round trips. The receiver converts RemoteTime to a local instant using
// its current clock-offset estimate before publishing it as the anchor.
type TimeAnchor struct {
	ReferenceTs uint32 `json:"reference_ts"`
	RemoteTime  int64  `json:"remote_time"`
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dial opens a client-side connection and starts the read pump.
func Dial(cfg Config) (*Conn, error) {
	if cfg.Path == "" {
		cfg.Path = "/slaveplay"
	}
	u := url.URL{Scheme: "ws", Host: cfg.ServerAddr, Path: cfg.Path}

	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", u.String(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		cfg:         cfg,
		ws:          ws,
		ctx:         ctx,
		stop:        cancel,
		AudioFrames: make(chan AudioFrame, 256),
		ResendReqs:  make(chan ResendRequest, 16),
		FlushReqs:   make(chan FlushRequest, 4),
		ServerTimes:     make(chan ServerTime, 16),
		TimeAnchors:     make(chan TimeAnchor, 16),
		StreamAnnounces: make(chan StreamAnnounce, 4),
		connected:       true,
	}

	go c.readPump()
	return c, nil
}

// Accept wraps an already-upgraded server-side websocket connection.
func Accept(ws *websocket.Conn) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:          ws,
		ctx:         ctx,
		stop:        cancel,
		AudioFrames: make(chan AudioFrame, 256),
		ResendReqs:  make(chan ResendRequest, 16),
		FlushReqs:   make(chan FlushRequest, 4),
		ServerTimes:     make(chan ServerTime, 16),
		TimeAnchors:     make(chan TimeAnchor, 16),
		StreamAnnounces: make(chan StreamAnnounce, 4),
		connected:       true,
	}
	go c.readPump()
	return c
}

func (c *Conn) readPump() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			log.Printf("transport: read error: %v", err)
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.handleBinary(data)
		case websocket.TextMessage:
			c.handleJSON(data)
		}
	}
}

func (c *Conn) handleBinary(data []byte) {
	if len(data) < 7 || data[0] != audioFrameType {
		log.Printf("transport: malformed binary frame, len=%d", len(data))
		return
	}
	sequence := seq.Seq16(binary.BigEndian.Uint16(data[1:3]))
	ts := seq.Ts32(binary.BigEndian.Uint32(data[3:7]))
	payload := append([]byte(nil), data[7:]...)

	select {
	case c.AudioFrames <- AudioFrame{Sequence: sequence, Ts: ts, Payload: payload}:
	case <-c.ctx.Done():
	}
}

func (c *Conn) handleJSON(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("transport: malformed JSON message: %v", err)
		return
	}

	switch env.Type {
	case "resend/request":
		var r ResendRequest
		if err := json.Unmarshal(env.Payload, &r); err == nil {
			select {
			case c.ResendReqs <- r:
			case <-c.ctx.Done():
			}
		}
	case "control/flush":
		var f FlushRequest
		if err := json.Unmarshal(env.Payload, &f); err == nil {
			select {
			case c.FlushReqs <- f:
			case <-c.ctx.Done():
			}
		}
	case "server/time":
		var t ServerTime
		if err := json.Unmarshal(env.Payload, &t); err == nil {
			select {
			case c.ServerTimes <- t:
			case <-c.ctx.Done():
			}
		}
	case "time/anchor":
		var a TimeAnchor
		if err := json.Unmarshal(env.Payload, &a); err == nil {
			select {
			case c.TimeAnchors <- a:
			case <-c.ctx.Done():
			}
		}
	case "stream/announce":
		var s StreamAnnounce
		if err := json.Unmarshal(env.Payload, &s); err == nil {
			select {
			case c.StreamAnnounces <- s:
			case <-c.ctx.Done():
			}
		}
	default:
		log.Printf("transport: unhandled message type %q", env.Type)
	}
}

// SendAudioFrame writes one audio packet to the peer.
func (c *Conn) SendAudioFrame(sequence seq.Seq16, ts seq.Ts32, payload []byte) error {
	buf := make([]byte, 7+len(payload))
	buf[0] = audioFrameType
	binary.BigEndian.PutUint16(buf[1:3], uint16(sequence))
	binary.BigEndian.PutUint32(buf[3:7], uint32(ts))
	copy(buf[7:], payload)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteMessage(websocket.BinaryMessage, buf)
}

// SendResendRequest asks the peer to retransmit a run of packets.
func (c *Conn) SendResendRequest(firstSeq seq.Seq16, count int) error {
	return c.sendJSON("resend/request", ResendRequest{FirstSeq: firstSeq, Count: count})
}

// SendFlush notifies the peer to flush up to the given timestamp.
func (c *Conn) SendFlush(ts uint32) error {
	return c.sendJSON("control/flush", FlushRequest{Timestamp: ts})
}

// SendClientTime begins a time-sync round for clock offset estimation.
func (c *Conn) SendClientTime(t1 int64) error {
	return c.sendJSON("client/time", ClientTime{T1: t1})
}

// SendServerTime replies to a client/time request (server side).
func (c *Conn) SendServerTime(t ServerTime) error {
	return c.sendJSON("server/time", t)
}

// SendTimeAnchor broadcasts a media-timestamp/wall-clock pairing (server
// side), independent of the client/time probe cadence.
func (c *Conn) SendTimeAnchor(a TimeAnchor) error {
	return c.sendJSON("time/anchor", a)
}

// SendStreamAnnounce announces a new stream's format/encryption (server
// side), the trigger the receiver uses to start its session.
func (c *Conn) SendStreamAnnounce(a StreamAnnounce) error {
	return c.sendJSON("stream/announce", a)
}

func (c *Conn) sendJSON(msgType string, payload interface{}) error {
	c.connMu.RLock()
	connected := c.connected
	c.connMu.RUnlock()
	if !connected {
		return fmt.Errorf("transport: not connected")
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.ws.WriteJSON(struct {
		Type    string      `json:"type"`
		Payload interface{} `json:"payload"`
	}{Type: msgType, Payload: payload})
}

// Close tears down the connection; safe to call more than once.
func (c *Conn) Close() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if !c.connected {
		return
	}
	c.connected = false
	c.stop()
	c.ws.Close()
}

// IsConnected reports whether the underlying websocket is still open.
func (c *Conn) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// RunClockSync periodically sends client/time probes until ctx is done,
// spacing requests per interval (the teacher's client issues ad hoc
// probes; this carrier owns the cadence so session callers don't need a
// separate timer).
func (c *Conn) RunClockSync(ctx context.Context, interval time.Duration, now func() int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.SendClientTime(now()); err != nil {
				log.Printf("transport: client/time send failed: %v", err)
			}
		}
	}
}
