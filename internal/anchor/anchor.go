// ABOUTME: Timing-anchor provider: maps a source media timestamp to a local clock instant, with drift tracking
// ABOUTME: Adapted from the teacher's ClockSync NTP-style offset/drift estimator, scoped to one session instead of a process-wide singleton
package anchor

import (
	"sync"
	"time"

	"github.com/nyquist-audio/slaveplay/internal/fp"
	"github.com/nyquist-audio/slaveplay/internal/seq"
)

func microsDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// Anchor publishes the most recent {reference_ts, reference_local_time}
// pair from the timing channel. The core only ever reads it; a separate
// collaborator (the clock sync exchange over the control channel) is the
// sole writer. ts == 0 on a fresh Anchor means no anchor has arrived yet.
type Anchor struct {
	mu          sync.RWMutex
	referenceTs seq.Ts32
	referenceLT fp.Time
	remoteTime  fp.Time
	haveAnchor  bool

	offset        int64 // server - client, microseconds
	drift         float64
	lastSyncLocal fp.Time
	sampleCount   int
	smoothingRate float64
}

// New returns an anchor with no reference point yet and the teacher's 10%
// smoothing weight on new clock-offset samples.
func New() *Anchor {
	return &Anchor{smoothingRate: 0.1}
}

// Snapshot is the atomic read the sync loop takes each iteration: both
// fields must come from the same Publish call, never assembled from two
// separate locked reads.
type Snapshot struct {
	ReferenceTs        seq.Ts32
	ReferenceLocalTime fp.Time
	RemoteTime         fp.Time
	Valid              bool
}

// Get returns the most recently published anchor point.
func (a *Anchor) Get() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		ReferenceTs:        a.referenceTs,
		ReferenceLocalTime: a.referenceLT,
		RemoteTime:         a.remoteTime,
		Valid:              a.haveAnchor,
	}
}

// Publish installs a new reference point from the timing channel, e.g. an
// RTP sync packet or the resonate-style anchor broadcast.
func (a *Anchor) Publish(referenceTs seq.Ts32, referenceLocalTime, remoteTime fp.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.referenceTs = referenceTs
	a.referenceLT = referenceLocalTime
	a.remoteTime = remoteTime
	a.haveAnchor = true
}

// ObserveClockSample feeds one round-trip clock-offset measurement (t1..t4
// in local microseconds, matching a client/time + server/time exchange)
// into the drift-tracking estimator, the same two-stage bootstrap-then-
// Kalman-style update the teacher's ClockSync performs.
func (a *Anchor) ObserveClockSample(t1, t2, t3, t4 int64) {
	rtt, measured := calculateOffset(t1, t2, t3, t4)

	a.mu.Lock()
	defer a.mu.Unlock()

	if rtt > 100_000 {
		return
	}

	if a.sampleCount == 0 {
		a.offset = measured
		a.lastSyncLocal = fp.FromDuration(microsDuration(t4))
		a.sampleCount++
		return
	}

	if a.sampleCount == 1 {
		dt := float64(t4) - float64(a.lastSyncLocal.ToDuration().Microseconds())
		if dt > 0 {
			a.drift = float64(measured-a.offset) / dt
		}
		a.offset = measured
		a.lastSyncLocal = fp.FromDuration(microsDuration(t4))
		a.sampleCount++
		return
	}

	lastMicros := a.lastSyncLocal.ToDuration().Microseconds()
	dt := float64(t4 - lastMicros)
	if dt <= 0 {
		return
	}

	predicted := a.offset + int64(a.drift*dt)
	residual := measured - predicted
	if residual > 50_000 || residual < -50_000 {
		return
	}

	a.offset = predicted + int64(a.smoothingRate*float64(residual))
	a.drift += a.smoothingRate * (float64(residual) / dt)
	a.lastSyncLocal = fp.FromDuration(microsDuration(t4))
	a.sampleCount++
}

// Offset returns the current clock offset estimate in microseconds
// (positive means the remote clock is ahead).
func (a *Anchor) Offset() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.offset
}

// Drift returns the current clock drift estimate (remote seconds per local
// second, minus one).
func (a *Anchor) Drift() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.drift
}

func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	rtt = (t4 - t1) - (t3 - t2)
	offset = ((t2 - t1) + (t3 - t4)) / 2
	return
}
