package anchor

import (
	"testing"

	"github.com/nyquist-audio/slaveplay/internal/fp"
)

func TestGetBeforePublishIsInvalid(t *testing.T) {
	a := New()
	snap := a.Get()
	if snap.Valid {
		t.Error("expected no anchor before the first Publish")
	}
}

func TestPublishThenGetRoundTrips(t *testing.T) {
	a := New()
	lt := fp.FromDuration(0)
	a.Publish(10000, lt, lt)
	snap := a.Get()
	if !snap.Valid {
		t.Fatal("expected anchor valid after Publish")
	}
	if snap.ReferenceTs != 10000 {
		t.Errorf("ReferenceTs = %d, want 10000", snap.ReferenceTs)
	}
}

func TestObserveClockSampleBootstrapsOffset(t *testing.T) {
	a := New()
	// t2,t3 both 1000μs ahead of t1,t4: offset = ((t2-t1)+(t3-t4))/2 = 1000.
	a.ObserveClockSample(0, 1000, 1000, 0)
	if got := a.Offset(); got != 1000 {
		t.Errorf("Offset() after first sample = %d, want 1000", got)
	}
}

func TestObserveClockSampleDiscardsHighRTT(t *testing.T) {
	a := New()
	// rtt = (t4-t1)-(t3-t2) = (200000-0)-(0-0) = 200000, over the 100ms cutoff.
	a.ObserveClockSample(0, 0, 0, 200_000)
	if a.Offset() != 0 {
		t.Errorf("expected high-RTT sample to be discarded, got offset %d", a.Offset())
	}
}
