package stats

import "testing"

func TestSnapshotEmptyIsZero(t *testing.T) {
	a := NewAccumulator(1024)
	r := a.Snapshot()
	if r.MeanSyncError != 0 || r.CorrectionPPM != 0 {
		t.Errorf("expected zero snapshot before any observation, got %+v", r)
	}
}

func TestObserveAccumulatesMean(t *testing.T) {
	a := NewAccumulator(1024)
	for i := 0; i < 10; i++ {
		a.Observe(100, 0)
	}
	r := a.Snapshot()
	if r.MeanSyncError != 100 {
		t.Errorf("MeanSyncError = %v, want 100", r.MeanSyncError)
	}
}

func TestWindowEvictsOldestBeyondTrendInterval(t *testing.T) {
	a := NewAccumulator(1024)
	for i := 0; i < TrendInterval; i++ {
		a.Observe(0, 0)
	}
	if a.Count() != TrendInterval {
		t.Fatalf("Count() = %d, want %d", a.Count(), TrendInterval)
	}
	a.Observe(1000, 0)
	if a.Count() != TrendInterval {
		t.Fatalf("Count() after overflow = %d, want %d (oldest should be evicted)", a.Count(), TrendInterval)
	}
	r := a.Snapshot()
	if r.MeanSyncError <= 0 {
		t.Errorf("expected the new large sample to pull the mean up, got %v", r.MeanSyncError)
	}
}

func TestCorrectionPPMReflectsFramesPerPacket(t *testing.T) {
	a := NewAccumulator(1024)
	a.Observe(0, 1)
	r := a.Snapshot()
	want := 1.0 * 1_000_000 / FramesPerPacket
	if r.CorrectionPPM != want {
		t.Errorf("CorrectionPPM = %v, want %v", r.CorrectionPPM, want)
	}
}

func TestInsertionsAndDeletionsBothCountPositive(t *testing.T) {
	a := NewAccumulator(1024)
	a.Observe(0, 1)
	a.Observe(0, -1)
	r := a.Snapshot()
	want := 2.0 * 1_000_000 / FramesPerPacket / 2 // mean over 2 samples
	if r.InsertionsDeletionsPPM != want {
		t.Errorf("InsertionsDeletionsPPM = %v, want %v", r.InsertionsDeletionsPPM, want)
	}
}

func TestDriftIsZeroOnFirstSample(t *testing.T) {
	a := NewAccumulator(1024)
	a.Observe(500, 1)
	r := a.Snapshot()
	if r.MeanDriftPPM != 0 {
		t.Errorf("first sample's drift should be 0, got %v", r.MeanDriftPPM)
	}
}

func TestBufferOccupancyMinMaxTracking(t *testing.T) {
	a := NewAccumulator(1024)
	a.ObserveBufferOccupancy(10)
	a.ObserveBufferOccupancy(500)
	a.ObserveBufferOccupancy(3)
	if a.MinBufferOccupancy != 3 {
		t.Errorf("MinBufferOccupancy = %d, want 3", a.MinBufferOccupancy)
	}
	if a.MaxBufferOccupancy != 500 {
		t.Errorf("MaxBufferOccupancy = %d, want 500", a.MaxBufferOccupancy)
	}
}

func TestResetIntervalRestoresExtrema(t *testing.T) {
	a := NewAccumulator(1024)
	a.ObserveBufferOccupancy(999)
	a.ObserveDACQueueSize(5)
	a.ResetInterval(1024)
	if a.MaxBufferOccupancy != 0 {
		t.Errorf("expected max occupancy reset to 0, got %d", a.MaxBufferOccupancy)
	}
	if a.MinBufferOccupancy != 1024 {
		t.Errorf("expected min occupancy reset to buffer size, got %d", a.MinBufferOccupancy)
	}
	if a.MinDACQueueSize != 1_000_000 {
		t.Errorf("expected DAC queue min reset to sentinel, got %d", a.MinDACQueueSize)
	}
}
