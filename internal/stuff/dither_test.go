package stuff

import "testing"

func TestUnityGainIsIdentity(t *testing.T) {
	d := NewDitheredVolume()
	for _, s := range []int16{0, 1, -1, 32767, -32768, 12345} {
		if got := d.Apply(s); got != s {
			t.Errorf("Apply(%d) at unity gain = %d, want %d", s, got, s)
		}
	}
}

func TestZeroVolumeMutesTowardZero(t *testing.T) {
	d := NewDitheredVolume()
	d.FixVolume = 0
	for i := 0; i < 100; i++ {
		if got := d.Apply(30000); got > 1 || got < -1 {
			t.Errorf("Apply at zero gain should stay within dither noise of 0, got %d", got)
		}
	}
}

func TestFirstCallDoesNotExplodeFromUninitializedTap(t *testing.T) {
	d := NewDitheredVolume()
	d.FixVolume = 0x8000 // half gain, dither path active
	got := d.Apply(100)
	want := int16((int64(100)*0x8000 + int64(d.randA) - 0) >> 16)
	if got != want {
		t.Errorf("first dithered call = %d, want %d (randB should start at 0)", got, want)
	}
}
