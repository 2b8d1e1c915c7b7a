package stuff

import "testing"

func TestHighQualityZeroStuffIsIdentity(t *testing.T) {
	frameSize := 16
	in := make([]int16, 2*frameSize)
	for i := range in {
		in[i] = int16(i)
	}
	h := NewHighQuality()
	out := make([]int16, 2*(frameSize+1))
	n := h.Stuff(in, frameSize, out, 0)
	if n != frameSize {
		t.Fatalf("Stuff(0) = %d frames, want %d", n, frameSize)
	}
	for i := 0; i < 2*frameSize; i++ {
		if out[i] != in[i] {
			t.Errorf("sample %d: got %d want %d", i, out[i], in[i])
		}
	}
}

func TestHighQualityPreservesEdgesOnExpand(t *testing.T) {
	frameSize := 16
	in := make([]int16, 2*frameSize)
	for i := range in {
		in[i] = int16(i * 100)
	}
	h := NewHighQuality()
	out := make([]int16, 2*(frameSize+1))
	n := h.Stuff(in, frameSize, out, 1)
	if n != frameSize+1 {
		t.Fatalf("Stuff(+1) = %d frames, want %d", n, frameSize+1)
	}
	for i := 0; i < 2*gibbsMargin; i++ {
		if out[i] != in[i] {
			t.Errorf("leading edge sample %d: got %d want %d", i, out[i], in[i])
		}
	}
	outTail := 2 * (n - gibbsMargin)
	inTail := 2 * (frameSize - gibbsMargin)
	for i := 0; i < 2*gibbsMargin; i++ {
		if out[outTail+i] != in[inTail+i] {
			t.Errorf("trailing edge sample %d: got %d want %d", i, out[outTail+i], in[inTail+i])
		}
	}
}

func TestHighQualityPreservesEdgesOnShrink(t *testing.T) {
	frameSize := 16
	in := make([]int16, 2*frameSize)
	for i := range in {
		in[i] = int16(i * 100)
	}
	h := NewHighQuality()
	out := make([]int16, 2*(frameSize+1))
	n := h.Stuff(in, frameSize, out, -1)
	if n != frameSize-1 {
		t.Fatalf("Stuff(-1) = %d frames, want %d", n, frameSize-1)
	}
	for i := 0; i < 2*gibbsMargin; i++ {
		if out[i] != in[i] {
			t.Errorf("leading edge sample %d: got %d want %d", i, out[i], in[i])
		}
	}
	outTail := 2 * (n - gibbsMargin)
	inTail := 2 * (frameSize - gibbsMargin)
	for i := 0; i < 2*gibbsMargin; i++ {
		if out[outTail+i] != in[inTail+i] {
			t.Errorf("trailing edge sample %d: got %d want %d", i, out[outTail+i], in[inTail+i])
		}
	}
}

func TestHighQualityZeroStuffAppliesVolume(t *testing.T) {
	frameSize := 16
	in := make([]int16, 2*frameSize)
	for i := range in {
		in[i] = int16(10000 + i)
	}
	h := NewHighQuality()
	h.Vol.FixVolume = 0x8000 // half gain
	out := make([]int16, 2*(frameSize+1))
	n := h.Stuff(in, frameSize, out, 0)
	if n != frameSize {
		t.Fatalf("Stuff(0) = %d frames, want %d", n, frameSize)
	}
	for i := 0; i < 2*frameSize; i++ {
		if out[i] == in[i] {
			t.Errorf("sample %d: expected volume scaling to change %d, got unchanged copy", i, in[i])
		}
	}
	// A bare copy would leave every sample untouched; at half gain every
	// sample here must move, proving stuff==0 no longer bypasses Apply.
}

func TestHighQualitySkipsVolumeAtUnityGain(t *testing.T) {
	frameSize := 16
	in := make([]int16, 2*frameSize)
	for i := range in {
		in[i] = int16(1000 + i)
	}
	h := NewHighQuality()
	h.Vol.FixVolume = 0x10000
	out := make([]int16, 2*(frameSize+1))
	h.Stuff(in, frameSize, out, 1)
	// unity gain: edges must be byte-exact copies, not passed through Apply
	if out[0] != in[0] {
		t.Errorf("expected untouched edge sample at unity gain, got %d want %d", out[0], in[0])
	}
}
