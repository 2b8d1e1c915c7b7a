package resample

import "testing"

func TestStretchIdentityWhenSameLength(t *testing.T) {
	in := []int16{0, 0, 100, 200, 300, 400, 500, 600}
	out := make([]int16, len(in))
	Stretch(in, 4, out, 4)
	if out[0] != in[0] || out[len(out)-1] != in[len(in)-1] {
		t.Errorf("identity stretch should preserve endpoints: got %v", out)
	}
}

func TestStretchExpandsByOneFrame(t *testing.T) {
	in := []int16{0, 0, 100, 100, 200, 200, 300, 300}
	out := make([]int16, 10)
	Stretch(in, 4, out, 5)
	if out[0] != 0 || out[1] != 0 {
		t.Errorf("expected first output frame to match first input frame, got %v", out[:2])
	}
	if out[8] != 300 || out[9] != 300 {
		t.Errorf("expected last output frame to match last input frame, got %v", out[8:10])
	}
}

func TestStretchShrinksByOneFrame(t *testing.T) {
	in := []int16{0, 0, 100, 100, 200, 200, 300, 300}
	out := make([]int16, 6)
	Stretch(in, 4, out, 3)
	if out[0] != 0 || out[len(out)-2] != 300 || out[len(out)-1] != 300 {
		t.Errorf("expected endpoints preserved on shrink, got %v", out)
	}
}
