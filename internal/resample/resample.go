// ABOUTME: Linear-interpolation resampler used by the high-quality stuffer to retime a frame
// ABOUTME: Adapted from a general sample-rate converter down to the one-shot, fixed-frame-count use the stuffer needs
package resample

// Stretch resamples in (inFrames stereo frames) to produce exactly outFrames
// stereo frames via linear interpolation, writing into out (which must have
// capacity for 2*outFrames samples). This is the one-shot retiming step
// behind the high-quality stuffer: inFrames and outFrames differ by the
// ±1-sample correction for one block, not a persistent rate conversion, so
// there is no carried fractional position between calls.
func Stretch(in []int16, inFrames int, out []int16, outFrames int) {
	if inFrames <= 1 || outFrames == 0 {
		for i := 0; i < outFrames*2 && i < len(out); i++ {
			out[i] = 0
		}
		return
	}

	ratio := float64(inFrames-1) / float64(outFrames-1)
	if outFrames == 1 {
		ratio = 0
	}

	for o := 0; o < outFrames; o++ {
		pos := ratio * float64(o)
		idx := int(pos)
		if idx >= inFrames-1 {
			idx = inFrames - 2
			pos = float64(inFrames - 1)
		}
		frac := pos - float64(idx)

		for ch := 0; ch < 2; ch++ {
			s1 := float64(in[idx*2+ch])
			s2 := float64(in[(idx+1)*2+ch])
			out[o*2+ch] = int16(s1*(1-frac) + s2*frac)
		}
	}
}
