// ABOUTME: Resampling-based stuffer: retimes a whole frame instead of splicing one sample
// ABOUTME: Edge samples are copied through raw to suppress Gibbs ringing at the block boundary
package stuff

import "github.com/nyquist-audio/slaveplay/internal/resample"

// gibbsMargin is the number of stereo samples at each edge of the block
// copied through unresampled, matching the reference player's soxr stuffer.
const gibbsMargin = 5

// HighQuality implements the resampling-based stuffer. Unlike Basic, it
// retimes the whole frame via linear interpolation rather than splicing a
// single inserted or dropped sample, then restores the first and last
// gibbsMargin stereo samples verbatim from the input to suppress ringing at
// the block edges.
type HighQuality struct {
	Vol *DitheredVolume
}

// NewHighQuality returns a HighQuality stuffer with its own unity-gain
// volume state.
func NewHighQuality() *HighQuality {
	return &HighQuality{Vol: NewDitheredVolume()}
}

// Stuff writes frameSize+stuff stereo frames to out. out must have capacity
// for 2*(frameSize+1) samples. On the stuff==0 path every sample passes
// through h.Vol.Apply, the same as Basic.Stuff, so a turned-down gain is
// never skipped. On the ±1 path the output, edges included, passes through
// h.Vol.Apply only when FixVolume is not unity; at unity gain the edge
// samples are exact copies of the input.
func (h *HighQuality) Stuff(in []int16, frameSize int, out []int16, stuff int) int {
	if stuff < -1 || stuff > 1 {
		panic("stuff: amount must be -1, 0, or 1")
	}

	outFrames := frameSize + stuff
	if stuff == 0 {
		for i := 0; i < 2*frameSize; i++ {
			out[i] = h.Vol.Apply(in[i])
		}
		return frameSize
	}

	resample.Stretch(in, frameSize, out, outFrames)

	margin := gibbsMargin
	if margin > frameSize {
		margin = frameSize
	}
	if margin > outFrames {
		margin = outFrames
	}

	// Copy the leading margin stereo frames through raw.
	copy(out[:2*margin], in[:2*margin])

	// Copy the trailing margin stereo frames through raw. Advance both
	// pointers by element count (stereo samples), not by a byte-sized
	// stride against an already-element-typed slice — the reference
	// player's soxr stuffer scaled this offset by sizeof(short) against a
	// short* and walked off past the intended edge.
	outTail := 2 * (outFrames - margin)
	inTail := 2 * (frameSize - margin)
	copy(out[outTail:outTail+2*margin], in[inTail:inTail+2*margin])

	if h.Vol.FixVolume != 0x10000 {
		for i := 0; i < 2*outFrames; i++ {
			out[i] = h.Vol.Apply(out[i])
		}
	}

	return outFrames
}
