// ABOUTME: Wrap-safe sequence arithmetic for 16-bit packet sequence numbers and 32-bit media timestamps
// ABOUTME: Never mix signed and unsigned comparisons outside this package
package seq

// Seq16 is a 16-bit wrapping packet sequence number.
type Seq16 uint16

// Successor returns s+1 mod 2^16.
func Successor(s Seq16) Seq16 { return s + 1 }

// Predecessor returns s-1 mod 2^16.
func Predecessor(s Seq16) Seq16 { return s - 1 }

// Sum returns (a+b) mod 2^16.
func Sum(a Seq16, b int32) Seq16 { return a + Seq16(uint16(b)) }

// Ordinate computes the distance of x from the moving origin (ab_read),
// coerced to a signed value. Every caller must be holding the same lock
// that protects the origin (the session's cursor mutex) for the duration
// of the computation, since x and origin are sampled separately by design
// here but must reflect a single consistent snapshot.
func Ordinate(origin, x Seq16) int32 {
	t := int32(uint16(x - origin))
	if t >= 32767 {
		t -= 65536
	}
	return t
}

// Order reports whether b is strictly "after" a relative to origin, i.e.
// Ordinate(b) > Ordinate(a).
func Order(origin, a, b Seq16) bool {
	return Ordinate(origin, b)-Ordinate(origin, a) > 0
}

// Diff returns Ordinate(origin, b) - Ordinate(origin, a), the wrapped
// distance between two sequence numbers as seen from origin. Call sites
// pass ab_read as origin regardless of which of a/b happens to equal it.
func Diff(origin, a, b Seq16) int32 {
	return Ordinate(origin, b) - Ordinate(origin, a)
}

// Ts32 is a 32-bit wrapping media timestamp (one stereo frame per unit).
type Ts32 uint32

// Order32 reports whether b is strictly after a, assuming the gap between
// neighbors never reaches 2^31 — "after" means bit 31 of (b-a) is clear.
func Order32(a, b Ts32) bool {
	if a == b {
		return false
	}
	return int32(uint32(b)-uint32(a)) > 0
}
