package matching

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hasher is the keyed 64-bit hash service (component A). The same digest
// primitive is reused for owner computation, sampling decisions, and
// priorities; callers distinguish purpose with a short tag so the three uses
// never collide on the same bit pattern for the same (eid, phase).
type Hasher struct{}

// h mixes a tag and a sequence of 64-bit words into one avalanched digest.
// Deterministic across workers and runs given the same inputs - this is the
// only source of "randomness" anywhere in the engine.
func (Hasher) h(tag string, words ...uint64) uint64 {
	var buf [8]byte
	d := xxhash.New()
	_, _ = d.Write([]byte(tag))
	for _, w := range words {
		binary.LittleEndian.PutUint64(buf[:], w)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// EdgeIDOf computes the symmetric eid for an unordered pair. Order of u, v
// must not affect the result - this is invariant I1 from the design.
func (hs Hasher) EdgeIDOf(u, v RawID) EdgeID {
	lo, hi := uint64(u), uint64(v)
	if lo > hi {
		lo, hi = hi, lo
	}
	return EdgeID(hs.h("eid", lo, hi))
}

// Owner maps a vertex to its owning worker.
func (hs Hasher) Owner(v RawID, p int) int {
	return int(hs.h("owner", uint64(v)) % uint64(p))
}

// EdgeOwner maps an eid to its owning worker.
func (hs Hasher) EdgeOwner(eid EdgeID, p int) int {
	return int(hs.h("edge_owner", uint64(eid)) % uint64(p))
}

// SampleDraw produces this phase's participation draw for an edge. The
// caller compares it against floor(p_phase * 2^64).
func (hs Hasher) SampleDraw(eid EdgeID, phase int) uint64 {
	return hs.h("sample", uint64(eid), uint64(phase))
}

// Priority produces the deterministic MIS tie-break key for an edge in a
// given phase.
func (hs Hasher) Priority(eid EdgeID, phase int) uint64 {
	return hs.h("priority", uint64(eid), uint64(phase))
}

// Threshold converts a sampling probability in [0,1] into the uint64 cutoff
// used against SampleDraw: include(e) iff SampleDraw(e) < Threshold(p).
func Threshold(p float64) uint64 {
	if p >= 1 {
		return ^uint64(0)
	}
	if p <= 0 {
		return 0
	}
	// Scaling by a power of two is exact in float64, and p < 1 keeps the
	// product below 2^64, so the conversion truncates to floor(p * 2^64).
	const scale = float64(1 << 64)
	return uint64(p * scale)
}
