package matching

import "testing"

func Test_EdgeIDSymmetric(t *testing.T) {
	hs := Hasher{}
	a := hs.EdgeIDOf(RawID(3), RawID(9))
	b := hs.EdgeIDOf(RawID(9), RawID(3))
	if a != b {
		t.Error("eid not symmetric under endpoint order", a, b)
	}
}

func Test_EdgeIDDistinctForDistinctPairs(t *testing.T) {
	hs := Hasher{}
	a := hs.EdgeIDOf(RawID(1), RawID(2))
	b := hs.EdgeIDOf(RawID(1), RawID(3))
	if a == b {
		t.Error("distinct pairs collided", a)
	}
}

func Test_ThresholdBounds(t *testing.T) {
	if Threshold(0) != 0 {
		t.Error("p=0 should give zero threshold")
	}
	if Threshold(1) != ^uint64(0) {
		t.Error("p=1 should give max threshold")
	}
	if Threshold(2) != ^uint64(0) {
		t.Error("p>1 should clamp to max threshold")
	}
	if Threshold(-1) != 0 {
		t.Error("p<0 should clamp to zero threshold")
	}
}

func Test_OwnerDeterministic(t *testing.T) {
	hs := Hasher{}
	v := RawID(42)
	first := hs.Owner(v, 8)
	for i := 0; i < 10; i++ {
		if hs.Owner(v, 8) != first {
			t.Error("owner not deterministic across calls")
		}
	}
}

func Test_PriorityDeterministicPerPhase(t *testing.T) {
	hs := Hasher{}
	eid := hs.EdgeIDOf(RawID(1), RawID(2))
	p0a := hs.Priority(eid, 0)
	p0b := hs.Priority(eid, 0)
	if p0a != p0b {
		t.Error("priority not deterministic within a phase")
	}
}
