package matching

import (
	"math/bits"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vamsianumula/sublinear-mpc-matching/enforce"
	"github.com/vamsianumula/sublinear-mpc-matching/utils"
)

// EdgeRec is the stable, fixed-order record for one edge owned by this
// worker. Active and Matched are the only fields that persist across
// phases; everything else phase-local lives in parallel slices indexed by
// the same local position so positions never need to carry extra payload.
type EdgeRec struct {
	U, V    RawID
	ID      EdgeID
	Active  bool
	Matched bool
}

// BallSpan is a (offset, length) window into the current batch's ball
// arena. Edges hold only this pair, never a pointer into the arena, so the
// arena can be released as one slice at batch end without walking anything
// that points into it.
type BallSpan struct {
	Offset, Length int
}

// WorkerStore owns one worker's slice of the graph: the edge array, the
// id-to-position map, the vertex CSR for owned vertices, and the
// phase/batch-scoped scratch state (component C).
type WorkerStore struct {
	Idx, P int
	hs     Hasher

	Edges     []EdgeRec
	IDToIndex map[EdgeID]int
	Active    utils.Bitmap // redundant fast-scan mirror of Edges[i].Active

	// Phase-local, rebuilt every phase.
	DegInSparse   []int32
	Participating []bool
	Stalled       []bool
	CandIndex     map[RawID][]CandEntry // vertex -> candidates incident to it, this phase

	// Batch-local ball storage, freed at batch end.
	Balls         map[int]BallSpan
	BallArena     []EdgeID
	BallEndpoints map[EdgeID]Edge // eid -> endpoints, for every eid ever seen in this batch's balls

	// Vertex CSR for vertices this worker owns, restricted to edges this
	// worker also owns (adjacency elsewhere is never cached, only resolved
	// through the fabric).
	VertexIDs     []RawID
	VertexIndex   map[RawID]int
	RowStart      []int32
	Neighbors     []int32 // local edge positions into Edges
	VertexMatched []bool

	// Bounded cache of recently-resolved vertex->incident-candidate lookups,
	// to skip repeat map probes for hot vertices within one exponentiation
	// batch. Never grows past a fixed capacity, so it cannot push the
	// worker's footprint past S.
	hotCache *lru.Cache[RawID, []CandEntry]
}

// NewWorkerStore allocates an empty store for worker idx of p.
func NewWorkerStore(idx, p, hotCacheSize int) *WorkerStore {
	cache, err := lru.New[RawID, []CandEntry](hotCacheSize)
	enforce.ENFORCE(err)
	return &WorkerStore{
		Idx:         idx,
		P:           p,
		IDToIndex:   make(map[EdgeID]int),
		VertexIndex: make(map[RawID]int),
		hotCache:    cache,
	}
}

// PlaceRecords converts this worker's raw ingested pairs into the one-round
// placement exchange that sends each edge to its deterministic eid owner.
func (s *WorkerStore) PlaceRecords(raws []Edge) []Record {
	out := make([]Record, 0, len(raws))
	for _, e := range raws {
		if e.U == e.V {
			continue // defensive: ingestion should already have dropped self-loops
		}
		out = append(out, Record{Kind: KindPlaceEdge, U: e.U, V: e.V})
	}
	return out
}

// AdoptPlacedEdges appends edges this worker was handed by the placement
// exchange into the stable array, defensively deduplicating by eid.
func (s *WorkerStore) AdoptPlacedEdges(recv []Record) {
	for _, r := range recv {
		eid := s.hs.EdgeIDOf(r.U, r.V)
		if _, ok := s.IDToIndex[eid]; ok {
			continue // defensive dedup; ingestion should not hand us parallel edges
		}
		pos := len(s.Edges)
		s.Edges = append(s.Edges, EdgeRec{U: r.U, V: r.V, ID: eid, Active: true})
		s.IDToIndex[eid] = pos
		s.Active.Set(uint32(pos))
	}
}

// BuildVertexCSR builds the local-only adjacency index for vertices this
// worker owns, from the edges now resident after placement.
func (s *WorkerStore) BuildVertexCSR() {
	buckets := make(map[RawID][]int32)
	touch := func(v RawID, pos int32) {
		if s.hs.Owner(v, s.P) == s.Idx {
			buckets[v] = append(buckets[v], pos)
		}
	}
	for i, e := range s.Edges {
		touch(e.U, int32(i))
		touch(e.V, int32(i))
	}

	s.VertexIDs = make([]RawID, 0, len(buckets))
	s.VertexIndex = make(map[RawID]int, len(buckets))
	s.RowStart = make([]int32, 0, len(buckets)+1)
	s.Neighbors = make([]int32, 0, len(s.Edges))
	s.VertexMatched = make([]bool, 0, len(buckets))

	s.RowStart = append(s.RowStart, 0)
	for v, positions := range buckets {
		s.VertexIndex[v] = len(s.VertexIDs)
		s.VertexIDs = append(s.VertexIDs, v)
		s.VertexMatched = append(s.VertexMatched, false)
		s.Neighbors = append(s.Neighbors, positions...)
		s.RowStart = append(s.RowStart, int32(len(s.Neighbors)))
	}
}

// ClearActive unsets the bitmap mirror for a deactivated edge. The mirror
// exists so ActiveFraction never has to walk the edge array.
func (s *WorkerStore) ClearActive(pos int) {
	idx := pos >> 6
	if idx >= len(s.Active) {
		return
	}
	s.Active[idx] &^= 1 << uint(pos%64)
}

// ActiveFraction reports the share of stored edges still active, via a
// popcount over the bitmap mirror, used to decide whether compaction is
// worthwhile between phases.
func (s *WorkerStore) ActiveFraction() float64 {
	if len(s.Edges) == 0 {
		return 1
	}
	active := 0
	for _, word := range s.Active {
		active += bits.OnesCount64(word)
	}
	return float64(active) / float64(len(s.Edges))
}

// CompactIfNeeded rebuilds the edge array and every derived index, dropping
// inactive edges, if the active fraction has fallen below threshold. Never
// called from inside a phase - positions must stay stable for a phase's
// duration (invariant I2).
func (s *WorkerStore) CompactIfNeeded(threshold float64) bool {
	if s.ActiveFraction() >= threshold {
		return false
	}
	kept := make([]EdgeRec, 0, len(s.Edges))
	for _, e := range s.Edges {
		if e.Active {
			kept = append(kept, e)
		}
	}
	s.Edges = kept
	s.IDToIndex = make(map[EdgeID]int, len(kept))
	s.Active.Zeroes()
	for i, e := range s.Edges {
		s.IDToIndex[e.ID] = i
		s.Active.Set(uint32(i))
	}
	s.BuildVertexCSR()
	return true
}

// ResetPhaseState clears every phase-local field ahead of a new phase.
func (s *WorkerStore) ResetPhaseState() {
	n := len(s.Edges)
	s.DegInSparse = make([]int32, n)
	s.Participating = make([]bool, n)
	s.Stalled = make([]bool, n)
	s.CandIndex = make(map[RawID][]CandEntry)
}

// AllocBallArena prepares fresh ball storage for a batch of the given
// candidate count, to be released with ReleaseBallArena at batch end.
func (s *WorkerStore) AllocBallArena(capacityHint int) {
	s.Balls = make(map[int]BallSpan, capacityHint)
	s.BallArena = make([]EdgeID, 0, capacityHint*4)
	s.BallEndpoints = make(map[EdgeID]Edge, capacityHint*4)
	s.hotCache.Purge()
}

// ReleaseBallArena frees the current batch's ball storage.
func (s *WorkerStore) ReleaseBallArena() {
	s.Balls = nil
	s.BallArena = nil
	s.BallEndpoints = nil
}

// SetBall stores a sorted, duplicate-free ball for the edge at local
// position pos, enforcing invariants P2/P3 (ball sortedness and the S
// sparsity bound) before committing it to the arena.
func (s *WorkerStore) SetBall(pos int, sortedBall []EdgeID, budgetS uint64) {
	enforce.ENFORCE(isSortedDedup(sortedBall), "ball not sorted/deduplicated", pos)
	enforce.ENFORCE(uint64(len(sortedBall)) <= budgetS, "ball exceeds budget", pos)
	offset := len(s.BallArena)
	s.BallArena = append(s.BallArena, sortedBall...)
	s.Balls[pos] = BallSpan{Offset: offset, Length: len(sortedBall)}
}

// Ball returns the stored ball for local position pos.
func (s *WorkerStore) Ball(pos int) []EdgeID {
	span, ok := s.Balls[pos]
	if !ok {
		return nil
	}
	return s.BallArena[span.Offset : span.Offset+span.Length]
}

func isSortedDedup(xs []EdgeID) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}
