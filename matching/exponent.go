package matching

import (
	"sort"
)

// CandEntry is one candidate edge incident to the vertex keying it in
// CandIndex: its eid and the endpoint on the far side of that vertex.
type CandEntry struct {
	EID   EdgeID
	Other RawID
}

// Exponentiator builds B_R(e) for every non-stalled candidate in a batch by
// running R rounds of full-ball fan-out over the implicit sparsified line
// graph - no line graph is ever materialized; the vertex-owner join in each
// round is the adjacency oracle (component F).
type Exponentiator struct {
	hs Hasher
}

// RegisterRecords builds the candidate registration exchange, run once per
// batch: for every candidate edge (u,v), emit (eid, v) to owner(u) and
// (eid, u) to owner(v), the same shape as the sparsifier's degree probe.
// Before the batch's first round of ball growth, every vertex owner then
// holds the incidences of this batch's candidates and of the candidates
// registered by earlier batches of the same phase (CandIndex is only
// cleared per phase).
func (ex Exponentiator) RegisterRecords(s *WorkerStore, candidates []int) []Record {
	out := make([]Record, 0, 2*len(candidates))
	for _, pos := range candidates {
		e := s.Edges[pos]
		out = append(out, Record{Kind: KindCandReg, EID: e.ID, U: e.U, V: e.V})
		out = append(out, Record{Kind: KindCandReg, EID: e.ID, U: e.V, V: e.U})
	}
	return out
}

// AdoptRegistrations folds received candidate registrations into this
// worker's CandIndex, keyed by the vertex it owns.
func (ex Exponentiator) AdoptRegistrations(s *WorkerStore, recv []Record) {
	for _, r := range recv {
		s.CandIndex[r.U] = append(s.CandIndex[r.U], CandEntry{EID: r.EID, Other: r.V})
	}
}

// SeedBalls initializes B^0(e) = {e} for every candidate in the batch, the
// self-reference the ball treats as the MIS "self" node.
func (ex Exponentiator) SeedBalls(s *WorkerStore, candidates []int) {
	for _, pos := range candidates {
		e := s.Edges[pos]
		s.BallEndpoints[e.ID] = Edge{U: e.U, V: e.V}
		s.SetBall(pos, []EdgeID{e.ID}, ^uint64(0)) // seed is always size 1, budget check is trivial
	}
}

// FanoutRecords builds the Edge->Vertex fan-out for one round: for every
// candidate's current full ball, probe the vertex owners of every ball
// member's endpoints, excluding that member itself from its own answer.
func (ex Exponentiator) FanoutRecords(s *WorkerStore, candidates []int) []Record {
	out := make([]Record, 0, len(candidates)*4)
	for _, pos := range candidates {
		requester := s.Edges[pos].ID
		for _, f := range s.Ball(pos) {
			ep, ok := s.BallEndpoints[f]
			if !ok {
				continue // member without cached endpoints is skipped; no MissingEndpoint error is raised
			}
			out = append(out, Record{Kind: KindFanout, EID: requester, Other: f, U: ep.U})
			out = append(out, Record{Kind: KindFanout, EID: requester, Other: f, U: ep.V})
		}
	}
	return out
}

// ExpandVertex answers one round's fan-out probes with every candidate
// incident to the probed vertex other than the excluded member, tagged for
// return to the requesting edge's owner.
func (ex Exponentiator) ExpandVertex(s *WorkerStore, probes []Record) []Record {
	out := make([]Record, 0, len(probes))
	for _, probe := range probes {
		entries, ok := s.hotCache.Get(probe.U)
		if !ok {
			entries, ok = s.CandIndex[probe.U]
			if !ok {
				continue // vertex has no registered candidates this phase
			}
			s.hotCache.Add(probe.U, entries)
		}
		for _, cand := range entries {
			if cand.EID == probe.Other {
				continue // exclude the ball member that triggered this probe
			}
			out = append(out, Record{
				Kind:  KindBallReturn,
				EID:   probe.EID,
				Other: cand.EID,
				U:     probe.U,
				V:     cand.Other,
			})
		}
	}
	return out
}

// MergeResult reports the outcome of folding one round's return stream into
// a candidate's ball.
type MergeResult struct {
	Overflowed bool
	Missing    bool
}

// MergeReturns folds one round's Vertex->Edge return stream into each
// candidate's ball, maintaining sorted-dedup order, and enforces the S
// sparsity bound. Overflowing candidates are reported for adaptive backoff
// and their stored ball is left as it was; the caller marks them stalled
// and leaves them out of every later round.
func (ex Exponentiator) MergeReturns(s *WorkerStore, budgetS uint64, returns []Record) map[int]MergeResult {
	byRequester := make(map[EdgeID][]Record)
	for _, r := range returns {
		byRequester[r.EID] = append(byRequester[r.EID], r)
	}

	results := make(map[int]MergeResult)
	for requester, recs := range byRequester {
		pos, ok := s.IDToIndex[requester]
		if !ok {
			continue // requester was compacted or stalled mid-round; drop its return stream
		}
		current := s.Ball(pos)
		fresh := make([]EdgeID, 0, len(current)+len(recs))
		fresh = append(fresh, current...)
		for _, r := range recs {
			fresh = append(fresh, r.Other)
			s.BallEndpoints[r.Other] = Edge{U: r.U, V: r.V}
		}
		merged := sortDedup(fresh)

		if uint64(len(merged)) > budgetS {
			results[pos] = MergeResult{Overflowed: true}
			continue
		}
		s.SetBall(pos, merged, budgetS)
		results[pos] = MergeResult{}
	}
	return results
}

func sortDedup(xs []EdgeID) []EdgeID {
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	out := xs[:0]
	var last EdgeID
	first := true
	for _, x := range xs {
		if first || x != last {
			out = append(out, x)
			last = x
			first = false
		}
	}
	return out
}

// Batches partitions a phase's candidate positions into batches honoring
// |batch| * B_max <= S/c, per the batching discipline.
func Batches(candidates []int, batchSize int) [][]int {
	if batchSize <= 0 {
		batchSize = 1
	}
	out := make([][]int, 0, (len(candidates)+batchSize-1)/batchSize)
	for i := 0; i < len(candidates); i += batchSize {
		end := i + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		out = append(out, candidates[i:end])
	}
	return out
}
