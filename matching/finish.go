package matching

import "github.com/vamsianumula/sublinear-mpc-matching/utils"

// finishItem is one residual edge ordered for sequential greedy matching,
// implementing utils.PQI so the gather strategy can reuse the generic heap
// rather than a bespoke sort.
type finishItem struct {
	EID      EdgeID
	U, V     RawID
	priority uint64
}

func (a finishItem) Less(b finishItem) bool {
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.EID < b.EID
}

// Finisher takes over once the globally reduced active-edge count falls
// below SMALL_THRESHOLD, running either a gathered sequential greedy pass
// or repeated distributed passes of ball growth, local MIS, and integration
// over the remaining residual edges (component I).
type Finisher struct {
	hs Hasher
}

// SmallThreshold computes min(S/c, small_threshold_factor * S).
func SmallThreshold(s uint64, c float64, smallThresholdFactor float64) uint64 {
	a := float64(s) / c
	b := smallThresholdFactor * float64(s)
	if a < b {
		return uint64(a)
	}
	return uint64(b)
}

// GatherGreedy runs sequential greedy matching over every residual edge
// gathered to one coordinator, ordered by the same (priority, eid)
// comparator local MIS uses, so its result composes with earlier phases'
// matches under the same determinism guarantee. Permitted only when the
// gathered count fits within the per-machine budget S.
func (f Finisher) GatherGreedy(residual []Edge, s uint64, phase int) ([]MatchedEdge, error) {
	if uint64(len(residual)) > s {
		return nil, newErr(KindBudgetHard, "residual set exceeds gather budget")
	}

	pq := make(utils.PQ[finishItem], 0, len(residual))
	for _, e := range residual {
		eid := f.hs.EdgeIDOf(e.U, e.V)
		pq.Push(finishItem{EID: eid, U: e.U, V: e.V, priority: f.hs.Priority(eid, phase)})
	}
	pq.Init()

	matchedVertex := make(map[RawID]bool, len(residual)*2)
	out := make([]MatchedEdge, 0, len(residual)/2+1)
	for len(pq) > 0 {
		item := pq.Pop()
		if matchedVertex[item.U] || matchedVertex[item.V] {
			continue
		}
		matchedVertex[item.U] = true
		matchedVertex[item.V] = true
		out = append(out, MatchedEdge{EID: item.EID, U: item.U, V: item.V})
	}
	return out, nil
}

// DistributedFinish approximates component (b) from the design: rather
// than a separate component-extraction pass, it relaxes stalling entirely
// (every residual edge participates, unconditionally) and repeatedly runs
// one pass of ball growth, local MIS, and integration over whatever of the
// residual set is still active, since by construction the residual set
// already satisfies |residual| <= SMALL_THRESHOLD <= S and needs no
// further sparsification. A single pass only removes a maximal independent
// set's worth of edges, not necessarily all of them, so the loop repeats
// until nothing is left active, mirroring the gather strategy's exactness
// rather than settling for a one-shot relaxation.
func (f Finisher) DistributedFinish(e *Engine, phase int) error {
	for round := 0; round < e.cfg.PhaseBudget; round++ {
		active := e.globalActiveCount()
		if active == 0 {
			return nil
		}

		candidates := make([][]int, len(e.stores))
		for w := range e.stores {
			s := e.stores[w]
			s.ResetPhaseState()
			for i := range s.Participating {
				s.Participating[i] = s.Edges[i].Active && !s.Edges[i].Matched
			}
			candidates[w] = s.Candidates()
		}
		if _, _, err := e.runBatchedRound(phase, 1, e.budgetS, candidates); err != nil {
			return err
		}
	}
	return newErr(KindProgressStall, "distributed finish made no progress within the phase budget")
}
