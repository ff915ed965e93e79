package matching

// Integrator turns one batch's locally-chosen edges into a globally valid
// matching delta via two-endpoint-claim arbitration, then asserts the
// result with a sampled round-trip check (component H).
type Integrator struct {
	hs Hasher
}

// ClaimRecords emits one (v, eid) claim per endpoint of every locally
// chosen edge, destined for owner(v).
func (in Integrator) ClaimRecords(s *WorkerStore, chosen []int, phase int) []Record {
	out := make([]Record, 0, 2*len(chosen))
	for _, pos := range chosen {
		e := s.Edges[pos]
		out = append(out, Record{Kind: KindMatchClaim, EID: e.ID, U: e.U, V: e.V})
		out = append(out, Record{Kind: KindMatchClaim, EID: e.ID, U: e.V, V: e.U})
	}
	return out
}

// Arbitrate collects every claim per vertex this worker owns, keeps the one
// with lowest priority (ties by eid), and returns verdict records: accept
// for the winner, reject for every loser.
func (in Integrator) Arbitrate(s *WorkerStore, claims []Record, phase int) []Record {
	perVertex := make(map[RawID][]Record)
	for _, c := range claims {
		perVertex[c.U] = append(perVertex[c.U], c)
	}

	out := make([]Record, 0, len(claims))
	for v, cs := range perVertex {
		winner := cs[0]
		winnerPriority := in.hs.Priority(winner.EID, phase)
		for _, c := range cs[1:] {
			p := in.hs.Priority(c.EID, phase)
			if p < winnerPriority || (p == winnerPriority && c.EID < winner.EID) {
				winner, winnerPriority = c, p
			}
		}
		for _, c := range cs {
			verdict := uint64(0)
			if c.EID == winner.EID {
				verdict = 1
			}
			out = append(out, Record{Kind: KindMatchVerdict, EID: c.EID, U: v, Val: verdict})
		}
	}
	return out
}

// ApplyVerdicts reverts losers to active/non-matched; winners stand as-is.
// A winning edge only becomes globally matched once both of its endpoint
// verdicts have come back accepted - accepted verdicts are counted per eid
// in accepts, which the caller then passes to FinalizeMatched.
func (in Integrator) ApplyVerdicts(s *WorkerStore, verdicts []Record, accepts map[EdgeID]int) {
	for _, v := range verdicts {
		pos, ok := s.IDToIndex[v.EID]
		if !ok {
			continue
		}
		if v.Val == 0 {
			s.Edges[pos].Matched = false
			continue
		}
		accepts[v.EID]++
	}
}

// FinalizeMatched commits matched=true only for edges that collected an
// accept verdict from both endpoints, and returns the newly matched
// vertices for the allgather of the globally matched-vertex set.
func (in Integrator) FinalizeMatched(s *WorkerStore, accepts map[EdgeID]int) (confirmed []MatchedEdge, newlyMatchedVertices []RawID) {
	for eid, count := range accepts {
		pos, ok := s.IDToIndex[eid]
		if !ok || count < 2 {
			if ok {
				s.Edges[pos].Matched = false
			}
			continue
		}
		e := s.Edges[pos]
		confirmed = append(confirmed, MatchedEdge{EID: e.ID, U: e.U, V: e.V})
		newlyMatchedVertices = append(newlyMatchedVertices, e.U, e.V)
	}
	return confirmed, newlyMatchedVertices
}

// DeactivateTouching deletes (active=false) every local edge touching a
// globally newly matched vertex, the final step of integration.
func (in Integrator) DeactivateTouching(s *WorkerStore, newlyMatched []RawID) {
	matchedSet := make(map[RawID]bool, len(newlyMatched))
	for _, v := range newlyMatched {
		matchedSet[v] = true
	}
	for i := range s.Edges {
		e := &s.Edges[i]
		if !e.Active {
			continue
		}
		if matchedSet[e.U] || matchedSet[e.V] {
			e.Active = false
			s.ClearActive(i)
		}
	}
}

// ValidateSample performs a sampled round-trip check of invariant P1 (no
// matched vertex is touched by two matched edges): for every sampleEvery-th
// of this worker's confirmed matches, check that no endpoint appears in
// another sampled match. Matches confirmed on other workers are not
// compared.
func (in Integrator) ValidateSample(s *WorkerStore, confirmed []MatchedEdge, sampleEvery int) error {
	if sampleEvery <= 0 {
		sampleEvery = 1
	}
	seen := make(map[RawID]EdgeID)
	for i, m := range confirmed {
		if i%sampleEvery != 0 {
			continue
		}
		for _, v := range [2]RawID{m.U, m.V} {
			if prior, ok := seen[v]; ok && prior != m.EID {
				return newErr(KindInvariantViolation, "vertex claimed by two confirmed matches")
			}
			seen[v] = m.EID
		}
	}
	return nil
}
