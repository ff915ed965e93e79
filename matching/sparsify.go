package matching

// Sparsifier runs the two per-phase sub-operations that decide which edges
// take part in this phase's implicit sparsified line graph, and how dense
// each participating edge's neighborhood is there (component D).
type Sparsifier struct {
	hs Hasher
}

// Participate marks every active, non-matched local edge as participating
// or not, via the deterministic sample draw against the oracle's p_phase.
// Stalled never survives from the previous phase; the caller recomputes it
// fresh from this phase's deg_in_sparse.
func (sp Sparsifier) Participate(s *WorkerStore, phase int, pPhase float64) {
	cutoff := Threshold(pPhase)
	for i := range s.Edges {
		e := &s.Edges[i]
		if !e.Active || e.Matched {
			s.Participating[i] = false
			continue
		}
		s.Participating[i] = sp.hs.SampleDraw(e.ID, phase) < cutoff
	}
}

// DegreeProbeRecords builds the (eid, u) and (eid, v) probes this worker
// sends to owner(u) and owner(v) for every participating edge, step 1 of
// sparse-degree aggregation.
func (sp Sparsifier) DegreeProbeRecords(s *WorkerStore) []Record {
	out := make([]Record, 0, 2*len(s.Edges))
	for i, e := range s.Edges {
		if !s.Participating[i] {
			continue
		}
		out = append(out, Record{Kind: KindDegProbe, EID: e.ID, U: e.U, V: e.V})
		out = append(out, Record{Kind: KindDegProbe, EID: e.ID, U: e.V, V: e.U})
	}
	return out
}

// CountParticipating tallies, for each received probe, the participating
// incidence count at the probed vertex (step 2) and returns the
// contribution records to send back to each edge owner (step 3's outbound
// half): (eid, deg_participating(endpoint)-1).
//
// A probe routed here for a vertex this worker does not own is a
// MalformedGraph failure - the caller (the phase driver) routed it via
// Owner(v), so a mismatch means the ingested graph handed the engine an
// edge endpoint with no owning worker, which should never happen by
// construction. The probed vertex need not appear in this worker's own
// VertexIndex: VertexIndex only lists vertices touched by this worker's
// own incident edges, while owner(v) and edge_owner(eid) are independent
// hashes, so a vertex can be legitimately owned here with every incident
// edge owned elsewhere.
func (sp Sparsifier) CountParticipating(s *WorkerStore, probes []Record) ([]Record, error) {
	perVertex := make(map[RawID][]Record, len(probes))
	for _, r := range probes {
		if sp.hs.Owner(r.U, s.P) != s.Idx {
			return nil, newErr(KindMalformedGraph, "degree probe routed to wrong owner")
		}
		perVertex[r.U] = append(perVertex[r.U], r)
	}

	out := make([]Record, 0, len(probes))
	for v, recs := range perVertex {
		degParticipating := uint64(len(recs))
		contrib := degParticipating - 1
		for _, r := range recs {
			out = append(out, Record{Kind: KindDegContrib, EID: r.EID, U: v, Val: contrib})
		}
	}
	return out, nil
}

// SumContributions folds returned (eid, contribution) records into
// deg_in_sparse for each local edge (step 3's inbound half).
func (sp Sparsifier) SumContributions(s *WorkerStore, contribs []Record) {
	for _, r := range contribs {
		pos, ok := s.IDToIndex[r.EID]
		if !ok {
			continue // edge was compacted away; contribution is stale and harmless to drop
		}
		s.DegInSparse[pos] += int32(r.Val)
	}
}
