package matching

import "testing"

func Test_PlacementAndCSRSingleWorker(t *testing.T) {
	s := NewWorkerStore(0, 1, 16)
	raws := []Edge{{U: 1, V: 2}, {U: 2, V: 3}, {U: 1, V: 3}}

	recs := s.PlaceRecords(raws)
	if len(recs) != len(raws) {
		t.Fatalf("expected %d placement records, got %d", len(raws), len(recs))
	}
	s.AdoptPlacedEdges(recs)
	if len(s.Edges) != 3 {
		t.Fatalf("expected 3 edges after adoption, got %d", len(s.Edges))
	}
	s.BuildVertexCSR()

	if len(s.VertexIDs) != 3 {
		t.Fatalf("expected 3 distinct vertices, got %d", len(s.VertexIDs))
	}
	for _, v := range []RawID{1, 2, 3} {
		idx, ok := s.VertexIndex[v]
		if !ok {
			t.Fatalf("vertex %d missing from CSR", v)
		}
		lo, hi := s.RowStart[idx], s.RowStart[idx+1]
		if hi-lo != 2 {
			t.Errorf("vertex %d expected degree 2 in triangle, got %d", v, hi-lo)
		}
	}
}

func Test_AdoptPlacedEdgesDedups(t *testing.T) {
	s := NewWorkerStore(0, 1, 16)
	s.AdoptPlacedEdges([]Record{{Kind: KindPlaceEdge, U: 1, V: 2}})
	s.AdoptPlacedEdges([]Record{{Kind: KindPlaceEdge, U: 2, V: 1}})
	if len(s.Edges) != 1 {
		t.Errorf("expected dedup to collapse both orderings to one edge, got %d", len(s.Edges))
	}
}

func Test_CompactIfNeededDropsInactive(t *testing.T) {
	s := NewWorkerStore(0, 1, 16)
	s.AdoptPlacedEdges([]Record{
		{Kind: KindPlaceEdge, U: 1, V: 2},
		{Kind: KindPlaceEdge, U: 3, V: 4},
	})
	s.Edges[0].Active = false
	s.ClearActive(0)

	if !s.CompactIfNeeded(0.9) {
		t.Fatal("expected compaction to trigger at 50% active with 90% threshold")
	}
	if len(s.Edges) != 1 {
		t.Fatalf("expected 1 edge after compaction, got %d", len(s.Edges))
	}
	if _, ok := s.IDToIndex[s.Edges[0].ID]; !ok {
		t.Error("id_to_index not rebuilt after compaction")
	}
}

func Test_BallSetAndGet(t *testing.T) {
	s := NewWorkerStore(0, 1, 16)
	s.AllocBallArena(4)
	defer s.ReleaseBallArena()

	ball := []EdgeID{1, 5, 9}
	s.SetBall(0, ball, 100)
	got := s.Ball(0)
	if len(got) != 3 {
		t.Fatalf("expected ball of size 3, got %d", len(got))
	}
	for i, v := range ball {
		if got[i] != v {
			t.Errorf("ball[%d] = %d, want %d", i, got[i], v)
		}
	}
}
