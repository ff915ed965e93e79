package matching

import "testing"

// Test_LocalMISExcludesBallConflicts sets up three candidates sharing a
// vertex (a star), with balls wide enough to see each other, and checks
// that at most one is chosen - a shared vertex with a chosen edge must
// show up in every other candidate's ball.
func Test_LocalMISExcludesBallConflicts(t *testing.T) {
	s := NewWorkerStore(0, 1, 16)
	s.AdoptPlacedEdges([]Record{
		{Kind: KindPlaceEdge, U: 1, V: 2},
		{Kind: KindPlaceEdge, U: 1, V: 3},
		{Kind: KindPlaceEdge, U: 1, V: 4},
	})
	s.BuildVertexCSR()

	s.AllocBallArena(3)
	defer s.ReleaseBallArena()

	allEids := make([]EdgeID, len(s.Edges))
	for i, e := range s.Edges {
		allEids[i] = e.ID
	}
	sortDedup(allEids)
	for i := range s.Edges {
		s.SetBall(i, allEids, 100)
	}

	mis := LocalMIS{hs: Hasher{}}
	chosen := mis.Select(s, []int{0, 1, 2}, 0)

	if len(chosen) != 1 {
		t.Fatalf("expected exactly 1 chosen edge among mutually-conflicting candidates, got %d", len(chosen))
	}
}

// Test_LocalMISAllowsDisjointEdges checks that two edges with disjoint
// balls (no shared vertex) can both be chosen.
func Test_LocalMISAllowsDisjointEdges(t *testing.T) {
	s := NewWorkerStore(0, 1, 16)
	s.AdoptPlacedEdges([]Record{
		{Kind: KindPlaceEdge, U: 1, V: 2},
		{Kind: KindPlaceEdge, U: 3, V: 4},
	})
	s.BuildVertexCSR()

	s.AllocBallArena(2)
	defer s.ReleaseBallArena()

	for i, e := range s.Edges {
		s.SetBall(i, []EdgeID{e.ID}, 100)
	}

	mis := LocalMIS{hs: Hasher{}}
	chosen := mis.Select(s, []int{0, 1}, 0)

	if len(chosen) != 2 {
		t.Fatalf("expected both disjoint edges chosen, got %d", len(chosen))
	}
}
