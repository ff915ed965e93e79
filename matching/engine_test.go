package matching

import (
	"context"
	"testing"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TestMode = true
	cfg.PhaseBudget = 32
	cfg.SamplingMode = SamplingFixed
	cfg.SamplingP = 1.0 // small test graphs: every edge always participates
	cfg.StallMode = StallHardThreshold
	cfg.StallTBase = 1 << 30 // never stall in these tiny graphs
	cfg.MemoryBudgetBytes = 1 << 32
	return cfg
}

// assertValidMatching checks invariant P1 (no vertex touched by two
// matched edges) and that every matched edge is a real input edge.
func assertValidMatching(t *testing.T, input []Edge, got []MatchedEdge) {
	inputSet := make(map[EdgeID]bool, len(input))
	hs := Hasher{}
	for _, e := range input {
		inputSet[hs.EdgeIDOf(e.U, e.V)] = true
	}

	touched := make(map[RawID]EdgeID)
	for _, m := range got {
		if m.U == m.V {
			t.Errorf("matched self-loop %v", m)
		}
		if !inputSet[m.EID] {
			t.Errorf("matched edge %v is not part of the input", m)
		}
		for _, v := range [2]RawID{m.U, m.V} {
			if prior, ok := touched[v]; ok {
				t.Errorf("vertex %d touched by two matched edges (%d and %d)", v, prior, m.EID)
			}
			touched[v] = m.EID
		}
	}
}

// assertMaximal checks that no input edge has both endpoints unmatched -
// such an edge could always be added, so its existence means the output
// is not maximal.
func assertMaximal(t *testing.T, input []Edge, got []MatchedEdge) {
	matchedVertex := make(map[RawID]bool)
	for _, m := range got {
		matchedVertex[m.U] = true
		matchedVertex[m.V] = true
	}
	for _, e := range input {
		if !matchedVertex[e.U] && !matchedVertex[e.V] {
			t.Errorf("edge (%d,%d) has both endpoints free: matching is not maximal", e.U, e.V)
		}
	}
}

func runEngineCase(t *testing.T, name string, edges []Edge, workers int) {
	t.Helper()
	cfg := testConfig()
	cfg.NumWorkers = workers

	raw := partitionRoundRobin(edges, workers)
	engine := NewEngine(cfg, raw)
	result, err := engine.Run(context.Background())
	if err != nil {
		t.Fatalf("%s: engine run failed: %v", name, err)
	}
	if result.Incomplete {
		t.Errorf("%s: run reported incomplete", name)
	}
	assertValidMatching(t, edges, result.Matching)
	assertMaximal(t, edges, result.Matching)
}

func Test_Triangle(t *testing.T) {
	edges := []Edge{{1, 2}, {2, 3}, {1, 3}}
	runEngineCase(t, "triangle", edges, 1)
}

func Test_PathP4(t *testing.T) {
	edges := []Edge{{1, 2}, {2, 3}, {3, 4}}
	runEngineCase(t, "path-p4", edges, 1)
}

func Test_StarK15(t *testing.T) {
	edges := []Edge{{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5}}
	runEngineCase(t, "star-k15", edges, 1)
}

func Test_FourCycle(t *testing.T) {
	edges := []Edge{{1, 2}, {2, 3}, {3, 4}, {4, 1}}
	runEngineCase(t, "4-cycle", edges, 1)
}

func Test_TwoDisjointEdges(t *testing.T) {
	edges := []Edge{{1, 2}, {3, 4}}
	runEngineCase(t, "two-disjoint-edges", edges, 1)
	runEngineCase(t, "two-disjoint-edges-2workers", edges, 2)
}

func Test_EmptyGraph(t *testing.T) {
	runEngineCase(t, "empty-graph", []Edge{}, 1)
}

func Test_SingleEdge(t *testing.T) {
	runEngineCase(t, "single-edge", []Edge{{1, 2}}, 1)
}

func Test_RandomGraphTwoWorkers(t *testing.T) {
	edges := genErdosRenyi(20, 0.3, 7)
	runEngineCase(t, "random-g20-p0.3", edges, 2)
}

func Test_TriangleTwoWorkers(t *testing.T) {
	edges := []Edge{{1, 2}, {2, 3}, {1, 3}}
	runEngineCase(t, "triangle-2workers", edges, 2)
}
