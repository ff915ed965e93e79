package matching

import "math/rand"

// partitionRoundRobin splits a flat edge list across p workers in input
// order, matching the shape LoadEdgeListFile hands the engine.
func partitionRoundRobin(edges []Edge, p int) [][]Edge {
	out := make([][]Edge, p)
	for i, e := range edges {
		out[i%p] = append(out[i%p], e)
	}
	return out
}

// genErdosRenyi builds a small G(n,p) graph for a fixed seed, used by the
// random-graph scenario. Deterministic across runs so the test is
// reproducible without depending on the engine's own hashing for its
// input shape.
func genErdosRenyi(n int, p float64, seed int64) []Edge {
	r := rand.New(rand.NewSource(seed))
	out := make([]Edge, 0)
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if r.Float64() < p {
				out = append(out, Edge{U: RawID(u), V: RawID(v)})
			}
		}
	}
	return out
}
