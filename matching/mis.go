package matching

import (
	"sort"

	"github.com/vamsianumula/sublinear-mpc-matching/utils"
)

// LocalMIS runs greedy local maximal-independent-set selection on one
// batch's candidates, once every ball is built. No communication: each
// worker checks balls only against its own chosen edges, so two edges
// chosen by different workers can still share a vertex; the Integrator's
// per-vertex arbitration resolves those conflicts (component G).
type LocalMIS struct {
	hs Hasher
}

// Select sorts candidates by (priority, eid) ascending and walks them in
// order, choosing an edge iff no previously chosen edge appears in its
// ball. The ball is the membership oracle: a shared vertex with a chosen
// edge shows up there as a shared incident eid.
func (mis LocalMIS) Select(s *WorkerStore, candidates []int, phase int) []int {
	ordered := make([]int, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		pi, pj := mis.hs.Priority(s.Edges[ordered[i]].ID, phase), mis.hs.Priority(s.Edges[ordered[j]].ID, phase)
		if pi != pj {
			return pi < pj
		}
		return s.Edges[ordered[i]].ID < s.Edges[ordered[j]].ID
	})

	chosenSet := make(map[EdgeID]bool)
	chosen := make([]int, 0, len(ordered))
	for _, pos := range ordered {
		conflict := false
		for member := range chosenSet {
			if inBall(s, pos, member) {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		chosenSet[s.Edges[pos].ID] = true
		chosen = append(chosen, pos)
	}

	for _, pos := range chosen {
		s.Edges[pos].Matched = true
	}
	return chosen
}

// inBall reports whether eid appears in the sorted, deduplicated ball
// stored at pos, via binary search rather than a linear scan.
func inBall(s *WorkerStore, pos int, eid EdgeID) bool {
	ball := s.Ball(pos)
	_, found := utils.BinarySearchIdxFunc(ball, eid, func(i int, target EdgeID) int {
		switch {
		case ball[i] < target:
			return -1
		case ball[i] > target:
			return 1
		default:
			return 0
		}
	})
	return found
}
