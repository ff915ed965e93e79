package matching

import (
	"github.com/rs/zerolog/log"
)

// runPhase executes one full sparsify -> stall -> exponentiate ->
// local-MIS -> integrate cycle, consulting the Parameter Oracle for this
// phase's (p_phase, T_phase, R, batch size) and folding observed ball
// sizes back into the oracle's peak-hold estimator.
func (e *Engine) runPhase(phase int) error {
	watch := e.metrics.watch.Elapsed()
	e.fabric.Barrier()

	e.oracle.RefreshDelta(e.globalMaxActiveDegree())
	active := e.globalActiveCount()
	pPhase := e.oracle.SamplingP(active, e.budgetS)

	sp := Sparsifier{hs: e.hs}
	for _, s := range e.stores {
		s.ResetPhaseState()
	}
	parallelFor(len(e.stores), func(w int) { sp.Participate(e.stores[w], phase, pPhase) })

	probeRecs := parallelForCollect(len(e.stores), func(w int) []Record { return sp.DegreeProbeRecords(e.stores[w]) })
	probeRecv, err := e.fabric.Exchange(probeRecs)
	if err != nil {
		return err
	}
	contribRecs := make([][]Record, len(e.stores))
	errs := make([]error, len(e.stores))
	parallelFor(len(e.stores), func(w int) {
		out, cerr := sp.CountParticipating(e.stores[w], probeRecv[w])
		contribRecs[w], errs[w] = out, cerr
	})
	for _, cerr := range errs {
		if cerr != nil {
			return cerr
		}
	}
	contribRecv, err := e.fabric.Exchange(contribRecs)
	if err != nil {
		return err
	}
	parallelFor(len(e.stores), func(w int) { sp.SumContributions(e.stores[w], contribRecv[w]) })

	degreeSamples := make([][]int32, len(e.stores))
	for w := range e.stores {
		degreeSamples[w] = e.stores[w].DegInSparse
	}
	globalDegrees := Allgather(degreeSamples)
	tPhase := e.oracle.StallThreshold(globalDegrees)

	st := Staller{}
	parallelFor(len(e.stores), func(w int) { st.Mark(e.stores[w], tPhase) })

	candidatesPerWorker := make([][]int, len(e.stores))
	for w := range e.stores {
		candidatesPerWorker[w] = e.stores[w].Candidates()
	}

	rRounds := e.oracle.Rounds()
	batchSize := e.oracle.BatchSize(e.budgetS)

	batchesPerWorker := make([][][]int, len(e.stores))
	maxBatches := 0
	for w := range e.stores {
		batchesPerWorker[w] = Batches(candidatesPerWorker[w], batchSize)
		if nb := len(batchesPerWorker[w]); nb > maxBatches {
			maxBatches = nb
		}
	}

	var newlyMatched uint64
	var stalledInBatches uint64
	var ballSizes []float64
	for b := 0; b < maxBatches; b++ {
		batchPerWorker := make([][]int, len(e.stores))
		for w := range e.stores {
			if b < len(batchesPerWorker[w]) {
				// Skip candidates an earlier batch of this phase already
				// deactivated (matched, or incident to a newly matched vertex).
				for _, pos := range batchesPerWorker[w][b] {
					if e.stores[w].Edges[pos].Active {
						batchPerWorker[w] = append(batchPerWorker[w], pos)
					}
				}
			}
		}

		confirmedBefore := len(e.confirmed)
		stalled, sizes, err := e.runBatchedRound(phase, rRounds, e.budgetS, batchPerWorker)
		if err != nil {
			return err
		}
		newlyMatched += uint64(len(e.confirmed) - confirmedBefore)
		stalledInBatches += stalled
		ballSizes = append(ballSizes, sizes...)
	}

	e.metrics.RecordPhase(PhaseRecord{
		Phase:              phase,
		ActiveEdges:        active,
		ParticipatingEdges: countParticipating(e.stores),
		StalledEdges:       stalledInBatches,
		NewlyMatched:       newlyMatched,
		RRounds:            rRounds,
		PPhase:             pPhase,
		TPhase:             tPhase,
		BMax:               e.oracle.BMax,
		Elapsed:            e.metrics.watch.Elapsed() - watch,
	}, ballSizes)

	for w := range e.stores {
		e.stores[w].CompactIfNeeded(0.5)
	}
	return nil
}

func countParticipating(stores []*WorkerStore) uint64 {
	var n uint64
	for _, s := range stores {
		for _, p := range s.Participating {
			if p {
				n++
			}
		}
	}
	return n
}

// runBatchedRound runs one full exponentiate/local-MIS/integrate cycle
// over an explicit per-worker candidate batch, shared by the phase driver
// (one call per batch) and the Finisher's distributed strategy (one call
// over the whole relaxed residual set). Returns the number of candidates
// dropped to the stalled set via adaptive ball-overflow backoff, and the
// final ball size of every surviving candidate for the run metrics.
func (e *Engine) runBatchedRound(phase int, rRounds int, budgetS uint64, candidatesPerWorker [][]int) (uint64, []float64, error) {
	ex := Exponentiator{hs: e.hs}
	p := len(e.stores)

	regRecs := parallelForCollect(p, func(w int) []Record { return ex.RegisterRecords(e.stores[w], candidatesPerWorker[w]) })
	regRecv, err := e.fabric.Exchange(regRecs)
	if err != nil {
		return 0, nil, err
	}
	parallelFor(p, func(w int) { ex.AdoptRegistrations(e.stores[w], regRecv[w]) })

	parallelFor(p, func(w int) {
		e.stores[w].AllocBallArena(len(candidatesPerWorker[w]))
		ex.SeedBalls(e.stores[w], candidatesPerWorker[w])
	})

	live := make([][]int, p)
	copy(live, candidatesPerWorker)
	var stalledCount uint64

	for r := 0; r < rRounds; r++ {
		fanRecs := parallelForCollect(p, func(w int) []Record { return ex.FanoutRecords(e.stores[w], live[w]) })
		fanRecv, ferr := e.fabric.Exchange(fanRecs)
		if ferr != nil {
			return stalledCount, nil, ferr
		}
		expRecs := parallelForCollect(p, func(w int) []Record { return ex.ExpandVertex(e.stores[w], fanRecv[w]) })
		expRecv, eerr := e.fabric.Exchange(expRecs)
		if eerr != nil {
			return stalledCount, nil, eerr
		}

		newLive := make([][]int, p)
		parallelFor(p, func(w int) {
			results := ex.MergeReturns(e.stores[w], budgetS, expRecv[w])
			kept := make([]int, 0, len(live[w]))
			var localMax uint64
			for _, pos := range live[w] {
				res, ok := results[pos]
				if ok && res.Overflowed {
					e.stores[w].Stalled[pos] = true
					continue
				}
				kept = append(kept, pos)
				if sz := uint64(len(e.stores[w].Ball(pos))); sz > localMax {
					localMax = sz
				}
			}
			e.oracle.ObserveBallSize(localMax)
			newLive[w] = kept
		})
		for w := range newLive {
			stalledCount += uint64(len(live[w]) - len(newLive[w]))
		}
		live = newLive
	}

	e.fabric.Barrier() // ball growth is done for every worker before local MIS reads any ball

	var ballSizes []float64
	for w := range e.stores {
		for _, pos := range live[w] {
			ballSizes = append(ballSizes, float64(len(e.stores[w].Ball(pos))))
		}
	}

	mis := LocalMIS{hs: e.hs}
	chosenPerWorker := parallelForCollect(p, func(w int) []int { return mis.Select(e.stores[w], live[w], phase) })

	parallelFor(p, func(w int) { e.stores[w].ReleaseBallArena() })

	in := Integrator{hs: e.hs}
	claimRecs := parallelForCollect(p, func(w int) []Record { return in.ClaimRecords(e.stores[w], chosenPerWorker[w], phase) })
	claimRecv, cerr := e.fabric.Exchange(claimRecs)
	if cerr != nil {
		return stalledCount, ballSizes, cerr
	}
	verdictRecs := parallelForCollect(p, func(w int) []Record { return in.Arbitrate(e.stores[w], claimRecv[w], phase) })
	verdictRecv, verr := e.fabric.Exchange(verdictRecs)
	if verr != nil {
		return stalledCount, ballSizes, verr
	}

	confirmedPerWorker := make([][]MatchedEdge, p)
	newlyMatchedPerWorker := make([][]RawID, p)
	parallelFor(p, func(w int) {
		accepts := make(map[EdgeID]int)
		in.ApplyVerdicts(e.stores[w], verdictRecv[w], accepts)
		confirmedPerWorker[w], newlyMatchedPerWorker[w] = in.FinalizeMatched(e.stores[w], accepts)
	})

	allNewlyMatched := Allgather(newlyMatchedPerWorker)
	parallelFor(p, func(w int) { in.DeactivateTouching(e.stores[w], allNewlyMatched) })

	for w := range confirmedPerWorker {
		e.confirmed = append(e.confirmed, confirmedPerWorker[w]...)
		if e.cfg.TestMode {
			if verr := in.ValidateSample(e.stores[w], confirmedPerWorker[w], 1); verr != nil {
				return stalledCount, ballSizes, verr
			}
		}
	}

	return stalledCount, ballSizes, nil
}

// finish hands the surviving residual to the Finisher once the main phase
// loop exits, per the configured strategy.
func (e *Engine) finish(phase int) error {
	active := e.globalActiveCount()
	if active == 0 {
		return nil
	}
	log.Info().Uint64("residual_active_edges", active).Str("strategy", string(e.cfg.FinishStrategy)).Msg("handing residual to finisher")

	f := Finisher{hs: e.hs}
	switch e.cfg.FinishStrategy {
	case FinishDistributed:
		return f.DistributedFinish(e, phase)
	default:
		if active > e.budgetS {
			return newErr(KindBudgetHard, "residual exceeds gather budget, cannot run gather finisher")
		}
		residualRecs := parallelForCollect(len(e.stores), func(w int) []Record {
			s := e.stores[w]
			out := make([]Record, 0)
			for _, ed := range s.Edges {
				if ed.Active {
					out = append(out, Record{Kind: KindResidualEdge, U: ed.U, V: ed.V})
				}
			}
			return out
		})
		recv, err := e.fabric.Exchange(residualRecs)
		if err != nil {
			return err
		}
		residual := make([]Edge, 0, active)
		for _, bucket := range recv {
			for _, r := range bucket {
				residual = append(residual, Edge{U: r.U, V: r.V})
			}
		}
		matched, err := f.GatherGreedy(residual, e.budgetS, phase)
		if err != nil {
			return err
		}
		e.confirmed = append(e.confirmed, matched...)
		return nil
	}
}
