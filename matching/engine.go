package matching

import (
	"context"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/vamsianumula/sublinear-mpc-matching/utils"
)

// Engine wires the exchange fabric, per-worker stores, and parameter
// oracle into the phase driver's Run entry point (component J's home).
type Engine struct {
	cfg    Config
	fabric *Fabric
	stores []*WorkerStore
	oracle *Oracle
	hs     Hasher
	metrics *RunMetrics

	vertexCountEstimate uint64
	budgetS             uint64
	confirmed           []MatchedEdge
	rawInput            [][]Edge
}

// NewEngine builds an engine from a per-worker slice of raw ingested edges.
// Each worker's slice may reference any vertex; ownership is resolved by
// the placement exchange in Run, not by this constructor.
func NewEngine(cfg Config, rawPerWorker [][]Edge) *Engine {
	p := len(rawPerWorker)
	stores := make([]*WorkerStore, p)
	hotCacheSize := 256
	for w := 0; w < p; w++ {
		stores[w] = NewWorkerStore(w, p, hotCacheSize)
	}
	return &Engine{
		cfg:      cfg,
		fabric:   NewFabric(p),
		stores:   stores,
		oracle:   NewOracle(cfg),
		rawInput: rawPerWorker,
	}
}

// Run executes the full engine: placement, the phase loop, and the
// Finisher, returning the accumulated matching and run metrics.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if e.cfg.DebugLevel > 0 {
		log.Logger = log.Logger.Level(-1)
	}
	e.metrics = NewRunMetrics()

	if err := e.placementExchange(); err != nil {
		return Result{}, err
	}
	e.budgetS = e.cfg.EdgeBudget(e.vertexCountEstimate)

	incomplete := false
	phase := 0
	for ; phase < e.cfg.PhaseBudget; phase++ {
		select {
		case <-ctx.Done():
			return Result{}, wrapErr(KindFabricError, ctx.Err(), "context cancelled")
		default:
		}

		active := e.globalActiveCount()
		if active == 0 {
			break
		}
		if active < SmallThreshold(e.budgetS, e.cfg.BatchSafety, e.cfg.FinishSmallThresholdFactor) {
			break
		}

		if err := e.guardMemory(); err != nil {
			if ee, ok := err.(*EngineError); ok && !ee.Fatal() {
				log.Warn().Str("kind", string(ee.Kind)).Msg("memory guard soft threshold, released transient buffers")
			} else {
				return Result{}, err
			}
		}

		if err := e.runPhase(phase); err != nil {
			return Result{}, err
		}
	}
	if phase >= e.cfg.PhaseBudget {
		incomplete = true
		log.Warn().Int("phase_budget", e.cfg.PhaseBudget).Msg("phase budget exhausted, handing residual to finisher")
	}

	if err := e.finish(phase); err != nil {
		return Result{}, err
	}

	run := e.metrics.Finalize(len(e.stores), e.fabric)
	e.fabric.LogStats()
	return Result{
		Matching:   e.confirmed,
		Phases:     phase,
		Incomplete: incomplete,
		Run:        run,
	}, nil
}

// placementExchange redistributes every worker's raw ingested pairs to
// their deterministic eid owner, then builds each worker's vertex CSR
// purely from local knowledge - the one-round vertex-resolution exchange
// State store's init() depends on.
func (e *Engine) placementExchange() error {
	send := parallelForCollect(len(e.stores), func(w int) []Record {
		return e.stores[w].PlaceRecords(e.rawInput[w])
	})
	recv, err := e.fabric.Exchange(send)
	if err != nil {
		return err
	}
	parallelFor(len(e.stores), func(w int) {
		e.stores[w].AdoptPlacedEdges(recv[w])
		e.stores[w].BuildVertexCSR()
	})

	counts := make([]uint64, len(e.stores))
	for w := range e.stores {
		counts[w] = uint64(len(e.stores[w].VertexIDs))
	}
	e.vertexCountEstimate = AllreduceSumU64(counts)
	return nil
}

func (e *Engine) globalActiveCount() uint64 {
	counts := make([]uint64, len(e.stores))
	for w := range e.stores {
		n := uint64(0)
		for _, ed := range e.stores[w].Edges {
			if ed.Active {
				n++
			}
		}
		counts[w] = n
	}
	return AllreduceSumU64(counts)
}

func (e *Engine) globalMaxActiveDegree() uint64 {
	maxes := make([]uint64, len(e.stores))
	for w := range e.stores {
		s := e.stores[w]
		deg := make(map[RawID]uint64)
		for _, ed := range s.Edges {
			if !ed.Active {
				continue
			}
			deg[ed.U]++
			deg[ed.V]++
		}
		var localMax uint64
		for _, d := range deg {
			if d > localMax {
				localMax = d
			}
		}
		maxes[w] = localMax
	}
	return AllreduceMaxU64(maxes)
}

// guardMemory snapshots resident set size and enforces the Memory Guard's
// soft/hard thresholds against the configured budget.
func (e *Engine) guardMemory() error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	frac := float64(ms.Alloc) / float64(e.cfg.MemoryBudgetBytes)
	if frac >= e.cfg.MemoryHardFrac {
		utils.MemoryStats()
		return newErr(KindBudgetHard, "resident set exceeded hard memory threshold")
	}
	if frac >= e.cfg.MemorySoftFrac {
		runtime.GC()
		utils.MemoryStats()
		return newErr(KindBudgetSoft, "resident set exceeded soft memory threshold")
	}
	return nil
}
