package matching

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/vamsianumula/sublinear-mpc-matching/utils"
)

// PhaseRecord is the structured metrics record emitted once per phase.
type PhaseRecord struct {
	Phase            int
	ActiveEdges      uint64
	ParticipatingEdges uint64
	StalledEdges     uint64
	NewlyMatched     uint64
	RRounds          int
	PPhase           float64
	TPhase           uint64
	BMax             uint64
	BallSizeMean     float64
	BallSizeStdDev   float64
	TopBallSizes     []utils.Pair[uint32, float64]
	Elapsed          time.Duration
}

// RunRecord is the run-level metrics record returned alongside the final
// matching.
type RunRecord struct {
	RunID        string
	Workers      int
	Phases       []PhaseRecord
	TotalElapsed time.Duration
	FabricBytesIn  int64
	FabricBytesOut int64
	FabricCalls    int64
}

// RunMetrics accumulates a run's PhaseRecords as the phase driver executes.
type RunMetrics struct {
	runID string
	watch utils.Watch
	phases []PhaseRecord
}

// NewRunMetrics starts the run clock and stamps a fresh run id.
func NewRunMetrics() *RunMetrics {
	m := &RunMetrics{runID: uuid.NewString()}
	m.watch.Start()
	return m
}

// RecordPhase folds one phase's raw ball-size samples into a PhaseRecord
// using gonum's summary statistics, and appends it to the run.
func (m *RunMetrics) RecordPhase(base PhaseRecord, ballSizes []float64) {
	if len(ballSizes) > 0 {
		base.BallSizeMean = stat.Mean(ballSizes, nil)
		base.BallSizeStdDev = stat.StdDev(ballSizes, nil)
		topN := uint32(5)
		base.TopBallSizes = utils.FindTopNInArray(ballSizes, topN)
	}
	m.phases = append(m.phases, base)
}

// Finalize produces the run-level record.
func (m *RunMetrics) Finalize(workers int, f *Fabric) RunRecord {
	return RunRecord{
		RunID:          m.runID,
		Workers:        workers,
		Phases:         m.phases,
		TotalElapsed:   m.watch.Elapsed(),
		FabricBytesIn:  f.Stats.BytesIn.Load(),
		FabricBytesOut: f.Stats.BytesOut.Load(),
		FabricCalls:    f.Stats.Calls.Load(),
	}
}
