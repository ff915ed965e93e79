package matching

import (
	"math"

	"github.com/vamsianumula/sublinear-mpc-matching/utils"
)

// Oracle derives the per-phase knobs (R, p_phase, T_phase, batch size) from
// the current global state, the sampling/stall policy in Config, and the
// running B_max peak-hold estimator (component K).
type Oracle struct {
	cfg Config

	DeltaEst uint64
	BMax     uint64 // peak-hold, persists across phases, seeded only by NewOracle

	cR float64 // constant factor in R = ceil(cR * sqrt(log(max(Delta_est,2))))
}

// NewOracle seeds the oracle from Config's starting estimates.
func NewOracle(cfg Config) *Oracle {
	return &Oracle{
		cfg:      cfg,
		DeltaEst: 2,
		BMax:     cfg.SamplingBMaxInit,
		cR:       1.0,
	}
}

// RefreshDelta folds this phase's allreduce-max of local max active degree
// into Delta_est. Delta only ever decays as the engine runs, so the fresh
// reading is trusted outright rather than held at a running max.
func (o *Oracle) RefreshDelta(globalMaxActiveDegree uint64) {
	o.DeltaEst = globalMaxActiveDegree
}

// ObserveBallSize folds one worker's largest ball after one ball-growth
// round, doubled, into the peak-hold estimator that SamplingP and
// BatchSize read (R depends only on Delta_est). Called concurrently
// from every worker's goroutine, so the update goes through an atomic
// max rather than a plain read-modify-write.
func (o *Oracle) ObserveBallSize(observedMax uint64) {
	utils.AtomicMaxUint64(&o.BMax, observedMax*2)
}

// Rounds returns R for this phase, honoring a config override.
func (o *Oracle) Rounds() int {
	if o.cfg.RRoundsOverride > 0 {
		return o.cfg.RRoundsOverride
	}
	arg := float64(o.DeltaEst)
	if arg < 2 {
		arg = 2
	}
	r := int(math.Ceil(o.cR * math.Sqrt(math.Log(arg))))
	if r < 1 {
		r = 1
	}
	if r > 4 {
		r = 4
	}
	return r
}

// SamplingP returns p_phase for the given active edge count and budget S.
func (o *Oracle) SamplingP(activeCount, s uint64) float64 {
	if o.cfg.SamplingMode == SamplingFixed {
		return o.cfg.SamplingP
	}
	if activeCount == 0 || o.BMax == 0 {
		return 0.5
	}
	p := o.cfg.SamplingSafety * (float64(o.cfg.NumWorkers) * float64(s)) / (float64(activeCount) * float64(o.BMax))
	if p > 0.5 {
		p = 0.5
	}
	if p < 0 {
		p = 0
	}
	return p
}

// StallThreshold returns T_phase, either the configured hard base or a high
// quantile of the empirical deg_in_sparse distribution observed this phase.
func (o *Oracle) StallThreshold(observedDegrees []int32) uint64 {
	if o.cfg.StallMode == StallHardThreshold {
		return o.cfg.StallTBase
	}
	if len(observedDegrees) == 0 {
		return o.cfg.StallTBase
	}
	q := utils.Percentile(observedDegrees, o.cfg.StallQuantile)
	if q < 0 {
		return 0
	}
	return uint64(q)
}

// BatchSize returns the candidate batch size for this phase: S/(c*B_est),
// with c the configured batching safety factor.
func (o *Oracle) BatchSize(s uint64) int {
	if o.BMax == 0 {
		return int(s)
	}
	b := float64(s) / (o.cfg.BatchSafety * float64(o.BMax))
	if b < 1 {
		b = 1
	}
	return int(b)
}
