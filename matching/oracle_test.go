package matching

import "testing"

func Test_OracleRoundsClamped(t *testing.T) {
	cfg := DefaultConfig()
	o := NewOracle(cfg)

	o.DeltaEst = 2
	if r := o.Rounds(); r < 1 || r > 4 {
		t.Errorf("Rounds() = %d, want in [1,4]", r)
	}

	o.DeltaEst = 1 << 40
	if r := o.Rounds(); r < 1 || r > 4 {
		t.Errorf("Rounds() = %d with huge Delta_est, want clamped to [1,4]", r)
	}
}

func Test_OracleRoundsOverride(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RRoundsOverride = 3
	o := NewOracle(cfg)
	if r := o.Rounds(); r != 3 {
		t.Errorf("Rounds() = %d, want override value 3", r)
	}
}

func Test_OracleSamplingPBounded(t *testing.T) {
	cfg := DefaultConfig()
	o := NewOracle(cfg)
	o.BMax = 4

	p := o.SamplingP(1000, 64)
	if p < 0 || p > 0.5 {
		t.Errorf("SamplingP() = %f, want in [0,0.5]", p)
	}
}

func Test_OracleSamplingPFixedMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SamplingMode = SamplingFixed
	cfg.SamplingP = 0.3
	o := NewOracle(cfg)
	if p := o.SamplingP(100, 64); p != 0.3 {
		t.Errorf("SamplingP() = %f, want fixed 0.3", p)
	}
}

func Test_OracleBatchSizeAtLeastOne(t *testing.T) {
	cfg := DefaultConfig()
	o := NewOracle(cfg)
	o.BMax = 1 << 40
	if b := o.BatchSize(1); b < 1 {
		t.Errorf("BatchSize() = %d, want >= 1", b)
	}
}

func Test_OracleStallThresholdHardMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StallMode = StallHardThreshold
	cfg.StallTBase = 10
	o := NewOracle(cfg)
	if th := o.StallThreshold([]int32{1, 2, 3}); th != 10 {
		t.Errorf("StallThreshold() = %d, want hard base 10", th)
	}
}
