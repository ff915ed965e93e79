package matching

import (
	"flag"
	"math"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SamplingMode selects how p_phase is derived.
type SamplingMode string

const (
	SamplingFixed    SamplingMode = "fixed"
	SamplingAdaptive SamplingMode = "adaptive"
)

// StallMode selects how T_phase is derived.
type StallMode string

const (
	StallHardThreshold StallMode = "hard_threshold"
	StallDynamic       StallMode = "dynamic"
)

// FinishStrategy selects the Finisher's policy.
type FinishStrategy string

const (
	FinishGather      FinishStrategy = "gather"
	FinishDistributed FinishStrategy = "distributed"
)

// Config holds every recognized option from the config collaborator
// (spec section 6), with the documented defaults.
type Config struct {
	NumWorkers int // p: number of simulated MPC workers

	Alpha float64 // exponent in S = c * n^alpha
	CMem  float64 // constant factor c for S

	RRoundsOverride int // 0 means "derive from the oracle"
	PhaseBudget     int

	SamplingMode    SamplingMode
	SamplingP       float64 // used when SamplingMode == fixed
	SamplingSafety  float64
	SamplingBMaxInit uint64

	StallMode StallMode
	StallTBase uint64
	StallQuantile int // percentile in [0,100], used when StallMode == dynamic

	MemorySoftFrac float64
	MemoryHardFrac float64
	MemoryBudgetBytes uint64

	FinishStrategy           FinishStrategy
	FinishSmallThresholdFactor float64

	BatchSafety float64 // c >= 2 in |batch| * B_max <= S/c

	TestMode bool // enables expensive correctness checks (sampled round-trips)

	DebugLevel int
	NoColour   bool
}

// DefaultConfig returns the documented defaults for every option.
func DefaultConfig() Config {
	return Config{
		NumWorkers:        runtime.NumCPU(),
		Alpha:             0.5,
		CMem:              4.0,
		RRoundsOverride:   0,
		PhaseBudget:       64,
		SamplingMode:      SamplingAdaptive,
		SamplingP:         0.5,
		SamplingSafety:    0.5,
		SamplingBMaxInit:  16,
		StallMode:         StallDynamic,
		StallTBase:        64,
		StallQuantile:     95,
		MemorySoftFrac:    0.75,
		MemoryHardFrac:    0.90,
		MemoryBudgetBytes: 2 << 30,
		FinishStrategy:              FinishGather,
		FinishSmallThresholdFactor:  0.1,
		BatchSafety:                 2.0,
		TestMode:                    false,
	}
}

// LoadConfigFile layers a YAML file's values over the given base config.
// Only fields present in the file are overridden.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, err
	}
	return cfg, nil
}

// FlagsToConfig parses CLI flags in the teacher's FlagsToOptions idiom,
// layering them over an optional base YAML config file.
func FlagsToConfig() Config {
	base := DefaultConfig()

	cfgPtr := flag.String("config", "", "Optional YAML config file to layer flag defaults over.")
	workersPtr := flag.Int("t", runtime.NumCPU(), "Number of simulated MPC workers.")
	alphaPtr := flag.Float64("alpha", base.Alpha, "Exponent alpha in S = c * n^alpha.")
	cMemPtr := flag.Float64("c", base.CMem, "Constant factor c for the per-machine edge budget S.")
	rPtr := flag.Int("r", base.RRoundsOverride, "Override ball-growth radius R. 0 derives it from the oracle.")
	budgetPtr := flag.Int("phase-budget", base.PhaseBudget, "Hard cap on phases before Finisher takes over.")
	samplingPtr := flag.String("sampling", string(base.SamplingMode), "Sampling mode: fixed or adaptive.")
	samplingPPtr := flag.Float64("sampling-p", base.SamplingP, "Fixed sampling probability (sampling=fixed).")
	safetyPtr := flag.Float64("safety", base.SamplingSafety, "Adaptive sampling safety factor.")
	stallPtr := flag.String("stall", string(base.StallMode), "Stall mode: hard_threshold or dynamic.")
	tBasePtr := flag.Uint64("t-base", base.StallTBase, "Hard stall threshold base.")
	finishPtr := flag.String("finish", string(base.FinishStrategy), "Finish strategy: gather or distributed.")
	testModePtr := flag.Bool("test-mode", base.TestMode, "Enable expensive correctness checks.")
	debugPtr := flag.Int("debug", 0, "Debug level: 0 info, 1 debug, 2+ trace.")
	noColourPtr := flag.Bool("nc", false, "Disable coloured console output.")
	flag.Parse()

	cfg := base
	if *cfgPtr != "" {
		var err error
		cfg, err = LoadConfigFile(*cfgPtr, base)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load config file.")
		}
	}

	cfg.NumWorkers = *workersPtr
	cfg.Alpha = *alphaPtr
	cfg.CMem = *cMemPtr
	cfg.RRoundsOverride = *rPtr
	cfg.PhaseBudget = *budgetPtr
	cfg.SamplingMode = SamplingMode(*samplingPtr)
	cfg.SamplingP = *samplingPPtr
	cfg.SamplingSafety = *safetyPtr
	cfg.StallMode = StallMode(*stallPtr)
	cfg.StallTBase = *tBasePtr
	cfg.FinishStrategy = FinishStrategy(*finishPtr)
	cfg.TestMode = *testModePtr
	cfg.DebugLevel = *debugPtr
	cfg.NoColour = *noColourPtr

	if cfg.NumWorkers <= 0 {
		log.Fatal().Msg("Invalid worker count.")
	}
	return cfg
}

// EdgeBudget computes S = c * n^alpha for the given vertex count.
func (c Config) EdgeBudget(n uint64) uint64 {
	if n == 0 {
		return uint64(c.CMem)
	}
	s := c.CMem * math.Pow(float64(n), c.Alpha)
	if s < 1 {
		s = 1
	}
	return uint64(s)
}
