package main

import (
	"context"
	"flag"

	"github.com/rs/zerolog/log"

	"github.com/vamsianumula/sublinear-mpc-matching/matching"
	"github.com/vamsianumula/sublinear-mpc-matching/utils"
)

// Launch point. Parses command line arguments, loads an edge list, and
// launches the matching engine.
func main() {
	graphPtr := flag.String("g", "", "Edge list file to match.")
	cfg := matching.FlagsToConfig()

	if *graphPtr == "" {
		log.Fatal().Msg("Missing required -g edge list flag.")
	}

	utils.SetLoggerConsole(cfg.NoColour)
	utils.SetLevel(cfg.DebugLevel)

	rawPerWorker, err := matching.LoadEdgeListFile(*graphPtr, cfg.NumWorkers)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load edge list.")
	}

	engine := matching.NewEngine(cfg, rawPerWorker)
	result, err := engine.Run(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Engine run failed.")
	}

	log.Info().
		Int("matched_edges", len(result.Matching)).
		Int("phases", result.Phases).
		Bool("incomplete", result.Incomplete).
		Str("run_id", result.Run.RunID).
		Msg("matching complete")
}
