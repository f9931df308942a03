package cmd

import (
	"github.com/spf13/cobra"

	"github.com/train-sim/train-sim/sim"
)

// resolveConfig starts from the defaults, applies --config if given and
// then every engine flag the user set explicitly.
func resolveConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	applyFlagOverrides(cmd, &cfg)
	return cfg, cfg.Validate()
}

func applyFlagOverrides(cmd *cobra.Command, cfg *sim.Config) {
	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("horizon") {
		cfg.Horizon = horizon
	}
	if flags.Changed("wait-time") {
		cfg.WaitTime = waitTime
	}
	if flags.Changed("min-delta") {
		cfg.MinDelta = minDelta
	}
	if flags.Changed("max-delta") {
		cfg.MaxDelta = maxDelta
	}
	if flags.Changed("rollback-margin") {
		cfg.RollbackMargin = rollbackMargin
	}
	if flags.Changed("contender") {
		cfg.Contender = contender
	}
	if flags.Changed("epsilon") {
		cfg.Policy.Epsilon = epsilon
	}
	if flags.Changed("alpha") {
		cfg.Policy.Alpha = alpha
	}
	if flags.Changed("gamma") {
		cfg.Policy.Gamma = gamma
	}
	if flags.Changed("lookahead") {
		cfg.Policy.Lookahead = lookahead
	}
}
