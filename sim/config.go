package sim

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Contender selection strategies used when several occupants block a late train.
const (
	ContenderFirst  = "first"  // first blocking train in candidate-section order
	ContenderRandom = "random" // seeded uniform choice among blocking trains
)

// ValidContenders is the set of recognized contender strategies.
var ValidContenders = map[string]bool{"": true, ContenderFirst: true, ContenderRandom: true}

// PolicyConfig groups dispatch-table learning parameters.
type PolicyConfig struct {
	Epsilon      float64 `yaml:"epsilon"`       // exploration probability in [0,1]
	Alpha        float64 `yaml:"alpha"`         // learning rate in [0,1]
	Gamma        float64 `yaml:"gamma"`         // discount factor in [0,1]
	InitialValue float64 `yaml:"initial_value"` // value assumed for untabled actions
	Lookahead    int     `yaml:"lookahead"`     // state-key lookahead depth in sections (0 = last section only)
}

// Config groups engine parameters for one planning run.
type Config struct {
	Horizon        int64        `yaml:"horizon"`         // absolute cutoff (s); events at or beyond are dropped
	WaitTime       int64        `yaml:"wait_time"`       // busy-wait retry interval (s)
	MinDelta       int64        `yaml:"min_delta"`       // lateness slack at the train's start bound (s)
	MaxDelta       int64        `yaml:"max_delta"`       // lateness slack at the train's end bound (s)
	RollbackMargin int64        `yaml:"rollback_margin"` // rollback lands this far before the blocking entry (s)
	Contender      string       `yaml:"contender"`       // "first" (default) or "random"
	Seed           int64        `yaml:"seed"`
	Policy         PolicyConfig `yaml:"policy"`
}

// DefaultConfig returns the engine defaults: a 24h horizon, 30s retries and
// five minutes of lateness slack.
func DefaultConfig() Config {
	return Config{
		Horizon:        24 * 60 * 60,
		WaitTime:       30,
		MinDelta:       5 * 60,
		MaxDelta:       5 * 60,
		RollbackMargin: 1,
		Contender:      ContenderFirst,
		Seed:           20180101,
		Policy: PolicyConfig{
			Epsilon: 0.1,
			Alpha:   0.1,
			Gamma:   0.6,
		},
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
// Unknown keys are rejected so typos surface as errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.Horizon <= 0 {
		return fmt.Errorf("horizon must be positive, got %d", c.Horizon)
	}
	if c.WaitTime <= 0 {
		return fmt.Errorf("wait_time must be positive, got %d", c.WaitTime)
	}
	if c.MinDelta < 0 || c.MaxDelta < 0 {
		return fmt.Errorf("min_delta and max_delta must be non-negative, got %d and %d", c.MinDelta, c.MaxDelta)
	}
	if c.MaxDelta < c.MinDelta {
		return fmt.Errorf("max_delta (%d) must not be below min_delta (%d)", c.MaxDelta, c.MinDelta)
	}
	if c.RollbackMargin < 0 {
		return fmt.Errorf("rollback_margin must be non-negative, got %d", c.RollbackMargin)
	}
	if !ValidContenders[c.Contender] {
		return fmt.Errorf("unknown contender strategy %q", c.Contender)
	}
	return c.Policy.Validate()
}

// Validate checks that learning parameters are probabilities.
func (p PolicyConfig) Validate() error {
	for name, v := range map[string]float64{"epsilon": p.Epsilon, "alpha": p.Alpha, "gamma": p.Gamma} {
		if v < 0 || v > 1 {
			return fmt.Errorf("policy %s must be in [0,1], got %f", name, v)
		}
	}
	if p.Lookahead < 0 {
		return fmt.Errorf("policy lookahead must be non-negative, got %d", p.Lookahead)
	}
	return nil
}
