package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(30), cfg.WaitTime)
	assert.Equal(t, int64(300), cfg.MaxDelta)
	assert.Equal(t, int64(20180101), cfg.Seed)
	assert.Equal(t, 0.6, cfg.Policy.Gamma)
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	// GIVEN a file that sets only some fields
	path := writeConfig(t, `
wait_time: 15
max_delta: 600
policy:
  epsilon: 0
  lookahead: 3
`)

	// WHEN loaded
	cfg, err := LoadConfig(path)

	// THEN set fields change and the rest keep their defaults
	require.NoError(t, err)
	assert.Equal(t, int64(15), cfg.WaitTime)
	assert.Equal(t, int64(600), cfg.MaxDelta)
	assert.Equal(t, int64(300), cfg.MinDelta)
	assert.Equal(t, 0.0, cfg.Policy.Epsilon)
	assert.Equal(t, 0.1, cfg.Policy.Alpha)
	assert.Equal(t, 3, cfg.Policy.Lookahead)
}

func TestLoadConfig_UnknownKey_Rejected(t *testing.T) {
	path := writeConfig(t, "wait_tme: 15\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero horizon", func(c *Config) { c.Horizon = 0 }},
		{"zero wait", func(c *Config) { c.WaitTime = 0 }},
		{"negative delta", func(c *Config) { c.MinDelta = -1 }},
		{"max below min", func(c *Config) { c.MinDelta, c.MaxDelta = 600, 300 }},
		{"negative margin", func(c *Config) { c.RollbackMargin = -1 }},
		{"unknown contender", func(c *Config) { c.Contender = "loudest" }},
		{"epsilon above one", func(c *Config) { c.Policy.Epsilon = 1.5 }},
		{"negative gamma", func(c *Config) { c.Policy.Gamma = -0.1 }},
		{"negative lookahead", func(c *Config) { c.Policy.Lookahead = -2 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
