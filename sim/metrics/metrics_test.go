package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObservePassAndConflict(t *testing.T) {
	// GIVEN a recorder on a private registry
	reg := prometheus.NewRegistry()
	r, err := NewRecorder(reg)
	require.NoError(t, err)

	// WHEN two passes and one rolled-back conflict are observed
	r.ObservePass("conflict", 40)
	r.ObservePass("completed", 120)
	r.ObserveConflict(true)
	r.SetBestScore(3.5)

	// THEN counters and gauges reflect the observations
	expected := `
# HELP planner_passes_total Simulation passes by outcome
# TYPE planner_passes_total counter
planner_passes_total{outcome="completed"} 1
planner_passes_total{outcome="conflict"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(r.passes, strings.NewReader(expected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.conflicts))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rollbacks))
	assert.Equal(t, 3.5, testutil.ToFloat64(r.bestScore))
	assert.Equal(t, 1, testutil.CollectAndCount(r.passEvents))
}

func TestNewRecorder_AlreadyRegistered_ReusesCollectors(t *testing.T) {
	// GIVEN a registry that already carries the planner collectors
	reg := prometheus.NewRegistry()
	first, err := NewRecorder(reg)
	require.NoError(t, err)
	first.ObserveConflict(false)

	// WHEN a second recorder is created on the same registry
	second, err := NewRecorder(reg)

	// THEN it shares the existing collectors
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.conflicts))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.rollbacks))
}

func TestRecorder_Nil_IsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObservePass("completed", 1)
		r.ObserveConflict(true)
		r.SetBestScore(1)
		r.SetLearned(1, 1)
	})
	assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
	assert.Nil(t, r.Registry())
}

func TestRecorder_WriteTextfile(t *testing.T) {
	// GIVEN a recorder with learned-state gauges set
	r, err := NewRecorder(nil)
	require.NoError(t, err)
	r.SetLearned(4, 17)

	// WHEN written to a textfile
	path := filepath.Join(t.TempDir(), "planner.prom")
	require.NoError(t, r.WriteTextfile(path))

	// THEN the file carries the exposition lines
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "planner_avoidance_rules 4")
	assert.Contains(t, string(data), "planner_policy_states 17")
}
