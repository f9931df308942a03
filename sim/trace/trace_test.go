package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulationTrace_RecordDecision_AppendsRecord(t *testing.T) {
	// GIVEN a trace configured for decisions
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a decision record is recorded
	st.RecordDecision(DecisionRecord{Train: "IC1", Clock: 1000, Node: "(A)", Chosen: "111#3", Candidates: 2})

	// THEN the trace contains one decision with the recorded data
	require.Len(t, st.Decisions, 1)
	assert.Equal(t, "IC1", st.Decisions[0].Train)
	assert.Equal(t, "111#3", st.Decisions[0].Chosen)
	assert.Equal(t, int64(1000), st.Decisions[0].Clock)
}

func TestSimulationTrace_RecordConflictAndRollback_Independent(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelDecisions})

	// WHEN a conflict and a rollback are recorded
	st.RecordConflict(ConflictRecord{Clock: 70, Late: "B", Contender: "A", Yielder: "A", Section: "1#1", RollbackTime: 9, NewRule: true})
	st.RecordRollback(RollbackRecord{Clock: 9, Retained: 0, Avoidance: 1})

	// THEN each slice holds exactly its own record
	assert.Empty(t, st.Decisions)
	require.Len(t, st.Conflicts, 1)
	require.Len(t, st.Rollbacks, 1)
	assert.Equal(t, "A", st.Conflicts[0].Yielder)
	assert.Equal(t, int64(9), st.Rollbacks[0].Clock)
}

func TestIsValidTraceLevel(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"", true},
		{"none", true},
		{"decisions", true},
		{"verbose", false},
		{"DECISIONS", false},
	}
	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			assert.Equal(t, tc.valid, IsValidTraceLevel(tc.level))
		})
	}
}
