package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequirement_Delay(t *testing.T) {
	r := NewRequirement(1, "M", RequirementHalt)
	r.EntryLatest = 100
	r.ExitLatest = 200
	r.EntryDelayWeight = 2
	r.ExitDelayWeight = 1

	tests := []struct {
		name        string
		entry, exit int64
		want        float64
	}{
		{"on time", 100, 200, 0},
		{"late entry only", 160, 200, 120},
		{"late exit only", 50, 230, 30},
		{"both late", 110, 210, 30},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Delay(tc.entry, tc.exit))
		})
	}
}

func TestNewRequirement_Defaults(t *testing.T) {
	r := NewRequirement(3, "C", RequirementEnd)
	assert.Equal(t, int64(0), r.EntryEarliest)
	assert.Equal(t, NoDeadline, r.ExitLatest)
	assert.False(t, r.HasEntryLatest())
	assert.False(t, r.HasExitLatest())
	assert.False(t, r.Halts())

	r.MinStoppingTime = 30
	assert.True(t, r.Halts(), "a positive dwell makes any requirement halting")
}

func TestMaterializeConnections_BuildsReverseIndex(t *testing.T) {
	// GIVEN A's requirement X connects onto B's marker M
	f := connectingTrains(t)

	// WHEN connections are materialized (twice, to check the reset)
	require.NoError(t, MaterializeConnections(f.trains))
	require.NoError(t, MaterializeConnections(f.trains))

	// THEN B's requirement M waits on A at X exactly once
	waiting := f.trains[1].Requirements[0].Waiting
	require.Len(t, waiting, 1)
	assert.Equal(t, WaitingConnection{ID: "c1", From: 0, FromMarker: "X", MinConnectionTime: 180}, waiting[0])
	assert.Empty(t, f.trains[0].Requirements[0].Waiting)
}

func TestMaterializeConnections_UnknownTargets(t *testing.T) {
	tests := []struct {
		name   string
		onto   string
		marker string
	}{
		{"unknown train", "Q", "M"},
		{"unknown marker", "B", "NOPE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := connectingTrains(t)
			f.trains[0].Requirements[0].Connections[0].OntoTrain = tc.onto
			f.trains[0].Requirements[0].Connections[0].OntoMarker = tc.marker
			assert.Error(t, MaterializeConnections(f.trains))
		})
	}
}

func TestValidateRequirements_OutOfOrder(t *testing.T) {
	tr := &Train{Name: "X", Requirements: []Requirement{
		NewRequirement(2, "B", RequirementHalt),
		NewRequirement(1, "A", RequirementStart),
	}}
	assert.Error(t, validateRequirements(tr))
}
