package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvoidanceSet_AddAndBars(t *testing.T) {
	a := NewAvoidanceSet()
	rule := AvoidanceRule{Section: 4, Other: 1, OtherSection: Depot}

	assert.True(t, a.Add(rule))
	assert.False(t, a.Add(rule), "duplicate rules are not stored twice")
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, []AvoidanceRule{rule}, a.Rules(4))

	at := map[TrainID]SectionID{1: Depot, 2: 7}
	occ := func(tr TrainID) SectionID { return at[tr] }

	by, barred := a.Bars(4, []TrainID{1, 2}, occ)
	assert.True(t, barred)
	assert.Equal(t, TrainID(1), by)

	at[1] = 9
	_, barred = a.Bars(4, []TrainID{1, 2}, occ)
	assert.False(t, barred, "the rule only applies while the other train is where it was")

	_, barred = a.Bars(5, []TrainID{1, 2}, occ)
	assert.False(t, barred)
}

func TestPriority_DrawnOnceAndSymmetric(t *testing.T) {
	f := opposingTrains(t)
	s := f.simulator(t, testConfig())

	w := s.Priority(0, 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, w, s.Priority(1, 0))
		assert.Equal(t, w, s.Priority(0, 1))
	}
	assert.Len(t, s.priorities, 1)
}

func TestResolveConflict_NeitherTrainMoved_Waits(t *testing.T) {
	// GIVEN two trains standing at their start nodes
	f := opposingTrains(t)
	s := f.simulator(t, testConfig())
	s.queue.Clear()
	s.Clock = 70

	// WHEN a conflict is resolved between them
	step := s.resolveConflict(s.Trains[1], []TrainID{0}, []ResourceID{0})

	// THEN there is nothing to roll back and the late train re-checks later
	assert.Equal(t, StepWaiting, step.Kind)
	assert.Nil(t, step.Conflict)
	assert.Equal(t, 0, s.Avoidance.Len())
	assert.Equal(t, []string{"EnterNode(t=100 train=1 node=3)"}, eventStrings(s))
}

func TestPickContender(t *testing.T) {
	f := opposingTrains(t)
	cfg := testConfig()
	s := f.simulator(t, cfg)
	assert.Equal(t, TrainID(1), s.pickContender([]TrainID{1, 0}))

	cfg.Contender = ContenderRandom
	s = opposingTrains(t).simulator(t, cfg)
	seen := map[TrainID]bool{}
	for i := 0; i < 100; i++ {
		seen[s.pickContender([]TrainID{0, 1})] = true
	}
	assert.Len(t, seen, 2)
}

// completedOpposing returns a simulator whose single pass finished after one rollback.
func completedOpposing(t *testing.T) *Simulator {
	t.Helper()
	s := opposingTrains(t).simulator(t, testConfig())
	_, conflicts := runToEnd(t, s, 5)
	require.Equal(t, 1, conflicts)
	return s
}

func TestGoBack_RebuildsHoldsAndEvents(t *testing.T) {
	// GIVEN a completed plan: B on T 10-110, EB 110-160; A on T 190-290, EA 290-340
	s := completedOpposing(t)

	// WHEN rewound to 150
	require.NoError(t, s.GoBack(150))

	// THEN A lost all its history and B's second section is open again
	a, b := s.Trains[0], s.Trains[1]
	assert.Empty(t, a.Solution.Sections)
	require.Len(t, b.Solution.Sections, 2)
	assert.Equal(t, Unset, b.Solution.Sections[1].ExitTime)
	assert.Equal(t, int64(110), b.Solution.Sections[0].ExitTime)
	assert.False(t, b.Solution.Done)
	assert.Equal(t, int64(150), s.Clock)

	// THEN T is still in B's release cooldown and EB is occupied by B
	tr := s.Resources.Get(0)
	assert.Equal(t, TrainID(1), tr.Holder())
	assert.False(t, tr.Occupied())
	assert.Equal(t, int64(170), tr.ReleaseAt())
	eb := s.Resources.Get(2)
	assert.Equal(t, TrainID(1), eb.Holder())
	assert.True(t, eb.Occupied())
	assert.Equal(t, NoTrain, s.Resources.Get(1).Holder())

	// THEN the pending events are T's release, A's restart and B's arrival
	assert.Equal(t, []string{
		"EnterNode(t=150 train=0 node=0)",
		"EnterNode(t=160 train=1 node=5)",
		"ReleaseResource(t=170 train=1 resource=0)",
	}, eventStrings(s))
}

func TestGoBack_Idempotent(t *testing.T) {
	// GIVEN a completed plan rewound once
	s := completedOpposing(t)
	require.NoError(t, s.GoBack(150))
	plans, before, events := s.Plans(), holders(s.Resources), eventStrings(s)

	// WHEN rewound again to the same time
	require.NoError(t, s.GoBack(150))

	// THEN nothing changes
	assert.Equal(t, plans, s.Plans())
	assert.Equal(t, before, holders(s.Resources))
	assert.Equal(t, events, eventStrings(s))
}

func TestGoBack_ResumedPassCompletes(t *testing.T) {
	// GIVEN a completed plan rewound to 150
	s := completedOpposing(t)
	require.NoError(t, s.GoBack(150))

	// WHEN the pass resumes
	res, err := s.Run()

	// THEN it completes, B keeps its history and A moves after T's release
	require.NoError(t, err)
	require.Equal(t, PassCompleted, res.Outcome)
	b := s.Trains[1].Solution
	assert.Equal(t, int64(10), b.Sections[0].EntryTime)
	assert.Equal(t, int64(160), b.Sections[1].ExitTime)
	assert.Equal(t, int64(180), s.Trains[0].Solution.Sections[0].EntryTime)
	assert.Equal(t, 0.0, s.ComputeScore().Total)
}

func TestGoBack_Halted_ResumesDwell(t *testing.T) {
	// GIVEN a train that reached a platform at 20 and dwells until 110
	f := newFixture()
	f.resource("R1", 0)
	f.resource("R2", 0)
	h := req(1, "H", RequirementHalt)
	h.MinStoppingTime = 90
	f.linear(t, "X", []Requirement{h},
		leg{resources: []string{"R1"}, run: 20, marker: "H"},
		leg{resources: []string{"R2"}, run: 10})
	s := f.simulator(t, testConfig())
	_, err := s.Run()
	require.NoError(t, err)

	// WHEN rewound to before and after the platform arrival
	require.NoError(t, s.GoBack(15))
	before := eventStrings(s)
	require.NoError(t, s.GoBack(50))
	after := eventStrings(s)

	// THEN the station event or the departure is re-derived
	assert.Equal(t, []string{"EnterStation(t=20 train=0 section=0)"}, before)
	assert.Equal(t, []string{"EnterNode(t=110 train=0 node=1)"}, after)
}

func TestGoBack_NegativeTime_Errors(t *testing.T) {
	s := opposingTrains(t).simulator(t, testConfig())
	assert.Error(t, s.GoBack(-1))
}

func TestGoBack_AvoidanceRulePersists(t *testing.T) {
	// GIVEN the first pass learned the rule barring A from T while B is at the depot
	s := opposingTrains(t).simulator(t, testConfig())
	res, err := s.Run()
	require.NoError(t, err)
	require.Equal(t, PassConflict, res.Outcome)

	// WHEN rolled back
	require.NoError(t, s.GoBack(res.Conflict.RollbackTime))

	// THEN the rule survives and bars A's first section while B has not moved
	assert.Equal(t, 1, s.Avoidance.Len())
	_, barred := s.Avoidance.Bars(0, s.Trains[0].Interacting, s.occupancy)
	assert.True(t, barred)
	assert.Equal(t, []string{
		"EnterNode(t=10 train=0 node=0)",
		"EnterNode(t=10 train=1 node=3)",
	}, eventStrings(s))
}
