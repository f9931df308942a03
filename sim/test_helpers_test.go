package sim

import (
	"fmt"
	"testing"
)

// leg describes one section of a linear test route.
type leg struct {
	resources []string
	run       int64
	marker    string
	penalty   float64
}

// fixture assembles small problem instances by hand.
type fixture struct {
	net    *Network
	reg    *Registry
	trains []*Train
}

func newFixture() *fixture {
	return &fixture{net: NewNetwork(), reg: NewRegistry()}
}

// resource registers a resource with the given release time.
func (f *fixture) resource(name string, release int64) {
	f.reg.Add(name, release, false)
}

// linear adds a train running start -> n1 -> ... -> end over legs. Route is
// the train name and path "p"; section sequence numbers start at 1.
func (f *fixture) linear(t *testing.T, name string, reqs []Requirement, legs ...leg) *Train {
	t.Helper()
	tr := &Train{ID: TrainID(len(f.trains)), Name: name, Requirements: reqs}
	prev := f.net.AddNode(tr.ID, "start")
	tr.Start = prev
	for i, l := range legs {
		label := "end"
		if i < len(legs)-1 {
			label = fmt.Sprintf("%d->%d", i+1, i+2)
		}
		next := f.net.AddNode(tr.ID, label)
		sec := Section{
			Train:          tr.ID,
			Route:          name,
			Path:           "p",
			Sequence:       i + 1,
			MinRunningTime: l.run,
			Penalty:        l.penalty,
			Marker:         l.marker,
			Requirement:    tr.RequirementIndex(l.marker),
			Start:          prev,
			End:            next,
		}
		for _, rn := range l.resources {
			id, err := f.reg.Lookup(rn)
			if err != nil {
				t.Fatalf("fixture: %v", err)
			}
			sec.Resources = append(sec.Resources, id)
		}
		if _, err := f.net.AddSection(sec); err != nil {
			t.Fatalf("fixture: %v", err)
		}
		prev = next
	}
	tr.End = prev
	f.trains = append(f.trains, tr)
	return tr
}

// simulator wraps the fixture in a simulator and initializes it.
func (f *fixture) simulator(t *testing.T, cfg Config) *Simulator {
	t.Helper()
	s, err := NewSimulator(cfg, f.net, f.reg, f.trains, nil)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	s.Initialize()
	return s
}

// testConfig is a greedy, slack-free configuration.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinDelta = 0
	cfg.MaxDelta = 0
	cfg.Policy.Epsilon = 0
	return cfg
}

func req(seq int, marker string, typ RequirementType) Requirement {
	return NewRequirement(seq, marker, typ)
}

// opposingTrains builds two trains that both need the single-track resource
// T (60s release) before running onto a private resource. A starts at 10 and
// must exit by 400; B starts at 10 and must exit by 200, so B is the urgent one.
func opposingTrains(t *testing.T) *fixture {
	t.Helper()
	f := newFixture()
	f.resource("T", 60)
	f.resource("EA", 0)
	f.resource("EB", 0)

	startA := req(1, "SA", RequirementStart)
	startA.EntryEarliest = 10
	endA := req(2, "ZA", RequirementEnd)
	endA.ExitLatest = 400
	endA.ExitDelayWeight = 1
	f.linear(t, "A", []Requirement{startA, endA},
		leg{resources: []string{"T"}, run: 100, marker: "SA"},
		leg{resources: []string{"EA"}, run: 50, marker: "ZA"})

	startB := req(1, "SB", RequirementStart)
	startB.EntryEarliest = 10
	endB := req(2, "ZB", RequirementEnd)
	endB.ExitLatest = 200
	endB.ExitDelayWeight = 1
	f.linear(t, "B", []Requirement{startB, endB},
		leg{resources: []string{"T"}, run: 100, marker: "SB"},
		leg{resources: []string{"EB"}, run: 50, marker: "ZB"})
	return f
}

// connectingTrains builds a feeder A (enters X at 50) and a train B that halts
// at M and must wait 180s after A entered X before leaving.
func connectingTrains(t *testing.T) *fixture {
	t.Helper()
	f := newFixture()
	f.resource("RA", 0)
	f.resource("RB1", 0)
	f.resource("RB2", 0)

	x := req(1, "X", RequirementStart)
	x.EntryEarliest = 50
	x.Connections = []Connection{{ID: "c1", OntoTrain: "B", OntoMarker: "M", MinConnectionTime: 180}}
	f.linear(t, "A", []Requirement{x}, leg{resources: []string{"RA"}, run: 100, marker: "X"})

	m := req(1, "M", RequirementHalt)
	e := req(2, "E", RequirementEnd)
	f.linear(t, "B", []Requirement{m, e},
		leg{resources: []string{"RB1"}, run: 10, marker: "M"},
		leg{resources: []string{"RB2"}, run: 10, marker: "E"})
	return f
}

// runToEnd alternates Run and GoBack until the pass completes.
func runToEnd(t *testing.T, s *Simulator, maxConflicts int) (*PassResult, int) {
	t.Helper()
	conflicts := 0
	for {
		res, err := s.Run()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if res.Outcome != PassConflict {
			return res, conflicts
		}
		conflicts++
		if conflicts > maxConflicts {
			t.Fatalf("more than %d conflicts", maxConflicts)
		}
		if err := s.GoBack(res.Conflict.RollbackTime); err != nil {
			t.Fatalf("GoBack: %v", err)
		}
	}
}

func eventStrings(s *Simulator) []string {
	evs := s.PendingEvents()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.String()
	}
	return out
}

// holders returns the current holder of every resource, indexed by ResourceID.
func holders(g *Registry) []TrainID {
	out := make([]TrainID, g.Len())
	for i := range out {
		out[i] = g.Get(ResourceID(i)).Holder()
	}
	return out
}
