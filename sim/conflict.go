package sim

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/train-sim/train-sim/sim/trace"
)

// AvoidanceRule bars a train from entering Section while Other occupies
// OtherSection. Rules are learned from conflicts and are never removed.
type AvoidanceRule struct {
	Section      SectionID
	Other        TrainID
	OtherSection SectionID
}

// AvoidanceSet indexes rules by the section they bar.
type AvoidanceSet struct {
	bySection map[SectionID][]AvoidanceRule
	size      int
}

// NewAvoidanceSet returns an empty set.
func NewAvoidanceSet() *AvoidanceSet {
	return &AvoidanceSet{bySection: make(map[SectionID][]AvoidanceRule)}
}

// Len returns the number of distinct rules.
func (a *AvoidanceSet) Len() int {
	return a.size
}

// Add inserts rule and reports whether it was new.
func (a *AvoidanceSet) Add(rule AvoidanceRule) bool {
	for _, r := range a.bySection[rule.Section] {
		if r == rule {
			return false
		}
	}
	a.bySection[rule.Section] = append(a.bySection[rule.Section], rule)
	a.size++
	return true
}

// Rules returns the rules barring section.
func (a *AvoidanceSet) Rules(section SectionID) []AvoidanceRule {
	return a.bySection[section]
}

// Bars reports whether section is barred given where the interacting trains
// currently are, and returns the first train whose occupancy bars it.
func (a *AvoidanceSet) Bars(section SectionID, interacting []TrainID, occupancy func(TrainID) SectionID) (TrainID, bool) {
	rules := a.bySection[section]
	if len(rules) == 0 {
		return NoTrain, false
	}
	for _, other := range interacting {
		cur := occupancy(other)
		for _, r := range rules {
			if r.Other == other && r.OtherSection == cur {
				return other, true
			}
		}
	}
	return NoTrain, false
}

// Conflict describes a late train that found no admissible section.
type Conflict struct {
	Time         int64
	RollbackTime int64
	Rule         AvoidanceRule
	NewRule      bool
	Late         TrainID
	Contender    TrainID
	Yielder      TrainID
}

func (c *Conflict) String() string {
	return fmt.Sprintf("late=%d contender=%d yielder=%d rule={section=%d other=%d at=%d} rollback=%d",
		c.Late, c.Contender, c.Yielder, c.Rule.Section, c.Rule.Other, c.Rule.OtherSection, c.RollbackTime)
}

// trainPair is an unordered pair of trains, lo < hi.
type trainPair struct {
	lo, hi TrainID
}

func newTrainPair(a, b TrainID) trainPair {
	if a > b {
		a, b = b, a
	}
	return trainPair{lo: a, hi: b}
}

// Priority returns the train that wins conflicts between a and b. The winner
// is drawn once, on the pair's first conflict, and kept for the whole run.
func (sim *Simulator) Priority(a, b TrainID) TrainID {
	p := newTrainPair(a, b)
	if w, ok := sim.priorities[p]; ok {
		return w
	}
	w := p.lo
	if sim.rng.ForSubsystem(SubsystemPriority).Intn(2) == 1 {
		w = p.hi
	}
	sim.priorities[p] = w
	return w
}

// pickContender selects the blocking train the late train contends with.
func (sim *Simulator) pickContender(blockers []TrainID) TrainID {
	if sim.Config.Contender == ContenderRandom && len(blockers) > 1 {
		return blockers[sim.rng.ForSubsystem(SubsystemContender).Intn(len(blockers))]
	}
	return blockers[0]
}

// resolveConflict decides which of the late train and its contender yields,
// learns the avoidance rule that would have prevented the situation and
// signals the conflict to the loop. A yielding contender is rolled back to
// the section that took the blocking resources; a yielding late train to
// its last section. When neither train has moved yet there is nothing to
// roll back and the late train keeps waiting.
func (sim *Simulator) resolveConflict(t *Train, blockers []TrainID, blocking []ResourceID) Step {
	contender := sim.pickContender(blockers)
	winner := sim.Priority(t.ID, contender)
	yielder, other := t.ID, contender
	if winner == t.ID {
		yielder, other = contender, t.ID
	}
	if len(sim.Trains[yielder].Solution.Sections) == 0 {
		yielder, other = other, yielder
	}
	ys := &sim.Trains[yielder].Solution
	if len(ys.Sections) == 0 {
		sim.Schedule(NewEnterNodeEvent(sim.Clock+sim.Config.WaitTime, t.ID, sim.currentNode(t)))
		return Step{Kind: StepWaiting}
	}

	k := len(ys.Sections) - 1
	if yielder != t.ID {
		k = sim.blockingSection(yielder, blocking)
	}
	otherSection, ok := ys.Others[k][other]
	if !ok {
		otherSection = Depot
	}
	rule := AvoidanceRule{Section: ys.Sections[k].Section, Other: other, OtherSection: otherSection}
	c := &Conflict{
		Time:         sim.Clock,
		RollbackTime: max(0, ys.Sections[k].EntryTime-sim.Config.RollbackMargin),
		Rule:         rule,
		NewRule:      sim.Avoidance.Add(rule),
		Late:         t.ID,
		Contender:    contender,
		Yielder:      yielder,
	}
	if sim.Trace != nil {
		sim.Trace.RecordConflict(trace.ConflictRecord{
			Clock:        c.Time,
			Late:         t.Name,
			Contender:    sim.Trains[contender].Name,
			Yielder:      sim.Trains[yielder].Name,
			Section:      sim.Network.Section(rule.Section).Key(),
			RollbackTime: c.RollbackTime,
			NewRule:      c.NewRule,
		})
	}
	return Step{Kind: StepConflict, Conflict: c}
}

// blockingSection returns the index of the newest section of yielder that
// uses one of the blocking resources it still holds, or its last section
// when the block comes from an avoidance rule alone.
func (sim *Simulator) blockingSection(yielder TrainID, blocking []ResourceID) int {
	ys := &sim.Trains[yielder].Solution
	for k := len(ys.Sections) - 1; k >= 0; k-- {
		sec := sim.Network.Section(ys.Sections[k].Section)
		for _, r := range blocking {
			if sim.Resources.Get(r).Holder() == yielder && sec.Uses(r) {
				return k
			}
		}
	}
	return len(ys.Sections) - 1
}

// currentNode is the node where t stands: its start before the first decision,
// else the end of its current section.
func (sim *Simulator) currentNode(t *Train) NodeID {
	cur := t.Solution.Current()
	if cur == Depot {
		return t.Start
	}
	return sim.Network.Section(cur).End
}

// hold is the reconstructed state of one resource held by one train.
type hold struct {
	occupied  bool
	releaseAt int64
}

// GoBack rewinds the simulation to time at: every decision taken after at is
// discarded, resource holds are rebuilt from the surviving history and the
// pending movement and release events are re-derived. The dispatch table,
// avoidance rules and pair priorities survive. GoBack is idempotent.
func (sim *Simulator) GoBack(at int64) error {
	if at < 0 {
		return fmt.Errorf("rollback to negative time %d", at)
	}
	sim.FreeAllResources()
	sim.queue.Clear()
	sim.Clock = at
	for _, t := range sim.Trains {
		t.Solution.truncate(at)
	}

	holds := make([]map[ResourceID]hold, len(sim.Trains))
	for i, t := range sim.Trains {
		holds[i] = sim.reconstructHolds(t, at)
		for _, r := range sortedResources(holds[i]) {
			h := holds[i][r]
			release := Unset
			if !h.occupied {
				release = h.releaseAt
			}
			if err := sim.Resources.Restore(r, t.ID, h.occupied, release); err != nil {
				return fmt.Errorf("rollback to %d: %w", at, err)
			}
		}
	}
	for i, t := range sim.Trains {
		for _, r := range sortedResources(holds[i]) {
			if h := holds[i][r]; !h.occupied {
				sim.Schedule(NewReleaseResourceEvent(h.releaseAt, t.ID, r))
			}
		}
	}
	for _, t := range sim.Trains {
		sim.resumeTrain(t, at)
	}

	if sim.Trace != nil {
		sim.Trace.RecordRollback(trace.RollbackRecord{
			Clock:     at,
			Retained:  sim.committedSections(),
			Avoidance: sim.Avoidance.Len(),
		})
	}
	logrus.Debugf("[tick %07d] rolled back, %d avoidance rules", at, sim.Avoidance.Len())
	return nil
}

// reconstructHolds replays t's retained history: the open section is
// occupied and exited resources stay held until their cooldown passes at.
// Later sections override earlier ones.
func (sim *Simulator) reconstructHolds(t *Train, at int64) map[ResourceID]hold {
	holds := make(map[ResourceID]hold)
	for _, ss := range t.Solution.Sections {
		sec := sim.Network.Section(ss.Section)
		for _, r := range sec.Resources {
			if !ss.Completed() {
				holds[r] = hold{occupied: true}
				continue
			}
			releaseAt := ss.ExitTime + sim.Resources.Get(r).ReleaseTime
			if releaseAt > at {
				holds[r] = hold{releaseAt: releaseAt}
			} else {
				delete(holds, r)
			}
		}
	}
	return holds
}

// resumeTrain schedules the next movement event of t after a rollback to at.
func (sim *Simulator) resumeTrain(t *Train, at int64) {
	last := t.Solution.Last()
	if last == nil {
		sim.Schedule(NewEnterNodeEvent(max(at, t.StartTime()), t.ID, t.Start))
		return
	}
	if last.Completed() {
		t.Solution.Done = true
		return
	}
	sec := sim.Network.Section(last.Section)
	switch {
	case last.Halt && at < last.Arrival:
		sim.Schedule(NewEnterStationEvent(last.Arrival, t.ID, sec.ID))
	case last.Halt:
		sim.Schedule(NewEnterNodeEvent(max(at, sim.departure(t, sec, last.Arrival)), t.ID, sec.End))
	default:
		sim.Schedule(NewEnterNodeEvent(max(at, last.Arrival), t.ID, sec.End))
	}
}

func (sim *Simulator) committedSections() int {
	n := 0
	for _, t := range sim.Trains {
		n += len(t.Solution.Sections)
	}
	return n
}

func sortedResources(m map[ResourceID]hold) []ResourceID {
	ids := make([]ResourceID, 0, len(m))
	for r := range m {
		ids = append(ids, r)
	}
	slices.Sort(ids)
	return ids
}
