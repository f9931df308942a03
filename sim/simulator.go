// sim/simulator.go
package sim

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/train-sim/train-sim/sim/trace"
)

// ErrHorizonExceeded is returned by Run when the event queue drains, or the
// horizon cuts it off, before every train reached its end node.
var ErrHorizonExceeded = errors.New("pass did not finish before the horizon")

// StepKind classifies the outcome of executing one event.
type StepKind int

const (
	StepProgressed StepKind = iota // state advanced
	StepWaiting                    // the train re-enqueued its decision
	StepConflict                   // the train is late and blocked; see Step.Conflict
)

// Step is the result of executing one event.
type Step struct {
	Kind     StepKind
	Conflict *Conflict
}

// PassOutcome classifies the end of a Run.
type PassOutcome string

const (
	PassCompleted PassOutcome = "completed"
	PassConflict  PassOutcome = "conflict"
	PassExhausted PassOutcome = "exhausted"
)

// PassResult summarizes one Run.
type PassResult struct {
	Outcome  PassOutcome
	Conflict *Conflict // set when Outcome == PassConflict
	Clock    int64
	Events   int
}

// Simulator is the core object that holds simulation time, the shared
// resource state and the event loop.
type Simulator struct {
	Config    Config
	Clock     int64
	Network   *Network
	Resources *Registry
	Trains    []*Train
	// Policy and Avoidance persist across Initialize and GoBack.
	Policy    *QTable
	Avoidance *AvoidanceSet
	// Trace is nil unless decision tracing is enabled.
	Trace *trace.SimulationTrace

	queue      *EventQueue
	rng        *PartitionedRNG
	priorities map[trainPair]TrainID
}

// NewSimulator validates the instance, computes every train's limits,
// materializes waiting connections and returns a simulator ready for
// Initialize. A nil policy gets a fresh table built from cfg.Policy.
func NewSimulator(cfg Config, network *Network, resources *Registry, trains []*Train, policy *QTable) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Contender == "" {
		cfg.Contender = ContenderFirst
	}
	for i, t := range trains {
		if t.ID != TrainID(i) {
			return nil, fmt.Errorf("train %s: ID %d does not match position %d", t.Name, t.ID, i)
		}
		if err := validateRequirements(t); err != nil {
			return nil, err
		}
	}
	for i := range network.Sections {
		sec := &network.Sections[i]
		if int(sec.Train) >= len(trains) || sec.Train < 0 {
			return nil, fmt.Errorf("section %s: unknown train %d", sec.Key(), sec.Train)
		}
		for _, r := range sec.Resources {
			if !resources.Contains(r) {
				return nil, fmt.Errorf("section %s: %w: id %d", sec.Key(), ErrUnknownResource, r)
			}
		}
	}
	if err := MaterializeConnections(trains); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = NewQTable(cfg.Policy)
	}
	s := &Simulator{
		Config:     cfg,
		Network:    network,
		Resources:  resources,
		Trains:     trains,
		Policy:     policy,
		Avoidance:  NewAvoidanceSet(),
		queue:      NewEventQueue(),
		rng:        NewPartitionedRNG(NewSimulationKey(cfg.Seed)),
		priorities: make(map[trainPair]TrainID),
	}
	for _, t := range trains {
		network.ComputeLimits(t)
	}
	s.linkInteracting()
	return s, nil
}

// linkInteracting fills Train.Interacting from shared resource usage.
func (sim *Simulator) linkInteracting() {
	users := make([][]TrainID, sim.Resources.Len())
	for i := range sim.Network.Sections {
		sec := &sim.Network.Sections[i]
		for _, r := range sec.Resources {
			if !slices.Contains(users[r], sec.Train) {
				users[r] = append(users[r], sec.Train)
			}
		}
	}
	for _, t := range sim.Trains {
		t.Interacting = t.Interacting[:0]
	}
	for _, us := range users {
		for _, a := range us {
			for _, b := range us {
				if a != b && !slices.Contains(sim.Trains[a].Interacting, b) {
					sim.Trains[a].Interacting = append(sim.Trains[a].Interacting, b)
				}
			}
		}
	}
	for _, t := range sim.Trains {
		slices.Sort(t.Interacting)
	}
}

// Initialize resets resources, solutions and pending events for a new pass
// and schedules every train's start event, in train order.
// The dispatch table, avoidance rules and pair priorities are kept.
func (sim *Simulator) Initialize() {
	sim.FreeAllResources()
	sim.queue.Clear()
	sim.Clock = 0
	for _, t := range sim.Trains {
		t.Solution.Reset()
	}
	for _, t := range sim.Trains {
		sim.Schedule(NewEnterNodeEvent(t.StartTime(), t.ID, t.Start))
	}
}

// FreeAllResources resets every resource to unheld.
func (sim *Simulator) FreeAllResources() {
	sim.Resources.FreeAll()
}

// Schedule enqueues ev. Events at or beyond the horizon are dropped and
// Schedule returns false.
func (sim *Simulator) Schedule(ev Event) bool {
	if ev.Timestamp() < sim.Clock {
		panic(fmt.Sprintf("scheduling %s in the past (clock %d)", ev, sim.Clock))
	}
	if ev.Timestamp() >= sim.Config.Horizon {
		logrus.Debugf("[tick %07d] dropping %s beyond horizon %d", sim.Clock, ev, sim.Config.Horizon)
		return false
	}
	sim.queue.Push(ev)
	return true
}

// PendingEvents returns the queued events in processing order.
func (sim *Simulator) PendingEvents() []Event {
	return sim.queue.Events()
}

// Run processes events until every train is done, a conflict is signalled or
// the queue drains. A drained queue with unfinished trains returns
// ErrHorizonExceeded alongside the result.
func (sim *Simulator) Run() (*PassResult, error) {
	res := &PassResult{}
	for sim.queue.Len() > 0 && !sim.allDone() {
		ev := sim.queue.Pop()
		if ev.Timestamp() < sim.Clock {
			panic(fmt.Sprintf("Clock went backwards: %d < %d", ev.Timestamp(), sim.Clock))
		}
		sim.Clock = ev.Timestamp()
		logrus.Tracef("[tick %07d] Executing %s", sim.Clock, ev)
		step, err := ev.Execute(sim)
		res.Events++
		if err != nil {
			return nil, fmt.Errorf("tick %d: %s: %w", sim.Clock, ev, err)
		}
		if step.Kind == StepConflict {
			res.Outcome = PassConflict
			res.Conflict = step.Conflict
			res.Clock = sim.Clock
			logrus.Debugf("[tick %07d] conflict: %s", sim.Clock, step.Conflict)
			return res, nil
		}
	}
	res.Clock = sim.Clock
	if !sim.allDone() {
		res.Outcome = PassExhausted
		stuck := sim.unfinished()
		logrus.Warnf("[tick %07d] pass exhausted with %d unfinished trains: %s", sim.Clock, len(stuck), strings.Join(stuck, ","))
		return res, fmt.Errorf("%w: %d trains unfinished at tick %d", ErrHorizonExceeded, len(stuck), sim.Clock)
	}
	res.Outcome = PassCompleted
	logrus.Debugf("[tick %07d] pass completed", sim.Clock)
	return res, nil
}

func (sim *Simulator) allDone() bool {
	for _, t := range sim.Trains {
		if !t.Solution.Done {
			return false
		}
	}
	return true
}

func (sim *Simulator) unfinished() []string {
	var names []string
	for _, t := range sim.Trains {
		if !t.Solution.Done {
			names = append(names, t.Name)
		}
	}
	return names
}

// enterNode runs the decision of a train standing at a node.
func (sim *Simulator) enterNode(e *EnterNodeEvent) (Step, error) {
	t := sim.Trains[e.Train]
	node := sim.Network.Node(e.Node)
	if node.IsTerminal() {
		sim.arrive(t)
		return Step{Kind: StepProgressed}, nil
	}

	candidates, barred := sim.viableSections(t, node)
	free, busy, blocking := sim.freeSections(t, candidates)
	if len(free) == 0 {
		if sim.IsLate(t, node) {
			blockers := appendUnique(busy, barred...)
			if len(blockers) > 0 {
				return sim.resolveConflict(t, blockers, blocking), nil
			}
		}
		sim.Schedule(NewEnterNodeEvent(sim.Clock+sim.Config.WaitTime, t.ID, node.ID))
		return Step{Kind: StepWaiting}, nil
	}

	state := sim.stateKey(t, node)
	choice, explored := sim.Policy.Choose(sim.rng.ForSubsystem(SubsystemPolicy), state, free)
	sec := sim.Network.Section(choice)

	if req := t.RequirementOf(sec); req != nil && req.EntryEarliest > sim.Clock {
		sim.Schedule(NewEnterNodeEvent(req.EntryEarliest, t.ID, node.ID))
		return Step{Kind: StepWaiting}, nil
	}
	if at, ready := sim.connectionsReady(t); !ready {
		sim.Schedule(NewEnterNodeEvent(at, t.ID, node.ID))
		return Step{Kind: StepWaiting}, nil
	}

	if err := sim.commit(t, sec, state); err != nil {
		return Step{}, err
	}
	if sim.Trace != nil {
		sim.Trace.RecordDecision(trace.DecisionRecord{
			Train:      t.Name,
			Clock:      sim.Clock,
			Node:       node.Label,
			Chosen:     sec.Key(),
			Candidates: len(free),
			Explored:   explored,
		})
	}
	return Step{Kind: StepProgressed}, nil
}

// enterStation schedules the departure decision once the dwell is over.
func (sim *Simulator) enterStation(e *EnterStationEvent) (Step, error) {
	t := sim.Trains[e.Train]
	sec := sim.Network.Section(e.Section)
	sim.Schedule(NewEnterNodeEvent(sim.departure(t, sec, e.time), t.ID, sec.End))
	return Step{Kind: StepProgressed}, nil
}

// departure is the earliest time a train that reached the platform of sec at
// arrival may leave it.
func (sim *Simulator) departure(t *Train, sec *Section, arrival int64) int64 {
	req := t.RequirementOf(sec)
	if req == nil {
		return arrival
	}
	return max(req.ExitEarliest, arrival+req.MinStoppingTime)
}

// arrive marks the train done and releases its last section.
func (sim *Simulator) arrive(t *Train) {
	last := t.Solution.Last()
	if last != nil {
		sec := sim.Network.Section(last.Section)
		for _, r := range sec.Resources {
			sim.Schedule(NewReleaseResourceEvent(sim.Resources.Exit(r, t.ID, sim.Clock), t.ID, r))
		}
		last.ExitTime = sim.Clock
		sim.learn(t, len(t.Solution.Sections)-1, TerminalState)
	}
	t.Solution.Done = true
	logrus.Debugf("[tick %07d] train %s done", sim.Clock, t.Name)
}

// commit moves t onto sec: the previous section's resources not reused by
// sec get deferred releases, sec's resources are claimed in this tick, and
// the next movement event is scheduled.
func (sim *Simulator) commit(t *Train, sec *Section, state string) error {
	now := sim.Clock
	sol := &t.Solution
	if prev := sol.Last(); prev != nil {
		prevSec := sim.Network.Section(prev.Section)
		for _, r := range prevSec.Resources {
			if sec.Uses(r) {
				continue
			}
			sim.Schedule(NewReleaseResourceEvent(sim.Resources.Exit(r, t.ID, now), t.ID, r))
		}
		prev.ExitTime = now
	}
	for _, r := range sec.Resources {
		if err := sim.Resources.Enter(r, t.ID, now); err != nil {
			return err
		}
	}

	arrival := now + sec.MinRunningTime
	req := t.RequirementOf(sec)
	halt := req != nil && req.Halts()
	sol.Sections = append(sol.Sections, SectionSolution{
		Section:   sec.ID,
		Marker:    sec.Marker,
		EntryTime: now,
		ExitTime:  Unset,
		Arrival:   arrival,
		Halt:      halt,
	})
	sol.States = append(sol.States, state)
	sol.Others = append(sol.Others, sim.snapshotOthers(t))
	if n := len(sol.Sections); n > 1 {
		sim.learn(t, n-2, state)
	}

	if halt {
		sim.Schedule(NewEnterStationEvent(arrival, t.ID, sec.ID))
	} else {
		sim.Schedule(NewEnterNodeEvent(arrival, t.ID, sec.End))
	}
	logrus.Debugf("[tick %07d] train %s enters %s", now, t.Name, sec.Key())
	return nil
}

// learn rewards the k-th completed decision of t and updates the dispatch table.
func (sim *Simulator) learn(t *Train, k int, next string) {
	ss := t.Solution.Sections[k]
	reward := RewardBase - sim.SectionPenalty(t, ss)
	sim.Policy.Update(t.Solution.States[k], ss.Section, reward, next)
}

// viableSections returns the outgoing sections not barred by an avoidance
// rule, and the trains whose occupancy barred the others.
func (sim *Simulator) viableSections(t *Train, node *Node) ([]SectionID, []TrainID) {
	candidates := make([]SectionID, 0, len(node.Out))
	var barred []TrainID
	for _, sid := range node.Out {
		if by, ok := sim.Avoidance.Bars(sid, t.Interacting, sim.occupancy); ok {
			barred = appendUnique(barred, by)
			continue
		}
		candidates = append(candidates, sid)
	}
	return candidates, barred
}

// freeSections splits candidates into those whose resources are all free for
// t, the trains holding the busy ones and the busy resources themselves.
func (sim *Simulator) freeSections(t *Train, candidates []SectionID) ([]SectionID, []TrainID, []ResourceID) {
	free := make([]SectionID, 0, len(candidates))
	var busy []TrainID
	var blocking []ResourceID
	for _, sid := range candidates {
		ok := true
		for _, r := range sim.Network.Section(sid).Resources {
			if !sim.Resources.IsFreeFor(r, t.ID) {
				ok = false
				busy = appendUnique(busy, sim.Resources.Get(r).Holder())
				if !slices.Contains(blocking, r) {
					blocking = append(blocking, r)
				}
			}
		}
		if ok {
			free = append(free, sid)
		}
	}
	return free, busy, blocking
}

// connectionsReady checks the waiting connections of the section t is about
// to leave. When one is unsatisfied it returns the time to re-check.
func (sim *Simulator) connectionsReady(t *Train) (int64, bool) {
	last := t.Solution.Last()
	if last == nil {
		return 0, true
	}
	req := t.RequirementOf(sim.Network.Section(last.Section))
	if req == nil {
		return 0, true
	}
	retry := sim.Clock
	for _, w := range req.Waiting {
		from := sim.Trains[w.From]
		ss := from.Solution.FindMarker(w.FromMarker)
		switch {
		case ss == nil && from.Solution.Done:
			// the feeder finished without serving the marker; nothing to wait for
		case ss == nil:
			retry = max(retry, sim.Clock+sim.Config.WaitTime)
		case ss.EntryTime+w.MinConnectionTime > sim.Clock:
			retry = max(retry, ss.EntryTime+w.MinConnectionTime)
		}
	}
	return retry, retry == sim.Clock
}

// IsLate reports whether t, standing at node, is past the node's limit plus
// the allowed slack. Unbounded nodes are never late.
func (sim *Simulator) IsLate(t *Train, node *Node) bool {
	if node.Limit == Unbounded {
		return false
	}
	return sim.Clock > node.Limit+sim.slack(t, node)
}

// slack interpolates between MinDelta at the train's start bound and
// MaxDelta at its end bound.
func (sim *Simulator) slack(t *Train, node *Node) int64 {
	lo, hi := sim.Config.MinDelta, sim.Config.MaxDelta
	if hi <= lo {
		return lo
	}
	start := sim.Network.Node(t.Start).Limit
	end := sim.Network.Node(t.End).Limit
	if start == Unbounded || end <= start {
		return hi
	}
	pos := min(max(node.Limit-start, 0), end-start)
	return lo + (hi-lo)*pos/(end-start)
}

// occupancy returns the section train currently occupies.
func (sim *Simulator) occupancy(train TrainID) SectionID {
	return sim.Trains[train].Solution.Current()
}

// snapshotOthers records what every interacting train occupies right now.
func (sim *Simulator) snapshotOthers(t *Train) map[TrainID]SectionID {
	snap := make(map[TrainID]SectionID, len(t.Interacting))
	for _, o := range t.Interacting {
		snap[o] = sim.occupancy(o)
	}
	return snap
}

// stateKey encodes the acting train and its last section, widened by the
// sections reachable within Lookahead hops annotated with their blocking trains.
func (sim *Simulator) stateKey(t *Train, node *Node) string {
	var sb strings.Builder
	sb.WriteString(t.Name)
	sb.WriteString("@")
	if cur := t.Solution.Current(); cur == Depot {
		sb.WriteString("depot")
	} else {
		sb.WriteString(sim.Network.Section(cur).Key())
	}
	depth := sim.Policy.Config.Lookahead
	if depth <= 0 {
		return sb.String()
	}
	sb.WriteString("->")
	for _, sid := range sim.reachable(node, depth) {
		var holders []string
		for _, r := range sim.Network.Section(sid).Resources {
			if h := sim.Resources.Get(r).Holder(); h != NoTrain && h != t.ID {
				name := sim.Trains[h].Name
				if !slices.Contains(holders, name) {
					holders = append(holders, name)
				}
			}
		}
		if len(holders) == 0 {
			continue
		}
		slices.Sort(holders)
		fmt.Fprintf(&sb, "%s[%s]", sim.Network.Section(sid).Key(), strings.Join(holders, "-"))
	}
	return sb.String()
}

// reachable returns the sections reachable from node within depth hops, in ID order.
func (sim *Simulator) reachable(node *Node, depth int) []SectionID {
	seen := make(map[SectionID]bool)
	frontier := []NodeID{node.ID}
	for d := 0; d < depth && len(frontier) > 0; d++ {
		var next []NodeID
		for _, nid := range frontier {
			for _, sid := range sim.Network.Node(nid).Out {
				if seen[sid] {
					continue
				}
				seen[sid] = true
				next = append(next, sim.Network.Section(sid).End)
			}
		}
		frontier = next
	}
	out := make([]SectionID, 0, len(seen))
	for sid := range seen {
		out = append(out, sid)
	}
	slices.Sort(out)
	return out
}

func appendUnique(dst []TrainID, ids ...TrainID) []TrainID {
	for _, id := range ids {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}
