package sim

import (
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// RewardBase is the reward of a transition whose section accrued no penalty.
const RewardBase = 10.0

// TerminalState is the state key reported after a train reaches its end node.
// It is never tabled, so its max value is 0.
const TerminalState = ""

// actionValues keeps a state's learned values in first-seen order.
type actionValues struct {
	order []SectionID
	value map[SectionID]float64
}

// QTable is the learned dispatch policy: (state key, section) -> value.
// It persists across passes and rollbacks of one run.
type QTable struct {
	Config PolicyConfig
	states map[string]*actionValues
}

// NewQTable returns an empty table.
func NewQTable(cfg PolicyConfig) *QTable {
	return &QTable{Config: cfg, states: make(map[string]*actionValues)}
}

// Len returns the number of tabled states.
func (q *QTable) Len() int {
	return len(q.states)
}

// Value returns the learned value of action in state.
func (q *QTable) Value(state string, action SectionID) (float64, bool) {
	av, ok := q.states[state]
	if !ok {
		return 0, false
	}
	v, ok := av.value[action]
	return v, ok
}

// MaxValue returns the largest value tabled for state, or 0 when none is.
func (q *QTable) MaxValue(state string) float64 {
	av, ok := q.states[state]
	if !ok || len(av.order) == 0 {
		return 0
	}
	vals := make([]float64, len(av.order))
	for i, a := range av.order {
		vals[i] = av.value[a]
	}
	return floats.Max(vals)
}

// Choose picks one of actions. With probability Epsilon, or when none of the
// actions has been tabled for state, it explores uniformly; otherwise it
// exploits the highest value. Ties go to the action tabled first for state,
// then to untabled actions in the order given.
// The second return value reports exploration.
func (q *QTable) Choose(rng *rand.Rand, state string, actions []SectionID) (SectionID, bool) {
	if len(actions) == 0 {
		panic("QTable.Choose: no actions")
	}
	if rng.Float64() < q.Config.Epsilon {
		return actions[rng.Intn(len(actions))], true
	}
	av, ok := q.states[state]
	if !ok {
		return actions[rng.Intn(len(actions))], true
	}
	ranked := make([]SectionID, 0, len(actions))
	vals := make([]float64, 0, len(actions))
	for _, a := range av.order {
		if slices.Contains(actions, a) {
			ranked = append(ranked, a)
			vals = append(vals, av.value[a])
		}
	}
	if len(ranked) == 0 {
		return actions[rng.Intn(len(actions))], true
	}
	for _, a := range actions {
		if _, tabled := av.value[a]; !tabled {
			ranked = append(ranked, a)
			vals = append(vals, q.Config.InitialValue)
		}
	}
	return ranked[floats.MaxIdx(vals)], false
}

// Update moves Q(state, action) towards reward + gamma * max Q(next, ·).
func (q *QTable) Update(state string, action SectionID, reward float64, next string) float64 {
	old, ok := q.Value(state, action)
	if !ok {
		old = q.Config.InitialValue
	}
	updated := (1-q.Config.Alpha)*old + q.Config.Alpha*(reward+q.Config.Gamma*q.MaxValue(next))
	q.set(state, action, updated)
	return updated
}

func (q *QTable) set(state string, action SectionID, v float64) {
	av, ok := q.states[state]
	if !ok {
		av = &actionValues{value: make(map[SectionID]float64)}
		q.states[state] = av
	}
	if _, seen := av.value[action]; !seen {
		av.order = append(av.order, action)
	}
	av.value[action] = v
}
