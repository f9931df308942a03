// Package trace provides decision-trace recording for planner analysis.
// This package has no dependencies on sim/: it stores pure data types.
package trace

// DecisionRecord captures one dispatch decision at a node.
type DecisionRecord struct {
	Train      string
	Clock      int64
	Node       string
	Chosen     string // route-qualified section key
	Candidates int    // free sections the policy chose among
	Explored   bool   // true when the choice was an exploration draw
}

// ConflictRecord captures a late train that found every section blocked.
type ConflictRecord struct {
	Clock        int64
	Late         string
	Contender    string
	Yielder      string
	Section      string // section the yielder is barred from
	RollbackTime int64
	NewRule      bool
}

// RollbackRecord captures one rewind of the simulation.
type RollbackRecord struct {
	Clock     int64
	Retained  int // committed sections surviving the rewind, all trains
	Avoidance int // avoidance rules known after the conflict
}
