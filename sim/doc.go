// Package sim provides the core discrete-event engine that plans conflict-free
// train movements over a shared track network.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - network.go: Node/Section arena and the backward limit propagation
//   - resource.go: shared track resources and the occupancy registry
//   - event.go: event types that drive the simulation (EnterNode, EnterStation, ReleaseResource)
//   - simulator.go: the event loop and the per-train decision logic
//   - conflict.go: conflict resolution, avoidance rules and rollback (GoBack)
//   - policy.go: the learned dispatch table (epsilon-greedy Q-table)
//   - score.go: the weighted-lateness objective
//
// # Ownership
//
// Nodes, Sections and Resources live in flat arenas (Network, Registry) and are
// referenced by integer IDs. Trains own only their Solution, which refers back
// into the arenas by ID. Network, requirements and connections are immutable
// once a Simulator is built; resources, solutions and the event queue are reset
// by Initialize and rebuilt by GoBack.
//
// # Persistence across passes
//
// The dispatch table (QTable), the avoidance rules (AvoidanceSet) and the pair
// priorities live for the whole run. Initialize does not clear them, so
// repeated passes over the same instance keep improving.
//
// Sub-packages:
//   - sim/timetable/: problem instance loader and submission writer
//   - sim/planner/: outer pass loop (restart or backtrack)
//   - sim/trace/: decision trace recording
//   - sim/metrics/: Prometheus collectors
package sim
