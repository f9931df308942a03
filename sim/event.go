package sim

import "fmt"

// Event defines the interface for all simulation events.
// Each event has a Timestamp (in seconds) and an Execute method that advances
// simulation state and reports what happened.
type Event interface {
	Timestamp() int64
	Execute(*Simulator) (Step, error)
	String() string
}

// EnterNodeEvent represents a train arriving at (or re-checking) a decision node.
type EnterNodeEvent struct {
	time  int64
	Train TrainID
	Node  NodeID
}

// NewEnterNodeEvent creates an EnterNodeEvent.
func NewEnterNodeEvent(time int64, train TrainID, node NodeID) *EnterNodeEvent {
	return &EnterNodeEvent{time: time, Train: train, Node: node}
}

// Timestamp returns the scheduled time of the EnterNodeEvent.
func (e *EnterNodeEvent) Timestamp() int64 {
	return e.time
}

// Execute runs the node decision for the train.
func (e *EnterNodeEvent) Execute(sim *Simulator) (Step, error) {
	return sim.enterNode(e)
}

func (e *EnterNodeEvent) String() string {
	return fmt.Sprintf("EnterNode(t=%d train=%d node=%d)", e.time, e.Train, e.Node)
}

// EnterStationEvent represents a train reaching the platform of a halting section.
type EnterStationEvent struct {
	time    int64
	Train   TrainID
	Section SectionID
}

// NewEnterStationEvent creates an EnterStationEvent.
func NewEnterStationEvent(time int64, train TrainID, section SectionID) *EnterStationEvent {
	return &EnterStationEvent{time: time, Train: train, Section: section}
}

// Timestamp returns the scheduled time of the EnterStationEvent.
func (e *EnterStationEvent) Timestamp() int64 {
	return e.time
}

// Execute schedules the departure decision after the dwell.
func (e *EnterStationEvent) Execute(sim *Simulator) (Step, error) {
	return sim.enterStation(e)
}

func (e *EnterStationEvent) String() string {
	return fmt.Sprintf("EnterStation(t=%d train=%d section=%d)", e.time, e.Train, e.Section)
}

// ReleaseResourceEvent clears a deferred resource hold.
type ReleaseResourceEvent struct {
	time     int64
	Train    TrainID
	Resource ResourceID
}

// NewReleaseResourceEvent creates a ReleaseResourceEvent.
func NewReleaseResourceEvent(time int64, train TrainID, resource ResourceID) *ReleaseResourceEvent {
	return &ReleaseResourceEvent{time: time, Train: train, Resource: resource}
}

// Timestamp returns the scheduled time of the ReleaseResourceEvent.
func (e *ReleaseResourceEvent) Timestamp() int64 {
	return e.time
}

// Execute releases the resource if the train's cooldown has elapsed.
func (e *ReleaseResourceEvent) Execute(sim *Simulator) (Step, error) {
	sim.Resources.Release(e.Resource, e.Train, e.time)
	return Step{Kind: StepProgressed}, nil
}

func (e *ReleaseResourceEvent) String() string {
	return fmt.Sprintf("ReleaseResource(t=%d train=%d resource=%d)", e.time, e.Train, e.Resource)
}
