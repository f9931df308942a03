package sim

import "fmt"

// RequirementType describes what a requirement represents. Only halting
// requirements change engine behaviour.
type RequirementType string

const (
	RequirementStart RequirementType = "start"
	RequirementHalt  RequirementType = "halt"
	RequirementEnd   RequirementType = "ende"
)

// NoDeadline stands in for an absent latest-time field (three days).
// It is never used as a binding constraint during limit propagation.
const NoDeadline int64 = 3 * 24 * 60 * 60

// Connection obliges another train (the "onto" train) to wait at its section
// marked OntoMarker until MinConnectionTime after this train entered the
// section carrying the owning requirement.
type Connection struct {
	ID                string
	OntoTrain         string
	OntoMarker        string
	MinConnectionTime int64
}

// WaitingConnection is the reverse index of a Connection, attached to the
// requirement of the train that must wait.
type WaitingConnection struct {
	ID                string
	From              TrainID
	FromMarker        string
	MinConnectionTime int64
}

// Requirement is a scheduling constraint attached to sections by marker.
// Absent earliest times are 0 and absent latest times are NoDeadline.
type Requirement struct {
	Sequence         int
	Marker           string
	Type             RequirementType
	EntryEarliest    int64
	EntryLatest      int64
	ExitEarliest     int64
	ExitLatest       int64
	MinStoppingTime  int64
	EntryDelayWeight float64
	ExitDelayWeight  float64
	Connections      []Connection
	Waiting          []WaitingConnection
}

// NewRequirement returns a requirement with every optional bound unset.
func NewRequirement(seq int, marker string, typ RequirementType) Requirement {
	return Requirement{
		Sequence:    seq,
		Marker:      marker,
		Type:        typ,
		EntryLatest: NoDeadline,
		ExitLatest:  NoDeadline,
	}
}

// HasEntryLatest reports whether EntryLatest is a real constraint.
func (r *Requirement) HasEntryLatest() bool {
	return r.EntryLatest < NoDeadline
}

// HasExitLatest reports whether ExitLatest is a real constraint.
func (r *Requirement) HasExitLatest() bool {
	return r.ExitLatest < NoDeadline
}

// Halts reports whether a train must dwell on sections carrying r.
func (r *Requirement) Halts() bool {
	return r.Type == RequirementHalt || r.MinStoppingTime > 0
}

// Delay returns the weighted lateness in seconds for the given entry and exit.
func (r *Requirement) Delay(entry, exit int64) float64 {
	var d float64
	if late := entry - r.EntryLatest; late > 0 {
		d += r.EntryDelayWeight * float64(late)
	}
	if late := exit - r.ExitLatest; late > 0 {
		d += r.ExitDelayWeight * float64(late)
	}
	return d
}

// validateRequirements checks that sequence numbers strictly increase.
func validateRequirements(t *Train) error {
	for i := 1; i < len(t.Requirements); i++ {
		if t.Requirements[i].Sequence <= t.Requirements[i-1].Sequence {
			return fmt.Errorf("train %s: requirement %q (sequence %d) not after %q (sequence %d)",
				t.Name, t.Requirements[i].Marker, t.Requirements[i].Sequence,
				t.Requirements[i-1].Marker, t.Requirements[i-1].Sequence)
		}
	}
	return nil
}

// MaterializeConnections rebuilds every requirement's Waiting list from the
// Connections declared on the other trains. It fails when a connection names
// an unknown train or a marker the onto train does not require.
func MaterializeConnections(trains []*Train) error {
	byName := make(map[string]*Train, len(trains))
	for _, t := range trains {
		byName[t.Name] = t
		for i := range t.Requirements {
			t.Requirements[i].Waiting = nil
		}
	}
	for _, t := range trains {
		for _, req := range t.Requirements {
			for _, c := range req.Connections {
				onto, ok := byName[c.OntoTrain]
				if !ok {
					return fmt.Errorf("train %s: connection %s onto unknown train %q", t.Name, c.ID, c.OntoTrain)
				}
				idx := onto.RequirementIndex(c.OntoMarker)
				if idx < 0 {
					return fmt.Errorf("train %s: connection %s onto train %s has no requirement %q",
						t.Name, c.ID, onto.Name, c.OntoMarker)
				}
				onto.Requirements[idx].Waiting = append(onto.Requirements[idx].Waiting, WaitingConnection{
					ID:                c.ID,
					From:              t.ID,
					FromMarker:        req.Marker,
					MinConnectionTime: c.MinConnectionTime,
				})
			}
		}
	}
	return nil
}
