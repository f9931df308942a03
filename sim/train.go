// Defines Train and its per-run Solution. A Solution records the sections a
// train has committed to in the current pass, the dispatch state key used for
// each decision and what the interacting trains occupied at that moment.

package sim

// TrainID indexes Simulator.Trains.
type TrainID int

// NoTrain marks an unheld resource.
const NoTrain TrainID = -1

// Unset marks a SectionSolution the train has not left yet.
const Unset int64 = -1

// Train is an identity plus its private route graph and ordered requirements.
type Train struct {
	ID           TrainID
	Name         string
	Start        NodeID
	End          NodeID
	Requirements []Requirement // sorted by Sequence
	// Interacting lists the trains sharing at least one resource with this
	// one, in ascending ID order. Filled by NewSimulator.
	Interacting []TrainID
	Solution    Solution
}

// RequirementIndex returns the index of the requirement with the given marker, or -1.
func (t *Train) RequirementIndex(marker string) int {
	if marker == "" {
		return -1
	}
	for i := range t.Requirements {
		if t.Requirements[i].Marker == marker {
			return i
		}
	}
	return -1
}

// RequirementOf returns the requirement linked to sec, or nil.
func (t *Train) RequirementOf(sec *Section) *Requirement {
	if sec.Requirement < 0 || sec.Requirement >= len(t.Requirements) {
		return nil
	}
	return &t.Requirements[sec.Requirement]
}

// StartTime is the earliest time the train may leave its start node.
func (t *Train) StartTime() int64 {
	if len(t.Requirements) == 0 {
		return 0
	}
	return t.Requirements[0].EntryEarliest
}

// SectionSolution binds a section to this pass's entry and exit time.
type SectionSolution struct {
	Section   SectionID
	Marker    string
	EntryTime int64
	ExitTime  int64 // Unset while the train is still on the section
	Arrival   int64 // time the train reaches the end node (or the platform)
	Halt      bool
}

// Completed reports whether the train has left the section.
func (s SectionSolution) Completed() bool {
	return s.ExitTime != Unset
}

// Solution is the mutable per-pass plan of one train.
// Sections, States and Others are parallel slices.
type Solution struct {
	Sections []SectionSolution
	States   []string
	Others   []map[TrainID]SectionID
	Done     bool
}

// Reset clears the solution for a new pass.
func (s *Solution) Reset() {
	s.Sections = s.Sections[:0]
	s.States = s.States[:0]
	s.Others = s.Others[:0]
	s.Done = false
}

// Last returns the most recently committed section, or nil.
func (s *Solution) Last() *SectionSolution {
	if len(s.Sections) == 0 {
		return nil
	}
	return &s.Sections[len(s.Sections)-1]
}

// Current returns the section the train occupies, or Depot before its first decision.
func (s *Solution) Current() SectionID {
	if len(s.Sections) == 0 {
		return Depot
	}
	return s.Sections[len(s.Sections)-1].Section
}

// FindMarker returns the first committed section carrying marker, or nil.
func (s *Solution) FindMarker(marker string) *SectionSolution {
	if marker == "" {
		return nil
	}
	for i := range s.Sections {
		if s.Sections[i].Marker == marker {
			return &s.Sections[i]
		}
	}
	return nil
}

// truncate drops every section entered after at. The newest retained section
// is reopened if the train left it after at.
func (s *Solution) truncate(at int64) {
	n := 0
	for n < len(s.Sections) && s.Sections[n].EntryTime <= at {
		n++
	}
	s.Sections = s.Sections[:n]
	s.States = s.States[:n]
	s.Others = s.Others[:n]
	s.Done = false
	if n == 0 {
		return
	}
	if last := &s.Sections[n-1]; last.ExitTime != Unset && last.ExitTime > at {
		last.ExitTime = Unset
	}
}

// PlannedSection is the read-only view of one committed section.
type PlannedSection struct {
	SectionKey string
	Route      string
	Path       string
	Sequence   int
	Marker     string
	// Requirement is the marker of the requirement the section fulfils, or empty.
	Requirement string
	EntryTime   int64
	ExitTime    int64
}

// TrainPlan is the read-only view of one train's committed sections.
type TrainPlan struct {
	Train    string
	Done     bool
	Sections []PlannedSection
}

// Plans returns a copy of every train's committed sections, in train order.
func (sim *Simulator) Plans() []TrainPlan {
	plans := make([]TrainPlan, 0, len(sim.Trains))
	for _, t := range sim.Trains {
		plan := TrainPlan{Train: t.Name, Done: t.Solution.Done, Sections: make([]PlannedSection, 0, len(t.Solution.Sections))}
		for _, ss := range t.Solution.Sections {
			sec := sim.Network.Section(ss.Section)
			ps := PlannedSection{
				SectionKey: sec.Key(),
				Route:      sec.Route,
				Path:       sec.Path,
				Sequence:   sec.Sequence,
				Marker:     ss.Marker,
				EntryTime:  ss.EntryTime,
				ExitTime:   ss.ExitTime,
			}
			if req := t.RequirementOf(sec); req != nil {
				ps.Requirement = req.Marker
			}
			plan.Sections = append(plan.Sections, ps)
		}
		plans = append(plans, plan)
	}
	return plans
}
