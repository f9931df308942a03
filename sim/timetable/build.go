package timetable

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/train-sim/train-sim/sim"
)

// Node labels of every train's route graph.
const (
	StartLabel = "start"
	EndLabel   = "end"
)

// ErrStructure wraps every problem the instance has that makes it unusable.
var ErrStructure = errors.New("malformed problem instance")

// Problem is an instance turned into the simulator's arenas.
type Problem struct {
	Instance  *Instance
	Network   *sim.Network
	Resources *sim.Registry
	Trains    []*sim.Train
}

// Build creates the network, resource registry and trains of inst. Trains
// keep the order of the service intentions.
func Build(inst *Instance) (*Problem, error) {
	p := &Problem{
		Instance:  inst,
		Network:   sim.NewNetwork(),
		Resources: sim.NewRegistry(),
	}
	for _, r := range inst.Resources {
		p.Resources.Add(r.ID.String(), int64(r.ReleaseTime), r.FollowingAllowed)
	}
	routes := make(map[ID]*Route, len(inst.Routes))
	for i := range inst.Routes {
		routes[inst.Routes[i].ID] = &inst.Routes[i]
	}
	for i := range inst.ServiceIntentions {
		si := &inst.ServiceIntentions[i]
		route, ok := routes[si.Route]
		if !ok {
			return nil, fmt.Errorf("%w: service intention %s: unknown route %s", ErrStructure, si.ID, si.Route)
		}
		t, err := p.addTrain(sim.TrainID(i), si, route)
		if err != nil {
			return nil, err
		}
		p.Trains = append(p.Trains, t)
	}
	logrus.Infof("built %d trains, %d nodes, %d sections, %d resources",
		len(p.Trains), len(p.Network.Nodes), len(p.Network.Sections), p.Resources.Len())
	return p, nil
}

func (p *Problem) addTrain(id sim.TrainID, si *ServiceIntention, route *Route) (*sim.Train, error) {
	t := &sim.Train{ID: id, Name: si.ID.String()}
	reqs := slices.Clone(si.SectionRequirements)
	slices.SortStableFunc(reqs, func(a, b SectionRequirement) int { return a.SequenceNumber - b.SequenceNumber })
	for _, r := range reqs {
		t.Requirements = append(t.Requirements, convertRequirement(r))
	}

	nodes := make(map[string]sim.NodeID)
	node := func(label string) sim.NodeID {
		if nid, ok := nodes[label]; ok {
			return nid
		}
		nid := p.Network.AddNode(id, label)
		nodes[label] = nid
		return nid
	}
	served := make(map[string]bool)
	for _, path := range route.RoutePaths {
		secs := slices.Clone(path.RouteSections)
		slices.SortStableFunc(secs, func(a, b RouteSection) int { return a.SequenceNumber - b.SequenceNumber })
		for k, rs := range secs {
			sec := sim.Section{
				Train:          id,
				Route:          route.ID.String(),
				Path:           path.ID.String(),
				Sequence:       rs.SequenceNumber,
				MinRunningTime: int64(rs.MinimumRunningTime),
				Start:          node(entryLabel(secs, k)),
				End:            node(exitLabel(secs, k)),
			}
			if rs.Penalty != nil {
				sec.Penalty = *rs.Penalty
			}
			if len(rs.SectionMarker) > 0 {
				sec.Marker = rs.SectionMarker[0]
			}
			sec.Requirement = t.RequirementIndex(sec.Marker)
			if sec.Requirement >= 0 {
				served[sec.Marker] = true
			}
			for _, occ := range rs.ResourceOccupations {
				rid, err := p.Resources.Lookup(occ.Resource.String())
				if err != nil {
					return nil, fmt.Errorf("%w: section %s: %w", ErrStructure, sec.Key(), err)
				}
				if !sec.Uses(rid) {
					sec.Resources = append(sec.Resources, rid)
				}
			}
			if _, err := p.Network.AddSection(sec); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrStructure, err)
			}
		}
	}

	start, ok := nodes[StartLabel]
	if !ok {
		return nil, fmt.Errorf("%w: train %s: route %s has no start", ErrStructure, t.Name, route.ID)
	}
	end, ok := nodes[EndLabel]
	if !ok {
		return nil, fmt.Errorf("%w: train %s: route %s has no end", ErrStructure, t.Name, route.ID)
	}
	t.Start, t.End = start, end
	for _, r := range t.Requirements {
		if !served[r.Marker] {
			return nil, fmt.Errorf("%w: train %s: no section carries marker %q", ErrStructure, t.Name, r.Marker)
		}
	}
	return t, nil
}

// entryLabel names the node a section starts at: its alternative marker, the
// junction with its predecessor on the path, or the route start.
func entryLabel(secs []RouteSection, k int) string {
	if m := secs[k].RouteAlternativeMarkerAtEntry; len(m) > 0 {
		return m[0]
	}
	if k > 0 {
		return fmt.Sprintf("%d->%d", secs[k-1].SequenceNumber, secs[k].SequenceNumber)
	}
	return StartLabel
}

// exitLabel names the node a section ends at.
func exitLabel(secs []RouteSection, k int) string {
	if m := secs[k].RouteAlternativeMarkerAtExit; len(m) > 0 {
		return m[0]
	}
	if k < len(secs)-1 {
		return fmt.Sprintf("%d->%d", secs[k].SequenceNumber, secs[k+1].SequenceNumber)
	}
	return EndLabel
}

func convertRequirement(r SectionRequirement) sim.Requirement {
	req := sim.NewRequirement(r.SequenceNumber, r.SectionMarker, sim.RequirementType(r.Type))
	if r.EntryEarliest != nil {
		req.EntryEarliest = int64(*r.EntryEarliest)
	}
	if r.EntryLatest != nil {
		req.EntryLatest = int64(*r.EntryLatest)
	}
	if r.ExitEarliest != nil {
		req.ExitEarliest = int64(*r.ExitEarliest)
	}
	if r.ExitLatest != nil {
		req.ExitLatest = int64(*r.ExitLatest)
	}
	if r.MinStoppingTime != nil {
		req.MinStoppingTime = int64(*r.MinStoppingTime)
	}
	req.EntryDelayWeight = r.EntryDelayWeight
	req.ExitDelayWeight = r.ExitDelayWeight
	for _, c := range r.Connections {
		req.Connections = append(req.Connections, sim.Connection{
			ID:                c.ID.String(),
			OntoTrain:         c.OntoServiceIntention.String(),
			OntoMarker:        c.OntoSectionMarker,
			MinConnectionTime: int64(c.MinConnectionTime),
		})
	}
	return req
}
