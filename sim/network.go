package sim

import (
	"container/heap"
	"fmt"
	"math"
)

// NodeID indexes Network.Nodes.
type NodeID int

// SectionID indexes Network.Sections.
type SectionID int

// Depot is the synthetic section every train occupies before its first decision.
const Depot SectionID = -1

// Unbounded is the limit of a node that no deadline propagates to. Such a node
// is never binding for the lateness test.
const Unbounded int64 = math.MinInt64

// Node is a decision point in one train's route graph.
type Node struct {
	ID    NodeID
	Label string
	Train TrainID
	Out   []SectionID // ordered; the order is the dispatch tie-break
	In    []SectionID
	// Limit is the latest time the node may be exited while the train can
	// still meet its final deadline. Set once by ComputeLimits.
	Limit int64
}

// IsTerminal reports whether the node has no outgoing sections.
func (n *Node) IsTerminal() bool {
	return len(n.Out) == 0
}

// Section is a directed edge a train traverses between two nodes.
// Structural attributes are immutable once the network is built.
type Section struct {
	ID             SectionID
	Train          TrainID
	Route          string
	Path           string
	Sequence       int
	MinRunningTime int64
	Penalty        float64
	Marker         string
	Requirement    int // index into the owning train's Requirements; -1 when unmarked
	Resources      []ResourceID
	Start          NodeID
	End            NodeID
}

// Key returns the route-qualified section identifier ("route#sequence").
func (s *Section) Key() string {
	return fmt.Sprintf("%s#%d", s.Route, s.Sequence)
}

// Uses reports whether the section occupies resource r.
func (s *Section) Uses(r ResourceID) bool {
	for _, id := range s.Resources {
		if id == r {
			return true
		}
	}
	return false
}

// Network is the arena holding every train's nodes and sections.
type Network struct {
	Nodes    []Node
	Sections []Section
}

// NewNetwork returns an empty arena.
func NewNetwork() *Network {
	return &Network{
		Nodes:    make([]Node, 0),
		Sections: make([]Section, 0),
	}
}

// AddNode appends a node owned by train and returns its ID.
func (n *Network) AddNode(train TrainID, label string) NodeID {
	id := NodeID(len(n.Nodes))
	n.Nodes = append(n.Nodes, Node{ID: id, Label: label, Train: train, Limit: Unbounded})
	return id
}

// AddSection appends sec, wires it into its start and end nodes and returns its ID.
// The ID field of sec is ignored.
func (n *Network) AddSection(sec Section) (SectionID, error) {
	if int(sec.Start) >= len(n.Nodes) || int(sec.End) >= len(n.Nodes) || sec.Start < 0 || sec.End < 0 {
		return 0, fmt.Errorf("section %s: node out of range", sec.Key())
	}
	id := SectionID(len(n.Sections))
	sec.ID = id
	n.Sections = append(n.Sections, sec)
	n.Nodes[sec.Start].Out = append(n.Nodes[sec.Start].Out, id)
	n.Nodes[sec.End].In = append(n.Nodes[sec.End].In, id)
	return id, nil
}

// Node returns the node with the given ID.
func (n *Network) Node(id NodeID) *Node {
	return &n.Nodes[id]
}

// Section returns the section with the given ID.
func (n *Network) Section(id SectionID) *Section {
	return &n.Sections[id]
}

// limitItem is a pending relaxation in the max-oriented limit queue.
type limitItem struct {
	node  NodeID
	limit int64
}

type limitQueue []limitItem

func (q limitQueue) Len() int { return len(q) }
func (q limitQueue) Less(i, j int) bool {
	if q[i].limit != q[j].limit {
		return q[i].limit > q[j].limit
	}
	return q[i].node < q[j].node
}
func (q limitQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *limitQueue) Push(x any) {
	*q = append(*q, x.(limitItem))
}

func (q *limitQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[0 : n-1]
	return item
}

// ComputeLimits propagates the train's final deadline backwards over its
// route graph. The terminal node starts at the last requirement's exit-latest
// minus its minimum stopping time; every predecessor receives
// limit(end) - running time - stopping time, capped by a real entry-latest,
// and keeps the largest candidate seen. Nodes never reached keep Unbounded.
func (n *Network) ComputeLimits(t *Train) {
	end := n.Node(t.End)
	end.Limit = NoDeadline
	if len(t.Requirements) > 0 {
		final := t.Requirements[len(t.Requirements)-1]
		end.Limit = final.ExitLatest - final.MinStoppingTime
	}

	visited := make(map[NodeID]bool)
	pq := &limitQueue{{node: t.End, limit: end.Limit}}
	for pq.Len() > 0 {
		item := heap.Pop(pq).(limitItem)
		if visited[item.node] {
			continue
		}
		visited[item.node] = true
		u := n.Node(item.node)
		for _, sid := range u.In {
			sec := n.Section(sid)
			if visited[sec.Start] {
				continue
			}
			candidate := u.Limit - sec.MinRunningTime
			if req := t.RequirementOf(sec); req != nil {
				candidate -= req.MinStoppingTime
				if req.HasEntryLatest() && req.EntryLatest < candidate {
					candidate = req.EntryLatest
				}
			}
			p := n.Node(sec.Start)
			if p.Limit == Unbounded || candidate > p.Limit {
				p.Limit = candidate
				heap.Push(pq, limitItem{node: sec.Start, limit: candidate})
			}
		}
	}
}
