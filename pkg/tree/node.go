package tree

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var lastNS atomic.Int64

// nowNS returns a strictly increasing nanosecond timestamp, so that
// creation order is total even when nodes are created within the same tick.
func nowNS() int64 {
	for {
		now := time.Now().UnixNano()
		last := lastNS.Load()
		if now <= last {
			now = last + 1
		}
		if lastNS.CompareAndSwap(last, now) {
			return now
		}
	}
}

// TraceElement links a node to the chat interaction that produced it.
type TraceElement struct {
	InteractionID int64
	Node          *Node
}

// Node is a single element in the interview graph. Nodes can have multiple
// parents (shared elements) and multiple children.
type Node struct {
	ID                 string
	CreatedNS          int64
	Label              Label
	Conclusion         string
	Parents            []*Node
	Children           []*Node
	Trace              []TraceElement
	BackwardsRelations []*Node
	ValuePathCompleted bool

	// OrderIndex is set on stimulus roots when trees are merged for export.
	OrderIndex int

	// pendingBackwards holds backwards-relation IDs read from a snapshot
	// until all nodes exist and references can be resolved.
	pendingBackwards []string
}

// NewNode creates a node with a fresh ID and creation timestamp.
// VALUE nodes are born with their value path marked completed.
func NewNode(label Label, conclusion string, trace []TraceElement) *Node {
	n := &Node{
		ID:         uuid.New().String(),
		CreatedNS:  nowNS(),
		Label:      label,
		Conclusion: conclusion,
	}
	for _, t := range trace {
		t.Node = n
		n.Trace = append(n.Trace, t)
	}
	if label == LabelValue {
		n.ValuePathCompleted = true
	}
	return n
}

// AddChild links child under n in both directions. No-op if already linked.
func (n *Node) AddChild(child *Node) {
	for _, c := range n.Children {
		if c.ID == child.ID {
			return
		}
	}
	n.Children = append(n.Children, child)
	child.addParent(n)
}

func (n *Node) addParent(parent *Node) {
	for _, p := range n.Parents {
		if p.ID == parent.ID {
			return
		}
	}
	n.Parents = append(n.Parents, parent)
}

// RemoveChild unlinks child from n in both directions.
func (n *Node) RemoveChild(child *Node) {
	n.Children = removeNode(n.Children, child.ID)
	child.Parents = removeNode(child.Parents, n.ID)
}

func removeNode(nodes []*Node, id string) []*Node {
	out := nodes[:0]
	for _, x := range nodes {
		if x.ID != id {
			out = append(out, x)
		}
	}
	return out
}

// LatestParent returns the most recently created parent, or nil.
func (n *Node) LatestParent() *Node {
	var latest *Node
	for _, p := range n.Parents {
		if latest == nil || p.CreatedNS > latest.CreatedNS {
			latest = p
		}
	}
	return latest
}

// AddBackwardsRelation records a relation that only materializes as a
// forward edge during serialization. Duplicates are ignored.
func (n *Node) AddBackwardsRelation(other *Node) {
	if other == nil || other.ID == n.ID {
		return
	}
	for _, b := range n.BackwardsRelations {
		if b.ID == other.ID {
			return
		}
	}
	n.BackwardsRelations = append(n.BackwardsRelations, other)
}

// AddTrace appends a trace element, deduplicated by interaction ID.
func (n *Node) AddTrace(t TraceElement) {
	for _, e := range n.Trace {
		if e.InteractionID == t.InteractionID && t.InteractionID != 0 {
			return
		}
	}
	t.Node = n
	n.Trace = append(n.Trace, t)
}

// HasParentWithLabel reports whether any direct parent carries the label.
func (n *Node) HasParentWithLabel(l Label) bool {
	for _, p := range n.Parents {
		if p.Label == l {
			return true
		}
	}
	return false
}
