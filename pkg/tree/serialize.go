package tree

import (
	"fmt"
	"sort"
)

// NodeState is the snapshot form of a single node.
type NodeState struct {
	ID                 string   `json:"id"`
	CreatedNS          int64    `json:"created_ns"`
	Label              string   `json:"label"`
	Conclusion         string   `json:"conclusion"`
	Parents            []string `json:"parents"`
	Children           []string `json:"children"`
	Trace              []int64  `json:"trace"`
	BackwardsRelations []string `json:"backwards_relations"`
	ValuePathCompleted bool     `json:"is_value_path_completed"`
}

// State is the snapshot form of a whole tree.
type State struct {
	RootNodeID   string      `json:"root_node_id"`
	ActiveNodeID string      `json:"active_node_id"`
	Nodes        []NodeState `json:"nodes"`
}

// ToState captures the tree for persistence. Nodes are ordered by creation
// time so snapshots are deterministic.
func (t *Tree) ToState() State {
	nodes := t.AllNodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].CreatedNS < nodes[j].CreatedNS })

	s := State{RootNodeID: t.Root.ID}
	if t.Active != nil {
		s.ActiveNodeID = t.Active.ID
	}
	for _, n := range nodes {
		ns := NodeState{
			ID:                 n.ID,
			CreatedNS:          n.CreatedNS,
			Label:              string(n.Label),
			Conclusion:         n.Conclusion,
			ValuePathCompleted: n.ValuePathCompleted,
		}
		for _, p := range n.Parents {
			ns.Parents = append(ns.Parents, p.ID)
		}
		for _, c := range n.Children {
			ns.Children = append(ns.Children, c.ID)
		}
		for _, tr := range n.Trace {
			ns.Trace = append(ns.Trace, tr.InteractionID)
		}
		for _, b := range n.BackwardsRelations {
			ns.BackwardsRelations = append(ns.BackwardsRelations, b.ID)
		}
		s.Nodes = append(s.Nodes, ns)
	}
	return s
}

// FromState rebuilds a tree from a snapshot. Runs in two passes: first all
// nodes are created, then parent/child links, traces, and backwards
// relations are resolved by ID.
func FromState(s State) (*Tree, error) {
	byID := make(map[string]*Node, len(s.Nodes))
	for _, ns := range s.Nodes {
		label, err := ParseLabel(ns.Label)
		if err != nil {
			return nil, err
		}
		byID[ns.ID] = &Node{
			ID:                 ns.ID,
			CreatedNS:          ns.CreatedNS,
			Label:              label,
			Conclusion:         ns.Conclusion,
			ValuePathCompleted: ns.ValuePathCompleted,
			pendingBackwards:   ns.BackwardsRelations,
		}
	}

	root, ok := byID[s.RootNodeID]
	if !ok {
		return nil, fmt.Errorf("snapshot root node %q missing", s.RootNodeID)
	}

	t := &Tree{
		byLabel: make(map[Label][]*Node),
		byID:    make(map[string]*Node),
	}
	t.Root = root
	for _, ns := range s.Nodes {
		n := byID[ns.ID]
		t.Register(n)
		for _, pid := range ns.Parents {
			if p, ok := byID[pid]; ok {
				p.AddChild(n)
			}
		}
		for _, cid := range ns.Children {
			if c, ok := byID[cid]; ok {
				n.AddChild(c)
			}
		}
		for _, iid := range ns.Trace {
			n.AddTrace(TraceElement{InteractionID: iid})
		}
	}
	for _, n := range byID {
		for _, bid := range n.pendingBackwards {
			if b, ok := byID[bid]; ok {
				n.AddBackwardsRelation(b)
			}
		}
		n.pendingBackwards = nil
	}
	if a, ok := byID[s.ActiveNodeID]; ok {
		t.Active = a
	}
	return t, nil
}

// ExportNode is the response form of a node after backwards-relation
// reorganization.
type ExportNode struct {
	ID         string   `json:"id"`
	Label      string   `json:"label"`
	Conclusion string   `json:"conclusion"`
	CreatedNS  int64    `json:"created_ns"`
	Parents    []string `json:"parents"`
	Children   []string `json:"children"`
	OrderIndex int      `json:"order_index,omitempty"`
}

// Export is the response form of a tree.
type Export struct {
	RootID   string       `json:"root_id"`
	ActiveID string       `json:"active_id,omitempty"`
	Nodes    []ExportNode `json:"nodes"`
}

type exportLink struct {
	node      *Node
	parents   map[string]bool
	children  map[string]bool
	backwards []*Node
}

// ToExport produces the outward tree view. Backwards relations are
// materialized here and only here: first non-IDEA holders re-parent their
// backwards targets away from IDEA nodes, then IDEA nodes re-add attribute
// backwards relations as forward edges. The live tree is never mutated.
func (t *Tree) ToExport() Export {
	links := make(map[string]*exportLink, len(t.byID))
	for id, n := range t.byID {
		l := &exportLink{
			node:      n,
			parents:   map[string]bool{},
			children:  map[string]bool{},
			backwards: n.BackwardsRelations,
		}
		for _, p := range n.Parents {
			l.parents[p.ID] = true
		}
		for _, c := range n.Children {
			l.children[c.ID] = true
		}
		links[id] = l
	}

	// Non-IDEA holders first: steal backwards targets from their IDEA parents.
	for _, l := range links {
		if l.node.Label == LabelIdea {
			continue
		}
		for _, b := range l.backwards {
			bl, ok := links[b.ID]
			if !ok {
				continue
			}
			moved := false
			for pid := range bl.parents {
				if pl, ok := links[pid]; ok && pl.node.Label == LabelIdea {
					delete(bl.parents, pid)
					delete(pl.children, b.ID)
					moved = true
				}
			}
			if moved {
				bl.parents[l.node.ID] = true
				l.children[b.ID] = true
			}
		}
	}

	// IDEA holders last: restore attribute relations as forward edges.
	for _, l := range links {
		if l.node.Label != LabelIdea {
			continue
		}
		for _, b := range l.backwards {
			bl, ok := links[b.ID]
			if !ok || b.Label != LabelAttribute {
				continue
			}
			l.children[b.ID] = true
			bl.parents[l.node.ID] = true
		}
	}

	nodes := t.AllNodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].CreatedNS < nodes[j].CreatedNS })

	e := Export{RootID: t.Root.ID}
	if t.Active != nil {
		e.ActiveID = t.Active.ID
	}
	for _, n := range nodes {
		l := links[n.ID]
		en := ExportNode{
			ID:         n.ID,
			Label:      string(n.Label),
			Conclusion: n.Conclusion,
			CreatedNS:  n.CreatedNS,
			OrderIndex: n.OrderIndex,
			Parents:    sortedKeys(l.parents),
			Children:   sortedKeys(l.children),
		}
		e.Nodes = append(e.Nodes, en)
	}
	return e
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
