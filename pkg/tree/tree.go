package tree

import "log/slog"

// Tree holds one stimulus graph: a STIMULUS root, the currently probed
// (active) node, and label/ID indexes over all registered nodes.
type Tree struct {
	Root    *Node
	Active  *Node
	byLabel map[Label][]*Node
	byID    map[string]*Node
}

// New creates a tree rooted at the given node. The root starts active.
func New(root *Node) *Tree {
	t := &Tree{
		byLabel: make(map[Label][]*Node),
		byID:    make(map[string]*Node),
	}
	t.Root = root
	t.Active = root
	t.Register(root)
	return t
}

// Register adds a node to the indexes. Safe to call twice.
func (t *Tree) Register(n *Node) {
	if _, ok := t.byID[n.ID]; ok {
		return
	}
	t.byID[n.ID] = n
	t.byLabel[n.Label] = append(t.byLabel[n.Label], n)
}

// NodeByID returns the node with the given ID, or nil.
func (t *Tree) NodeByID(id string) *Node { return t.byID[id] }

// NodesByLabel returns all nodes with the label that carry a conclusion,
// in registration order.
func (t *Tree) NodesByLabel(l Label) []*Node {
	var out []*Node
	for _, n := range t.byLabel[l] {
		if n.Conclusion != "" {
			out = append(out, n)
		}
	}
	return out
}

// AllNodes returns every registered node.
func (t *Tree) AllNodes() []*Node {
	out := make([]*Node, 0, len(t.byID))
	for _, n := range t.byID {
		out = append(out, n)
	}
	return out
}

// AddChild creates a node under the active node and registers it.
// Creating a VALUE marks every node on its upward paths as completed.
func (t *Tree) AddChild(label Label, conclusion string, trace []TraceElement) *Node {
	n := NewNode(label, conclusion, trace)
	if t.Active != nil {
		t.Active.AddChild(n)
	}
	t.Register(n)
	if label == LabelValue {
		t.markValuePathCompleted(n)
	}
	return n
}

// markValuePathCompleted walks all ancestor paths iteratively, skipping
// subtrees already marked.
func (t *Tree) markValuePathCompleted(n *Node) {
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range cur.Parents {
			if p.ValuePathCompleted {
				continue
			}
			p.ValuePathCompleted = true
			stack = append(stack, p)
		}
	}
}

// LinkExisting adds an existing node as a child of parent. No-op when the
// edge already exists.
func (t *Tree) LinkExisting(parent, child *Node) {
	for _, c := range parent.Children {
		if c.ID == child.ID {
			return
		}
	}
	parent.AddChild(child)
	if child.Label == LabelValue {
		t.markValuePathCompleted(child)
	}
}

// RemoveIrrelevant removes the active node when it is an irrelevant dummy:
// unlinks it from its parents, drops it from the indexes, and clears Active.
func (t *Tree) RemoveIrrelevant() {
	n := t.Active
	if n == nil || n.Label != LabelIrrelevant {
		return
	}
	for _, p := range append([]*Node(nil), n.Parents...) {
		p.RemoveChild(n)
	}
	delete(t.byID, n.ID)
	t.byLabel[n.Label] = removeNode(t.byLabel[n.Label], n.ID)
	t.Active = nil
	slog.Debug("Removed irrelevant node", "node_id", n.ID)
}

// IsAncestor reports whether anc is reachable from desc via parent edges.
func (t *Tree) IsAncestor(anc, desc *Node) bool {
	if anc == nil || desc == nil {
		return false
	}
	visited := map[string]bool{}
	queue := append([]*Node(nil), desc.Parents...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.ID] {
			continue
		}
		visited[cur.ID] = true
		if cur.ID == anc.ID {
			return true
		}
		queue = append(queue, cur.Parents...)
	}
	return false
}

// PathToRoot collects every node reachable from n via parent edges,
// deduplicated, n first.
func (t *Tree) PathToRoot(n *Node) []*Node {
	var out []*Node
	visited := map[string]bool{}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur.ID] {
			continue
		}
		visited[cur.ID] = true
		out = append(out, cur)
		stack = append(stack, cur.Parents...)
	}
	return out
}
