package tree

import (
	"strings"
)

// IsArtificial reports whether a node was synthesized by the engine rather
// than extracted from a user answer.
func IsArtificial(n *Node) bool {
	if n.Label == LabelIrrelevant {
		return true
	}
	return strings.HasPrefix(n.Conclusion, "DUMMY-") || strings.HasPrefix(n.Conclusion, "AUTO: ")
}

// IsDirectOrIndirectChild reports whether candidate sits below parent,
// traversing through any artificial nodes in between.
func IsDirectOrIndirectChild(parent, candidate *Node) bool {
	if parent == nil || candidate == nil {
		return false
	}
	visited := map[string]bool{}
	queue := append([]*Node(nil), candidate.Parents...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur.ID] {
			continue
		}
		visited[cur.ID] = true
		if cur.ID == parent.ID {
			return true
		}
		queue = append(queue, cur.Parents...)
	}
	return false
}

// MergeWithTopic combines per-stimulus trees under a synthetic TOPIC root
// for export. Stimulus roots carry their position as OrderIndex.
func MergeWithTopic(topic string, trees []*Tree) *Tree {
	root := NewNode(LabelTopic, topic, nil)
	merged := New(root)
	for i, t := range trees {
		if t == nil || t.Root == nil {
			continue
		}
		t.Root.OrderIndex = i + 1
		root.AddChild(t.Root)
		for _, n := range t.AllNodes() {
			merged.Register(n)
		}
	}
	merged.Active = nil
	return merged
}

// ContextPathFromNode renders the latest-parent path from the root down to
// n as "LABEL: conclusion → ...". Artificial nodes are skipped.
func ContextPathFromNode(t *Tree, n *Node) string {
	if n == nil {
		return ""
	}
	var chain []*Node
	visited := map[string]bool{}
	for cur := n; cur != nil && !visited[cur.ID]; cur = cur.LatestParent() {
		visited[cur.ID] = true
		chain = append(chain, cur)
	}
	var parts []string
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		if IsArtificial(c) || c.Conclusion == "" {
			continue
		}
		parts = append(parts, string(c.Label)+": "+c.Conclusion)
	}
	return strings.Join(parts, " → ")
}

// OptimizedPathExcludingIrrelevant walks latest parents upward from n,
// routing around IRRELEVANT nodes via their first grandparent.
func OptimizedPathExcludingIrrelevant(n *Node) []*Node {
	var path []*Node
	visited := map[string]bool{}
	cur := n
	for cur != nil && !visited[cur.ID] {
		visited[cur.ID] = true
		if cur.Label == LabelIrrelevant {
			if len(cur.Parents) > 0 {
				cur = cur.Parents[0]
				continue
			}
			break
		}
		path = append(path, cur)
		cur = cur.LatestParent()
	}
	return path
}

// ConsequenceChain groups the values reached through one consequence.
type ConsequenceChain struct {
	Consequence string   `json:"consequence"`
	Values      []string `json:"values"`
}

// Chain is one attribute with its downstream consequence/value ladders.
type Chain struct {
	Attribute string             `json:"attribute"`
	Chains    []ConsequenceChain `json:"chains"`
}

// FormatChains derives the A→C→V ladders from the graph. Output is computed
// from edges only; artificial nodes are excluded.
func FormatChains(t *Tree) []Chain {
	if t == nil {
		return []Chain{}
	}
	chains := []Chain{}
	for _, attr := range t.NodesByLabel(LabelAttribute) {
		if IsArtificial(attr) {
			continue
		}
		c := Chain{Attribute: attr.Conclusion, Chains: []ConsequenceChain{}}
		for _, cons := range t.NodesByLabel(LabelConsequence) {
			if IsArtificial(cons) || !containsID(t.PathToRoot(cons), attr.ID) {
				continue
			}
			cc := ConsequenceChain{Consequence: cons.Conclusion, Values: []string{}}
			for _, val := range t.NodesByLabel(LabelValue) {
				if containsID(t.PathToRoot(val), cons.ID) {
					cc.Values = append(cc.Values, val.Conclusion)
				}
			}
			c.Chains = append(c.Chains, cc)
		}
		chains = append(chains, c)
	}
	return chains
}

func containsID(nodes []*Node, id string) bool {
	for _, n := range nodes {
		if n.ID == id {
			return true
		}
	}
	return false
}
