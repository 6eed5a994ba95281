package analyzer

import (
	"log/slog"

	"github.com/meansend/ladder/pkg/tree"
)

// HasRealNodes reports whether any created node is a real element rather
// than an irrelevant dummy.
func HasRealNodes(nodes []*tree.Node) bool {
	for _, n := range nodes {
		if n.Label != tree.LabelIrrelevant {
			return true
		}
	}
	return false
}

// ExtractValueNodes returns the VALUE nodes from a created batch.
func ExtractValueNodes(nodes []*tree.Node) []*tree.Node {
	var out []*tree.Node
	for _, n := range nodes {
		if n.Label == tree.LabelValue {
			out = append(out, n)
		}
	}
	return out
}

// CheckForRequiredElements reports whether the answer delivered the element
// the active node was probing for: an attribute for an idea, a connected
// consequence for an attribute, a connected consequence or value for a
// consequence, or any real element while an irrelevant dummy is active.
func CheckForRequiredElements(t *tree.Tree, created []*tree.Node) bool {
	if len(created) == 0 {
		slog.Info("No new nodes created, staying with active node")
		return false
	}
	active := t.Active
	if active == nil {
		return false
	}

	switch active.Label {
	case tree.LabelIdea:
		for _, n := range created {
			if n.Label == tree.LabelAttribute {
				return true
			}
		}
		// A consequence or value that still hangs below this idea counts.
		for _, n := range created {
			if (n.Label == tree.LabelConsequence || n.Label == tree.LabelValue) &&
				tree.IsDirectOrIndirectChild(active, n) {
				return true
			}
		}

	case tree.LabelAttribute:
		for _, n := range created {
			if n.Label == tree.LabelConsequence && tree.IsDirectOrIndirectChild(active, n) {
				return true
			}
		}
		for _, n := range created {
			if n.Label == tree.LabelValue && tree.IsDirectOrIndirectChild(active, n) {
				return true
			}
		}

	case tree.LabelConsequence:
		for _, n := range created {
			if (n.Label == tree.LabelConsequence || n.Label == tree.LabelValue) &&
				tree.IsDirectOrIndirectChild(active, n) {
				return true
			}
		}

	case tree.LabelIrrelevant:
		for _, n := range created {
			if n.Label == tree.LabelIrrelevant {
				return false
			}
		}
		return true
	}
	return false
}
