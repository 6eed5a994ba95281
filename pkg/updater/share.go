package updater

import (
	"log/slog"

	"github.com/meansend/ladder/pkg/tree"
)

// AddExistingAsChild links an already existing node under a semantically
// matching parent, creating intermediate rungs when needed. Returns nil when
// no new edge was created (self-loop, duplicate edge, or cycle).
func (u *Updater) AddExistingAsChild(existing *tree.Node, label tree.Label, parent *tree.Node) *tree.Node {
	if existing == nil {
		return nil
	}
	active := u.Tree.Active
	if label == "" {
		label = existing.Label
	}

	if active != nil && label == tree.LabelAttribute {
		if active.Label == tree.LabelConsequence || active.Label == tree.LabelAttribute {
			active.AddBackwardsRelation(existing)
			slog.Info("Backwards relation recorded for shared node", "from", active.ID, "to", existing.ID)
		}
		// Keep an idea-level anchor so export can rebuild the edge.
		if ideas := u.Tree.NodesByLabel(tree.LabelIdea); len(ideas) > 0 {
			ideas[len(ideas)-1].AddBackwardsRelation(existing)
		}
	}

	if parent == nil {
		parent = u.findParent(label, false, active)
		if parent == nil {
			parent = u.createIntermediates(label, active)
		}
		if parent == nil {
			parent = active
		}
		if parent == nil {
			parent = u.Tree.Root
		}
	}

	if parent.ID == existing.ID {
		slog.Warn("Self-loop prevented", "node_id", existing.ID)
		return nil
	}
	for _, c := range parent.Children {
		if c.ID == existing.ID {
			slog.Debug("Edge already exists", "parent", parent.ID, "child", existing.ID)
			return nil
		}
	}
	if u.Tree.IsAncestor(existing, parent) {
		slog.Warn("Cycle prevented", "node_id", existing.ID, "parent", parent.ID)
		return nil
	}

	u.Tree.LinkExisting(parent, existing)
	if len(existing.Parents) > 1 {
		slog.Info("Node shared across branches", "node_id", existing.ID, "parents", len(existing.Parents))
	}
	return existing
}
