// Package updater materializes analyzed elements into the interview graph:
// parent resolution along the attribute-consequence-value hierarchy,
// auto-generated intermediate rungs, irrelevant-answer dummies, and sharing
// of nodes across branches.
package updater

import (
	"log/slog"

	"github.com/meansend/ladder/pkg/tree"
)

const autoPrefix = "AUTO: "

var autoSummaries = map[tree.Label]string{
	tree.LabelIdea:        autoPrefix + "Automatically generated idea",
	tree.LabelAttribute:   autoPrefix + "Automatically generated product attribute",
	tree.LabelConsequence: autoPrefix + "Automatically generated consequence",
	tree.LabelValue:       autoPrefix + "Automatically generated value",
}

// Updater inserts nodes into one stimulus tree.
type Updater struct {
	Tree *tree.Tree
}

func New(t *tree.Tree) *Updater { return &Updater{Tree: t} }

// UpdateWithAnalysis places one analyzed element in the graph. A nil parent
// triggers the hierarchy search; an active irrelevant dummy is transformed
// instead when a real element arrives.
func (u *Updater) UpdateWithAnalysis(label tree.Label, summary string, isFirst bool, parent *tree.Node, interactionID int64) *tree.Node {
	active := u.Tree.Active

	if active != nil && active.Label == tree.LabelIrrelevant && label != tree.LabelIrrelevant {
		return u.TransformIrrelevant(active, label, summary, isFirst, interactionID, parent)
	}
	if label == tree.LabelIrrelevant {
		return u.HandleIrrelevant(summary, isFirst, interactionID)
	}

	if parent == nil {
		parent = u.findParent(label, isFirst, active)
		if parent == nil {
			parent = u.createIntermediates(label, active)
		}
		if parent == nil {
			parent = active
		}
	}
	return u.createAndAdd(parent, label, summary, interactionID)
}

// findParent locates the node a new element should hang under. The first
// content message always lands under the stimulus root.
func (u *Updater) findParent(label tree.Label, isFirst bool, active *tree.Node) *tree.Node {
	if isFirst {
		if len(u.Tree.NodesByLabel(tree.LabelStimulus)) > 0 {
			return active
		}
		slog.Warn("No stimulus node found for first message")
		return nil
	}
	return u.findParentByHierarchy(label, active)
}

func (u *Updater) findParentByHierarchy(label tree.Label, active *tree.Node) *tree.Node {
	if active == nil {
		return nil
	}
	if validHierarchyPair(active.Label, label) {
		return active
	}
	return u.findSemanticParent(label, active)
}

func validHierarchyPair(parent, child tree.Label) bool {
	switch {
	case parent == tree.LabelIdea && child == tree.LabelAttribute:
		return true
	case parent == tree.LabelAttribute && child == tree.LabelConsequence:
		return true
	case parent == tree.LabelConsequence && child == tree.LabelValue:
		return true
	case parent == tree.LabelConsequence && child == tree.LabelConsequence:
		return true
	}
	return false
}

func (u *Updater) findSemanticParent(label tree.Label, active *tree.Node) *tree.Node {
	switch label {
	case tree.LabelAttribute:
		return u.findIdeaParent(active)
	case tree.LabelConsequence:
		if active.Label == tree.LabelAttribute || active.Label == tree.LabelConsequence {
			return active
		}
	case tree.LabelValue:
		if active.Label == tree.LabelConsequence {
			return active
		}
	}
	return nil
}

func (u *Updater) findStimulusAncestor(n *tree.Node) *tree.Node {
	if n == nil {
		return nil
	}
	if n.Label == tree.LabelStimulus {
		return n
	}
	for _, anc := range u.Tree.PathToRoot(n) {
		if anc.Label == tree.LabelStimulus {
			return anc
		}
	}
	return nil
}

// findIdeaParent picks an idea for a new attribute, staying inside the
// current stimulus context when one can be resolved.
func (u *Updater) findIdeaParent(active *tree.Node) *tree.Node {
	stimulus := u.findStimulusAncestor(active)
	if stimulus == nil {
		ideas := u.Tree.NodesByLabel(tree.LabelIdea)
		if len(ideas) > 0 {
			slog.Warn("No stimulus context, using newest idea", "node_id", ideas[len(ideas)-1].ID)
			return ideas[len(ideas)-1]
		}
		return active
	}
	var ideas []*tree.Node
	for _, c := range stimulus.Children {
		if c.Label == tree.LabelIdea {
			ideas = append(ideas, c)
		}
	}
	if len(ideas) > 0 {
		return ideas[len(ideas)-1]
	}
	return stimulus
}

// createIntermediates fills in missing hierarchy rungs with auto-generated
// nodes and returns the node the new element should hang under.
func (u *Updater) createIntermediates(label tree.Label, active *tree.Node) *tree.Node {
	if active == nil {
		return nil
	}
	switch {
	case label == tree.LabelValue && active.Label == tree.LabelAttribute:
		return u.addAuto(active, tree.LabelConsequence)
	case label == tree.LabelValue && active.Label == tree.LabelIdea:
		attr := u.addAuto(active, tree.LabelAttribute)
		return u.addAuto(attr, tree.LabelConsequence)
	case label == tree.LabelConsequence && active.Label == tree.LabelIdea:
		return u.addAuto(active, tree.LabelAttribute)
	}
	return nil
}

func (u *Updater) addAuto(parent *tree.Node, label tree.Label) *tree.Node {
	n := u.addUnder(parent, label, autoSummaries[label], nil)
	slog.Info("Intermediate node created", "node_id", n.ID, "label", label)
	return n
}

// addUnder creates a child of parent without disturbing the active node.
func (u *Updater) addUnder(parent *tree.Node, label tree.Label, conclusion string, trace []tree.TraceElement) *tree.Node {
	saved := u.Tree.Active
	u.Tree.Active = parent
	n := u.Tree.AddChild(label, conclusion, trace)
	u.Tree.Active = saved
	return n
}

// createAndAdd creates the node under parent (or the active node when parent
// is nil) and records backwards relations for later serialization.
func (u *Updater) createAndAdd(parent *tree.Node, label tree.Label, summary string, interactionID int64) *tree.Node {
	active := u.Tree.Active

	var trace []tree.TraceElement
	if interactionID != 0 {
		trace = []tree.TraceElement{{InteractionID: interactionID}}
	}

	var n *tree.Node
	if parent == nil {
		slog.Warn("No parent resolved, adding under active node")
		n = u.Tree.AddChild(label, summary, trace)
	} else {
		n = u.addUnder(parent, label, summary, trace)
	}

	// An attribute surfacing while a consequence or another attribute is
	// probed belongs to the idea level; keep the link as a backwards
	// relation so export can reorganize it.
	if active != nil && label == tree.LabelAttribute &&
		(active.Label == tree.LabelConsequence || active.Label == tree.LabelAttribute) {
		active.AddBackwardsRelation(n)
		slog.Info("Backwards relation recorded", "from", active.ID, "to", n.ID)
	}
	return n
}
