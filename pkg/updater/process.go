package updater

import (
	"context"
	"log/slog"

	"github.com/meansend/ladder/pkg/analyzer"
	"github.com/meansend/ladder/pkg/tree"
)

// NodeFinder locates an existing similar node. *similarity.Finder satisfies
// it; tests substitute a stub.
type NodeFinder interface {
	Find(ctx context.Context, label tree.Label, summary string, activeParent *tree.Node) (*tree.Node, bool)
}

// Processor turns one analyzed answer into graph nodes. It owns the element
// filtering, creation order, and duplicate handling for a single stimulus
// tree.
type Processor struct {
	Tree     *tree.Tree
	Updater  *Updater
	Analyzer *analyzer.Analyzer
	Finder   NodeFinder

	lastAffected []*tree.Node
	current      []*tree.Node
}

// LastAffected returns every node touched by the most recent message,
// including reused and stacked ones.
func (p *Processor) LastAffected() []*tree.Node {
	return append([]*tree.Node(nil), p.lastAffected...)
}

func (p *Processor) touch(n *tree.Node) {
	if n != nil {
		p.current = append(p.current, n)
	}
}

// ProcessMessage analyzes one answer and returns the newly created probe
// candidates in queue order.
func (p *Processor) ProcessMessage(ctx context.Context, message string, isFirstContent bool, lastQuestion string, interactionID int64) []*tree.Node {
	p.current = nil
	var nodes []*tree.Node
	if isFirstContent {
		nodes = p.processFirstMessage(ctx, message, interactionID)
	} else {
		nodes = p.processRegularMessage(ctx, message, lastQuestion, interactionID)
	}
	p.lastAffected = p.current
	return nodes
}

// processFirstMessage handles the opening answer: it becomes either the idea
// node or an irrelevant dummy.
func (p *Processor) processFirstMessage(ctx context.Context, message string, interactionID int64) []*tree.Node {
	res, err := p.Analyzer.CheckIdea(ctx, message)
	if err != nil {
		slog.Warn("Idea check failed, treating answer as irrelevant", "error", err)
		res = analyzer.IdeaResult{}
	}

	label, summary := firstMessageLabel(res, message)
	n := p.Updater.UpdateWithAnalysis(label, summary, true, nil, interactionID)
	if n == nil {
		return nil
	}
	p.touch(n)
	slog.Info("First content message processed", "node_id", n.ID, "label", n.Label, "summary", n.Conclusion)
	return []*tree.Node{n}
}

func firstMessageLabel(res analyzer.IdeaResult, message string) (tree.Label, string) {
	if !res.IsRelevant {
		summary := res.Summary
		if len(summary) < 5 {
			if len(message) > 20 {
				summary = "Irrelevant: " + message[:20] + "..."
			} else {
				summary = "Irrelevant: " + message
			}
		}
		return tree.LabelIrrelevant, summary
	}

	// A relevant answer that is not yet a concrete idea still opens the
	// ladder as the idea node.
	summary := res.Summary
	if len(summary) < 5 {
		summary = message
		if len(summary) > 30 {
			summary = summary[:30] + "..."
		}
	}
	return tree.LabelIdea, summary
}

func (p *Processor) processRegularMessage(ctx context.Context, message, lastQuestion string, interactionID int64) []*tree.Node {
	elements, rels := p.Analyzer.JudgeMulti(ctx, p.Tree, lastQuestion, message)
	if len(elements) == 0 {
		slog.Info("Answer ignored, no elements detected")
		return nil
	}

	filtered := analyzer.FilterIrrelevantDominance(elements)
	if len(filtered) == 1 && filtered[0].Label == tree.LabelIrrelevant {
		elements, rels = filtered, nil
	}

	if hasAllLabels(elements) {
		elements, rels = analyzer.FilterACVChains(elements, rels)
	}
	elements = analyzer.FilterConsequencesWithoutValues(p.Tree.Active, elements, rels)

	return p.materialize(ctx, elements, rels, interactionID)
}

func hasAllLabels(elements []analyzer.Element) bool {
	var a, c, v bool
	for _, e := range elements {
		switch e.Label {
		case tree.LabelAttribute:
			a = true
		case tree.LabelConsequence:
			c = true
		case tree.LabelValue:
			v = true
		}
	}
	return a && c && v
}

// materialize creates nodes for the filtered elements: independent elements
// first, then relationship chains source-before-target so each target can
// hang under its source.
func (p *Processor) materialize(ctx context.Context, elements []analyzer.Element, rels []analyzer.Relationship, interactionID int64) []*tree.Node {
	m := analyzer.BuildMappings(elements, rels)
	processed := map[analyzer.Key]*tree.Node{}
	var final []*tree.Node

	for _, e := range elements {
		key := analyzer.KeyOf(e)
		if m.InRelationship[key] || !e.IsNew {
			continue
		}
		if n := p.createOrReuse(ctx, e.Label, e.Summary, nil, interactionID); n != nil {
			final = append(final, n)
		}
	}

	for _, sk := range m.SourceOrder {
		src, known := m.Elements[sk]
		if !known {
			src = analyzer.Element{Label: sk.Label, Summary: sk.Summary}
		}
		switch analyzer.ClassifySource(p.Tree.Active, src) {
		case analyzer.SpecialSkipAll:
			slog.Info("Restated source dropped with its targets", "label", sk.Label, "summary", sk.Summary)
			continue
		case analyzer.SpecialTargetsWithoutParent:
			p.createTargets(ctx, nil, m.RelationshipMap[sk], m, processed, &final, interactionID)
			continue
		}

		source := processed[sk]
		if source == nil {
			source = p.createOrReuse(ctx, sk.Label, sk.Summary, nil, interactionID)
			if source != nil {
				processed[sk] = source
				if m.EndNodes[sk] {
					final = append(final, source)
				}
			} else if existing, _ := p.Finder.Find(ctx, sk.Label, sk.Summary, p.Tree.Active); existing != nil {
				// The source already lives in another branch; use it as
				// the parent without creating a new edge here.
				source = existing
			}
		}
		if source == nil {
			slog.Warn("Could not resolve relationship source", "label", sk.Label, "summary", sk.Summary)
			continue
		}
		p.createTargets(ctx, source, m.RelationshipMap[sk], m, processed, &final, interactionID)
	}

	return sortForQueue(final)
}

// createTargets materializes the targets of one relationship source. A nil
// parent attaches them at the current hierarchy position instead.
func (p *Processor) createTargets(ctx context.Context, parent *tree.Node, targets []analyzer.Key,
	m analyzer.Mappings, processed map[analyzer.Key]*tree.Node, final *[]*tree.Node, interactionID int64) {
	for _, tk := range targets {
		elem, ok := m.Elements[tk]
		if !ok || !elem.IsNew {
			slog.Debug("Skipping restated target", "label", tk.Label, "summary", tk.Summary)
			continue
		}
		if existing := processed[tk]; existing != nil {
			if added := p.Updater.AddExistingAsChild(existing, tk.Label, parent); added != nil {
				if m.EndNodes[tk] {
					*final = append(*final, added)
				}
			}
			continue
		}
		n := p.createOrReuse(ctx, tk.Label, tk.Summary, parent, interactionID)
		if n == nil {
			continue
		}
		processed[tk] = n
		if m.EndNodes[tk] {
			*final = append(*final, n)
		}
	}
}

// createOrReuse creates a node, stacks it onto a dummy, or links an existing
// similar node depending on what the similarity check finds. Returns nil
// when the element was a duplicate to ignore.
func (p *Processor) createOrReuse(ctx context.Context, label tree.Label, summary string, parent *tree.Node, interactionID int64) *tree.Node {
	if label == tree.LabelIrrelevant {
		n := p.Updater.UpdateWithAnalysis(label, summary, false, parent, interactionID)
		p.touch(n)
		return n
	}

	existing, ignore := p.Finder.Find(ctx, label, summary, p.Tree.Active)
	if ignore {
		slog.Info("Duplicate element ignored", "label", label, "summary", summary)
		p.touch(existing)
		return nil
	}
	if existing != nil {
		added := p.Updater.AddExistingAsChild(existing, label, parent)
		if added != nil {
			p.touch(added)
			return added
		}
		p.touch(existing)
		return nil
	}

	n := p.Updater.UpdateWithAnalysis(label, summary, false, parent, interactionID)
	p.touch(n)
	return n
}

// sortForQueue orders the returned nodes so consequences enqueue newest
// first, keeping the probe depth-first.
func sortForQueue(nodes []*tree.Node) []*tree.Node {
	var consequences, others []*tree.Node
	for _, n := range nodes {
		if n.Label == tree.LabelConsequence {
			consequences = append(consequences, n)
		} else {
			others = append(others, n)
		}
	}
	for i, j := 0, len(consequences)-1; i < j; i, j = i+1, j-1 {
		consequences[i], consequences[j] = consequences[j], consequences[i]
	}
	return append(consequences, others...)
}
