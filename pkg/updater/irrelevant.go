package updater

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/meansend/ladder/pkg/tree"
)

const maxStackedConclusion = 200

// HandleIrrelevant records an off-topic answer. Consecutive irrelevant
// answers stack onto the existing dummy instead of growing the graph.
func (u *Updater) HandleIrrelevant(summary string, isFirst bool, interactionID int64) *tree.Node {
	active := u.Tree.Active
	if active != nil && active.Label == tree.LabelIrrelevant {
		return u.stackIrrelevant(active, summary, interactionID)
	}

	parent := active
	if parent == nil {
		parent = u.Tree.Root
	}
	dummy := fmt.Sprintf("DUMMY-%d: %s", u.nextIrrelevantCounter(), summary)
	n := u.createAndAdd(parent, tree.LabelIrrelevant, dummy, interactionID)
	slog.Info("Dummy node created", "node_id", n.ID, "summary", dummy)
	return n
}

func (u *Updater) nextIrrelevantCounter() int {
	return len(u.Tree.NodesByLabel(tree.LabelIrrelevant)) + 1
}

// stackIrrelevant appends another off-topic answer to an existing dummy,
// truncating once the conclusion grows past the cap.
func (u *Updater) stackIrrelevant(dummy *tree.Node, summary string, interactionID int64) *tree.Node {
	counter := extractCounter(dummy.Conclusion) + 1
	stacked := fmt.Sprintf("%s | STACK-%d: %s", dummy.Conclusion, counter, summary)

	if len(stacked) > maxStackedConclusion {
		original := dummy.Conclusion
		if i := strings.Index(original, " | STACK-"); i >= 0 {
			original = original[:i]
		}
		short := summary
		if len(short) > 50 {
			short = short[:50]
		}
		stacked = fmt.Sprintf("%s | STACK-%d: %s... (Total: %d)", original, counter, short, counter)
	}
	dummy.Conclusion = stacked

	if interactionID != 0 {
		dummy.AddTrace(tree.TraceElement{InteractionID: interactionID})
	}
	slog.Info("Irrelevant answer stacked", "node_id", dummy.ID, "count", counter)
	return dummy
}

// extractCounter recovers how many answers a dummy already holds from its
// conclusion text.
func extractCounter(conclusion string) int {
	if i := strings.Index(conclusion, "(Total:"); i >= 0 {
		rest := strings.TrimSpace(conclusion[i+len("(Total:"):])
		rest = strings.TrimSuffix(rest, ")")
		if n, err := strconv.Atoi(strings.TrimSpace(rest)); err == nil {
			return n
		}
	}
	if n := strings.Count(conclusion, "STACK-"); n > 0 {
		return n + 1
	}
	if i := strings.Index(conclusion, "DUMMY-"); i >= 0 {
		rest := conclusion[i+len("DUMMY-"):]
		if j := strings.Index(rest, ":"); j >= 0 {
			if n, err := strconv.Atoi(rest[:j]); err == nil {
				return n
			}
		}
	}
	return 1
}

// TransformIrrelevant turns an active irrelevant dummy into a real node once
// a usable answer arrives. The dummy's trace moves to the new node; removal
// of the dummy itself is left to queue advancement.
func (u *Updater) TransformIrrelevant(irr *tree.Node, label tree.Label, summary string, isFirst bool, interactionID int64, parent *tree.Node) *tree.Node {
	if irr.Label != tree.LabelIrrelevant {
		slog.Warn("Refusing to transform non-irrelevant node", "node_id", irr.ID)
		return nil
	}
	slog.Info("Transforming irrelevant node", "node_id", irr.ID, "into", label)

	trace := append([]tree.TraceElement(nil), irr.Trace...)
	if interactionID != 0 {
		trace = append(trace, tree.TraceElement{InteractionID: interactionID})
	}
	originalParents := append([]*tree.Node(nil), irr.Parents...)

	if parent != nil {
		n := u.addUnder(parent, label, summary, nil)
		transferTrace(n, trace)
		return n
	}

	// A dummy sitting directly under the stimulus means the opening answer
	// was off-topic: the recovery becomes the idea.
	for _, p := range originalParents {
		if p.Label != tree.LabelStimulus {
			continue
		}
		for _, c := range p.Children {
			if c.Label == tree.LabelIdea {
				c.Conclusion = c.Conclusion + ", " + summary
				transferTrace(c, trace)
				slog.Info("Merged recovery into existing idea", "node_id", c.ID)
				return c
			}
		}
		n := u.createAndAdd(p, tree.LabelIdea, summary, 0)
		transferTrace(n, trace)
		return n
	}

	var target *tree.Node
	if len(originalParents) > 0 {
		first := originalParents[0]
		target = u.findParent(label, isFirst, first)
		if target == nil {
			target = u.createIntermediates(label, first)
		}
		if target == nil {
			target = first
		}
	} else {
		target = u.Tree.Root
	}

	n := u.addUnder(target, label, summary, nil)
	transferTrace(n, trace)
	return n
}

func transferTrace(n *tree.Node, trace []tree.TraceElement) {
	for _, t := range trace {
		n.AddTrace(t)
	}
}
