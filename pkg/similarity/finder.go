package similarity

import (
	"context"
	"log/slog"

	"github.com/meansend/ladder/pkg/tree"
)

// Finder locates an existing node that a new element duplicates or should
// be shared with.
type Finder struct {
	Tree     *tree.Tree
	Judge    Judge // nil disables the contextual tier
	Topic    string
	Stimulus string
}

// Find checks a new element against existing nodes of the same label.
//
// Returns (node, true) for an exact or confirmed duplicate in the same
// parent context: the caller must not create a node. Returns (node, false)
// for a cross-parent match: the caller shares the existing node by linking
// it under the new parent. Returns (nil, false) when nothing matches.
func (f *Finder) Find(ctx context.Context, label tree.Label, summary string, activeParent *tree.Node) (*tree.Node, bool) {
	var (
		similarSame []Candidate
		exactDiff   []*tree.Node
		similarDiff []Candidate
	)

	for _, n := range f.Tree.NodesByLabel(label) {
		if tree.IsArtificial(n) {
			continue
		}
		sameParent := f.sameParentContext(n, activeParent)
		if ExactMatch(n.Conclusion, summary) {
			if sameParent {
				slog.Debug("Exact same-context duplicate", "node_id", n.ID)
				return n, true
			}
			exactDiff = append(exactDiff, n)
			continue
		}
		if !Lexical(n.Conclusion, summary, label) {
			continue
		}
		c := Candidate{
			ID:          n.ID,
			Node:        n,
			ContextPath: tree.ContextPathFromNode(f.Tree, n),
			SameParent:  sameParent,
		}
		if sameParent {
			similarSame = append(similarSame, c)
		} else {
			similarDiff = append(similarDiff, c)
		}
	}

	if f.Judge != nil && (len(similarSame) > 0 || len(similarDiff) > 0) {
		candidates := append(append([]Candidate(nil), similarSame...), similarDiff...)
		judgements, err := f.Judge.Judge(ctx, f.Topic, f.Stimulus, label, summary, candidates)
		if err != nil {
			slog.Warn("Similarity judge error", "error", err)
		}
		byID := map[string]Judgement{}
		for _, j := range judgements {
			byID[j.CandidateID] = j
		}

		// A same-context candidate the model is confident is NOT a merge
		// target is a restated duplicate: ignore the new element.
		for _, c := range similarSame {
			if j, ok := byID[c.ID]; ok && j.Confidence >= ConfidenceFloor && !j.ShouldMerge {
				slog.Debug("Duplicate confirmed in context", "node_id", c.ID, "confidence", j.Confidence)
				return c.Node, true
			}
		}

		// The best confident cross-context merge becomes a shared node.
		var best *Candidate
		bestConf := 0
		for i := range similarDiff {
			c := &similarDiff[i]
			if j, ok := byID[c.ID]; ok && j.Confidence >= ConfidenceFloor && j.ShouldMerge && j.Confidence > bestConf {
				best, bestConf = c, j.Confidence
			}
		}
		if best != nil {
			slog.Debug("Cross-context merge confirmed", "node_id", best.ID, "confidence", bestConf)
			return best.Node, false
		}
	}

	if len(exactDiff) > 0 {
		return exactDiff[0], false
	}
	return nil, false
}

// sameParentContext reports whether candidate lives in the same branch as
// the node being created: the effective parent itself, a direct child of
// it (a would-be sibling), or one of the effective parent's ancestors.
func (f *Finder) sameParentContext(candidate, activeParent *tree.Node) bool {
	if activeParent == nil {
		return false
	}
	if candidate.ID == activeParent.ID {
		return true
	}
	for _, c := range activeParent.Children {
		if c.ID == candidate.ID {
			return true
		}
	}
	return f.Tree.IsAncestor(candidate, activeParent)
}
