package session

import (
	"log/slog"

	"github.com/meansend/ladder/pkg/queue"
	"github.com/meansend/ladder/pkg/question"
	"github.com/meansend/ladder/pkg/stage"
	"github.com/meansend/ladder/pkg/tree"
)

// Flow drives the interview progression of one stimulus chat: when to move
// to the next probe target, when to ask once more for attributes, and when
// to end.
type Flow struct {
	Tree       *tree.Tree
	Queue      *queue.Manager
	Stages     *stage.Manager
	MaxRetries int
	ValuesMax  int

	// AskedAgain tracks whether the one extra attribute round was already
	// spent.
	AskedAgain bool

	// OnValuesLimit fires whenever the flow detects the values limit.
	OnValuesLimit func()
}

func (f *Flow) limitReached() bool {
	if !ReachedValuesLimit(f.Tree, f.ValuesMax) {
		return false
	}
	if f.OnValuesLimit != nil {
		f.OnValuesLimit()
	}
	return true
}

func (f *Flow) updateStage(n *tree.Node) {
	f.Stages.UpdateForNode(n, f.limitReached)
}

// HandleAttributeFlag resolves the extra attribute round. Returns true when
// the interview should end. Real nodes during the round reset the flag; no
// real nodes end the interview, unless the graph is still below the minimum
// size, which buys one more round.
func (f *Flow) HandleAttributeFlag(hasReal bool, created []*tree.Node, minNodes int) bool {
	if hasReal && f.AskedAgain {
		slog.Info("Real nodes arrived during extra attribute round, resetting flag")
		f.AskedAgain = false
		return false
	}
	if hasReal || !f.AskedAgain {
		return false
	}

	if minNodes > 0 && len(f.Tree.AllNodes()) < minNodes {
		slog.Info("Interview below minimum size, keep asking", "nodes", len(f.Tree.AllNodes()), "min", minNodes)
		ideas := f.Tree.NodesByLabel(tree.LabelIdea)
		if len(ideas) == 0 {
			slog.Warn("No idea node found, ending interview anyway")
			f.updateStage(nil)
			return true
		}
		f.Queue.Add(ideas[0])
		f.Stages.SetStage(stage.AskingAgainTooShort)
		return false
	}

	// Drop a freshly created dummy before closing so it does not linger in
	// the final graph.
	for _, n := range created {
		if n.Label != tree.LabelIrrelevant {
			continue
		}
		original := f.Tree.Active
		f.Tree.Active = n
		f.Tree.RemoveIrrelevant()
		if original != nil && original.ID != n.ID {
			f.Tree.Active = original
		}
		break
	}

	slog.Info("No new attributes after asking again, ending interview")
	f.updateStage(nil)
	return true
}

// HandleQueueProgress advances the probe target. A retry-cap switch returns
// topic-switch info for the response; an exhausted queue triggers the extra
// attribute round or ends the interview.
func (f *Flow) HandleQueueProgress(found bool, created []*tree.Node) *question.TopicSwitch {
	if f.Queue.ShouldAdvance() {
		slog.Warn("Retry cap hit, switching probe target", "max", f.MaxRetries)
		prev := f.Tree.Active
		next := f.Queue.NextActive()
		if next == nil {
			if !f.tryAskAgainOrEnd() {
				slog.Info("Interview ended after too many attempts")
			}
			return nil
		}
		ts := &question.TopicSwitch{
			Attempts:   f.MaxRetries,
			NewLabel:   next.Label,
			NewContent: next.Conclusion,
		}
		if prev != nil {
			ts.PreviousLabel = prev.Label
			ts.PreviousContent = prev.Conclusion
		}
		f.updateStage(next)
		return ts
	}

	if !found {
		// A pending extra attribute round keeps its stage until answered.
		if s := f.Stages.Stage(); s != stage.AskingAgainForAttributes && s != stage.AskingAgainTooShort {
			f.updateStage(f.Tree.Active)
		}
		return nil
	}

	if f.Tree.Active != nil && f.Tree.Active.Label == tree.LabelIdea {
		next := f.Queue.NextActive()
		switch {
		case next != nil:
			f.updateStage(next)
		case hasValueNode(created):
			// A value straight from the idea stage short-circuits the
			// ladder; offer the extra attribute round instead.
			if !f.tryAskAgainOrEnd() {
				slog.Info("Interview ended after value creation")
			}
		default:
			f.updateStage(f.Tree.Active)
		}
		return nil
	}

	next := f.Queue.NextActive()
	if next != nil {
		f.updateStage(next)
	} else if !f.tryAskAgainOrEnd() {
		slog.Info("Interview ended, no more probe targets")
	}
	return nil
}

// tryAskAgainOrEnd either opens the one extra attribute round or ends the
// interview. Returns true when the interview continues.
func (f *Flow) tryAskAgainOrEnd() bool {
	if f.limitReached() {
		f.Stages.SetStage(stage.ValuesLimitReached)
		return false
	}
	if f.AskedAgain {
		slog.Info("Extra attribute round already spent, interview complete")
		f.updateStage(nil)
		return false
	}

	ideas := f.Tree.NodesByLabel(tree.LabelIdea)
	if len(ideas) == 0 {
		slog.Warn("No idea node found, ending interview anyway")
		f.updateStage(nil)
		return false
	}
	f.Queue.Add(ideas[0])
	f.Stages.SetStage(stage.AskingAgainForAttributes)
	f.AskedAgain = true
	slog.Info("Queue empty, asking once more for attributes")
	return true
}

func hasValueNode(nodes []*tree.Node) bool {
	for _, n := range nodes {
		if n.Label == tree.LabelValue {
			return true
		}
	}
	return false
}
