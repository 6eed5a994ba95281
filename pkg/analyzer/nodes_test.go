package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meansend/ladder/pkg/tree"
)

func TestHasRealNodes(t *testing.T) {
	real := tree.NewNode(tree.LabelAttribute, "attr", nil)
	dummy := tree.NewNode(tree.LabelIrrelevant, "DUMMY-1: x", nil)

	assert.True(t, HasRealNodes([]*tree.Node{dummy, real}))
	assert.False(t, HasRealNodes([]*tree.Node{dummy}))
	assert.False(t, HasRealNodes(nil))
}

func TestExtractValueNodes(t *testing.T) {
	v := tree.NewNode(tree.LabelValue, "freedom", nil)
	c := tree.NewNode(tree.LabelConsequence, "cons", nil)

	out := ExtractValueNodes([]*tree.Node{c, v})
	assert.Len(t, out, 1)
	assert.Same(t, v, out[0])
}

func activeLadder(t *testing.T) (*tree.Tree, *tree.Node, *tree.Node) {
	t.Helper()
	tr := tree.New(tree.NewNode(tree.LabelStimulus, "s", nil))
	idea := tr.AddChild(tree.LabelIdea, "idea", nil)
	tr.Active = idea
	attr := tr.AddChild(tree.LabelAttribute, "attr", nil)
	return tr, idea, attr
}

func TestCheckForRequiredElements_IdeaWantsAttribute(t *testing.T) {
	tr, idea, attr := activeLadder(t)
	tr.Active = idea

	assert.True(t, CheckForRequiredElements(tr, []*tree.Node{attr}))
	assert.False(t, CheckForRequiredElements(tr, nil))
}

func TestCheckForRequiredElements_IdeaAcceptsConnectedConsequence(t *testing.T) {
	tr, idea, attr := activeLadder(t)
	tr.Active = attr
	cons := tr.AddChild(tree.LabelConsequence, "cons", nil)
	tr.Active = idea

	assert.True(t, CheckForRequiredElements(tr, []*tree.Node{cons}))
}

func TestCheckForRequiredElements_AttributeWantsConnectedConsequence(t *testing.T) {
	tr, _, attr := activeLadder(t)
	tr.Active = attr
	cons := tr.AddChild(tree.LabelConsequence, "cons", nil)

	assert.True(t, CheckForRequiredElements(tr, []*tree.Node{cons}))

	// An unconnected consequence elsewhere does not count.
	stray := tree.NewNode(tree.LabelConsequence, "stray", nil)
	tr.Register(stray)
	assert.False(t, CheckForRequiredElements(tr, []*tree.Node{stray}))
}

func TestCheckForRequiredElements_ConsequenceWantsDeeperRung(t *testing.T) {
	tr, _, attr := activeLadder(t)
	tr.Active = attr
	cons := tr.AddChild(tree.LabelConsequence, "cons", nil)
	tr.Active = cons
	val := tr.AddChild(tree.LabelValue, "freedom", nil)

	assert.True(t, CheckForRequiredElements(tr, []*tree.Node{val}))

	attrNode := tree.NewNode(tree.LabelAttribute, "late attr", nil)
	assert.False(t, CheckForRequiredElements(tr, []*tree.Node{attrNode}))
}

func TestCheckForRequiredElements_IrrelevantActiveAcceptsAnyRealNode(t *testing.T) {
	tr, idea, _ := activeLadder(t)
	tr.Active = idea
	dummy := tr.AddChild(tree.LabelIrrelevant, "DUMMY-1: x", nil)
	tr.Active = dummy

	real := tree.NewNode(tree.LabelAttribute, "attr2", nil)
	assert.True(t, CheckForRequiredElements(tr, []*tree.Node{real}))

	another := tree.NewNode(tree.LabelIrrelevant, "DUMMY-2: y", nil)
	assert.False(t, CheckForRequiredElements(tr, []*tree.Node{another}))
}
