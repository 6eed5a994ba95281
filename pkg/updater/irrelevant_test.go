package updater

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meansend/ladder/pkg/tree"
)

func TestHandleIrrelevant_CreatesNumberedDummy(t *testing.T) {
	u, tr, idea := ideaFixture(t)

	n := u.HandleIrrelevant("off topic rambling", false, 4)

	require.NotNil(t, n)
	assert.Equal(t, tree.LabelIrrelevant, n.Label)
	assert.Equal(t, "DUMMY-1: off topic rambling", n.Conclusion)
	assert.Same(t, idea, n.Parents[0])
	require.Len(t, n.Trace, 1)
	assert.Equal(t, int64(4), n.Trace[0].InteractionID)

	// A later dummy elsewhere gets the next number.
	tr.Active = idea
	second := u.HandleIrrelevant("more rambling", false, 0)
	assert.True(t, strings.HasPrefix(second.Conclusion, "DUMMY-2: "))
}

func TestHandleIrrelevant_StacksOntoActiveDummy(t *testing.T) {
	u, tr, _ := ideaFixture(t)
	dummy := u.HandleIrrelevant("first answer", false, 1)
	tr.Active = dummy

	stacked := u.HandleIrrelevant("second answer", false, 2)

	assert.Same(t, dummy, stacked)
	assert.Equal(t, "DUMMY-1: first answer | STACK-2: second answer", stacked.Conclusion)
	assert.Len(t, stacked.Trace, 2)

	u.HandleIrrelevant("third answer", false, 3)
	assert.Contains(t, dummy.Conclusion, "STACK-3: third answer")
}

func TestStackIrrelevant_TruncatesPastCap(t *testing.T) {
	u, tr, _ := ideaFixture(t)
	long := strings.Repeat("blah ", 50)
	dummy := u.HandleIrrelevant(long, false, 0)
	tr.Active = dummy

	u.HandleIrrelevant(long, false, 0)

	assert.LessOrEqual(t, len(dummy.Conclusion), maxStackedConclusion+100)
	assert.Contains(t, dummy.Conclusion, "(Total: 2)")
	// Truncation keeps the original first answer, not earlier stacks.
	assert.True(t, strings.HasPrefix(dummy.Conclusion, "DUMMY-1: "))
	assert.Equal(t, 1, strings.Count(dummy.Conclusion, "STACK-"))
}

func TestExtractCounter(t *testing.T) {
	assert.Equal(t, 1, extractCounter("DUMMY-1: something"))
	assert.Equal(t, 3, extractCounter("DUMMY-3: something"))
	assert.Equal(t, 2, extractCounter("DUMMY-1: a | STACK-2: b"))
	assert.Equal(t, 5, extractCounter("DUMMY-1: a | STACK-5: b... (Total: 5)"))
	assert.Equal(t, 1, extractCounter("no markers here"))
}

func TestTransformIrrelevant_UnderStimulusMergesIntoExistingIdea(t *testing.T) {
	u, tr, idea := ideaFixture(t)
	tr.Active = tr.Root
	dummy := u.HandleIrrelevant("noise", false, 7)
	tr.Active = dummy

	n := u.TransformIrrelevant(dummy, tree.LabelIdea, "real idea", false, 8, nil)

	assert.Same(t, idea, n)
	assert.Equal(t, "always connected, real idea", idea.Conclusion)
	ids := map[int64]bool{}
	for _, tr := range idea.Trace {
		ids[tr.InteractionID] = true
	}
	assert.True(t, ids[7])
	assert.True(t, ids[8])
}

func TestTransformIrrelevant_UnderStimulusWithoutIdeaCreatesOne(t *testing.T) {
	u, tr := fixture(t)
	dummy := u.HandleIrrelevant("noise", false, 0)
	tr.Active = dummy

	n := u.TransformIrrelevant(dummy, tree.LabelAttribute, "recovered", false, 0, nil)

	require.NotNil(t, n)
	assert.Equal(t, tree.LabelIdea, n.Label, "recovery under the stimulus becomes the idea")
	assert.Equal(t, "recovered", n.Conclusion)
	assert.True(t, n.HasParentWithLabel(tree.LabelStimulus))
}

func TestTransformIrrelevant_DeeperDummyResolvesHierarchy(t *testing.T) {
	u, tr, _ := ideaFixture(t)
	attr := u.UpdateWithAnalysis(tree.LabelAttribute, "battery life", false, nil, 0)
	tr.Active = attr
	dummy := u.HandleIrrelevant("noise", false, 0)
	tr.Active = dummy

	n := u.TransformIrrelevant(dummy, tree.LabelConsequence, "less charging", false, 0, nil)

	require.NotNil(t, n)
	assert.Equal(t, tree.LabelConsequence, n.Label)
	assert.Same(t, attr, n.Parents[0])
	// The dummy itself stays; queue advancement removes it.
	assert.NotNil(t, tr.NodeByID(dummy.ID))
}

func TestTransformIrrelevant_RefusesNonDummy(t *testing.T) {
	u, _, idea := ideaFixture(t)
	assert.Nil(t, u.TransformIrrelevant(idea, tree.LabelAttribute, "x", false, 0, nil))
}

func TestUpdateWithAnalysis_RealElementTransformsActiveDummy(t *testing.T) {
	u, tr, _ := ideaFixture(t)
	dummy := u.HandleIrrelevant("noise", false, 0)
	tr.Active = dummy

	n := u.UpdateWithAnalysis(tree.LabelAttribute, "battery life", false, nil, 0)

	require.NotNil(t, n)
	assert.Equal(t, tree.LabelAttribute, n.Label)
	assert.NotEqual(t, dummy.ID, n.ID)
}
