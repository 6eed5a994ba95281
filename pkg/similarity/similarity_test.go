package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meansend/ladder/pkg/tree"
)

func TestExactMatch(t *testing.T) {
	assert.True(t, ExactMatch("Battery Life", "battery life"))
	assert.True(t, ExactMatch("  battery life ", "battery life"))
	assert.False(t, ExactMatch("battery life", "screen size"))
}

func TestLexical_ShortTextSubstring(t *testing.T) {
	assert.True(t, Lexical("battery", "battery life", tree.LabelAttribute))
	assert.True(t, Lexical("long battery life", "battery", tree.LabelAttribute))
	assert.False(t, Lexical("camera", "battery", tree.LabelAttribute))
}

func TestLexical_WordOverlap(t *testing.T) {
	assert.True(t, Lexical(
		"spending quality time with family members",
		"having quality time with the family",
		tree.LabelValue))
	assert.False(t, Lexical(
		"spending quality time with family",
		"feeling professionally accomplished at work",
		tree.LabelValue))
}

func TestLexical_EmptyInputs(t *testing.T) {
	assert.False(t, Lexical("", "battery", tree.LabelAttribute))
	assert.False(t, Lexical("battery", "  ", tree.LabelAttribute))
}

type stubJudge struct {
	judgements []Judgement
	err        error
	called     bool
	candidates []Candidate
}

func (s *stubJudge) Judge(_ context.Context, _, _ string, _ tree.Label, _ string, candidates []Candidate) ([]Judgement, error) {
	s.called = true
	s.candidates = candidates
	return s.judgements, s.err
}

func finderFixture(t *testing.T) (*Finder, *tree.Tree, *tree.Node, *tree.Node) {
	t.Helper()
	tr := tree.New(tree.NewNode(tree.LabelStimulus, "smartphone", nil))
	idea := tr.AddChild(tree.LabelIdea, "always connected", nil)
	tr.Active = idea
	attr := tr.AddChild(tree.LabelAttribute, "battery life", nil)
	tr.Active = attr
	f := &Finder{Tree: tr, Topic: "mobile devices", Stimulus: "smartphone"}
	return f, tr, idea, attr
}

func TestFinder_ExactSameContextIsDuplicate(t *testing.T) {
	f, _, _, attr := finderFixture(t)

	node, ignore := f.Find(context.Background(), tree.LabelAttribute, "Battery Life", attr)

	require.NotNil(t, node)
	assert.Same(t, attr, node)
	assert.True(t, ignore)
}

func TestFinder_ExactCrossContextIsShared(t *testing.T) {
	f, tr, idea, attr := finderFixture(t)
	tr.Active = idea
	other := tr.AddChild(tree.LabelAttribute, "camera quality", nil)

	// Probing under the other attribute: battery life lives elsewhere.
	node, ignore := f.Find(context.Background(), tree.LabelAttribute, "battery life", other)

	require.NotNil(t, node)
	assert.Same(t, attr, node)
	assert.False(t, ignore)
}

func TestFinder_NoMatch(t *testing.T) {
	f, _, _, attr := finderFixture(t)

	node, ignore := f.Find(context.Background(), tree.LabelAttribute, "completely different thing", attr)

	assert.Nil(t, node)
	assert.False(t, ignore)
}

func TestFinder_ArtificialNodesSkipped(t *testing.T) {
	f, tr, idea, _ := finderFixture(t)
	tr.Active = idea
	tr.AddChild(tree.LabelAttribute, "DUMMY-1: battery life", nil)

	node, _ := f.Find(context.Background(), tree.LabelAttribute, "DUMMY-1: battery life", idea)
	assert.Nil(t, node)
}

func TestFinder_ConfidentNonMergeInContextIsDuplicate(t *testing.T) {
	f, _, _, attr := finderFixture(t)
	judge := &stubJudge{judgements: []Judgement{
		{CandidateID: attr.ID, ShouldMerge: false, Confidence: 90},
	}}
	f.Judge = judge

	// Lexically similar but not exact, in the same parent context.
	node, ignore := f.Find(context.Background(), tree.LabelAttribute, "long battery life", attr)

	assert.True(t, judge.called)
	require.NotNil(t, node)
	assert.Same(t, attr, node)
	assert.True(t, ignore)
}

func TestFinder_ConfidentCrossContextMerge(t *testing.T) {
	f, tr, idea, attr := finderFixture(t)
	tr.Active = idea
	other := tr.AddChild(tree.LabelAttribute, "camera quality", nil)
	judge := &stubJudge{judgements: []Judgement{
		{CandidateID: attr.ID, ShouldMerge: true, Confidence: 85},
	}}
	f.Judge = judge

	node, ignore := f.Find(context.Background(), tree.LabelAttribute, "long battery life", other)

	require.NotNil(t, node)
	assert.Same(t, attr, node)
	assert.False(t, ignore)
}

func TestFinder_LowConfidenceIgnored(t *testing.T) {
	f, _, _, attr := finderFixture(t)
	judge := &stubJudge{judgements: []Judgement{
		{CandidateID: attr.ID, ShouldMerge: false, Confidence: ConfidenceFloor - 1},
	}}
	f.Judge = judge

	node, ignore := f.Find(context.Background(), tree.LabelAttribute, "long battery life", attr)

	assert.Nil(t, node)
	assert.False(t, ignore)
}
