package session

import (
	"context"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/models"
	"github.com/meansend/ladder/pkg/question"
	"github.com/meansend/ladder/pkg/stage"
	"github.com/meansend/ladder/pkg/tree"
)

// scriptedModel answers by prompt kind: idea checks and similarity calls get
// fixed replies, analysis calls pop from the script, everything else gets a
// canned question.
type scriptedModel struct {
	analyses []string
	requests int
}

func (s *scriptedModel) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests++
	sys := ""
	for _, m := range req.Messages {
		if m.Role == openai.ChatMessageRoleSystem {
			sys = m.Content
			break
		}
	}
	var content string
	switch {
	case strings.Contains(sys, "opening answer"):
		content = `{"is_idea": true, "summary": "always being reachable", "is_relevant": true, "explanation": "clear idea"}`
	case strings.Contains(sys, "Extract every distinct element"):
		content = `{"contains_multiple_elements": false, "elements": []}`
		if len(s.analyses) > 0 {
			content = s.analyses[0]
			s.analyses = s.analyses[1:]
		}
	case strings.Contains(sys, "deduplicating"):
		content = `{"similarity_results": []}`
	default:
		content = `{"Next": {"ThoughtProcess": "probe deeper", "NextQuestion": "Why does that matter to you?", "AskingIntervieweeFor": "model-pick", "EndOfInterview": false}}`
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}, nil
}

type memInteractions struct {
	next  int64
	items map[int64]models.Interaction
}

func newMemInteractions() *memInteractions {
	return &memInteractions{items: map[int64]models.Interaction{}}
}

func (m *memInteractions) AppendInteraction(_, q, a string) (models.Interaction, error) {
	m.next++
	it := models.Interaction{ID: m.next, SystemQuestion: q, UserAnswer: a, CreatedNS: time.Now().UnixNano()}
	m.items[it.ID] = it
	return it, nil
}

func (m *memInteractions) GetInteractions(_ string, ids []int64) ([]models.Interaction, error) {
	var out []models.Interaction
	for _, id := range ids {
		if it, ok := m.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

const (
	attrAnalysis = `{"contains_multiple_elements": false, "elements": [
		{"category": "ATTRIBUTE", "summary": "long battery life", "text_segment": "battery", "is_new_element": true}]}`
	consAnalysis = `{"contains_multiple_elements": false, "elements": [
		{"category": "CONSEQUENCE", "summary": "less charging stress", "text_segment": "charging", "is_new_element": true}]}`
	valueAnalysis = `{"contains_multiple_elements": false, "elements": [
		{"category": "VALUE", "summary": "peace of mind overall", "text_segment": "peace", "is_new_element": true}]}`
	irrelevantAnalysis = `{"contains_multiple_elements": false, "elements": [
		{"category": "IRRELEVANT", "summary": "off topic ramble", "text_segment": "ramble", "is_new_element": true}]}`
	emptyAnalysis   = `{"contains_multiple_elements": false, "elements": []}`
	twoAttrAnalysis = `{"contains_multiple_elements": true, "elements": [
		{"category": "ATTRIBUTE", "summary": "long battery life", "text_segment": "battery", "is_new_element": true},
		{"category": "ATTRIBUTE", "summary": "crisp screen quality", "text_segment": "screen", "is_new_element": true}]}`
)

func newTestChat(t *testing.T, model *scriptedModel, opts Options) *StimulusChat {
	t.Helper()
	if opts.Topic == "" {
		opts.Topic = "mobile devices"
	}
	client := llm.NewWithAPI(model, "", "test-model")
	return NewStimulusChat("smartphone", "sess-1", client, newMemInteractions(), opts)
}

func TestStimulusChat_FirstMessageAsksForIdea(t *testing.T) {
	c := newTestChat(t, &scriptedModel{}, Options{})

	resp := c.HandleInput(context.Background(), "Hello", nil)

	assert.Equal(t, question.TypeIdea, resp.Next.AskingIntervieweeFor)
	assert.False(t, resp.Next.EndOfInterview)
	require.Len(t, c.History, 2)
	assert.Equal(t, "user", c.History[0].Role)
	assert.Equal(t, []string{c.Tree.Root.ID}, c.History[0].NodeIDs)
	assert.Equal(t, "system", c.History[1].Role)
	assert.Equal(t, resp.Next.NextQuestion, c.History[1].Content)
	// No analysis on the first turn, only the idea question.
	assert.Len(t, c.Tree.AllNodes(), 1)
}

func TestStimulusChat_FullLadderRunsToCompletion(t *testing.T) {
	model := &scriptedModel{analyses: []string{attrAnalysis, consAnalysis, valueAnalysis, emptyAnalysis}}
	c := newTestChat(t, model, Options{})
	ctx := context.Background()

	c.HandleInput(ctx, "Hello", nil)

	resp := c.HandleInput(ctx, "I like always being reachable", nil)
	assert.Equal(t, question.TypeAttribute, resp.Next.AskingIntervieweeFor)
	require.Len(t, c.Tree.NodesByLabel(tree.LabelIdea), 1)
	assert.Equal(t, "always being reachable", c.Tree.NodesByLabel(tree.LabelIdea)[0].Conclusion)

	resp = c.HandleInput(ctx, "The battery lasts long", nil)
	assert.Equal(t, question.TypeConsequence, resp.Next.AskingIntervieweeFor)
	assert.Equal(t, tree.LabelAttribute, c.Tree.Active.Label)

	resp = c.HandleInput(ctx, "I worry less about charging", nil)
	assert.Equal(t, question.TypeConsequenceValue, resp.Next.AskingIntervieweeFor)
	assert.Equal(t, tree.LabelConsequence, c.Tree.Active.Label)

	// The value empties the queue, which opens the extra attribute round.
	resp = c.HandleInput(ctx, "It gives me peace of mind", nil)
	assert.Equal(t, question.TypeAskAgain, resp.Next.AskingIntervieweeFor)
	assert.Len(t, c.Tree.NodesByLabel(tree.LabelValue), 1)
	assert.True(t, c.Flow.AskedAgain)
	assert.False(t, c.Finished)

	resp = c.HandleInput(ctx, "No, nothing else comes to mind", nil)
	assert.Equal(t, question.TypeEnd, resp.Next.AskingIntervieweeFor)
	assert.True(t, resp.Next.EndOfInterview)
	assert.Contains(t, resp.Next.NextQuestion, "Thank you")
	assert.True(t, c.Finished)
	assert.Equal(t, stage.Complete, c.Stages.Stage())
	assert.Len(t, c.History, 12)
}

func TestStimulusChat_ValuesLimitEndsImmediately(t *testing.T) {
	model := &scriptedModel{analyses: []string{attrAnalysis, consAnalysis, valueAnalysis}}
	c := newTestChat(t, model, Options{ValuesMax: 1})
	ctx := context.Background()

	c.HandleInput(ctx, "Hello", nil)
	c.HandleInput(ctx, "I like always being reachable", nil)
	c.HandleInput(ctx, "The battery lasts long", nil)
	c.HandleInput(ctx, "I worry less about charging", nil)

	resp := c.HandleInput(ctx, "It gives me peace of mind", nil)

	assert.True(t, resp.Next.EndOfInterview)
	assert.Equal(t, "VALUES_LIMIT_REACHED", resp.Next.AskingIntervieweeFor)
	assert.Equal(t, "VALUES_LIMIT_REACHED", resp.Next.CompletionReason)
	require.NotNil(t, resp.Next.ValuesCount)
	assert.Equal(t, 1, *resp.Next.ValuesCount)
	assert.True(t, c.Finished)
	assert.Equal(t, stage.ValuesLimitReached, c.Stages.Stage())
	assert.False(t, c.valuesJustReached, "flag is consumed by the response")
}

func TestStimulusChat_RetryCapSwitchesToQueuedAttribute(t *testing.T) {
	model := &scriptedModel{analyses: []string{twoAttrAnalysis, irrelevantAnalysis, irrelevantAnalysis}}
	c := newTestChat(t, model, Options{MaxRetries: 1})
	ctx := context.Background()

	c.HandleInput(ctx, "Hello", nil)
	c.HandleInput(ctx, "I like always being reachable", nil)

	resp := c.HandleInput(ctx, "Battery and the screen", nil)
	assert.Equal(t, question.TypeConsequence, resp.Next.AskingIntervieweeFor)
	assert.Equal(t, "long battery life", c.Tree.Active.Conclusion)

	// First dud answer parks a dummy under the probe target.
	resp = c.HandleInput(ctx, "Dunno, my cousin has one too", nil)
	assert.Equal(t, question.TypeExpandedCons, resp.Next.AskingIntervieweeFor)
	assert.Equal(t, tree.LabelIrrelevant, c.Tree.Active.Label)

	// Second dud exhausts the attempts and moves on to the other attribute.
	resp = c.HandleInput(ctx, "Still no idea", nil)
	assert.Equal(t, "max_attempts_reached", resp.Next.TopicSwitchReason)
	assert.Equal(t, question.TypeConsequence, resp.Next.AskingIntervieweeFor)
	assert.Equal(t, "crisp screen quality", c.Tree.Active.Conclusion)
	assert.Contains(t, resp.Next.NextQuestion, "Why does that matter to you?")
}

func TestStimulusChat_TooShortInterviewGetsAnotherRound(t *testing.T) {
	model := &scriptedModel{analyses: []string{
		attrAnalysis, consAnalysis, valueAnalysis, emptyAnalysis,
		`{"contains_multiple_elements": false, "elements": [
			{"category": "ATTRIBUTE", "summary": "water resistant casing", "text_segment": "water", "is_new_element": true}]}`,
	}}
	c := newTestChat(t, model, Options{MinNodes: 50})
	ctx := context.Background()

	c.HandleInput(ctx, "Hello", nil)
	c.HandleInput(ctx, "I like always being reachable", nil)
	c.HandleInput(ctx, "The battery lasts long", nil)
	c.HandleInput(ctx, "I worry less about charging", nil)
	resp := c.HandleInput(ctx, "It gives me peace of mind", nil)
	require.Equal(t, question.TypeAskAgain, resp.Next.AskingIntervieweeFor)

	// An empty answer would normally end the interview, but the graph is
	// still below the minimum size.
	resp = c.HandleInput(ctx, "Nothing else", nil)
	assert.Equal(t, question.TypeAskAgainTooShort, resp.Next.AskingIntervieweeFor)
	assert.False(t, resp.Next.EndOfInterview)
	assert.False(t, c.Finished)
	assert.Equal(t, stage.AskingAgainTooShort, c.Stages.Stage())

	// A real attribute resumes normal laddering.
	resp = c.HandleInput(ctx, "Oh, it survives rain", nil)
	assert.Equal(t, question.TypeConsequence, resp.Next.AskingIntervieweeFor)
	assert.Equal(t, "water resistant casing", c.Tree.Active.Conclusion)
	assert.False(t, c.Flow.AskedAgain)
}

func TestStimulusChat_StoresInteractions(t *testing.T) {
	st := newMemInteractions()
	client := llm.NewWithAPI(&scriptedModel{}, "", "test-model")
	c := NewStimulusChat("smartphone", "sess-1", client, st, Options{Topic: "mobile devices"})
	ctx := context.Background()

	c.HandleInput(ctx, "Hello", nil)
	c.HandleInput(ctx, "I like always being reachable", nil)

	require.Len(t, st.items, 2)
	first := st.items[1]
	assert.Equal(t, "", first.SystemQuestion, "no question precedes the opener")
	assert.Equal(t, "Hello", first.UserAnswer)
	second := st.items[2]
	assert.Equal(t, "I like always being reachable", second.UserAnswer)
	assert.NotEmpty(t, second.SystemQuestion)
}

func TestStimulusChat_NilStoreStillWorks(t *testing.T) {
	client := llm.NewWithAPI(&scriptedModel{}, "", "test-model")
	c := NewStimulusChat("smartphone", "sess-1", client, nil, Options{Topic: "mobile devices"})

	resp := c.HandleInput(context.Background(), "Hello", nil)
	assert.Equal(t, question.TypeIdea, resp.Next.AskingIntervieweeFor)
}
