// Package question turns the interview state into the next probe question.
package question

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/models"
	"github.com/meansend/ladder/pkg/prompt"
	"github.com/meansend/ladder/pkg/queue"
	"github.com/meansend/ladder/pkg/stage"
	"github.com/meansend/ladder/pkg/tree"
)

// Question types as reported in AskingIntervieweeFor.
const (
	TypeIdea             = "Idea"
	TypeAttribute        = "A1.1"
	TypeConsequence      = "C1.1"
	TypeConsequenceValue = "CV1.1"
	TypeAskAgain         = "ask_again_for_attributes"
	TypeAskAgainTooShort = "asking_again_for_attributes_too_short"
	TypeExpandedIdea     = "expanded_idea_question"
	TypeExpandedAttr     = "expanded_attribute_question"
	TypeExpandedCons     = "expanded_consequence_question"
	TypeExpandedValue    = "expanded_value_question"
	TypeEnd              = "END OF INTERVIEW"
)

// typeTemplates maps question types to their prompt templates. Unlisted
// types use the standard laddering template.
var typeTemplates = map[string]string{
	TypeAskAgain:         "ask_again_for_attributes",
	TypeAskAgainTooShort: "asking_again_for_attributes_too_short",
	TypeExpandedIdea:     "expanded_idea_question",
	TypeExpandedAttr:     "expanded_attribute_question",
	TypeExpandedCons:     "expanded_consequence_question",
	TypeExpandedValue:    "expanded_value_question",
}

const standardTemplate = "queue_laddering"

var questionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"Next": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"NextQuestion":         map[string]any{"type": "string"},
				"AskingIntervieweeFor": map[string]any{"type": "string"},
				"ThoughtProcess":       map[string]any{"type": "string"},
				"EndOfInterview":       map[string]any{"type": "boolean"},
			},
			"required": []string{"NextQuestion", "ThoughtProcess"},
		},
	},
	"required": []string{"Next"},
}

// Querier issues structured LLM requests. *llm.Client satisfies it.
type Querier interface {
	QueryStructured(ctx context.Context, messages []llm.Message, schema map[string]any, temperature float32) (string, error)
}

// InteractionSource resolves stored question/answer pairs by ID.
type InteractionSource interface {
	Interactions(ids []int64) ([]models.Interaction, error)
}

// TopicSwitch describes a forced move to a different probe target after the
// previous one exhausted its attempts.
type TopicSwitch struct {
	Attempts        int // -1 means unlimited
	PreviousLabel   tree.Label
	PreviousContent string
	NewLabel        tree.Label
	NewContent      string
}

// Params carries the per-turn context for one generation.
type Params struct {
	Messages      []llm.Message
	Switch        *TopicSwitch
	ValuesCount   *int
	ValuesMax     *int
	ValuesReached bool

	// TemplateVars are caller-supplied prompt variables. Engine-owned
	// variables always take precedence over them.
	TemplateVars map[string]any
}

// Generator produces the next question for one stimulus chat.
type Generator struct {
	Tree         *tree.Tree
	Topic        string
	Stimulus     string
	Queue        *queue.Manager
	Stages       *stage.Manager
	Client       Querier
	Interactions InteractionSource
}

// Generate derives the question type from the current state, renders the
// matching prompt, and queries the model. It never fails: LLM or parsing
// problems degrade to a fixed recovery question.
func (g *Generator) Generate(ctx context.Context, p Params) models.InterviewResponse {
	active := g.Tree.Active
	qt := g.nextQuestionType(active)
	if qt == TypeEnd {
		slog.Info("Interview end detected", "stimulus", g.Stimulus)
		return EndOfInterview(g.Tree)
	}

	resp, err := g.generate(ctx, p, active, qt)
	if err != nil {
		slog.Error("Question generation failed", "error", err, "question_type", qt)
		return ErrorRecovery(g.Tree, g.Stimulus, err)
	}

	if p.Switch != nil && resp.Next.NextQuestion != "" {
		resp.Next.NextQuestion = transitionText(p.Switch) + "\n\n" + resp.Next.NextQuestion
		resp.Next.TopicSwitchReason = "max_attempts_reached"
	}

	if p.ValuesCount != nil {
		resp.Next.ValuesCount = p.ValuesCount
	}
	if p.ValuesMax != nil {
		resp.Next.ValuesMax = p.ValuesMax
	}
	reached := p.ValuesReached
	resp.Next.ValuesReached = &reached
	if resp.Next.EndOfInterview && !reached {
		resp.Next.CompletionReason = "INTERVIEW_COMPLETE"
	}
	return resp
}

// nextQuestionType picks the question type and moves the stage along with
// it. Unchanged or irrelevant probe targets switch to the expanded strategy.
func (g *Generator) nextQuestionType(active *tree.Node) string {
	if g.Stages.IsComplete() {
		return TypeEnd
	}
	switch g.Stages.Stage() {
	case stage.AskingAgainForAttributes:
		return TypeAskAgain
	case stage.AskingAgainTooShort:
		return TypeAskAgainTooShort
	}
	if active == nil {
		return "unknown"
	}

	if g.Queue.UnchangedCount() >= 1 || active.Label == tree.LabelIrrelevant {
		return g.expandedType(active)
	}

	switch active.Label {
	case tree.LabelStimulus:
		g.Stages.SetStage(stage.AskingForIdea)
		return TypeIdea
	case tree.LabelIdea:
		g.Stages.SetStage(stage.AskingForAttributes)
		return TypeAttribute
	case tree.LabelAttribute:
		g.Stages.SetStage(stage.AskingForConsequences)
		return TypeConsequence
	case tree.LabelConsequence:
		g.Stages.SetStage(stage.AskingForConsequencesValues)
		return TypeConsequenceValue
	case tree.LabelValue:
		slog.Error("Value node active during question generation", "node_id", active.ID)
		g.Stages.SetStage(stage.AskingForConsequencesValues)
		return TypeConsequenceValue
	}
	return "unknown"
}

// expandedType picks the rephrasing strategy. For an irrelevant dummy the
// first parent decides which element is still being hunted.
func (g *Generator) expandedType(active *tree.Node) string {
	label := active.Label
	if label == tree.LabelIrrelevant && len(active.Parents) > 0 {
		label = active.Parents[0].Label
	}
	switch label {
	case tree.LabelIdea:
		g.Stages.SetStage(stage.AskingForAttributes)
		return TypeExpandedAttr
	case tree.LabelAttribute:
		g.Stages.SetStage(stage.AskingForConsequences)
		return TypeExpandedCons
	case tree.LabelConsequence, tree.LabelValue:
		g.Stages.SetStage(stage.AskingForConsequencesValues)
		return TypeExpandedValue
	}
	g.Stages.SetStage(stage.AskingForIdea)
	return TypeExpandedIdea
}

func (g *Generator) generate(ctx context.Context, p Params, active *tree.Node, qt string) (models.InterviewResponse, error) {
	path := tree.ContextPathFromNode(g.Tree, active)
	branch := g.branchInteractions(active)

	lastResponse := ""
	if len(branch) > 0 && branch[0].UserAnswer != "" {
		lastResponse = branch[0].UserAnswer
	} else if len(p.Messages) > 0 {
		lastResponse = p.Messages[len(p.Messages)-1].Content
	}

	vars := g.promptVars(active, path, lastResponse, p)
	g.addTypeVars(qt, vars, branch, p.Messages)

	tmpl, ok := typeTemplates[qt]
	if !ok {
		tmpl = standardTemplate
	}
	system, err := prompt.Render(tmpl, vars)
	if err != nil {
		return models.InterviewResponse{}, err
	}

	msgs := []llm.Message{{Role: "system", Content: system}}
	// The renewed attribute request stands on its own; everything else gets
	// the branch conversation as context.
	if qt != TypeAskAgain {
		switch {
		case len(branch) > 0:
			use := branch
			if len(use) > 3 {
				use = use[:3]
			}
			for i := len(use) - 1; i >= 0; i-- {
				msgs = append(msgs,
					llm.Message{Role: "assistant", Content: use[i].SystemQuestion},
					llm.Message{Role: "user", Content: use[i].UserAnswer})
			}
		case len(p.Messages) > 0:
			tail := p.Messages
			if len(tail) > 3 {
				tail = tail[len(tail)-3:]
			}
			msgs = append(msgs, tail...)
		}
	}

	raw, err := g.Client.QueryStructured(ctx, msgs, questionSchema, 0.3)
	if err != nil {
		return models.InterviewResponse{}, err
	}
	return g.parse(raw, qt), nil
}

func (g *Generator) promptVars(active *tree.Node, path, lastResponse string, p Params) map[string]any {
	label, content, parentContext := "None", "None", "None"
	if active != nil {
		label, content = string(active.Label), active.Conclusion
		if parent := active.LatestParent(); parent != nil {
			parentContext = string(parent.Label) + ": " + parent.Conclusion
		}
	}
	topic := g.Topic
	if topic == "" {
		topic = "Unspecified topic"
	}
	stimulus := g.Stimulus
	if stimulus == "" {
		stimulus = "Unspecified stimulus"
	}

	valuesStatus := ""
	if p.ValuesCount != nil && p.ValuesMax != nil && *p.ValuesMax > 0 {
		valuesStatus = fmt.Sprintf("Values identified so far: %d of %d.\n", *p.ValuesCount, *p.ValuesMax)
	}
	topicSwitch := ""
	if p.Switch != nil {
		topicSwitch = "The previous element was exhausted, so the probe just moved to this one.\n"
	}

	vars := make(map[string]any, len(p.TemplateVars)+10)
	for k, v := range p.TemplateVars {
		vars[k] = v
	}
	vars["topic"] = topic
	vars["stimulus"] = stimulus
	vars["active_node_label"] = label
	vars["active_node_content"] = content
	vars["current_path"] = path
	vars["interview_stage"] = string(g.Stages.Stage())
	vars["last_user_response"] = lastResponse
	vars["parent_context"] = parentContext
	vars["values_status"] = valuesStatus
	vars["topic_switch"] = topicSwitch
	return vars
}

func (g *Generator) addTypeVars(qt string, vars map[string]any, branch []models.Interaction, messages []llm.Message) {
	switch qt {
	case TypeAskAgain, TypeAskAgainTooShort:
		vars["discussed_attributes"] = g.discussedAttributes()
	case TypeExpandedIdea, TypeExpandedAttr, TypeExpandedCons, TypeExpandedValue:
		lastQuestion := ""
		if len(branch) > 0 {
			lastQuestion = branch[0].SystemQuestion
		} else if len(messages) > 1 {
			lastQuestion = messages[len(messages)-2].Content
		}
		vars["last_question"] = lastQuestion
		vars["target_element_type"] = targetElementType(qt)
	}
}

func (g *Generator) discussedAttributes() string {
	var lines []string
	for _, n := range g.Tree.NodesByLabel(tree.LabelAttribute) {
		c := n.Conclusion
		if c == "" || strings.HasPrefix(c, "AUTO:") || strings.HasPrefix(c, "DUMMY-") {
			continue
		}
		lines = append(lines, "- "+c)
	}
	if len(lines) == 0 {
		return "- No specific attributes have been identified yet"
	}
	return strings.Join(lines, "\n")
}

func targetElementType(qt string) string {
	switch qt {
	case TypeExpandedIdea:
		return "Idea"
	case TypeExpandedAttr:
		return "Attribute"
	case TypeExpandedCons:
		return "Consequence"
	case TypeExpandedValue:
		return "Consequence or Value"
	}
	return "Unknown"
}

// branchInteractions collects the stored question/answer pairs along the
// latest-parent path from the active node up to the idea or stimulus,
// newest first.
func (g *Generator) branchInteractions(active *tree.Node) []models.Interaction {
	if active == nil || g.Interactions == nil {
		return nil
	}
	var ids []int64
	visited := map[string]bool{}
	for cur := active; cur != nil && !visited[cur.ID]; cur = cur.LatestParent() {
		visited[cur.ID] = true
		for _, tr := range cur.Trace {
			if tr.InteractionID != 0 {
				ids = append(ids, tr.InteractionID)
			}
		}
		if cur.Label == tree.LabelIdea || cur.Label == tree.LabelStimulus {
			break
		}
	}
	if len(ids) == 0 {
		return nil
	}
	interactions, err := g.Interactions.Interactions(ids)
	if err != nil {
		slog.Error("Interaction lookup failed", "error", err)
		return nil
	}
	sort.Slice(interactions, func(i, j int) bool {
		return interactions[i].CreatedNS > interactions[j].CreatedNS
	})
	return interactions
}

// parse validates the model output. AskingIntervieweeFor always reflects the
// derived question type and EndOfInterview from the model is never trusted.
func (g *Generator) parse(raw, qt string) models.InterviewResponse {
	var parsed struct {
		Next map[string]any `json:"Next"`
	}
	if err := json.Unmarshal([]byte(llm.CleanJSON(raw)), &parsed); err != nil {
		slog.Error("Question response unparseable", "error", err)
		return Fallback(g.Tree, g.Stimulus, qt, "JSON parsing error after cleaning")
	}
	if parsed.Next == nil {
		slog.Error("Question response missing Next object")
		return Fallback(g.Tree, g.Stimulus, qt, "Invalid Next structure")
	}

	next := models.Next{
		AskingIntervieweeFor: qt,
		ThoughtProcess:       "Queue-based interview",
	}
	if q, ok := parsed.Next["NextQuestion"].(string); ok {
		next.NextQuestion = q
	} else {
		slog.Warn("Missing NextQuestion in response")
		next.NextQuestion = fmt.Sprintf("Could you tell me more about %s?", fallbackSubject(g.Stimulus))
	}
	if tp, ok := parsed.Next["ThoughtProcess"].(string); ok && tp != "" {
		next.ThoughtProcess = tp
	}
	return build(g.Tree, next)
}

func transitionText(ts *TopicSwitch) string {
	const base = "Unfortunately, we weren't able to get a meaningful response to this question and the maximum number of attempts has been reached. Therefore, "
	switch ts.NewLabel {
	case tree.LabelAttribute:
		return base + "let's try to explore the following different feature you mentioned:"
	case tree.LabelConsequence:
		return base + "let's now talk about a different aspect in this context you mentioned."
	default:
		return base + "let's now talk about another point:"
	}
}
