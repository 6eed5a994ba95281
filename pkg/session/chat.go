package session

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/meansend/ladder/pkg/analyzer"
	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/models"
	"github.com/meansend/ladder/pkg/queue"
	"github.com/meansend/ladder/pkg/question"
	"github.com/meansend/ladder/pkg/similarity"
	"github.com/meansend/ladder/pkg/stage"
	"github.com/meansend/ladder/pkg/tree"
	"github.com/meansend/ladder/pkg/updater"
)

// InteractionStore persists question/answer pairs. *store.Store satisfies
// it; tests substitute a stub.
type InteractionStore interface {
	AppendInteraction(sessionID, question, answer string) (models.Interaction, error)
	GetInteractions(sessionID string, ids []int64) ([]models.Interaction, error)
}

// Options configures an interview session.
type Options struct {
	Topic      string
	Stimuli    []string
	ValuesMax  int
	MaxRetries int
	MinNodes   int
}

// StimulusChat is one laddering conversation about a single stimulus.
type StimulusChat struct {
	Topic     string
	Stimulus  string
	SessionID string

	ValuesMax  int
	MaxRetries int
	MinNodes   int

	Tree      *tree.Tree
	Queue     *queue.Manager
	Stages    *stage.Manager
	Processor *updater.Processor
	Generator *question.Generator
	Flow      *Flow

	History  []models.ChatItem
	Finished bool

	store             InteractionStore
	valuesJustReached bool
}

// NewStimulusChat builds a fresh chat rooted at a stimulus node.
func NewStimulusChat(stimulus, sessionID string, client *llm.Client, st InteractionStore, opts Options) *StimulusChat {
	root := tree.NewNode(tree.LabelStimulus, stimulus, nil)
	t := tree.New(root)

	c := &StimulusChat{
		Topic:      opts.Topic,
		Stimulus:   stimulus,
		SessionID:  sessionID,
		ValuesMax:  opts.ValuesMax,
		MaxRetries: opts.MaxRetries,
		MinNodes:   opts.MinNodes,
		Tree:       t,
		Queue:      queue.NewManager(t, opts.MaxRetries),
		Stages:     stage.NewManager(),
		store:      st,
	}
	c.Queue.InitializeStimulus()
	c.Stages.SetStage(stage.AskingForIdea)
	c.wire(client)
	slog.Info("Stimulus chat initialized", "stimulus", stimulus, "root_id", root.ID)
	return c
}

// wire builds the per-chat pipeline around the tree. Called on creation and
// after restoring from a snapshot.
func (c *StimulusChat) wire(client *llm.Client) {
	an := &analyzer.Analyzer{Client: client, Topic: c.Topic, Stimulus: c.Stimulus}
	c.Processor = &updater.Processor{
		Tree:     c.Tree,
		Updater:  updater.New(c.Tree),
		Analyzer: an,
		Finder: &similarity.Finder{
			Tree:     c.Tree,
			Judge:    &similarity.LLMJudge{Client: client},
			Topic:    c.Topic,
			Stimulus: c.Stimulus,
		},
	}
	c.Generator = &question.Generator{
		Tree:         c.Tree,
		Topic:        c.Topic,
		Stimulus:     c.Stimulus,
		Queue:        c.Queue,
		Stages:       c.Stages,
		Client:       client,
		Interactions: &interactionSource{store: c.store, sessionID: c.SessionID},
	}
	c.Flow = &Flow{
		Tree:          c.Tree,
		Queue:         c.Queue,
		Stages:        c.Stages,
		MaxRetries:    c.MaxRetries,
		ValuesMax:     c.ValuesMax,
		AskedAgain:    c.Flow != nil && c.Flow.AskedAgain,
		OnValuesLimit: func() { c.valuesJustReached = true },
	}
}

// interactionSource adapts the store to the generator's lookup interface.
type interactionSource struct {
	store     InteractionStore
	sessionID string
}

func (s *interactionSource) Interactions(ids []int64) ([]models.Interaction, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.GetInteractions(s.sessionID, ids)
}

// HandleInput runs one full turn: record the answer, grow the graph, decide
// the flow, and generate the next question. The very first message skips
// analysis and goes straight to the idea question. templateVars are extra
// prompt variables supplied with the request.
func (c *StimulusChat) HandleInput(ctx context.Context, message string, templateVars map[string]any) models.InterviewResponse {
	c.Stages.MessageCount++
	userIndex := len(c.History)
	c.History = append(c.History, models.ChatItem{Role: "user", Content: message})

	interactionID := c.storeInteraction(message)

	if c.Stages.IsFirstMessage() {
		slog.Info("First message, skipping analysis and asking for ideas")
		c.Stages.SetStage(stage.AskingForIdea)
		resp := c.generateResponse(ctx, nil, templateVars)

		nodeIDs := []string{c.Tree.Root.ID}
		c.appendSystemMessage(resp.Next.NextQuestion, nodeIDs)
		c.History[userIndex].NodeIDs = append([]string(nil), nodeIDs...)
		c.History[userIndex].CreatedNS = nodeTimes(c.Tree, nodeIDs)
		c.Finished = resp.Next.EndOfInterview
		return resp
	}

	ts := c.processContent(ctx, message, interactionID)
	resp := c.generateResponse(ctx, ts, templateVars)

	nodeIDs := c.affectedNodeIDs()
	c.appendSystemMessage(resp.Next.NextQuestion, nodeIDs)
	c.History[userIndex].NodeIDs = append([]string(nil), nodeIDs...)
	c.History[userIndex].CreatedNS = nodeTimes(c.Tree, nodeIDs)
	c.Finished = resp.Next.EndOfInterview

	slog.Info("Question generated",
		"question", truncate(resp.Next.NextQuestion, 50),
		"asking_for", resp.Next.AskingIntervieweeFor)
	return resp
}

// storeInteraction persists the previous question with this answer and
// returns the interaction ID, or 0 when persistence is unavailable.
func (c *StimulusChat) storeInteraction(message string) int64 {
	if c.store == nil {
		return 0
	}
	it, err := c.store.AppendInteraction(c.SessionID, c.lastQuestion(), message)
	if err != nil {
		slog.Warn("Could not store interaction", "error", err)
		return 0
	}
	return it.ID
}

func (c *StimulusChat) lastQuestion() string {
	if len(c.History) >= 2 {
		return c.History[len(c.History)-2].Content
	}
	return ""
}

// processContent analyzes one answer and moves the interview along. Returns
// topic-switch info when the probe target changed because of the retry cap.
func (c *StimulusChat) processContent(ctx context.Context, message string, interactionID int64) *question.TopicSwitch {
	isFirstContent := c.Stages.Stage() == stage.AskingForIdea
	c.Stages.ContentMessageCount++

	created := c.Processor.ProcessMessage(ctx, message, isFirstContent, c.lastQuestion(), interactionID)

	if hasValueNode(created) && c.Flow.limitReached() {
		slog.Info("Values limit reached after value creation, ending interview")
		if c.Tree.Active != nil && c.Tree.Active.Label == tree.LabelIrrelevant {
			c.Tree.RemoveIrrelevant()
		}
		c.Flow.updateStage(nil)
		return nil
	}

	if c.Flow.HandleAttributeFlag(analyzer.HasRealNodes(created), created, c.MinNodes) {
		return nil
	}

	found := analyzer.CheckForRequiredElements(c.Tree, created)
	c.Queue.UpdateUnchanged(found)
	for _, n := range created {
		c.Queue.Add(n)
	}
	return c.Flow.HandleQueueProgress(found, created)
}

// generateResponse produces the next question. The values limit has
// absolute priority and is re-checked after generation in case a concurrent
// write pushed the count over the cap.
func (c *StimulusChat) generateResponse(ctx context.Context, ts *question.TopicSwitch, templateVars map[string]any) models.InterviewResponse {
	if ReachedValuesLimit(c.Tree, c.ValuesMax) || c.valuesJustReached {
		c.valuesJustReached = false
		slog.Info("Values limit response", "count", CountValues(c.Tree), "max", c.ValuesMax)
		return question.ValuesLimit(c.Tree, c.Stimulus, CountValues(c.Tree), c.ValuesMax)
	}

	count := CountValues(c.Tree)
	var maxPtr *int
	if c.ValuesMax > 0 {
		m := c.ValuesMax
		maxPtr = &m
	}
	resp := c.Generator.Generate(ctx, question.Params{
		Messages:     historyMessages(c.History),
		Switch:       ts,
		ValuesCount:  &count,
		ValuesMax:    maxPtr,
		TemplateVars: templateVars,
	})

	if ReachedValuesLimit(c.Tree, c.ValuesMax) {
		slog.Warn("Values limit reached during question generation")
		return question.ValuesLimit(c.Tree, c.Stimulus, CountValues(c.Tree), c.ValuesMax)
	}
	return resp
}

// affectedNodeIDs returns the nodes touched by the last message, falling
// back to the active node.
func (c *StimulusChat) affectedNodeIDs() []string {
	var ids []string
	seen := map[string]bool{}
	for _, n := range c.Processor.LastAffected() {
		if !seen[n.ID] {
			seen[n.ID] = true
			ids = append(ids, n.ID)
		}
	}
	if len(ids) == 0 && c.Tree.Active != nil {
		ids = append(ids, c.Tree.Active.ID)
	}
	return ids
}

func (c *StimulusChat) appendSystemMessage(content string, nodeIDs []string) {
	c.History = append(c.History, models.ChatItem{
		Role:      "system",
		Content:   content,
		NodeIDs:   append([]string(nil), nodeIDs...),
		CreatedNS: nodeTimes(c.Tree, nodeIDs),
	})
}

func nodeTimes(t *tree.Tree, ids []string) []string {
	var out []string
	for _, id := range ids {
		if n := t.NodeByID(id); n != nil {
			out = append(out, strconv.FormatInt(n.CreatedNS, 10))
		}
	}
	return out
}

func historyMessages(history []models.ChatItem) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
