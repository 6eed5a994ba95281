package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/models"
	"github.com/meansend/ladder/pkg/tree"
)

// ErrUnknownStimulus is returned when a message targets a stimulus the
// session was not configured with.
var ErrUnknownStimulus = errors.New("session: unknown stimulus")

// Interview is one session: a chat per stimulus sharing a topic.
type Interview struct {
	SessionID string
	Topic     string
	Stimuli   []string
	Chats     map[string]*StimulusChat
}

// NewInterview creates a session with a fresh chat per stimulus.
func NewInterview(sessionID string, client *llm.Client, st InteractionStore, opts Options) *Interview {
	iv := &Interview{
		SessionID: sessionID,
		Topic:     opts.Topic,
		Stimuli:   append([]string(nil), opts.Stimuli...),
		Chats:     make(map[string]*StimulusChat, len(opts.Stimuli)),
	}
	for _, s := range opts.Stimuli {
		iv.Chats[s] = NewStimulusChat(s, sessionID, client, st, opts)
	}
	return iv
}

// HandleInput routes one turn to its stimulus chat. The response carries the
// session ID and the tree merged across all stimuli.
func (iv *Interview) HandleInput(ctx context.Context, stimulus, message string, templateVars map[string]any) (models.InterviewResponse, error) {
	chat, ok := iv.Chats[stimulus]
	if !ok {
		return models.InterviewResponse{}, fmt.Errorf("%w: %q", ErrUnknownStimulus, stimulus)
	}
	resp := chat.HandleInput(ctx, message, templateVars)
	resp.Next.SessionID = iv.SessionID

	merged := iv.Merged(nil).ToExport()
	resp.Tree = &merged
	return resp, nil
}

// Merged combines the per-stimulus trees under a topic root, in the given
// stimuli order (session order when nil).
func (iv *Interview) Merged(order []string) *tree.Tree {
	if len(order) == 0 {
		order = iv.Stimuli
	}
	var trees []*tree.Tree
	for _, s := range order {
		if c, ok := iv.Chats[s]; ok {
			trees = append(trees, c.Tree)
		}
	}
	return tree.MergeWithTopic(iv.Topic, trees)
}

// Transcript returns the saved conversation of every chat, in order.
func (iv *Interview) Transcript(order []string) models.History {
	if len(order) == 0 {
		order = iv.Stimuli
	}
	h := models.History{Order: order, Finished: []string{}, Content: [][]models.ChatItem{}}
	for _, s := range order {
		c, ok := iv.Chats[s]
		if !ok {
			continue
		}
		items := c.History
		if items == nil {
			items = []models.ChatItem{}
		}
		h.Content = append(h.Content, items)
		if c.Finished {
			h.Finished = append(h.Finished, s)
		}
	}
	merged := iv.Merged(order).ToExport()
	h.Tree = &merged
	return h
}

const (
	defaultMessageLimit = 500
	maxMessageLimit     = 5000
)

// Messages flattens every chat transcript into one paginated list.
func (iv *Interview) Messages(order []string, offset, limit int) models.MessagesResponse {
	if len(order) == 0 {
		order = iv.Stimuli
	}
	var all []models.MessageItem
	global := 0
	for ci, s := range order {
		c, ok := iv.Chats[s]
		if !ok {
			continue
		}
		for mi, m := range c.History {
			all = append(all, models.MessageItem{
				Role:         m.Role,
				Content:      m.Content,
				ChatIndex:    ci,
				MessageIndex: mi,
				GlobalIndex:  global,
				NodeIDs:      emptyIfNil(m.NodeIDs),
				CreatedNS:    emptyIfNil(m.CreatedNS),
			})
			global++
		}
	}

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	msgs := all[offset:end]
	if msgs == nil {
		msgs = []models.MessageItem{}
	}
	return models.MessagesResponse{Messages: msgs, TotalMessages: total}
}

// Snapshot captures the whole session.
func (iv *Interview) Snapshot() State {
	st := State{
		SessionID: iv.SessionID,
		Topic:     iv.Topic,
		Stimuli:   iv.Stimuli,
		Chats:     make(map[string]ChatState, len(iv.Chats)),
	}
	for s, c := range iv.Chats {
		st.Chats[s] = c.Snapshot()
	}
	return st
}

// RestoreInterview rebuilds a session from its snapshot.
func RestoreInterview(st State, client *llm.Client, is InteractionStore) (*Interview, error) {
	iv := &Interview{
		SessionID: st.SessionID,
		Topic:     st.Topic,
		Stimuli:   st.Stimuli,
		Chats:     make(map[string]*StimulusChat, len(st.Chats)),
	}
	for s, cs := range st.Chats {
		c, err := restoreChat(cs, st.Topic, st.SessionID, client, is)
		if err != nil {
			return nil, fmt.Errorf("session: restore chat %q: %w", s, err)
		}
		iv.Chats[s] = c
	}
	return iv, nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
