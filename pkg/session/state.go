package session

import (
	"github.com/meansend/ladder/pkg/llm"
	"github.com/meansend/ladder/pkg/models"
	"github.com/meansend/ladder/pkg/queue"
	"github.com/meansend/ladder/pkg/stage"
	"github.com/meansend/ladder/pkg/tree"
)

// ChatState is the snapshot of one stimulus chat.
type ChatState struct {
	Stimulus            string            `json:"stimulus"`
	ValuesMax           int               `json:"n_values_max"`
	MaxRetries          int               `json:"max_retries"`
	MinNodes            int               `json:"min_nodes"`
	Stage               string            `json:"stage"`
	MessageCount        int               `json:"message_count"`
	ContentMessageCount int               `json:"content_message_count"`
	QueueIDs            []string          `json:"queue"`
	ActiveNodeID        string            `json:"active_node_id"`
	UnchangedCount      int               `json:"unchanged_count"`
	History             []models.ChatItem `json:"chat_history"`
	Tree                tree.State        `json:"tree"`
	Finished            bool              `json:"is_finished"`
	AskedAgain          bool              `json:"asked_again_for_attributes"`
}

// State is the snapshot of a whole interview session.
type State struct {
	SessionID string               `json:"session_id"`
	Topic     string               `json:"topic"`
	Stimuli   []string             `json:"stimuli"`
	Chats     map[string]ChatState `json:"chats"`
}

// Snapshot captures everything needed to resume the chat.
func (c *StimulusChat) Snapshot() ChatState {
	queueIDs, activeID, unchanged := c.Queue.Snapshot()
	return ChatState{
		Stimulus:            c.Stimulus,
		ValuesMax:           c.ValuesMax,
		MaxRetries:          c.MaxRetries,
		MinNodes:            c.MinNodes,
		Stage:               string(c.Stages.Stage()),
		MessageCount:        c.Stages.MessageCount,
		ContentMessageCount: c.Stages.ContentMessageCount,
		QueueIDs:            queueIDs,
		ActiveNodeID:        activeID,
		UnchangedCount:      unchanged,
		History:             c.History,
		Tree:                c.Tree.ToState(),
		Finished:            c.Finished,
		AskedAgain:          c.Flow.AskedAgain,
	}
}

// restoreChat rebuilds a chat from its snapshot.
func restoreChat(cs ChatState, topic, sessionID string, client *llm.Client, st InteractionStore) (*StimulusChat, error) {
	t, err := tree.FromState(cs.Tree)
	if err != nil {
		return nil, err
	}
	c := &StimulusChat{
		Topic:      topic,
		Stimulus:   cs.Stimulus,
		SessionID:  sessionID,
		ValuesMax:  cs.ValuesMax,
		MaxRetries: cs.MaxRetries,
		MinNodes:   cs.MinNodes,
		Tree:       t,
		Queue:      queue.NewManager(t, cs.MaxRetries),
		Stages:     stage.Restore(cs.Stage, cs.MessageCount, cs.ContentMessageCount),
		History:    cs.History,
		Finished:   cs.Finished,
		store:      st,
	}
	c.Queue.Restore(cs.QueueIDs, cs.ActiveNodeID, cs.UnchangedCount)
	c.wire(client)
	c.Flow.AskedAgain = cs.AskedAgain
	return c, nil
}
