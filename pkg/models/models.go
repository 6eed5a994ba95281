// Package models holds the request and response shapes of the interview API.
package models

import "github.com/meansend/ladder/pkg/tree"

// ChatRequest is one interviewee turn. TemplateVars are caller-supplied
// prompt variables merged into question generation; engine-owned variables
// always win. TemplateName rides along as the template_name variable:
// template selection itself stays state-driven.
type ChatRequest struct {
	SessionID    string         `json:"session_id"`
	Stimulus     string         `json:"stimulus" binding:"required"`
	Message      string         `json:"message" binding:"required"`
	TemplateName string         `json:"template_name"`
	TemplateVars map[string]any `json:"template_vars"`
}

// Next carries the generated question and the interview status flags the
// frontend acts on. Field casing follows the wire format consumed by the
// existing frontends.
type Next struct {
	NextQuestion         string `json:"NextQuestion"`
	AskingIntervieweeFor string `json:"AskingIntervieweeFor"`
	ThoughtProcess       string `json:"ThoughtProcess"`
	EndOfInterview       bool   `json:"EndOfInterview"`
	TopicSwitchReason    string `json:"TopicSwitchReason,omitempty"`
	ValuesCount          *int   `json:"ValuesCount,omitempty"`
	ValuesMax            *int   `json:"ValuesMax,omitempty"`
	ValuesReached        *bool  `json:"ValuesReached,omitempty"`
	CompletionReason     string `json:"CompletionReason,omitempty"`
	SessionID            string `json:"session_id,omitempty"`
}

// InterviewResponse is the full answer to one chat turn.
type InterviewResponse struct {
	Next   Next         `json:"Next"`
	Chains []tree.Chain `json:"Chains"`
	Tree   *tree.Export `json:"Tree,omitempty"`
}

// Interaction is one stored question/answer pair. Node traces reference
// interactions by ID so question generation can replay the branch context.
type Interaction struct {
	ID             int64  `json:"id"`
	SystemQuestion string `json:"system_question"`
	UserAnswer     string `json:"user_answer"`
	CreatedNS      int64  `json:"created_ns"`
}

// LoadRequest asks for a saved interview transcript.
type LoadRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// ChatItem is one transcript entry of a stimulus chat.
type ChatItem struct {
	Content   string   `json:"content"`
	Role      string   `json:"role"`
	NodeIDs   []string `json:"node_ids,omitempty"`
	CreatedNS []string `json:"created_ns,omitempty"`
}

// History is the transcript of a whole interview session: one chat per
// stimulus in saved order, the stimuli that already finished, and the merged
// graph.
type History struct {
	Content  [][]ChatItem `json:"content"`
	Order    []string     `json:"order"`
	Finished []string     `json:"finished"`
	Tree     *tree.Export `json:"tree,omitempty"`
}

// SaveOrderRequest persists the stimuli presentation order for a session.
type SaveOrderRequest struct {
	SessionID    string   `json:"session_id" binding:"required"`
	StimuliOrder []string `json:"stimuli_order" binding:"required"`
}

// MessagesRequest pages through every message of a session across all
// stimulus chats.
type MessagesRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Offset    int    `json:"offset"`
	Limit     int    `json:"limit"`
}

// MessageItem is one flattened transcript entry with its position.
type MessageItem struct {
	Role         string   `json:"role"`
	Content      string   `json:"content"`
	ChatIndex    int      `json:"chat_index"`
	MessageIndex int      `json:"message_index"`
	GlobalIndex  int      `json:"global_index"`
	NodeIDs      []string `json:"node_ids"`
	CreatedNS    []string `json:"created_ns"`
}

// MessagesResponse is one page of flattened messages.
type MessagesResponse struct {
	Messages      []MessageItem `json:"messages"`
	TotalMessages int           `json:"total_messages"`
}
