// Package stage tracks the interview phase state machine.
package stage

import (
	"log/slog"

	"github.com/meansend/ladder/pkg/tree"
)

// Stage is one phase of a laddering interview.
type Stage string

const (
	Initial                     Stage = "INITIAL"
	AskingForIdea               Stage = "ASKING_FOR_IDEA"
	AskingForAttributes         Stage = "ASKING_FOR_ATTRIBUTES"
	AskingForConsequences       Stage = "ASKING_FOR_CONSEQUENCES"
	AskingForConsequencesValues Stage = "ASKING_FOR_CONSEQUENCES_OR_VALUES"
	AskingAgainForAttributes    Stage = "ASKING_AGAIN_FOR_ATTRIBUTES"
	AskingAgainTooShort         Stage = "ASKING_AGAIN_FOR_ATTRIBUTES_TOO_SHORT"
	ValuesLimitReached          Stage = "VALUES_LIMIT_REACHED"
	Complete                    Stage = "COMPLETE"
)

// validTransitions lists the allowed next stages for each stage.
var validTransitions = map[Stage][]Stage{
	Initial:       {AskingForIdea},
	AskingForIdea: {AskingForAttributes, AskingForIdea, Complete},
	AskingForAttributes: {
		AskingForConsequences, AskingForAttributes,
		AskingAgainForAttributes, AskingAgainTooShort,
		ValuesLimitReached, Complete,
	},
	AskingForConsequences: {
		AskingForConsequencesValues, AskingForConsequences, AskingForAttributes,
		AskingAgainForAttributes, ValuesLimitReached, Complete,
	},
	AskingForConsequencesValues: {
		AskingForConsequencesValues, AskingForConsequences, AskingForAttributes,
		AskingAgainForAttributes, ValuesLimitReached, Complete,
	},
	AskingAgainForAttributes: {
		AskingForConsequences, AskingForAttributes, AskingAgainTooShort,
		ValuesLimitReached, Complete,
	},
	AskingAgainTooShort: {
		AskingForConsequences, AskingForAttributes, AskingAgainForAttributes,
		AskingAgainTooShort, ValuesLimitReached, Complete,
	},
	ValuesLimitReached: {},
	Complete:           {},
}

// IsValidTransition reports whether moving from one stage to another is
// allowed by the table. Self-transitions not listed are rejected.
func IsValidTransition(from, to Stage) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Manager holds the current stage and the turn counters of one stimulus chat.
type Manager struct {
	stage               Stage
	MessageCount        int
	ContentMessageCount int
}

// NewManager starts at INITIAL.
func NewManager() *Manager {
	return &Manager{stage: Initial}
}

// Stage returns the current stage.
func (m *Manager) Stage() Stage { return m.stage }

// SetStage moves to the given stage. Invalid moves are logged and applied
// anyway; the table is advisory because limit gates can force terminal
// stages from anywhere.
func (m *Manager) SetStage(s Stage) {
	if m.stage != s && !IsValidTransition(m.stage, s) {
		slog.Debug("Stage transition outside table", "from", m.stage, "to", s)
	}
	m.stage = s
}

// IsFirstMessage reports whether the current turn is the very first one.
func (m *Manager) IsFirstMessage() bool { return m.MessageCount == 1 }

// IsComplete reports whether the interview reached a terminal stage.
func (m *Manager) IsComplete() bool {
	return m.stage == Complete || m.stage == ValuesLimitReached
}

// UpdateForNode derives the next stage from the node about to be probed.
// A nil node ends the interview: VALUES_LIMIT_REACHED when the limit gate
// fired, COMPLETE otherwise.
func (m *Manager) UpdateForNode(n *tree.Node, limitReached func() bool) {
	if n == nil {
		if limitReached != nil && limitReached() {
			m.SetStage(ValuesLimitReached)
		} else {
			m.SetStage(Complete)
		}
		return
	}
	switch n.Label {
	case tree.LabelStimulus:
		m.SetStage(AskingForIdea)
	case tree.LabelIdea:
		m.SetStage(AskingForAttributes)
	case tree.LabelAttribute:
		m.SetStage(AskingForConsequences)
	case tree.LabelConsequence:
		m.SetStage(AskingForConsequencesValues)
	}
}

// Restore rebuilds a manager from snapshot values. Unknown stages fall back
// to INITIAL.
func Restore(stored string, messageCount, contentCount int) *Manager {
	m := &Manager{stage: Initial, MessageCount: messageCount, ContentMessageCount: contentCount}
	s := Stage(stored)
	switch s {
	case Initial, AskingForIdea, AskingForAttributes, AskingForConsequences,
		AskingForConsequencesValues, AskingAgainForAttributes,
		AskingAgainTooShort, ValuesLimitReached, Complete:
		m.stage = s
	default:
		slog.Warn("Unknown stored stage, resetting", "stage", stored)
	}
	return m
}
