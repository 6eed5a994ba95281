// Package tree implements the typed multi-parent graph that accumulates
// attribute/consequence/value elements over the course of a laddering
// interview.
package tree

import "fmt"

// Label classifies a node in the interview graph.
type Label string

const (
	LabelTopic       Label = "TOPIC"
	LabelStimulus    Label = "STIMULUS"
	LabelIdea        Label = "IDEA"
	LabelAttribute   Label = "A"
	LabelConsequence Label = "C"
	LabelValue       Label = "V"
	LabelIrrelevant  Label = "IRRELEVANT_ANSWER"
)

// hierarchy is the laddering order. IRRELEVANT_ANSWER sits outside it.
var hierarchy = []Label{
	LabelTopic,
	LabelStimulus,
	LabelIdea,
	LabelAttribute,
	LabelConsequence,
	LabelValue,
}

// ParseLabel converts a stored string back into a Label.
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case LabelTopic, LabelStimulus, LabelIdea, LabelAttribute,
		LabelConsequence, LabelValue, LabelIrrelevant:
		return Label(s), nil
	}
	return "", fmt.Errorf("unknown node label %q", s)
}

// Relative returns the label offset steps away in the hierarchy.
func (l Label) Relative(offset int) (Label, bool) {
	for i, h := range hierarchy {
		if h == l {
			j := i + offset
			if j < 0 || j >= len(hierarchy) {
				return "", false
			}
			return hierarchy[j], true
		}
	}
	return "", false
}

// Next returns the label one step down the ladder.
func (l Label) Next() (Label, bool) { return l.Relative(1) }

// Previous returns the label one step up the ladder.
func (l Label) Previous() (Label, bool) { return l.Relative(-1) }
