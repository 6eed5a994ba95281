package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SubstitutesVariables(t *testing.T) {
	out, err := Render("idea_check", map[string]any{
		"topic":    "mobile devices",
		"stimulus": "smartphone",
		"message":  "I use it all day",
	})
	require.NoError(t, err)
	assert.Contains(t, out, `about "mobile devices"`)
	assert.Contains(t, out, `stimulus "smartphone"`)
	assert.Contains(t, out, "I use it all day")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := Render("nope", nil)
	assert.Error(t, err)
}

func TestRender_MissingVariablesAreAnError(t *testing.T) {
	_, err := Render("queue_laddering", map[string]any{
		"topic": "mobile devices",
	})
	require.Error(t, err, "every placeholder must be supplied")
	assert.Contains(t, err.Error(), "queue_laddering")
}

func TestHasAndNames_CoverAllQuestionTemplates(t *testing.T) {
	expected := []string{
		"idea_check",
		"node_type_analysis",
		"node_similarity_check",
		"queue_laddering",
		"ask_again_for_attributes",
		"asking_again_for_attributes_too_short",
		"expanded_idea_question",
		"expanded_attribute_question",
		"expanded_consequence_question",
		"expanded_value_question",
	}
	for _, name := range expected {
		assert.True(t, Has(name), name)
	}
	assert.False(t, Has("bogus"))
	assert.Len(t, Names(), len(expected))
}

func TestRender_ExpandedQuestionUsesTargetType(t *testing.T) {
	out, err := Render("expanded_consequence_question", map[string]any{
		"topic":               "mobile devices",
		"stimulus":            "smartphone",
		"last_question":       "Why does battery life matter?",
		"last_user_response":  "dunno",
		"target_element_type": "Consequence",
		"current_path":        "STIMULUS: smartphone",
		"active_node_content": "battery life",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "still looking for: Consequence")
	assert.Contains(t, out, "Why does battery life matter?")
}
