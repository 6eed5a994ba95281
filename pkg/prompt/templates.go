// Package prompt holds the system-prompt templates used for element
// analysis, similarity judgement, and question generation.
package prompt

import (
	"fmt"
	"strings"
	"text/template"
)

const ideaCheck = `You are analyzing the opening answer of a laddering interview about "{{.topic}}".
The interviewee was shown the stimulus "{{.stimulus}}" and asked for their first idea about it.

Interviewee answer:
{{.message}}

Decide:
- is_relevant: does the answer engage with the stimulus at all?
- is_idea: does it express an initial idea or association (rather than already naming concrete product features)?
- summary: a concise summary of the core idea, at most 8 words.
- explanation: one sentence of reasoning.`

const nodeTypeAnalysis = `You are analyzing one answer in a laddering interview about "{{.topic}}" (stimulus: "{{.stimulus}}").
Laddering distinguishes three element types:
- ATTRIBUTE: a concrete feature or property the interviewee cares about.
- CONSEQUENCE: a functional or psychosocial outcome an attribute leads to.
- VALUE: an underlying personal value or life goal.
Answers that engage with none of these are IRRELEVANT.

Current interview position:
{{.context}}

The active element being probed is {{.active_label}}: "{{.active_content}}".
Previous question: {{.previous_question}}

Interviewee answer:
{{.message}}

Extract every distinct element in the answer. For each element give its
category (ATTRIBUTE, CONSEQUENCE, VALUE, or IRRELEVANT), a summary of at
most 8 words, the text segment it came from, and is_new_element (false when
it merely restates something already in the interview position above).
Then list the causal relationships the answer itself expresses between the
extracted elements, as source/target element indexes with a relationship
type of "A→C", "C→C", or "C→V".`

const nodeSimilarityCheck = `You are deduplicating elements in a laddering interview about "{{.topic}}" (stimulus: "{{.stimulus}}").
A new {{.label}} element was extracted: "{{.summary}}".

Candidate existing elements:
{{.candidates}}

For each candidate, judge whether the new element and the candidate mean the
same thing in their interview context. Return one result per candidate with
its candidate_id, should_merge (true when they are the same concept and the
new element should be attached to the candidate), a short explanation, and a
confidence_score between 0 and 100.`

const queueLaddering = `You are conducting a laddering interview about "{{.topic}}".
Current stimulus: "{{.stimulus}}".
Interview stage: {{.interview_stage}}.
Path so far: {{.current_path}}
You are probing the {{.active_node_label}} element "{{.active_node_content}}" (parent: {{.parent_context}}).
Last relevant answer: {{.last_user_response}}
{{.values_status}}{{.topic_switch}}
Ask ONE short, open, conversational question that digs one rung deeper:
- from an idea, ask which concrete features matter (attributes);
- from an attribute, ask why it matters or what it leads to (consequences);
- from a consequence, ask what that gives the person, until a personal value surfaces.
Never suggest answers and never ask about several elements at once.
Respond as JSON with a "Next" object containing "NextQuestion",
"AskingIntervieweeFor", "ThoughtProcess", and "EndOfInterview" (always false).`

const askAgainForAttributes = `You are conducting a laddering interview about "{{.topic}}" (stimulus: "{{.stimulus}}").
All previously mentioned features have been explored. Features discussed so far:
{{.discussed_attributes}}

Ask ONE friendly question inviting the interviewee to name any OTHER feature
or aspect of the stimulus that matters to them, making clear this is optional
and the interview is almost done.
Respond as JSON with a "Next" object containing "NextQuestion",
"AskingIntervieweeFor", "ThoughtProcess", and "EndOfInterview" (always false).`

const askAgainTooShort = `You are conducting a laddering interview about "{{.topic}}" (stimulus: "{{.stimulus}}").
The interview is still too short to conclude, and features discussed so far are:
{{.discussed_attributes}}

Encourage the interviewee warmly to think of one more feature or aspect of
the stimulus they have not mentioned yet, perhaps from a different situation
in which they use it. Ask ONE question.
Respond as JSON with a "Next" object containing "NextQuestion",
"AskingIntervieweeFor", "ThoughtProcess", and "EndOfInterview" (always false).`

const expandedQuestion = `You are conducting a laddering interview about "{{.topic}}" (stimulus: "{{.stimulus}}").
The interviewee has not given a usable answer to the last question:
"{{.last_question}}"
Their last response was: {{.last_user_response}}
You are still looking for: {{.target_element_type}}.
Current position: {{.current_path}}

Rephrase the probe with a different technique (a concrete scenario, a
comparison, or asking about a recent situation) while staying on the same
element "{{.active_node_content}}". Ask ONE question, do not repeat the
previous wording, and do not suggest answers.
Respond as JSON with a "Next" object containing "NextQuestion",
"AskingIntervieweeFor", "ThoughtProcess", and "EndOfInterview" (always false).`

// templates maps template names to their parsed form.
var templates = map[string]*template.Template{}

func init() {
	sources := map[string]string{
		"idea_check":                            ideaCheck,
		"node_type_analysis":                    nodeTypeAnalysis,
		"node_similarity_check":                 nodeSimilarityCheck,
		"queue_laddering":                       queueLaddering,
		"ask_again_for_attributes":              askAgainForAttributes,
		"asking_again_for_attributes_too_short": askAgainTooShort,
		"expanded_idea_question":                expandedQuestion,
		"expanded_attribute_question":           expandedQuestion,
		"expanded_consequence_question":         expandedQuestion,
		"expanded_value_question":               expandedQuestion,
	}
	for name, src := range sources {
		templates[name] = template.Must(template.New(name).Option("missingkey=error").Parse(src))
	}
}

// Names returns the available template names.
func Names() []string {
	out := make([]string, 0, len(templates))
	for n := range templates {
		out = append(out, n)
	}
	return out
}

// Has reports whether a template with the given name exists.
func Has(name string) bool {
	_, ok := templates[name]
	return ok
}

// Render executes the named template with the given variables.
func Render(name string, vars map[string]any) (string, error) {
	t, ok := templates[name]
	if !ok {
		return "", fmt.Errorf("prompt: unknown template %q", name)
	}
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("prompt: render %s: %w", name, err)
	}
	return b.String(), nil
}
